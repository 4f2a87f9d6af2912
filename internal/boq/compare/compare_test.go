package compare

import (
	"testing"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

func cols() []model.ColumnMapping {
	return []model.ColumnMapping{
		{ColumnIndex: 0, Role: model.RoleCode, IsRequired: true},
		{ColumnIndex: 1, Role: model.RoleDescription, IsRequired: true},
		{ColumnIndex: 2, Role: model.RoleQuantity, IsRequired: true},
		{ColumnIndex: 3, Role: model.RoleUnitPrice, IsRequired: true},
		{ColumnIndex: 4, Role: model.RoleTotalPrice, IsRequired: true},
	}
}

func lineItem(rowIndex int) model.RowClassification {
	return model.RowClassification{RowIndex: rowIndex, RowType: model.RowPrimaryLineItem}
}

func TestCompareExactCodeMatch(t *testing.T) {
	cfg := config.Default()
	master := model.Sheet{Cells: [][]string{{"1", "Excavation works", "100", "25.00", "2500.00"}}}
	offer := model.Sheet{Cells: [][]string{{"1", "Excavation works (revised)", "100", "30.00", "3000.00"}}}

	result := Compare(master, cols(), []model.RowClassification{lineItem(0)}, offer, cols(), []model.RowClassification{lineItem(0)}, cfg)
	if len(result.Matched) != 1 {
		t.Fatalf("len(Matched) = %d, want 1", len(result.Matched))
	}
	if result.Matched[0].MatchMethod != "exact_code" {
		t.Errorf("MatchMethod = %q, want exact_code", result.Matched[0].MatchMethod)
	}
	if result.Matched[0].TotalPriceDelta == nil || result.Matched[0].TotalPriceDelta.Amount() != 50000 {
		t.Errorf("TotalPriceDelta = %+v, want 500.00", result.Matched[0].TotalPriceDelta)
	}
}

func TestCompareUnmatchedRowsReported(t *testing.T) {
	cfg := config.Default()
	master := model.Sheet{Cells: [][]string{
		{"1", "Excavation works", "100", "25.00", "2500.00"},
		{"2", "Concrete grade 30", "50", "150.00", "7500.00"},
	}}
	offer := model.Sheet{Cells: [][]string{
		{"1", "Excavation works", "100", "30.00", "3000.00"},
	}}

	result := Compare(master, cols(), []model.RowClassification{lineItem(0), lineItem(1)}, offer, cols(), []model.RowClassification{lineItem(0)}, cfg)
	if len(result.Matched) != 1 {
		t.Fatalf("len(Matched) = %d, want 1", len(result.Matched))
	}
	if len(result.UnmatchedMaster) != 1 || result.UnmatchedMaster[0] != 1 {
		t.Errorf("UnmatchedMaster = %v, want [1]", result.UnmatchedMaster)
	}
	if len(result.UnmatchedOffer) != 0 {
		t.Errorf("UnmatchedOffer = %v, want none", result.UnmatchedOffer)
	}
	if result.Summary.MatchedCount != 1 || result.Summary.MasterOnlyCount != 1 || result.Summary.OfferOnlyCount != 0 {
		t.Errorf("Summary = %+v, want matched=1 master_only=1 offer_only=0", result.Summary)
	}
}

func TestCompareAmbiguousDescriptionNotAutoResolved(t *testing.T) {
	cfg := config.Default()
	master := model.Sheet{Cells: [][]string{
		{"", "Excavation works", "100", "25.00", "2500.00"},
		{"", "Excavation works", "80", "25.00", "2000.00"},
	}}
	offer := model.Sheet{Cells: [][]string{
		{"", "Excavation works", "100", "30.00", "3000.00"},
	}}

	result := Compare(master, cols(), []model.RowClassification{lineItem(0), lineItem(1)}, offer, cols(), []model.RowClassification{lineItem(0)}, cfg)
	if len(result.Matched) != 0 {
		t.Errorf("len(Matched) = %d, want 0 (ambiguous, not auto-resolved)", len(result.Matched))
	}
	if len(result.Ambiguous) != 1 {
		t.Fatalf("len(Ambiguous) = %d, want 1", len(result.Ambiguous))
	}
	if len(result.Ambiguous[0].CandidateMasters) != 2 {
		t.Errorf("CandidateMasters = %v, want 2 entries", result.Ambiguous[0].CandidateMasters)
	}
	if result.Summary.AmbiguousCount != 1 {
		t.Errorf("Summary.AmbiguousCount = %d, want 1", result.Summary.AmbiguousCount)
	}
}
