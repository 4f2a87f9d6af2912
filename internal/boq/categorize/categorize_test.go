package categorize

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/boqtools/boq-analyzer/internal/boq/dictionary"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

func fixtureColumns() []model.ColumnMapping {
	return []model.ColumnMapping{
		{ColumnIndex: 0, Role: model.RoleCode},
		{ColumnIndex: 1, Role: model.RoleDescription},
	}
}

func TestCategorizeEmptyDictionaryNeedsReview(t *testing.T) {
	cfg := config.Default()
	dict, _ := dictionary.Load(filepath.Join(t.TempDir(), "categories.json"))
	sheet := model.Sheet{Cells: [][]string{{"1", "Excavation to reduce levels"}}}
	rows := []model.RowClassification{{RowIndex: 0, RowType: model.RowPrimaryLineItem}}

	results := Categorize(sheet, fixtureColumns(), rows, dict, cfg)
	if len(results) != 1 || !results[0].NeedsReview {
		t.Fatalf("expected single needs-review result, got %+v", results)
	}
	if results[0].Category != "" {
		t.Errorf("Category = %q, want empty on miss", results[0].Category)
	}
	if results[0].MatchType != "none" {
		t.Errorf("MatchType = %q, want none", results[0].MatchType)
	}
}

func TestCategorizeExactMatch(t *testing.T) {
	cfg := config.Default()
	dict, _ := dictionary.Load(filepath.Join(t.TempDir(), "categories.json"))
	now := time.Unix(0, 0)
	_ = dict.AddMapping("Excavation to reduce levels", "Earth Movement", "manual", 1.0, false, now)

	sheet := model.Sheet{Cells: [][]string{{"1", "Excavation to reduce levels"}}}
	rows := []model.RowClassification{{RowIndex: 0, RowType: model.RowPrimaryLineItem}}

	results := Categorize(sheet, fixtureColumns(), rows, dict, cfg)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].NeedsReview {
		t.Errorf("expected exact match not to need review: %+v", results[0])
	}
	if results[0].Category != "Earth Movement" {
		t.Errorf("Category = %q, want Earth Movement", results[0].Category)
	}
	if results[0].MatchType != "exact" {
		t.Errorf("MatchType = %q, want exact", results[0].MatchType)
	}
}

func TestCollectReviewAggregatesByDescriptionOrderedByFrequency(t *testing.T) {
	results := []Result{
		{RowIndex: 0, Description: "Mystery item", MatchType: "none", NeedsReview: true, ReviewReason: "no exact dictionary match"},
		{RowIndex: 1, Description: "Common item", MatchType: "none", NeedsReview: true, ReviewReason: "no exact dictionary match"},
		{RowIndex: 2, Description: "Common item", MatchType: "none", NeedsReview: true, ReviewReason: "no exact dictionary match"},
		{RowIndex: 3, Description: "Known item", Category: "Civil Works", NeedsReview: false},
	}

	items := CollectReview("Sheet1", results, nil)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (only needs-review rows, deduplicated)", len(items))
	}
	if items[0].Description != "Common item" || items[0].Frequency != 2 {
		t.Errorf("items[0] = %+v, want Common item with frequency 2 first", items[0])
	}
	if items[1].Description != "Mystery item" || items[1].Frequency != 1 {
		t.Errorf("items[1] = %+v, want Mystery item with frequency 1", items[1])
	}
	if items[0].SourceSheet != "Sheet1" {
		t.Errorf("SourceSheet = %q, want Sheet1", items[0].SourceSheet)
	}
}

func TestReviewArtifactCSVAndJSONRoundTrip(t *testing.T) {
	items := []ReviewItem{
		{Description: "Mystery item", SourceSheet: "Sheet1", Frequency: 3, MatchType: "none"},
		{Description: "Second item", SourceSheet: "Sheet1", Frequency: 1, AutoCategory: "Civil Works", MatchType: "suggested"},
	}

	csvBytes, err := ReviewArtifactCSV(items)
	if err != nil {
		t.Fatalf("ReviewArtifactCSV: %v", err)
	}
	rows, err := ParseReviewCSV(csvBytes)
	if err != nil {
		t.Fatalf("ParseReviewCSV: %v", err)
	}
	if len(rows) != 2 || rows[0].Description != "Mystery item" || rows[0].Frequency != 3 {
		t.Errorf("rows = %+v, want round-tripped Mystery item with frequency 3", rows)
	}

	jsonBytes, err := ReviewArtifactJSON(items)
	if err != nil {
		t.Fatalf("ReviewArtifactJSON: %v", err)
	}
	jsonRows, err := ParseReviewJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ParseReviewJSON: %v", err)
	}
	if len(jsonRows) != 2 || jsonRows[1].AutoCategory != "Civil Works" {
		t.Errorf("jsonRows = %+v, want Second item with Auto_Category Civil Works", jsonRows)
	}
}

func TestApplyReviewUpdatesMatchedRowsAndReportsCoverage(t *testing.T) {
	results := []Result{
		{RowIndex: 0, Description: "Mystery item", NeedsReview: true},
		{RowIndex: 1, Description: "Another item", NeedsReview: true},
		{RowIndex: 2, Description: "Resolved item", NeedsReview: false, Category: "Civil Works"},
	}
	reviewed := []ReviewRow{
		{Description: "Mystery item", Category: "Site Costs"},
		{Description: "Another item", Category: ""},
	}

	stats, err := ApplyReview(results, reviewed)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if stats.RowsUpdated != 1 || stats.RemainingUnmatched != 1 {
		t.Errorf("stats = %+v, want RowsUpdated=1 RemainingUnmatched=1", stats)
	}
	if stats.CoverageRate != 0.5 {
		t.Errorf("CoverageRate = %v, want 0.5", stats.CoverageRate)
	}
	if results[0].Category != "Site Costs" || results[0].NeedsReview {
		t.Errorf("results[0] = %+v, want Category=Site Costs NeedsReview=false", results[0])
	}
	if results[1].Category != "" || !results[1].NeedsReview {
		t.Errorf("results[1] = %+v, want still unresolved", results[1])
	}
}

func TestApplyReviewRejectsUnknownCategory(t *testing.T) {
	results := []Result{{RowIndex: 0, Description: "Mystery item", NeedsReview: true}}
	reviewed := []ReviewRow{{Description: "Mystery item", Category: "Not A Real Category"}}

	if _, err := ApplyReview(results, reviewed); err == nil {
		t.Fatalf("expected an error for a category outside the closed set")
	}
}

func TestConfirmLearnsNewMapping(t *testing.T) {
	dict, _ := dictionary.Load(filepath.Join(t.TempDir(), "categories.json"))
	now := time.Unix(0, 0)

	result, err := Confirm(dict, "Site clearance", "Site Costs", now)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !result.Applied || result.Conflict {
		t.Errorf("result = %+v, want Applied=true Conflict=false", result)
	}
	cat, _, ok := dict.FindCategory("Site clearance")
	if !ok || cat != "Site Costs" {
		t.Errorf("FindCategory after Confirm = (%q, %v), want Site Costs", cat, ok)
	}
}

func TestConfirmReportsConflictWithoutOverwriting(t *testing.T) {
	dict, _ := dictionary.Load(filepath.Join(t.TempDir(), "categories.json"))
	now := time.Unix(0, 0)
	_ = dict.AddMapping("Site clearance", "Site Costs", "manual", 1.0, false, now)

	result, err := Confirm(dict, "Site clearance", "General Costs", now)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if result.Applied || !result.Conflict {
		t.Errorf("result = %+v, want Applied=false Conflict=true", result)
	}
	if result.ExistingCategory != "Site Costs" {
		t.Errorf("ExistingCategory = %q, want Site Costs", result.ExistingCategory)
	}
	cat, _ := dict.Peek("Site clearance")
	if cat != "Site Costs" {
		t.Errorf("mapping after conflicting Confirm = %q, want unchanged Site Costs", cat)
	}
}
