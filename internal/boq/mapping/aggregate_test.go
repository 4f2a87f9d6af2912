package mapping

import (
	"testing"
	"time"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

func cleanColumns() []model.ColumnMapping {
	return []model.ColumnMapping{
		{ColumnIndex: 0, Role: model.RoleCode, Confidence: 1, IsRequired: true},
		{ColumnIndex: 1, Role: model.RoleDescription, Confidence: 1, IsRequired: true},
		{ColumnIndex: 2, Role: model.RoleUnit, Confidence: 1, IsRequired: true},
		{ColumnIndex: 3, Role: model.RoleQuantity, Confidence: 1, IsRequired: true},
		{ColumnIndex: 4, Role: model.RoleUnitPrice, Confidence: 1, IsRequired: true},
		{ColumnIndex: 5, Role: model.RoleTotalPrice, Confidence: 1, IsRequired: true},
	}
}

func cleanRows(n int) []model.RowClassification {
	rows := make([]model.RowClassification, n)
	for i := range rows {
		rows[i] = model.RowClassification{RowIndex: i + 1, RowType: model.RowPrimaryLineItem, Completeness: 1}
	}
	return rows
}

func TestBuildSheetMappingSuccess(t *testing.T) {
	cfg := config.Default()
	header := model.HeaderInfo{RowIndex: 0, Confidence: 0.9, Method: model.HeaderMethodKeyword}
	sm := BuildSheetMapping("Sheet1", model.SheetBoQMain, header, cleanColumns(), cleanRows(5), nil, cfg)

	if sm.ProcessingStatus != model.StatusSuccess {
		t.Errorf("ProcessingStatus = %q, want success", sm.ProcessingStatus)
	}
	if sm.Confidence.Overall < cfg.ExportReadyThreshold {
		t.Errorf("Overall confidence = %v, want >= %v", sm.Confidence.Overall, cfg.ExportReadyThreshold)
	}
	if len(sm.ReviewFlags) != 0 {
		t.Errorf("ReviewFlags = %v, want none", sm.ReviewFlags)
	}
}

func TestBuildSheetMappingFailedWhenNoRolesResolved(t *testing.T) {
	cfg := config.Default()
	columns := []model.ColumnMapping{
		{ColumnIndex: 0, Role: model.RoleRemarks, Confidence: 0},
	}
	sm := BuildSheetMapping("Sheet1", model.SheetUnknown, model.HeaderInfo{}, columns, nil, nil, cfg)
	if sm.ProcessingStatus != model.StatusFailed {
		t.Errorf("ProcessingStatus = %q, want failed", sm.ProcessingStatus)
	}
}

func TestBuildSheetMappingNeedsReviewOnErrors(t *testing.T) {
	cfg := config.Default()
	header := model.HeaderInfo{RowIndex: 0, Confidence: 0.9}
	var issues []model.ValidationIssue
	for i := 0; i < cfg.ErrorCountReviewLimit+1; i++ {
		issues = append(issues, model.ValidationIssue{Severity: model.SeverityError, Kind: model.ValidationMathematical})
	}
	sm := BuildSheetMapping("Sheet1", model.SheetBoQMain, header, cleanColumns(), cleanRows(5), issues, cfg)
	if sm.ProcessingStatus != model.StatusNeedsReview {
		t.Errorf("ProcessingStatus = %q, want needs_review", sm.ProcessingStatus)
	}
	if !sm.HasReviewFlag(model.FlagValidationErrors) {
		t.Errorf("expected validation_errors review flag")
	}
}

func TestBuildFileMappingExportReady(t *testing.T) {
	cfg := config.Default()
	header := model.HeaderInfo{RowIndex: 0, Confidence: 0.9}
	sheet := BuildSheetMapping("Sheet1", model.SheetBoQMain, header, cleanColumns(), cleanRows(5), nil, cfg)

	fm := BuildFileMapping("file-1", model.FileMetadata{Filename: "boq.xlsx"}, []model.SheetMapping{sheet}, cfg, time.Unix(0, 0))
	if !fm.ExportReady {
		t.Errorf("ExportReady = false, want true (global confidence %v)", fm.GlobalConfidence)
	}
	if fm.Metadata.SheetCount != 1 {
		t.Errorf("SheetCount = %d, want 1", fm.Metadata.SheetCount)
	}
}
