// Package mapping aggregates a sheet's header, column, row, and validation
// results into the confidence scores, review flags, and processing status
// that drive the export-readiness decision, then rolls every sheet up into
// a file-level mapping artifact.
package mapping

import (
	"strconv"
	"time"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/validate"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// BuildSheetMapping combines one sheet's stage outputs into a SheetMapping,
// computing the four confidence axes (§4.6), firing review flags, and
// deriving a processing status.
func BuildSheetMapping(
	sheetName string, sheetType model.SheetType, header model.HeaderInfo,
	columns []model.ColumnMapping, rows []model.RowClassification, issues []model.ValidationIssue,
	cfg *config.Config,
) model.SheetMapping {
	errorCount, warningCount := validate.CountBySeverity(issues)

	conf := model.Confidences{
		Column:      columnConfidence(columns),
		Row:         rowConfidence(rows),
		DataQuality: validate.Score(issues),
	}
	conf.Overall = 0.4*conf.Column + 0.3*conf.Row + 0.3*conf.DataQuality

	sm := model.SheetMapping{
		SheetName:    sheetName,
		SheetType:    sheetType,
		Header:       header,
		Columns:      columns,
		Rows:         rows,
		Issues:       issues,
		Confidence:   conf,
		ErrorCount:   errorCount,
		WarningCount: warningCount,
	}

	applyReviewFlags(&sm, cfg)
	sm.ProcessingStatus = deriveStatus(sm, cfg)

	return sm
}

// columnConfidence averages the confidence of the six required roles,
// treating an unresolved required role (confidence 0, or never assigned)
// as a zero contribution so a sheet missing description/quantity/price
// columns can never score as well-mapped.
func columnConfidence(columns []model.ColumnMapping) float64 {
	byRole := make(map[model.ColumnRole]float64, len(model.RequiredRoles))
	for _, c := range columns {
		if c.Role.IsRequired() && c.Confidence > byRole[c.Role] {
			byRole[c.Role] = c.Confidence
		}
	}
	sum := 0.0
	for _, role := range model.RequiredRoles {
		sum += byRole[role]
	}
	return sum / float64(len(model.RequiredRoles))
}

// rowConfidence averages completeness across every row that isn't blank or
// a structural marker (header/section-break/subtotal/total), since those
// row types have no "completeness" in the required-field sense.
func rowConfidence(rows []model.RowClassification) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		switch r.RowType {
		case model.RowBlank, model.RowHeader, model.RowHeaderSectionBreak, model.RowSubtotal, model.RowTotal:
			continue
		}
		sum += r.Completeness
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func applyReviewFlags(sm *model.SheetMapping, cfg *config.Config) {
	if sm.Confidence.Overall < cfg.LowConfidenceThreshold {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagLowConfidence)
	}
	if sm.ErrorCount > cfg.ErrorCountReviewLimit {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagValidationErrors)
	}
	if hasAmbiguousColumn(sm.Columns, cfg) {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagAmbiguousMapping)
	}
	if rowConfidence(sm.Rows) < cfg.MissingDataCompleteness {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagMissingData)
	}
	if sm.Header.IsMerged {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagInconsistentFormat)
	}
	if len(sm.ReviewFlags) >= 3 {
		sm.ReviewFlags = append(sm.ReviewFlags, model.FlagManualReviewRequired)
	}
}

func hasAmbiguousColumn(columns []model.ColumnMapping, cfg *config.Config) bool {
	for _, c := range columns {
		if c.Confidence >= cfg.AmbiguityConfidenceMax {
			continue
		}
		for _, reason := range c.Reasoning {
			if reason == "ambiguous: multiple roles score within the gap threshold" {
				return true
			}
		}
	}
	return false
}

// deriveStatus decides the sheet's outcome: failed when no required role
// was resolved at all (the sheet cannot be used downstream), needs_review
// when any review flag fired, partial when data quality issues exist but
// the sheet is otherwise usable, success otherwise.
func deriveStatus(sm model.SheetMapping, cfg *config.Config) model.ProcessingStatus {
	if columnConfidence(sm.Columns) == 0 {
		return model.StatusFailed
	}
	if len(sm.ReviewFlags) > 0 {
		return model.StatusNeedsReview
	}
	if sm.ErrorCount > 0 || sm.WarningCount > 0 {
		return model.StatusPartial
	}
	return model.StatusSuccess
}

// BuildFileMapping rolls every sheet's mapping into the file-level artifact:
// a row-count-weighted global confidence and the export-ready decision.
func BuildFileMapping(id string, meta model.FileMetadata, sheets []model.SheetMapping, cfg *config.Config, now time.Time) model.FileMapping {
	meta.ProcessedAt = now.UTC().Format(time.RFC3339)
	meta.SheetCount = len(sheets)
	for _, s := range sheets {
		if len(s.Rows) > 0 {
			meta.VisibleCount++
		}
	}

	fm := model.FileMapping{
		ID:       id,
		Metadata: meta,
		Sheets:   sheets,
	}

	fm.GlobalConfidence = weightedGlobalConfidence(sheets)
	fm.ReviewFlags = unionReviewFlags(sheets)
	fm.ProcessingSummary = summarize(sheets)
	fm.ExportReady = isExportReady(fm, cfg)

	return fm
}

// weightedGlobalConfidence rolls every non-failed sheet's confidence axes
// up into one file-level number. Each sheet's weight is its row count
// capped at 100 rows (min(row_count/100, 1.0)), so one oversized sheet
// can't swamp the rest of the file, and each sheet's own contribution
// blends all four confidence axes (0.4 overall, 0.3 column, 0.2 row,
// 0.1 quality) rather than collapsing to Overall alone.
func weightedGlobalConfidence(sheets []model.SheetMapping) float64 {
	var weightedSum, totalWeight float64
	for _, s := range sheets {
		if s.ProcessingStatus == model.StatusFailed || s.ProcessingStatus == model.StatusCancelled {
			continue
		}
		weight := float64(len(s.Rows)) / 100
		if weight > 1.0 {
			weight = 1.0
		}
		blended := 0.4*s.Confidence.Overall + 0.3*s.Confidence.Column + 0.2*s.Confidence.Row + 0.1*s.Confidence.DataQuality
		weightedSum += blended * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func unionReviewFlags(sheets []model.SheetMapping) []model.ReviewFlag {
	seen := make(map[model.ReviewFlag]bool)
	var out []model.ReviewFlag
	for _, s := range sheets {
		for _, f := range s.ReviewFlags {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func isExportReady(fm model.FileMapping, cfg *config.Config) bool {
	if fm.GlobalConfidence < cfg.ExportReadyThreshold {
		return false
	}
	for _, s := range fm.Sheets {
		if s.ProcessingStatus == model.StatusFailed {
			return false
		}
		if s.HasReviewFlag(model.FlagValidationErrors) {
			return false
		}
	}
	return true
}

func summarize(sheets []model.SheetMapping) string {
	success, review, failed := 0, 0, 0
	for _, s := range sheets {
		switch s.ProcessingStatus {
		case model.StatusSuccess:
			success++
		case model.StatusNeedsReview, model.StatusPartial:
			review++
		case model.StatusFailed:
			failed++
		}
	}
	return formatSummary(len(sheets), success, review, failed)
}

func formatSummary(total, success, review, failed int) string {
	return "processed " + strconv.Itoa(total) + " sheet(s): " + strconv.Itoa(success) + " clean, " +
		strconv.Itoa(review) + " need review, " + strconv.Itoa(failed) + " failed"
}
