// Package row classifies each data row of a sheet into exactly one RowType,
// computes its completeness, infers a hierarchical level from leading
// numeric prefixes, and propagates the nearest preceding section title.
package row

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/numeric"
	"github.com/boqtools/boq-analyzer/internal/boq/vocab"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

var hierarchyPrefixRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)`)

// Classify assigns a RowClassification to every row of sheet given its
// already-resolved column→role mapping. header is the row index chosen by
// the header locator; rows at or above it are labelled as header rows.
func Classify(sheet model.Sheet, columns []model.ColumnMapping, header int, cfg *config.Config) []model.RowClassification {
	roleByCol := make(map[int]model.ColumnRole, len(columns))
	for _, c := range columns {
		roleByCol[c.ColumnIndex] = c.Role
	}
	requiredCount := 0
	for _, c := range columns {
		if c.IsRequired {
			requiredCount++
		}
	}

	subtotalMatcher := vocab.NewMatcher(cfg.Vocabulary.SubtotalTokens)
	totalMatcher := vocab.NewMatcher(cfg.Vocabulary.TotalTokens)
	sectionMatcher := vocab.NewMatcher(cfg.Vocabulary.SectionTokens)
	infoMatcher := vocab.NewMatcher(cfg.Vocabulary.InfoKeyTokens)

	out := make([]model.RowClassification, 0, sheet.RowCount())
	currentSection := ""

	for r := 0; r <= header; r++ {
		out = append(out, model.RowClassification{RowIndex: r, RowType: model.RowHeader, Confidence: 1, Completeness: 1})
	}

	for r := header + 1; r < sheet.RowCount(); r++ {
		rc := classifyRow(sheet, r, roleByCol, requiredCount, subtotalMatcher, totalMatcher, sectionMatcher, infoMatcher, cfg)
		if rc.RowType == model.RowHeaderSectionBreak {
			currentSection = sectionTitleOf(sheet, r)
		}
		rc.SectionTitle = currentSection
		out = append(out, rc)
	}

	return out
}

func classifyRow(
	sheet model.Sheet, r int, roleByCol map[int]model.ColumnRole, requiredCount int,
	subtotalMatcher, totalMatcher, sectionMatcher, infoMatcher *vocab.Matcher, cfg *config.Config,
) model.RowClassification {
	width := sheet.ColCount()
	nonEmpty, numericCells, textCells := 0, 0, 0
	var firstNonEmpty string
	requiredPresent := 0

	for c := 0; c < width; c++ {
		cell := sheet.Cell(r, c)
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		if firstNonEmpty == "" {
			firstNonEmpty = trimmed
		}
		nonEmpty++
		if numeric.IsNumeric(numeric.Classify(trimmed)) {
			numericCells++
		} else {
			textCells++
		}
		if role, ok := roleByCol[c]; ok && role.IsRequired() {
			requiredPresent++
		}
	}

	completeness := 0.0
	if requiredCount > 0 {
		completeness = float64(requiredPresent) / float64(requiredCount)
	}

	if nonEmpty == 0 {
		return model.RowClassification{RowIndex: r, RowType: model.RowBlank, Confidence: 1, Completeness: 0}
	}

	rowText := strings.Join(sheet.Cells[r], " ")

	if infoMatcher.MatchAny(rowText) && nonEmpty <= 2 {
		return model.RowClassification{RowIndex: r, RowType: model.RowInfo, Confidence: 0.6, Completeness: completeness,
			Reasoning: []string{"matches metadata key/value vocabulary"}}
	}

	// subtotalMatcher is checked first: "subtotal" contains "total" as a
	// substring, so checking totalMatcher first would misclassify every
	// subtotal row as a document-scoped total.
	if subtotalMatcher.MatchAny(rowText) {
		return model.RowClassification{RowIndex: r, RowType: model.RowSubtotal, Confidence: 0.8, Completeness: completeness,
			Reasoning: []string{"matches section-scoped subtotal vocabulary"}}
	}
	if totalMatcher.MatchAny(rowText) {
		return model.RowClassification{RowIndex: r, RowType: model.RowTotal, Confidence: 0.8, Completeness: completeness,
			Reasoning: []string{"matches document-scoped total vocabulary"}}
	}

	if textCells > 0 && numericCells == 0 && sectionMatcher.MatchAny(rowText) {
		return model.RowClassification{RowIndex: r, RowType: model.RowHeaderSectionBreak, Confidence: 0.7, Completeness: completeness,
			Reasoning: []string{"text-only row matching section vocabulary"}}
	}

	if nonEmpty == 1 && textCells == 1 && len(firstNonEmpty) > 20 {
		return model.RowClassification{RowIndex: r, RowType: model.RowNotesComments, Confidence: 0.6, Completeness: completeness,
			Reasoning: []string{"single long text cell, no numerics, no code"}}
	}

	descPresent, qtyPresent, codePresent := rolePresent(sheet, r, roleByCol, model.RoleDescription),
		rolePresent(sheet, r, roleByCol, model.RoleQuantity), rolePresent(sheet, r, roleByCol, model.RoleCode)
	unitPriceOK := numericRoleParses(sheet, r, roleByCol, model.RoleUnitPrice)
	totalPriceOK := numericRoleParses(sheet, r, roleByCol, model.RoleTotalPrice)

	if descPresent && (qtyPresent || codePresent) && (unitPriceOK || totalPriceOK) {
		errs := rowLocalValidationErrors(sheet, r, roleByCol)
		if len(errs) > 0 {
			return model.RowClassification{RowIndex: r, RowType: model.RowInvalidLineItem, Confidence: 0.7,
				Completeness: completeness, ValidationErrors: errs,
				Reasoning: []string{"looked like a line item but failed a required-field or numeric check"}}
		}
		level := hierarchicalLevel(firstNonEmpty)
		return model.RowClassification{RowIndex: r, RowType: model.RowPrimaryLineItem, Confidence: 0.85,
			Completeness: completeness, HierarchicalLevel: level,
			Reasoning: []string{"description present with quantity/code and a parseable price"}}
	}

	if descPresent || codePresent {
		errs := rowLocalValidationErrors(sheet, r, roleByCol)
		return model.RowClassification{RowIndex: r, RowType: model.RowInvalidLineItem, Confidence: 0.4,
			Completeness: completeness, ValidationErrors: errs,
			Reasoning: []string{"incomplete line item: missing quantity/code or no parseable price"}}
	}

	return model.RowClassification{RowIndex: r, RowType: model.RowNotesComments, Confidence: 0.3, Completeness: completeness,
		Reasoning: []string{"no structural signal matched; defaulted to notes/comments"}}
}

func rolePresent(sheet model.Sheet, row int, roleByCol map[int]model.ColumnRole, role model.ColumnRole) bool {
	for col, r := range roleByCol {
		if r == role && strings.TrimSpace(sheet.Cell(row, col)) != "" {
			return true
		}
	}
	return false
}

func numericRoleParses(sheet model.Sheet, row int, roleByCol map[int]model.ColumnRole, role model.ColumnRole) bool {
	for col, r := range roleByCol {
		if r != role {
			continue
		}
		cell := strings.TrimSpace(sheet.Cell(row, col))
		if cell == "" {
			continue
		}
		if _, err := numeric.ParseDecimalAuto(cell); err == nil {
			return true
		}
	}
	return false
}

// rowLocalValidationErrors reports only the row-local checks owned by the
// classifier: missing required fields and negative quantity. Cross-field
// mathematical consistency belongs to the validator (§4.5).
func rowLocalValidationErrors(sheet model.Sheet, row int, roleByCol map[int]model.ColumnRole) []string {
	var errs []string
	for col, role := range roleByCol {
		if !role.IsRequired() {
			continue
		}
		if strings.TrimSpace(sheet.Cell(row, col)) == "" {
			errs = append(errs, fmt.Sprintf("missing required field %q", role))
		}
	}

	for col, role := range roleByCol {
		if role != model.RoleQuantity {
			continue
		}
		cell := strings.TrimSpace(sheet.Cell(row, col))
		if cell == "" {
			continue
		}
		if d, err := numeric.ParseDecimalAuto(cell); err == nil && d.IsNegative() {
			errs = append(errs, "negative quantity")
		}
	}
	return errs
}

func sectionTitleOf(sheet model.Sheet, row int) string {
	for c := 0; c < sheet.ColCount(); c++ {
		if cell := strings.TrimSpace(sheet.Cell(row, c)); cell != "" {
			return cell
		}
	}
	return ""
}

// hierarchicalLevel derives a level from the leading numeric prefix of s
// (e.g. "1" -> 1, "1.2" -> 2, "1.2.3" -> 3). This is the chosen definition
// per §9's open question; indent-based inference is not implemented since
// the pipeline works from string cell matrices with no reliable indent
// signal once a source has flattened formatting.
func hierarchicalLevel(s string) *int {
	m := hierarchyPrefixRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	parts := strings.Split(m, ".")
	level := len(parts)
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return nil
		}
	}
	return &level
}
