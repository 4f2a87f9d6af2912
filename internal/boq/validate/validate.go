// Package validate runs the mathematical, data-type, and business-rule
// checks over a sheet's classified rows and turns the per-sheet issue list
// into the score the mapping aggregator folds into overall confidence.
package validate

import (
	"fmt"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/numeric"
	"github.com/boqtools/boq-analyzer/pkg/config"
	"github.com/boqtools/boq-analyzer/pkg/money"
)

// Validate runs every check (§4.5) against sheet's line items and returns
// the combined issue list, row order preserved.
func Validate(sheet model.Sheet, columns []model.ColumnMapping, rows []model.RowClassification, currency string, cfg *config.Config) []model.ValidationIssue {
	colByRole := make(map[model.ColumnRole]int, len(columns))
	for _, c := range columns {
		if c.Role.IsRequired() {
			colByRole[c.Role] = c.ColumnIndex
		}
	}

	var issues []model.ValidationIssue
	seenCodes := make(map[string]int)        // normalized code -> first row index seen
	seenDescriptions := make(map[string]int) // normalized description -> first row index seen

	for _, rc := range rows {
		if rc.RowType != model.RowPrimaryLineItem && rc.RowType != model.RowInvalidLineItem {
			continue
		}
		issues = append(issues, dataTypeChecks(sheet, rc.RowIndex, colByRole)...)
		issues = append(issues, mathematicalChecks(sheet, rc.RowIndex, colByRole, currency, cfg)...)
		issues = append(issues, businessRuleChecks(sheet, rc.RowIndex, colByRole, seenCodes, seenDescriptions)...)
	}

	return issues
}

// Score applies the per-sheet formula (§4.6): 1.0 minus a fixed penalty per
// error and warning, floored at 0.
func Score(issues []model.ValidationIssue) float64 {
	errors, warnings := CountBySeverity(issues)
	score := 1.0 - 0.10*float64(errors) - 0.02*float64(warnings)
	if score < 0 {
		score = 0
	}
	return score
}

// CountBySeverity returns the number of error- and warning-severity issues;
// info-severity issues count toward neither.
func CountBySeverity(issues []model.ValidationIssue) (errors, warnings int) {
	for _, iss := range issues {
		switch iss.Severity {
		case model.SeverityError:
			errors++
		case model.SeverityWarning:
			warnings++
		}
	}
	return
}

func cellFor(sheet model.Sheet, row int, colByRole map[model.ColumnRole]int, role model.ColumnRole) (string, int, bool) {
	idx, ok := colByRole[role]
	if !ok {
		return "", 0, false
	}
	return sheet.Cell(row, idx), idx, true
}

func dataTypeChecks(sheet model.Sheet, row int, colByRole map[model.ColumnRole]int) []model.ValidationIssue {
	var issues []model.ValidationIssue

	if qty, idx, ok := cellFor(sheet, row, colByRole, model.RoleQuantity); ok && qty != "" {
		if d, err := numeric.ParseDecimalAuto(qty); err != nil {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationDataType, Severity: model.SeverityError,
				Message: "quantity is not a recognizable number", Actual: qty,
			})
		} else if d.IsNegative() {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationDataType, Severity: model.SeverityError,
				Message: "quantity is negative", Actual: qty,
			})
		}
	}

	for _, role := range []model.ColumnRole{model.RoleUnitPrice, model.RoleTotalPrice} {
		cell, idx, ok := cellFor(sheet, row, colByRole, role)
		if !ok || cell == "" {
			continue
		}
		if d, err := numeric.ParseDecimalAuto(cell); err != nil {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationDataType, Severity: model.SeverityError,
				Message: fmt.Sprintf("%s is not a recognizable currency amount", role), Actual: cell,
			})
		} else if d.IsNegative() {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationDataType, Severity: model.SeverityError,
				Message: fmt.Sprintf("%s is negative", role), Actual: cell,
			})
		}
	}

	if unit, idx, ok := cellFor(sheet, row, colByRole, model.RoleUnit); ok && unit != "" {
		if !isKnownUnit(unit) {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationDataType, Severity: model.SeverityWarning,
				Message: "unit of measure not recognized", Actual: unit,
			})
		}
	}

	return issues
}

var knownUnits = map[string]bool{
	"m2": true, "m²": true, "m3": true, "m³": true, "sq.m": true, "sqm": true, "cu.m": true, "cum": true,
	"kg": true, "ton": true, "tonne": true, "l": true, "ltr": true, "gal": true, "pcs": true, "pc": true,
	"nos": true, "no": true, "units": true, "unit": true, "m": true, "lm": true, "rm": true, "each": true,
}

func isKnownUnit(raw string) bool { return knownUnits[normalizeUnit(raw)] }

func normalizeUnit(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

// mathematicalChecks validates unit_price * quantity == total_price within
// the configured tolerance, using Money so the comparison never drifts on
// floating point.
func mathematicalChecks(sheet model.Sheet, row int, colByRole map[model.ColumnRole]int, currency string, cfg *config.Config) []model.ValidationIssue {
	qtyCell, _, hasQty := cellFor(sheet, row, colByRole, model.RoleQuantity)
	priceCell, priceIdx, hasPrice := cellFor(sheet, row, colByRole, model.RoleUnitPrice)
	totalCell, totalIdx, hasTotal := cellFor(sheet, row, colByRole, model.RoleTotalPrice)

	if !hasQty || !hasPrice || !hasTotal || qtyCell == "" || priceCell == "" || totalCell == "" {
		return nil
	}

	qty, err := numeric.ParseDecimalAuto(qtyCell)
	if err != nil {
		return nil // already reported by dataTypeChecks
	}
	unitPrice, err := money.NewFromString(priceCell, currency, numeric.AmountFormatHint(priceCell) > 0)
	if err != nil {
		return nil
	}
	total, err := money.NewFromString(totalCell, currency, numeric.AmountFormatHint(totalCell) > 0)
	if err != nil {
		return nil
	}

	expected := unitPrice.MultiplyDecimal(qty)
	if expected.WithinTolerance(total, cfg.TolerancePct, cfg.ToleranceAbs) {
		return nil
	}

	return []model.ValidationIssue{{
		RowIndex: row, ColumnIndex: &totalIdx, Kind: model.ValidationMathematical, Severity: model.SeverityError,
		Message:    "total_price does not equal unit_price * quantity within tolerance",
		Expected:   expected.Display(),
		Actual:     total.Display(),
		Suggestion: fmt.Sprintf("expected %s (column %d), got %s", expected.Display(), priceIdx, total.Display()),
	}}
}

// businessRuleChecks flags duplicate item codes, duplicate descriptions,
// and descriptions too short to be meaningful.
func businessRuleChecks(sheet model.Sheet, row int, colByRole map[model.ColumnRole]int, seenCodes, seenDescriptions map[string]int) []model.ValidationIssue {
	var issues []model.ValidationIssue

	if code, idx, ok := cellFor(sheet, row, colByRole, model.RoleCode); ok && code != "" {
		norm := normalizeUnit(code)
		if first, dup := seenCodes[norm]; dup {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationBusinessRule, Severity: model.SeverityWarning,
				Message: fmt.Sprintf("duplicate item code also used at row %d", first), Actual: code,
			})
		} else {
			seenCodes[norm] = row
		}
	}

	if desc, idx, ok := cellFor(sheet, row, colByRole, model.RoleDescription); ok {
		trimmed := len([]rune(desc))
		if trimmed == 0 {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationBusinessRule, Severity: model.SeverityError,
				Message: "description is empty",
			})
		} else if trimmed < 3 {
			issues = append(issues, model.ValidationIssue{
				RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationBusinessRule, Severity: model.SeverityWarning,
				Message: "description is suspiciously short", Actual: desc,
			})
		}

		if norm := normalizeUnit(desc); norm != "" {
			if first, dup := seenDescriptions[norm]; dup {
				issues = append(issues, model.ValidationIssue{
					RowIndex: row, ColumnIndex: &idx, Kind: model.ValidationBusinessRule, Severity: model.SeverityWarning,
					Message: fmt.Sprintf("duplicate description also used at row %d", first), Actual: desc,
				})
			} else {
				seenDescriptions[norm] = row
			}
		}
	}

	return issues
}
