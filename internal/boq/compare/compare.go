// Package compare matches line items between two already-mapped sheets
// (a "master" BoQ and a competing "offer") and reports the quantity/price
// deltas between matched rows.
package compare

import (
	"github.com/boqtools/boq-analyzer/internal/boq/column"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/numeric"
	"github.com/boqtools/boq-analyzer/pkg/config"
	"github.com/boqtools/boq-analyzer/pkg/money"
)

// IdentityKey is the tuple a line item is matched on: two rows align when
// Code matches exactly (if both non-empty), or when Description meets a
// similarity threshold AND Unit agrees.
type IdentityKey struct {
	Code        string
	Description string // normalized
	Unit        string // normalized
}

// ComparisonRow is one matched pair of line items.
type ComparisonRow struct {
	Key              IdentityKey
	MasterRowIndex   int
	OfferRowIndex    int
	MasterQuantity   string
	OfferQuantity    string
	MasterUnitPrice  string
	OfferUnitPrice   string
	MasterTotalPrice string
	OfferTotalPrice  string
	UnitPriceDelta   *money.Money
	TotalPriceDelta  *money.Money
	DeltaPct         float64
	MatchMethod      string
	MatchConfidence  float64
}

// AmbiguousMatch records an offer row whose normalized description (and
// unit) matched more than one remaining master row. Per §4.9 step 4 this is
// reported, not resolved automatically: none of the candidates are matched.
type AmbiguousMatch struct {
	OfferRowIndex    int
	CandidateMasters []int
}

// Summary rolls a ComparisonResult's rows up into headline counts and the
// aggregate value swing across every matched row.
type Summary struct {
	MatchedCount    int
	MasterOnlyCount int
	OfferOnlyCount  int
	AmbiguousCount  int
	TotalDelta      *money.Money
}

// ComparisonResult is the full outcome of comparing two sheets.
type ComparisonResult struct {
	Matched         []ComparisonRow
	UnmatchedMaster []int
	UnmatchedOffer  []int
	Ambiguous       []AmbiguousMatch
	Summary         Summary
}

type sheetView struct {
	sheet   model.Sheet
	columns []model.ColumnMapping
	rows    []model.RowClassification
	roles   map[model.ColumnRole]int
}

func newView(sheet model.Sheet, columns []model.ColumnMapping, rows []model.RowClassification) sheetView {
	roles := make(map[model.ColumnRole]int, len(columns))
	for _, c := range columns {
		if c.Role.IsRequired() {
			roles[c.Role] = c.ColumnIndex
		}
	}
	var items []model.RowClassification
	for _, r := range rows {
		if r.RowType == model.RowPrimaryLineItem {
			items = append(items, r)
		}
	}
	return sheetView{sheet: sheet, columns: columns, rows: items, roles: roles}
}

func (v sheetView) cell(rowIndex int, role model.ColumnRole) string {
	col, ok := v.roles[role]
	if !ok {
		return ""
	}
	return v.sheet.Cell(rowIndex, col)
}

func (v sheetView) key(rowIndex int) IdentityKey {
	return IdentityKey{
		Code:        column.Normalize(v.cell(rowIndex, model.RoleCode), nil),
		Description: column.Normalize(v.cell(rowIndex, model.RoleDescription), nil),
		Unit:        column.Normalize(v.cell(rowIndex, model.RoleUnit), nil),
	}
}

// Compare matches master line items against offer line items in passes,
// each operating only on rows the previous pass left unmatched:
//  1. exact code match
//  2. exact normalized-description match, requiring the same unit; an
//     offer row whose description+unit matches more than one remaining
//     master row is reported ambiguous instead of picked arbitrarily
//  3. fuzzy description match via LCS ratio (above the configured
//     threshold) with the same same-unit and ambiguity handling as pass 2
//  4. same relative position within the remaining unmatched rows, as a
//     last-resort structural fallback when descriptions were rewritten
//     beyond fuzzy-match range
//  5. whatever remains on either side is reported unmatched
func Compare(masterSheet model.Sheet, masterColumns []model.ColumnMapping, masterRows []model.RowClassification,
	offerSheet model.Sheet, offerColumns []model.ColumnMapping, offerRows []model.RowClassification, cfg *config.Config) ComparisonResult {

	master := newView(masterSheet, masterColumns, masterRows)
	offer := newView(offerSheet, offerColumns, offerRows)

	matchedMaster := make(map[int]bool)
	matchedOffer := make(map[int]bool)
	ambiguousMaster := make(map[int]bool)
	ambiguousOffer := make(map[int]bool)
	var matched []ComparisonRow
	var ambiguous []AmbiguousMatch

	// Pass 1: exact code.
	for _, mr := range master.rows {
		mKey := master.key(mr.RowIndex)
		if mKey.Code == "" {
			continue
		}
		for _, or := range offer.rows {
			if matchedOffer[or.RowIndex] {
				continue
			}
			if master.key(mr.RowIndex).Code == offer.key(or.RowIndex).Code {
				matched = append(matched, buildRow(master, offer, mr.RowIndex, or.RowIndex, "exact_code", 1.0, cfg))
				matchedMaster[mr.RowIndex] = true
				matchedOffer[or.RowIndex] = true
				break
			}
		}
	}

	// Pass 2: exact normalized description, same unit. Detect ambiguity
	// before committing a match.
	for _, or := range offer.rows {
		if matchedOffer[or.RowIndex] {
			continue
		}
		oKey := offer.key(or.RowIndex)
		if oKey.Description == "" {
			continue
		}
		var candidates []int
		for _, mr := range master.rows {
			if matchedMaster[mr.RowIndex] {
				continue
			}
			mKey := master.key(mr.RowIndex)
			if mKey.Description == oKey.Description && mKey.Unit == oKey.Unit {
				candidates = append(candidates, mr.RowIndex)
			}
		}
		switch len(candidates) {
		case 0:
			continue
		case 1:
			matched = append(matched, buildRow(master, offer, candidates[0], or.RowIndex, "exact_description", 1.0, cfg))
			matchedMaster[candidates[0]] = true
			matchedOffer[or.RowIndex] = true
		default:
			ambiguous = append(ambiguous, AmbiguousMatch{OfferRowIndex: or.RowIndex, CandidateMasters: candidates})
			ambiguousOffer[or.RowIndex] = true
			for _, c := range candidates {
				ambiguousMaster[c] = true
			}
		}
	}

	// Pass 3: fuzzy description via LCS ratio, same unit, same
	// multi-candidate ambiguity handling as pass 2.
	for _, or := range offer.rows {
		if matchedOffer[or.RowIndex] || ambiguousOffer[or.RowIndex] {
			continue
		}
		oKey := offer.key(or.RowIndex)
		if oKey.Description == "" {
			continue
		}
		var candidates []int
		var bestScore float64
		for _, mr := range master.rows {
			if matchedMaster[mr.RowIndex] || ambiguousMaster[mr.RowIndex] {
				continue
			}
			mKey := master.key(mr.RowIndex)
			if mKey.Unit != oKey.Unit {
				continue
			}
			score := column.LCSRatio(oKey.Description, mKey.Description)
			if score < cfg.ComparatorSimilarityThreshold {
				continue
			}
			candidates = append(candidates, mr.RowIndex)
			if score > bestScore {
				bestScore = score
			}
		}
		switch len(candidates) {
		case 0:
			continue
		case 1:
			matched = append(matched, buildRow(master, offer, candidates[0], or.RowIndex, "fuzzy_description", bestScore, cfg))
			matchedMaster[candidates[0]] = true
			matchedOffer[or.RowIndex] = true
		default:
			ambiguous = append(ambiguous, AmbiguousMatch{OfferRowIndex: or.RowIndex, CandidateMasters: candidates})
			ambiguousOffer[or.RowIndex] = true
			for _, c := range candidates {
				ambiguousMaster[c] = true
			}
		}
	}

	// Pass 4: positional fallback over what remains (excluding ambiguous
	// rows, which are reported rather than force-matched), in original
	// row order.
	var remainingMaster, remainingOffer []int
	for _, mr := range master.rows {
		if !matchedMaster[mr.RowIndex] && !ambiguousMaster[mr.RowIndex] {
			remainingMaster = append(remainingMaster, mr.RowIndex)
		}
	}
	for _, or := range offer.rows {
		if !matchedOffer[or.RowIndex] && !ambiguousOffer[or.RowIndex] {
			remainingOffer = append(remainingOffer, or.RowIndex)
		}
	}
	n := len(remainingMaster)
	if len(remainingOffer) < n {
		n = len(remainingOffer)
	}
	for i := 0; i < n; i++ {
		matched = append(matched, buildRow(master, offer, remainingMaster[i], remainingOffer[i], "positional_fallback", 0.3, cfg))
		matchedMaster[remainingMaster[i]] = true
		matchedOffer[remainingOffer[i]] = true
	}

	result := ComparisonResult{Matched: matched, Ambiguous: ambiguous}
	for _, mr := range master.rows {
		if !matchedMaster[mr.RowIndex] && !ambiguousMaster[mr.RowIndex] {
			result.UnmatchedMaster = append(result.UnmatchedMaster, mr.RowIndex)
		}
	}
	for _, or := range offer.rows {
		if !matchedOffer[or.RowIndex] && !ambiguousOffer[or.RowIndex] {
			result.UnmatchedOffer = append(result.UnmatchedOffer, or.RowIndex)
		}
	}
	result.Summary = summarize(result)
	return result
}

// summarize rolls the comparison up into headline counts and the total
// value swing across matched rows (§3's ComparisonResult.summary).
func summarize(result ComparisonResult) Summary {
	total := money.Zero(money.DefaultCurrency)
	for _, row := range result.Matched {
		if row.TotalPriceDelta == nil {
			continue
		}
		if sum, err := total.Add(row.TotalPriceDelta); err == nil {
			total = sum
		}
	}
	return Summary{
		MatchedCount:    len(result.Matched),
		MasterOnlyCount: len(result.UnmatchedMaster),
		OfferOnlyCount:  len(result.UnmatchedOffer),
		AmbiguousCount:  len(result.Ambiguous),
		TotalDelta:      total,
	}
}

func buildRow(master, offer sheetView, masterRow, offerRow int, method string, confidence float64, cfg *config.Config) ComparisonRow {
	cr := ComparisonRow{
		Key:              master.key(masterRow),
		MasterRowIndex:   masterRow,
		OfferRowIndex:    offerRow,
		MasterQuantity:   master.cell(masterRow, model.RoleQuantity),
		OfferQuantity:    offer.cell(offerRow, model.RoleQuantity),
		MasterUnitPrice:  master.cell(masterRow, model.RoleUnitPrice),
		OfferUnitPrice:   offer.cell(offerRow, model.RoleUnitPrice),
		MasterTotalPrice: master.cell(masterRow, model.RoleTotalPrice),
		OfferTotalPrice:  offer.cell(offerRow, model.RoleTotalPrice),
		MatchMethod:      method,
		MatchConfidence:  confidence,
	}

	mTotal, mErr := parseMoney(cr.MasterTotalPrice)
	oTotal, oErr := parseMoney(cr.OfferTotalPrice)
	if mErr == nil && oErr == nil {
		if delta, err := oTotal.Subtract(mTotal); err == nil {
			cr.TotalPriceDelta = delta
			cr.DeltaPct = delta.PercentageOf(mTotal).InexactFloat64()
		}
	}

	mUnit, mErr := parseMoney(cr.MasterUnitPrice)
	oUnit, oErr := parseMoney(cr.OfferUnitPrice)
	if mErr == nil && oErr == nil {
		if delta, err := oUnit.Subtract(mUnit); err == nil {
			cr.UnitPriceDelta = delta
		}
	}

	return cr
}

func parseMoney(cell string) (*money.Money, error) {
	if cell == "" {
		return money.Zero(money.DefaultCurrency), nil
	}
	return money.NewFromString(cell, money.DefaultCurrency, numeric.AmountFormatHint(cell) > 0)
}
