// Package header locates the row most likely to be a sheet's header row,
// running four independent detectors per candidate and keeping whichever
// produced the highest confidence.
package header

import (
	"fmt"
	"strings"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/numeric"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

type candidate struct {
	confidence float64
	method     model.HeaderMethod
	reasoning  []string
	isMerged   bool
}

// Locate searches the first cfg.HeaderSearchRows rows (capped at
// cfg.HeaderSearchRowsMax) for the header row, per §4.2.
func Locate(sheet model.Sheet, cfg *config.Config) model.HeaderInfo {
	searchRows := cfg.HeaderSearchRows
	if searchRows > cfg.HeaderSearchRowsMax {
		searchRows = cfg.HeaderSearchRowsMax
	}
	if searchRows > sheet.RowCount() {
		searchRows = sheet.RowCount()
	}

	best := -1
	var bestCandidate candidate

	for r := 0; r < searchRows; r++ {
		c := bestDetectorFor(sheet, r, cfg)
		if c.confidence > bestCandidate.confidence {
			bestCandidate = c
			best = r
		}
	}

	if best < 0 {
		return syntheticFallback(sheet)
	}

	return model.HeaderInfo{
		RowIndex:   best,
		Confidence: bestCandidate.confidence,
		Method:     bestCandidate.method,
		Reasoning:  bestCandidate.reasoning,
		Headers:    normalizedRow(sheet, best),
		IsMerged:   bestCandidate.isMerged,
	}
}

func bestDetectorFor(sheet model.Sheet, row int, cfg *config.Config) candidate {
	detectors := []candidate{
		keywordDetector(sheet, row, cfg),
		dataPatternDetector(sheet, row),
		positionalDetector(sheet, row, cfg),
		mergedDetector(sheet, row),
	}

	best := candidate{}
	for _, d := range detectors {
		if d.confidence > best.confidence {
			best = d
		}
	}
	return best
}

// keywordDetector sums role-keyword matches across the row's cells,
// normalized by row width; accepts at ≥0.3.
func keywordDetector(sheet model.Sheet, row int, cfg *config.Config) candidate {
	width := sheet.ColCount()
	if width == 0 {
		return candidate{}
	}

	matches := 0
	for c := 0; c < width; c++ {
		cell := normalizeHeaderCell(sheet.Cell(row, c))
		if cell == "" {
			continue
		}
		for _, keywords := range cfg.Vocabulary.RoleKeywords {
			if containsAny(cell, keywords) {
				matches++
				break
			}
		}
	}

	score := float64(matches) / float64(width)
	if score < 0.3 {
		return candidate{}
	}
	return candidate{
		confidence: score,
		method:     model.HeaderMethodKeyword,
		reasoning:  []string{fmt.Sprintf("%d of %d cells matched role keywords", matches, width)},
	}
}

// dataPatternDetector fires when the candidate row is mostly text while the
// next 1-3 rows contain numerics/currency; accepts at ≥0.5.
func dataPatternDetector(sheet model.Sheet, row int) candidate {
	textRatio := textRatioOf(sheet, row)
	if textRatio == 0 {
		return candidate{}
	}

	followingNumeric := 0.0
	count := 0
	for r := row + 1; r <= row+3 && r < sheet.RowCount(); r++ {
		followingNumeric += numericRatioOf(sheet, r)
		count++
	}
	if count == 0 {
		return candidate{}
	}
	followingNumeric /= float64(count)
	if followingNumeric == 0 {
		return candidate{}
	}

	score := (textRatio + followingNumeric) / 2
	if score < 0.5 {
		return candidate{}
	}
	return candidate{
		confidence: score,
		method:     model.HeaderMethodDataPattern,
		reasoning:  []string{"candidate row is text-heavy, followed by numeric data rows"},
	}
}

// positionalDetector checks that the left cell looks description-like, the
// right cell looks total-like, and middle cells look quantity/rate-like;
// accepts at ≥0.4.
func positionalDetector(sheet model.Sheet, row int, cfg *config.Config) candidate {
	width := sheet.ColCount()
	if width < 2 {
		return candidate{}
	}

	score := 0.0
	reasoning := []string{}

	left := normalizeHeaderCell(sheet.Cell(row, 0))
	if containsAny(left, cfg.Vocabulary.RoleKeywords["description"]) {
		score += 0.4
		reasoning = append(reasoning, "left cell looks description-like")
	}

	right := normalizeHeaderCell(sheet.Cell(row, width-1))
	if containsAny(right, cfg.Vocabulary.RoleKeywords["total_price"]) {
		score += 0.4
		reasoning = append(reasoning, "right cell looks total-like")
	}

	for c := 1; c < width-1; c++ {
		cell := normalizeHeaderCell(sheet.Cell(row, c))
		if containsAny(cell, cfg.Vocabulary.RoleKeywords["quantity"]) || containsAny(cell, cfg.Vocabulary.RoleKeywords["unit_price"]) {
			score += 0.2
			reasoning = append(reasoning, "middle cells look quantity/rate-like")
			break
		}
	}

	if score < 0.4 {
		return candidate{}
	}
	return candidate{confidence: score, method: model.HeaderMethodPositional, reasoning: reasoning}
}

// mergedDetector fires when empty cells are interleaved with content in the
// candidate row and the following row is markedly richer; accepts at ≥0.4.
func mergedDetector(sheet model.Sheet, row int) candidate {
	width := sheet.ColCount()
	if width == 0 || row+1 >= sheet.RowCount() {
		return candidate{}
	}

	nonEmpty := countNonEmptyCells(sheet, row)
	nextNonEmpty := countNonEmptyCells(sheet, row+1)
	if nonEmpty == 0 || nonEmpty >= width {
		return candidate{}
	}

	interleaved := hasInterleavedEmpty(sheet, row)
	if !interleaved {
		return candidate{}
	}

	richer := float64(nextNonEmpty) > float64(nonEmpty)*1.3
	score := float64(nonEmpty) / float64(width)
	if richer {
		score += 0.2
	}
	if score < 0.4 {
		return candidate{}
	}
	return candidate{
		confidence: score,
		method:     model.HeaderMethodMerged,
		reasoning:  []string{"sparse row interleaved with content, followed by a richer row"},
		isMerged:   true,
	}
}

func hasInterleavedEmpty(sheet model.Sheet, row int) bool {
	width := sheet.ColCount()
	sawEmpty, sawContent, transitions := false, false, 0
	for c := 0; c < width; c++ {
		empty := strings.TrimSpace(sheet.Cell(row, c)) == ""
		if c > 0 {
			prevEmpty := strings.TrimSpace(sheet.Cell(row, c-1)) == ""
			if empty != prevEmpty {
				transitions++
			}
		}
		if empty {
			sawEmpty = true
		} else {
			sawContent = true
		}
	}
	return sawEmpty && sawContent && transitions >= 2
}

func syntheticFallback(sheet model.Sheet) model.HeaderInfo {
	for r := 0; r < sheet.RowCount(); r++ {
		if countNonEmptyCells(sheet, r) > 0 {
			return model.HeaderInfo{
				RowIndex:   r,
				Confidence: 0.1,
				Method:     model.HeaderMethodKeyword,
				Reasoning:  []string{"synthetic fallback: first non-empty row, no detector qualified"},
				Headers:    normalizedRow(sheet, r),
			}
		}
	}
	return model.HeaderInfo{RowIndex: 0, Confidence: 0.1, Method: model.HeaderMethodKeyword,
		Reasoning: []string{"synthetic fallback: sheet has no non-empty rows"}}
}

func normalizedRow(sheet model.Sheet, row int) []string {
	width := sheet.ColCount()
	out := make([]string, width)
	for c := 0; c < width; c++ {
		out[c] = normalizeHeaderCell(sheet.Cell(row, c))
	}
	return out
}

func normalizeHeaderCell(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func countNonEmptyCells(sheet model.Sheet, row int) int {
	n := 0
	for c := 0; c < sheet.ColCount(); c++ {
		if strings.TrimSpace(sheet.Cell(row, c)) != "" {
			n++
		}
	}
	return n
}

func textRatioOf(sheet model.Sheet, row int) float64 {
	width := sheet.ColCount()
	if width == 0 {
		return 0
	}
	nonEmpty, text := 0, 0
	for c := 0; c < width; c++ {
		cell := sheet.Cell(row, c)
		if strings.TrimSpace(cell) == "" {
			continue
		}
		nonEmpty++
		if !numeric.IsNumeric(numeric.Classify(cell)) {
			text++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	return float64(text) / float64(nonEmpty)
}

func numericRatioOf(sheet model.Sheet, row int) float64 {
	width := sheet.ColCount()
	if width == 0 {
		return 0
	}
	nonEmpty, numericCells := 0, 0
	for c := 0; c < width; c++ {
		cell := sheet.Cell(row, c)
		if strings.TrimSpace(cell) == "" {
			continue
		}
		nonEmpty++
		if numeric.IsNumeric(numeric.Classify(cell)) {
			numericCells++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	return float64(numericCells) / float64(nonEmpty)
}
