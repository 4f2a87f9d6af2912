// Package sheetclass labels each sheet in a workbook as boq_main, summary,
// preliminaries, reference, mixed, or unknown, before header/column
// detection runs on it.
package sheetclass

import (
	"strings"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/numeric"
	"github.com/boqtools/boq-analyzer/internal/boq/vocab"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// typeHints bundles the name/content keyword vocabulary used to score one
// candidate SheetType, plus the minimum confidence it needs to win.
type typeHints struct {
	nameKeywords    []string
	contentKeywords []string
	minConfidence   float64
}

func defaultHints(vocabulary config.Vocabulary) map[model.SheetType]typeHints {
	roleWords := flattenRoleKeywords(vocabulary.RoleKeywords)
	return map[model.SheetType]typeHints{
		model.SheetBoQMain: {
			nameKeywords:    []string{"boq", "bill of quantities", "bq", "pricing", "schedule"},
			contentKeywords: roleWords,
			minConfidence:   0.4,
		},
		model.SheetSummary: {
			nameKeywords:    []string{"summary", "recap", "recapitulation", "grand total"},
			contentKeywords: vocabulary.AggregatorTokens,
			minConfidence:   0.35,
		},
		model.SheetPreliminaries: {
			nameKeywords:    []string{"preliminaries", "prelims", "general conditions", "p&g"},
			contentKeywords: []string{"preliminaries", "general conditions", "mobilization", "mobilisation"},
			minConfidence:   0.3,
		},
		model.SheetReference: {
			nameKeywords:    []string{"reference", "notes", "legend", "abbreviations", "instructions"},
			contentKeywords: []string{"note", "legend", "abbreviation", "instructions"},
			minConfidence:   0.25,
		},
	}
}

func flattenRoleKeywords(roleKeywords map[string][]string) []string {
	var out []string
	for _, words := range roleKeywords {
		out = append(out, words...)
	}
	return out
}

// Classify assigns sheet a SheetType, confidence, and reasoning trail per
// §4.1's additive scoring: keyword match 0.3, numeric-cell ratio 0.4,
// pattern detection 0.3, with sheet-name keyword hits weighted 2x content
// hits. Each candidate type is scored independently; the winner is the
// highest-scoring type that clears its own minimum confidence, otherwise
// unknown.
func Classify(sheet model.Sheet, cfg *config.Config) (model.SheetType, float64, []string) {
	aggMatcher := vocab.NewMatcher(cfg.Vocabulary.AggregatorTokens)
	numericRatio, reasoningNumeric := numericCellRatio(sheet)
	patternScore, reasoningPattern := patternSignal(sheet, aggMatcher)

	hints := defaultHints(cfg.Vocabulary)
	bestType := model.SheetUnknown
	bestScore := 0.0
	var bestReasoning []string

	for sheetType, h := range hints {
		keywordScore, kwReasoning := keywordMatchScore(sheet, h)
		score := 0.3*keywordScore + 0.4*numericRatio + 0.3*patternScore
		if score < h.minConfidence {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestType = sheetType
			bestReasoning = append([]string{}, kwReasoning...)
			bestReasoning = append(bestReasoning, reasoningNumeric, reasoningPattern)
		}
	}

	if bestType == model.SheetUnknown {
		return model.SheetUnknown, 0, []string{"no candidate type reached its minimum confidence"}
	}

	// Mixed: a runner-up within 0.1 of the winner signals the sheet
	// genuinely blends two purposes (e.g. BoQ rows with an embedded
	// summary block).
	for sheetType, h := range hints {
		if sheetType == bestType {
			continue
		}
		keywordScore, _ := keywordMatchScore(sheet, h)
		score := 0.3*keywordScore + 0.4*numericRatio + 0.3*patternScore
		if score >= h.minConfidence && bestScore-score < 0.1 {
			return model.SheetMixed, bestScore, append(bestReasoning, "runner-up type within 0.1 of the winner")
		}
	}

	return bestType, bestScore, bestReasoning
}

func keywordMatchScore(sheet model.Sheet, h typeHints) (float64, []string) {
	nameLower := strings.ToLower(sheet.Name)
	nameHits := 0
	for _, kw := range h.nameKeywords {
		if strings.Contains(nameLower, kw) {
			nameHits++
		}
	}

	contentMatcher := vocab.NewMatcher(h.contentKeywords)
	contentHits := 0
	rows := sheet.Cells
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	for r := 0; r < limit; r++ {
		for _, cell := range rows[r] {
			if cell == "" {
				continue
			}
			contentHits += contentMatcher.Count(cell)
		}
	}

	weighted := float64(nameHits)*2 + float64(contentHits)
	expected := float64(len(h.nameKeywords)*2 + len(h.contentKeywords))
	if expected == 0 {
		return 0, nil
	}
	score := weighted / expected
	if score > 1 {
		score = 1
	}

	reasoning := []string{}
	if nameHits > 0 {
		reasoning = append(reasoning, "sheet name matched type keywords")
	}
	if contentHits > 0 {
		reasoning = append(reasoning, "sheet content matched type vocabulary")
	}
	return score, reasoning
}

// numericCellRatio returns the fraction of non-empty cells across the
// sheet's first 50 rows that classify as any numeric Kind.
func numericCellRatio(sheet model.Sheet) (float64, string) {
	limit := sheet.RowCount()
	if limit > 50 {
		limit = 50
	}
	total := 0
	numericCount := 0
	for r := 0; r < limit; r++ {
		for _, cell := range sheet.Cells[r] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			total++
			if numeric.IsNumeric(numeric.Classify(cell)) {
				numericCount++
			}
		}
	}
	if total == 0 {
		return 0, "no non-empty cells to score"
	}
	ratio := float64(numericCount) / float64(total)
	return ratio, "numeric-cell ratio computed over first 50 rows"
}

// patternSignal fires on financial aggregator tokens, a header-like first
// row with consistent row widths below it, and regular empty-row section
// breaks.
func patternSignal(sheet model.Sheet, aggMatcher *vocab.Matcher) (float64, string) {
	signals := 0.0
	reasons := []string{}

	hasAggregator := false
	limit := sheet.RowCount()
	if limit > 50 {
		limit = 50
	}
	for r := 0; r < limit; r++ {
		for _, cell := range sheet.Cells[r] {
			if aggMatcher.MatchAny(cell) {
				hasAggregator = true
			}
		}
	}
	if hasAggregator {
		signals += 0.4
		reasons = append(reasons, "aggregator tokens present")
	}

	if sheet.RowCount() >= 2 {
		firstWidth := countNonEmpty(sheet.Cells[0])
		consistent := true
		for r := 1; r < min(sheet.RowCount(), 10); r++ {
			if countNonEmpty(sheet.Cells[r]) < firstWidth/2 {
				consistent = false
				break
			}
		}
		if firstWidth > 0 && consistent {
			signals += 0.3
			reasons = append(reasons, "header-like first row with consistent widths below")
		}
	}

	emptyRows := 0
	for r := 0; r < limit; r++ {
		if countNonEmpty(sheet.Cells[r]) == 0 {
			emptyRows++
		}
	}
	if limit > 0 && float64(emptyRows)/float64(limit) > 0.05 && float64(emptyRows)/float64(limit) < 0.3 {
		signals += 0.3
		reasons = append(reasons, "regular empty-row section breaks detected")
	}

	if signals > 1 {
		signals = 1
	}
	reason := "no strong structural pattern detected"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return signals, reason
}

func countNonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
