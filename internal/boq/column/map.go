// Package column assigns each header column a semantic ColumnRole and
// enforces the per-sheet uniqueness invariant over the six required roles.
package column

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// roleWeights scales the base keyword-match score per role; the four
// roles that carry the line item's arithmetic are weighted higher than
// unit/code, which are useful but not load-bearing for validation.
var roleWeights = map[model.ColumnRole]float64{
	model.RoleDescription: 1.0,
	model.RoleQuantity:    1.0,
	model.RoleUnitPrice:   1.0,
	model.RoleTotalPrice:  1.0,
	model.RoleUnit:        0.8,
	model.RoleCode:        0.8,
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s\-.]`)

// Normalize lowercases, strips punctuation other than whitespace/dash/dot,
// collapses whitespace, and expands known abbreviations per §4.3.
func Normalize(header string, abbreviations map[string]string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = nonAlnumRe.ReplaceAllString(s, "")
	fields := strings.Fields(s)
	for i, f := range fields {
		if expanded, ok := abbreviations[f]; ok {
			fields[i] = expanded
		}
	}
	return strings.Join(fields, " ")
}

// Map assigns a ColumnRole to every header, per §4.3: canonical-alias exact
// match and LCS-ratio fuzzy alias match both resolve at confidence 1.0;
// everything else is scored by keyword base + positional + context bonus,
// then uniqueness is enforced across the six required roles.
func Map(headers []string, cfg *config.Config, aliases *config.CanonicalAliasTable) []model.ColumnMapping {
	width := len(headers)
	mappings := make([]model.ColumnMapping, width)

	for c, raw := range headers {
		normalized := Normalize(raw, cfg.Vocabulary.Abbreviations)
		mappings[c] = scoreColumn(raw, normalized, c, width, cfg, aliases)
	}

	enforceUniqueness(mappings, cfg)
	flagLowConfidence(mappings, cfg)

	return mappings
}

func scoreColumn(original, normalized string, col, width int, cfg *config.Config, aliases *config.CanonicalAliasTable) model.ColumnMapping {
	if aliases != nil {
		if role, ok := aliases.Resolve(normalized); ok {
			return model.ColumnMapping{
				ColumnIndex:      col,
				OriginalHeader:   original,
				NormalizedHeader: normalized,
				Role:             model.ColumnRole(role),
				Confidence:       1.0,
				IsRequired:       model.ColumnRole(role).IsRequired(),
				Reasoning:        []string{"exact canonical-alias match"},
			}
		}
		if role, score, ok := fuzzyAliasMatch(normalized, aliases, cfg.FuzzyAliasThreshold); ok {
			return model.ColumnMapping{
				ColumnIndex:      col,
				OriginalHeader:   original,
				NormalizedHeader: normalized,
				Role:             model.ColumnRole(role),
				Confidence:       1.0,
				IsRequired:       model.ColumnRole(role).IsRequired(),
				Reasoning:        []string{lcsReasonString(score, cfg.FuzzyAliasThreshold)},
			}
		}
	}

	scores := make([]model.RoleScore, 0, len(roleWeights))
	for role, weight := range roleWeights {
		base := baseScore(normalized, role, cfg.Vocabulary.RoleKeywords[string(role)], weight)
		if base == 0 {
			continue
		}
		positional := positionalBonus(role, col, width)
		context := contextBonus(role, col, width)
		total := base + positional + context
		if total > 1.0 {
			total = 1.0
		}
		scores = append(scores, model.RoleScore{Role: role, Score: total})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	if len(scores) == 0 {
		return model.ColumnMapping{
			ColumnIndex:      col,
			OriginalHeader:   original,
			NormalizedHeader: normalized,
			Role:             model.RoleRemarks,
			Confidence:       0,
			Reasoning:        []string{"no keyword match for any required role"},
		}
	}

	best := scores[0]
	return model.ColumnMapping{
		ColumnIndex:      col,
		OriginalHeader:   original,
		NormalizedHeader: normalized,
		Role:             best.Role,
		Confidence:       best.Score,
		Alternatives:     scores,
		IsRequired:       best.Role.IsRequired(),
		Reasoning:        []string{"scored by keyword base + positional + context bonus"},
	}
}

// baseScore is 0.6 * roleWeight for any keyword substring match, capped at
// 0.8.
func baseScore(normalized string, role model.ColumnRole, keywords []string, weight float64) float64 {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			score := 0.6 * weight
			if score > 0.8 {
				score = 0.8
			}
			return score
		}
	}
	return 0
}

// positionalBonus favors description on the left, total-ish roles on the
// right, and quantity/rate in the middle — up to 0.15.
func positionalBonus(role model.ColumnRole, col, width int) float64 {
	if width <= 1 {
		return 0
	}
	pos := float64(col) / float64(width-1) // 0 (left) .. 1 (right)

	switch role {
	case model.RoleDescription, model.RoleCode:
		return 0.15 * (1 - pos)
	case model.RoleTotalPrice:
		return 0.15 * pos
	case model.RoleQuantity, model.RoleUnitPrice, model.RoleUnit:
		// middle-favoring triangular bonus, peak at pos=0.5
		dist := pos - 0.5
		if dist < 0 {
			dist = -dist
		}
		return 0.15 * (1 - 2*dist)
	default:
		return 0
	}
}

// contextBonus adds up to 0.05 from the relationship between neighboring
// columns' likely roles: quantity typically follows description, total
// typically follows rate.
func contextBonus(role model.ColumnRole, col, width int) float64 {
	// Without another column's resolved role in hand at scoring time, we
	// approximate using only position: quantity in the second column (just
	// right of a presumed description-first layout) and total_price in
	// the rightmost column.
	switch role {
	case model.RoleQuantity:
		if col == 1 {
			return 0.05
		}
	case model.RoleTotalPrice:
		if col == width-1 {
			return 0.05
		}
	}
	return 0
}

// fuzzyAliasMatch tries every alias variant for every role and returns the
// best LCS-ratio match clearing threshold. fuzzysearch's Levenshtein-based
// rank is used only to order ties when two roles' LCS ratios are equal —
// it never substitutes for the LCS threshold itself, so the two remain
// separately testable per §9's design note.
func fuzzyAliasMatch(normalized string, aliases *config.CanonicalAliasTable, threshold float64) (string, float64, bool) {
	bestRole := ""
	bestScore := 0.0
	bestRank := 1 << 30 // lower is better; fuzzy.RankMatch returns -1 for "no match"

	for role, variants := range aliases.Aliases {
		for _, variant := range variants {
			score := LCSRatio(normalized, variant)
			if score < threshold {
				continue
			}
			rank := fuzzy.RankMatch(variant, normalized)
			if rank < 0 {
				rank = 1 << 29
			}
			if score > bestScore || (score == bestScore && rank < bestRank) {
				bestScore = score
				bestRole = role
				bestRank = rank
			}
		}
	}

	if bestRole == "" {
		return "", 0, false
	}
	return bestRole, bestScore, true
}

func lcsReasonString(score, threshold float64) string {
	if score >= threshold {
		return "fuzzy canonical-alias match via LCS ratio"
	}
	return "no fuzzy alias match"
}

// LCSRatio computes the longest-common-subsequence-based similarity ratio
// between a and b: 2*LCS(a,b) / (len(a)+len(b)), in [0,1]. This is kept
// distinct from fuzzysearch's Levenshtein-based scoring so header-alias
// matching and general fuzzy string matching can be tested in isolation.
func LCSRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcsLen := prev[lb]

	return 2 * float64(lcsLen) / float64(la+lb)
}

// enforceUniqueness keeps only the highest-confidence column per required
// role; losers are demoted to their best remaining alternative (≥0.3) or
// to remarks (score 0).
func enforceUniqueness(mappings []model.ColumnMapping, cfg *config.Config) {
	for _, role := range model.RequiredRoles {
		var holders []int
		for i, m := range mappings {
			if m.Role == role {
				holders = append(holders, i)
			}
		}
		if len(holders) <= 1 {
			continue
		}

		sort.SliceStable(holders, func(i, j int) bool {
			return mappings[holders[i]].Confidence > mappings[holders[j]].Confidence
		})

		for _, idx := range holders[1:] {
			demote(&mappings[idx], role)
		}
	}

	flagAmbiguity(mappings, cfg)
}

func demote(m *model.ColumnMapping, lostRole model.ColumnRole) {
	for _, alt := range m.Alternatives {
		if alt.Role == lostRole || alt.Score < 0.3 {
			continue
		}
		m.Role = alt.Role
		m.Confidence = alt.Score
		m.IsRequired = alt.Role.IsRequired()
		m.Reasoning = append(m.Reasoning, "demoted: higher-confidence column already holds "+string(lostRole))
		return
	}
	m.Role = model.RoleRemarks
	m.Confidence = 0
	m.IsRequired = false
	m.Reasoning = append(m.Reasoning, "demoted to remarks: higher-confidence column already holds "+string(lostRole)+" and no alternative ≥0.3 exists")
}

// flagAmbiguity appends a reasoning note (not a new field — the mapping
// aggregator reads Alternatives directly) whenever a column has ≥2
// alternatives within 0.1 of its top score and confidence < 0.7.
func flagAmbiguity(mappings []model.ColumnMapping, cfg *config.Config) {
	for i := range mappings {
		m := &mappings[i]
		if m.Confidence >= 0.7 || len(m.Alternatives) < 2 {
			continue
		}
		close := 0
		for _, alt := range m.Alternatives {
			if m.Confidence-alt.Score <= cfg.AmbiguityGap {
				close++
			}
		}
		if close >= 2 {
			m.Reasoning = append(m.Reasoning, "ambiguous: multiple roles score within the gap threshold")
		}
	}
}

func flagLowConfidence(mappings []model.ColumnMapping, cfg *config.Config) {
	for i := range mappings {
		if mappings[i].Confidence < cfg.ColumnConfidenceFloor {
			mappings[i].Reasoning = append(mappings[i].Reasoning, "below column-confidence floor; kept assigned but flagged")
		}
	}
}

// Confirm applies a user's confirmed mapping as a learning event: it returns
// a new mapping for role marked user_edited, leaving m untouched, and
// inserts the original header into the alias table for role. Callers
// persist the alias table via Save.
func Confirm(m model.ColumnMapping, aliases *config.CanonicalAliasTable, role model.ColumnRole) model.ColumnMapping {
	m.Role = role
	m.Confidence = 1.0
	m.UserEdited = true
	aliases.Learn(string(role), m.NormalizedHeader, m.OriginalHeader)
	return m
}
