package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// RoleKeywords maps a required role name to the keyword tokens (already
// lowercase) that hint at it in a header cell. It carries no weights.
type RoleKeywords map[string][]string

// Vocabulary bundles every keyword/token list the pipeline's detectors
// scan for: role keywords, section/aggregator tokens, known units, and
// abbreviation expansions used during header normalization.
type Vocabulary struct {
	// RoleKeywords lists, per required role, the substrings that hint at
	// that role appearing in a normalized header cell.
	RoleKeywords map[string][]string

	// Abbreviations maps a normalized abbreviation to its canonical
	// expansion, applied during header normalization (e.g. "qty" -> "quantity").
	Abbreviations map[string]string

	// SectionTokens are words that mark a row as a section/header break
	// (e.g. "section", "part", roman-numeral prefixes handled separately).
	SectionTokens []string

	// AggregatorTokens mark subtotal/total/contingency/tax rows.
	AggregatorTokens []string

	// SubtotalTokens vs TotalTokens distinguish section-scoped aggregation
	// from document-scoped aggregation (§4.4).
	SubtotalTokens []string
	TotalTokens    []string

	// UnitTokens are recognized unit-of-measure strings (§4.5 data-type check).
	UnitTokens []string

	// InfoKeyTokens mark metadata key/value rows (e.g. "project:", "date:").
	InfoKeyTokens []string

	// CurrencySymbols are the recognized leading currency symbols (§4.5).
	CurrencySymbols []string
}

// DefaultVocabulary returns the in-code hard defaults, grounded in common
// English/Portuguese construction BoQ terminology the way the teacher
// codebase's merchant/sniffer vocabularies are grounded in EU banking
// terminology.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		RoleKeywords: map[string][]string{
			"description": {"description", "particulars", "particular", "item description", "work description", "specification"},
			"quantity":    {"quantity", "qty", "qnty", "no of", "nos", "cantidad"},
			"unit_price":  {"unit price", "unit rate", "rate", "price per", "precio unitario"},
			"total_price": {"total", "amount", "total price", "total amount", "sum", "importe total"},
			"unit":        {"unit", "uom", "u/m", "unidad"},
			"code":        {"code", "item code", "item no", "ref", "reference", "codigo"},
		},
		Abbreviations: map[string]string{
			"qty":   "quantity",
			"qnty":  "quantity",
			"u/m":   "unit",
			"uom":   "unit",
			"desc":  "description",
			"amt":   "amount",
			"no.":   "number",
			"nos":   "quantity",
			"u.p.":  "unit price",
			"t.p.":  "total price",
		},
		SectionTokens:    []string{"section", "part", "division", "chapter", "bill no", "trade"},
		AggregatorTokens: []string{"subtotal", "sub-total", "sub total", "total", "contingency", "tax", "vat", "grand total", "carried forward", "brought forward"},
		SubtotalTokens:   []string{"subtotal", "sub-total", "sub total", "carried forward", "brought forward"},
		TotalTokens:      []string{"grand total", "total", "overall total", "final total"},
		UnitTokens: []string{
			"m2", "m²", "m3", "m³", "sq.m", "sqm", "cu.m", "cum", "kg", "ton", "tonne",
			"l", "ltr", "gal", "pcs", "pc", "nos", "no", "units", "unit", "m", "lm", "rm", "each",
		},
		InfoKeyTokens:   []string{"project:", "date:", "client:", "contractor:", "location:", "prepared by:", "currency:"},
		CurrencySymbols: []string{"$", "€", "£", "¥", "₹"},
	}
}

// CanonicalAliasTable maps a required-role name to the exact normalized
// header variants that resolve to it with fixed confidence 1.0, plus the
// raw (non-lowercased) headers collected via the column mapper's learning
// hook (§4.3's "insert the original header into the alias table").
type CanonicalAliasTable struct {
	Aliases map[string][]string `json:"aliases"` // role -> normalized variants
	Raw     map[string][]string `json:"raw"`     // role -> original-cased confirmed headers
}

// LoadAliasTable implements the first-run behavior from §6: user copy,
// then bundle default, then in-code hard defaults, in that order.
func LoadAliasTable(userPath, bundleDir string) (*CanonicalAliasTable, error) {
	if t, err := readAliasFile(userPath); err == nil {
		return t, nil
	}

	if bundleDir != "" {
		bundled := filepath.Join(bundleDir, "canonical_aliases.json")
		if t, err := readAliasFile(bundled); err == nil {
			if userPath != "" {
				_ = t.Save(userPath)
			}
			return t, nil
		}
	}

	t := hardDefaultAliasTable()
	if userPath != "" {
		if err := t.Save(userPath); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readAliasFile(path string) (*CanonicalAliasTable, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t CanonicalAliasTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Aliases == nil {
		t.Aliases = map[string][]string{}
	}
	if t.Raw == nil {
		t.Raw = map[string][]string{}
	}
	return &t, nil
}

// Save writes the alias table deterministically (sorted keys/values) to
// path, atomically (write to a temp sibling, then rename), matching the
// persistence discipline required for the category dictionary.
func (t *CanonicalAliasTable) Save(path string) error {
	sorted := CanonicalAliasTable{
		Aliases: make(map[string][]string, len(t.Aliases)),
		Raw:     make(map[string][]string, len(t.Raw)),
	}
	for role, variants := range t.Aliases {
		v := append([]string(nil), variants...)
		sort.Strings(v)
		sorted.Aliases[role] = v
	}
	for role, variants := range t.Raw {
		v := append([]string(nil), variants...)
		sort.Strings(v)
		sorted.Raw[role] = v
	}

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Resolve returns the role an exact normalized header resolves to via the
// alias table, if any.
func (t *CanonicalAliasTable) Resolve(normalizedHeader string) (string, bool) {
	for role, variants := range t.Aliases {
		for _, v := range variants {
			if v == normalizedHeader {
				return role, true
			}
		}
	}
	return "", false
}

// Learn adds normalizedHeader to Aliases and originalHeader to Raw for role,
// skipping values already present; callers persist via Save.
func (t *CanonicalAliasTable) Learn(role, normalizedHeader, originalHeader string) {
	if t.Aliases == nil {
		t.Aliases = map[string][]string{}
	}
	if t.Raw == nil {
		t.Raw = map[string][]string{}
	}
	if !containsStr(t.Aliases[role], normalizedHeader) {
		t.Aliases[role] = append(t.Aliases[role], normalizedHeader)
	}
	if !containsStr(t.Raw[role], originalHeader) {
		t.Raw[role] = append(t.Raw[role], originalHeader)
	}
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func hardDefaultAliasTable() *CanonicalAliasTable {
	return &CanonicalAliasTable{
		Aliases: map[string][]string{
			"description": {"description", "item description", "particulars"},
			"quantity":    {"quantity", "qty"},
			"unit_price":  {"unit price", "rate"},
			"total_price": {"total", "amount", "total amount"},
			"unit":        {"unit", "uom"},
			"code":        {"code", "item code"},
		},
		Raw: map[string][]string{},
	}
}
