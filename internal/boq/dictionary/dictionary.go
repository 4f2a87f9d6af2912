// Package dictionary is the persistent category lookup the categorization
// orchestrator consults and updates: an exact/fuzzy description-to-category
// map backed by a JSON file, saved atomically and backed up before every
// destructive change.
package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/boqtools/boq-analyzer/internal/boq/boqerr"
	"github.com/boqtools/boq-analyzer/internal/boq/column"
)

// CategoryMapping is one learned description -> category association.
type CategoryMapping struct {
	Description         string    `json:"description"` // normalized
	Category            string    `json:"category"`
	Confidence          float64   `json:"confidence"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
	Source              string    `json:"source"` // "manual", "learned", "imported"
	UsageCount          int       `json:"usage_count"`
	Notes               string    `json:"notes,omitempty"`
	OriginalDescription string    `json:"original_description,omitempty"`
}

// CategoryDictionary is the full set of mappings, keyed by normalized
// description for O(1) exact lookup. categories is the genuinely stored
// category set: it holds every category explicitly inserted with
// InsertCategory, independent of whether any mapping currently references
// it. The rest of the visible set (categories currently referenced by a
// mapping) is derived live so it prunes itself the moment the last mapping
// referencing it is removed or renamed away.
type CategoryDictionary struct {
	path       string
	mappings   map[string]CategoryMapping
	categories map[string]bool
}

// document is the on-disk shape from §6: top-level mappings/categories/
// metadata sections, unknown fields ignored on read.
type document struct {
	Mappings   []CategoryMapping `json:"mappings"`
	Categories []string          `json:"categories"`
	Metadata   metadata          `json:"metadata"`
}

type metadata struct {
	MappingCount  int       `json:"mapping_count"`
	CategoryCount int       `json:"category_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Load reads the dictionary at path, or returns an empty dictionary if the
// file does not yet exist.
func Load(path string) (*CategoryDictionary, error) {
	d := &CategoryDictionary{path: path, mappings: map[string]CategoryMapping{}, categories: map[string]bool{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Load", "reading dictionary file", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Load", "parsing dictionary file", err)
	}
	for _, m := range doc.Mappings {
		d.mappings[m.Description] = m
	}
	for _, c := range doc.Categories {
		d.categories[c] = true
	}
	return d, nil
}

// Save writes the dictionary atomically (temp file then rename). Mappings
// are sorted by normalized description and categories sorted lexically for
// a deterministic diff, per §6's "writes are deterministic" contract.
func (d *CategoryDictionary) Save() error {
	doc := document{
		Mappings:   d.ListMappings(),
		Categories: d.Categories(),
	}
	doc.Metadata = metadata{
		MappingCount:  len(doc.Mappings),
		CategoryCount: len(doc.Categories),
		LastUpdated:   time.Now().UTC(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Save", "encoding dictionary", err)
	}

	dir := filepath.Dir(d.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Save", "creating dictionary directory", err)
		}
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Save", "writing dictionary temp file", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.Save", "renaming dictionary temp file", err)
	}
	return nil
}

// BackupCurrentFile copies the on-disk dictionary to a timestamped sibling
// before a destructive batch operation (rename/delete), so it can be
// restored via RestoreBackup.
func (d *CategoryDictionary) BackupCurrentFile(now time.Time) (string, error) {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.BackupCurrentFile", "reading dictionary for backup", err)
	}
	backupPath := fmt.Sprintf("%s.%s.bak", d.path, now.UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.BackupCurrentFile", "writing backup file", err)
	}
	return backupPath, nil
}

// RestoreBackup replaces the current dictionary file with backupPath's
// contents and reloads the in-memory map.
func (d *CategoryDictionary) RestoreBackup(backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.RestoreBackup", "reading backup file", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.RestoreBackup", "parsing backup file", err)
	}
	d.mappings = make(map[string]CategoryMapping, len(doc.Mappings))
	for _, m := range doc.Mappings {
		d.mappings[m.Description] = m
	}
	d.categories = make(map[string]bool, len(doc.Categories))
	for _, c := range doc.Categories {
		d.categories[c] = true
	}
	return d.Save()
}

// normalize reuses the column mapper's header-normalization rules since a
// BoQ item description and a header cell need the same punctuation/case
// folding before comparison.
func normalize(description string) string {
	return column.Normalize(description, nil)
}

// FindCategory looks up description by exact normalized match only, per
// §4.7's contract. A hit returns the mapping's own confidence and records
// the usage (Step A: "on hit ... increment the mapping's usage_count").
// ok is false on any miss; callers needing candidates for a miss should
// call SuggestCategories instead — find_category itself never falls back
// to fuzzy matching.
func (d *CategoryDictionary) FindCategory(description string) (category string, confidence float64, ok bool) {
	norm := normalize(description)
	m, exists := d.mappings[norm]
	if !exists {
		return "", 0, false
	}
	m.UsageCount++
	d.mappings[norm] = m
	conf := m.Confidence
	if conf == 0 {
		conf = 1.0
	}
	return m.Category, conf, true
}

// SuggestCategories is the explicit, opt-in fuzzy helper §4.7 carries
// alongside the exact-only find_category contract ("a historical
// partial/fuzzy match path exists ... the current contract is exact-match-
// only"). It ranks every learned description against description using a
// full-text index and returns up to max distinct categories drawn from the
// matches, for a miss's review-artifact suggestions. Never called by
// FindCategory; callers must opt in explicitly.
func (d *CategoryDictionary) SuggestCategories(description string, max int) ([]string, error) {
	if len(d.mappings) == 0 {
		return nil, nil
	}
	norm := normalize(description)

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.SuggestCategories", "building suggestion index", err)
	}
	defer index.Close()

	for key, m := range d.mappings {
		if err := index.Index(key, map[string]string{"description": key, "category": m.Category}); err != nil {
			return nil, boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.SuggestCategories", "indexing mapping", err)
		}
	}

	query := bleve.NewMatchQuery(norm)
	query.SetFuzziness(2)
	req := bleve.NewSearchRequest(query)
	req.Size = max * 4 // multiple descriptions can share one category
	res, err := index.Search(req)
	if err != nil {
		return nil, boqerr.Wrap(boqerr.KindDictionaryIO, "dictionary.SuggestCategories", "searching suggestion index", err)
	}

	seen := make(map[string]bool, max)
	out := make([]string, 0, max)
	for _, hit := range res.Hits {
		m, ok := d.mappings[hit.ID]
		if !ok || seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		out = append(out, m.Category)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

// Peek returns a mapping's category without incrementing usage_count or
// otherwise counting as a categorization lookup — used by callers that need
// to inspect existing state (e.g. reporting a learn conflict) rather than
// resolve a line item.
func (d *CategoryDictionary) Peek(description string) (category string, ok bool) {
	m, exists := d.mappings[normalize(description)]
	if !exists {
		return "", false
	}
	return m.Category, true
}

// AddMapping inserts a new mapping; it fails with KindDictionaryConflict if
// description is already mapped to a different category, unless overwrite
// is set.
func (d *CategoryDictionary) AddMapping(description, category, source string, confidence float64, overwrite bool, now time.Time) error {
	norm := normalize(description)
	existing, exists := d.mappings[norm]
	if exists && existing.Category != category && !overwrite {
		return boqerr.New(boqerr.KindDictionaryConflict, "dictionary.AddMapping",
			fmt.Sprintf("description %q already mapped to category %q", description, existing.Category))
	}
	created := now
	usage := 0
	if exists {
		created = existing.CreatedAt
		usage = existing.UsageCount
	}
	d.mappings[norm] = CategoryMapping{
		Description: norm, Category: category, Confidence: confidence,
		CreatedAt: created, UpdatedAt: now, Source: source, UsageCount: usage,
		OriginalDescription: description,
	}
	return nil
}

// UpdateMapping changes an existing mapping's category; returns
// boqerr.KindDictionaryConflict-kind error via os.ErrNotExist style if not
// found (callers typically call AddMapping with overwrite instead).
func (d *CategoryDictionary) UpdateMapping(description, newCategory string, now time.Time) error {
	norm := normalize(description)
	m, ok := d.mappings[norm]
	if !ok {
		return boqerr.New(boqerr.KindDictionaryConflict, "dictionary.UpdateMapping", fmt.Sprintf("no mapping for %q", description))
	}
	m.Category = newCategory
	m.UpdatedAt = now
	d.mappings[norm] = m
	return nil
}

// UpsertMappings stores every entry under its normalized description,
// replacing any existing mapping wholesale, used by batch import. It does
// not carry over an existing entry's CreatedAt or UsageCount and does not
// skip empty descriptions.
func (d *CategoryDictionary) UpsertMappings(entries []CategoryMapping, now time.Time) {
	for _, e := range entries {
		norm := normalize(e.Description)
		e.Description = norm
		e.UpdatedAt = now
		d.mappings[norm] = e
	}
}

// RemoveMapping deletes a single mapping.
func (d *CategoryDictionary) RemoveMapping(description string) {
	delete(d.mappings, normalize(description))
}

// DeleteMappings removes every mapping currently assigned to category.
func (d *CategoryDictionary) DeleteMappings(category string) int {
	removed := 0
	for k, m := range d.mappings {
		if m.Category == category {
			delete(d.mappings, k)
			removed++
		}
	}
	return removed
}

// RenameCategoryForDescriptions renames every mapping under oldCategory to
// newCategory, returning how many were changed.
func (d *CategoryDictionary) RenameCategoryForDescriptions(oldCategory, newCategory string, now time.Time) int {
	changed := 0
	for k, m := range d.mappings {
		if m.Category == oldCategory {
			m.Category = newCategory
			m.UpdatedAt = now
			d.mappings[k] = m
			changed++
		}
	}
	return changed
}

// ListMappings returns every mapping sorted by description, for
// deterministic Save output and CLI listing.
func (d *CategoryDictionary) ListMappings() []CategoryMapping {
	list := make([]CategoryMapping, 0, len(d.mappings))
	for _, m := range d.mappings {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Description < list[j].Description })
	return list
}

// Categories returns the distinct, sorted union of every category an
// existing mapping references and every category explicitly inserted via
// InsertCategory, per invariant 6. Categories with no remaining mapping and
// no explicit insertion disappear from this set on their own the moment the
// last reference is removed or renamed away.
func (d *CategoryDictionary) Categories() []string {
	seen := make(map[string]bool, len(d.categories))
	for c := range d.categories {
		seen[c] = true
	}
	for _, m := range d.mappings {
		seen[m.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// InsertCategory explicitly adds name to the global category set, so it
// survives even if no mapping currently references it (invariant 6's
// "any explicitly inserted category").
func (d *CategoryDictionary) InsertCategory(name string) {
	if name == "" {
		return
	}
	d.categories[name] = true
}

// Len returns the number of mappings currently loaded.
func (d *CategoryDictionary) Len() int { return len(d.mappings) }
