// Package categorize assigns a category to every primary line item in a
// sheet using the category dictionary, collects what it couldn't resolve
// into a review artifact, applies a reviewer's manual corrections back onto
// the table, and teaches confirmed categorizations back into the
// dictionary.
package categorize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/boqtools/boq-analyzer/internal/boq/boqerr"
	"github.com/boqtools/boq-analyzer/internal/boq/dictionary"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// Result is one row's Step A categorization outcome.
type Result struct {
	RowIndex     int
	Description  string
	Category     string
	Confidence   float64
	MatchType    string // "exact" once resolved by the dictionary, "manual" once Step D applies a reviewer's answer, "none" while unresolved
	NeedsReview  bool
	ReviewReason string
}

// Categorize runs Step A (§4.8) over a sheet's primary line items: for each
// row, look up Description in the dictionary by exact match only. On hit,
// write the category and confidence; the dictionary itself increments the
// mapping's usage_count. On miss, leave Category empty and flag the row for
// Step B to collect.
func Categorize(sheet model.Sheet, columns []model.ColumnMapping, rows []model.RowClassification, dict *dictionary.CategoryDictionary, cfg *config.Config) []Result {
	descCol, hasDesc := descriptionColumn(columns)
	results := make([]Result, 0, len(rows))

	for _, rc := range rows {
		if rc.RowType != model.RowPrimaryLineItem {
			continue
		}
		if !hasDesc {
			results = append(results, Result{RowIndex: rc.RowIndex, MatchType: "none", NeedsReview: true, ReviewReason: "no description column resolved"})
			continue
		}
		desc := sheet.Cell(rc.RowIndex, descCol)
		if desc == "" {
			results = append(results, Result{RowIndex: rc.RowIndex, MatchType: "none", NeedsReview: true, ReviewReason: "empty description"})
			continue
		}

		category, confidence, ok := dict.FindCategory(desc)
		if !ok {
			results = append(results, Result{RowIndex: rc.RowIndex, Description: desc, MatchType: "none", NeedsReview: true, ReviewReason: "no exact dictionary match"})
			continue
		}
		results = append(results, Result{RowIndex: rc.RowIndex, Description: desc, Category: category, Confidence: confidence, MatchType: "exact"})
	}

	return results
}

func descriptionColumn(columns []model.ColumnMapping) (int, bool) {
	for _, c := range columns {
		if c.Role == model.RoleDescription {
			return c.ColumnIndex, true
		}
	}
	return 0, false
}

// ReviewItem is one description requiring manual attention, aggregated
// across every row Step A could not resolve (§4.8 Step B): deduplicated by
// normalized description, carrying source sheet, frequency, and sample row
// numbers.
type ReviewItem struct {
	Description  string
	SourceSheet  string
	Frequency    int
	SampleRows   []int
	AutoCategory string
	MatchType    string // "suggested" when dict offered a fuzzy candidate, "none" otherwise
	Confidence   float64
	Notes        string
}

// CollectReview is Step B: it filters results down to the rows Step A left
// unmatched, deduplicates them by normalized description, and orders the
// output by frequency descending. dict is consulted only for
// SuggestCategories' opt-in fuzzy candidates (Auto_Category / Notes); it
// never decides a row's Category here — Step D is the only writer of
// Category.
func CollectReview(sheetName string, results []Result, dict *dictionary.CategoryDictionary) []ReviewItem {
	byDesc := make(map[string]*ReviewItem)
	var order []string

	for _, r := range results {
		if !r.NeedsReview {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(r.Description))
		item, exists := byDesc[key]
		if !exists {
			item = &ReviewItem{Description: r.Description, SourceSheet: sheetName, MatchType: "none"}
			byDesc[key] = item
			order = append(order, key)
		}
		item.Frequency++
		item.SampleRows = append(item.SampleRows, r.RowIndex)
	}

	items := make([]ReviewItem, 0, len(order))
	for _, key := range order {
		item := *byDesc[key]
		if key != "" && dict != nil {
			if suggestions, err := dict.SuggestCategories(key, 5); err == nil && len(suggestions) > 0 {
				item.AutoCategory = suggestions[0]
				item.MatchType = "suggested"
				item.Notes = "suggestions: " + strings.Join(suggestions, ", ")
			}
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Frequency > items[j].Frequency })
	return items
}

// ReviewRow is the physical review-artifact schema (§6): logical columns
// Description, Source_Sheet, Frequency, Auto_Category, Match_Type,
// Confidence, Category (for the reviewer to fill in), Notes. Encoded two
// ways: JSON (ReviewArtifactJSON) and delimited text via gocsv struct tags
// (ReviewArtifactCSV), matching the CLI's export formats.
type ReviewRow struct {
	Description  string  `csv:"Description" json:"Description"`
	SourceSheet  string  `csv:"Source_Sheet" json:"Source_Sheet"`
	Frequency    int     `csv:"Frequency" json:"Frequency"`
	AutoCategory string  `csv:"Auto_Category" json:"Auto_Category"`
	MatchType    string  `csv:"Match_Type" json:"Match_Type"`
	Confidence   float64 `csv:"Confidence" json:"Confidence"`
	Category     string  `csv:"Category" json:"Category"`
	Notes        string  `csv:"Notes" json:"Notes"`
}

func toReviewRows(items []ReviewItem) []ReviewRow {
	rows := make([]ReviewRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, ReviewRow{
			Description: it.Description, SourceSheet: it.SourceSheet, Frequency: it.Frequency,
			AutoCategory: it.AutoCategory, MatchType: it.MatchType, Confidence: it.Confidence, Notes: it.Notes,
		})
	}
	return rows
}

// ReviewArtifactCSV renders items as delimited text (Step C).
func ReviewArtifactCSV(items []ReviewItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := gocsv.Marshal(toReviewRows(items), &buf); err != nil {
		return nil, boqerr.Wrap(boqerr.KindInvalidInput, "categorize.ReviewArtifactCSV", "encoding review artifact", err)
	}
	return buf.Bytes(), nil
}

// ReviewArtifactJSON renders items as JSON (Step C, the default format).
func ReviewArtifactJSON(items []ReviewItem) ([]byte, error) {
	data, err := json.MarshalIndent(toReviewRows(items), "", "  ")
	if err != nil {
		return nil, boqerr.Wrap(boqerr.KindInvalidInput, "categorize.ReviewArtifactJSON", "encoding review artifact", err)
	}
	return data, nil
}

// ParseReviewJSON decodes a review document previously produced by
// ReviewArtifactJSON (Step D's input parse).
func ParseReviewJSON(data []byte) ([]ReviewRow, error) {
	var rows []ReviewRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, boqerr.Wrap(boqerr.KindInvalidInput, "categorize.ParseReviewJSON", "parsing review document", err)
	}
	return rows, nil
}

// ParseReviewCSV decodes a review document previously produced by
// ReviewArtifactCSV.
func ParseReviewCSV(data []byte) ([]ReviewRow, error) {
	var rows []ReviewRow
	if err := gocsv.Unmarshal(bytes.NewReader(data), &rows); err != nil {
		return nil, boqerr.Wrap(boqerr.KindInvalidInput, "categorize.ParseReviewCSV", "parsing review document", err)
	}
	return rows, nil
}

// ReviewStats is what Step D reports back to the caller once a reviewed
// document has been applied.
type ReviewStats struct {
	RowsUpdated        int
	RemainingUnmatched int
	CoverageRate       float64
}

// ApplyReview is Step D: validate structure, then apply each row's
// Description -> Category answer back onto results in place
// (case-insensitive by default). A Category that doesn't belong to the
// closed pretty-labeled set (§6) is rejected outright, since the
// contract requires returned categories to be a member of that set or
// empty. Returns how many rows were updated, how many remain unmatched,
// and the resulting coverage rate over the rows that needed review.
func ApplyReview(results []Result, reviewed []ReviewRow) (ReviewStats, error) {
	answers := make(map[string]string, len(reviewed))
	for _, rr := range reviewed {
		if rr.Description == "" {
			continue
		}
		if rr.Category != "" && !dictionary.IsPrettyCategory(rr.Category) {
			return ReviewStats{}, boqerr.New(boqerr.KindInvalidInput, "categorize.ApplyReview",
				fmt.Sprintf("category %q for %q is not a member of the closed category set", rr.Category, rr.Description))
		}
		answers[strings.ToLower(rr.Description)] = rr.Category
	}

	var stats ReviewStats
	needingReview := 0
	for i := range results {
		if !results[i].NeedsReview {
			continue
		}
		needingReview++
		category, ok := answers[strings.ToLower(results[i].Description)]
		if !ok || category == "" {
			stats.RemainingUnmatched++
			continue
		}
		results[i].Category = category
		results[i].MatchType = "manual"
		results[i].NeedsReview = false
		results[i].ReviewReason = ""
		stats.RowsUpdated++
	}
	if needingReview > 0 {
		stats.CoverageRate = float64(stats.RowsUpdated) / float64(needingReview)
	} else {
		stats.CoverageRate = 1.0
	}
	return stats, nil
}

// ConfirmResult reports what happened when a reviewer-confirmed category
// was taught back into the dictionary.
type ConfirmResult struct {
	Applied          bool
	Conflict         bool
	ExistingCategory string
}

// Confirm is Step E: optionally upsert a user-confirmed (description,
// category) pair into the dictionary. It backs up the dictionary file
// before persisting, and detects conflicts — the same description already
// mapped to a different category — reporting them without overwriting the
// existing mapping (§7, scenario S6: "update rejected, conflict reported,
// existing mapping preserved").
func Confirm(dict *dictionary.CategoryDictionary, description, category string, now time.Time) (ConfirmResult, error) {
	if _, err := dict.BackupCurrentFile(now); err != nil {
		return ConfirmResult{}, err
	}

	err := dict.AddMapping(description, category, "learned", 1.0, false, now)
	if err == nil {
		return ConfirmResult{Applied: true}, nil
	}
	if boqerr.Is(err, boqerr.KindDictionaryConflict) {
		existing, _ := dict.Peek(description)
		return ConfirmResult{Conflict: true, ExistingCategory: existing}, nil
	}
	return ConfirmResult{}, err
}
