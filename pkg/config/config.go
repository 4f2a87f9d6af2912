// Package config holds the pipeline's tunable thresholds, processing
// limits, and role vocabulary. Nothing here is a hidden global: every
// constructor in the boq packages takes a *Config explicitly.
package config

import (
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config is the pipeline-wide configuration. Zero value is not usable;
// construct with Default() or Load().
type Config struct {
	// Header locator (§4.2)
	HeaderSearchRows    int // default search depth (N)
	HeaderSearchRowsMax int // user-adjustable ceiling

	// Column mapper (§4.3)
	ColumnConfidenceFloor float64 // below this, columns stay assigned but flagged
	FuzzyAliasThreshold   float64 // LCS-ratio threshold for fuzzy alias matches

	// Row classifier / validator (§4.5)
	TolerancePct float64 // mathematical consistency: relative tolerance
	ToleranceAbs float64 // mathematical consistency: absolute tolerance

	// Mapping aggregator (§4.6)
	LowConfidenceThreshold  float64 // overall < this -> low_confidence flag
	ErrorCountReviewLimit   int     // error_count > this -> validation_errors flag
	AmbiguityGap            float64 // alternatives within this of the top score -> ambiguous
	AmbiguityConfidenceMax  float64 // ...and confidence below this
	MissingDataCompleteness float64 // row completeness below this -> missing_data flag
	ExportReadyThreshold    float64 // global_confidence >= this, no failed sheet, no validation_errors flag

	// Resource limits (§5)
	MaxWorkbookSizeBytes int64
	MaxRowsPerSheet      int
	MaxColsPerSheet      int

	// Comparator (§4.9)
	ComparatorSimilarityThreshold float64

	// Vocabulary and canonical aliases (§6)
	Vocabulary    Vocabulary
	BundleDir     string // BOQ_TOOLS_BUNDLE_DIR, may be empty
	AliasFilePath string // user-editable canonical-alias JSON path
}

// Default returns the built-in configuration matching the weights and
// thresholds named throughout spec.md.
func Default() *Config {
	return &Config{
		HeaderSearchRows:              10,
		HeaderSearchRowsMax:           20,
		ColumnConfidenceFloor:         0.5,
		FuzzyAliasThreshold:           0.85,
		TolerancePct:                  0.01,
		ToleranceAbs:                  0.005,
		LowConfidenceThreshold:        0.6,
		ErrorCountReviewLimit:         5,
		AmbiguityGap:                  0.1,
		AmbiguityConfidenceMax:        0.7,
		MissingDataCompleteness:       0.3,
		ExportReadyThreshold:          0.7,
		MaxWorkbookSizeBytes:          100 * 1024 * 1024,
		MaxRowsPerSheet:               50000,
		MaxColsPerSheet:               200,
		ComparatorSimilarityThreshold: 0.85,
		Vocabulary:                    DefaultVocabulary(),
		BundleDir:                     os.Getenv("BOQ_TOOLS_BUNDLE_DIR"),
	}
}

// Load builds a Config from Default(), applying any environment overrides
// for the numeric knobs a deployment is likely to want to tune without a
// rebuild. Unset variables keep the default.
func Load() *Config {
	cfg := Default()
	cfg.HeaderSearchRows = getEnvAsInt("BOQ_HEADER_SEARCH_ROWS", cfg.HeaderSearchRows)
	cfg.ColumnConfidenceFloor = getEnvAsFloat("BOQ_COLUMN_CONFIDENCE_FLOOR", cfg.ColumnConfidenceFloor)
	cfg.TolerancePct = getEnvAsFloat("BOQ_TOLERANCE_PCT", cfg.TolerancePct)
	cfg.ToleranceAbs = getEnvAsFloat("BOQ_TOLERANCE_ABS", cfg.ToleranceAbs)
	cfg.ExportReadyThreshold = getEnvAsFloat("BOQ_EXPORT_READY_THRESHOLD", cfg.ExportReadyThreshold)
	cfg.MaxWorkbookSizeBytes = getEnvAsInt64("BOQ_MAX_WORKBOOK_BYTES", cfg.MaxWorkbookSizeBytes)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
