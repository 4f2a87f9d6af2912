// Package boqerr defines the pipeline's error taxonomy. Every stage wraps
// its failures in a *PipelineError so a caller can branch on Kind with
// errors.As instead of string-matching messages, while fmt.Errorf's %w
// still chains through to whatever underlying error (a parse failure, an
// os error) actually caused it.
package boqerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of reasons a pipeline stage can fail.
type Kind string

const (
	// KindUnsupportedFormat means the input file isn't a workbook format
	// the source adapter knows how to read.
	KindUnsupportedFormat Kind = "unsupported_format"

	// KindResourceLimit means the workbook exceeded a configured size,
	// row, or column limit.
	KindResourceLimit Kind = "resource_limit"

	// KindCorruptWorkbook means the underlying archive/XML could not be
	// parsed at all.
	KindCorruptWorkbook Kind = "corrupt_workbook"

	// KindNoHeaderFound means the header locator could not find a header
	// row even at its synthetic-fallback confidence.
	KindNoHeaderFound Kind = "no_header_found"

	// KindDictionaryIO means the category dictionary's backing store
	// failed to load or save.
	KindDictionaryIO Kind = "dictionary_io"

	// KindDictionaryConflict means a rename/merge in the dictionary hit a
	// conflict the caller must resolve.
	KindDictionaryConflict Kind = "dictionary_conflict"

	// KindCancelled means the caller's context was cancelled mid-run.
	// pipeline.Run and xlsxsource return it as an error.
	KindCancelled Kind = "cancelled"

	// KindInvalidInput means a caller-supplied argument (a path, a
	// config value) was invalid independent of any particular workbook.
	KindInvalidInput Kind = "invalid_input"
)

// PipelineError is the error type every boq package returns for
// classifiable failures. Unwrap exposes the underlying cause so
// errors.Is/errors.As keep working across the wrap.
type PipelineError struct {
	Kind    Kind
	Stage   string // component name, e.g. "header_locator"
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New constructs a PipelineError with no underlying cause.
func New(kind Kind, stage, message string) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Message: message}
}

// Wrap constructs a PipelineError around an existing error.
func Wrap(kind Kind, stage, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// Is reports whether err is a *PipelineError of the given Kind, walking
// the chain like errors.Is.
func Is(err error, kind Kind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
