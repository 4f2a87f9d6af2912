// Package workbook defines the abstract contract a file-format adapter
// implements to hand the pipeline a model.Workbook, and enforces the
// resource limits every adapter must respect before the rest of the
// pipeline ever sees a sheet.
package workbook

import (
	"context"
	"fmt"
	"os"

	"github.com/boqtools/boq-analyzer/internal/boq/boqerr"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// Source is implemented by each concrete file-format reader (xlsxsource for
// .xlsx today; a future csvsource or odssource would implement the same
// contract). Load must return every sheet, visible or not, with its
// visibility recorded; no stage in this module skips hidden sheets.
type Source interface {
	// Load reads path and returns a Workbook. ctx allows the caller to
	// cancel a slow read (a huge archive) before it completes.
	Load(ctx context.Context, path string) (*model.Workbook, error)
}

// EnforceLimits validates wb against cfg's resource limits (§5): it
// truncates, in place, any sheet whose row or column count exceeds the
// configured maximum and returns a warning for each truncation. File size
// is not checked here; CheckFileSize does that.
func EnforceLimits(wb *model.Workbook, cfg *config.Config) (warnings []string) {
	for i, sheet := range wb.Sheets {
		if cfg.MaxRowsPerSheet > 0 && len(sheet.Cells) > cfg.MaxRowsPerSheet {
			warnings = append(warnings, fmt.Sprintf(
				"sheet %q truncated from %d to %d rows (limit)", sheet.Name, len(sheet.Cells), cfg.MaxRowsPerSheet))
			sheet.Cells = sheet.Cells[:cfg.MaxRowsPerSheet]
		}
		if cfg.MaxColsPerSheet > 0 {
			for r := range sheet.Cells {
				if len(sheet.Cells[r]) > cfg.MaxColsPerSheet {
					if r == 0 {
						warnings = append(warnings, fmt.Sprintf(
							"sheet %q truncated from %d to %d columns (limit)", sheet.Name, len(sheet.Cells[r]), cfg.MaxColsPerSheet))
					}
					sheet.Cells[r] = sheet.Cells[r][:cfg.MaxColsPerSheet]
				}
			}
		}
		wb.Sheets[i] = sheet
	}
	return warnings
}

// CheckFileSize rejects path outright when it exceeds cfg's configured
// byte ceiling, before any adapter attempts to open it.
func CheckFileSize(path string, cfg *config.Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return boqerr.Wrap(boqerr.KindInvalidInput, "workbook_source", "cannot stat input file", err)
	}
	if cfg.MaxWorkbookSizeBytes > 0 && info.Size() > cfg.MaxWorkbookSizeBytes {
		return boqerr.New(boqerr.KindResourceLimit, "workbook_source",
			fmt.Sprintf("file size %d bytes exceeds limit %d bytes", info.Size(), cfg.MaxWorkbookSizeBytes))
	}
	return nil
}

// PadRows normalizes a ragged [][]string into a rectangular matrix, padding
// short rows with "" so every row has the same width — the invariant
// model.Sheet documents for Cell/ColCount.
func PadRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		padded := make([]string, width)
		copy(padded, r)
		out[i] = padded
	}
	return out
}
