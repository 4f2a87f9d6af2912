// Package xlsxsource implements workbook.Source for .xlsx files using
// excelize, streaming rows via its iterator so a large bill of quantities
// doesn't require loading the whole sheet into excelize's own cell cache
// twice.
package xlsxsource

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/boqtools/boq-analyzer/internal/boq/boqerr"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/workbook"
)

// Source reads .xlsx workbooks via excelize. The zero value is ready to
// use; it holds no state between Load calls.
type Source struct{}

// New returns an xlsx Source.
func New() *Source { return &Source{} }

var _ workbook.Source = (*Source)(nil)

// Load opens path and reads every sheet into a model.Workbook, in
// declaration order, preserving each sheet's visibility so later stages
// can decide whether to skip hidden reference sheets.
func (s *Source) Load(ctx context.Context, path string) (*model.Workbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, boqerr.Wrap(boqerr.KindCorruptWorkbook, "xlsxsource", "failed to open workbook", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]model.Sheet, 0, len(names))

	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, boqerr.New(boqerr.KindCancelled, "xlsxsource", "load cancelled")
		default:
		}

		visible, err := f.GetSheetVisible(name)
		if err != nil {
			visible = true
		}

		rows, err := readRows(f, name)
		if err != nil {
			return nil, boqerr.Wrap(boqerr.KindCorruptWorkbook, "xlsxsource",
				fmt.Sprintf("failed to read sheet %q", name), err)
		}

		sheets = append(sheets, model.Sheet{
			Name:    name,
			Visible: visible,
			Cells:   workbook.PadRows(rows),
		})
	}

	return &model.Workbook{Path: path, Sheets: sheets}, nil
}

// readRows streams a sheet's rows via excelize's iterator rather than
// GetRows, so a wide/tall BoQ workbook isn't fully materialized twice.
func readRows(f *excelize.File, sheetName string) ([][]string, error) {
	iter, err := f.Rows(sheetName)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows [][]string
	for iter.Next() {
		cols, err := iter.Columns()
		if err != nil {
			return nil, err
		}
		rows = append(rows, cols)
	}
	return rows, iter.Error()
}
