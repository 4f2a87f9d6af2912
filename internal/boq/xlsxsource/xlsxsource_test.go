package xlsxsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTestWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := "BoQ"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	rows := [][]string{
		{"Item", "Description", "Unit", "Quantity", "Rate", "Amount"},
		{"1", "Supply and install concrete", "m3", "10", "120.00", "1200.00"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

func TestLoadReadsAllSheetsAndPadsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boq.xlsx")
	writeTestWorkbook(t, path)

	src := New()
	wb, err := src.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(wb.Sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(wb.Sheets))
	}
	sheet := wb.Sheets[0]
	if sheet.Name != "BoQ" {
		t.Errorf("sheet name = %q, want BoQ", sheet.Name)
	}
	if sheet.RowCount() != 2 {
		t.Fatalf("RowCount() = %d, want 2", sheet.RowCount())
	}
	width := sheet.ColCount()
	for _, row := range sheet.Cells {
		if len(row) != width {
			t.Errorf("ragged row: got width %d, want %d", len(row), width)
		}
	}
	if sheet.Cell(1, 1) != "Supply and install concrete" {
		t.Errorf("Cell(1,1) = %q", sheet.Cell(1, 1))
	}
}
