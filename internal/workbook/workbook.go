// Package workbook exports report tables as one spreadsheet with a sheet per table.
package workbook

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
)

// Sheet is one named table of the workbook.
type Sheet struct {
	Name  string
	Table *artifact.Table
}

// Export writes the sheets, in order, to a new .xlsx file at path.
func Export(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook: no sheets to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("workbook: rename sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("workbook: add sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("workbook: create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("workbook: save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet) error {
	sw, err := f.NewStreamWriter(s.Name)
	if err != nil {
		return fmt.Errorf("workbook: stream writer for %s: %w", s.Name, err)
	}

	if err := sw.SetRow("A1", cells(s.Table.Columns)); err != nil {
		return fmt.Errorf("workbook: %s header: %w", s.Name, err)
	}
	for i, row := range s.Table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("workbook: %s row %d: %w", s.Name, i+1, err)
		}
		if err := sw.SetRow(cell, cells(row)); err != nil {
			return fmt.Errorf("workbook: %s row %d: %w", s.Name, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("workbook: flush %s: %w", s.Name, err)
	}
	return nil
}

// cells keeps every value as text so identifiers like 交易单号 keep their digits.
func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
