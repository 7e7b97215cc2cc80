package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// SheetName is the worksheet holding the reconciled dataset.
const SheetName = "resolucoes"

// WriteXLSX writes the reconciled dataset as a single-sheet workbook. Cells are
// capped at the spreadsheet limit of excelize.TotalCellChars characters.
func WriteXLSX(w io.Writer, header []string, records []models.ReconciledRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, OutputHeader(header)); err != nil {
		return err
	}
	for i, rec := range records {
		if err := setRow(f, i+2, OutputRow(header, rec)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = capCell(v)
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func capCell(v string) string {
	if r := []rune(v); len(r) > excelize.TotalCellChars {
		return string(r[:excelize.TotalCellChars])
	}
	return v
}

// ReadMetadataXLSX reads a metadata table from the first sheet of a workbook.
func ReadMetadataXLSX(path string) (*Metadata, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingColumn)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return fromRows(rows)
}
