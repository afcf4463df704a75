package report

import (
	"fmt"
	"io"

	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Report"

// WriteXLSX writes the report as a single-sheet workbook with the same layout
// as the CSV export. Amounts are stored as numbers so they can be summed.
func WriteXLSX(w io.Writer, r *models.MonthlyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	row := 1
	for _, rec := range preamble(r) {
		if err := setRow(f, row, cells(rec)...); err != nil {
			return err
		}
		row++
	}
	row++ // blank line

	if err := setRow(f, row, cells(columns)...); err != nil {
		return err
	}
	row++

	for _, m := range r.Rows {
		contributions, _ := m.Contributions.Float64()
		disbursed, _ := m.LoansDisbursed.Float64()
		repayments, _ := m.Repayments.Float64()
		if err := setRow(f, row, m.Label, contributions, disbursed, repayments); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(sheetName, "A", "A", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "D", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// setRow writes values into consecutive cells of row, starting at column A.
func setRow(f *excelize.File, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", row, err)
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}

func cells(rec []string) []any {
	out := make([]any, len(rec))
	for i, v := range rec {
		out[i] = v
	}
	return out
}
