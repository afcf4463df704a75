package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleReport(name string) *models.MonthlyReport {
	r := &models.MonthlyReport{
		GroupID:             uuid.New(),
		GroupName:           name,
		Year:                2024,
		TotalContributions:  decimal.NewFromInt(110000),
		TotalLoansDisbursed: decimal.NewFromInt(100000),
		TotalRepayments:     decimal.RequireFromString("30000.5"),
	}
	for m := 1; m <= 12; m++ {
		r.Rows = append(r.Rows, models.MonthlyRow{
			Month:          m,
			Label:          time.Month(m).String()[:3],
			Contributions:  decimal.Zero,
			LoansDisbursed: decimal.Zero,
			Repayments:     decimal.Zero,
		})
	}
	r.Rows[0].Contributions = decimal.NewFromInt(110000)
	r.Rows[2].LoansDisbursed = decimal.NewFromInt(100000)
	r.Rows[3].Repayments = decimal.RequireFromString("30000.5")
	return r
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport("Twizigamire")); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6+1+1+12 {
		t.Fatalf("Expected 20 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Ikimina Monthly Report" || lines[1] != "Group,Twizigamire" {
		t.Errorf("Unexpected preamble %q / %q", lines[0], lines[1])
	}
	if lines[5] != "Total Repayments,30000.50" {
		t.Errorf("Expected two-decimal totals, got %q", lines[5])
	}
	if lines[6] != "" {
		t.Errorf("Expected a blank separator line, got %q", lines[6])
	}
	if lines[7] != "Month,Contributions,Loans Disbursed,Repayments" {
		t.Errorf("Unexpected header %q", lines[7])
	}
	if lines[8] != "Jan,110000.00,0.00,0.00" || lines[19] != "Dec,0.00,0.00,0.00" {
		t.Errorf("Unexpected rows %q / %q", lines[8], lines[19])
	}
}

func TestWriteCSV_QuotesFreeText(t *testing.T) {
	name := `Abishyize "Hamwe", Kigali`
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport(name)); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read back csv: %v", err)
	}
	if len(records[1]) != 2 || records[1][1] != name {
		t.Errorf("Expected the group name to survive as one field, got %q", records[1])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleReport("Twizigamire")); err != nil {
		t.Fatalf("Failed to write xlsx: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetName(0); got != "Report" {
		t.Errorf("Expected sheet Report, got %q", got)
	}
	if v, _ := f.GetCellValue("Report", "B2"); v != "Twizigamire" {
		t.Errorf("Expected group name in B2, got %q", v)
	}
	if v, _ := f.GetCellValue("Report", "A8"); v != "Month" {
		t.Errorf("Expected header in row 8, got %q", v)
	}
	if v, _ := f.GetCellValue("Report", "B9"); v != "110000" {
		t.Errorf("Expected January contributions in B9, got %q", v)
	}
	if v, _ := f.GetCellValue("Report", "A20"); v != "Dec" {
		t.Errorf("Expected December in A20, got %q", v)
	}
}

func TestSetRow_ReportsCellErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		t.Fatalf("Failed to name sheet: %v", err)
	}

	if err := setRow(f, 0, "Month"); err == nil {
		t.Error("Expected an error for row 0")
	}
	if err := setRow(f, 3, "January", 1500.5); err != nil {
		t.Fatalf("Failed to write row: %v", err)
	}
	if v, _ := f.GetCellValue(sheetName, "B3"); v != "1500.5" {
		t.Errorf("Expected 1500.5 in B3, got %q", v)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(sampleReport("x"), "csv"); got != "ikimina_report_2024.csv" {
		t.Errorf("Unexpected filename %q", got)
	}
}
