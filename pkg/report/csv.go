// Package report renders monthly group reports as downloadable files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/shopspring/decimal"
)

const title = "Ikimina Monthly Report"

var columns = []string{"Month", "Contributions", "Loans Disbursed", "Repayments"}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// preamble returns the key/value lines printed above the monthly table.
func preamble(r *models.MonthlyReport) [][]string {
	return [][]string{
		{title},
		{"Group", r.GroupName},
		{"Year", strconv.Itoa(r.Year)},
		{"Total Contributions", money(r.TotalContributions)},
		{"Total Loans Disbursed", money(r.TotalLoansDisbursed)},
		{"Total Repayments", money(r.TotalRepayments)},
	}
}

// WriteCSV writes the report as CSV. Fields containing commas, quotes or
// newlines are quoted.
func WriteCSV(w io.Writer, r *models.MonthlyReport) error {
	cw := csv.NewWriter(w)

	records := preamble(r)
	records = append(records, []string{}, columns)
	for _, row := range r.Rows {
		records = append(records, []string{row.Label, money(row.Contributions), money(row.LoansDisbursed), money(row.Repayments)})
	}

	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is the suggested download name for a report in the given extension.
func Filename(r *models.MonthlyReport, ext string) string {
	return fmt.Sprintf("ikimina_report_%d.%s", r.Year, ext)
}
