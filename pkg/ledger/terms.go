package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

var monthsPerYearTimesPercent = decimal.NewFromInt(1200)

// MaxDurationMonths caps a loan at 50 years.
const MaxDurationMonths = 600

// LoanTerms are the derived financial fields of a loan.
type LoanTerms struct {
	Principal      decimal.Decimal
	InterestRate   decimal.Decimal
	DurationMonths int
	StartDate      time.Time
	DueDate        time.Time
	Profit         decimal.Decimal
	TotalPayable   decimal.Decimal
}

// ComputeTerms applies simple, non-compounding interest pro-rated from an
// annual percentage:
//
//	profit        = principal * rate/100 * months/12
//	total_payable = principal + profit
//	due_date      = start + months calendar months (see AddMonths)
//
// Profit is rounded to two decimal places and total_payable is derived from
// the rounded profit, so the two always add up.
func ComputeTerms(principal, rate decimal.Decimal, months int, start time.Time) (LoanTerms, error) {
	if !principal.IsPositive() {
		return LoanTerms{}, invalid("principal amount must be positive")
	}
	if !rate.IsPositive() {
		return LoanTerms{}, invalid("interest rate must be positive")
	}
	if months <= 0 {
		return LoanTerms{}, invalid("duration must be at least one month")
	}
	if months > MaxDurationMonths {
		return LoanTerms{}, invalid("duration must be at most %d months", MaxDurationMonths)
	}
	if start.IsZero() {
		return LoanTerms{}, invalid("start date is required")
	}

	profit := principal.Mul(rate).Mul(decimal.NewFromInt(int64(months))).Div(monthsPerYearTimesPercent).Round(2)
	return LoanTerms{
		Principal:      principal,
		InterestRate:   rate,
		DurationMonths: months,
		StartDate:      start,
		DueDate:        AddMonths(start, months),
		Profit:         profit,
		TotalPayable:   principal.Add(profit),
	}, nil
}

// AddMonths advances t by n calendar months. When the day of month does not
// exist in the target month it is clamped to that month's last day, so
// 2024-01-31 plus one month is 2024-02-29 rather than 2024-03-02.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates t to midnight UTC of its own calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
