package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/shopspring/decimal"
)

// RepaidByLoan sums repayments per loan.
func RepaidByLoan(repayments []*models.Repayment) map[uuid.UUID]decimal.Decimal {
	repaid := make(map[uuid.UUID]decimal.Decimal)
	for _, r := range repayments {
		repaid[r.LoanID] = repaid[r.LoanID].Add(r.Amount)
	}
	return repaid
}

func TotalRepaid(repayments []*models.Repayment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range repayments {
		total = total.Add(r.Amount)
	}
	return total
}

// AvailableFunds is the group's savings not committed to outstanding loans:
//
//	Σ paid contributions − Σ principal of pending/active/overdue loans + Σ repayments on those loans
func AvailableFunds(contributions []*models.Contribution, loans []*models.Loan, repaid map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	available := decimal.Zero
	for _, c := range contributions {
		if c.Status == models.ContributionStatusPaid {
			available = available.Add(c.Amount)
		}
	}
	for _, loan := range loans {
		if !loan.Status.Outstanding() {
			continue
		}
		available = available.Sub(loan.Principal).Add(repaid[loan.ID])
	}
	return available
}

// EffectiveStatus is the status a loan reads as at now. Overdue is derived
// here and never written: an approved loan past its due date with a balance
// left is overdue, whatever the stored value says.
func EffectiveStatus(loan *models.Loan, totalRepaid decimal.Decimal, now time.Time) models.LoanStatus {
	switch loan.Status {
	case models.LoanStatusPending, models.LoanStatusCompleted:
		return loan.Status
	}
	if totalRepaid.GreaterThanOrEqual(loan.TotalPayable) {
		return models.LoanStatusCompleted
	}
	if DateOnly(now).After(DateOnly(loan.DueDate)) {
		return models.LoanStatusOverdue
	}
	return models.LoanStatusActive
}

// ViewLoan builds the read model of a loan from the live repayment total.
func ViewLoan(loan *models.Loan, totalRepaid decimal.Decimal, now time.Time) *models.LoanView {
	status := EffectiveStatus(loan, totalRepaid, now)
	return &models.LoanView{
		Loan:            loan,
		TotalRepaid:     totalRepaid,
		Remaining:       loan.TotalPayable.Sub(totalRepaid),
		EffectiveStatus: status,
		IsOverdue:       status == models.LoanStatusOverdue,
	}
}

// Summarize computes the dashboard figures of a group from already fetched
// rows. It does not modify its inputs.
func Summarize(groupID uuid.UUID, contributions []*models.Contribution, loans []*models.Loan) models.GroupSummary {
	s := models.GroupSummary{
		GroupID:          groupID,
		TotalSavings:     decimal.Zero,
		ActiveLoansTotal: decimal.Zero,
		ProfitEarned:     decimal.Zero,
		CollectionRate:   decimal.Zero,
		AvailableFunds:   decimal.Zero,
	}

	for _, c := range contributions {
		s.TotalContributions++
		if c.Status == models.ContributionStatusPaid {
			s.PaidContributions++
			s.TotalSavings = s.TotalSavings.Add(c.Amount)
		}
	}
	if s.TotalContributions > 0 {
		s.CollectionRate = decimal.NewFromInt(int64(s.PaidContributions)).
			DivRound(decimal.NewFromInt(int64(s.TotalContributions)), 4)
	}

	for _, loan := range loans {
		s.ProfitEarned = s.ProfitEarned.Add(loan.Profit)
		switch loan.Status {
		case models.LoanStatusActive, models.LoanStatusOverdue:
			s.ActiveLoans++
			s.ActiveLoansTotal = s.ActiveLoansTotal.Add(loan.TotalPayable)
		case models.LoanStatusPending:
			s.PendingLoans++
		}
	}
	return s
}

// BuildMonthlyReport buckets a year of paid contributions, disbursed loans and
// repayments by calendar month.
func BuildMonthlyReport(group *models.Group, year int, contributions []*models.Contribution, loans []*models.Loan, repayments []*models.Repayment) *models.MonthlyReport {
	r := &models.MonthlyReport{
		GroupID:             group.ID,
		GroupName:           group.Name,
		Year:                year,
		TotalContributions:  decimal.Zero,
		TotalLoansDisbursed: decimal.Zero,
		TotalRepayments:     decimal.Zero,
		Rows:                make([]models.MonthlyRow, 12),
	}
	for i := range r.Rows {
		m := time.Month(i + 1)
		r.Rows[i] = models.MonthlyRow{
			Month:          i + 1,
			Label:          m.String()[:3],
			Contributions:  decimal.Zero,
			LoansDisbursed: decimal.Zero,
			Repayments:     decimal.Zero,
		}
	}

	for _, c := range contributions {
		if c.Status != models.ContributionStatusPaid {
			continue
		}
		when := c.DueDate
		if c.PaidDate != nil {
			when = *c.PaidDate
		}
		if when.Year() != year {
			continue
		}
		row := &r.Rows[when.Month()-1]
		row.Contributions = row.Contributions.Add(c.Amount)
		r.TotalContributions = r.TotalContributions.Add(c.Amount)
	}

	for _, loan := range loans {
		if loan.Status == models.LoanStatusPending || loan.StartDate.Year() != year {
			continue
		}
		row := &r.Rows[loan.StartDate.Month()-1]
		row.LoansDisbursed = row.LoansDisbursed.Add(loan.Principal)
		r.TotalLoansDisbursed = r.TotalLoansDisbursed.Add(loan.Principal)
	}

	for _, rp := range repayments {
		if rp.PaymentDate.Year() != year {
			continue
		}
		row := &r.Rows[rp.PaymentDate.Month()-1]
		row.Repayments = row.Repayments.Add(rp.Amount)
		r.TotalRepayments = r.TotalRepayments.Add(rp.Amount)
	}
	return r
}
