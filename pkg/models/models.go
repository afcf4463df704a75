package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusOverdue   LoanStatus = "overdue"
)

// Valid reports whether s is one of the loan_status enum values.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusPending, LoanStatusActive, LoanStatusCompleted, LoanStatusOverdue:
		return true
	}
	return false
}

// Outstanding reports whether a loan in this status still commits group funds.
func (s LoanStatus) Outstanding() bool {
	return s == LoanStatusPending || s == LoanStatusActive || s == LoanStatusOverdue
}

type Loan struct {
	ID             uuid.UUID       `json:"id"`
	GroupID        uuid.UUID       `json:"group_id"`
	BorrowerID     uuid.UUID       `json:"borrower_id"` // group_members.id
	Principal      decimal.Decimal `json:"principal_amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"` // annual percent, e.g. 5 for 5%
	DurationMonths int             `json:"duration_months"`
	StartDate      time.Time       `json:"start_date"`
	DueDate        time.Time       `json:"due_date"`
	TotalPayable   decimal.Decimal `json:"total_payable"`
	Profit         decimal.Decimal `json:"profit"`
	Status         LoanStatus      `json:"status"`
	ApprovedBy     *string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Repayment struct {
	ID          uuid.UUID       `json:"id"`
	LoanID      uuid.UUID       `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LoanView is a loan as the read path presents it: repayments summed live and
// overdue derived from the due date.
type LoanView struct {
	*Loan
	TotalRepaid     decimal.Decimal `json:"total_repaid"`
	Remaining       decimal.Decimal `json:"remaining"`
	EffectiveStatus LoanStatus      `json:"effective_status"`
	IsOverdue       bool            `json:"is_overdue"`
	BorrowerName    string          `json:"borrower_name,omitempty"`
}
