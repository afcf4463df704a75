package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/mcclellann/ikimina/pkg/store"
	"github.com/shopspring/decimal"
)

// LoanRequest describes a new loan. A nil InterestRate takes the group's
// default rate and a zero StartDate means today.
type LoanRequest struct {
	BorrowerID     uuid.UUID        `json:"borrower_id"`
	Principal      decimal.Decimal  `json:"principal_amount"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	DurationMonths int              `json:"duration_months"`
	StartDate      time.Time        `json:"start_date"`
}

// CreateLoan issues a loan to a group member. With approve set the loan is
// created active and stamped with the caller as approver; otherwise it waits
// in pending. Members may only ask for a pending loan for themselves.
//
// The funds check and the insert share one transaction, so two concurrent
// requests cannot both spend the same savings.
func (l *Ledger) CreateLoan(ctx context.Context, id auth.Identity, groupID uuid.UUID, req LoanRequest, approve bool) (*models.LoanView, error) {
	if !id.Can(auth.CapManageFinances, groupID) {
		selfRequest := !approve && id.Can(auth.CapRequestLoan, groupID) && req.BorrowerID == id.MemberID
		if !selfRequest {
			return nil, ErrForbidden
		}
	}

	group, err := l.storage.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status != models.GroupStatusActive {
		return nil, invalid("group %s is not active", group.Name)
	}

	rate := group.InterestRate
	if req.InterestRate != nil {
		rate = *req.InterestRate
	}
	start := l.today()
	if !req.StartDate.IsZero() {
		start = DateOnly(req.StartDate)
	}
	terms, err := ComputeTerms(req.Principal, rate, req.DurationMonths, start)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	loan := &models.Loan{
		ID:             uuid.New(),
		GroupID:        groupID,
		BorrowerID:     req.BorrowerID,
		Principal:      terms.Principal,
		InterestRate:   terms.InterestRate,
		DurationMonths: terms.DurationMonths,
		StartDate:      terms.StartDate,
		DueDate:        terms.DueDate,
		TotalPayable:   terms.TotalPayable,
		Profit:         terms.Profit,
		Status:         models.LoanStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if approve {
		approver := id.UserID
		loan.Status = models.LoanStatusActive
		loan.ApprovedBy = &approver
		loan.ApprovedAt = &now
	}

	err = l.storage.InTx(ctx, func(tx store.Storage) error {
		borrower, err := tx.GetMember(ctx, req.BorrowerID)
		if err != nil {
			return err
		}
		if borrower.GroupID != groupID || borrower.Status != models.MemberStatusActive {
			return invalid("borrower is not an active member of this group")
		}

		available, err := availableFunds(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if loan.Principal.GreaterThan(available) {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFunds, loan.Principal.StringFixed(2), available.StringFixed(2))
		}
		return tx.CreateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, groupID)
	l.log.Info("loan created", "loan_id", loan.ID, "group_id", groupID, "borrower_id", loan.BorrowerID,
		"principal", loan.Principal.String(), "status", loan.Status, "by", id.UserID)
	return ViewLoan(loan, decimal.Zero, l.now()), nil
}

func availableFunds(ctx context.Context, s store.Storage, groupID uuid.UUID) (decimal.Decimal, error) {
	contributions, err := s.ListContributions(ctx, groupID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	loans, err := s.ListLoans(ctx, groupID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	repayments, err := s.ListGroupRepayments(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return AvailableFunds(contributions, loans, RepaidByLoan(repayments)), nil
}

// GroupFunds returns the savings currently available for new loans.
func (l *Ledger) GroupFunds(ctx context.Context, id auth.Identity, groupID uuid.UUID) (decimal.Decimal, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return decimal.Zero, err
	}
	return availableFunds(ctx, l.storage, groupID)
}

// ApproveLoan moves a pending loan to active and stamps the approver.
func (l *Ledger) ApproveLoan(ctx context.Context, id auth.Identity, loanID uuid.UUID) (*models.LoanView, error) {
	var loan *models.Loan
	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if err := require(id, auth.CapManageFinances, loan.GroupID); err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return fmt.Errorf("%w: loan is %s, only pending loans can be approved", ErrInvalidTransition, loan.Status)
		}

		now := l.now().UTC()
		approver := id.UserID
		loan.Status = models.LoanStatusActive
		loan.ApprovedBy = &approver
		loan.ApprovedAt = &now
		loan.UpdatedAt = now
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, loan.GroupID)
	l.log.Info("loan approved", "loan_id", loan.ID, "group_id", loan.GroupID, "by", id.UserID)
	return ViewLoan(loan, decimal.Zero, l.now()), nil
}

// RejectLoan deletes a pending loan. Rejection leaves no record behind.
func (l *Ledger) RejectLoan(ctx context.Context, id auth.Identity, loanID uuid.UUID) error {
	var groupID uuid.UUID
	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if err := require(id, auth.CapManageFinances, loan.GroupID); err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return fmt.Errorf("%w: loan is %s, only pending loans can be rejected", ErrInvalidTransition, loan.Status)
		}
		groupID = loan.GroupID
		return tx.DeleteLoan(ctx, loanID)
	})
	if err != nil {
		return err
	}

	l.invalidate(ctx, groupID)
	l.log.Info("loan rejected", "loan_id", loanID, "group_id", groupID, "by", id.UserID)
	return nil
}

type RepaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes,omitempty"`
}

// RecordRepayment appends a repayment and completes the loan once the
// repayments cover total_payable. Overpayment is accepted.
func (l *Ledger) RecordRepayment(ctx context.Context, id auth.Identity, loanID uuid.UUID, req RepaymentRequest) (*models.Repayment, *models.LoanView, error) {
	if !req.Amount.IsPositive() {
		return nil, nil, invalid("amount must be positive")
	}

	now := l.now().UTC()
	paid := l.today()
	if !req.PaymentDate.IsZero() {
		paid = DateOnly(req.PaymentDate)
	}
	repayment := &models.Repayment{
		ID:          uuid.New(),
		LoanID:      loanID,
		Amount:      req.Amount,
		PaymentDate: paid,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
	}

	var loan *models.Loan
	var total decimal.Decimal
	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if err := require(id, auth.CapManageFinances, loan.GroupID); err != nil {
			return err
		}
		if loan.Status != models.LoanStatusActive && loan.Status != models.LoanStatusOverdue {
			return fmt.Errorf("%w: loan is %s, repayments need an approved loan", ErrInvalidTransition, loan.Status)
		}

		if err := tx.CreateRepayment(ctx, repayment); err != nil {
			return err
		}

		repayments, err := tx.ListRepayments(ctx, loanID)
		if err != nil {
			return err
		}
		total = TotalRepaid(repayments)
		if total.GreaterThanOrEqual(loan.TotalPayable) {
			loan.Status = models.LoanStatusCompleted
			loan.UpdatedAt = now
			return tx.UpdateLoan(ctx, loan)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.invalidate(ctx, loan.GroupID)
	l.log.Info("repayment recorded", "loan_id", loanID, "amount", req.Amount.String(),
		"total_repaid", total.String(), "status", loan.Status, "by", id.UserID)
	return repayment, ViewLoan(loan, total, l.now()), nil
}

// GetLoan returns one loan as the read path sees it. Members can only see
// their own loans.
func (l *Ledger) GetLoan(ctx context.Context, id auth.Identity, loanID uuid.UUID) (*models.LoanView, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := require(id, auth.CapReadGroup, loan.GroupID); err != nil {
		return nil, err
	}
	if id.Role == auth.RoleMember && loan.BorrowerID != id.MemberID {
		return nil, ErrForbidden
	}

	repayments, err := l.storage.ListRepayments(ctx, loanID)
	if err != nil {
		return nil, err
	}
	view := ViewLoan(loan, TotalRepaid(repayments), l.now())
	if m, err := l.storage.GetMember(ctx, loan.BorrowerID); err == nil {
		view.BorrowerName = m.FullName
	}
	return view, nil
}

// LoanFilter narrows ListLoans. Status matches the effective status.
type LoanFilter struct {
	Status     models.LoanStatus
	BorrowerID *uuid.UUID
}

// ListLoans returns a group's loans with live balances, newest first.
func (l *Ledger) ListLoans(ctx context.Context, id auth.Identity, groupID uuid.UUID, f LoanFilter) ([]*models.LoanView, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown loan status %q", f.Status)
	}
	borrower := f.BorrowerID
	if id.Role == auth.RoleMember {
		own := id.MemberID
		borrower = &own
	}

	loans, err := l.storage.ListLoans(ctx, groupID, borrower)
	if err != nil {
		return nil, err
	}
	repayments, err := l.storage.ListGroupRepayments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := l.storage.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.FullName
	}

	repaid := RepaidByLoan(repayments)
	now := l.now()
	views := make([]*models.LoanView, 0, len(loans))
	for _, loan := range loans {
		v := ViewLoan(loan, repaid[loan.ID], now)
		if f.Status != "" && v.EffectiveStatus != f.Status {
			continue
		}
		v.BorrowerName = names[loan.BorrowerID]
		views = append(views, v)
	}
	return views, nil
}

// ListRepayments returns a loan's repayments oldest first.
func (l *Ledger) ListRepayments(ctx context.Context, id auth.Identity, loanID uuid.UUID) ([]*models.Repayment, error) {
	if _, err := l.GetLoan(ctx, id, loanID); err != nil {
		return nil, err
	}
	return l.storage.ListRepayments(ctx, loanID)
}

// SweepOverdue lists every loan across all groups that reads as overdue at
// now. It writes nothing; overdue is never persisted.
func (l *Ledger) SweepOverdue(ctx context.Context, now time.Time) ([]*models.LoanView, error) {
	groups, err := l.storage.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	var overdue []*models.LoanView
	for _, g := range groups {
		loans, err := l.storage.ListLoans(ctx, g.ID, nil)
		if err != nil {
			return nil, err
		}
		repayments, err := l.storage.ListGroupRepayments(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		repaid := RepaidByLoan(repayments)
		for _, loan := range loans {
			if v := ViewLoan(loan, repaid[loan.ID], now); v.IsOverdue {
				overdue = append(overdue, v)
			}
		}
	}
	return overdue, nil
}
