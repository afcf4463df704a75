package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
)

const contributionColumns = `id, group_id, member_id, amount, due_date, paid_date, status, created_at, updated_at`

// CreateContribution inserts a new contribution.
func (s *SQLiteStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO contributions (`+contributionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.GroupID, c.MemberID, c.Amount, c.DueDate, c.PaidDate, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contribution: %w", err)
	}
	return nil
}

// GetContribution retrieves a contribution by its ID.
func (s *SQLiteStore) GetContribution(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id)
	c, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contribution %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return c, nil
}

// ListContributions retrieves a group's contributions, optionally for one member.
func (s *SQLiteStore) ListContributions(ctx context.Context, groupID uuid.UUID, memberID *uuid.UUID) ([]*models.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE group_id = ?`
	args := []any{groupID}
	if memberID != nil {
		query += ` AND member_id = ?`
		args = append(args, *memberID)
	}
	query += ` ORDER BY due_date DESC, created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions for group %s: %w", groupID, err)
	}
	defer rows.Close()

	contributions := make([]*models.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution row: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for contributions: %w", err)
	}
	return contributions, nil
}

// UpdateContribution writes a contribution's status and paid date.
func (s *SQLiteStore) UpdateContribution(ctx context.Context, c *models.Contribution) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE contributions SET status = ?, paid_date = ?, updated_at = ? WHERE id = ?`,
		c.Status, c.PaidDate, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	return expectOne(result, "contribution")
}

func scanContribution(row scanner) (*models.Contribution, error) {
	var c models.Contribution
	var paid sql.NullTime
	if err := row.Scan(&c.ID, &c.GroupID, &c.MemberID, &c.Amount, &c.DueDate, &paid, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if paid.Valid {
		c.PaidDate = &paid.Time
	}
	return &c, nil
}

const loanColumns = `id, group_id, borrower_id, principal_amount, interest_rate, duration_months, start_date, due_date, total_payable, profit, status, approved_by, approved_at, created_at, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.GroupID, loan.BorrowerID, loan.Principal, loan.InterestRate, loan.DurationMonths, loan.StartDate, loan.DueDate,
		loan.TotalPayable, loan.Profit, loan.Status, loan.ApprovedBy, loan.ApprovedAt, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// ListLoans retrieves a group's loans, optionally for one borrower.
func (s *SQLiteStore) ListLoans(ctx context.Context, groupID uuid.UUID, borrowerID *uuid.UUID) ([]*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE group_id = ?`
	args := []any{groupID}
	if borrowerID != nil {
		query += ` AND borrower_id = ?`
		args = append(args, *borrowerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for group %s: %w", groupID, err)
	}
	defer rows.Close()

	loans := make([]*models.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// UpdateLoan updates an existing loan in the database.
func (s *SQLiteStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE loans SET principal_amount = ?, interest_rate = ?, duration_months = ?, start_date = ?, due_date = ?, total_payable = ?, profit = ?, status = ?, approved_by = ?, approved_at = ?, updated_at = ? WHERE id = ?`,
		loan.Principal, loan.InterestRate, loan.DurationMonths, loan.StartDate, loan.DueDate, loan.TotalPayable, loan.Profit,
		loan.Status, loan.ApprovedBy, loan.ApprovedAt, loan.UpdatedAt, loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return expectOne(result, "loan")
}

// DeleteLoan removes a loan and its repayments from the database within a transaction.
func (s *SQLiteStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	return s.InTx(ctx, func(st Storage) error {
		q := st.(*SQLiteStore).q

		_, err := q.ExecContext(ctx, `DELETE FROM repayments WHERE loan_id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete associated repayments: %w", err)
		}

		result, err := q.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete loan: %w", err)
		}
		return expectOne(result, "loan")
	})
}

func scanLoan(row scanner) (*models.Loan, error) {
	var loan models.Loan
	var approvedBy sql.NullString
	var approvedAt sql.NullTime
	if err := row.Scan(&loan.ID, &loan.GroupID, &loan.BorrowerID, &loan.Principal, &loan.InterestRate, &loan.DurationMonths,
		&loan.StartDate, &loan.DueDate, &loan.TotalPayable, &loan.Profit, &loan.Status, &approvedBy, &approvedAt,
		&loan.CreatedAt, &loan.UpdatedAt); err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		loan.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		loan.ApprovedAt = &approvedAt.Time
	}
	return &loan, nil
}

// CreateRepayment appends a repayment to a loan.
func (s *SQLiteStore) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO repayments (id, loan_id, amount, payment_date, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.LoanID, r.Amount, r.PaymentDate, r.Notes, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repayment: %w", err)
	}
	return nil
}

// ListRepayments retrieves all repayments for a given loan ID.
func (s *SQLiteStore) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*models.Repayment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, loan_id, amount, payment_date, notes, created_at FROM repayments WHERE loan_id = ? ORDER BY payment_date ASC, created_at ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return scanRepayments(rows)
}

// ListGroupRepayments retrieves the repayments of every loan in a group.
func (s *SQLiteStore) ListGroupRepayments(ctx context.Context, groupID uuid.UUID) ([]*models.Repayment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.id, r.loan_id, r.amount, r.payment_date, r.notes, r.created_at
		FROM repayments r JOIN loans l ON l.id = r.loan_id
		WHERE l.group_id = ? ORDER BY r.payment_date ASC, r.created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for group %s: %w", groupID, err)
	}
	defer rows.Close()
	return scanRepayments(rows)
}

func scanRepayments(rows *sql.Rows) ([]*models.Repayment, error) {
	repayments := make([]*models.Repayment, 0)
	for rows.Next() {
		var r models.Repayment
		if err := rows.Scan(&r.ID, &r.LoanID, &r.Amount, &r.PaymentDate, &r.Notes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		repayments = append(repayments, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for repayments: %w", err)
	}
	return repayments, nil
}
