package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/shopspring/decimal"
)

// ContributionRequest records an expected or received contribution. A nil
// Amount takes the group's contribution amount; a zero DueDate means today.
type ContributionRequest struct {
	MemberID uuid.UUID        `json:"member_id"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	DueDate  time.Time        `json:"due_date"`
	Paid     bool             `json:"paid"`
}

func (l *Ledger) RecordContribution(ctx context.Context, id auth.Identity, groupID uuid.UUID, req ContributionRequest) (*models.Contribution, error) {
	if err := require(id, auth.CapManageFinances, groupID); err != nil {
		return nil, err
	}

	group, err := l.storage.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member, err := l.storage.GetMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.GroupID != groupID || member.Status != models.MemberStatusActive {
		return nil, invalid("member is not an active member of this group")
	}

	amount := group.ContributionAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}

	now := l.now().UTC()
	due := l.today()
	if !req.DueDate.IsZero() {
		due = DateOnly(req.DueDate)
	}
	c := &models.Contribution{
		ID:        uuid.New(),
		GroupID:   groupID,
		MemberID:  member.ID,
		Amount:    amount,
		DueDate:   due,
		Status:    models.ContributionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Paid {
		today := l.today()
		c.Status = models.ContributionStatusPaid
		c.PaidDate = &today
	}

	if err := l.storage.CreateContribution(ctx, c); err != nil {
		return nil, err
	}
	l.invalidate(ctx, groupID)
	l.log.Info("contribution recorded", "contribution_id", c.ID, "group_id", groupID, "member_id", member.ID,
		"amount", amount.String(), "status", c.Status, "by", id.UserID)
	return c, nil
}

// MarkContributionPaid sets a contribution to paid with today's paid date.
func (l *Ledger) MarkContributionPaid(ctx context.Context, id auth.Identity, contributionID uuid.UUID) (*models.Contribution, error) {
	c, err := l.storage.GetContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if err := require(id, auth.CapManageFinances, c.GroupID); err != nil {
		return nil, err
	}
	if c.Status == models.ContributionStatusPaid {
		return nil, fmt.Errorf("%w: contribution is already paid", ErrInvalidTransition)
	}
	return l.setContributionStatus(ctx, id, c, models.ContributionStatusPaid)
}

// SetContributionStatus is the admin override used for late and missed
// contributions. Nothing moves a contribution into those states automatically.
func (l *Ledger) SetContributionStatus(ctx context.Context, id auth.Identity, contributionID uuid.UUID, status models.ContributionStatus) (*models.Contribution, error) {
	if !status.Valid() {
		return nil, invalid("unknown contribution status %q", status)
	}
	c, err := l.storage.GetContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if err := require(id, auth.CapManageFinances, c.GroupID); err != nil {
		return nil, err
	}
	return l.setContributionStatus(ctx, id, c, status)
}

func (l *Ledger) setContributionStatus(ctx context.Context, id auth.Identity, c *models.Contribution, status models.ContributionStatus) (*models.Contribution, error) {
	c.Status = status
	if status == models.ContributionStatusPaid {
		if c.PaidDate == nil {
			today := l.today()
			c.PaidDate = &today
		}
	} else {
		c.PaidDate = nil
	}
	c.UpdatedAt = l.now().UTC()

	if err := l.storage.UpdateContribution(ctx, c); err != nil {
		return nil, err
	}
	l.invalidate(ctx, c.GroupID)
	l.log.Info("contribution status changed", "contribution_id", c.ID, "status", status, "by", id.UserID)
	return c, nil
}

// ListContributions returns a group's contributions. Members only see their own.
func (l *Ledger) ListContributions(ctx context.Context, id auth.Identity, groupID uuid.UUID, memberID *uuid.UUID) ([]*models.Contribution, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}
	if id.Role == auth.RoleMember {
		own := id.MemberID
		memberID = &own
	}
	return l.storage.ListContributions(ctx, groupID, memberID)
}
