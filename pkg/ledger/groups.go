package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/mcclellann/ikimina/pkg/store"
	"github.com/shopspring/decimal"
)

type GroupRequest struct {
	Name                  string                       `json:"name"`
	Description           string                       `json:"description"`
	ContributionAmount    decimal.Decimal              `json:"contribution_amount"`
	ContributionFrequency models.ContributionFrequency `json:"contribution_frequency"`
	InterestRate          decimal.Decimal              `json:"interest_rate"`
	// AdminUserID, when set, is enrolled as the group's first admin.
	AdminUserID string `json:"admin_user_id,omitempty"`
}

func (r GroupRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("group name is required")
	}
	if !r.ContributionAmount.IsPositive() {
		return invalid("contribution amount must be positive")
	}
	if !r.ContributionFrequency.Valid() {
		return invalid("unknown contribution frequency %q", r.ContributionFrequency)
	}
	if r.InterestRate.IsNegative() {
		return invalid("interest rate must not be negative")
	}
	return nil
}

func (l *Ledger) CreateGroup(ctx context.Context, id auth.Identity, req GroupRequest) (*models.Group, error) {
	if err := require(id, auth.CapCreateGroup, uuid.Nil); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	g := &models.Group{
		ID:                    uuid.New(),
		Name:                  strings.TrimSpace(req.Name),
		Description:           strings.TrimSpace(req.Description),
		ContributionAmount:    req.ContributionAmount,
		ContributionFrequency: req.ContributionFrequency,
		InterestRate:          req.InterestRate,
		Status:                models.GroupStatusActive,
		CreatedBy:             id.UserID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		if req.AdminUserID != "" {
			if err := ensureNotEnrolled(ctx, tx, req.AdminUserID, uuid.Nil); err != nil {
				return err
			}
		}
		if err := tx.CreateGroup(ctx, g); err != nil {
			return err
		}
		if req.AdminUserID == "" {
			return nil
		}
		return tx.CreateMember(ctx, &models.Member{
			ID:        uuid.New(),
			UserID:    req.AdminUserID,
			GroupID:   g.ID,
			IsAdmin:   true,
			Status:    models.MemberStatusActive,
			JoinedAt:  now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("group created", "group_id", g.ID, "name", g.Name, "by", id.UserID)
	return g, nil
}

func (l *Ledger) GetGroup(ctx context.Context, id auth.Identity, groupID uuid.UUID) (*models.Group, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}
	return l.storage.GetGroup(ctx, groupID)
}

// ListGroups returns every group to a super admin and the caller's own group
// to anyone else.
func (l *Ledger) ListGroups(ctx context.Context, id auth.Identity) ([]*models.Group, error) {
	if id.Role == auth.RoleSuperAdmin {
		return l.storage.ListGroups(ctx)
	}
	if !id.HasMembership() {
		return []*models.Group{}, nil
	}
	g, err := l.storage.GetGroup(ctx, id.GroupID)
	if err != nil {
		return nil, err
	}
	return []*models.Group{g}, nil
}

// GroupUpdate changes only the fields that are set.
type GroupUpdate struct {
	Name                  *string                       `json:"name,omitempty"`
	Description           *string                       `json:"description,omitempty"`
	ContributionAmount    *decimal.Decimal              `json:"contribution_amount,omitempty"`
	ContributionFrequency *models.ContributionFrequency `json:"contribution_frequency,omitempty"`
	InterestRate          *decimal.Decimal              `json:"interest_rate,omitempty"`
	Status                *models.GroupStatus           `json:"status,omitempty"`
}

func (l *Ledger) UpdateGroup(ctx context.Context, id auth.Identity, groupID uuid.UUID, u GroupUpdate) (*models.Group, error) {
	if err := require(id, auth.CapManageGroup, groupID); err != nil {
		return nil, err
	}
	g, err := l.storage.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	req := GroupRequest{
		Name:                  g.Name,
		Description:           g.Description,
		ContributionAmount:    g.ContributionAmount,
		ContributionFrequency: g.ContributionFrequency,
		InterestRate:          g.InterestRate,
	}
	if u.Name != nil {
		req.Name = *u.Name
	}
	if u.Description != nil {
		req.Description = *u.Description
	}
	if u.ContributionAmount != nil {
		req.ContributionAmount = *u.ContributionAmount
	}
	if u.ContributionFrequency != nil {
		req.ContributionFrequency = *u.ContributionFrequency
	}
	if u.InterestRate != nil {
		req.InterestRate = *u.InterestRate
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if u.Status != nil {
		if *u.Status != models.GroupStatusActive && *u.Status != models.GroupStatusInactive {
			return nil, invalid("unknown group status %q", *u.Status)
		}
		g.Status = *u.Status
	}

	g.Name = strings.TrimSpace(req.Name)
	g.Description = strings.TrimSpace(req.Description)
	g.ContributionAmount = req.ContributionAmount
	g.ContributionFrequency = req.ContributionFrequency
	g.InterestRate = req.InterestRate
	g.UpdatedAt = l.now().UTC()

	if err := l.storage.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	l.log.Info("group updated", "group_id", g.ID, "by", id.UserID)
	return g, nil
}

type MemberRequest struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}

// AddMember enrolls a user in a group. When a name is given the user's profile
// is created or refreshed in the same transaction.
func (l *Ledger) AddMember(ctx context.Context, id auth.Identity, groupID uuid.UUID, req MemberRequest) (*models.Member, error) {
	if err := require(id, auth.CapManageGroup, groupID); err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, invalid("user id is required")
	}

	now := l.now().UTC()
	m := &models.Member{
		ID:        uuid.New(),
		UserID:    userID,
		GroupID:   groupID,
		IsAdmin:   req.IsAdmin,
		Status:    models.MemberStatusActive,
		JoinedAt:  now,
		UpdatedAt: now,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     strings.TrimSpace(req.Phone),
	}

	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if err := ensureNotEnrolled(ctx, tx, userID, uuid.Nil); err != nil {
			return err
		}
		if m.FullName != "" {
			if err := tx.UpsertProfile(ctx, &models.Profile{UserID: userID, FullName: m.FullName, Phone: m.Phone, UpdatedAt: now}); err != nil {
				return err
			}
		}
		return tx.CreateMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, groupID)
	l.log.Info("member added", "member_id", m.ID, "group_id", groupID, "user_id", userID, "admin", m.IsAdmin, "by", id.UserID)
	return m, nil
}

func (l *Ledger) ListMembers(ctx context.Context, id auth.Identity, groupID uuid.UUID) ([]*models.Member, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}
	return l.storage.ListMembers(ctx, groupID)
}

var memberTransitions = map[models.MemberStatus][]models.MemberStatus{
	models.MemberStatusActive:        {models.MemberStatusRemoved},
	models.MemberStatusRemoved:       {models.MemberStatusPendingRejoin},
	models.MemberStatusPendingRejoin: {models.MemberStatusActive, models.MemberStatusRemoved},
}

func canTransition(from, to models.MemberStatus) bool {
	for _, s := range memberTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ensureNotEnrolled fails with store.ErrConflict when the user already holds
// an active membership other than except. A user belongs to one group at a
// time, so their identity never has to pick between groups.
func ensureNotEnrolled(ctx context.Context, s store.Storage, userID string, except uuid.UUID) error {
	m, err := s.GetActiveMembership(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.ID == except {
		return nil
	}
	return fmt.Errorf("user %s is already an active member of group %s: %w", userID, m.GroupID, store.ErrConflict)
}

// MemberUpdate changes a membership's status, its admin flag, or both.
type MemberUpdate struct {
	Status  *models.MemberStatus `json:"status,omitempty"`
	IsAdmin *bool                `json:"is_admin,omitempty"`
}

// UpdateMember applies u in one transaction: either every change is saved or
// none is. A member of another group reads as not found.
func (l *Ledger) UpdateMember(ctx context.Context, id auth.Identity, groupID, memberID uuid.UUID, u MemberUpdate) (*models.Member, error) {
	if err := require(id, auth.CapManageGroup, groupID); err != nil {
		return nil, err
	}
	if u.Status == nil && u.IsAdmin == nil {
		return nil, invalid("status or is_admin is required")
	}

	var m *models.Member
	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		var err error
		m, err = tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if m.GroupID != groupID {
			return fmt.Errorf("member %w", store.ErrNotFound)
		}
		if u.Status != nil {
			if err := transition(ctx, tx, m, *u.Status); err != nil {
				return err
			}
		}
		if u.IsAdmin != nil {
			if m.Status != models.MemberStatusActive {
				return invalid("only active members can be admins")
			}
			m.IsAdmin = *u.IsAdmin
		}
		m.UpdatedAt = l.now().UTC()
		return tx.UpdateMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, groupID)
	l.log.Info("member updated", "member_id", m.ID, "group_id", groupID, "status", m.Status, "admin", m.IsAdmin, "by", id.UserID)
	return m, nil
}

// ChangeMemberStatus moves a membership along
// active → removed → pending_rejoin → active (or back to removed).
func (l *Ledger) ChangeMemberStatus(ctx context.Context, id auth.Identity, groupID, memberID uuid.UUID, status models.MemberStatus) (*models.Member, error) {
	return l.UpdateMember(ctx, id, groupID, memberID, MemberUpdate{Status: &status})
}

// SetMemberAdmin grants or revokes group admin rights.
func (l *Ledger) SetMemberAdmin(ctx context.Context, id auth.Identity, groupID, memberID uuid.UUID, isAdmin bool) (*models.Member, error) {
	return l.UpdateMember(ctx, id, groupID, memberID, MemberUpdate{IsAdmin: &isAdmin})
}

// RequestRejoin lets a removed member ask to be let back into a group.
func (l *Ledger) RequestRejoin(ctx context.Context, id auth.Identity, groupID uuid.UUID) (*models.Member, error) {
	if id.UserID == "" {
		return nil, ErrForbidden
	}

	var m *models.Member
	err := l.storage.InTx(ctx, func(tx store.Storage) error {
		var err error
		m, err = tx.GetLatestMembership(ctx, id.UserID, groupID)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, m, models.MemberStatusPendingRejoin); err != nil {
			return err
		}
		m.UpdatedAt = l.now().UTC()
		return tx.UpdateMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, groupID)
	l.log.Info("member requested rejoin", "member_id", m.ID, "group_id", groupID, "by", id.UserID)
	return m, nil
}

// transition sets m.Status when the move is allowed. Readmission is refused
// while the user is active in another group.
func transition(ctx context.Context, tx store.Storage, m *models.Member, status models.MemberStatus) error {
	if !canTransition(m.Status, status) {
		return fmt.Errorf("%w: member is %s, cannot become %s", ErrInvalidTransition, m.Status, status)
	}
	if status == models.MemberStatusActive {
		if err := ensureNotEnrolled(ctx, tx, m.UserID, m.ID); err != nil {
			return err
		}
	}
	m.Status = status
	return nil
}

// GroupSummary returns the dashboard figures of a group, served from the cache
// when possible.
func (l *Ledger) GroupSummary(ctx context.Context, id auth.Identity, groupID uuid.UUID) (*models.GroupSummary, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}

	version, verr := l.cache.Version(ctx, groupID)
	if verr != nil {
		l.log.Warn("summary cache version read failed", "group_id", groupID, "error", verr)
	}
	cached, err := l.cache.GetSummary(ctx, groupID)
	if err != nil {
		l.log.Warn("summary cache read failed", "group_id", groupID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	s, err := l.computeSummary(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		if err := l.cache.SetSummary(ctx, s, version); err != nil {
			l.log.Warn("summary cache write failed", "group_id", groupID, "error", err)
		}
	}
	return s, nil
}

func (l *Ledger) computeSummary(ctx context.Context, groupID uuid.UUID) (*models.GroupSummary, error) {
	if _, err := l.storage.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	contributions, err := l.storage.ListContributions(ctx, groupID, nil)
	if err != nil {
		return nil, err
	}
	loans, err := l.storage.ListLoans(ctx, groupID, nil)
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

	s := Summarize(groupID, contributions, loans)
	s.AvailableFunds = AvailableFunds(contributions, loans, RepaidByLoan(repayments))
	for _, m := range members {
		if m.Status == models.MemberStatusActive {
			s.ActiveMembers++
		}
	}
	return &s, nil
}

// SystemOverview totals every group for the super admin dashboard.
func (l *Ledger) SystemOverview(ctx context.Context, id auth.Identity) (*models.SystemOverview, error) {
	if err := require(id, auth.CapSystemOverview, uuid.Nil); err != nil {
		return nil, err
	}
	groups, err := l.storage.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	o := &models.SystemOverview{
		Groups:           len(groups),
		TotalSavings:     decimal.Zero,
		ActiveLoansTotal: decimal.Zero,
		ProfitEarned:     decimal.Zero,
	}
	for _, g := range groups {
		if g.Status == models.GroupStatusActive {
			o.ActiveGroups++
		}
		s, err := l.GroupSummary(ctx, id, g.ID)
		if err != nil {
			return nil, err
		}
		o.Members += s.ActiveMembers
		o.TotalSavings = o.TotalSavings.Add(s.TotalSavings)
		o.ActiveLoansTotal = o.ActiveLoansTotal.Add(s.ActiveLoansTotal)
		o.ProfitEarned = o.ProfitEarned.Add(s.ProfitEarned)
	}
	return o, nil
}

// MonthlyReport buckets a group's year by month for the reports page and
// exports. Year 0 means the current year.
func (l *Ledger) MonthlyReport(ctx context.Context, id auth.Identity, groupID uuid.UUID, year int) (*models.MonthlyReport, error) {
	if err := require(id, auth.CapViewReports, groupID); err != nil {
		return nil, err
	}
	if year == 0 {
		year = l.now().Year()
	}
	if year < 1900 || year > 9999 {
		return nil, invalid("year %d out of range", year)
	}

	group, err := l.storage.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	contributions, err := l.storage.ListContributions(ctx, groupID, nil)
	if err != nil {
		return nil, err
	}
	loans, err := l.storage.ListLoans(ctx, groupID, nil)
	if err != nil {
		return nil, err
	}
	repayments, err := l.storage.ListGroupRepayments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return BuildMonthlyReport(group, year, contributions, loans, repayments), nil
}
