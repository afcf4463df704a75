package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
)

const groupColumns = `id, name, description, contribution_amount, contribution_frequency, interest_rate, status, created_by, created_at, updated_at`

// CreateGroup inserts a new group.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g *models.Group) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO ikimina_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.ContributionAmount, g.ContributionFrequency, g.InterestRate, g.Status, g.CreatedBy, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group %s: %w", g.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by its ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM ikimina_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListGroups retrieves every group ordered by name.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+groupColumns+` FROM ikimina_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return groups, nil
}

// UpdateGroup updates an existing group.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, g *models.Group) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE ikimina_groups SET name = ?, description = ?, contribution_amount = ?, contribution_frequency = ?, interest_rate = ?, status = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Description, g.ContributionAmount, g.ContributionFrequency, g.InterestRate, g.Status, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return expectOne(result, "group")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (*models.Group, error) {
	var g models.Group
	var updated sql.NullTime
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.ContributionAmount, &g.ContributionFrequency, &g.InterestRate, &g.Status, &g.CreatedBy, &g.CreatedAt, &updated); err != nil {
		return nil, err
	}
	g.UpdatedAt = g.CreatedAt
	if updated.Valid {
		g.UpdatedAt = updated.Time
	}
	return &g, nil
}

// UpsertProfile creates or replaces a user's profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO profiles (user_id, full_name, phone, email, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET full_name = excluded.full_name, phone = excluded.phone, email = excluded.email, updated_at = excluded.updated_at`,
		p.UserID, p.FullName, p.Phone, p.Email, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.q.QueryRowContext(ctx, `SELECT user_id, full_name, phone, email, updated_at FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.FullName, &p.Phone, &p.Email, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// GrantRole records a system role for a user. Granting a role twice is not an error.
func (s *SQLiteStore) GrantRole(ctx context.Context, userID, role string) error {
	_, err := s.q.ExecContext(ctx, `INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, userID, role)
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

// GetUserRoles returns the system roles held by a user.
func (s *SQLiteStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles for user %s: %w", userID, err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return roles, nil
}

const memberSelect = `SELECT m.id, m.user_id, m.group_id, m.is_admin, m.status, m.joined_at, m.updated_at,
	COALESCE(p.full_name, ''), COALESCE(p.phone, '')
	FROM group_members m LEFT JOIN profiles p ON p.user_id = m.user_id`

func scanMember(row scanner) (*models.Member, error) {
	var m models.Member
	var updated sql.NullTime
	if err := row.Scan(&m.ID, &m.UserID, &m.GroupID, &m.IsAdmin, &m.Status, &m.JoinedAt, &updated, &m.FullName, &m.Phone); err != nil {
		return nil, err
	}
	m.UpdatedAt = m.JoinedAt
	if updated.Valid {
		m.UpdatedAt = updated.Time
	}
	return &m, nil
}

// GetActiveMembership returns the most recent active membership of a user.
func (s *SQLiteStore) GetActiveMembership(ctx context.Context, userID string) (*models.Member, error) {
	row := s.q.QueryRowContext(ctx, memberSelect+` WHERE m.user_id = ? AND m.status = 'active' ORDER BY m.joined_at DESC LIMIT 1`, userID)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// CreateMember inserts a new group membership.
func (s *SQLiteStore) CreateMember(ctx context.Context, m *models.Member) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO group_members (id, user_id, group_id, is_admin, status, joined_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.GroupID, m.IsAdmin, m.Status, m.JoinedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already has an active membership: %w", m.UserID, ErrConflict)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetMember retrieves a membership by its ID.
func (s *SQLiteStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := scanMember(s.q.QueryRowContext(ctx, memberSelect+` WHERE m.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetLatestMembership returns the newest membership of a user in a group, in any status.
func (s *SQLiteStore) GetLatestMembership(ctx context.Context, userID string, groupID uuid.UUID) (*models.Member, error) {
	row := s.q.QueryRowContext(ctx, memberSelect+` WHERE m.user_id = ? AND m.group_id = ? ORDER BY m.joined_at DESC LIMIT 1`, userID, groupID)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMembers retrieves all memberships of a group, whatever their status.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*models.Member, error) {
	rows, err := s.q.QueryContext(ctx, memberSelect+` WHERE m.group_id = ? ORDER BY m.joined_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for group %s: %w", groupID, err)
	}
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for group members: %w", err)
	}
	return members, nil
}

// UpdateMember updates a membership's admin flag and status.
func (s *SQLiteStore) UpdateMember(ctx context.Context, m *models.Member) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE group_members SET is_admin = ?, status = ?, updated_at = ? WHERE id = ?`,
		m.IsAdmin, m.Status, m.UpdatedAt, m.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already has an active membership: %w", m.UserID, ErrConflict)
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	return expectOne(result, "member")
}
