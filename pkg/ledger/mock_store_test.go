package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/mcclellann/ikimina/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage interface for testing.
// It hands out copies so callers cannot change stored rows without an Update call.
type MockStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	groups        []*models.Group
	profiles      map[string]*models.Profile
	roles         map[string][]string
	members       []*models.Member
	contributions []*models.Contribution
	loans         []*models.Loan
	repayments    []*models.Repayment
	announcements []*models.Announcement
	comments      []*models.Comment
}

var _ store.Storage = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		profiles: make(map[string]*models.Profile),
		roles:    make(map[string][]string),
	}
}

func (m *MockStore) CreateGroup(ctx context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.groups = append(m.groups, &cp)
	return nil
}

func (m *MockStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("group %w", store.ErrNotFound)
}

func (m *MockStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Group{}
	for _, g := range m.groups {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockStore) UpdateGroup(ctx context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.groups {
		if existing.ID == g.ID {
			cp := *g
			m.groups[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("group %w", store.ErrNotFound)
}

func (m *MockStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MockStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %w", store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) GrantRole(ctx context.Context, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles[userID] {
		if r == role {
			return nil
		}
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *MockStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *MockStore) withName(mem *models.Member) *models.Member {
	cp := *mem
	if p, ok := m.profiles[mem.UserID]; ok {
		cp.FullName = p.FullName
		cp.Phone = p.Phone
	}
	return &cp
}

func (m *MockStore) GetActiveMembership(ctx context.Context, userID string) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.members) - 1; i >= 0; i-- {
		if mem := m.members[i]; mem.UserID == userID && mem.Status == models.MemberStatusActive {
			return m.withName(mem), nil
		}
	}
	return nil, fmt.Errorf("membership %w", store.ErrNotFound)
}

func (m *MockStore) CreateMember(ctx context.Context, mem *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members {
		if existing.UserID == mem.UserID && existing.GroupID == mem.GroupID &&
			existing.Status == models.MemberStatusActive && mem.Status == models.MemberStatusActive {
			return fmt.Errorf("user %s already has an active membership: %w", mem.UserID, store.ErrConflict)
		}
	}
	cp := *mem
	m.members = append(m.members, &cp)
	return nil
}

func (m *MockStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.ID == id {
			return m.withName(mem), nil
		}
	}
	return nil, fmt.Errorf("member %w", store.ErrNotFound)
}

func (m *MockStore) GetLatestMembership(ctx context.Context, userID string, groupID uuid.UUID) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.members) - 1; i >= 0; i-- {
		if mem := m.members[i]; mem.UserID == userID && mem.GroupID == groupID {
			return m.withName(mem), nil
		}
	}
	return nil, fmt.Errorf("membership %w", store.ErrNotFound)
}

func (m *MockStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Member{}
	for _, mem := range m.members {
		if mem.GroupID == groupID {
			out = append(out, m.withName(mem))
		}
	}
	return out, nil
}

func (m *MockStore) UpdateMember(ctx context.Context, mem *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.members {
		if existing.ID == mem.ID {
			cp := *mem
			m.members[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("member %w", store.ErrNotFound)
}

func (m *MockStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contributions = append(m.contributions, &cp)
	return nil
}

func (m *MockStore) GetContribution(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contributions {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("contribution %w", store.ErrNotFound)
}

func (m *MockStore) ListContributions(ctx context.Context, groupID uuid.UUID, memberID *uuid.UUID) ([]*models.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Contribution{}
	for _, c := range m.contributions {
		if c.GroupID == groupID && (memberID == nil || c.MemberID == *memberID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateContribution(ctx context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.contributions {
		if existing.ID == c.ID {
			cp := *c
			m.contributions[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("contribution %w", store.ErrNotFound)
}

func (m *MockStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *loan
	m.loans = append(m.loans, &cp)
	return nil
}

func (m *MockStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("loan %w", store.ErrNotFound)
}

func (m *MockStore) ListLoans(ctx context.Context, groupID uuid.UUID, borrowerID *uuid.UUID) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Loan{}
	for _, l := range m.loans {
		if l.GroupID == groupID && (borrowerID == nil || l.BorrowerID == *borrowerID) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.loans {
		if l.ID == loan.ID {
			cp := *loan
			m.loans[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("loan %w", store.ErrNotFound)
}

func (m *MockStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.loans {
		if l.ID == id {
			m.loans = append(m.loans[:i], m.loans[i+1:]...)
			kept := m.repayments[:0]
			for _, r := range m.repayments {
				if r.LoanID != id {
					kept = append(kept, r)
				}
			}
			m.repayments = kept
			return nil
		}
	}
	return fmt.Errorf("loan %w", store.ErrNotFound)
}

func (m *MockStore) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.repayments = append(m.repayments, &cp)
	return nil
}

func (m *MockStore) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*models.Repayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Repayment{}
	for _, r := range m.repayments {
		if r.LoanID == loanID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) ListGroupRepayments(ctx context.Context, groupID uuid.UUID) ([]*models.Repayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inGroup := make(map[uuid.UUID]bool)
	for _, l := range m.loans {
		if l.GroupID == groupID {
			inGroup[l.ID] = true
		}
	}
	out := []*models.Repayment{}
	for _, r := range m.repayments {
		if inGroup[r.LoanID] {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.announcements = append(m.announcements, &cp)
	return nil
}

func (m *MockStore) GetAnnouncement(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.announcements {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("announcement %w", store.ErrNotFound)
}

func (m *MockStore) ListAnnouncements(ctx context.Context, groupID *uuid.UUID) ([]*models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Announcement{}
	for _, a := range m.announcements {
		system := a.GroupID == nil && groupID == nil
		sameGroup := a.GroupID != nil && groupID != nil && *a.GroupID == *groupID
		if system || sameGroup {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) CreateComment(ctx context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.comments = append(m.comments, &cp)
	return nil
}

func (m *MockStore) ListComments(ctx context.Context, announcementID uuid.UUID) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Comment{}
	for _, c := range m.comments {
		if c.AnnouncementID == announcementID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// InTx serializes transactional blocks; the mock has no rollback.
func (m *MockStore) InTx(ctx context.Context, fn func(store.Storage) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *MockStore) Close() error {
	return nil
}
