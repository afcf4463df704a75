package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/cache"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/mcclellann/ikimina/pkg/store"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Ledger handles the business logic for groups, contributions and loans.
// Every operation takes the caller's identity explicitly.
type Ledger struct {
	storage store.Storage
	cache   cache.Cache
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Ledger)

func WithCache(c cache.Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides the time source; tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		cache:   cache.Noop{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) today() time.Time {
	return DateOnly(l.now())
}

// invalidate drops the cached summary of a group. Cache failures only cost a
// stale dashboard until the TTL runs out, so they are logged and swallowed.
func (l *Ledger) invalidate(ctx context.Context, groupID uuid.UUID) {
	if err := l.cache.Invalidate(ctx, groupID); err != nil {
		l.log.Warn("failed to invalidate summary cache", "group_id", groupID, "error", err)
	}
}

func require(id auth.Identity, c auth.Capability, groupID uuid.UUID) error {
	if !id.Can(c, groupID) {
		return ErrForbidden
	}
	return nil
}

// ResolveIdentity looks up the system roles and active membership of a user.
// A super admin who also belongs to a group keeps the super_admin role.
func (l *Ledger) ResolveIdentity(ctx context.Context, userID string) (auth.Identity, error) {
	id := auth.Identity{UserID: userID}

	roles, err := l.storage.GetUserRoles(ctx, userID)
	if err != nil {
		return id, err
	}
	for _, r := range roles {
		if auth.Role(r) == auth.RoleSuperAdmin {
			id.Role = auth.RoleSuperAdmin
		}
	}

	m, err := l.storage.GetActiveMembership(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return id, err
	}
	if m != nil {
		id.GroupID = m.GroupID
		id.MemberID = m.ID
		if id.Role == auth.RoleNone {
			id.Role = auth.RoleMember
			if m.IsAdmin {
				id.Role = auth.RoleGroupAdmin
			}
		}
	}
	return id, nil
}

// GrantSuperAdmin records the super_admin role for a user. It is an operator
// action run from the command line, not over the API.
func (l *Ledger) GrantSuperAdmin(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("user id is required")
	}
	return l.storage.GrantRole(ctx, userID, string(auth.RoleSuperAdmin))
}

type Me struct {
	auth.Identity
	Profile *models.Profile `json:"profile,omitempty"`
}

// Me returns the caller's identity together with their profile, if one exists.
func (l *Ledger) Me(ctx context.Context, id auth.Identity) (*Me, error) {
	p, err := l.storage.GetProfile(ctx, id.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &Me{Identity: id, Profile: p}, nil
}

type ProfileUpdate struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func (l *Ledger) UpdateProfile(ctx context.Context, id auth.Identity, u ProfileUpdate) (*models.Profile, error) {
	if id.UserID == "" {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(u.FullName)
	if name == "" {
		return nil, invalid("full name is required")
	}
	p := &models.Profile{
		UserID:    id.UserID,
		FullName:  name,
		Phone:     strings.TrimSpace(u.Phone),
		Email:     strings.TrimSpace(u.Email),
		UpdatedAt: l.now().UTC(),
	}
	if err := l.storage.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
