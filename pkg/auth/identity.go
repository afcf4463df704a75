// Package auth resolves bearer tokens into a request-scoped Identity and
// decides what that identity may do.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Role string

const (
	RoleNone       Role = ""
	RoleSuperAdmin Role = "super_admin"
	RoleGroupAdmin Role = "group_admin"
	RoleMember     Role = "member"
)

// Identity is the caller of one request. GroupID and MemberID are zero unless
// the caller has an active membership.
type Identity struct {
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	GroupID  uuid.UUID `json:"group_id,omitempty"`
	MemberID uuid.UUID `json:"member_id,omitempty"`
}

func (id Identity) HasMembership() bool {
	return id.MemberID != uuid.Nil
}

type Capability int

const (
	// CapReadGroup covers dashboards, rosters, loan and contribution lists.
	CapReadGroup Capability = iota
	// CapManageGroup covers group settings and the member roster.
	CapManageGroup
	// CapManageFinances covers contributions, loan issue/approval/rejection and repayments.
	CapManageFinances
	// CapRequestLoan lets a member ask for a pending loan for themselves.
	CapRequestLoan
	CapPostAnnouncement
	CapComment
	CapViewReports
	CapCreateGroup
	CapPostNotice
	CapSystemOverview
)

// Can reports whether the identity holds capability c on the given group. System-wide
// capabilities ignore groupID.
func (id Identity) Can(c Capability, groupID uuid.UUID) bool {
	if id.UserID == "" {
		return false
	}
	own := id.HasMembership() && id.GroupID == groupID

	switch id.Role {
	case RoleSuperAdmin:
		switch c {
		case CapManageFinances, CapRequestLoan:
			return false
		}
		return true
	case RoleGroupAdmin:
		switch c {
		case CapCreateGroup, CapPostNotice, CapSystemOverview:
			return false
		}
		return own
	case RoleMember:
		switch c {
		case CapReadGroup, CapComment, CapRequestLoan:
			return own
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
