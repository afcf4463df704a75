package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// Storage defines the interface for database operations on groups and their finances.
type Storage interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error

	UpsertProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GrantRole(ctx context.Context, userID, role string) error
	// GetUserRoles returns the system roles held by a user.
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	// GetActiveMembership returns the user's active membership, if any.
	GetActiveMembership(ctx context.Context, userID string) (*models.Member, error)

	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	// GetLatestMembership returns the most recent membership of a user in a group, in any status.
	GetLatestMembership(ctx context.Context, userID string, groupID uuid.UUID) (*models.Member, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]*models.Member, error)
	UpdateMember(ctx context.Context, member *models.Member) error

	CreateContribution(ctx context.Context, c *models.Contribution) error
	GetContribution(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	// ListContributions lists a group's contributions; a non-nil memberID narrows to one member.
	ListContributions(ctx context.Context, groupID uuid.UUID, memberID *uuid.UUID) ([]*models.Contribution, error)
	UpdateContribution(ctx context.Context, c *models.Contribution) error

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// ListLoans lists a group's loans; a non-nil borrowerID narrows to one borrower.
	ListLoans(ctx context.Context, groupID uuid.UUID, borrowerID *uuid.UUID) ([]*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	CreateRepayment(ctx context.Context, r *models.Repayment) error
	ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*models.Repayment, error)
	ListGroupRepayments(ctx context.Context, groupID uuid.UUID) ([]*models.Repayment, error)

	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	GetAnnouncement(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
	// ListAnnouncements lists a group's announcements, or system notices when groupID is nil.
	ListAnnouncements(ctx context.Context, groupID *uuid.UUID) ([]*models.Announcement, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, announcementID uuid.UUID) ([]*models.Comment, error)

	// InTx runs fn against a Storage bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Storage) error) error

	Close() error
}
