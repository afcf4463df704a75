package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusInactive GroupStatus = "inactive"
)

type ContributionFrequency string

const (
	FrequencyWeekly   ContributionFrequency = "weekly"
	FrequencyBiweekly ContributionFrequency = "biweekly"
	FrequencyMonthly  ContributionFrequency = "monthly"
)

func (f ContributionFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Group is an ikimina: the unit every other record is scoped to.
type Group struct {
	ID                    uuid.UUID             `json:"id"`
	Name                  string                `json:"name"`
	Description           string                `json:"description,omitempty"`
	ContributionAmount    decimal.Decimal       `json:"contribution_amount"`
	ContributionFrequency ContributionFrequency `json:"contribution_frequency"`
	InterestRate          decimal.Decimal       `json:"interest_rate"` // default for new loans
	Status                GroupStatus           `json:"status"`
	CreatedBy             string                `json:"created_by"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

type MemberStatus string

const (
	MemberStatusActive        MemberStatus = "active"
	MemberStatusPendingRejoin MemberStatus = "pending_rejoin"
	MemberStatusRemoved       MemberStatus = "removed"
)

// Member is a user's membership of one group.
type Member struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"` // subject issued by the identity provider
	GroupID   uuid.UUID    `json:"group_id"`
	IsAdmin   bool         `json:"is_admin"`
	Status    MemberStatus `json:"status"`
	JoinedAt  time.Time    `json:"joined_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Joined from profiles.
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type Profile struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
