package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContributionStatus string

const (
	ContributionStatusPaid    ContributionStatus = "paid"
	ContributionStatusPending ContributionStatus = "pending"
	ContributionStatusLate    ContributionStatus = "late"
	ContributionStatusMissed  ContributionStatus = "missed"
)

func (s ContributionStatus) Valid() bool {
	switch s {
	case ContributionStatusPaid, ContributionStatusPending, ContributionStatusLate, ContributionStatusMissed:
		return true
	}
	return false
}

type Contribution struct {
	ID        uuid.UUID          `json:"id"`
	GroupID   uuid.UUID          `json:"group_id"`
	MemberID  uuid.UUID          `json:"member_id"`
	Amount    decimal.Decimal    `json:"amount"`
	DueDate   time.Time          `json:"due_date"`
	PaidDate  *time.Time         `json:"paid_date,omitempty"`
	Status    ContributionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
