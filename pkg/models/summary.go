package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GroupSummary struct {
	GroupID            uuid.UUID       `json:"group_id"`
	TotalSavings       decimal.Decimal `json:"total_savings"`
	ActiveLoansTotal   decimal.Decimal `json:"active_loans_total"`
	ProfitEarned       decimal.Decimal `json:"profit_earned"`
	CollectionRate     decimal.Decimal `json:"collection_rate"` // 0..1
	PaidContributions  int             `json:"paid_contributions"`
	TotalContributions int             `json:"total_contributions"`
	ActiveLoans        int             `json:"active_loans"`
	PendingLoans       int             `json:"pending_loans"`
	ActiveMembers      int             `json:"active_members"`
	AvailableFunds     decimal.Decimal `json:"available_funds"`
}

type SystemOverview struct {
	Groups           int             `json:"groups"`
	ActiveGroups     int             `json:"active_groups"`
	Members          int             `json:"members"`
	TotalSavings     decimal.Decimal `json:"total_savings"`
	ActiveLoansTotal decimal.Decimal `json:"active_loans_total"`
	ProfitEarned     decimal.Decimal `json:"profit_earned"`
}

type MonthlyRow struct {
	Month          int             `json:"month"` // 1..12
	Label          string          `json:"label"`
	Contributions  decimal.Decimal `json:"contributions"`
	LoansDisbursed decimal.Decimal `json:"loans_disbursed"`
	Repayments     decimal.Decimal `json:"repayments"`
}

type MonthlyReport struct {
	GroupID             uuid.UUID       `json:"group_id"`
	GroupName           string          `json:"group_name"`
	Year                int             `json:"year"`
	TotalContributions  decimal.Decimal `json:"total_contributions"`
	TotalLoansDisbursed decimal.Decimal `json:"total_loans_disbursed"`
	TotalRepayments     decimal.Decimal `json:"total_repayments"`
	Rows                []MonthlyRow    `json:"rows"`
}
