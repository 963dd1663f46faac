package model

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionEarned   TransactionType = "earned"
	TransactionSpent    TransactionType = "spent"
	TransactionAdjusted TransactionType = "adjusted"
)

// PointTransaction is an immutable ledger entry. BalanceAfter is the user's
// balance at the moment the entry committed, so the log doubles as an audit
// trail of every balance the user has ever had.
type PointTransaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Type            TransactionType `json:"transaction_type"`
	Amount          int             `json:"points_amount"`
	BalanceAfter    int             `json:"balance_after"`
	Description     string          `json:"description"`
	ContributionID  *int64          `json:"contribution_id,omitempty"`
	RewardItemID    *int64          `json:"reward_item_id,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// PointsSummary is the dashboard view of a user's ledger.
type PointsSummary struct {
	UserID              int64              `json:"user_id"`
	CurrentBalance      int                `json:"current_balance"`
	LifetimeEarned      int                `json:"lifetime_earned"`
	TotalSpent          int                `json:"total_spent"`
	PendingApproval     int                `json:"pending_approval"`
	RecentTransactions  []PointTransaction `json:"recent_transactions"`
	RecentContributions []Contribution     `json:"recent_contributions"`
}

type LeaderboardEntry struct {
	UserID         int64  `json:"user_id"`
	UserName       string `json:"user_name"`
	Balance        int    `json:"balance"`
	LifetimeEarned int    `json:"lifetime_earned"`
}
