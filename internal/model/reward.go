package model

import "time"

// RewardItem is something points can be exchanged for. Quantity is nil for
// unlimited rewards; a tracked quantity never goes below zero.
type RewardItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PointsCost  int       `json:"points_cost"`
	RewardType  string    `json:"reward_type"`
	Quantity    *int      `json:"quantity,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// RewardRedemption records a completed exchange. PointsSpent snapshots the
// item's cost at redemption time.
type RewardRedemption struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RewardItemID int64     `json:"reward_item_id"`
	PointsSpent  int       `json:"points_spent"`
	ReceiptCode  string    `json:"receipt_code"`
	Active       bool      `json:"active"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}
