package model

import "time"

// ContributionType defines how many points a kind of contribution is worth and
// whether it needs a family member to sign off before points are granted.
type ContributionType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	AutoApprove bool      `json:"auto_approve"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "pending"
	ContributionApproved ContributionStatus = "approved"
	ContributionRejected ContributionStatus = "rejected"
)

// Contribution is a user-submitted action that may earn points. PointsAwarded
// stays 0 until approval, at which point the type's value is frozen into the
// row so later edits to the type never rewrite history.
type Contribution struct {
	ID              int64              `json:"id"`
	UserID          int64              `json:"user_id"`
	TypeID          int64              `json:"contribution_type_id"`
	TypeName        string             `json:"contribution_type_name,omitempty"`
	PointsAwarded   int                `json:"points_awarded"`
	Status          ContributionStatus `json:"status"`
	ApprovedBy      *int64             `json:"approved_by,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	EntityType      *string            `json:"entity_type,omitempty"`
	EntityID        *string            `json:"entity_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}
