package model

import "time"

// FamilyScore is one user's aggregated family opinion of a target entity
// (recipe, product, ...). AverageScore is nil until the first member score
// exists and is always the exact mean of the current member scores.
type FamilyScore struct {
	ID           int64               `json:"id"`
	UserID       int64               `json:"user_id"`
	EntityType   string              `json:"entity_type"`
	EntityID     string              `json:"entity_id"`
	AverageScore *float64            `json:"family_average_score"`
	Notes        string              `json:"notes"`
	Favorite     bool                `json:"is_favorite"`
	Blacklisted  bool                `json:"is_blacklisted"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	MemberScores []FamilyMemberScore `json:"member_scores"`
}

// FamilyMemberScore is one family member's 1-5 rating under a FamilyScore.
type FamilyMemberScore struct {
	ID             int64     `json:"id"`
	FamilyScoreID  int64     `json:"family_score_id"`
	FamilyMemberID int64     `json:"family_member_id"`
	Score          int       `json:"individual_score"`
	Notes          string    `json:"notes"`
	UpdatedAt      time.Time `json:"updated_at"`
}
