package store

import "errors"

// Sentinel errors for expected business rejections. Stores return these so
// handlers can map them to 4xx responses; anything else that comes out of a
// store is an infrastructure fault and surfaces as a 500.

// ErrInsufficientBalance is returned when a ledger write would take a user's
// balance below zero. The ledger is left untouched.
var ErrInsufficientBalance = errors.New("insufficient point balance")

// ErrRewardUnavailable is returned when a redemption targets a reward that is
// inactive or out of stock.
var ErrRewardUnavailable = errors.New("reward unavailable")

// ErrScoreOutOfRange is returned when a member score falls outside [1, 5].
var ErrScoreOutOfRange = errors.New("score must be between 1 and 5")

// ErrScoreExists is returned when creating a family score for a (user, entity)
// pair that already has a live one. Callers should update instead.
var ErrScoreExists = errors.New("family score already exists for entity")
