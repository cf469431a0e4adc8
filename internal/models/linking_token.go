package models

import "time"

// LinkingToken is a short-lived, single-use credential for a pending link.
// A token is ISSUED while ConsumedAt is nil and ExpiresAt is in the future,
// CONSUMED once ConsumedAt is set, and EXPIRED once ExpiresAt has passed.
type LinkingToken struct {
	Base
	Token      string     `gorm:"size:64;not null;uniqueIndex" json:"token"`
	TelegramID int64      `gorm:"not null;index" json:"telegram_id,string"`
	GroupLabel string     `gorm:"not null" json:"group_label"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// TokenState is the lifecycle state of a linking token at a point in time.
type TokenState string

const (
	TokenStateIssued   TokenState = "issued"
	TokenStateConsumed TokenState = "consumed"
	TokenStateExpired  TokenState = "expired"
)

// StateAt reports the token state as observed at now. Expiry is decided by
// wall-clock comparison at read time; nothing runs when the deadline passes.
// A token is no longer usable from the instant of ExpiresAt onwards.
func (t *LinkingToken) StateAt(now time.Time) TokenState {
	if t.ConsumedAt != nil {
		return TokenStateConsumed
	}
	if !now.Before(t.ExpiresAt) {
		return TokenStateExpired
	}
	return TokenStateIssued
}
