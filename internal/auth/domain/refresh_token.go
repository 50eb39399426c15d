package domain

import "time"

// RefreshToken is the stored (outstanding) refresh token. Only the sha256
// hash is persisted; RawToken is populated solely on issuance so the handler
// can return it once.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RawToken  string
}
