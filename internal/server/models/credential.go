package models

import "time"

// TokenType partitions credential records: at most one valid record may
// exist per (owner, type) pair under the single-session policy.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeReset   TokenType = "reset"
)

// Credential is the server-side metadata of one issued token. The raw token
// string is never persisted; only its digest is. A record is mutated exactly
// once, by revocation: IsValid flips to false and RevokedAt is set.
//
// Access and refresh records minted together share a PairID, so revoking a
// session touches exactly its own two records. Reset records stand alone
// and carry no PairID.
type Credential struct {
	ID        string
	OwnerID   string
	PairID    string
	TokenHash string
	Type      TokenType
	IsValid   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the record is past its natural expiry at t.
// Expiry is checked lazily at validation time and never mutated in storage.
func (c *Credential) Expired(t time.Time) bool {
	return t.After(c.ExpiresAt)
}
