// Package credentials declares the server-side store contract for issued
// token metadata. The store owns hashing of raw token values: callers hand
// in raw tokens, only digests ever reach persistent storage.
package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations for persisting, querying, and revoking
// credential records.
type Repository interface {
	// Create persists a new valid record for ownerID holding the digest of
	// rawToken. issuedAt/expiresAt must mirror the claims embedded in the
	// signed token so validation can cross-check them later. pairID ties
	// the access and refresh records of one session together; records that
	// belong to no session (reset tokens) pass an empty pairID.
	Create(ctx context.Context, ownerID string, rawToken string, tokenType models.TokenType, pairID string, issuedAt, expiresAt time.Time) (*models.Credential, error)

	// FindValid returns the most recently issued record with IsValid true
	// for the (ownerID, tokenType) pair, or common.ErrorNotFound. Under
	// the single-session policy multiple valid records for one pair are a
	// data inconsistency: implementations return the newest and log the
	// rest, never silently ignore them.
	FindValid(ctx context.Context, ownerID string, tokenType models.TokenType) (*models.Credential, error)

	// FindAllValid returns every record with IsValid true for the
	// (ownerID, tokenType) pair, newest first. No match is an empty slice,
	// not an error: concurrent sessions make any count of valid records
	// legitimate.
	FindAllValid(ctx context.Context, ownerID string, tokenType models.TokenType) ([]*models.Credential, error)

	// Revoke marks the record invalid and stamps RevokedAt. It is a
	// compare-and-swap: revoking a record that is no longer valid fails
	// with common.ErrAlreadyRevoked so callers can tell "someone else
	// already rotated" apart from success.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForOwner invalidates every valid record the owner has,
	// across all token types. Revoking nothing is not an error.
	RevokeAllForOwner(ctx context.Context, ownerID string) error

	// Compare reports whether rawToken matches the record's stored digest.
	// A mismatch is a false return, never an error.
	Compare(rawToken string, c *models.Credential) bool
}
