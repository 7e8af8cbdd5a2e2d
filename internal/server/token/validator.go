package token

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// Validator verifies presented tokens: codec signature and expiry first,
// then the credential store cross-check (record exists and is valid, the
// raw value matches the stored digest, and the embedded claims agree with
// the record). Failure kinds stay distinct here; collapsing them to an
// outward Unauthorized is the caller's job.
type Validator struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	accessSecret  []byte
	refreshSecret []byte
	resetSecret   []byte
}

func NewValidator(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Validator {
	return &Validator{
		db:            db,
		repos:         m,
		logger:        logger.With("module", "token_validator"),
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		resetSecret:   []byte(cfg.ResetTokenSecret),
	}
}

// ValidateRefresh verifies a presented refresh token end to end and
// returns the matched record and decoded claims.
func (v *Validator) ValidateRefresh(ctx context.Context, rawToken string) (*models.Credential, *auth.Claims, error) {
	return v.validate(ctx, rawToken, v.refreshSecret, models.TokenTypeRefresh)
}

// ValidateAccess mirrors ValidateRefresh against the access secret and
// type; the gRPC boundary layer uses it to authenticate incoming calls.
func (v *Validator) ValidateAccess(ctx context.Context, rawToken string) (*models.Credential, *auth.Claims, error) {
	return v.validate(ctx, rawToken, v.accessSecret, models.TokenTypeAccess)
}

// ValidateReset verifies a password-reset token. Reset credentials are
// persisted like any other, which is what makes them single-use: once
// redeemed and revoked, a replayed token fails the store lookup.
func (v *Validator) ValidateReset(ctx context.Context, rawToken string) (*models.Credential, *auth.Claims, error) {
	return v.validate(ctx, rawToken, v.resetSecret, models.TokenTypeReset)
}

func (v *Validator) validate(ctx context.Context, rawToken string, secret []byte, tt models.TokenType) (*models.Credential, *auth.Claims, error) {
	claims, err := auth.Verify(rawToken, secret)
	if err != nil {
		return nil, nil, err
	}
	if claims.TokenType != string(tt) {
		return nil, nil, common.ErrTokenMismatch
	}

	repo := v.repos.Credentials(v.db)

	valid, err := repo.FindAllValid(ctx, claims.UserID, tt)
	if err != nil {
		return nil, nil, err
	}
	if len(valid) == 0 {
		return nil, nil, common.ErrTokenNotFound
	}

	// The presented token must match the digest of one of the owner's
	// valid records; concurrent sessions each validate against their own.
	// No match guards against a forged-but-correctly-signed token
	// referencing a stale record, and against replay after rotation.
	var record *models.Credential
	for _, c := range valid {
		if repo.Compare(rawToken, c) {
			record = c
			break
		}
	}
	if record == nil {
		return nil, nil, common.ErrTokenMismatch
	}

	// The persisted record must agree with the embedded claims.
	if record.OwnerID != claims.UserID || record.Type != tt ||
		!record.ExpiresAt.Equal(claims.ExpiresAt.Time) {
		return nil, nil, common.ErrTokenMismatch
	}

	if record.Expired(time.Now()) {
		return nil, nil, common.ErrTokenExpired
	}

	return record, claims, nil
}
