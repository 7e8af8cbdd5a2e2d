// Package token implements issuance, rotation, and validation of signed
// credentials on top of the codec and the credential store.
package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Pair bundles a short-lived access token and a long-lived refresh token.
// The raw strings exist only in this value; afterwards the server holds
// nothing but their digests.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints access/refresh token pairs and persists their records.
// Revocation of prior records and creation of new ones happen in one
// transaction, so a rotation either fully wins or leaves no trace.
type Issuer struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	accessSecret    []byte
	refreshSecret   []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
	singleSession   bool
}

func NewIssuer(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Issuer {
	return &Issuer{
		db:              db,
		repos:           m,
		logger:          logger.With("module", "token_issuer"),
		accessSecret:    []byte(cfg.AccessTokenSecret),
		refreshSecret:   []byte(cfg.RefreshTokenSecret),
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
		singleSession:   cfg.SingleSession,
	}
}

// Issue mints a new token pair for ownerID. Under the single-session
// policy, whatever access/refresh records are currently valid for the
// owner are revoked first; a concurrent rotation winning one of those
// revokes is tolerated. Any other store failure aborts the whole issue.
func (i *Issuer) Issue(ctx context.Context, ownerID string) (*Pair, error) {
	var pair *Pair

	err := dbx.WithTx(ctx, i.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if i.singleSession {
			if err := i.revokeCurrent(ctx, tx, ownerID); err != nil {
				return err
			}
		}
		var mintErr error
		pair, mintErr = i.mintPair(ctx, tx, ownerID)
		return mintErr
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Rotate replaces the specific presented refresh record with a fresh pair.
// The CAS revoke of that record decides rotation races: if it fails with
// common.ErrAlreadyRevoked, a concurrent rotation already won, this
// attempt has failed, and no new tokens are issued. The error is returned
// as-is so callers can refuse without retrying.
func (i *Issuer) Rotate(ctx context.Context, record *models.Credential) (*Pair, error) {
	var pair *Pair

	err := dbx.WithTx(ctx, i.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := i.repos.Credentials(tx)

		if err := repo.Revoke(ctx, record.ID); err != nil {
			return err
		}

		// Only the access token minted together with this refresh token is
		// superseded; other sessions of the owner keep theirs.
		if err := i.revokePairedAccess(ctx, tx, record); err != nil {
			return err
		}

		var mintErr error
		pair, mintErr = i.mintPair(ctx, tx, record.OwnerID)
		return mintErr
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// revokeCurrent invalidates the owner's currently valid access and refresh
// records, tolerating records that are absent or that another rotation
// revoked first.
func (i *Issuer) revokeCurrent(ctx context.Context, tx dbx.DBTX, ownerID string) error {
	for _, tt := range []models.TokenType{models.TokenTypeAccess, models.TokenTypeRefresh} {
		if err := i.revokeByType(ctx, tx, ownerID, tt); err != nil {
			return err
		}
	}
	return nil
}

func (i *Issuer) revokeByType(ctx context.Context, tx dbx.DBTX, ownerID string, tt models.TokenType) error {
	repo := i.repos.Credentials(tx)

	record, err := repo.FindValid(ctx, ownerID, tt)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	if err := repo.Revoke(ctx, record.ID); err != nil {
		// A concurrent rotation already revoked it; that rotation owns the
		// record now and this issue proceeds with its own fresh pair.
		if errors.Is(err, common.ErrAlreadyRevoked) {
			i.logger.Debug(ctx, "credential already revoked by concurrent rotation",
				"owner_id", ownerID, "token_type", string(tt))
			return nil
		}
		return err
	}

	return nil
}

// revokePairedAccess invalidates the access record sharing refresh's
// PairID, tolerating an access record that is already gone or that a
// concurrent revoke got to first.
func (i *Issuer) revokePairedAccess(ctx context.Context, tx dbx.DBTX, refresh *models.Credential) error {
	if refresh.PairID == "" {
		return nil
	}
	repo := i.repos.Credentials(tx)

	valid, err := repo.FindAllValid(ctx, refresh.OwnerID, models.TokenTypeAccess)
	if err != nil {
		return err
	}
	for _, c := range valid {
		if c.PairID != refresh.PairID {
			continue
		}
		if err := repo.Revoke(ctx, c.ID); err != nil && !errors.Is(err, common.ErrAlreadyRevoked) {
			return err
		}
	}
	return nil
}

// mintPair signs a fresh access and refresh token and persists one record
// per token, with record owner/type/expiry mirroring the embedded claims.
// Both records share one PairID so later revocation touches exactly this
// session.
func (i *Issuer) mintPair(ctx context.Context, tx dbx.DBTX, ownerID string) (*Pair, error) {
	repo := i.repos.Credentials(tx)

	accessToken, accessClaims, err := auth.Sign(ownerID, models.TokenTypeAccess, i.accessSecret, i.accessValidity)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}
	refreshToken, refreshClaims, err := auth.Sign(ownerID, models.TokenTypeRefresh, i.refreshSecret, i.refreshValidity)
	if err != nil {
		return nil, fmt.Errorf("error signing refresh token: %w", err)
	}

	pairID := uuid.NewString()

	_, err = repo.Create(ctx, ownerID, accessToken, models.TokenTypeAccess, pairID,
		accessClaims.IssuedAt.Time, accessClaims.ExpiresAt.Time)
	if err != nil {
		return nil, err
	}
	_, err = repo.Create(ctx, ownerID, refreshToken, models.TokenTypeRefresh, pairID,
		refreshClaims.IssuedAt.Time, refreshClaims.ExpiresAt.Time)
	if err != nil {
		return nil, err
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
