package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/token"
)

// PasswordResetService implements the forgot-password flow. Reset tokens
// are persisted as credential records like any other token type, which
// makes them single-use and revocable before expiry. Redeeming a reset
// token revokes every session the user has.
type PasswordResetService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	validator *token.Validator
	notifier  Notifier
	logger    logging.Logger

	resetSecret   []byte
	resetValidity time.Duration
	timeout       time.Duration
}

func NewPasswordResetService(db *sql.DB, m repomanager.RepositoryManager, validator *token.Validator, notifier Notifier, cfg *config.Config, logger logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		db:            db,
		repos:         m,
		validator:     validator,
		notifier:      notifier,
		logger:        logger.With("module", "password_reset_service"),
		resetSecret:   []byte(cfg.ResetTokenSecret),
		resetValidity: cfg.ResetTokenValidityDuration,
		timeout:       cfg.RequestTimeout,
	}
}

// RequestReset issues a reset token for the account behind email and hands
// it to the notifier. An unknown email is reported as success to the
// caller: whether an address is registered is not the caller's to learn.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	user, err := s.repos.Users(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "reset requested for unknown email")
			return nil
		}
		s.logger.Error(ctx, "error looking up user", "error", err)
		return common.ErrorInternal
	}

	rawToken, claims, err := auth.Sign(user.ID, models.TokenTypeReset, s.resetSecret, s.resetValidity)
	if err != nil {
		s.logger.Error(ctx, "error signing reset token", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Credentials(tx)

		// A newer request supersedes any outstanding reset token.
		priors, err := repo.FindAllValid(ctx, user.ID, models.TokenTypeReset)
		if err != nil {
			return err
		}
		for _, prior := range priors {
			if err := repo.Revoke(ctx, prior.ID); err != nil && !errors.Is(err, common.ErrAlreadyRevoked) {
				return err
			}
		}

		// Reset tokens belong to no session pair.
		_, err = repo.Create(ctx, user.ID, rawToken, models.TokenTypeReset, "",
			claims.IssuedAt.Time, claims.ExpiresAt.Time)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "error persisting reset token", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	// The reset record is committed by now; a delivery failure leaves it
	// intact and the user can simply request again.
	if err := s.notifier.SendResetInstructions(ctx, user.Email, rawToken, claims.ExpiresAt.Time); err != nil {
		s.logger.Error(ctx, "error sending reset instructions", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	return nil
}

// ResetPassword redeems a reset token and installs a new password hash.
// Every failure mode (forged, expired, replayed, unknown user) surfaces as
// common.ErrResetTokenInvalid; the specific kind is logged only.
func (s *PasswordResetService) ResetPassword(ctx context.Context, rawToken string, newPassword string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	record, claims, err := s.validator.ValidateReset(ctx, rawToken)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			s.logger.Error(ctx, "error validating reset token", "error", err)
			return common.ErrorInternal
		}
		s.logger.Info(ctx, "reset token refused", "reason", err.Error())
		return common.ErrResetTokenInvalid
	}

	user, err := s.repos.Users(s.db).FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Deliberately not UserNotFound: existence must not leak.
			s.logger.Info(ctx, "reset token refused", "reason", "subject no longer exists")
			return common.ErrResetTokenInvalid
		}
		s.logger.Error(ctx, "error looking up user", "error", err)
		return common.ErrorInternal
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		s.logger.Error(ctx, "error hashing password", "error", err)
		return common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Credentials(tx)

		// CAS on the reset record makes redemption single-use: a
		// concurrent redeem of the same token loses here.
		if err := repo.Revoke(ctx, record.ID); err != nil {
			return err
		}
		if err := s.repos.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		// A password reset invalidates every outstanding session.
		return repo.RevokeAllForOwner(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRevoked) {
			s.logger.Info(ctx, "reset token refused", "reason", "already redeemed")
			return common.ErrResetTokenInvalid
		}
		s.logger.Error(ctx, "error resetting password", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	return nil
}

func (s *PasswordResetService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
