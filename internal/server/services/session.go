// Package services contains server-side business logic. This file
// implements SessionService, which handles sign-up, sign-in, refresh-token
// rotation, and logout.
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
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/token"
)

// AuthResult is what a successful sign-up or sign-in hands to the caller:
// the user record and the freshly minted token pair.
type AuthResult struct {
	User   *models.User
	Tokens *token.Pair
}

// SessionService provides the session use cases. Token-validation failures
// of every internal kind (bad signature, expired, not found, mismatch,
// lost rotation race) collapse to common.ErrorUnauthorized outward; the
// internal kind is logged for audit but never exposed, so callers cannot
// use the service as a token-validity oracle.
type SessionService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	issuer    *token.Issuer
	validator *token.Validator
	logger    logging.Logger
	timeout   time.Duration
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, issuer *token.Issuer, validator *token.Validator, cfg *config.Config, logger logging.Logger) *SessionService {
	return &SessionService{
		db:        db,
		repos:     m,
		issuer:    issuer,
		validator: validator,
		logger:    logger.With("module", "session_service"),
		timeout:   cfg.RequestTimeout,
	}
}

// SignUp registers a new user and signs them in. An already registered
// email fails with common.ErrDuplicateUser.
func (s *SessionService) SignUp(ctx context.Context, email, password, name string) (*AuthResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	repo := s.repos.Users(s.db)

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrDuplicateUser
	} else if !errors.Is(err, common.ErrorNotFound) {
		s.logger.Error(ctx, "error looking up user", "error", err)
		return nil, common.ErrorInternal
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		s.logger.Error(ctx, "error hashing password", "error", err)
		return nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{Email: email, Name: name, PasswordHash: hash})
	if err != nil {
		// The uniqueness check above races with concurrent sign-ups; the
		// database constraint is the authority.
		if errors.Is(err, common.ErrDuplicateUser) {
			return nil, common.ErrDuplicateUser
		}
		s.logger.Error(ctx, "error creating user", "error", err)
		return nil, common.ErrorInternal
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error(ctx, "error issuing tokens", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &AuthResult{User: user, Tokens: pair}, nil
}

// SignIn authenticates by email and password. An unknown email and a wrong
// password both fail with common.ErrorUnauthorized; which check failed is
// logged, never surfaced.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	repo := s.repos.Users(s.db)

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "sign-in refused", "reason", common.ErrUserNotFound.Error())
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "error looking up user", "error", err)
		return nil, common.ErrorInternal
	}

	if !cryptox.CheckPassword(user.PasswordHash, password) {
		s.logger.Info(ctx, "sign-in refused", "user_id", user.ID, "reason", common.ErrInvalidCredentials.Error())
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error(ctx, "error issuing tokens", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	if err := repo.TouchLastLogin(ctx, user.ID); err != nil {
		// The session is already established; a failed stamp is not fatal.
		s.logger.Warn(ctx, "error updating last login", "user_id", user.ID, "error", err)
	}

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh validates a presented refresh token and rotates it for a fresh
// pair. A rotation that loses the revoke race fails like any other invalid
// token: blind retry of a non-idempotent rotation could mint duplicate
// valid sessions.
func (s *SessionService) Refresh(ctx context.Context, rawRefreshToken string) (*token.Pair, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	record, claims, err := s.validator.ValidateRefresh(ctx, rawRefreshToken)
	if err != nil {
		s.auditTokenFailure(ctx, "refresh", err)
		if errors.Is(err, common.ErrStoreUnavailable) {
			return nil, common.ErrorInternal
		}
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issuer.Rotate(ctx, record)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRevoked) {
			s.logger.Info(ctx, "refresh refused", "user_id", claims.UserID, "reason", "lost rotation race")
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "error rotating tokens", "user_id", claims.UserID, "error", err)
		return nil, common.ErrorInternal
	}

	return pair, nil
}

// Logout revokes the refresh record matching the presented raw token and
// sweeps the access token of the same pair with it. Other sessions of the
// owner stay untouched.
func (s *SessionService) Logout(ctx context.Context, ownerID string, rawRefreshToken string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	repo := s.repos.Credentials(s.db)

	valid, err := repo.FindAllValid(ctx, ownerID, models.TokenTypeRefresh)
	if err != nil {
		s.logger.Error(ctx, "error looking up refresh token", "user_id", ownerID, "error", err)
		return common.ErrorInternal
	}
	if len(valid) == 0 {
		s.auditTokenFailure(ctx, "logout", common.ErrTokenNotFound)
		return common.ErrorUnauthorized
	}

	var record *models.Credential
	for _, c := range valid {
		if repo.Compare(rawRefreshToken, c) {
			record = c
			break
		}
	}
	if record == nil {
		s.auditTokenFailure(ctx, "logout", common.ErrTokenMismatch)
		return common.ErrorUnauthorized
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repos.Credentials(tx)

		if err := repoTx.Revoke(ctx, record.ID); err != nil {
			return err
		}

		// Logout ends the whole session, the paired access token included.
		access, err := repoTx.FindAllValid(ctx, ownerID, models.TokenTypeAccess)
		if err != nil {
			return err
		}
		for _, c := range access {
			if c.PairID != record.PairID {
				continue
			}
			if err := repoTx.Revoke(ctx, c.ID); err != nil && !errors.Is(err, common.ErrAlreadyRevoked) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRevoked) {
			s.auditTokenFailure(ctx, "logout", err)
			return common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "error revoking tokens", "user_id", ownerID, "error", err)
		return common.ErrorInternal
	}

	return nil
}

// auditTokenFailure records the internal failure kind that the caller only
// ever sees as Unauthorized.
func (s *SessionService) auditTokenFailure(ctx context.Context, operation string, err error) {
	s.logger.Info(ctx, "token validation refused", "operation", operation, "reason", err.Error())
}

// opCtx bounds a single use case; a store call that hangs past the
// configured timeout is a failure, never an implied success.
func (s *SessionService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
