package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db     dbx.DBTX
	logger logging.Logger
}

func NewPostgresRepository(db dbx.DBTX, logger logging.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger.With("module", "credentials_repository")}
}

func (r *PostgresRepository) Create(ctx context.Context, ownerID string, rawToken string, tokenType models.TokenType, pairID string, issuedAt, expiresAt time.Time) (*models.Credential, error) {

	c := &models.Credential{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		PairID:    pairID,
		TokenHash: cryptox.HashToken(rawToken),
		Type:      tokenType,
		IsValid:   true,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	var dbPairID sql.NullString
	if pairID != "" {
		dbPairID = sql.NullString{String: pairID, Valid: true}
	}

	query :=
		`INSERT INTO credentials (id, user_id, pair_id, token_hash, token_type, is_valid, issued_at, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, dbPairID, c.TokenHash, c.Type, c.IsValid, c.IssuedAt, c.ExpiresAt)

	if err != nil {
		return nil, fmt.Errorf("%w: error performing sql request: %v", common.ErrStoreUnavailable, err)
	}

	return c, nil
}

func (r *PostgresRepository) FindValid(ctx context.Context, ownerID string, tokenType models.TokenType) (*models.Credential, error) {

	valid, err := r.FindAllValid(ctx, ownerID, tokenType)
	if err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		return nil, common.ErrorNotFound
	}

	// Should not occur under correct single-session rotation; the newest
	// record wins the tie-break and the rest are reported as an
	// inconsistency.
	if len(valid) > 1 {
		r.logger.Warn(ctx, "multiple valid credentials for owner",
			"owner_id", ownerID, "token_type", string(tokenType), "extra_records", len(valid)-1)
	}

	return valid[0], nil
}

func (r *PostgresRepository) FindAllValid(ctx context.Context, ownerID string, tokenType models.TokenType) ([]*models.Credential, error) {

	query :=
		`SELECT id, user_id, pair_id, token_hash, token_type, is_valid, issued_at, expires_at, revoked_at, created_at
		 FROM credentials
		 WHERE user_id = $1 AND token_type = $2 AND is_valid = TRUE
		 ORDER BY issued_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID, tokenType)
	if err != nil {
		return nil, fmt.Errorf("%w: error performing sql request: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var valid []*models.Credential

	for rows.Next() {
		c := &models.Credential{}
		var pairID sql.NullString
		var revokedAt sql.NullTime
		err := rows.Scan(&c.ID, &c.OwnerID, &pairID, &c.TokenHash, &c.Type, &c.IsValid,
			&c.IssuedAt, &c.ExpiresAt, &revokedAt, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: error scanning row: %v", common.ErrStoreUnavailable, err)
		}
		c.PairID = pairID.String
		if revokedAt.Valid {
			t := revokedAt.Time
			c.RevokedAt = &t
		}
		valid = append(valid, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", common.ErrStoreUnavailable, err)
	}

	return valid, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {

	query :=
		`UPDATE credentials
		 SET is_valid = FALSE, revoked_at = NOW()
		 WHERE id = $1 AND is_valid = TRUE
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: error performing sql request: %v", common.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: error reading rows affected: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return common.ErrAlreadyRevoked
	}

	return nil
}

func (r *PostgresRepository) RevokeAllForOwner(ctx context.Context, ownerID string) error {

	query :=
		`UPDATE credentials
		 SET is_valid = FALSE, revoked_at = NOW()
		 WHERE user_id = $1 AND is_valid = TRUE
		 `

	_, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return fmt.Errorf("%w: error performing sql request: %v", common.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *PostgresRepository) Compare(rawToken string, c *models.Credential) bool {
	return cryptox.CompareTokenHash(rawToken, c.TokenHash)
}

var _ Repository = (*PostgresRepository)(nil)
