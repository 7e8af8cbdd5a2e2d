package token

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	credsrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/credentials"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// --- test logger ---

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (l nopLogger) With(args ...any) logging.Logger                  { return l }

// --- in-memory credential repository ---

// memCredRepo keeps credential records in memory with the same semantics
// the Postgres repo has: digest-only storage, CAS revoke, newest-wins
// FindValid.
type memCredRepo struct {
	seq     int
	records map[string]*models.Credential

	createErr error
	revokeErr error
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{records: map[string]*models.Credential{}}
}

func (m *memCredRepo) Create(ctx context.Context, ownerID string, rawToken string, tokenType models.TokenType, pairID string, issuedAt, expiresAt time.Time) (*models.Credential, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	c := &models.Credential{
		ID:        fmt.Sprintf("cred-%d", m.seq),
		OwnerID:   ownerID,
		PairID:    pairID,
		TokenHash: cryptox.HashToken(rawToken),
		Type:      tokenType,
		IsValid:   true,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	m.records[c.ID] = c
	return c, nil
}

func (m *memCredRepo) FindValid(ctx context.Context, ownerID string, tokenType models.TokenType) (*models.Credential, error) {
	valid, err := m.FindAllValid(ctx, ownerID, tokenType)
	if err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		return nil, common.ErrorNotFound
	}
	return valid[0], nil
}

func (m *memCredRepo) FindAllValid(ctx context.Context, ownerID string, tokenType models.TokenType) ([]*models.Credential, error) {
	var valid []*models.Credential
	for _, c := range m.records {
		if c.OwnerID == ownerID && c.Type == tokenType && c.IsValid {
			valid = append(valid, c)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].IssuedAt.After(valid[j].IssuedAt) })
	return valid, nil
}

func (m *memCredRepo) Revoke(ctx context.Context, id string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	c, ok := m.records[id]
	if !ok || !c.IsValid {
		return common.ErrAlreadyRevoked
	}
	now := time.Now()
	c.IsValid = false
	c.RevokedAt = &now
	return nil
}

func (m *memCredRepo) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	now := time.Now()
	for _, c := range m.records {
		if c.OwnerID == ownerID && c.IsValid {
			c.IsValid = false
			c.RevokedAt = &now
		}
	}
	return nil
}

func (m *memCredRepo) Compare(rawToken string, c *models.Credential) bool {
	return cryptox.CompareTokenHash(rawToken, c.TokenHash)
}

func (m *memCredRepo) countValid(ownerID string, tokenType models.TokenType) int {
	n := 0
	for _, c := range m.records {
		if c.OwnerID == ownerID && c.Type == tokenType && c.IsValid {
			n++
		}
	}
	return n
}

// --- repo manager over the fakes ---

type fakeRepoManager struct {
	creds *memCredRepo
}

func (f *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return nil }
func (f *fakeRepoManager) Credentials(db dbx.DBTX) credsrepo.Repository { return f.creds }
func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
