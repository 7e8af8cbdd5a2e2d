package grpc

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	credsrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/credentials"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/token"
)

// ---- test logger ----

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (l nopLogger) With(args ...any) logging.Logger                  { return l }

// ---- in-memory credential repository ----

type memCredRepo struct {
	seq     int
	records map[string]*models.Credential
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{records: map[string]*models.Credential{}}
}

func (m *memCredRepo) Create(ctx context.Context, ownerID string, rawToken string, tokenType models.TokenType, pairID string, issuedAt, expiresAt time.Time) (*models.Credential, error) {
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

// ---- in-memory user repository ----

type memUserRepo struct {
	seq   int
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (m *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	email := strings.ToLower(user.Email)
	for _, u := range m.users {
		if u.Email == email {
			return nil, common.ErrDuplicateUser
		}
	}
	m.seq++
	stored := &models.User{
		ID:           fmt.Sprintf("user-%d", m.seq),
		Email:        email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now(),
	}
	m.users[stored.ID] = stored
	return stored, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (m *memUserRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUserRepo) TouchLastLogin(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

// ---- repo manager over the fakes ----

type fakeRepoManager struct {
	creds *memCredRepo
	users *memUserRepo
}

func (f *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return f.users }
func (f *fakeRepoManager) Credentials(db dbx.DBTX) credsrepo.Repository { return f.creds }
func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

// ---- recording notifier ----

type fakeNotifier struct {
	sent []string
	to   []string
}

func (f *fakeNotifier) SendResetInstructions(ctx context.Context, to string, token string, expiresAt time.Time) error {
	f.to = append(f.to, to)
	f.sent = append(f.sent, token)
	return nil
}

// ---- harness ----

type harness struct {
	srv   *GRPCServer
	creds *memCredRepo
	users *memUserRepo
	notif *fakeNotifier
	mock  sqlmock.Sqlmock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AccessTokenSecret = "access-secret"
	cfg.RefreshTokenSecret = "refresh-secret"
	cfg.ResetTokenSecret = "reset-secret"
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	creds := newMemCredRepo()
	users := newMemUserRepo()
	m := &fakeRepoManager{creds: creds, users: users}

	issuer := token.NewIssuer(db, m, cfg, nopLogger{})
	validator := token.NewValidator(db, m, cfg, nopLogger{})
	notif := &fakeNotifier{}

	ss := services.NewSessionService(db, m, issuer, validator, cfg, nopLogger{})
	rs := services.NewPasswordResetService(db, m, validator, notif, cfg, nopLogger{})

	srv, err := NewGRPCServer(cfg.EndpointAddrGRPC, nopLogger{}, ss, rs, validator)
	if err != nil {
		t.Fatalf("NewGRPCServer error: %v", err)
	}

	return &harness{srv: srv, creds: creds, users: users, notif: notif, mock: mock}
}

// expectTx queues one transaction begin/commit on the mocked database; the
// repositories themselves are in-memory fakes, so no SQL is expected.
func (h *harness) expectTx() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}
