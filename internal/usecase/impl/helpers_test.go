package impl

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"warden/config"
	"warden/internal/domain/service"
	"warden/internal/infra/auth"
	mockrepo "warden/internal/mocks/repository"
	mocksvc "warden/internal/mocks/service"
	mockuc "warden/internal/mocks/usecase"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Access = "access-secret"
	cfg.SecretKey.Refresh = "refresh-secret"
	cfg.ApplyDefaults()

	return cfg
}

// memoryRevocationList is a revocation list backed by a map.
type memoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	err     error
}

func newMemoryRevocationList() *memoryRevocationList {
	return &memoryRevocationList{entries: make(map[string]time.Time)}
}

func (l *memoryRevocationList) Revoke(_ context.Context, jti string, _ uuid.UUID, _ string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if _, ok := l.entries[jti]; !ok {
		l.entries[jti] = expiresAt
	}

	return nil
}

func (l *memoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	_, ok := l.entries[jti]

	return ok, nil
}

func (l *memoryRevocationList) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for jti, expiresAt := range l.entries {
		if !expiresAt.After(now) {
			delete(l.entries, jti)
			n++
		}
	}

	return n, nil
}

func (l *memoryRevocationList) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

type authFixture struct {
	svc      usecase.AuthUsecase
	cfg      *config.Config
	users    *mockrepo.MockUserRepository
	tx       *mockrepo.TransactionManager
	hasher   *mocksvc.MockPasswordHasher
	revoked  *memoryRevocationList
	tokens   service.TokenService
	recorder *mockuc.AuditRecorder
	clock    *mocksvc.FakeClock
}

func newAuthFixture(t *testing.T, configure func(*config.Config)) *authFixture {
	t.Helper()

	cfg := newTestConfig()
	if configure != nil {
		configure(cfg)
	}

	clock := mocksvc.NewFakeClock(testEpoch)
	tokens, err := auth.NewJWTService(cfg, clock)
	require.NoError(t, err)

	f := &authFixture{
		cfg:      cfg,
		users:    mockrepo.NewMockUserRepository(t),
		hasher:   mocksvc.NewMockPasswordHasher(t),
		revoked:  newMemoryRevocationList(),
		tokens:   tokens,
		recorder: mockuc.NewAuditRecorder(),
		clock:    clock,
	}
	f.tx = mockrepo.NewTransactionManager(f.users)

	f.svc = NewAuthService(AuthServiceParams{
		TxManager:        f.tx,
		UserRepo:         f.users,
		RevokedTokenRepo: f.revoked,
		Hasher:           f.hasher,
		TokenService:     tokens,
		Recorder:         f.recorder,
		Clock:            clock,
		Config:           cfg,
		Logger:           discardLogger(),
	})

	return f
}
