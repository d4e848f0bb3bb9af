package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a manually advanced clock shared by every component of a test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock       *fakeClock
	sessions    *memory.SessionStore
	revocations *memory.RevocationStore
	windows     *memory.WindowStore
	directory   *memory.Directory
	registry    *SessionRegistry
	tokens      *TokenAuthority
	auth        *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSessions(t, nil)
}

// newTestEnvWithSessions lets a test wrap the session store the registry uses.
func newTestEnvWithSessions(t *testing.T, wrap func(SessionStore) SessionStore) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:       newFakeClock(),
		sessions:    memory.NewSessionStore(),
		revocations: memory.NewRevocationStore(),
		windows:     memory.NewWindowStore(),
		directory:   memory.NewDirectory(),
	}
	var store SessionStore = env.sessions
	if wrap != nil {
		store = wrap(store)
	}
	env.registry = NewSessionRegistry(store)

	tokens, err := NewTokenAuthority(TokenConfig{
		Secret: testSecret,
		Clock:  env.clock.Now,
	}, env.registry, env.revocations)
	require.NoError(t, err)
	env.tokens = tokens

	login := NewLoginLimiter(env.windows, 0, 0, env.clock.Now)
	env.auth = NewAuthService(tokens, env.directory, login, AuthServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Clock:      env.clock.Now,
	})
	return env
}

// addUser stores a user with the given password and returns it.
func (e *testEnv) addUser(t *testing.T, email, password string, role domain.Role, tier domain.Tier) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &domain.User{
		ID:           "user-" + email,
		Email:        email,
		Name:         "Test User",
		PasswordHash: string(hash),
		Role:         role,
		Tier:         tier,
		IsStaff:      role.IsStaff(),
		IsActive:     true,
		CreatedAt:    e.clock.Now(),
	}
	require.NoError(t, e.directory.CreateUser(context.Background(), u))
	return u
}
