package authcore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nearbyhub/authcore/password"
	"github.com/nearbyhub/authcore/session"
	"github.com/nearbyhub/authcore/token"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

func newTestService(t *testing.T) (*Service, *mockUserStore, *captureMailer, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	tokenCfg := token.DefaultConfig()
	tokenCfg.PrivateKey = []byte("test-secret")
	tokens, err := token.NewService(tokenCfg, rdb)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	log := testLogger()
	sessions := session.NewService(rdb, tokens, log)

	users := newMockUserStore()
	mailer := &captureMailer{}

	cfg := DefaultConfig()
	// Minimum argon2 cost keeps the flow tests fast.
	cfg.PasswordHash = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	svc, err := NewService(cfg, Deps{
		Users:    users,
		Redis:    rdb,
		Tokens:   tokens,
		Sessions: sessions,
		Mailer:   mailer,
		Logger:   &log,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc, users, mailer, mr
}

// buildServiceWithSink wires a service around an audit sink, without a
// mailer.
func buildServiceWithSink(t *testing.T, rdb *redis.Client, sink AuditSink, log *zerolog.Logger) *Service {
	t.Helper()

	tokenCfg := token.DefaultConfig()
	tokenCfg.PrivateKey = []byte("test-secret")
	tokens, err := token.NewService(tokenCfg, rdb)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	svc, err := NewService(DefaultConfig(), Deps{
		Users:     newMockUserStore(),
		Redis:     rdb,
		Tokens:    tokens,
		Sessions:  session.NewService(rdb, tokens, *log),
		AuditSink: sink,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

// registerActive creates a verified, active account directly through the
// service so each test starts from a realistic state.
func registerActive(t *testing.T, svc *Service, users *mockUserStore, email, pass string) *User {
	t.Helper()

	user, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: pass})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	stored := users.mustGet(t, user.ID)
	stored.Status = StatusActive
	stored.EmailVerified = true
	users.put(stored)

	return stored
}

// mockUserStore is an in-memory UserStore with the same uniqueness
// semantics the real store enforces.
type mockUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	nextID  int
	updates int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{byID: map[string]*User{}}
}

func (m *mockUserStore) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockUserStore) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return ErrUserNotFound
	}
	for id, existing := range m.byID {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.updates++
	return nil
}

func (m *mockUserStore) ListDeletionRequestedBefore(_ context.Context, cutoff time.Time) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.byID {
		if u.DeletionRequestedAt != nil && u.DeletionRequestedAt.Before(cutoff) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockUserStore) DeleteWhereDeletionRequestedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, u := range m.byID {
		if u.DeletionRequestedAt != nil && u.DeletionRequestedAt.Before(cutoff) {
			delete(m.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockUserStore) mustGet(t *testing.T, id string) *User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		t.Fatalf("user %s not in store", id)
	}
	cp := *u
	return &cp
}

func (m *mockUserStore) put(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
}

// captureMailer records every delivered message.
type captureMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (c *captureMailer) Send(_ context.Context, m Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func (c *captureMailer) messages() []Mail {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mail, len(c.sent))
	copy(out, c.sent)
	return out
}

// waitForMail polls until the mailer has at least n messages, since
// delivery runs on the outbox worker goroutine.
func (c *captureMailer) waitForMail(t *testing.T, n int) []Mail {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := c.messages(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d mail messages, have %d", n, len(c.messages()))
	return nil
}
