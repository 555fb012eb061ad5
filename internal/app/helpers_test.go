package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"ecocivic/api/internal/identity"
	"ecocivic/api/internal/kv"
	"ecocivic/api/internal/session"
	"ecocivic/api/internal/store"
)

// testClock advances one minute on every reading so records created in
// sequence get distinct, ordered timestamps.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.current = c.current.Add(time.Minute)
	return c.current
}

func sequentialIDs() func(string) string {
	counters := map[string]int{}
	return func(prefix string) string {
		counters[prefix]++
		return fmt.Sprintf("%s_%d", prefix, counters[prefix])
	}
}

type testEnv struct {
	backend  kv.Backend
	store    *store.Store
	sessions *session.Context
	accounts *identity.Service
	service  *Service
	clock    *testClock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, kv.NewMemory(), opts...)
}

func newTestEnvWithBackend(t *testing.T, backend kv.Backend, opts ...Option) *testEnv {
	t.Helper()
	clock := newTestClock()
	ids := sequentialIDs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.New(backend, store.WithClock(clock.Now))
	sessions := session.New()
	accounts := identity.NewService(st,
		identity.WithPublisher(sessions),
		identity.WithClock(clock.Now),
		identity.WithIDGenerator(ids),
		identity.WithLogger(logger),
	)
	base := []Option{WithClock(clock.Now), WithIDGenerator(ids), WithLogger(logger)}
	svc := New(st, accounts, append(base, opts...)...)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return &testEnv{
		backend:  backend,
		store:    st,
		sessions: sessions,
		accounts: accounts,
		service:  svc,
		clock:    clock,
	}
}

func (e *testEnv) register(t *testing.T, username string) store.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), identity.RegisterInput{Username: username, Password: username + "-pw"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, username string) {
	t.Helper()
	if _, err := e.accounts.Login(context.Background(), username, username+"-pw"); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func (e *testEnv) user(t *testing.T, id string) store.User {
	t.Helper()
	user, err := e.accounts.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return user
}
