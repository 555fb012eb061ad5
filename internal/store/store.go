// Package store is the typed persistence gateway over a key-value medium.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecocivic/api/internal/kv"
)

const (
	KeyUsers       = "ecocivic_users"
	KeyCurrentUser = "ecocivic_current_user"
	KeyTrees       = "ecocivic_trees"
	KeyTreeUpdates = "ecocivic_tree_updates"
	KeyIssues      = "ecocivic_issues"
	KeyChallenges  = "ecocivic_challenges"

	credentialKeyPrefix = "pwd_"
)

type Store struct {
	backend kv.Backend
	prefix  string
	now     func() time.Time

	users       *Collection[User]
	trees       *Collection[Tree]
	treeUpdates *Collection[TreeUpdate]
	issues      *Collection[CivicIssue]
	challenges  *Collection[Challenge]
}

type Option func(*Store)

// WithKeyPrefix namespaces every key, so several stores can share a medium.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.users = newCollection[User](backend, s.key(KeyUsers))
	s.trees = newCollection[Tree](backend, s.key(KeyTrees))
	s.treeUpdates = newCollection[TreeUpdate](backend, s.key(KeyTreeUpdates))
	s.issues = newCollection[CivicIssue](backend, s.key(KeyIssues))
	s.challenges = newCollection[Challenge](backend, s.key(KeyChallenges))
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) Users() *Collection[User]             { return s.users }
func (s *Store) Trees() *Collection[Tree]             { return s.trees }
func (s *Store) TreeUpdates() *Collection[TreeUpdate] { return s.treeUpdates }
func (s *Store) Issues() *Collection[CivicIssue]      { return s.issues }
func (s *Store) Challenges() *Collection[Challenge]   { return s.challenges }

// CurrentUser returns the session singleton, or nil when nobody is signed in.
func (s *Store) CurrentUser(ctx context.Context) (*User, error) {
	data, err := s.backend.Get(ctx, s.key(KeyCurrentUser))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load current user: %w", err)
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("store: decode current user: %w", err)
	}
	return &user, nil
}

// SetCurrentUser stores the session singleton; nil removes it.
func (s *Store) SetCurrentUser(ctx context.Context, user *User) error {
	if user == nil {
		if err := s.backend.Delete(ctx, s.key(KeyCurrentUser)); err != nil {
			return fmt.Errorf("store: clear current user: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("store: encode current user: %w", err)
	}
	if err := s.backend.Set(ctx, s.key(KeyCurrentUser), data); err != nil {
		return fmt.Errorf("store: save current user: %w", err)
	}
	return nil
}

func (s *Store) credentialKey(userID string) string {
	return s.key(credentialKeyPrefix + userID)
}

// Credential returns the raw secret stored for userID.
func (s *Store) Credential(ctx context.Context, userID string) (string, bool, error) {
	data, err := s.backend.Get(ctx, s.credentialKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: load credential: %w", err)
	}
	return string(data), true, nil
}

func (s *Store) SetCredential(ctx context.Context, userID, secret string) error {
	if err := s.backend.Set(ctx, s.credentialKey(userID), []byte(secret)); err != nil {
		return fmt.Errorf("store: save credential: %w", err)
	}
	return nil
}

// ClearAll removes every collection, the session and the credentials of
// all known users.
func (s *Store) ClearAll(ctx context.Context) error {
	users, err := s.users.Load(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := s.backend.Delete(ctx, s.credentialKey(user.ID)); err != nil {
			return fmt.Errorf("store: clear credential: %w", err)
		}
	}
	for _, name := range []string{KeyUsers, KeyCurrentUser, KeyTrees, KeyTreeUpdates, KeyIssues, KeyChallenges} {
		if err := s.backend.Delete(ctx, s.key(name)); err != nil {
			return fmt.Errorf("store: clear %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
