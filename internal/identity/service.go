// Package identity manages accounts, credentials and the single-device
// session persisted in the store.
package identity

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/util"
)

// Publisher is notified whenever the session holder changes.
type Publisher interface {
	Publish(user *store.User)
}

type Service struct {
	store     *store.Store
	publisher Publisher
	now       func() time.Time
	newID     util.IDFunc
	logger    *slog.Logger
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID util.IDFunc) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		now:    time.Now,
		newID:  util.NewID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput contains registration parameters
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Location string `json:"location,omitempty"`
}

// Register creates an account and signs it in. The very first account
// becomes an admin.
func (s *Service) Register(ctx context.Context, input RegisterInput) (store.User, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return store.User{}, apperr.Validation("username and password are required")
	}

	users, err := s.store.Users().Load(ctx)
	if err != nil {
		return store.User{}, err
	}
	for _, existing := range users {
		if existing.Username == input.Username {
			return store.User{}, apperr.ErrDuplicateUsername
		}
	}

	role := store.RoleUser
	if len(users) == 0 {
		role = store.RoleAdmin
	}
	user := store.User{
		ID:        s.newID("user"),
		Username:  input.Username,
		Role:      role,
		Points:    0,
		Badges:    []badge.Badge{},
		Location:  input.Location,
		CreatedAt: s.now().UTC(),
	}

	users = append(users, user)
	if err := s.store.Users().Save(ctx, users); err != nil {
		return store.User{}, err
	}
	if err := s.store.SetCredential(ctx, user.ID, input.Password); err != nil {
		return store.User{}, err
	}
	if err := s.setSession(ctx, &user); err != nil {
		return store.User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// Login signs in an existing account. Unknown usernames and wrong secrets
// fail identically, and the session is left untouched on failure.
func (s *Service) Login(ctx context.Context, username, password string) (store.User, error) {
	users, err := s.store.Users().Load(ctx)
	if err != nil {
		return store.User{}, err
	}

	var found *store.User
	for i := range users {
		if users[i].Username == username {
			found = &users[i]
			break
		}
	}
	if found == nil {
		s.logger.Warn("login failed", "username", username)
		return store.User{}, apperr.ErrInvalidCredentials
	}

	secret, ok, err := s.store.Credential(ctx, found.ID)
	if err != nil {
		return store.User{}, err
	}
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(password)) != 1 {
		s.logger.Warn("login failed", "username", username)
		return store.User{}, apperr.ErrInvalidCredentials
	}

	if err := s.setSession(ctx, found); err != nil {
		return store.User{}, err
	}
	s.logger.Info("user logged in", "user_id", found.ID)
	return *found, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.setSession(ctx, nil); err != nil {
		return err
	}
	s.logger.Info("user logged out")
	return nil
}

// CurrentUser returns the session holder, or nil when nobody is signed in.
func (s *Service) CurrentUser(ctx context.Context) (*store.User, error) {
	return s.store.CurrentUser(ctx)
}

// RequireUser is CurrentUser for operations that need a signed-in caller.
func (s *Service) RequireUser(ctx context.Context) (store.User, error) {
	user, err := s.store.CurrentUser(ctx)
	if err != nil {
		return store.User{}, err
	}
	if user == nil {
		return store.User{}, apperr.ErrUnauthenticated
	}
	return *user, nil
}

// UpdateUser replaces the stored record with the same id. When that user
// holds the session, the session is refreshed too.
func (s *Service) UpdateUser(ctx context.Context, user store.User) error {
	users, err := s.store.Users().Load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(users, user.ID)
	if idx < 0 {
		return apperr.NotFound("user")
	}
	users[idx] = user.Clone()
	if err := s.store.Users().Save(ctx, users); err != nil {
		return err
	}

	current, err := s.store.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if current != nil && current.ID == user.ID {
		return s.setSession(ctx, &users[idx])
	}
	return nil
}

// AddPoints adjusts a user's score by amount, which may be negative.
func (s *Service) AddPoints(ctx context.Context, userID string, amount int) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	user.Points += amount
	return s.UpdateUser(ctx, user)
}

// AddBadge awards b once; awarding a badge the user already has is a no-op.
func (s *Service) AddBadge(ctx context.Context, userID string, b badge.Badge) error {
	if !b.Valid() {
		return apperr.Validation("unknown badge " + string(b))
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasBadge(b) {
		return nil
	}
	user.Badges = append(user.Badges, b)
	if err := s.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info("badge awarded", "user_id", userID, "badge", string(b))
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.store.Users().Load(ctx)
}

func (s *Service) GetUser(ctx context.Context, userID string) (store.User, error) {
	return s.findUser(ctx, userID)
}

func (s *Service) SetRole(ctx context.Context, userID string, role store.Role) error {
	if !role.Valid() {
		return apperr.Validation("unknown role " + string(role))
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}
	user.Role = role
	if err := s.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info("role changed", "user_id", userID, "role", role)
	return nil
}

func (s *Service) findUser(ctx context.Context, userID string) (store.User, error) {
	users, err := s.store.Users().Load(ctx)
	if err != nil {
		return store.User{}, err
	}
	idx := indexOf(users, userID)
	if idx < 0 {
		return store.User{}, apperr.NotFound("user")
	}
	return users[idx], nil
}

func (s *Service) setSession(ctx context.Context, user *store.User) error {
	if err := s.store.SetCurrentUser(ctx, user); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(user)
	}
	return nil
}

func indexOf(users []store.User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
