package app

import (
	"context"
	"log/slog"
	"time"

	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/media"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/util"
)

const (
	pointsPerTree       = 10
	pointsPerTreeUpdate = 5
	pointsHealthyBonus  = 10
	pointsPerIssue      = 5

	treePlanterThreshold   = 5
	communityHeroThreshold = 3
)

type AddTreeInput struct {
	Type     store.TreeType `json:"type"`
	Location string         `json:"location"`
	PhotoURL string         `json:"photoUrl"`
}

type AddTreeUpdateInput struct {
	TreeID   string `json:"treeId"`
	PhotoURL string `json:"photoUrl"`
	Notes    string `json:"notes,omitempty"`
}

type ReportIssueInput struct {
	Category    store.IssueCategory `json:"category"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
	PhotoURL    string              `json:"photoUrl"`
	IsEmergency bool                `json:"isEmergency"`
}

// identityService is the part of the identity service the domain layer
// relies on for the acting user and for gamification side effects.
type identityService interface {
	RequireUser(ctx context.Context) (store.User, error)
	AddPoints(ctx context.Context, userID string, amount int) error
	AddBadge(ctx context.Context, userID string, b badge.Badge) error
}

type Service struct {
	store    *store.Store
	identity identityService
	media    media.Store
	now      func() time.Time
	newID    util.IDFunc
	logger   *slog.Logger
}

type Option func(*Service)

// WithMediaStore sets where submitted photos are resolved before they are
// persisted. Photos are stored inline by default.
func WithMediaStore(m media.Store) Option {
	return func(s *Service) { s.media = m }
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

func New(dataStore *store.Store, identity identityService, opts ...Option) *Service {
	s := &Service{
		store:    dataStore,
		identity: identity,
		media:    media.Inline{},
		now:      time.Now,
		newID:    util.NewID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap seeds the default challenges on an empty medium.
func (s *Service) Bootstrap(ctx context.Context) error {
	seeded, err := s.store.InitializeDefaults(ctx)
	if err != nil {
		return err
	}
	if seeded {
		s.logger.Info("default challenges seeded")
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}
