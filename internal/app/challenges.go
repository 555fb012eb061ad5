package app

import (
	"context"
	"slices"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/store"
)

func (s *Service) GetChallenges(ctx context.Context) ([]store.Challenge, error) {
	return s.store.Challenges().Load(ctx)
}

// JoinChallenge adds the signed-in user to a challenge. Joining twice is a
// no-op.
func (s *Service) JoinChallenge(ctx context.Context, challengeID string) error {
	user, err := s.identity.RequireUser(ctx)
	if err != nil {
		return err
	}
	challenges, err := s.store.Challenges().Load(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(challenges, func(c store.Challenge) bool { return c.ID == challengeID })
	if idx < 0 {
		return apperr.NotFound("challenge")
	}
	if challenges[idx].HasParticipant(user.ID) {
		return nil
	}
	challenges[idx].Participants = append(challenges[idx].Participants, user.ID)
	if err := s.store.Challenges().Save(ctx, challenges); err != nil {
		return err
	}
	s.logger.Info("challenge joined", "challenge_id", challengeID, "user_id", user.ID)
	return nil
}
