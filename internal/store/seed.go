package store

import (
	"context"
	"time"
)

const challengeWindow = 30 * 24 * time.Hour

// InitializeDefaults seeds the community challenges when none exist yet.
// It reports whether anything was written.
func (s *Store) InitializeDefaults(ctx context.Context) (bool, error) {
	challenges, err := s.challenges.Load(ctx)
	if err != nil {
		return false, err
	}
	if len(challenges) > 0 {
		return false, nil
	}

	now := s.now().UTC()
	seeds := []Challenge{
		{
			ID:           "1",
			Title:        "Plant 3 Trees in 30 Days",
			Description:  "Join our community challenge to plant 3 trees within the next 30 days and earn 50 bonus points!",
			Points:       50,
			StartDate:    now,
			EndDate:      now.Add(challengeWindow),
			Participants: []string{},
			IsActive:     true,
		},
		{
			ID:           "2",
			Title:        "Monthly Green Challenge",
			Description:  "Report at least 2 civic issues and plant 1 tree this month to become an Eco Guardian!",
			Points:       30,
			StartDate:    now,
			EndDate:      now.Add(challengeWindow),
			Participants: []string{},
			IsActive:     true,
		},
	}
	if err := s.challenges.Save(ctx, seeds); err != nil {
		return false, err
	}
	return true, nil
}
