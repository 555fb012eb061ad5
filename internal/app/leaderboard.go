package app

import (
	"cmp"
	"context"
	"slices"
)

type LeaderboardEntry struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Points         int    `json:"points"`
	TreesPlanted   int    `json:"treesPlanted"`
	IssuesReported int    `json:"issuesReported"`
	Location       string `json:"location,omitempty"`
	Rank           int    `json:"rank"`
}

// GetLeaderboard ranks every user by points. Equal scores keep the order
// users registered in and still get distinct consecutive ranks.
func (s *Service) GetLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	users, err := s.store.Users().Load(ctx)
	if err != nil {
		return nil, err
	}
	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := s.store.Issues().Load(ctx)
	if err != nil {
		return nil, err
	}

	treeCounts := make(map[string]int, len(users))
	for _, tree := range trees {
		treeCounts[tree.UserID]++
	}
	issueCounts := make(map[string]int, len(users))
	for _, issue := range issues {
		issueCounts[issue.UserID]++
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, LeaderboardEntry{
			UserID:         user.ID,
			Username:       user.Username,
			Points:         user.Points,
			TreesPlanted:   treeCounts[user.ID],
			IssuesReported: issueCounts[user.ID],
			Location:       user.Location,
		})
	}
	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		return cmp.Compare(b.Points, a.Points)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
