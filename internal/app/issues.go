package app

import (
	"context"
	"slices"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/store"
)

func (s *Service) ReportIssue(ctx context.Context, input ReportIssueInput) (store.CivicIssue, error) {
	user, err := s.identity.RequireUser(ctx)
	if err != nil {
		return store.CivicIssue{}, err
	}
	if !input.Category.Valid() {
		return store.CivicIssue{}, apperr.Validation("unknown issue category " + string(input.Category))
	}
	photoURL, err := s.media.Resolve(ctx, input.PhotoURL)
	if err != nil {
		return store.CivicIssue{}, err
	}

	issues, err := s.store.Issues().Load(ctx)
	if err != nil {
		return store.CivicIssue{}, err
	}
	now := s.timestamp()
	issue := store.CivicIssue{
		ID:          s.newID("issue"),
		UserID:      user.ID,
		Username:    user.Username,
		Category:    input.Category,
		Description: input.Description,
		Location:    input.Location,
		PhotoURL:    photoURL,
		Status:      store.IssueReported,
		IsEmergency: input.IsEmergency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issues = append(issues, issue)
	if err := s.store.Issues().Save(ctx, issues); err != nil {
		return store.CivicIssue{}, err
	}

	if err := s.identity.AddPoints(ctx, user.ID, pointsPerIssue); err != nil {
		return store.CivicIssue{}, err
	}
	reported := countIssues(issues, user.ID)
	if reported >= communityHeroThreshold {
		if err := s.identity.AddBadge(ctx, user.ID, badge.CommunityHero); err != nil {
			return store.CivicIssue{}, err
		}
	}

	if issue.IsEmergency {
		s.logger.Warn("emergency issue reported", "issue_id", issue.ID, "category", issue.Category, "location", issue.Location)
	} else {
		s.logger.Info("issue reported", "issue_id", issue.ID, "user_id", user.ID, "category", issue.Category)
	}
	return issue, nil
}

// GetIssues returns issues newest first, optionally only those reported by
// userID. Issues created at the same instant keep their storage order.
func (s *Service) GetIssues(ctx context.Context, userID string) ([]store.CivicIssue, error) {
	issues, err := s.store.Issues().Load(ctx)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		issues = slices.DeleteFunc(issues, func(issue store.CivicIssue) bool { return issue.UserID != userID })
	}
	slices.SortStableFunc(issues, func(a, b store.CivicIssue) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return issues, nil
}

func (s *Service) GetIssue(ctx context.Context, id string) (store.CivicIssue, error) {
	issues, err := s.store.Issues().Load(ctx)
	if err != nil {
		return store.CivicIssue{}, err
	}
	idx := indexOfIssue(issues, id)
	if idx < 0 {
		return store.CivicIssue{}, apperr.NotFound("issue")
	}
	return issues[idx], nil
}

// UpdateIssueStatus sets any of the issue statuses; there is no ordering
// between them.
func (s *Service) UpdateIssueStatus(ctx context.Context, issueID string, status store.IssueStatus) error {
	if !status.Valid() {
		return apperr.Validation("unknown issue status " + string(status))
	}
	issues, err := s.store.Issues().Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOfIssue(issues, issueID)
	if idx < 0 {
		return apperr.NotFound("issue")
	}
	issues[idx].Status = status
	issues[idx].UpdatedAt = s.timestamp()
	if err := s.store.Issues().Save(ctx, issues); err != nil {
		return err
	}
	s.logger.Info("issue status changed", "issue_id", issueID, "status", status)
	return nil
}

func indexOfIssue(issues []store.CivicIssue, id string) int {
	return slices.IndexFunc(issues, func(issue store.CivicIssue) bool { return issue.ID == id })
}

func countIssues(issues []store.CivicIssue, userID string) int {
	count := 0
	for _, issue := range issues {
		if issue.UserID == userID {
			count++
		}
	}
	return count
}
