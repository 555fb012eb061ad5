package app

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/store"
)

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	alice := env.register(t, "alice")
	if alice.Role != store.RoleAdmin {
		t.Fatalf("expected alice to be admin, got %s", alice.Role)
	}
	bob := env.register(t, "bob")
	if bob.Role != store.RoleUser {
		t.Fatalf("expected bob to be a user, got %s", bob.Role)
	}

	tree, err := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeMango, Location: "Park"})
	if err != nil {
		t.Fatalf("AddTree failed: %v", err)
	}
	if tree.Status != store.TreePlanted || tree.UserID != bob.ID || tree.Username != "bob" {
		t.Fatalf("unexpected tree %#v", tree)
	}
	if !tree.PlantedDate.Equal(tree.LastUpdateDate) || !tree.PlantedDate.Equal(tree.CreatedAt) {
		t.Fatalf("expected all tree dates to match at planting")
	}
	bob = env.user(t, bob.ID)
	if bob.Points != 10 || !slices.Equal(bob.Badges, []badge.Badge{badge.GreenStarter}) {
		t.Fatalf("unexpected bob after planting %#v", bob)
	}

	if _, err := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID, Notes: "first leaves"}); err != nil {
		t.Fatalf("AddTreeUpdate failed: %v", err)
	}
	tree, _ = env.service.GetTree(ctx, tree.ID)
	if tree.Status != store.TreeGrowing || env.user(t, bob.ID).Points != 15 {
		t.Fatalf("expected growing at 15 points, got %s at %d", tree.Status, env.user(t, bob.ID).Points)
	}

	if _, err := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID}); err != nil {
		t.Fatalf("AddTreeUpdate failed: %v", err)
	}
	tree, _ = env.service.GetTree(ctx, tree.ID)
	if tree.Status != store.TreeHealthy || env.user(t, bob.ID).Points != 30 {
		t.Fatalf("expected healthy at 30 points, got %s at %d", tree.Status, env.user(t, bob.ID).Points)
	}
	if current := env.sessions.Current(); current == nil || current.Points != 30 {
		t.Fatalf("expected session context to show 30 points, got %#v", current)
	}
}

func TestDomainOperationsRequireSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, treeErr := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeNeem})
	_, updateErr := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: "tree_1"})
	_, issueErr := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueOther})
	joinErr := env.service.JoinChallenge(ctx, "1")

	for name, err := range map[string]error{"AddTree": treeErr, "AddTreeUpdate": updateErr, "ReportIssue": issueErr, "JoinChallenge": joinErr} {
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("%s: expected unauthenticated, got %v", name, err)
		}
	}
	trees, _ := env.service.GetTrees(ctx, "")
	if len(trees) != 0 {
		t.Fatalf("failed calls must not write, got %d trees", len(trees))
	}
}

func TestAddTreeBadgeThresholds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.register(t, "bob")

	for i := 1; i <= 6; i++ {
		if _, err := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeTeak, Location: "Lane"}); err != nil {
			t.Fatalf("AddTree %d failed: %v", i, err)
		}
		user := env.user(t, bob.ID)
		if user.Points != 10*i {
			t.Fatalf("after %d trees expected %d points, got %d", i, 10*i, user.Points)
		}
		wantPlanter := i >= 5
		if user.HasBadge(badge.TreePlanter) != wantPlanter {
			t.Fatalf("after %d trees treePlanter=%v, want %v", i, user.HasBadge(badge.TreePlanter), wantPlanter)
		}
		if !user.HasBadge(badge.GreenStarter) {
			t.Fatalf("greenStarter must stay after tree %d", i)
		}
	}
	if got := env.user(t, bob.ID).Badges; !slices.Equal(got, []badge.Badge{badge.GreenStarter, badge.TreePlanter}) {
		t.Fatalf("badges must not repeat, got %v", got)
	}
}

func TestAddTreeValidatesType(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "bob")
	if _, err := env.service.AddTree(context.Background(), AddTreeInput{Type: "oak"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddTreeUpdateAfterHealthyOnlyGrantsBasePoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.register(t, "bob")
	tree, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeBamboo})

	for i := 0; i < 3; i++ {
		if _, err := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID}); err != nil {
			t.Fatalf("AddTreeUpdate failed: %v", err)
		}
	}
	tree, _ = env.service.GetTree(ctx, tree.ID)
	if tree.Status != store.TreeHealthy {
		t.Fatalf("expected healthy, got %s", tree.Status)
	}
	if got := env.user(t, bob.ID).Points; got != 10+5+15+5 {
		t.Fatalf("expected 35 points, got %d", got)
	}
}

func TestAddTreeUpdateOwnershipAndMissingTree(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	tree, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeNeem})

	env.login(t, "alice")
	if _, err := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: "missing"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	updates, _ := env.store.TreeUpdates().Load(ctx)
	if len(updates) != 0 {
		t.Fatalf("rejected updates must not be written, got %d", len(updates))
	}
}

func TestUpdateTreeStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "bob")
	tree, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreePeepal})

	if err := env.service.UpdateTreeStatus(ctx, tree.ID, store.TreeGrowing); err != nil {
		t.Fatalf("UpdateTreeStatus failed: %v", err)
	}
	growing, _ := env.service.GetTree(ctx, tree.ID)
	if growing.Status != store.TreeGrowing || !growing.LastUpdateDate.After(tree.LastUpdateDate) {
		t.Fatalf("expected growing with a newer lastUpdateDate, got %#v", growing)
	}

	if err := env.service.UpdateTreeStatus(ctx, tree.ID, store.TreeGrowing); err != nil {
		t.Fatalf("same status must be accepted, got %v", err)
	}
	again, _ := env.service.GetTree(ctx, tree.ID)
	if !again.LastUpdateDate.After(growing.LastUpdateDate) {
		t.Fatalf("expected lastUpdateDate refresh")
	}

	err := env.service.UpdateTreeStatus(ctx, tree.ID, store.TreePlanted)
	if !errors.Is(err, apperr.ErrInvalidTransition) || !strings.Contains(err.Error(), "growing to planted") {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := env.service.UpdateTreeStatus(ctx, tree.ID, "wilted"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := env.service.UpdateTreeStatus(ctx, "missing", store.TreeHealthy); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.service.GetTree(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetTreesFiltersByOwnerInStorageOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	first, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeMango})
	bob := env.register(t, "bob")
	_, _ = env.service.AddTree(ctx, AddTreeInput{Type: store.TreeNeem})
	env.login(t, "alice")
	third, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeTeak})

	all, _ := env.service.GetTrees(ctx, "")
	if len(all) != 3 || all[0].ID != first.ID || all[2].ID != third.ID {
		t.Fatalf("expected storage order, got %#v", all)
	}
	mine, _ := env.service.GetTrees(ctx, alice.ID)
	if len(mine) != 2 || mine[0].ID != first.ID || mine[1].ID != third.ID {
		t.Fatalf("unexpected alice trees %#v", mine)
	}
	theirs, _ := env.service.GetTrees(ctx, bob.ID)
	if len(theirs) != 1 {
		t.Fatalf("unexpected bob trees %#v", theirs)
	}
}

func TestGetTreeUpdatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "bob")
	tree, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeCoconut})
	other, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeCoconut})

	first, _ := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID, Notes: "one"})
	_, _ = env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: other.ID})
	second, _ := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID, Notes: "two"})

	updates, err := env.service.GetTreeUpdates(ctx, tree.ID)
	if err != nil {
		t.Fatalf("GetTreeUpdates failed: %v", err)
	}
	if len(updates) != 2 || updates[0].ID != second.ID || updates[1].ID != first.ID {
		t.Fatalf("expected newest first, got %#v", updates)
	}
	none, _ := env.service.GetTreeUpdates(ctx, "missing")
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty slice, got %#v", none)
	}
}

func TestReportIssueCommunityHero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	carol := env.register(t, "carol")

	for i := 1; i <= 3; i++ {
		issue, err := env.service.ReportIssue(ctx, ReportIssueInput{
			Category:    store.IssueOpenManhole,
			Description: "uncovered manhole",
			Location:    "Main St",
			IsEmergency: i == 3,
		})
		if err != nil {
			t.Fatalf("ReportIssue failed: %v", err)
		}
		if issue.Status != store.IssueReported || !issue.CreatedAt.Equal(issue.UpdatedAt) {
			t.Fatalf("unexpected issue %#v", issue)
		}
		hero := env.user(t, carol.ID).HasBadge(badge.CommunityHero)
		if hero != (i >= 3) {
			t.Fatalf("after %d issues communityHero=%v", i, hero)
		}
	}
	if got := env.user(t, carol.ID).Points; got != 15 {
		t.Fatalf("expected 15 points, got %d", got)
	}
	if _, err := env.service.ReportIssue(ctx, ReportIssueInput{Category: "pothole"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetIssuesNewestFirstWithAndWithoutFilter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	a1, _ := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueFallenTree})
	env.register(t, "bob")
	b1, _ := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueFloodedRoad})
	env.login(t, "alice")
	a2, _ := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueGarbageOverflow})

	all, _ := env.service.GetIssues(ctx, "")
	if ids := issueIDs(all); !slices.Equal(ids, []string{a2.ID, b1.ID, a1.ID}) {
		t.Fatalf("unexpected unfiltered order %v", ids)
	}
	mine, _ := env.service.GetIssues(ctx, alice.ID)
	if ids := issueIDs(mine); !slices.Equal(ids, []string{a2.ID, a1.ID}) {
		t.Fatalf("unexpected filtered order %v", ids)
	}

	stored, _ := env.store.Issues().Load(ctx)
	if ids := issueIDs(stored); !slices.Equal(ids, []string{a1.ID, b1.ID, a2.ID}) {
		t.Fatalf("reads must not reorder storage, got %v", ids)
	}
}

func TestUpdateIssueStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "alice")
	issue, _ := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueOther})

	for _, status := range []store.IssueStatus{store.IssueResolved, store.IssueReported, store.IssueInReview} {
		if err := env.service.UpdateIssueStatus(ctx, issue.ID, status); err != nil {
			t.Fatalf("UpdateIssueStatus(%s) failed: %v", status, err)
		}
	}
	updated, err := env.service.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if updated.Status != store.IssueInReview || !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("unexpected issue %#v", updated)
	}

	if err := env.service.UpdateIssueStatus(ctx, "missing", store.IssueResolved); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := env.service.UpdateIssueStatus(ctx, issue.ID, "closed"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.service.GetIssue(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestJoinChallengeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.register(t, "bob")

	for i := 0; i < 2; i++ {
		if err := env.service.JoinChallenge(ctx, "1"); err != nil {
			t.Fatalf("JoinChallenge failed: %v", err)
		}
	}
	challenges, err := env.service.GetChallenges(ctx)
	if err != nil {
		t.Fatalf("GetChallenges failed: %v", err)
	}
	if len(challenges) != 2 || !slices.Equal(challenges[0].Participants, []string{bob.ID}) {
		t.Fatalf("unexpected challenges %#v", challenges)
	}
	if len(challenges[1].Participants) != 0 {
		t.Fatalf("other challenges must be untouched")
	}
	if err := env.service.JoinChallenge(ctx, "99"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLeaderboardRanksAreDenseAndStable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	dave := env.register(t, "dave")

	_ = env.accounts.AddPoints(ctx, alice.ID, 20)
	_ = env.accounts.AddPoints(ctx, bob.ID, 50)
	_ = env.accounts.AddPoints(ctx, carol.ID, 20)

	env.login(t, "carol")
	_, _ = env.service.AddTree(ctx, AddTreeInput{Type: store.TreeMango})
	_, _ = env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueOther})
	_ = env.accounts.AddPoints(ctx, carol.ID, -15)

	entries, err := env.service.GetLeaderboard(ctx)
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	want := []struct {
		id     string
		points int
	}{{bob.ID, 50}, {alice.ID, 20}, {carol.ID, 20}, {dave.ID, 0}}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		e := entries[i]
		if e.UserID != w.id || e.Points != w.points || e.Rank != i+1 {
			t.Fatalf("entry %d = %#v, want user %s with %d points", i, e, w.id, w.points)
		}
	}
	if entries[2].TreesPlanted != 1 || entries[2].IssuesReported != 1 {
		t.Fatalf("unexpected carol counts %#v", entries[2])
	}

	// Extreme totals must not wrap around while comparing.
	erin := env.register(t, "erin")
	_ = env.accounts.AddPoints(ctx, erin.ID, math.MinInt+5)
	_ = env.accounts.AddPoints(ctx, dave.ID, math.MaxInt-1)
	entries, err = env.service.GetLeaderboard(ctx)
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if entries[0].UserID != dave.ID || entries[len(entries)-1].UserID != erin.ID {
		t.Fatalf("expected dave first and erin last, got %#v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Points > entries[i-1].Points {
			t.Fatalf("leaderboard not sorted at %d: %#v", i, entries)
		}
	}
}

type recordingMedia struct {
	seen []string
}

func (m *recordingMedia) Resolve(_ context.Context, photoURL string) (string, error) {
	m.seen = append(m.seen, photoURL)
	return "https://cdn.example/" + photoURL, nil
}

func TestPhotosGoThroughMediaStore(t *testing.T) {
	ctx := context.Background()
	photos := &recordingMedia{}
	env := newTestEnv(t, WithMediaStore(photos))
	env.register(t, "bob")

	tree, _ := env.service.AddTree(ctx, AddTreeInput{Type: store.TreeMango, PhotoURL: "tree.jpg"})
	update, _ := env.service.AddTreeUpdate(ctx, AddTreeUpdateInput{TreeID: tree.ID, PhotoURL: "update.jpg"})
	issue, _ := env.service.ReportIssue(ctx, ReportIssueInput{Category: store.IssueOther, PhotoURL: "issue.jpg"})

	if tree.PhotoURL != "https://cdn.example/tree.jpg" || update.PhotoURL != "https://cdn.example/update.jpg" || issue.PhotoURL != "https://cdn.example/issue.jpg" {
		t.Fatalf("unexpected photo urls %q %q %q", tree.PhotoURL, update.PhotoURL, issue.PhotoURL)
	}
	if len(photos.seen) != 3 {
		t.Fatalf("expected 3 resolutions, got %v", photos.seen)
	}
}

func issueIDs(issues []store.CivicIssue) []string {
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	return ids
}
