package app

import (
	"context"
	"slices"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/store"
)

// AddTree plants a tree for the signed-in user. Planting earns points, the
// first tree earns greenStarter and the fifth and later earn treePlanter.
func (s *Service) AddTree(ctx context.Context, input AddTreeInput) (store.Tree, error) {
	user, err := s.identity.RequireUser(ctx)
	if err != nil {
		return store.Tree{}, err
	}
	if !input.Type.Valid() {
		return store.Tree{}, apperr.Validation("unknown tree type " + string(input.Type))
	}
	photoURL, err := s.media.Resolve(ctx, input.PhotoURL)
	if err != nil {
		return store.Tree{}, err
	}

	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return store.Tree{}, err
	}
	now := s.timestamp()
	tree := store.Tree{
		ID:             s.newID("tree"),
		UserID:         user.ID,
		Username:       user.Username,
		Type:           input.Type,
		Status:         store.TreePlanted,
		Location:       input.Location,
		PhotoURL:       photoURL,
		PlantedDate:    now,
		LastUpdateDate: now,
		CreatedAt:      now,
	}
	trees = append(trees, tree)
	if err := s.store.Trees().Save(ctx, trees); err != nil {
		return store.Tree{}, err
	}

	if err := s.identity.AddPoints(ctx, user.ID, pointsPerTree); err != nil {
		return store.Tree{}, err
	}
	owned := countTrees(trees, user.ID)
	if owned == 1 {
		if err := s.identity.AddBadge(ctx, user.ID, badge.GreenStarter); err != nil {
			return store.Tree{}, err
		}
	}
	if owned >= treePlanterThreshold {
		if err := s.identity.AddBadge(ctx, user.ID, badge.TreePlanter); err != nil {
			return store.Tree{}, err
		}
	}

	s.logger.Info("tree planted", "tree_id", tree.ID, "user_id", user.ID, "type", tree.Type, "owned", owned)
	return tree, nil
}

// GetTrees returns every tree in storage order, or only those owned by
// userID when it is set.
func (s *Service) GetTrees(ctx context.Context, userID string) ([]store.Tree, error) {
	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return trees, nil
	}
	owned := make([]store.Tree, 0, len(trees))
	for _, tree := range trees {
		if tree.UserID == userID {
			owned = append(owned, tree)
		}
	}
	return owned, nil
}

func (s *Service) GetTree(ctx context.Context, id string) (store.Tree, error) {
	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return store.Tree{}, err
	}
	idx := indexOfTree(trees, id)
	if idx < 0 {
		return store.Tree{}, apperr.NotFound("tree")
	}
	return trees[idx], nil
}

// UpdateTreeStatus moves a tree forward through its growth stages. Setting
// the current status again only refreshes lastUpdateDate.
func (s *Service) UpdateTreeStatus(ctx context.Context, treeID string, status store.TreeStatus) error {
	if !status.Valid() {
		return apperr.Validation("unknown tree status " + string(status))
	}
	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOfTree(trees, treeID)
	if idx < 0 {
		return apperr.NotFound("tree")
	}
	if err := s.advance(&trees[idx], status); err != nil {
		return err
	}
	return s.store.Trees().Save(ctx, trees)
}

func (s *Service) advance(tree *store.Tree, status store.TreeStatus) error {
	if status.Stage() < tree.Status.Stage() {
		return apperr.InvalidTransition(string(tree.Status), string(status))
	}
	tree.Status = status
	tree.LastUpdateDate = s.timestamp()
	return nil
}

// AddTreeUpdate logs a growth update on a tree owned by the signed-in user.
// Every update earns points; the first moves a planted tree to growing and
// a later one moves a growing tree to healthy for a bonus.
func (s *Service) AddTreeUpdate(ctx context.Context, input AddTreeUpdateInput) (store.TreeUpdate, error) {
	user, err := s.identity.RequireUser(ctx)
	if err != nil {
		return store.TreeUpdate{}, err
	}
	trees, err := s.store.Trees().Load(ctx)
	if err != nil {
		return store.TreeUpdate{}, err
	}
	idx := indexOfTree(trees, input.TreeID)
	if idx < 0 {
		return store.TreeUpdate{}, apperr.NotFound("tree")
	}
	if trees[idx].UserID != user.ID {
		return store.TreeUpdate{}, apperr.Forbidden("only the owner can update this tree")
	}
	photoURL, err := s.media.Resolve(ctx, input.PhotoURL)
	if err != nil {
		return store.TreeUpdate{}, err
	}

	updates, err := s.store.TreeUpdates().Load(ctx)
	if err != nil {
		return store.TreeUpdate{}, err
	}
	update := store.TreeUpdate{
		ID:        s.newID("update"),
		TreeID:    input.TreeID,
		PhotoURL:  photoURL,
		Notes:     input.Notes,
		CreatedAt: s.timestamp(),
	}
	updates = append(updates, update)
	if err := s.store.TreeUpdates().Save(ctx, updates); err != nil {
		return store.TreeUpdate{}, err
	}
	if err := s.identity.AddPoints(ctx, user.ID, pointsPerTreeUpdate); err != nil {
		return store.TreeUpdate{}, err
	}

	tree := &trees[idx]
	switch tree.Status {
	case store.TreePlanted:
		if err := s.advance(tree, store.TreeGrowing); err != nil {
			return store.TreeUpdate{}, err
		}
		if err := s.store.Trees().Save(ctx, trees); err != nil {
			return store.TreeUpdate{}, err
		}
	case store.TreeGrowing:
		if countUpdates(updates, tree.ID) >= 2 {
			if err := s.advance(tree, store.TreeHealthy); err != nil {
				return store.TreeUpdate{}, err
			}
			if err := s.store.Trees().Save(ctx, trees); err != nil {
				return store.TreeUpdate{}, err
			}
			if err := s.identity.AddPoints(ctx, user.ID, pointsHealthyBonus); err != nil {
				return store.TreeUpdate{}, err
			}
		}
	}

	s.logger.Info("tree update logged", "tree_id", tree.ID, "update_id", update.ID, "status", tree.Status)
	return update, nil
}

// GetTreeUpdates returns a tree's updates, most recent first.
func (s *Service) GetTreeUpdates(ctx context.Context, treeID string) ([]store.TreeUpdate, error) {
	updates, err := s.store.TreeUpdates().Load(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]store.TreeUpdate, 0)
	for _, update := range updates {
		if update.TreeID == treeID {
			filtered = append(filtered, update)
		}
	}
	slices.SortStableFunc(filtered, func(a, b store.TreeUpdate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return filtered, nil
}

func indexOfTree(trees []store.Tree, id string) int {
	return slices.IndexFunc(trees, func(tree store.Tree) bool { return tree.ID == id })
}

func countTrees(trees []store.Tree, userID string) int {
	count := 0
	for _, tree := range trees {
		if tree.UserID == userID {
			count++
		}
	}
	return count
}

func countUpdates(updates []store.TreeUpdate, treeID string) int {
	count := 0
	for _, update := range updates {
		if update.TreeID == treeID {
			count++
		}
	}
	return count
}
