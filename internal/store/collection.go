package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ecocivic/api/internal/kv"
)

// Collection is the repository for one flat entity collection. The whole
// collection lives under a single key: Load reads all of it and Save
// replaces all of it. There is no locking and no version check, so callers
// must not interleave two read-modify-write cycles on the same collection.
type Collection[T any] struct {
	backend kv.Backend
	key     string
}

func newCollection[T any](backend kv.Backend, key string) *Collection[T] {
	return &Collection[T]{backend: backend, key: key}
}

func (c *Collection[T]) Key() string {
	return c.key
}

// Load returns the stored items in insertion order, or an empty slice when
// nothing has been stored yet.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	data, err := c.backend.Get(ctx, c.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", c.key, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", c.key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.key, err)
	}
	if err := c.backend.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("store: save %s: %w", c.key, err)
	}
	return nil
}
