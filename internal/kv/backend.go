// Package kv provides the key-value media the store persists into.
//
// A Backend is a durable mapping from string keys to opaque byte values.
// Callers perform whole-value read-modify-write cycles; backends offer no
// locking, versioning or compare-and-swap, so two unordered writers of the
// same key lose one update (last write wins). Hosts are expected to funnel
// mutations through a single writer.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the whole value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
