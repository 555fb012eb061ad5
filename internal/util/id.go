package util

import (
	"strings"

	"github.com/google/uuid"
)

// IDFunc produces a fresh unique identifier for the given prefix.
type IDFunc func(prefix string) string

func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
