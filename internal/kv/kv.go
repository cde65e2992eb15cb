// Package kv defines the key-value store the portal keeps its per-user state in
// (list caches, sessions, chat history) and its memory and redis backends.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("kv: key not found")

// Store holds plain string values. Every Set is a full overwrite.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
