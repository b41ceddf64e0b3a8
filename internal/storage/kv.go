// Package storage persists client-side state: the session token and the
// cached user profile. Every backend is partitioned into namespaces, one per
// browser session or CLI profile.
package storage

import "context"

// Well-known keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// KV is a string key/value store scoped to a single namespace.
type KV interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Namespaced hands out KV views over one backing store.
type Namespaced interface {
	Namespace(ns string) KV
	Close() error
}
