package store

import (
	"context"
)

// Store is the durable key/value primitive every engine module persists its
// idempotency state through. Values are strings; structured state is
// JSON-encoded at the boundary. Each module owns a distinct key namespace so
// concurrent writers never collide on a key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiRemove(ctx context.Context, keys ...string) error
}
