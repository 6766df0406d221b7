package ports

import (
	"context"
	"time"
)

// RouteCache stores gateway results keyed by a rounded-coordinate
// fingerprint. Entries are immutable once written; an update is a key
// replacement, and entries expire by TTL.
type RouteCache interface {
	GetRoute(ctx context.Context, key string) (RouteResult, bool, error)
	PutRoute(ctx context.Context, key string, res RouteResult, ttl time.Duration) error
}
