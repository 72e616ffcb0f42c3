// Package cache implements the keyed query cache that sits in front of the
// gym directory, plus the invalidation contract event consumers drive.
package cache

import "context"

// Invalidator marks a cached key stale.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// NoopInvalidator is a no-op implementation.
type NoopInvalidator struct{}

// Invalidate performs no action.
func (NoopInvalidator) Invalidate(context.Context, string) error { return nil }

var _ Invalidator = (*Cache[struct{}])(nil)
