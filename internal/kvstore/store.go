// Package kvstore provides the durable key/value storage the client keeps
// between restarts.
package kvstore

import (
	"context"
	"fmt"
)

// Store is an asynchronous byte-oriented key/value store. Get reports a
// missing key with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PersistenceError wraps any I/O failure of a Store.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("kvstore %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
