package storage

import "errors"

var ErrNotFound = errors.New("not found")

// KV is the durable key-value store the experiment persists its
// assignment and event log into. Implementations may fail on any
// call (quota, locked file, corrupt value); callers are expected to
// guard and degrade rather than propagate.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}
