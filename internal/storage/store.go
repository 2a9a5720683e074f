package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: value not found")

// StoredValue is one persisted entry. Value is opaque to this layer; the
// secrets core decides whether it is an envelope or plaintext.
type StoredValue struct {
	Key   string
	Value string
}

// ValueStore persists opaque string values under a key. Envelope strings
// are stored as-is (text column semantics).
type ValueStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]StoredValue, error)
}
