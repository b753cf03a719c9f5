// Package snapshot persists whole serialized collections under named keys.
//
// A snapshot is always the complete collection; backends never see deltas.
package snapshot

import (
	"context"
	"errors"
	"regexp"
)

// Keys used by the ledger stores.
const (
	KeyExpenses = "expenses"
	KeyTrips    = "trips"
)

var (
	ErrClosed     = errors.New("snapshot store closed")
	ErrInvalidKey = errors.New("invalid snapshot key")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// KV is a durable key-value store holding one snapshot per key.
type KV interface {
	// Get returns the stored value. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
