// Package kv defines the durable key-value store that exercise and
// training state is persisted in. Values are JSON documents addressed by
// string keys, one store per user profile.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a profile-scoped key-value store.
type Store interface {
	// Get returns the raw value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Batcher is implemented by stores that can write several keys in one
// transaction.
type Batcher interface {
	SetMany(ctx context.Context, values map[string][]byte) error
}

// GetJSON decodes the value at key into v. It reports false when the key is
// absent or the stored value is not valid JSON for v; in both cases v is left
// for the caller to default. Only store errors are returned.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// SetAll writes every value, in a single transaction when s implements
// Batcher and key by key otherwise.
func SetAll(ctx context.Context, s Store, values map[string][]byte, order []string) error {
	if b, ok := s.(Batcher); ok {
		return b.SetMany(ctx, values)
	}
	for _, key := range order {
		v, ok := values[key]
		if !ok {
			continue
		}
		if err := s.Set(ctx, key, v); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
	return nil
}
