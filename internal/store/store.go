// Package store provides the keyed record store: named partitions ("trees")
// of byte keys mapped to CBOR-encoded values, over a pluggable backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Error kinds returned by the store. Backend failures wrap ErrStorage,
// undecodable stored bytes wrap ErrDecode.
var (
	ErrStorage = errors.New("storage failure")
	ErrDecode  = errors.New("decoding failure")
	ErrEncode  = errors.New("encoding failure")
)

// Backend is a byte-level partitioned key-value store.
// Every call touches a single key (or a single partition for Clear).
type Backend interface {
	Get(ctx context.Context, tree string, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, tree string, key, value []byte) error
	Remove(ctx context.Context, tree string, key []byte) ([]byte, bool, error)
	Clear(ctx context.Context, tree string) error
}

// Core deterministic encoding keeps stored bytes stable across restarts.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Tree is a typed view over one partition of a Backend.
type Tree[T any] struct {
	backend Backend
	name    string
}

// NewTree creates a typed tree named name.
func NewTree[T any](backend Backend, name string) *Tree[T] {
	return &Tree[T]{backend: backend, name: name}
}

// Name returns the partition name.
func (t *Tree[T]) Name() string {
	return t.name
}

// Get returns the value stored under key and whether it was present.
func (t *Tree[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, ok, err := t.backend.Get(ctx, t.name, []byte(key))
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := t.decode(key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// GetOr returns the value stored under key, or def when absent.
func (t *Tree[T]) GetOr(ctx context.Context, key string, def T) (T, error) {
	v, ok, err := t.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (t *Tree[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := encMode.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrEncode, t.name, key, err)
	}
	return t.backend.Put(ctx, t.name, []byte(key), raw)
}

// Remove deletes key and returns the previous value if there was one.
func (t *Tree[T]) Remove(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, ok, err := t.backend.Remove(ctx, t.name, []byte(key))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.decode(key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Clear deletes every key of the tree.
func (t *Tree[T]) Clear(ctx context.Context) error {
	return t.backend.Clear(ctx, t.name)
}

func (t *Tree[T]) decode(key string, raw []byte) (T, error) {
	var v T
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s/%s: %w", ErrDecode, t.name, key, err)
	}
	return v, nil
}

func storageErr(op, tree string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, tree, err)
}
