// Package kv persists small values by key. Values are stored as JSON so
// any backend can hold them.
package kv

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
)

// ErrNotFound is returned by Load for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is a byte-oriented key/value store.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Lookup decodes the value at key.
func Lookup[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Load(ctx, key)
	if err != nil {
		return v, err
	}
	if err := sonic.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return v, nil
}

// Get decodes the value at key, returning def when the key is missing or
// its value cannot be decoded.
func Get[T any](ctx context.Context, s Store, key string, def T) T {
	v, err := Lookup[T](ctx, s, key)
	if err != nil {
		return def
	}
	return v
}

// Set encodes v and stores it at key.
func Set[T any](ctx context.Context, s Store, key string, v T) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.Save(ctx, key, data)
}

// Options selects and configures a backend for Open.
type Options struct {
	Kind     string // file, redis or memory
	Dir      string
	RedisURL string
	Metrics  *monitoring.Metrics
}

// Open builds the store named by opts.Kind.
func Open(opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Kind {
	case "", "file":
		store, err = NewFileStore(opts.Dir)
	case "redis":
		store, err = NewRedisStore(opts.RedisURL, "livecode:")
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown kv store %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(store, opts.Kind, opts.Metrics), nil
}

// instrumented records every operation in the storage metrics.
type instrumented struct {
	Store
	name    string
	metrics *monitoring.Metrics
}

// Instrument wraps s so each call is counted under name.
func Instrument(s Store, name string, m *monitoring.Metrics) Store {
	if m == nil {
		return s
	}
	if name == "" {
		name = "file"
	}
	return &instrumented{Store: s, name: name, metrics: m}
}

func (i *instrumented) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := i.Store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		i.metrics.StorageOp("kv_"+i.name, "load", nil)
	} else {
		i.metrics.StorageOp("kv_"+i.name, "load", err)
	}
	return data, err
}

func (i *instrumented) Save(ctx context.Context, key string, data []byte) error {
	err := i.Store.Save(ctx, key, data)
	i.metrics.StorageOp("kv_"+i.name, "save", err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	err := i.Store.Delete(ctx, key)
	i.metrics.StorageOp("kv_"+i.name, "delete", err)
	return err
}

// Close releases the connections held by s, if any.
func Close(s Store) error {
	if i, ok := s.(*instrumented); ok {
		s = i.Store
	}
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
