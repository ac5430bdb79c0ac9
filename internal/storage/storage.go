package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the durable key/value mirror of the session state. Values are
// opaque bytes, normally produced by Encode.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DatabaseConfig selects and configures a backend.
type DatabaseConfig struct {
	Driver   string // memory, sqlite or postgres
	Path     string // sqlite file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type prefixed struct {
	Storage
	prefix string
}

// WithPrefix scopes every key of s under prefix. Closing the returned value
// does not close s.
func WithPrefix(s Storage, prefix string) Storage {
	return &prefixed{Storage: s, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Storage.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.Storage.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.Storage.Delete(ctx, p.prefix+key)
}

func (p *prefixed) Close() error {
	return nil
}
