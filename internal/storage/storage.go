package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"cluster-inspection/internal/config"
)

var (
	// ErrKeyNotFound is returned when a key doesn't exist in the realm.
	ErrKeyNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned when a write would push the realm past its quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Storage is a durable string key/value realm. All keys live under one namespace
// so clearing the realm never touches data owned by anything else.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists every key in the realm in ascending order.
	Keys() ([]string, error)

	// Clear removes every key in the realm.
	Clear() error

	// Close releases backend resources.
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageBackendMemory:
		return NewMemoryStorage(cfg.QuotaBytes), nil
	case config.StorageBackendFile:
		if cfg.Directory == "" {
			return nil, fmt.Errorf("file storage requires a directory")
		}
		return NewFileStorage(filepath.Join(cfg.Directory, cfg.Namespace))
	case config.StorageBackendRedis:
		return NewRedisStorage(RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.Namespace,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
