package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// KVEngine defines the interface for embedded key-value storage.
//
// Implementations must be safe for concurrent use and durable across
// process restarts unless explicitly opened in memory.
type KVEngine interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// GC reclaims value log space. Returns the number of rewrite cycles run.
	GC(ctx context.Context) (int, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*KVStats, error)

	// Close gracefully shuts down the engine.
	Close() error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	LSMSize      uint64
	ValueLogSize uint64
	LastGC       time.Time
}

// TotalSize is LSM plus value log.
func (s *KVStats) TotalSize() uint64 {
	return s.LSMSize + s.ValueLogSize
}

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs after each write. Default: true (a session record
	// written just before exit must survive).
	SyncWrites bool

	// GCInterval is the interval between automatic GC runs; zero disables
	// the background loop.
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	GCThreshold float64

	// ValueLogFileSize caps a value log file. The session record is tiny,
	// so the default is small.
	ValueLogFileSize int64
}

// DefaultBadgerConfig returns the default configuration for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		SyncWrites:       true,
		GCInterval:       0,
		GCThreshold:      0.5,
		ValueLogFileSize: 16 << 20,
	}
}

// InMemoryBadgerConfig returns a configuration for an ephemeral engine.
func InMemoryBadgerConfig() BadgerConfig {
	cfg := DefaultBadgerConfig("")
	cfg.InMemory = true
	cfg.SyncWrites = false
	return cfg
}
