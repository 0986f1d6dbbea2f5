package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yndnr/dogpay-go/internal/storage"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
)

func newMemKV(t *testing.T) *storage.BadgerEngine {
	t.Helper()
	kv, err := storage.NewBadgerEngine(storage.InMemoryBadgerConfig(), logger.Discard())
	if err != nil {
		t.Fatalf("NewBadgerEngine() error = %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func newTestStore(t *testing.T, kv RecordStore, opts ...SessionStoreOption) *SessionStore {
	t.Helper()
	opts = append([]SessionStoreOption{WithStoreLogger(logger.Discard())}, opts...)
	s, err := NewSessionStore(context.Background(), kv, opts...)
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	return s
}

// flakyKV wraps a RecordStore and fails selected operations.
type flakyKV struct {
	RecordStore
	mu      sync.Mutex
	failSet bool
	failDel bool
	deletes int
}

var errDisk = errors.New("disk full")

func (f *flakyKV) Set(ctx context.Context, key, value []byte) error {
	f.mu.Lock()
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.RecordStore.Set(ctx, key, value)
}

func (f *flakyKV) Delete(ctx context.Context, key []byte) error {
	f.mu.Lock()
	f.deletes++
	fail := f.failDel
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.RecordStore.Delete(ctx, key)
}
