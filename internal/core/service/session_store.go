package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/storage"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/pkg/crypto/adaptive"
)

// DefaultRecordKey is the durable key of the session record.
const DefaultRecordKey = "dogpay-auth"

// RecordStore is the durable key-value backend of the session store.
// storage.KVEngine satisfies it.
type RecordStore interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithRecordKey overrides DefaultRecordKey.
func WithRecordKey(key string) SessionStoreOption {
	return func(s *SessionStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithPassphrase seals the record at rest with a key derived from
// passphrase.
func WithPassphrase(passphrase string) SessionStoreOption {
	return func(s *SessionStore) { s.passphrase = passphrase }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l logger.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// SessionStore holds the current session. Reads are lock-free snapshots;
// mutations are serialized and persisted before they become visible.
type SessionStore struct {
	kv         RecordStore
	key        string
	passphrase string
	cipher     adaptive.Cipher
	logger     logger.Logger

	mu      sync.Mutex
	current atomic.Pointer[domain.Session]
}

// NewSessionStore opens the store and loads any persisted session.
//
// A record sealed under another passphrase is left in place and the store
// starts logged out. A record that cannot be decoded is discarded. Only
// backend failures are returned as errors.
func NewSessionStore(ctx context.Context, kv RecordStore, opts ...SessionStoreOption) (*SessionStore, error) {
	s := &SessionStore{
		kv:     kv,
		key:    DefaultRecordKey,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session_store")
	s.current.Store(&domain.Session{})

	if s.passphrase != "" {
		if err := s.initCipher(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SessionStore) saltKey() []byte {
	return []byte(s.key + "/salt")
}

func (s *SessionStore) initCipher(ctx context.Context) error {
	salt, err := s.kv.Get(ctx, s.saltKey())
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		if salt, err = adaptive.NewSalt(); err != nil {
			return domain.ErrStorage.WithDetails("generate salt").WithCause(err)
		}
		if err := s.kv.Set(ctx, s.saltKey(), salt); err != nil {
			return domain.ErrStorage.WithDetails("persist salt").WithCause(err)
		}
	case err != nil:
		return domain.ErrStorage.WithDetails("read salt").WithCause(err)
	}

	c, err := adaptive.New(adaptive.DeriveKey(s.passphrase, salt))
	if err != nil {
		return domain.ErrStorage.WithDetails("init cipher").WithCause(err)
	}
	s.cipher = c
	return nil
}

func (s *SessionStore) load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, []byte(s.key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return domain.ErrStorage.WithDetails("read session record").WithCause(err)
	}

	sess, err := s.decode(ctx, raw)
	if errors.Is(err, domain.ErrSessionLocked) {
		s.logger.Warn("session record is locked, starting logged out", "error", err)
		return nil
	}
	if err != nil {
		s.logger.Warn("discarding unreadable session record", "error", err)
		if err := s.kv.Delete(ctx, []byte(s.key)); err != nil {
			s.logger.Warn("failed to delete unreadable session record", "error", err)
		}
		return nil
	}
	s.current.Store(&sess)
	s.logger.Debug("session restored", "authenticated", sess.Authenticated())
	return nil
}

func (s *SessionStore) decode(ctx context.Context, raw []byte) (domain.Session, error) {
	var sess domain.Session
	if s.cipher != nil {
		plain, err := s.cipher.Decrypt(raw, []byte(s.key))
		if err != nil {
			return sess, domain.ErrSessionLocked.WithCause(err)
		}
		raw = plain
	}
	if err := json.Unmarshal(raw, &sess); err != nil {
		// Without a cipher, a salt next to an undecodable record means it
		// was sealed and the passphrase is missing.
		if s.cipher == nil {
			if _, serr := s.kv.Get(ctx, s.saltKey()); serr == nil {
				return sess, domain.ErrSessionLocked.WithDetails("no passphrase configured")
			}
		}
		return sess, domain.ErrSessionCorrupt.WithCause(err)
	}
	if !sess.Complete() {
		return domain.Session{}, domain.ErrSessionCorrupt.WithDetails("incomplete credential pair")
	}
	return sess, nil
}

func (s *SessionStore) persist(ctx context.Context, sess domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if s.cipher != nil {
		if raw, err = s.cipher.Encrypt(raw, []byte(s.key)); err != nil {
			return domain.ErrStorage.WithDetails("seal session record").WithCause(err)
		}
	}
	if err := s.kv.Set(ctx, []byte(s.key), raw); err != nil {
		return domain.ErrStorage.WithDetails("write session record").WithCause(err)
	}
	return nil
}

// Get returns a snapshot of the current session. The zero Session means
// logged out.
func (s *SessionStore) Get() domain.Session {
	return s.current.Load().Clone()
}

// SetAuth replaces the credential pair and user profile together.
func (s *SessionStore) SetAuth(ctx context.Context, accessToken, refreshToken string, user *domain.User) error {
	if accessToken == "" || refreshToken == "" {
		return domain.ErrValidation.WithDetails("access and refresh tokens are required together")
	}

	next := domain.Session{
		CredentialPair: domain.CredentialPair{AccessToken: accessToken, RefreshToken: refreshToken},
		User:           user,
	}
	next = next.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}

// SetAccessToken replaces only the access token of an existing session.
func (s *SessionStore) SetAccessToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return domain.ErrValidation.WithDetails("access token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if !cur.Complete() {
		return domain.ErrNoSession
	}
	next := cur.Clone()
	next.AccessToken = accessToken

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}

// Logout clears the session and deletes the durable record. The in-memory
// session is cleared even when the delete fails. Calling Logout without a
// session is a no-op.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(&domain.Session{})
	if err := s.kv.Delete(ctx, []byte(s.key)); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return domain.ErrStorage.WithDetails("delete session record").WithCause(err)
	}
	return nil
}
