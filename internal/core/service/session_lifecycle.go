package service

import (
	"context"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
)

// IdentityAPI is the identity service as seen by Lifecycle.
type IdentityAPI interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.AuthResult, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
}

// UserObserver receives the set-user / clear-user telemetry hooks.
type UserObserver interface {
	SetUser(user *domain.User)
	ClearUser()
}

// CacheResetter drops all derived query results.
type CacheResetter interface {
	Clear()
}

// View is a navigation destination.
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)

// Navigator receives navigation signals.
type Navigator interface {
	Navigate(view View)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(View)

// Navigate calls f(view).
func (f NavigatorFunc) Navigate(view View) { f(view) }

type nopObserver struct{}

func (nopObserver) SetUser(*domain.User) {}
func (nopObserver) ClearUser()           {}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithObserver sets the telemetry user hooks.
func WithObserver(o UserObserver) LifecycleOption {
	return func(l *Lifecycle) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithNavigator sets the navigation target.
func WithNavigator(n Navigator) LifecycleOption {
	return func(l *Lifecycle) {
		if n != nil {
			l.nav = n
		}
	}
}

// WithLifecycleLogger sets the logger.
func WithLifecycleLogger(log logger.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if log != nil {
			l.logger = log
		}
	}
}

// Lifecycle orchestrates login, register and logout.
type Lifecycle struct {
	identity IdentityAPI
	store    *SessionStore
	cache    CacheResetter
	observer UserObserver
	nav      Navigator
	logger   logger.Logger
}

// NewLifecycle creates the session lifecycle facade.
func NewLifecycle(identity IdentityAPI, store *SessionStore, cache CacheResetter, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		identity: identity,
		store:    store,
		cache:    cache,
		observer: nopObserver{},
		nav:      NavigatorFunc(func(View) {}),
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "lifecycle")
	return l
}

// Login authenticates and establishes a session.
func (l *Lifecycle) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	res, err := l.identity.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return l.establish(ctx, res)
}

// Register creates an account and establishes a session.
func (l *Lifecycle) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	res, err := l.identity.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return l.establish(ctx, res)
}

// establish clears the cache before the session is written.
func (l *Lifecycle) establish(ctx context.Context, res *domain.AuthResult) (*domain.User, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	l.cache.Clear()
	if err := l.store.SetAuth(ctx, res.AccessToken, res.RefreshToken, res.User); err != nil {
		return nil, err
	}
	l.observer.SetUser(res.User)
	l.nav.Navigate(ViewDashboard)
	l.logger.Info("session established", "user_id", res.User.ID)
	return res.User, nil
}

// Logout ends the session. It is safe to call without a session.
func (l *Lifecycle) Logout(ctx context.Context) error {
	l.cache.Clear()
	l.observer.ClearUser()
	err := l.store.Logout(ctx)
	l.nav.Navigate(ViewLogin)
	if err != nil {
		l.logger.Warn("session record not removed", "error", err)
	}
	return err
}

// HandleTerminating runs when the refresh path is about to clear the
// store because the credentials could not be recovered. Like Logout, it
// drops derived state before the credentials go.
func (l *Lifecycle) HandleTerminating(ctx context.Context) {
	l.cache.Clear()
	l.observer.ClearUser()
}

// HandleTerminated runs once the refresh path has cleared the store.
func (l *Lifecycle) HandleTerminated(ctx context.Context) {
	l.nav.Navigate(ViewLogin)
	l.logger.Warn("session terminated, login required")
}

// Current returns the current session snapshot.
func (l *Lifecycle) Current() domain.Session {
	return l.store.Get()
}
