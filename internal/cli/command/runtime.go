package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/dogpay-go/internal/cli/config"
	"github.com/yndnr/dogpay-go/internal/cli/connection"
	"github.com/yndnr/dogpay-go/internal/cli/output"
	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/core/service"
	"github.com/yndnr/dogpay-go/internal/infra/buildinfo"
	"github.com/yndnr/dogpay-go/internal/storage"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
	"github.com/yndnr/dogpay-go/internal/telemetry/tracer"
)

// Metadata keys on cli.App.
const (
	metaRuntime = "runtime"
	metaNested  = "nested"
)

// Runtime holds everything a command needs after configuration has been
// resolved. It is created on first use and shared by every command run in
// the same process, including commands dispatched from the shell.
type Runtime struct {
	Config     *config.CLIConfig
	ConfigPath string
	Logger     logger.Logger
	Metrics    *metric.Registry
	Tracer     *tracer.Provider
	Engine     *storage.BadgerEngine
	Store      *service.SessionStore
	Conn       *connection.Manager
	Cache      *service.DerivedCache
	Lifecycle  *service.Lifecycle
	Payments   *service.Payments

	Out    io.Writer
	ErrOut io.Writer

	mu   sync.Mutex
	view service.View
}

// NewRuntime wires the session store, the service clients and the
// lifecycle facade for cfg.
func NewRuntime(ctx context.Context, cfg *config.CLIConfig, cfgPath string, out, errOut io.Writer) (*Runtime, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: errOut,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     log,
		Metrics:    metric.NewRegistry(),
		Out:        out,
		ErrOut:     errOut,
	}

	rt.Tracer, err = tracer.New(ctx, tracer.Config{
		ServiceName:    buildinfo.ProductName,
		ServiceVersion: buildinfo.Version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Session.Dir, 0o700); err != nil {
		return nil, domain.ErrStorage.WithDetails("create session dir").WithCause(err)
	}
	kvCfg := storage.DefaultBadgerConfig(cfg.Session.Dir)
	kvCfg.GCInterval = cfg.Session.GCInterval
	rt.Engine, err = storage.NewBadgerEngine(kvCfg, log)
	if err != nil {
		return nil, domain.ErrStorage.WithDetails("open session storage").WithCause(err)
	}
	if err := rt.Engine.RegisterMetrics(rt.Metrics.Registerer()); err != nil {
		log.Warn("badger metrics not registered", "error", err)
	}

	storeOpts := []service.SessionStoreOption{
		service.WithRecordKey(cfg.Session.Key),
		service.WithStoreLogger(log),
	}
	if cfg.Session.Passphrase != "" {
		storeOpts = append(storeOpts, service.WithPassphrase(cfg.Session.Passphrase))
	}
	rt.Store, err = service.NewSessionStore(ctx, rt.Engine, storeOpts...)
	if err != nil {
		rt.Engine.Close()
		return nil, err
	}

	// The coordinator only learns about termination through this hook; the
	// lifecycle it forwards to is created after the manager.
	rt.Conn, err = connection.NewManager(connection.Config{
		IdentityURL:  cfg.Identity.URL,
		LedgerURL:    cfg.Ledger.URL,
		Timeout:      cfg.HTTP.Timeout,
		CAFile:       cfg.HTTP.CAFile,
		SingleFlight: cfg.Session.SingleFlight,
		UserAgent:    buildinfo.UserAgent(),
	}, rt.Store,
		connection.WithMetrics(rt.Metrics),
		connection.WithTracer(rt.Tracer),
		connection.WithLogger(log),
		connection.WithOnTerminating(rt.terminating),
		connection.WithOnTerminated(rt.terminated),
	)
	if err != nil {
		rt.Engine.Close()
		return nil, err
	}

	rt.Cache = service.NewDerivedCache(service.WithCacheMetrics(rt.Metrics))
	rt.Lifecycle = service.NewLifecycle(rt.Conn.Identity, rt.Store, rt.Cache,
		service.WithObserver(rt.Tracer),
		service.WithNavigator(service.NavigatorFunc(rt.navigate)),
		service.WithLifecycleLogger(log),
	)
	rt.Payments = service.NewPayments(rt.Conn.Ledger, rt.Cache, service.PaymentsConfig{
		BalanceTTL:      cfg.Cache.BalanceTTL,
		HistoryTTL:      cfg.Cache.HistoryTTL,
		ConfirmInterval: cfg.Transfer.ConfirmInterval,
		ConfirmTimeout:  cfg.Transfer.ConfirmTimeout,
	}, log)

	if sess := rt.Store.Get(); sess.Authenticated() {
		rt.Tracer.SetUser(sess.User)
		rt.view = service.ViewDashboard
	} else {
		rt.view = service.ViewLogin
	}
	return rt, nil
}

func (rt *Runtime) terminating(ctx context.Context) {
	if rt.Lifecycle != nil {
		rt.Lifecycle.HandleTerminating(ctx)
	}
}

func (rt *Runtime) terminated(ctx context.Context) {
	if rt.Lifecycle != nil {
		rt.Lifecycle.HandleTerminated(ctx)
	}
}

// navigate prints the destination when the view changes.
func (rt *Runtime) navigate(view service.View) {
	rt.mu.Lock()
	changed := rt.view != view
	rt.view = view
	rt.mu.Unlock()

	if !changed {
		return
	}
	switch view {
	case service.ViewLogin:
		fmt.Fprintln(rt.ErrOut, "Signed out. Run 'login' to continue.")
	default:
		fmt.Fprintf(rt.ErrOut, "-> %s\n", view)
	}
}

// View returns the current navigation destination.
func (rt *Runtime) View() service.View {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.view
}

// Prompt reflects the session in the shell prompt.
func (rt *Runtime) Prompt() string {
	sess := rt.Store.Get()
	if !sess.Authenticated() || sess.User == nil {
		return "dogpay> "
	}
	return fmt.Sprintf("dogpay(%s)> ", sess.User.Email)
}

// RequireSession fails without a network call when no one is logged in.
func (rt *Runtime) RequireSession() (domain.Session, error) {
	sess := rt.Store.Get()
	if !sess.Authenticated() {
		return sess, domain.ErrNotLoggedIn.WithDetails("run 'dogpay-cli login' first")
	}
	return sess, nil
}

// Close flushes traces and closes the session storage.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Tracer != nil {
		errs = append(errs, rt.Tracer.Shutdown(ctx))
	}
	if rt.Engine != nil {
		errs = append(errs, rt.Engine.Close())
	}
	return errors.Join(errs...)
}

// GetRuntime returns the runtime for c, creating it on first use from the
// global flags, the environment and the config file.
func GetRuntime(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
		return rt, nil
	}

	flags := ParseGlobalFlags(c)
	cfg, err := config.LoadWithOverrides(flags.ConfigPath, flags.Overrides())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rt, err := NewRuntime(c.Context, cfg, flags.ConfigPath, stdout(c), stderr(c))
	if err != nil {
		return nil, err
	}
	c.App.Metadata[metaRuntime] = rt
	return rt, nil
}

// closeRuntime runs as the app's After hook. Commands dispatched from the
// shell leave the runtime open for the next line.
func closeRuntime(c *cli.Context) error {
	if nested, _ := c.App.Metadata[metaNested].(bool); nested {
		return nil
	}
	rt, ok := c.App.Metadata[metaRuntime].(*Runtime)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, metaRuntime)
	return rt.Close(context.WithoutCancel(c.Context))
}

// formatter resolves the output format: the flag wins over the config.
func formatter(c *cli.Context, rt *Runtime) (output.Formatter, error) {
	name := c.String("output")
	if !c.IsSet("output") && rt != nil {
		name = rt.Config.Output
	}
	f, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(f, c.Bool("wide")), nil
}

// render writes data to the command's stdout in the selected format.
func render(c *cli.Context, rt *Runtime, data any) error {
	f, err := formatter(c, rt)
	if err != nil {
		return err
	}
	return f.Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
