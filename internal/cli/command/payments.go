package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/dogpay-go/internal/cli/config"
	"github.com/yndnr/dogpay-go/internal/cli/output"
	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/core/service"
	"github.com/yndnr/dogpay-go/internal/infra/confloader"
	"github.com/yndnr/dogpay-go/internal/infra/shutdown"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
)

// DefaultWatchInterval is the balance polling interval of watch.
const DefaultWatchInterval = 10 * time.Second

func freshFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "fresh",
		Aliases: []string{"f"},
		Usage:   "Bypass the local cache",
	}
}

// BalanceCommand returns the balance command.
func BalanceCommand() *cli.Command {
	return &cli.Command{
		Name:   "balance",
		Usage:  "Show the account balance",
		Flags:  []cli.Flag{freshFlag()},
		Action: balance,
	}
}

// HistoryCommand returns the history command.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"tx"},
		Usage:   "List transactions",
		Flags: []cli.Flag{
			freshFlag(),
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "List transfers sent from this shell that the ledger has not settled yet",
			},
		},
		Action: history,
	}
}

// TransferCommand returns the transfer command.
func TransferCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Send money to another account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient email",
				Required: true,
			},
			&cli.Float64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount to send",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Optional description",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait until the ledger settles the transfer",
			},
		},
		Action: transfer,
	}
}

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll the balance until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Value:   DefaultWatchInterval,
				Usage:   "Polling interval",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g., :9090)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Stop after this many polls (0 = until interrupted)",
			},
		},
		Action: watch,
	}
}

func balance(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if _, err := rt.RequireSession(); err != nil {
		return err
	}

	bal, err := rt.Payments.Balance(c.Context, service.QueryOptions{Fresh: c.Bool("fresh")})
	if err != nil {
		return err
	}
	return render(c, rt, bal)
}

func history(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if _, err := rt.RequireSession(); err != nil {
		return err
	}

	if c.Bool("pending") {
		pending := rt.Payments.Pending()
		if len(pending) == 0 && !structured(c, rt) {
			fmt.Fprintln(stdout(c), "No pending transfers")
			return nil
		}
		return render(c, rt, pending)
	}

	txs, err := rt.Payments.History(c.Context, service.QueryOptions{Fresh: c.Bool("fresh")})
	if err != nil {
		return err
	}
	if len(txs) == 0 && !structured(c, rt) {
		fmt.Fprintln(stdout(c), "No transactions")
		return nil
	}
	return render(c, rt, txs)
}

func transfer(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if _, err := rt.RequireSession(); err != nil {
		return err
	}

	receipt, err := rt.Payments.Transfer(c.Context, domain.TransferRequest{
		ToEmail:     c.String("to"),
		Amount:      c.Float64("amount"),
		Description: c.String("description"),
	})
	if err != nil {
		return err
	}
	if !c.Bool("wait") || domain.IsTerminalStatus(receipt.Status) {
		return render(c, rt, receipt)
	}

	spin := output.NewSpinner(stderr(c), "Waiting for confirmation")
	spin.Start()
	tx, err := rt.Payments.AwaitConfirmation(c.Context, receipt.TransactionID)
	if err != nil {
		spin.Fail("Transfer not confirmed")
		return err
	}
	if tx.Status == domain.StatusFailed {
		spin.Fail("Transfer failed")
		reason := "rejected by ledger"
		if tx.ErrorMessage != nil && *tx.ErrorMessage != "" {
			reason = *tx.ErrorMessage
		}
		return fmt.Errorf("transfer %s failed: %s", tx.ID, reason)
	}
	spin.Success("Transfer completed")
	return render(c, rt, tx)
}

func watch(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if _, err := rt.RequireSession(); err != nil {
		return err
	}

	interval := c.Duration("interval")
	if interval <= 0 {
		return domain.ErrValidation.WithDetails("interval must be positive")
	}

	h := shutdown.NewHandler(shutdown.DefaultTimeout)

	if addr := c.String("metrics-addr"); addr != "" {
		stop, err := serveMetrics(c, rt, addr)
		if err != nil {
			return err
		}
		h.OnShutdown(stop)
	}

	if w := watchConfig(c, rt); w != nil {
		h.OnShutdown(func(context.Context) error { return w.Stop() })
	}

	return h.Run(c.Context, func(ctx context.Context) error {
		return pollBalance(ctx, c, rt, interval, c.Int("count"))
	})
}

// pollBalance prints the balance every interval. Transient errors are
// logged and polling continues; a terminated session ends the loop.
func pollBalance(ctx context.Context, c *cli.Context, rt *Runtime, interval time.Duration, count int) error {
	// Structured formats print one document per poll; JSON as one line each.
	var stream output.Formatter
	if structured(c, rt) {
		f, err := formatter(c, rt)
		if err != nil {
			return err
		}
		if jf, ok := f.(*output.JSONFormatter); ok {
			jf.Compact = true
		}
		stream = f
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *domain.Balance
	for n := 0; count == 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		if _, err := rt.RequireSession(); err != nil {
			return err
		}
		bal, err := rt.Payments.Balance(ctx, service.QueryOptions{Fresh: true})
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrAuthorizationExpired):
			return err
		default:
			rt.Logger.Warn("balance poll failed", "error", err)
			continue
		}

		if stream != nil {
			if err := stream.Format(stdout(c), bal); err != nil {
				return err
			}
		} else {
			printBalanceLine(c, bal, last)
		}
		last = bal
	}
	return nil
}

func printBalanceLine(c *cli.Context, bal, last *domain.Balance) {
	line := fmt.Sprintf("%s  balance %.2f", time.Now().Format("15:04:05"), bal.Balance)
	if last != nil && last.Balance != bal.Balance {
		line += fmt.Sprintf("  (%+.2f)", bal.Balance-last.Balance)
	}
	fmt.Fprintln(stdout(c), line)
}

// serveMetrics exposes the client registry over HTTP and returns the hook
// that stops the server.
func serveMetrics(c *cli.Context, rt *Runtime, addr string) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error("metrics server stopped", "error", err)
		}
	}()

	fmt.Fprintf(stderr(c), "Serving metrics on http://%s/metrics\n", ln.Addr())
	return srv.Shutdown, nil
}

// watchConfig reloads log.level when the config file changes. It returns
// nil when there is no file to watch.
func watchConfig(c *cli.Context, rt *Runtime) *confloader.Watcher {
	path := rt.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(rt.Logger))
	if err != nil {
		rt.Logger.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil
	}

	overrides := ParseGlobalFlags(c).Overrides()
	w.OnChange(func(p string) {
		cfg, err := config.LoadWithOverrides(p, overrides)
		if err != nil {
			rt.Logger.Warn("config reload failed", "path", p, "error", err)
			return
		}
		if !strings.EqualFold(cfg.Log.Level, logger.GetLevel()) {
			logger.SetLevel(cfg.Log.Level)
			rt.Logger.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w
}

// structured reports whether the selected format is json or yaml.
func structured(c *cli.Context, rt *Runtime) bool {
	name := c.String("output")
	if !c.IsSet("output") {
		name = rt.Config.Output
	}
	f, err := output.ParseFormat(name)
	return err == nil && f != output.FormatTable
}
