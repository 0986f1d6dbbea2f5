package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/dogpay-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    buildinfo.ProductName,
		Usage:   "DogPay terminal client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RegisterCommand(),
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			SessionCommand(),
			BalanceCommand(),
			HistoryCommand(),
			TransferCommand(),
			WatchCommand(),
			ConfigCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Metadata: map[string]any{},
		After:    closeRuntime,
		// Exit codes are decided by main; a command run from the shell must
		// never end the process.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path (default ~/.dogpay/cli.yaml)",
			EnvVars: []string{"DOGPAY_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "identity-url",
			Usage: "Identity service URL (e.g., http://localhost:8001)",
		},
		&cli.StringFlag{
			Name:  "ledger-url",
			Usage: "Ledger service URL (e.g., http://localhost:8002)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output (same as --log-level debug)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigPath string

	// Service endpoints
	IdentityURL string
	LedgerURL   string

	// Output format
	Output string // table, json, yaml
	Wide   bool

	LogLevel string
	Verbose  bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigPath:  c.String("config"),
		IdentityURL: c.String("identity-url"),
		LedgerURL:   c.String("ledger-url"),
		Output:      c.String("output"),
		Wide:        c.Bool("wide"),
		LogLevel:    c.String("log-level"),
		Verbose:     c.Bool("verbose"),
	}
}

// Overrides maps the flags that were given to config keys. They take
// precedence over the environment and the config file.
func (f *GlobalFlags) Overrides() map[string]any {
	m := make(map[string]any)
	if f.IdentityURL != "" {
		m["identity.url"] = f.IdentityURL
	}
	if f.LedgerURL != "" {
		m["ledger.url"] = f.LedgerURL
	}
	if f.LogLevel != "" {
		m["log.level"] = f.LogLevel
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
