package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/dogpay-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "Start an interactive shell",
		Action:  shell,
	}
}

func shell(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	app := c.App
	app.Metadata[metaNested] = true
	defer func() { app.Metadata[metaNested] = false }()

	known := commandNames(app)
	exec := func(ctx context.Context, args []string) error {
		if name := firstCommand(args); name != "" {
			if name == "shell" || name == "repl" {
				return errors.New("already in the shell")
			}
			if !known[name] {
				return fmt.Errorf("unknown command %q (type 'help' for a list)", name)
			}
		}
		return app.RunContext(ctx, append([]string{app.Name}, args...))
	}

	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		if !cmd.Hidden && cmd.Name != "shell" {
			names = append(names, cmd.Name)
		}
	}

	hist := repl.NewHistory(filepath.Join(filepath.Dir(rt.Config.Session.Dir), "history"))
	if err := hist.Load(); err != nil {
		rt.Logger.Debug("shell history not loaded", "error", err)
	}
	defer func() {
		if err := hist.Save(); err != nil {
			rt.Logger.Warn("shell history not saved", "error", err)
		}
	}()

	in := app.Reader
	if in == nil {
		in = os.Stdin
	}
	out := stdout(c)
	fmt.Fprintln(out, "DogPay shell. Type 'help' for commands, 'exit' to quit.")

	return repl.New(exec,
		repl.WithIO(in, out),
		repl.WithPrompt(rt.Prompt),
		repl.WithHistory(hist),
		repl.WithCompleter(repl.NewCompleter(names...)),
	).Run(c.Context)
}

// commandNames indexes the top-level commands by name and alias.
func commandNames(app *cli.App) map[string]bool {
	known := make(map[string]bool)
	for _, cmd := range app.Commands {
		for _, n := range cmd.Names() {
			known[n] = true
		}
	}
	return known
}

// firstCommand returns the first argument that is not a flag. Global flags
// taking a value are skipped together with it.
func firstCommand(args []string) string {
	valued := map[string]bool{
		"config": true, "c": true,
		"identity-url": true, "ledger-url": true,
		"output": true, "o": true,
		"log-level": true,
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return a
		}
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if valued[name] {
			i++
		}
	}
	return ""
}
