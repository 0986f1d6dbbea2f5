// Package command provides CLI command definitions for dogpay-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags
//   - runtime.go: lazily built session store, service clients and lifecycle
//   - auth.go: register, login, logout, whoami, session show|refresh
//   - payments.go: balance, history, transfer, watch
//   - config.go: config show|init|path
//   - shell.go: interactive shell dispatching back into the App
//   - version.go: build information
//
// Commands that need a session (balance, history, transfer, watch and
// whoami) fail with domain.ErrNotLoggedIn before any request is sent when
// nothing is stored locally.
package command
