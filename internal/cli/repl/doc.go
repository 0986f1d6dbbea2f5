// Package repl runs the interactive dogpay shell. Each line is split into
// arguments and dispatched to the command tree; the prompt shows whether
// a session is active.
package repl
