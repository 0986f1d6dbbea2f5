// Package output renders command results as tables, JSON or YAML, and
// shows a spinner while the CLI waits on the network.
package output
