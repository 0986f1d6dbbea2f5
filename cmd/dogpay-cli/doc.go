// Package main provides the entry point for dogpay-cli.
//
// The CLI is a terminal client for the DogPay identity and ledger
// services:
//
//   - Account access (register, login, logout, whoami)
//   - Ledger queries (balance, history) and transfers
//   - A polling balance monitor with optional Prometheus metrics (watch)
//   - Local configuration (config init, show, path)
//
// Usage:
//
//	dogpay-cli login --email ann@example.com
//	dogpay-cli -o json history
//	dogpay-cli transfer --to bob@example.com --amount 12.50 --wait
//	dogpay-cli shell
//
// Credentials are kept in a local session store and refreshed
// transparently when the identity service rejects an expired access token.
package main
