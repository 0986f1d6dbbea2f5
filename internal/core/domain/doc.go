// Package domain defines the core domain models for DogPay.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Session: credential pair plus user profile, owned by the session store
//   - Ledger: balance, transaction and transfer shapes
//   - Errors: the client error taxonomy (validation, authorization,
//     service, network)
//   - Request IDs: ULID based identifiers for outbound requests
package domain
