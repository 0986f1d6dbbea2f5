// Package service provides the client-side services of DogPay.
//
// Services orchestrate domain models and define the narrow interfaces
// they need from transport and storage, so that the command layer can
// inject concrete implementations and tests can substitute fakes.
//
// This package contains:
//
//   - SessionStore: the single owner of the credential pair and user
//     profile, persisted across restarts
//   - Lifecycle: login, register and logout orchestration (cache reset,
//     session write, telemetry user hooks, navigation)
//   - DerivedCache: short-lived cache of query results
//   - Payments: cached balance/history queries, transfers and
//     confirmation tracking
package service
