// Package connection provides the authenticated gateway to the DogPay
// identity and ledger services.
//
//   - interceptor.go: Call and the ordered request/response interceptor Chain
//   - injector.go: bearer credential and request ID stamping
//   - refresh.go: RefreshCoordinator, recovery from an expired access token
//   - http.go: per-service HTTPClient, transport construction, error mapping
//   - identity.go, ledger.go: typed service operations
//   - manager.go: wiring of both service clients around one session store
//
// Every request to either service passes through the same chain:
// request ID, credential injector, transport, metrics, refresh
// coordinator. The refresh exchange itself bypasses the chain.
package connection
