// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/dogpay-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
