// Package tlsroots builds the trusted root pool for service transport:
// the system roots plus operator-supplied CA bundles.
package tlsroots
