// Package config defines the dogpay-cli configuration (~/.dogpay/cli.yaml)
// and loads it through confloader: defaults, then the file, then DOGPAY_*
// environment variables, then command-line flags.
package config
