package config

import "time"

// CLIConfig is the configuration for dogpay-cli.
type CLIConfig struct {
	Identity  ServiceConfig   `koanf:"identity" yaml:"identity"`
	Ledger    ServiceConfig   `koanf:"ledger" yaml:"ledger"`
	HTTP      HTTPConfig      `koanf:"http" yaml:"http"`
	Session   SessionConfig   `koanf:"session" yaml:"session"`
	Cache     CacheConfig     `koanf:"cache" yaml:"cache"`
	Transfer  TransferConfig  `koanf:"transfer" yaml:"transfer"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`

	// Output is the default output format: table, json or yaml.
	Output string `koanf:"output" yaml:"output"`
}

// ServiceConfig locates one backend service.
type ServiceConfig struct {
	URL string `koanf:"url" yaml:"url"`
}

// HTTPConfig tunes the shared transport.
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	CAFile  string        `koanf:"ca_file" yaml:"ca_file,omitempty"`
}

// SessionConfig controls where and how the session is persisted.
type SessionConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
	Key string `koanf:"key" yaml:"key"`

	// Passphrase enables encryption at rest. Prefer DOGPAY_SESSION_PASSPHRASE
	// over writing it to the file.
	Passphrase string `koanf:"passphrase" yaml:"passphrase,omitempty"`

	// SingleFlight makes concurrent 401s share one refresh exchange.
	SingleFlight bool `koanf:"single_flight" yaml:"single_flight"`

	// GCInterval is how often long-running commands (shell, watch)
	// reclaim value log space left by token rotation. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
}

// CacheConfig sets how long ledger query results are reused.
type CacheConfig struct {
	BalanceTTL time.Duration `koanf:"balance_ttl" yaml:"balance_ttl"`
	HistoryTTL time.Duration `koanf:"history_ttl" yaml:"history_ttl"`
}

// TransferConfig controls transfer confirmation polling.
type TransferConfig struct {
	ConfirmInterval time.Duration `koanf:"confirm_interval" yaml:"confirm_interval"`
	ConfirmTimeout  time.Duration `koanf:"confirm_timeout" yaml:"confirm_timeout"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
}
