package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/dogpay-go/internal/infra/confloader"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// DefaultDir returns ~/.dogpay.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".dogpay")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "cli.yaml")
}

// Default returns the built-in configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Identity: ServiceConfig{URL: "http://localhost:8001"},
		Ledger:   ServiceConfig{URL: "http://localhost:8002"},
		HTTP:     HTTPConfig{Timeout: 30 * time.Second},
		Session: SessionConfig{
			Dir:          filepath.Join(DefaultDir(), "session"),
			Key:          "dogpay-auth",
			SingleFlight: true,
			GCInterval:   10 * time.Minute,
		},
		Cache: CacheConfig{
			BalanceTTL: 10 * time.Second,
			HistoryTTL: 5 * time.Second,
		},
		Transfer: TransferConfig{
			ConfirmInterval: 1500 * time.Millisecond,
			ConfirmTimeout:  30 * time.Second,
		},
		Log:    LogConfig{Level: "warn", Format: "text"},
		Output: OutputTable,
	}
}

// flagEnvVars are read by command flags, not by the config tree.
var flagEnvVars = []string{"DOGPAY_CONFIG", "DOGPAY_PASSWORD"}

// Load loads CLI configuration from path. A missing file is not an error;
// the defaults and environment still apply.
func Load(path string) (*CLIConfig, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with dotted-key overrides (flags) applied last.
func LoadWithOverrides(path string, overrides map[string]any) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{
		confloader.WithOverrides(overrides),
		confloader.WithEnvIgnore(flagEnvVars...),
	}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, readable only by the owner.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}

// Validate checks URLs, durations and enumerations.
func (c *CLIConfig) Validate() error {
	for name, raw := range map[string]string{"identity.url": c.Identity.URL, "ledger.url": c.Ledger.URL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config: %s must be an http(s) URL, got %q", name, raw)
		}
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"http.timeout", c.HTTP.Timeout},
		{"cache.balance_ttl", c.Cache.BalanceTTL},
		{"cache.history_ttl", c.Cache.HistoryTTL},
		{"transfer.confirm_interval", c.Transfer.ConfirmInterval},
		{"transfer.confirm_timeout", c.Transfer.ConfirmTimeout},
	}
	for _, d := range durations {
		if d.d < 0 || (d.d == 0 && d.name != "cache.balance_ttl" && d.name != "cache.history_ttl") {
			return fmt.Errorf("config: %s must be positive, got %v", d.name, d.d)
		}
	}
	switch c.Output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("config: output must be table, json or yaml, got %q", c.Output)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Session.Dir == "" || c.Session.Key == "" {
		return errors.New("config: session.dir and session.key are required")
	}
	if c.Session.GCInterval < 0 {
		return fmt.Errorf("config: session.gc_interval must not be negative, got %s", c.Session.GCInterval)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *CLIConfig) Redacted() *CLIConfig {
	out := *c
	if out.Session.Passphrase != "" {
		out.Session.Passphrase = "********"
	}
	return &out
}
