package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of configuration environment variables.
const DefaultEnvPrefix = "DOGPAY_"

// Loader layers configuration sources into one koanf tree:
// file, then environment, then overrides. Later sources win.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	envIgnore map[string]bool
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithEnvIgnore skips environment variables that share the prefix but
// are not configuration, such as DOGPAY_PASSWORD read by a flag.
func WithEnvIgnore(names ...string) Option {
	return func(l *Loader) {
		for _, n := range names {
			l.envIgnore[n] = true
		}
	}
}

// WithConfigFile sets the YAML file to load. Empty means no file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets dotted keys applied after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		envIgnore: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and unmarshals the result into target. Fields
// no source sets keep their current value, so target is passed pre-filled
// with defaults.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return err
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges prefixed environment variables. The first underscore
// after the prefix separates the section from the key, so
// DOGPAY_SESSION_SINGLE_FLIGHT maps to session.single_flight and
// DOGPAY_OUTPUT maps to output.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		if l.envIgnore[s] {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges a map of dotted keys.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	return nil
}

// GetString returns the string at a dotted key.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetBool returns the bool at a dotted key.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// Keys returns every loaded dotted key.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
