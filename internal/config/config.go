// Package config loads the project configuration from
// .pomgen/config.yaml, with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/telemetry"
)

// Defaults for the project layout on disk.
const (
	Dir      = ".pomgen"
	FileName = "config.yaml"
)

// Registry backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Environment overrides.
const (
	EnvLogLevel        = "POMGEN_LOG_LEVEL"
	EnvRegistryBackend = "POMGEN_REGISTRY_BACKEND"
	EnvOTLPEndpoint    = "POMGEN_OTLP_ENDPOINT"
)

// Config is the project configuration.
type Config struct {
	Layout       registry.Layout  `yaml:"layout"`
	Registry     RegistryConfig   `yaml:"registry"`
	Capabilities string           `yaml:"capabilities,omitempty"`
	Logging      LoggingConfig    `yaml:"logging"`
	Server       ServerConfig     `yaml:"server"`
	Telemetry    telemetry.Config `yaml:"telemetry"`
}

// RegistryConfig selects the registry store.
type RegistryConfig struct {
	Backend string `yaml:"backend"`
	// Path is relative to the project root unless absolute. Empty means
	// the backend's default file under .pomgen.
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures `pomgen serve`.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Layout:    registry.DefaultLayout(),
		Registry:  RegistryConfig{Backend: BackendFile},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Server:    ServerConfig{Address: "127.0.0.1:8787", ShutdownTimeout: 10 * time.Second},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Path returns the config file path under root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads path over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return cfg, nil
}

// Save writes cfg to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirPerm); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("failed to create %s", filepath.Dir(path)), err)
	}
	if err := fsutil.WriteFileAtomic(path, data, fsutil.FilePerm); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write config %s", path), err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvRegistryBackend)); v != "" {
		c.Registry.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvOTLPEndpoint)); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) *errors.PipelineError {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
	}
	if err := c.Layout.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid layout", err)
	}
	switch c.Registry.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return invalid("unknown registry backend %q", c.Registry.Backend).
			WithSuggestion("Use one of: file, sqlite, memory")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid logging level", err)
	}
	if _, err := log.ParseFormat(c.Logging.Format); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid logging format", err)
	}
	if c.Server.ShutdownTimeout < 0 {
		return invalid("server shutdown_timeout must not be negative")
	}
	if err := c.Telemetry.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid telemetry", err)
	}
	return nil
}

// RegistryPath returns the store location for root.
func (c *Config) RegistryPath(root string) string {
	p := c.Registry.Path
	if p == "" {
		switch c.Registry.Backend {
		case BackendSQLite:
			p = filepath.Join(Dir, "registry.db")
		default:
			p = filepath.Join(Dir, "registry.json")
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// OpenStore opens the configured registry store under root.
func (c *Config) OpenStore(root string) (registry.Store, error) {
	switch c.Registry.Backend {
	case BackendSQLite:
		return registry.OpenSQLiteStore(c.RegistryPath(root))
	case BackendMemory:
		return registry.NewMemoryStore(), nil
	default:
		return registry.NewFileStore(c.RegistryPath(root)), nil
	}
}

// TelemetryConfig returns the telemetry section stamped with the
// service identity.
func (c *Config) TelemetryConfig(serviceVersion string) telemetry.Config {
	tc := c.Telemetry
	tc.ServiceName = "pomgen"
	tc.ServiceVersion = serviceVersion
	return tc
}

// LogConfig converts the logging section. Invalid values were rejected
// by Validate and fall back to the defaults here.
func (c *Config) LogConfig() log.Config {
	cfg := log.DefaultConfig()
	if lvl, err := log.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = lvl
	}
	if f, err := log.ParseFormat(c.Logging.Format); err == nil {
		cfg.Format = f
	}
	return cfg
}
