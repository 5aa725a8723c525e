package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.seedwright/seedwright.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Target  TargetConfig  `yaml:"target"`
	Seed    SeedConfig    `yaml:"seed,omitempty"`
	Secrets SecretsConfig `yaml:"secrets,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
}

// TargetConfig defines the database being seeded.
type TargetConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	Schema         string `yaml:"schema,omitempty"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	SSL            bool   `yaml:"ssl,omitempty"`
	MaxConnections int    `yaml:"max_connections,omitempty"` // default 10, max 50
}

// SeedConfig defines workflow generation and execution defaults.
type SeedConfig struct {
	Mode         string `yaml:"mode,omitempty"`       // strict, permissive, auto_fix
	OnFailure    string `yaml:"on_failure,omitempty"` // fail_fast, graceful_degradation, best_effort
	UserStrategy string `yaml:"user_strategy,omitempty"` // comprehensive, minimal, adaptive
	Rollback     bool   `yaml:"rollback,omitempty"`
	BatchSize    int    `yaml:"batch_size,omitempty"` // junction insert batch size, default 100
	Parallelism  int    `yaml:"parallelism,omitempty"` // introspection fan-out, default 4
}

// SecretsConfig tunes the external credential resolvers.
type SecretsConfig struct {
	VaultMount string `yaml:"vault_mount,omitempty"` // prefix for bare ${VAULT:...} paths
	AWSRegion  string `yaml:"aws_region,omitempty"`  // region for ${AWS_SM:...} lookups
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.seedwright/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Load reads and parses the config file from the given path. A .env file in
// the working directory is loaded first so ${ENV:...} references can resolve
// from it.
func Load(path string) (*Config, error) {
	// Missing .env is fine; existing env vars win over file values.
	_ = godotenv.Load()

	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Target.Port == 0 {
		c.Target.Port = 5432
	}
	if c.Target.Schema == "" {
		c.Target.Schema = "public"
	}
	if c.Target.MaxConnections == 0 {
		c.Target.MaxConnections = 10
	}
	if c.Target.MaxConnections > 50 {
		c.Target.MaxConnections = 50
	}
	if c.Seed.Mode == "" {
		c.Seed.Mode = "auto_fix"
	}
	if c.Seed.OnFailure == "" {
		c.Seed.OnFailure = "graceful_degradation"
	}
	if c.Seed.UserStrategy == "" {
		c.Seed.UserStrategy = "adaptive"
	}
	if c.Seed.BatchSize == 0 {
		c.Seed.BatchSize = 100
	}
	if c.Seed.Parallelism == 0 {
		c.Seed.Parallelism = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.seedwright/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Target.Password, err = c.ResolveValue(c.Target.Password)
	if err != nil {
		return fmt.Errorf("target password: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value using the
// config's secrets settings.
func (c *Config) ResolveValue(val string) (string, error) {
	return resolveValue(val, c.Secrets)
}

// ResolveValue resolves secret references in a string value with default
// secrets settings.
func ResolveValue(val string) (string, error) {
	return resolveValue(val, SecretsConfig{})
}

func resolveValue(val string, secrets SecretsConfig) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref, secrets)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref, secrets)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
