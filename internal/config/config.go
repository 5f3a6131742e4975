// Package config loads galley configuration from a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/galley/internal/core/access"
	coredispatch "github.com/example/galley/internal/core/dispatch"
)

// Store drivers
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "galley.yaml"

// Config represents the galley configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Operator OperatorConfig `yaml:"operator"`
	Units    UnitsConfig    `yaml:"units"`

	// Path is the file the config was read from, empty when only defaults applied.
	Path string `yaml:"-"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// CORSOrigins lists the portal origins allowed to call the API. Empty allows all.
	CORSOrigins []string `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"` // Empty means ~/.galley/galley.db
	DatabaseURL string `yaml:"database_url"`
	// MaxRetries bounds Postgres connection attempts at startup.
	MaxRetries int `yaml:"max_retries"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DispatchConfig struct {
	Reconciliation string `yaml:"reconciliation"` // lenient | strict
	UpdateRetries  int    `yaml:"update_retries"`
}

type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	Region   string `yaml:"region"`
}

type OperatorConfig struct {
	Name     string   `yaml:"name"`
	Role     string   `yaml:"role"`
	Branches []string `yaml:"branches"`
}

// UnitsConfig overlays the built-in unit table.
type UnitsConfig struct {
	Default  string            `yaml:"default"`
	Exact    map[string]string `yaml:"exact"`
	Patterns []UnitPattern     `yaml:"patterns"`
}

type UnitPattern struct {
	Contains string `yaml:"contains"`
	Unit     string `yaml:"unit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Store:    StoreConfig{Driver: StoreSQLite, MaxRetries: 5},
		Dispatch: DispatchConfig{Reconciliation: string(coredispatch.PolicyLenient), UpdateRetries: 3},
		Archive:  ArchiveConfig{S3Prefix: "archive/"},
		Operator: OperatorConfig{Role: string(access.RoleOperations)},
		Units:    UnitsConfig{Default: coredispatch.DefaultUnit},
	}
}

// Load resolves the config file, applies .env and environment overrides, and validates.
// Resolution order: explicit path, $GALLEY_CONFIG, ./galley.yaml.
// Only an explicitly named file must exist.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("GALLEY_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// applyEnv overlays environment variables. getenv is injected for tests.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Addr, "GALLEY_ADDR")
	set(&c.Store.Driver, "GALLEY_STORE")
	set(&c.Store.SQLitePath, "GALLEY_SQLITE_PATH")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Auth.JWTSecret, "JWT_SECRET")
	set(&c.Dispatch.Reconciliation, "GALLEY_RECONCILIATION")
	set(&c.Archive.S3Bucket, "GALLEY_ARCHIVE_BUCKET")
	set(&c.Archive.Region, "AWS_REGION")

	if v := getenv("GALLEY_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if v := getenv("GALLEY_UPDATE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.UpdateRetries = n
		}
	}
}

// Validate rejects unknown drivers, policies and roles.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url (or DATABASE_URL) is required for the postgres store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	if !coredispatch.ReconciliationPolicy(c.Dispatch.Reconciliation).IsValid() {
		problems = append(problems, fmt.Sprintf("unknown reconciliation policy %q", c.Dispatch.Reconciliation))
	}
	if c.Dispatch.UpdateRetries < 1 {
		problems = append(problems, "dispatch.update_retries must be at least 1")
	}
	if c.Operator.Role != "" {
		if _, ok := access.ParseRole(c.Operator.Role); !ok {
			problems = append(problems, fmt.Sprintf("unknown operator role %q", c.Operator.Role))
		}
	}
	for _, p := range c.Units.Patterns {
		if p.Contains == "" || p.Unit == "" {
			problems = append(problems, "units.patterns entries need both contains and unit")
			break
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the configured reconciliation policy.
func (c *Config) Policy() coredispatch.ReconciliationPolicy {
	return coredispatch.ReconciliationPolicy(c.Dispatch.Reconciliation)
}

// UnitRules returns the built-in unit table overlaid with configured overrides.
func (c *Config) UnitRules() coredispatch.UnitRules {
	extra := coredispatch.UnitRules{Exact: c.Units.Exact, Default: c.Units.Default}
	for _, p := range c.Units.Patterns {
		extra.Patterns = append(extra.Patterns, coredispatch.UnitPattern{Contains: p.Contains, Unit: p.Unit})
	}
	return coredispatch.DefaultUnitRules().Merge(extra)
}
