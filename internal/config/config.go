package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/meltforce/repcycle/internal/cycle"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Account   AccountConfig   `yaml:"account"`
	Training  TrainingConfig  `yaml:"training"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the profile store: sqlite, postgres or redis.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// AccountConfig points at the external token service. Empty BaseURL means
// guest mode only.
type AccountConfig struct {
	BaseURL     string `yaml:"base_url"`
	ProfilePath string `yaml:"profile_path"`
}

type TrainingConfig struct {
	CompletionPolicy string `yaml:"completion_policy"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Policy returns the parsed completion policy.
func (t TrainingConfig) Policy() cycle.Policy {
	p, err := cycle.ParsePolicy(t.CompletionPolicy)
	if err != nil {
		return cycle.PolicyArmExempt
	}
	return p
}

// Load reads config from a YAML file, then a .env file in the working
// directory if present, then applies environment variable overrides.
// Env vars use the prefix REPCYCLE_ and underscore-separated paths:
//
//	REPCYCLE_SERVER_HOST, REPCYCLE_SERVER_PORT,
//	REPCYCLE_STORAGE_DRIVER, REPCYCLE_STORAGE_SQLITE_PATH,
//	REPCYCLE_DB_HOST, REPCYCLE_DB_PORT, REPCYCLE_DB_NAME,
//	REPCYCLE_DB_USER, REPCYCLE_DB_PASSWORD, REPCYCLE_DB_SSLMODE,
//	REPCYCLE_REDIS_ADDR, REPCYCLE_REDIS_PASSWORD, REPCYCLE_REDIS_DB,
//	REPCYCLE_AUTH_API_KEY,
//	REPCYCLE_TAILSCALE_ENABLED, REPCYCLE_TAILSCALE_HOSTNAME,
//	REPCYCLE_ACCOUNT_BASE_URL, REPCYCLE_TRAINING_COMPLETION_POLICY
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadLocal reads a config for the guest CLI. Only the sqlite path, the
// account and the training sections are used, so server, auth and remote
// storage settings are not required.
func LoadLocal(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateTraining(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/repcycle.db"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "repcycle"
	}
	if cfg.Account.ProfilePath == "" {
		cfg.Account.ProfilePath = "/profile"
	}
	if cfg.Training.CompletionPolicy == "" {
		cfg.Training.CompletionPolicy = cycle.PolicyArmExempt.Name
	}
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("REPCYCLE_SERVER_HOST", &cfg.Server.Host)
	num("REPCYCLE_SERVER_PORT", &cfg.Server.Port)
	str("REPCYCLE_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("REPCYCLE_STORAGE_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("REPCYCLE_DB_HOST", &cfg.Database.Host)
	num("REPCYCLE_DB_PORT", &cfg.Database.Port)
	str("REPCYCLE_DB_NAME", &cfg.Database.Name)
	str("REPCYCLE_DB_USER", &cfg.Database.User)
	str("REPCYCLE_DB_PASSWORD", &cfg.Database.Password)
	str("REPCYCLE_DB_SSLMODE", &cfg.Database.SSLMode)
	str("REPCYCLE_REDIS_ADDR", &cfg.Redis.Addr)
	str("REPCYCLE_REDIS_PASSWORD", &cfg.Redis.Password)
	num("REPCYCLE_REDIS_DB", &cfg.Redis.DB)
	str("REPCYCLE_AUTH_API_KEY", &cfg.Auth.APIKey)
	str("REPCYCLE_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	str("REPCYCLE_ACCOUNT_BASE_URL", &cfg.Account.BaseURL)
	str("REPCYCLE_TRAINING_COMPLETION_POLICY", &cfg.Training.CompletionPolicy)

	if v := os.Getenv("REPCYCLE_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, redis", c.Storage.Driver)
	}

	return c.validateTraining()
}

func (c *Config) validateTraining() error {
	if _, err := cycle.ParsePolicy(c.Training.CompletionPolicy); err != nil {
		return fmt.Errorf("training.completion_policy: %w", err)
	}
	return nil
}
