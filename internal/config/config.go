package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Transport  TransportConfig  `yaml:"transport"`
	Store      StoreConfig      `yaml:"store"`
	Repository RepositoryConfig `yaml:"repository"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig selects how the MCP server is exposed: "stdio" or "http".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend      string        `yaml:"backend"` // sqlite, redis or memory
	Path         string        `yaml:"path"`
	RedisURL     string        `yaml:"redis_url"`
	Key          string        `yaml:"key"`
	Channel      string        `yaml:"channel"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type RepositoryConfig struct {
	MaxPrompts int           `yaml:"max_prompts"`
	OpTimeout  time.Duration `yaml:"op_timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []APIKey `yaml:"keys"`
}

// APIKey maps the SHA-256 hex digest of a bearer token to a client name.
type APIKey struct {
	Client  string `yaml:"client"`
	KeyHash string `yaml:"key_hash"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

const envPrefix = "PROMPTKEEPER_"

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Store: StoreConfig{
			Backend:      "sqlite",
			Path:         "promptkeeper.db",
			RedisURL:     "redis://localhost:6379/0",
			Key:          "prompts",
			Channel:      "promptkeeper:changes",
			PollInterval: 500 * time.Millisecond,
		},
		Repository: RepositoryConfig{
			MaxPrompts: 500,
			OpTimeout:  5 * time.Second,
			MaxRetries: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv(envPrefix + "SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if mode := os.Getenv(envPrefix + "TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}

	if backend := os.Getenv(envPrefix + "STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}
	if path := os.Getenv(envPrefix + "STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if url := os.Getenv(envPrefix + "REDIS_URL"); url != "" {
		cfg.Store.RedisURL = url
	}
	if key := os.Getenv(envPrefix + "STORE_KEY"); key != "" {
		cfg.Store.Key = key
	}
	if channel := os.Getenv(envPrefix + "STORE_CHANNEL"); channel != "" {
		cfg.Store.Channel = channel
	}
	if err := envDuration("STORE_POLL_INTERVAL", &cfg.Store.PollInterval); err != nil {
		return err
	}

	if err := envInt("MAX_PROMPTS", &cfg.Repository.MaxPrompts); err != nil {
		return err
	}
	if err := envDuration("OP_TIMEOUT", &cfg.Repository.OpTimeout); err != nil {
		return err
	}
	if err := envInt("MAX_RETRIES", &cfg.Repository.MaxRetries); err != nil {
		return err
	}

	if enabled := os.Getenv(envPrefix + "AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid %sAUTH_ENABLED: %w", envPrefix, err)
		}
		cfg.Auth.Enabled = v
	}
	if token := os.Getenv(envPrefix + "AUTH_TOKEN"); token != "" {
		cfg.Auth.Keys = append(cfg.Auth.Keys, APIKey{Client: "env", KeyHash: HashToken(token)})
	}

	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv(envPrefix + "LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
	return nil
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = v
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = v
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid store backend %q", c.Store.Backend)
	}
	if c.Store.Key == "" {
		return fmt.Errorf("store key must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Repository.MaxPrompts <= 0 {
		return fmt.Errorf("max_prompts must be positive")
	}
	if c.Repository.OpTimeout <= 0 {
		return fmt.Errorf("op_timeout must be positive")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth enabled but no keys configured")
	}
	return nil
}

// HashToken returns the hex SHA-256 digest stored for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
