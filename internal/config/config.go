package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file when Driver is sqlite.
	Path string `yaml:"path"`
}

// Identity modes.
const (
	AuthJWT       = "jwt"
	AuthTailscale = "tailscale"
	AuthDev       = "dev"
)

type AuthConfig struct {
	Mode      string `yaml:"mode"`
	JWTSecret string `yaml:"jwt_secret"`
	APIKey    string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// RedisConfig enables the shared rate limiter. Empty Addr selects the
// in-process limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
	// RateLimitPerMinute bounds refreshAi requests per user.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type CacheConfig struct {
	Freshness Duration `yaml:"freshness"`
	MemoryMB  int      `yaml:"memory_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, receives logs through a rotating writer.
	File   string `yaml:"file"`
	Stdout bool   `yaml:"stdout"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
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

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix MUSCLEMAP_ and underscore-separated paths:
//
//	MUSCLEMAP_SERVER_HOST, MUSCLEMAP_SERVER_PORT,
//	MUSCLEMAP_DB_DRIVER, MUSCLEMAP_DB_HOST, MUSCLEMAP_DB_PORT, MUSCLEMAP_DB_NAME,
//	MUSCLEMAP_DB_USER, MUSCLEMAP_DB_PASSWORD, MUSCLEMAP_DB_SSLMODE, MUSCLEMAP_DB_PATH,
//	MUSCLEMAP_AUTH_MODE, MUSCLEMAP_AUTH_JWT_SECRET, MUSCLEMAP_AUTH_API_KEY,
//	MUSCLEMAP_REDIS_ADDR, MUSCLEMAP_REDIS_PASSWORD,
//	MUSCLEMAP_AI_API_KEY, MUSCLEMAP_AI_MODEL, MUSCLEMAP_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverPostgres},
		Auth:     AuthConfig{Mode: AuthJWT},
		AI: AIConfig{
			Timeout:            Duration(30 * time.Second),
			RateLimitPerMinute: 6,
		},
		Cache: CacheConfig{Freshness: Duration(6 * time.Hour), MemoryMB: 16},
		Log:   LogConfig{Level: "info", Format: "text", Stdout: true},
	}
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"MUSCLEMAP_SERVER_HOST":     &cfg.Server.Host,
		"MUSCLEMAP_DB_DRIVER":       &cfg.Database.Driver,
		"MUSCLEMAP_DB_HOST":         &cfg.Database.Host,
		"MUSCLEMAP_DB_NAME":         &cfg.Database.Name,
		"MUSCLEMAP_DB_USER":         &cfg.Database.User,
		"MUSCLEMAP_DB_PASSWORD":     &cfg.Database.Password,
		"MUSCLEMAP_DB_SSLMODE":      &cfg.Database.SSLMode,
		"MUSCLEMAP_DB_PATH":         &cfg.Database.Path,
		"MUSCLEMAP_AUTH_MODE":       &cfg.Auth.Mode,
		"MUSCLEMAP_AUTH_JWT_SECRET": &cfg.Auth.JWTSecret,
		"MUSCLEMAP_AUTH_API_KEY":    &cfg.Auth.APIKey,
		"MUSCLEMAP_REDIS_ADDR":      &cfg.Redis.Addr,
		"MUSCLEMAP_REDIS_PASSWORD":  &cfg.Redis.Password,
		"MUSCLEMAP_AI_API_KEY":      &cfg.AI.APIKey,
		"MUSCLEMAP_AI_MODEL":        &cfg.AI.Model,
		"MUSCLEMAP_LOG_LEVEL":       &cfg.Log.Level,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MUSCLEMAP_SERVER_PORT": &cfg.Server.Port,
		"MUSCLEMAP_DB_PORT":     &cfg.Database.Port,
	}
	for env, dst := range ints {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
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
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in jwt mode")
		}
	case AuthTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("auth.mode tailscale requires tailscale.enabled")
		}
	case AuthDev:
	default:
		return fmt.Errorf("auth.mode must be jwt, tailscale or dev, got %q", c.Auth.Mode)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.AI.RateLimitPerMinute < 0 {
		return fmt.Errorf("ai.rate_limit_per_minute must not be negative")
	}
	if c.Cache.MemoryMB < 0 {
		return fmt.Errorf("cache.memory_mb must not be negative")
	}
	return nil
}
