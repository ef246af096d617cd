package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quotaguard/gateway/internal/ratelimit"
)

type Config struct {
	Server   ServerConfig    `json:"server"`
	Redis    RedisConfig     `json:"redis"`
	Postgres PostgresConfig  `json:"postgres"`
	Auth     AuthConfig      `json:"auth"`
	Profiles []ProfileConfig `json:"rate_limit_profiles"`
	Services []ServiceConfig `json:"services"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret        string `json:"jwt_secret"`
	TokenExpiryHours int    `json:"token_expiry_hours"`
}

// ProfileConfig is a rule profile declared in the config file. It is
// validated at load time; a bad profile fails startup instead of being
// silently tolerated.
type ProfileConfig struct {
	Name            string `json:"name"`
	Limit           int    `json:"limit"`
	WindowMs        int64  `json:"window_ms"`
	BlockDurationMs int64  `json:"block_duration_ms"`
}

func (p ProfileConfig) Rule() ratelimit.Rule {
	return ratelimit.Rule{
		Name:          p.Name,
		Limit:         p.Limit,
		Window:        time.Duration(p.WindowMs) * time.Millisecond,
		BlockDuration: time.Duration(p.BlockDurationMs) * time.Millisecond,
	}
}

// ServiceConfig maps a route prefix to upstream targets and the
// ordered rule profiles enforced on it.
type ServiceConfig struct {
	Path     string   `json:"path"`
	Targets  []string `json:"targets"`
	Strategy string   `json:"strategy"`
	Profiles []string `json:"profiles"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnv lets secrets come from the environment instead of the file
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Auth.TokenExpiryHours <= 0 {
		c.Auth.TokenExpiryHours = 24
	}
}

func (c *Config) validate() error {
	for _, profile := range c.Profiles {
		if err := profile.Rule().Validate(); err != nil {
			return fmt.Errorf("invalid rate limit profile: %w", err)
		}
	}

	for _, svc := range c.Services {
		if svc.Path == "" {
			return fmt.Errorf("service requires a path")
		}
		if len(svc.Targets) == 0 {
			return fmt.Errorf("service %s requires at least one target", svc.Path)
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set auth.jwt_secret or JWT_SECRET)")
	}

	return nil
}
