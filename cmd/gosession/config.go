package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the CLI configuration. Values come from defaults, then the TOML
// file, then GOSESSION_* environment variables.
type Config struct {
	Provider   string           `toml:"provider" env:"PROVIDER"`
	Log        LogConfig        `toml:"log" envPrefix:"LOG_"`
	Redis      RedisConfig      `toml:"redis" envPrefix:"REDIS_"`
	Local      LocalConfig      `toml:"local" envPrefix:"LOCAL_"`
	REST       RESTConfig       `toml:"rest" envPrefix:"REST_"`
	Cache      CacheConfig      `toml:"cache" envPrefix:"CACHE_"`
	Controller ControllerConfig `toml:"controller" envPrefix:"CONTROLLER_"`
	Audit      AuditConfig      `toml:"audit" envPrefix:"AUDIT_"`
	Serve      ServeConfig      `toml:"serve" envPrefix:"SERVE_"`
	Telemetry  TelemetryConfig  `toml:"telemetry" envPrefix:"OTEL_"`
}

type LogConfig struct {
	Format string `toml:"format" env:"FORMAT"`
	Level  string `toml:"level" env:"LEVEL"`
}

type RedisConfig struct {
	Addr     string `toml:"addr" env:"ADDR"`
	Password string `toml:"password" env:"PASSWORD"`
	DB       int    `toml:"db" env:"DB"`
	Prefix   string `toml:"prefix" env:"PREFIX"`
}

type LocalConfig struct {
	TokenSecret       string        `toml:"token_secret" env:"TOKEN_SECRET"`
	TokenTTL          time.Duration `toml:"token_ttl" env:"TOKEN_TTL"`
	Issuer            string        `toml:"issuer" env:"ISSUER"`
	MinPasswordBytes  int           `toml:"min_password_bytes" env:"MIN_PASSWORD_BYTES"`
	MaxSignInFailures int           `toml:"max_sign_in_failures" env:"MAX_SIGN_IN_FAILURES"`
	SignInCooldown    time.Duration `toml:"sign_in_cooldown" env:"SIGN_IN_COOLDOWN"`
	MaxSignUpAttempts int           `toml:"max_sign_up_attempts" env:"MAX_SIGN_UP_ATTEMPTS"`
	SignUpCooldown    time.Duration `toml:"sign_up_cooldown" env:"SIGN_UP_COOLDOWN"`
}

type RESTConfig struct {
	Endpoint          string  `toml:"endpoint" env:"ENDPOINT"`
	APIKey            string  `toml:"api_key" env:"API_KEY"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `toml:"burst" env:"BURST"`
}

type CacheConfig struct {
	// Kind is memory, file or sqlite.
	Kind string `toml:"kind" env:"KIND"`
	Path string `toml:"path" env:"PATH"`
}

type ControllerConfig struct {
	QueueSize   int           `toml:"queue_size" env:"QUEUE_SIZE"`
	CallTimeout time.Duration `toml:"call_timeout" env:"CALL_TIMEOUT"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Format  string `toml:"format" env:"FORMAT"`
}

type ServeConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
}

// TelemetryConfig enables trace export. Tracing is off while Endpoint is
// empty.
type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" env:"ENDPOINT"`
	ServiceName string `toml:"service_name" env:"SERVICE_NAME"`
}

const envPrefix = "GOSESSION_"

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Provider: "local",
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "gs",
		},
		Local: LocalConfig{
			TokenTTL:          time.Hour,
			Issuer:            "gosession",
			MinPasswordBytes:  6,
			MaxSignInFailures: 5,
			SignInCooldown:    15 * time.Minute,
			MaxSignUpAttempts: 5,
			SignUpCooldown:    time.Hour,
		},
		REST: RESTConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Cache: CacheConfig{
			Kind: "file",
			Path: defaultCachePath(),
		},
		Controller: ControllerConfig{
			QueueSize:   16,
			CallTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Format: "json",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "gosession",
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gosession-token.json"
	}
	return dir + string(os.PathSeparator) + "gosession" + string(os.PathSeparator) + "token.json"
}

// LoadConfig builds the configuration. An empty path skips the file. A nil
// environ reads the process environment.
func LoadConfig(path string, environ map[string]string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Provider {
	case "local", "rest":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Cache.Kind {
	case "memory":
	case "file", "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache kind %s requires a path", c.Cache.Kind)
		}
	default:
		return fmt.Errorf("unknown cache kind %q", c.Cache.Kind)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Provider == "rest" && c.REST.APIKey == "" {
		return errors.New("rest provider requires an api key")
	}
	return nil
}
