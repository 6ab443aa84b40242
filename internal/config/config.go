package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rpggio/deskview/internal/identity"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DESKVIEW_"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Backend   BackendConfig   `yaml:"backend" envPrefix:"BACKEND_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Catalog   CatalogConfig   `yaml:"catalog" envPrefix:"CATALOG_"`
	Screens   ScreensConfig   `yaml:"screens" envPrefix:"SCREENS_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Stdio     StdioConfig     `yaml:"stdio" envPrefix:"STDIO_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

// TransportConfig selects how the server is reached: "http" serves the REST
// API and MCP over HTTP, "stdio" serves MCP on stdin/stdout.
type TransportConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Path, when set, writes logs to a size-capped file instead.
	Path string `yaml:"path" env:"PATH"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Token   string        `yaml:"token" env:"TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type AuthConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer   string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	JWTAudience string `yaml:"jwt_audience" env:"JWT_AUDIENCE"`
}

type CatalogConfig struct {
	// Path replaces the embedded screen catalog.
	Path string `yaml:"path" env:"PATH"`
}

type ScreensConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	PageSize      int           `yaml:"page_size" env:"PAGE_SIZE"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure     bool   `yaml:"insecure" env:"INSECURE"`
}

// StdioConfig is the local session used in stdio mode.
type StdioConfig struct {
	TenantID string `yaml:"tenant_id" env:"TENANT_ID"`
	UserID   string `yaml:"user_id" env:"USER_ID"`
	Role     string `yaml:"role" env:"ROLE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Path: "deskview.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:     true,
			JWTAudience: "deskview",
		},
		Screens: ScreensConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
			PageSize:      25,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "deskview",
		},
		Stdio: StdioConfig{
			TenantID: "local",
			UserID:   "local",
			Role:     "admin",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q: want http or stdio", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend base_url is required")
	}
	if !identity.Role(c.Stdio.Role).Known() {
		return fmt.Errorf("invalid stdio role %q", c.Stdio.Role)
	}
	if c.Screens.PageSize < 0 {
		return fmt.Errorf("invalid screens page_size %d", c.Screens.PageSize)
	}
	return nil
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
