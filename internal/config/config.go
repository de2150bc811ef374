package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/keyring-mcp/internal/keychain"
)

const (
	DefaultHost     = "localhost"
	DefaultPort     = 3000
	DefaultEndpoint = "/mcp"

	BackendSystem = "system"
	BackendMemory = "memory"
)

// Config holds keyring-mcp settings loaded from ~/.keyring-mcp/config.yaml
// and overridden by the environment.
type Config struct {
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	Endpoint     string  `yaml:"endpoint"`
	Backend      string  `yaml:"backend"`
	Scope        string  `yaml:"scope"`
	JSONResponse *bool   `yaml:"json_response"`
	AuditLog     string  `yaml:"audit_log"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst    int     `yaml:"rate_burst"`
	LogLevel     string  `yaml:"log_level"`
}

// Default returns a Config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns the default config file path: ~/.keyring-mcp/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".keyring-mcp", "config.yaml")
}

// Load reads a YAML config file from path and fills in defaults. If the
// file does not exist, or is empty or all comments, the defaults are
// returned with no error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Backend == "" {
		c.Backend = BackendSystem
	}
	if c.Scope == "" {
		c.Scope = keychain.DefaultScope
	}
	if c.JSONResponse == nil {
		on := true
		c.JSONResponse = &on
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit)
		if c.RateBurst < 1 {
			c.RateBurst = 1
		}
	}
	c.AuditLog = expandHome(c.AuditLog)
}

// ApplyEnv overlays PORT, HOST, KEYRING_MCP_BACKEND and KEYRING_MCP_SCOPE.
// getenv is os.Getenv outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := getenv("KEYRING_MCP_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := getenv("KEYRING_MCP_SCOPE"); v != "" {
		c.Scope = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("endpoint %q must start with /", c.Endpoint)
	}
	switch c.Backend {
	case BackendSystem, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSystem, BackendMemory)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
