// Package config loads the client configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rezonia/wsfe-client/internal/logger"
	"github.com/rezonia/wsfe-client/internal/model"
)

// DefaultPath is used when neither --config nor WSFE_CONFIG is set
const DefaultPath = "wsfe.yaml"

// Config mirrors the YAML file
type Config struct {
	Environment         string `yaml:"environment"`
	Timeout             string `yaml:"timeout"`
	ServicePeriodPolicy string `yaml:"service_period_policy"`
	TicketCacheFile     string `yaml:"ticket_cache_file"`

	Ticket struct {
		Service        string `yaml:"service"`
		GenerationSkew string `yaml:"generation_skew"`
		ExpirationSkew string `yaml:"expiration_skew"`
	} `yaml:"ticket"`

	// Endpoints override the authority URLs of the selected environment
	Endpoints struct {
		WSAA string `yaml:"wsaa"`
		WSFE string `yaml:"wsfe"`
	} `yaml:"endpoints"`

	Credentials struct {
		CAFile   string `yaml:"ca_file"`
		OCSP     bool   `yaml:"ocsp"`
		SoftFail bool   `yaml:"soft_fail"`
	} `yaml:"credentials"`

	Accounts []AccountConfig `yaml:"accounts"`

	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`

	Log logger.LogConfig `yaml:"log"`
}

// AccountConfig locates one account's key material
type AccountConfig struct {
	ID          string `yaml:"id"`
	CUIT        string `yaml:"cuit"`
	Environment string `yaml:"environment"`
	KeyFile     string `yaml:"key_file"`
	CertFile    string `yaml:"cert_file"`
}

// ParsedConfig contains parsed values for easier use
type ParsedConfig struct {
	Config
	Env            model.Environment
	RequestTimeout time.Duration
	GenerationSkew time.Duration
	ExpirationSkew time.Duration
	PeriodPolicy   model.ServicePeriodPolicy
}

// Default returns the configuration used when no file exists
func Default() Config {
	var cfg Config
	cfg.Environment = string(model.EnvironmentTest)
	cfg.Timeout = "30s"
	cfg.ServicePeriodPolicy = "strict"
	cfg.Ticket.Service = "wsfe"
	cfg.Ticket.GenerationSkew = "10m"
	cfg.Ticket.ExpirationSkew = "10m"
	cfg.Server.Port = 8080
	cfg.Server.Mode = "release"
	cfg.Log = logger.DefaultConfig()
	return cfg
}

// ResolvePath picks the config file: flag value, then WSFE_CONFIG, then DefaultPath
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	return getEnv("WSFE_CONFIG", DefaultPath)
}

// Load reads path, applies environment overrides and validates. A missing
// file is not an error when path is the default one.
func Load(path string) (*ParsedConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.resolveRelative(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()

	parsed, err := cfg.Parse()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return parsed, nil
}

// Parse converts string fields and validates the result
func (c Config) Parse() (*ParsedConfig, error) {
	env, err := model.ParseEnvironment(c.Environment)
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("timeout", c.Timeout)
	if err != nil {
		return nil, err
	}
	genSkew, err := parseDuration("ticket.generation_skew", c.Ticket.GenerationSkew)
	if err != nil {
		return nil, err
	}
	expSkew, err := parseDuration("ticket.expiration_skew", c.Ticket.ExpirationSkew)
	if err != nil {
		return nil, err
	}

	policy, err := model.ParseServicePeriodPolicy(c.ServicePeriodPolicy)
	if err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &ParsedConfig{
		Config:         c,
		Env:            env,
		RequestTimeout: timeout,
		GenerationSkew: genSkew,
		ExpirationSkew: expSkew,
		PeriodPolicy:   policy,
	}, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Ticket.Service == "" {
		return fmt.Errorf("ticket.service is required")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.KeyFile == "" || a.CertFile == "" {
			return fmt.Errorf("account %q: key_file and cert_file are required", a.ID)
		}
		if a.Environment != "" {
			if _, err := model.ParseEnvironment(a.Environment); err != nil {
				return fmt.Errorf("account %q: %w", a.ID, err)
			}
		}
	}
	return nil
}

// Account returns the account entry with id
func (c *ParsedConfig) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// AccountEnvironment is the account's environment, falling back to the global one
func (c *ParsedConfig) AccountEnvironment(a AccountConfig) model.Environment {
	if env, err := model.ParseEnvironment(a.Environment); err == nil && a.Environment != "" {
		return env
	}
	return c.Env
}

// LoggerConfig returns the logging section
func (c *ParsedConfig) LoggerConfig() logger.LogConfig {
	return c.Log
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("WSFE_ENV", c.Environment)
	c.Timeout = getEnv("WSFE_TIMEOUT", c.Timeout)
	c.ServicePeriodPolicy = getEnv("WSFE_SERVICE_PERIOD_POLICY", c.ServicePeriodPolicy)
	c.TicketCacheFile = getEnv("WSFE_TICKET_CACHE", c.TicketCacheFile)
	c.Endpoints.WSAA = getEnv("WSFE_WSAA_URL", c.Endpoints.WSAA)
	c.Endpoints.WSFE = getEnv("WSFE_WSFE_URL", c.Endpoints.WSFE)
	c.Credentials.CAFile = getEnv("WSFE_CA_FILE", c.Credentials.CAFile)
	c.Server.Mode = getEnv("GIN_MODE", c.Server.Mode)
	if port, err := strconv.Atoi(getEnv("WSFE_PORT", "")); err == nil {
		c.Server.Port = port
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)
}

// resolveRelative makes file paths relative to the config file's directory
func (c *Config) resolveRelative(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Accounts {
		c.Accounts[i].KeyFile = resolve(c.Accounts[i].KeyFile)
		c.Accounts[i].CertFile = resolve(c.Accounts[i].CertFile)
	}
	c.Credentials.CAFile = resolve(c.Credentials.CAFile)
	c.TicketCacheFile = resolve(c.TicketCacheFile)
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
