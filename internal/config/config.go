package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is the desktop browser user agent sent to the media CDN,
// which rejects unidentified clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultRapidAPIHost is the RapidAPI converter used to resolve post URLs.
const DefaultRapidAPIHost = "instagram-downloader-download-instagram-stories-videos4.p.rapidapi.com"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Resolver ResolverConfig `yaml:"resolver"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port           int           `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT"`
}

// ProxyConfig holds media proxy upstream configuration.
type ProxyConfig struct {
	UserAgent     string        `yaml:"user_agent" envconfig:"PROXY_USER_AGENT"`
	Referer       string        `yaml:"referer" envconfig:"PROXY_REFERER"`
	HeaderTimeout time.Duration `yaml:"header_timeout" envconfig:"PROXY_HEADER_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"PROXY_READ_TIMEOUT"` // stall detection
	MaxRedirects  int           `yaml:"max_redirects" envconfig:"PROXY_MAX_REDIRECTS"`
	CacheMaxAge   time.Duration `yaml:"cache_max_age" envconfig:"PROXY_CACHE_MAX_AGE"`
}

// ResolverConfig holds RapidAPI resolver configuration.
type ResolverConfig struct {
	APIKey        string        `yaml:"api_key" envconfig:"RAPIDAPI_KEY"`
	Host          string        `yaml:"host" envconfig:"RAPIDAPI_HOST"`
	BaseURL       string        `yaml:"base_url" envconfig:"RAPIDAPI_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"RESOLVER_TIMEOUT"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"RESOLVER_MAX_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"RESOLVER_RETRY_DELAY"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"RESOLVER_MAX_RETRY_DELAY"`
}

// ClientConfig holds configuration for the download client.
type ClientConfig struct {
	ServerURL  string        `yaml:"server_url" envconfig:"XINSTAN_SERVER_URL"`
	OutputDir  string        `yaml:"output_dir" envconfig:"XINSTAN_OUTPUT_DIR"`
	BulkPause  time.Duration `yaml:"bulk_pause" envconfig:"XINSTAN_BULK_PAUSE"`
	MaxHandles int           `yaml:"max_handles" envconfig:"XINSTAN_MAX_HANDLES"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"XINSTAN_TIMEOUT"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           9848,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			RequestTimeout: 5 * time.Minute,
		},
		Proxy: ProxyConfig{
			UserAgent:     DefaultUserAgent,
			Referer:       "https://www.instagram.com/",
			HeaderTimeout: 30 * time.Second,
			ReadTimeout:   60 * time.Second,
			MaxRedirects:  5,
			CacheMaxAge:   time.Hour,
		},
		Resolver: ResolverConfig{
			Host:          DefaultRapidAPIHost,
			BaseURL:       "https://" + DefaultRapidAPIHost,
			Timeout:       30 * time.Second,
			MaxAttempts:   3,
			RetryDelay:    time.Second,
			MaxRetryDelay: 10 * time.Second,
		},
		Client: ClientConfig{
			ServerURL:  "http://localhost:9848",
			OutputDir:  ".",
			BulkPause:  500 * time.Millisecond,
			MaxHandles: 64,
			Timeout:    10 * time.Minute,
		},
	}
}

// Load reads configuration from defaults, an optional .env file, the YAML file and
// environment variables. Environment variables override file values.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ValidateServer checks the values the proxy server needs.
// A missing RapidAPI key is not fatal: the resolve endpoint reports it per request.
func (c *Config) ValidateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Proxy.UserAgent == "" {
		return fmt.Errorf("PROXY_USER_AGENT is required")
	}
	if c.Proxy.MaxRedirects < 0 {
		return fmt.Errorf("PROXY_MAX_REDIRECTS cannot be negative")
	}
	if c.Resolver.BaseURL == "" {
		return fmt.Errorf("RAPIDAPI_BASE_URL is required")
	}
	if c.Resolver.MaxAttempts <= 0 {
		return fmt.Errorf("RESOLVER_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// ValidateClient checks the values the download client needs.
func (c *Config) ValidateClient() error {
	if c.Client.ServerURL == "" {
		return fmt.Errorf("XINSTAN_SERVER_URL is required")
	}
	if c.Client.OutputDir == "" {
		return fmt.Errorf("XINSTAN_OUTPUT_DIR is required")
	}
	if c.Client.BulkPause < 0 {
		return fmt.Errorf("XINSTAN_BULK_PAUSE cannot be negative")
	}
	if c.Client.MaxHandles <= 0 {
		return fmt.Errorf("XINSTAN_MAX_HANDLES must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
