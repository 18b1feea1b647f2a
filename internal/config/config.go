package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// Config holds all application configuration
type Config struct {
	// HTTP settings
	Timeout   time.Duration
	UserAgent string

	// Body settings
	MaxBodyBytes int64
	ChunkSize    int

	// Logging settings
	LogDir string
}

// fileConfig mirrors Config for TOML decoding; durations are written as strings like "10s"
type fileConfig struct {
	Timeout      string `toml:"timeout"`
	UserAgent    string `toml:"user_agent"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	ChunkSize    int    `toml:"chunk_size"`
	LogDir       string `toml:"log_dir"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		UserAgent:    "metafetch/" + Version,
		MaxBodyBytes: 1 << 20,
		ChunkSize:    32 << 10,
		LogDir:       "logs",
	}
}

// LoadFromFile overlays the values present in a TOML file
func (c *Config) LoadFromFile(path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", fc.Timeout, err)
		}
		c.Timeout = d
	}
	if meta.IsDefined("user_agent") {
		c.UserAgent = fc.UserAgent
	}
	if meta.IsDefined("max_body_bytes") {
		c.MaxBodyBytes = fc.MaxBodyBytes
	}
	if meta.IsDefined("chunk_size") {
		c.ChunkSize = fc.ChunkSize
	}
	if meta.IsDefined("log_dir") {
		c.LogDir = fc.LogDir
	}
	return nil
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if timeout := os.Getenv("METAFETCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Timeout = d
		} else if s, err := strconv.Atoi(timeout); err == nil {
			c.Timeout = time.Duration(s) * time.Second
		}
	}

	if userAgent := os.Getenv("METAFETCH_USER_AGENT"); userAgent != "" {
		c.UserAgent = userAgent
	}

	if maxBody := os.Getenv("METAFETCH_MAX_BODY"); maxBody != "" {
		if n, err := strconv.ParseInt(maxBody, 10, 64); err == nil {
			c.MaxBodyBytes = n
		}
	}

	if chunkSize := os.Getenv("METAFETCH_CHUNK_SIZE"); chunkSize != "" {
		if n, err := strconv.Atoi(chunkSize); err == nil {
			c.ChunkSize = n
		}
	}

	if logDir := os.Getenv("METAFETCH_LOG_DIR"); logDir != "" {
		c.LogDir = logDir
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %s", c.Timeout)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got: %d", c.MaxBodyBytes)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got: %d", c.ChunkSize)
	}

	return nil
}
