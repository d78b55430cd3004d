package common

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	IMAP   IMAPConfig `yaml:"imap"`
	Output string     `yaml:"output"`
	Days   int        `yaml:"days"`
}

// IMAPConfig holds mail-server-related configuration
type IMAPConfig struct {
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
	Email  string `yaml:"email"`
	Folder string `yaml:"folder"`
	// Password is never read from the config file; it comes from the OS
	// keyring or the IMAP_PASSWORD environment variable.
	Password string `yaml:"-"`
}

// Addr returns the host:port dial address for the IMAP server.
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// LoadConfig reads the YAML config file, then applies environment overrides
// and defaults. Environment values win over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewConfigError("reading config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, NewConfigError("parsing config file", err)
		}
	}

	cfg.IMAP.Server = getEnv("IMAP_SERVER", cfg.IMAP.Server)
	cfg.IMAP.Port = getEnvAsInt("IMAP_PORT", cfg.IMAP.Port)
	cfg.IMAP.Email = getEnv("IMAP_EMAIL", cfg.IMAP.Email)
	cfg.IMAP.Folder = getEnv("IMAP_FOLDER", cfg.IMAP.Folder)
	cfg.IMAP.Password = getEnv("IMAP_PASSWORD", "")
	cfg.Output = getEnv("OUTPUT_PATH", cfg.Output)
	cfg.Days = getEnvAsInt("LOOKBACK_DAYS", cfg.Days)

	if cfg.IMAP.Port == 0 {
		cfg.IMAP.Port = 993
	}
	if cfg.IMAP.Folder == "" {
		cfg.IMAP.Folder = "Apple Receipts"
	}
	if cfg.Days == 0 {
		cfg.Days = 90
	}
	if cfg.Output == "" {
		cfg.Output = "receipts.ofx"
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.IMAP.Server == "" {
		return NewConfigError("imap.server is required", nil)
	}
	if c.IMAP.Email == "" {
		return NewConfigError("imap.email is required", nil)
	}
	if c.Days < 0 {
		return NewConfigError("days must not be negative", nil)
	}
	return nil
}
