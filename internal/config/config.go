// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// File paths
	StoragePath    string `mapstructure:"storagepath"`
	DatabaseName   string `mapstructure:"-"` // Derived from other settings
	PropertiesPath string `mapstructure:"propertiespath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Credential store settings
	CredentialTTLSeconds int `mapstructure:"credentialttlseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "caudal")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("storagepath", "storage")
		v.SetDefault("propertiespath", "config/properties.yml")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("credentialttlseconds", 3600)

		// Bind environment variables
		v.BindEnv("appname", "CAUDAL_APP_NAME")
		v.BindEnv("appport", "CAUDAL_APP_PORT")
		v.BindEnv("environment", "CAUDAL_ENV")
		v.BindEnv("loglevel", "CAUDAL_LOG_LEVEL")
		v.BindEnv("storagepath", "CAUDAL_STORAGE_PATH")
		v.BindEnv("propertiespath", "CAUDAL_PROPERTIES_PATH")
		v.BindEnv("logsdir", "CAUDAL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "CAUDAL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "CAUDAL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "CAUDAL_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("credentialttlseconds", "CAUDAL_CREDENTIAL_TTL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.CredentialTTLSeconds <= 0 {
		return fmt.Errorf("invalid credential TTL: %d", c.CredentialTTLSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.StoragePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// GetCredentialTTL returns how long an uploaded service-account key stays
// resolvable through its access token.
func (c *Config) GetCredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLSeconds) * time.Second
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port.
func (c *Config) GetPort() string {
	return c.AppPort
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
