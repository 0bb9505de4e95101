// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	RabbitMQ    RabbitMQConfig
	Logging     LoggingConfig
	Storage     StorageConfig
	Server      ServerConfig
	YouTube     YouTubeConfig
	Discovery   DiscoveryConfig
	Geolocation GeolocationConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKeys         []string
}

// YouTubeConfig contains YouTube Data API configuration.
type YouTubeConfig struct {
	APIKey     string
	MaxResults int
}

// DiscoveryConfig tunes the expanding-radius search and the perceived
// loading-time contract.
type DiscoveryConfig struct {
	StartRadiusMiles int
	MinDuration      time.Duration
	MaxDuration      time.Duration
}

// StorageConfig selects and configures the history store backend.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type StorageConfig struct {
	Backend     string // "file" or "postgres"
	Path        string // directory for the file backend
	DatabaseURL string // connection string for the postgres backend
}

// GeolocationConfig contains IP geolocation resolver configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type GeolocationConfig struct {
	Endpoint       string
	Timeout        time.Duration
	DefaultLat     float64
	DefaultLon     float64
	DefaultCity    string
	DefaultRegion  string
	DefaultCountry string
}

// RabbitMQConfig contains RabbitMQ connection and exchange configuration.
// Publishing is disabled when Host is empty.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Backend != "file" && c.Storage.Backend != "postgres" {
		return fmt.Errorf("unknown storage backend %q (supported: file, postgres)", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage.databaseurl is required for the postgres backend")
	}
	if c.Discovery.StartRadiusMiles <= 0 {
		return fmt.Errorf("discovery.startradiusmiles must be positive, got %d", c.Discovery.StartRadiusMiles)
	}
	if c.Discovery.MinDuration > c.Discovery.MaxDuration {
		return fmt.Errorf("discovery.minduration (%s) exceeds discovery.maxduration (%s)",
			c.Discovery.MinDuration, c.Discovery.MaxDuration)
	}
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// YouTube
	viper.SetDefault("youtube.maxresults", 10)

	// Discovery
	viper.SetDefault("discovery.startradiusmiles", 10)
	viper.SetDefault("discovery.minduration", 2*time.Second)
	viper.SetDefault("discovery.maxduration", 15*time.Second)

	// Storage
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.path", "./data")

	// Geolocation
	viper.SetDefault("geolocation.endpoint", "http://ip-api.com/json")
	viper.SetDefault("geolocation.timeout", 5*time.Second)
	viper.SetDefault("geolocation.defaultlat", 40.7128)
	viper.SetDefault("geolocation.defaultlon", -74.006)
	viper.SetDefault("geolocation.defaultcity", "New York")
	viper.SetDefault("geolocation.defaultregion", "New York")
	viper.SetDefault("geolocation.defaultcountry", "United States")

	// RabbitMQ (disabled unless host is set)
	viper.SetDefault("rabbitmq.host", "")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "discovery.events")
	viper.SetDefault("rabbitmq.queue", "discovery.outcomes")
	viper.SetDefault("rabbitmq.routingkey", "discovery.completed")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
