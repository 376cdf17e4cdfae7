// Package config manages environment variables.
//
// It reads variable from the `.env` file,
// loads them into structured Go types (struct), and
// validates that required values are present so they
// can be reused accross the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for the MongoDB connection and optional blocks.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists, it gets loaded into the
	// process env before any env var is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	`koanf` reads config sources and unmarshals them into the Config struct.

	Key idea in this file:
	- Env vars are read using a prefix: USERS_
	- Keys are normalized (lowercased, prefix removed)
	- A double underscore separates nesting levels
	  e.g. USERS_SERVER__PORT -> server.port -> Config.Server.Port
	- The legacy MONGO_* variables of the first deployment are still honored.
*/

// EnvPrefix is the prefix every application environment variable carries.
const EnvPrefix = "USERS_"

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. If not provided,
// we inject defaults at runtime.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are expressed in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`

	// MaxBodyBytes bounds how much of a request body is buffered before parsing.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1"`

	// RateLimit is the allowed number of requests per second per client IP.
	// Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`

	// InvalidIDAsBadRequest renders malformed identifiers as 400 instead of 500.
	InvalidIDAsBadRequest bool `koanf:"invalid_id_as_bad_request"`

	// MalformedBodyAsBadRequest renders unparseable bodies as 400 instead of 500.
	MalformedBodyAsBadRequest bool `koanf:"malformed_body_as_bad_request"`

	// MetadataEnvAllowList names the environment variables the metadata
	// endpoint may echo back. Anything not listed is never exposed.
	MetadataEnvAllowList []string `koanf:"metadata_env_allow_list"`
}

// DatabaseConfig contains the MongoDB connection parameters.
type DatabaseConfig struct {
	URI              string        `koanf:"uri" validate:"required"`
	Name             string        `koanf:"name" validate:"required"`
	Collection       string        `koanf:"collection" validate:"required"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout" validate:"min=1ms"`
	OperationTimeout time.Duration `koanf:"operation_timeout" validate:"min=1ms"`
	MaxPoolSize      uint64        `koanf:"max_pool_size"`
}

// RedisConfig contains Redis connection details.
// An empty Address disables the user cache and background jobs.
type RedisConfig struct {
	Address  string        `koanf:"address"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// IntegrationConfig stores third-party integration settings.
type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	EmailFrom    string `koanf:"email_from"`
}

// legacyKeys maps the environment variables used by the first deployment
// of the service onto koanf keys.
var legacyKeys = map[string]string{
	"MONGO_URI":                             "database.uri",
	"MONGODBATLAS_CLUSTER_CONNECTIONSTRING": "database.uri",
	"MONGO_DBNAME":                          "database.name",
	"MONGO_COLLECTION":                      "database.collection",
}

// DefaultConfig returns the configuration used for every key the environment
// leaves unset.
func DefaultConfig() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:                      "8080",
			ReadTimeout:               30,
			WriteTimeout:              30,
			IdleTimeout:               60,
			CORSAllowedOrigins:        []string{"*"},
			MaxBodyBytes:              1 << 20,
			RateLimit:                 0,
			InvalidIDAsBadRequest:     false,
			MalformedBodyAsBadRequest: false,
			MetadataEnvAllowList:      []string{"MONGO_DBNAME", "MONGO_COLLECTION", "HOSTNAME"},
		},
		Database: DatabaseConfig{
			URI:              "mongodb://localhost:27017",
			Name:             "security",
			Collection:       "users",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 15 * time.Second,
			MaxPoolSize:      100,
		},
		Redis: RedisConfig{
			CacheTTL: 5 * time.Minute,
		},
		Integration: IntegrationConfig{
			EmailFrom: "Users API <onboarding@resend.dev>",
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// envKey converts USERS_DATABASE__URI into database.uri.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// LoadConfig loads configuration from environment variables on top of
// DefaultConfig, validates it and applies observability defaults.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	// Legacy names first so that the prefixed variables win when both are set.
	// MONGO_URI takes precedence over the Atlas connection string.
	err := k.Load(env.Provider("", ".", func(s string) string {
		if s == "MONGODBATLAS_CLUSTER_CONNECTIONSTRING" && os.Getenv("MONGO_URI") != "" {
			return ""
		}
		return legacyKeys[s]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load legacy env variables: %w", err)
	}

	err = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := DefaultConfig()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	if err := mainConfig.finalize(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// finalize validates the struct tags, injects observability defaults and
// runs the observability checks that tags cannot express.
func (c *Config) finalize() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}

	// Service name is fixed so telemetry stays consistent across deployments.
	c.Observability.ServiceName = ServiceName
	c.Observability.Environment = c.Primary.Env

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}
