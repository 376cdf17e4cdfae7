package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "security", cfg.Database.Name)
	assert.Equal(t, "users", cfg.Database.Collection)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.InvalidIDAsBadRequest)
	assert.False(t, cfg.Server.MalformedBodyAsBadRequest)
	require.NotNil(t, cfg.Observability)
	assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
	assert.Equal(t, cfg.Primary.Env, cfg.Observability.Environment)
}

func TestLoadConfig_PrefixedVariables(t *testing.T) {
	t.Setenv("USERS_PRIMARY__ENV", "production")
	t.Setenv("USERS_DATABASE__URI", "mongodb://db.internal:27017")
	t.Setenv("USERS_DATABASE__NAME", "accounts")
	t.Setenv("USERS_DATABASE__OPERATION_TIMEOUT", "3s")
	t.Setenv("USERS_SERVER__INVALID_ID_AS_BAD_REQUEST", "true")
	t.Setenv("USERS_SERVER__MALFORMED_BODY_AS_BAD_REQUEST", "true")
	t.Setenv("USERS_OBSERVABILITY__LOGGING__LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Database.URI)
	assert.Equal(t, "accounts", cfg.Database.Name)
	assert.Equal(t, "users", cfg.Database.Collection)
	assert.Equal(t, 3*time.Second, cfg.Database.OperationTimeout)
	assert.True(t, cfg.Server.InvalidIDAsBadRequest)
	assert.True(t, cfg.Server.MalformedBodyAsBadRequest)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Observability.IsProduction())
}

func TestLoadConfig_LegacyVariables(t *testing.T) {
	t.Setenv("MONGODBATLAS_CLUSTER_CONNECTIONSTRING", "mongodb+srv://atlas.example.net")
	t.Setenv("MONGO_DBNAME", "legacy")
	t.Setenv("MONGO_COLLECTION", "people")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mongodb+srv://atlas.example.net", cfg.Database.URI)
	assert.Equal(t, "legacy", cfg.Database.Name)
	assert.Equal(t, "people", cfg.Database.Collection)
}

func TestLoadConfig_MongoURIWinsOverAtlas(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://primary:27017")
	t.Setenv("MONGODBATLAS_CLUSTER_CONNECTIONSTRING", "mongodb+srv://atlas.example.net")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://primary:27017", cfg.Database.URI)
}

func TestLoadConfig_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("MONGO_DBNAME", "legacy")
	t.Setenv("USERS_DATABASE__NAME", "modern")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "modern", cfg.Database.Name)
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	t.Setenv("USERS_OBSERVABILITY__LOGGING__LEVEL", "verbose")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging level")
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		level       string
		want        string
	}{
		{"explicit level wins", "production", "error", "error"},
		{"production default", "production", "", "info"},
		{"development default", "development", "", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultObservabilityConfig()
			c.Environment = tt.environment
			c.Logging.Level = tt.level
			assert.Equal(t, tt.want, c.GetLogLevel())
		})
	}
}

func TestObservabilityConfig_HasCheck(t *testing.T) {
	c := DefaultObservabilityConfig()
	assert.True(t, c.HasCheck("database"))
	assert.False(t, c.HasCheck("kafka"))

	c.HealthChecks.Enabled = false
	assert.False(t, c.HasCheck("database"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.uri", envKey("USERS_DATABASE__URI"))
	assert.Equal(t, "server.max_body_bytes", envKey("USERS_SERVER__MAX_BODY_BYTES"))
}
