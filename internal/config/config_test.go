package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDerivesTablePrefixFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/stratus")
	t.Setenv("TABLE_PREFIX", "")

	t.Setenv("ENVIRONMENT", "prod")
	assert.Equal(t, "prod_", Load().TablePrefix)

	t.Setenv("ENVIRONMENT", "test")
	assert.Equal(t, "test_", Load().TablePrefix)

	t.Setenv("ENVIRONMENT", "dev")
	assert.Equal(t, "dev_", Load().TablePrefix)

	t.Setenv("TABLE_PREFIX", "custom_")
	assert.Equal(t, "custom_", Load().TablePrefix)
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{Environment: "dev", LogMaxFiles: 10}
	require.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/stratus"
	require.NoError(t, cfg.Validate())

	cfg.Environment = "staging"
	require.Error(t, cfg.Validate())
}
