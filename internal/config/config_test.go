package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCcapisEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CCAPIS_PORT", "CCAPIS_SETTINGS", "CCAPIS_NO_TRAY",
		"CCAPIS_CIRCUIT_BREAKER_ENABLED", "CCAPIS_FAILURE_THRESHOLD",
		"CCAPIS_GENERIC_COOLDOWN", "CCAPIS_RATE_LIMIT_COOLDOWN",
		"CCAPIS_USAGE_STALENESS", "CCAPIS_TXLOG_ENABLED",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_DefaultsWithNoFlags(t *testing.T) {
	clearCcapisEnv(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.NoTray)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.True(t, cfg.TxLogEnabled)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	clearCcapisEnv(t)
	cfg, err := Load([]string{"--port", "9090", "--settings", "/tmp/creds.json", "--no-tray"})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/creds.json", cfg.SettingsPath)
	assert.True(t, cfg.NoTray)
}

func TestLoad_EnvLayersUnderFlagDefaults(t *testing.T) {
	clearCcapisEnv(t)
	require.NoError(t, os.Setenv("CCAPIS_PORT", "7000"))
	defer os.Unsetenv("CCAPIS_PORT")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestEnvHelpers_FallBackOnInvalidValue(t *testing.T) {
	require.NoError(t, os.Setenv("CCAPIS_TEST_INT", "not-a-number"))
	defer os.Unsetenv("CCAPIS_TEST_INT")
	assert.Equal(t, 42, envInt("CCAPIS_TEST_INT", 42))
}

func TestEnvBool_Parses(t *testing.T) {
	require.NoError(t, os.Setenv("CCAPIS_TEST_BOOL", "true"))
	defer os.Unsetenv("CCAPIS_TEST_BOOL")
	assert.True(t, envBool("CCAPIS_TEST_BOOL", false))
}
