package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestBindFlags_OverridesDefault(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--data-dir=/var/lib/fleetctl", "--breaker-failure-threshold=5"}))

	assert.Equal(t, "/var/lib/fleetctl", cfg.DataDir)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
}

func TestLoad_EnvOverridesDataDir(t *testing.T) {
	t.Setenv("FLEETCTL_DATA_DIR", "/mnt/state")
	cfg := Default()

	require.NoError(t, cfg.Load())

	assert.Equal(t, "/mnt/state", cfg.DataDir)
}

func TestValidate_RejectsEmptyListenAddr(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestMasterKey_ErrorsWhenUnset(t *testing.T) {
	cfg := Default()
	cfg.MasterKeyEnv = "FLEETCTL_TEST_UNSET_KEY"
	_, err := cfg.MasterKey()
	assert.Error(t, err)
}

func TestMasterKey_ReadsConfiguredVariable(t *testing.T) {
	t.Setenv("FLEETCTL_TEST_KEY", "super-secret")
	cfg := Default()
	cfg.MasterKeyEnv = "FLEETCTL_TEST_KEY"

	key, err := cfg.MasterKey()

	require.NoError(t, err)
	assert.Equal(t, "super-secret", key)
}
