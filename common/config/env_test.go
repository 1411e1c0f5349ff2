package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"daystohire/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersFallBackToDefaults(t *testing.T) {
	t.Setenv("DTH_TEST_INT", "not-a-number")
	t.Setenv("DTH_TEST_DURATION", "soon")
	t.Setenv("DTH_TEST_BOOL", "maybe")

	assert.Equal(t, "fallback", config.String("DTH_TEST_UNSET", "fallback"))
	assert.Equal(t, 7, config.Int("DTH_TEST_INT", 7))
	assert.Equal(t, time.Minute, config.Duration("DTH_TEST_DURATION", time.Minute))
	assert.True(t, config.Bool("DTH_TEST_BOOL", true))
}

func TestHelpersReadEnvironment(t *testing.T) {
	t.Setenv("DTH_TEST_STRING", "")
	t.Setenv("DTH_TEST_INT", "12")
	t.Setenv("DTH_TEST_DURATION", "90s")
	t.Setenv("DTH_TEST_BOOL", "false")

	assert.Equal(t, "", config.String("DTH_TEST_STRING", "fallback"))
	assert.Equal(t, 12, config.Int("DTH_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, config.Duration("DTH_TEST_DURATION", time.Minute))
	assert.False(t, config.Bool("DTH_TEST_BOOL", true))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DTH_TEST_DOTENV=from-file\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DTH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DTH_TEST_DOTENV"))

	require.NoError(t, config.LoadDotEnv())
	assert.Equal(t, "from-file", os.Getenv("DTH_TEST_DOTENV"))
	require.NoError(t, os.Unsetenv("DTH_TEST_DOTENV"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.NoError(t, config.LoadDotEnv())
}
