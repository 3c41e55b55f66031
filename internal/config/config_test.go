package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("builds", "build_index.json"), cfg.Registry.Path)
	assert.False(t, cfg.Registry.Lock)
	assert.Equal(t, "com.appfactory", cfg.Validator.BundlePrefix)
	assert.Equal(t, "npx", cfg.Validator.PackageRunner)
	assert.Equal(t, "expo-", cfg.Validator.FrameworkPrefix)
	assert.Equal(t, 30*time.Second, cfg.Validator.Timeout())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	doc := "registry:\n  lock: true\nvalidator:\n  command_timeout: 10s\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(doc), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.True(t, cfg.Registry.Lock)
	assert.Equal(t, 10*time.Second, cfg.Validator.Timeout())
	// Unspecified fields fall back to defaults.
	assert.Equal(t, filepath.Join("builds", "build_index.json"), cfg.Registry.Path)
	assert.Equal(t, "com.appfactory", cfg.Validator.BundlePrefix)
}

func TestLoadMalformedFileFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("registry: [unclosed\n"), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestTimeoutFallback(t *testing.T) {
	c := ValidatorConfig{CommandTimeout: "not-a-duration"}
	assert.Equal(t, 30*time.Second, c.Timeout())

	c = ValidatorConfig{CommandTimeout: "-5s"}
	assert.Equal(t, 30*time.Second, c.Timeout())
}
