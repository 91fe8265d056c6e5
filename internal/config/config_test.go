package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("APPDATA", dir)
	} else {
		t.Setenv("XDG_CONFIG_HOME", dir)
	}
	return filepath.Join(dir, "uvmon")
}

func TestLoadSettingsDefaults(t *testing.T) {
	isolateConfigDir(t)

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, int64(256*1024), s.Gate.ByteDeltaThreshold)
	assert.Equal(t, 5*time.Second, s.Estimator.RateWindow)
	assert.True(t, s.History.Enabled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolateConfigDir(t)

	s := DefaultSettings()
	s.Gate.ByteDeltaThreshold = 1024
	s.Gate.ResolvingCooldown = 2 * time.Second
	s.Estimator.DefaultFrameSize = 32768
	s.History.Enabled = false
	require.NoError(t, SaveSettings(s))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadSettingsPartialFile(t *testing.T) {
	uvmonDir := isolateConfigDir(t)
	require.NoError(t, os.MkdirAll(uvmonDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(uvmonDir, "settings.yaml"),
		[]byte("gate:\n  byte_delta_threshold: 4096\n"), 0644))

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, int64(4096), s.Gate.ByteDeltaThreshold)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, time.Second, s.Gate.ResolvingCooldown)
	assert.Equal(t, int64(16384), s.Estimator.DefaultFrameSize)
}

func TestLoadSettingsMalformed(t *testing.T) {
	uvmonDir := isolateConfigDir(t)
	require.NoError(t, os.MkdirAll(uvmonDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(uvmonDir, "settings.yaml"),
		[]byte("gate: [not a mapping"), 0644))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	isolateConfigDir(t)
	require.NoError(t, EnsureDirs())

	for _, dir := range []string{GetUvmonDir(), GetStateDir(), GetLogsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
