package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds user-tunable behavior, loaded from settings.yaml in the
// uvmon config directory. Missing file means defaults.
type Settings struct {
	Gate      GateSettings      `yaml:"gate"`
	Estimator EstimatorSettings `yaml:"estimator"`
	History   HistorySettings   `yaml:"history"`
}

// GateSettings controls the update gate thresholds.
type GateSettings struct {
	// ByteDeltaThreshold is the minimum byte progress between two
	// forwarded byte-only updates.
	ByteDeltaThreshold int64 `yaml:"byte_delta_threshold"`
	// ResolvingCooldown bounds how often resolving-phase chatter is
	// forwarded after the phase entry.
	ResolvingCooldown time.Duration `yaml:"resolving_cooldown"`
	// MaxQuietLarge / MaxQuietSmall bound the silent gap between
	// forwarded byte updates for large and small transfers.
	MaxQuietLarge time.Duration `yaml:"max_quiet_large"`
	MaxQuietSmall time.Duration `yaml:"max_quiet_small"`
	// LargeTransferBytes separates "large" from "small" transfers for
	// the quiet-gap rule.
	LargeTransferBytes int64 `yaml:"large_transfer_bytes"`
}

// EstimatorSettings controls byte estimation from frame arrivals.
type EstimatorSettings struct {
	// DefaultFrameSize is the assumed data-frame payload size until a
	// settings trace line announces another one.
	DefaultFrameSize int64 `yaml:"default_frame_size"`
	// RateWindow is the sliding window for the averaged transfer rate.
	RateWindow time.Duration `yaml:"rate_window"`
}

// HistorySettings controls the run-report store.
type HistorySettings struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Gate: GateSettings{
			ByteDeltaThreshold: 256 * 1024,
			ResolvingCooldown:  time.Second,
			MaxQuietLarge:      2 * time.Second,
			MaxQuietSmall:      5 * time.Second,
			LargeTransferBytes: 50 * 1024 * 1024,
		},
		Estimator: EstimatorSettings{
			DefaultFrameSize: 16384,
			RateWindow:       5 * time.Second,
		},
		History: HistorySettings{Enabled: true},
	}
}

// LoadSettings reads settings.yaml from the uvmon dir, falling back to
// defaults when the file does not exist. Unknown keys are ignored.
func LoadSettings() (*Settings, error) {
	s := DefaultSettings()

	path := filepath.Join(GetUvmonDir(), "settings.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes settings.yaml to the uvmon dir.
func SaveSettings(s *Settings) error {
	if err := EnsureDirs(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return os.WriteFile(filepath.Join(GetUvmonDir(), "settings.yaml"), data, 0644)
}

// GetUvmonDir returns the base config directory for uvmon.
func GetUvmonDir() string {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
	}
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".uvmon"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "uvmon")
}

// GetStateDir returns the directory holding the history database.
func GetStateDir() string {
	return filepath.Join(GetUvmonDir(), "state")
}

// GetLogsDir returns the directory holding debug logs.
func GetLogsDir() string {
	return filepath.Join(GetUvmonDir(), "logs")
}

// EnsureDirs creates the config, state and logs directories.
func EnsureDirs() error {
	for _, dir := range []string{GetUvmonDir(), GetStateDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
