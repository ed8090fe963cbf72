package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppConfig is the per-profile application configuration, read from
// pinn.yaml in the profile directory. It configures the tool itself; the
// cloud settings are data (cloudConfig.json) and live with the collections.
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Snapshots enables git history snapshots of the managed directory.
	Snapshots bool `yaml:"snapshots"`
	// DefaultFolderName is suggested when prompting for a notes directory.
	DefaultFolderName string `yaml:"default_folder_name"`
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		LogLevel:          "info",
		Snapshots:         false,
		DefaultFolderName: "notes",
	}
}

// LoadAppConfig reads pinn.yaml from profileDir, creating it with defaults
// when missing.
func LoadAppConfig(profileDir string) (*AppConfig, error) {
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	path := filepath.Join(profileDir, "pinn.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		cfg := defaultAppConfig()
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write default config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg := defaultAppConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
