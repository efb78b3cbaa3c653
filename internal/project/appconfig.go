package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/arcflow/internal/model"
)

// MaxRecent bounds AppConfig.RecentInstances.
const MaxRecent = 10

// DefaultConfigDir is ~/.arcflow, or ./.arcflow when there is no home.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arcflow"
	}
	return filepath.Join(home, ".arcflow")
}

// DefaultConfigPath is config.json inside DefaultConfigDir.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadAppConfig reads the application config at path. Keys absent from
// the file keep their DefaultAppConfig values and a missing file yields
// the defaults.
func LoadAppConfig(path string) (model.AppConfig, error) {
	cfg := model.DefaultAppConfig()
	if _, err := readJSON(path, &cfg); err != nil {
		return model.AppConfig{}, err
	}
	if cfg.RecentInstances == nil {
		cfg.RecentInstances = []string{}
	}
	return cfg, nil
}

// SaveAppConfig writes cfg to path.
func SaveAppConfig(path string, cfg model.AppConfig) error {
	return writeJSON(path, cfg)
}

// RememberInstance moves instance to the front of the recent list and
// saves cfg to configPath.
func RememberInstance(configPath string, cfg *model.AppConfig, instance string) error {
	abs, err := filepath.Abs(instance)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", instance, err)
	}
	cfg.AddRecent(abs, MaxRecent)
	return SaveAppConfig(configPath, *cfg)
}
