package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piwi3910/arcflow/internal/model"
)

// BackupVersion is written to every backup file.
const BackupVersion = "1.0.0"

// BackupData is one backup file: the application config, the bin presets
// and the run history.
type BackupData struct {
	Version   string          `json:"version"`
	CreatedAt string          `json:"created_at"`
	Config    model.AppConfig `json:"config"`
	Presets   []BinPreset     `json:"presets"`
	Runs      []Run           `json:"runs"`
}

// ExportAllData writes config, presets and runs to exportPath.
func ExportAllData(exportPath string, config model.AppConfig, presets []BinPreset, runs []Run) error {
	return writeJSON(exportPath, BackupData{
		Version:   BackupVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Config:    config,
		Presets:   presets,
		Runs:      runs,
	})
}

// ImportAllData reads a backup written by ExportAllData. Config keys the
// file omits keep their defaults; nil lists come back empty.
func ImportAllData(importPath string) (BackupData, error) {
	backup := BackupData{Config: model.DefaultAppConfig()}
	found, err := readJSON(importPath, &backup)
	if err != nil {
		return BackupData{}, err
	}
	if !found {
		return BackupData{}, fmt.Errorf("backup file %s does not exist", importPath)
	}
	if backup.Version == "" {
		return BackupData{}, errors.New("invalid backup file: missing version field")
	}
	if backup.Config.RecentInstances == nil {
		backup.Config.RecentInstances = []string{}
	}
	if backup.Presets == nil {
		backup.Presets = []BinPreset{}
	}
	if backup.Runs == nil {
		backup.Runs = []Run{}
	}
	return backup, nil
}

// Stores locates the persistent state covered by a backup. History may be
// nil, in which case runs are neither exported nor restored.
type Stores struct {
	ConfigPath  string
	PresetsPath string
	History     *History
}

// Backup exports the current config, presets and runs to path.
func (s Stores) Backup(ctx context.Context, path string) (BackupData, error) {
	cfg, err := LoadAppConfig(s.ConfigPath)
	if err != nil {
		return BackupData{}, err
	}
	presets, err := LoadPresets(s.PresetsPath)
	if err != nil {
		return BackupData{}, err
	}
	runs := []Run{}
	if s.History != nil {
		if runs, err = s.History.List(ctx, 0); err != nil {
			return BackupData{}, err
		}
	}
	if err := ExportAllData(path, cfg, presets, runs); err != nil {
		return BackupData{}, err
	}
	return BackupData{Version: BackupVersion, Config: cfg, Presets: presets, Runs: runs}, nil
}

// RestoreResult counts what Restore wrote.
type RestoreResult struct {
	Presets int `json:"presets"`
	Runs    int `json:"runs"`
}

// Restore replaces the config with the backup's, merges its presets into
// the preset store by name and inserts runs whose ids are not yet in the
// history.
func (s Stores) Restore(ctx context.Context, path string) (RestoreResult, error) {
	backup, err := ImportAllData(path)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := SaveAppConfig(s.ConfigPath, backup.Config); err != nil {
		return RestoreResult{}, err
	}

	presets, err := LoadPresets(s.PresetsPath)
	if err != nil {
		return RestoreResult{}, err
	}
	var res RestoreResult
	for _, p := range backup.Presets {
		if err := p.Validate(); err != nil {
			return res, fmt.Errorf("backup preset: %w", err)
		}
		presets = UpsertPreset(presets, p)
		res.Presets++
	}
	if err := SavePresets(s.PresetsPath, presets); err != nil {
		return res, err
	}

	if s.History != nil {
		if res.Runs, err = s.History.Restore(ctx, backup.Runs); err != nil {
			return res, err
		}
	}
	return res, nil
}
