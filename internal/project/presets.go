package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPresetNotFound is returned when a named bin preset does not exist.
var ErrPresetNotFound = errors.New("preset not found")

// BinPreset is a named bin type (capacity, cost and stock quantity) that
// imported item lists can be packed into.
type BinPreset struct {
	Name     string `json:"name"`
	W        []int  `json:"w"`
	Cost     int    `json:"cost"`
	Quantity int    `json:"quantity"` // -1 = unbounded
}

// DefaultPresetPath returns the default file path for the preset store.
// This is located at ~/.arcflow/presets.json.
func DefaultPresetPath() string {
	return filepath.Join(DefaultConfigDir(), "presets.json")
}

// SavePresets writes the presets to a JSON file.
func SavePresets(path string, presets []BinPreset) error {
	return writeJSON(path, presets)
}

// LoadPresets reads presets from a JSON file.
// If the file does not exist, returns an empty list.
func LoadPresets(path string) ([]BinPreset, error) {
	var presets []BinPreset
	if _, err := readJSON(path, &presets); err != nil {
		return nil, err
	}
	if presets == nil {
		presets = []BinPreset{}
	}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return presets, nil
}

// StorePreset validates preset and upserts it into the store at path.
func StorePreset(path string, preset BinPreset) error {
	if err := preset.Validate(); err != nil {
		return err
	}
	presets, err := LoadPresets(path)
	if err != nil {
		return err
	}
	return SavePresets(path, UpsertPreset(presets, preset))
}

// Validate checks that the preset is named and has a usable capacity.
func (p BinPreset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("preset has no name")
	}
	if len(p.W) == 0 {
		return fmt.Errorf("preset %q has no capacity", p.Name)
	}
	for _, w := range p.W {
		if w <= 0 {
			return fmt.Errorf("preset %q has a non-positive capacity", p.Name)
		}
	}
	return nil
}

// FindPreset returns the preset with the given name (case-insensitive).
func FindPreset(presets []BinPreset, name string) (BinPreset, error) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return BinPreset{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
}

// UpsertPreset replaces the preset with the same name or appends it.
func UpsertPreset(presets []BinPreset, preset BinPreset) []BinPreset {
	for i, p := range presets {
		if strings.EqualFold(p.Name, preset.Name) {
			presets[i] = preset
			return presets
		}
	}
	return append(presets, preset)
}
