// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

const configFile = "config.yaml"

// LoadConfig reads the persisted configuration from dataDir/config.yaml.
// A missing file yields the default configuration. Values are clamped
// to documented bounds on load, never rejected.
func LoadConfig(dataDir string) (types.Config, error) {
	cfg := types.DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dataDir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Clamp()
	return cfg, nil
}

// SaveConfig writes the whole configuration to dataDir/config.yaml.
// Partial-field merges are the caller's job; the store only persists
// complete configurations.
func SaveConfig(dataDir string, cfg types.Config) error {
	cfg.Clamp()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dataDir, configFile), data, 0o644)
}
