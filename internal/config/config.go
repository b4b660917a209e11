// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config reads and writes the .canopy/project.yaml configuration
// surface: include/exclude glob sets, the debounce window, AI Bridge
// settings, parse-tree retention, and the cache directory location.
// Environment variables override file-based values after load, the way
// the teacher's cmd/cie config layer does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".canopy"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config is the root of .canopy/project.yaml.
type Config struct {
	Version   string         `yaml:"version"`
	ProjectID string         `yaml:"project_id"`
	Indexing  IndexingConfig `yaml:"indexing"`
	AIBridge  AIBridgeConfig `yaml:"ai_bridge"`
	Cache     CacheConfig    `yaml:"cache"`
}

// IndexingConfig controls what the Watcher and extractors see.
type IndexingConfig struct {
	Include          []string `yaml:"include"`            // glob patterns; empty means "everything not excluded"
	Exclude          []string `yaml:"exclude"`             // glob patterns, combined with the built-in skip-dir set
	UseIgnoreFiles   bool     `yaml:"use_ignore_files"`    // loaded and saved only; no .gitignore-style file is read, whatever its value
	DebounceMillis   int      `yaml:"debounce_ms"`         // filesystem-event debounce window
	RetainParseTrees bool     `yaml:"retain_parse_trees"`  // keep tree-sitter trees in the parse cache for incremental reparse
}

// AIBridgeConfig controls whether and how the AI Bridge is consulted.
type AIBridgeConfig struct {
	Enabled             bool    `yaml:"enabled"`
	Provider            string  `yaml:"provider"`    // opaque identifier; the core never interprets it
	DailyBudget         int     `yaml:"daily_budget"` // max Suggest calls per 24h period
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// CacheConfig locates the on-disk snapshot cache.
type CacheConfig struct {
	Directory string `yaml:"directory"`
}

// DefaultConfig returns sensible defaults for local development, with
// environment variables already applied.
func DefaultConfig(projectID string) *Config {
	cfg := &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Indexing: IndexingConfig{
			Exclude: []string{
				".git/**",
				"node_modules/**",
				"vendor/**",
				"dist/**",
				"build/**",
				".canopy/**",
			},
			UseIgnoreFiles:   true,
			DebounceMillis:   150,
			RetainParseTrees: true,
		},
		AIBridge: AIBridgeConfig{
			Enabled:             false,
			Provider:            "",
			DailyBudget:         500,
			ConfidenceThreshold: 0.6,
		},
		Cache: CacheConfig{
			Directory: defaultConfigDir,
		},
	}
	cfg.applyEnvOverrides()
	return cfg
}

// LoadConfig loads the configuration from configPath, or discovers it by
// walking up from the current directory when configPath is empty.
// Environment variable overrides are applied after the file is parsed.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CANOPY_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	if cfg.Version != configVersion {
		return nil, fmt.Errorf("config: unsupported version %q (expected %q)", cfg.Version, configVersion)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// SaveConfig writes cfg to configPath as YAML, creating its parent
// directory if needed.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", configPath, err)
	}
	return nil
}

// ConfigPath returns <dir>/.canopy/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns <dir>/.canopy.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

// findConfigFile walks up from the current directory looking for
// .canopy/project.yaml, the way the teacher's findConfigFile does.
func findConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: getwd: %w", err)
	}
	for {
		p := ConfigPath(dir)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("config: %s not found in the current directory or any parent", filepath.Join(defaultConfigDir, defaultConfigFile))
}

// applyEnvOverrides lets deployment environments override file-based
// settings without editing project.yaml.
//
// Supported variables:
//   - CANOPY_PROJECT_ID
//   - CANOPY_DEBOUNCE_MS
//   - CANOPY_AI_ENABLED
//   - CANOPY_AI_PROVIDER
//   - CANOPY_AI_DAILY_BUDGET
//   - CANOPY_AI_CONFIDENCE_THRESHOLD
//   - CANOPY_CACHE_DIR
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("CANOPY_PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if ms := os.Getenv("CANOPY_DEBOUNCE_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			c.Indexing.DebounceMillis = v
		}
	}
	if enabled := os.Getenv("CANOPY_AI_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.AIBridge.Enabled = v
		}
	}
	if provider := os.Getenv("CANOPY_AI_PROVIDER"); provider != "" {
		c.AIBridge.Provider = provider
	}
	if budget := os.Getenv("CANOPY_AI_DAILY_BUDGET"); budget != "" {
		if v, err := strconv.Atoi(budget); err == nil {
			c.AIBridge.DailyBudget = v
		}
	}
	if threshold := os.Getenv("CANOPY_AI_CONFIDENCE_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			c.AIBridge.ConfidenceThreshold = v
		}
	}
	if dir := os.Getenv("CANOPY_CACHE_DIR"); dir != "" {
		c.Cache.Directory = dir
	}
}

