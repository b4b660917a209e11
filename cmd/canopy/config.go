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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"canopy/internal/config"
)

// runConfig executes the 'config' CLI command group: 'config init' writes
// a fresh .canopy/project.yaml, 'config show' (the default) prints the
// effective configuration after env-var overrides.
//
// Examples:
//
//	canopy config init
//	canopy config show --json
func runConfig(args []string, configPath string, globals GlobalFlags) {
	sub := "show"
	if len(args) > 0 && !isFlag(args[0]) {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "init":
		runConfigInit(args, configPath, globals)
	case "show":
		runConfigShow(args, configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s (expected init|show)\n", sub)
		os.Exit(1)
	}
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func runConfigInit(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing project.yaml")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: canopy config init [--force]\n\nWrites a default .canopy/project.yaml in the current directory.\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatal(fmt.Errorf("determine working directory: %w", err), globals.Quiet)
	}
	if configPath == "" {
		configPath = config.ConfigPath(cwd)
	}
	if _, err := os.Stat(configPath); err == nil && !*force {
		fatal(fmt.Errorf("%s already exists (use --force to overwrite)", configPath), globals.Quiet)
	}

	cfg := config.DefaultConfig(filepath.Base(cwd))
	if err := config.SaveConfig(cfg, configPath); err != nil {
		fatal(fmt.Errorf("write config: %w", err), globals.Quiet)
	}
	printOK("wrote %s", configPath)
}

func runConfigShow(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	jsonOut := fs.Bool("json", globals.JSON, "Output in JSON format")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: canopy config show [--json]\n\nPrints the effective configuration (file plus env overrides).\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatal(fmt.Errorf("determine working directory: %w", err), globals.Quiet)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		cfg = config.DefaultConfig(filepath.Base(cwd))
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(cfg)
		return
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fatal(fmt.Errorf("marshal config: %w", err), globals.Quiet)
	}
	os.Stdout.Write(out)
}
