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

// Package main implements the canopy CLI: a live, hierarchical
// architecture-graph indexer.
//
// Usage:
//
//	canopy config init              Write .canopy/project.yaml
//	canopy index [--since <sha>]    Index the repository once
//	canopy watch                    Watch and incrementally reindex
//	canopy serve                    Index, watch, and serve the control API
//	canopy status [--json]          Show indexed graph statistics
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags holds the flags that apply to every subcommand.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .canopy/project.yaml (default: discovered by walking up from cwd)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	// Stop parsing at the first non-flag argument so subcommand-specific
	// flags like "index --since <sha>" pass through untouched.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `canopy - live architecture-graph indexer

canopy builds and maintains a hierarchical graph of a repository's code
and configuration: files, symbols, and the relations between them,
reparsed incrementally as the repository changes.

Usage:
  canopy <command> [options]

Commands:
  config    Show or initialize .canopy/project.yaml
  index     Index the repository once (optionally --since <sha>)
  watch     Watch the repository and reindex incrementally
  serve     Index, watch, and serve the control API and live feed
  status    Show indexed graph statistics

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to .canopy/project.yaml
  -V, --version     Show version and exit

Examples:
  canopy config init
  canopy index
  canopy index --since HEAD~5
  canopy serve --addr :8971
  canopy status --json

For detailed command help: canopy <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("canopy version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	initColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "config":
		runConfig(cmdArgs, *configPath, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "watch":
		runWatch(cmdArgs, *configPath, globals)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
