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
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// buildLogger returns a text-handler logger writing to stderr, leveled
// by -v/-vv. --quiet still logs warnings and errors: quiet only
// suppresses the CLI's own progress/status prints, not structured logs.
func buildLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose >= 1:
		level = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

var (
	colorOK   = color.New(color.FgGreen)
	colorWarn = color.New(color.FgYellow)
	colorErr  = color.New(color.FgRed, color.Bold)
)

// initColors disables ANSI color output when requested, NO_COLOR is set,
// or stderr is not a terminal.
func initColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}

func printOK(format string, args ...interface{}) {
	colorOK.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarn(format string, args ...interface{}) {
	colorWarn.Fprintf(os.Stderr, format+"\n", args...)
}

func printErr(format string, args ...interface{}) {
	colorErr.Fprintf(os.Stderr, format+"\n", args...)
}

// fatal prints err in red and exits 1, unless quiet is set in which case
// it exits silently.
func fatal(err error, quiet bool) {
	if !quiet {
		printErr("error: %v", err)
	}
	os.Exit(1)
}

// newProgressBar returns a bar writing to stderr, or a no-op bar when
// quiet is set or stderr isn't a terminal (so piping canopy's output
// never gets progress-bar escape codes mixed into it).
func newProgressBar(total int64, description string, quiet bool) *progressbar.ProgressBar {
	if quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return progressbar.DefaultSilent(total)
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100),
	)
}

func printf(quiet bool, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
}
