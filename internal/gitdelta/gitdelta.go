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

// Package gitdelta detects which files changed between two git commits,
// so "canopy index --since <sha>" can feed only the affected paths
// through the indexing pipeline instead of a cold full reparse.
package gitdelta

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// emptyTreeSHA is git's well-known empty-tree object, used as the base
// when there is nothing to diff against (first ever index).
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Detector runs git diff against a repository checkout.
type Detector struct {
	RepoPath string
	Logger   *slog.Logger
}

// NewDetector returns a Detector, defaulting to slog.Default() if logger
// is nil.
func NewDetector(repoPath string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{RepoPath: repoPath, Logger: logger}
}

// Delta is the set of paths that changed between two commits.
type Delta struct {
	BaseSHA  string
	HeadSHA  string
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  map[string]string // old path -> new path
}

// Detect runs `git diff --name-status -M baseSHA headSHA` and classifies
// the result. An empty baseSHA compares against the empty tree, so every
// tracked file is reported Added. An empty headSHA resolves to HEAD.
func (d *Detector) Detect(baseSHA, headSHA string) (*Delta, error) {
	resolvedBase, resolvedHead, err := d.resolveRefs(baseSHA, headSHA)
	if err != nil {
		return nil, fmt.Errorf("gitdelta: resolve refs: %w", err)
	}

	delta := &Delta{BaseSHA: resolvedBase, HeadSHA: resolvedHead, Renamed: make(map[string]string)}

	out, err := d.runDiff(resolvedBase, resolvedHead)
	if err != nil {
		return nil, fmt.Errorf("gitdelta: git diff: %w", err)
	}
	if err := parseDiff(out, delta); err != nil {
		return nil, fmt.Errorf("gitdelta: parse diff: %w", err)
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)

	d.Logger.Info("gitdelta.detect.complete",
		"base_sha", shortSHA(resolvedBase),
		"head_sha", shortSHA(resolvedHead),
		"added", len(delta.Added),
		"modified", len(delta.Modified),
		"deleted", len(delta.Deleted),
		"renamed", len(delta.Renamed),
	)
	return delta, nil
}

func (d *Detector) resolveRefs(baseSHA, headSHA string) (string, string, error) {
	if headSHA == "" {
		headSHA = "HEAD"
	}
	resolvedHead, err := d.resolveRef(headSHA)
	if err != nil {
		return "", "", fmt.Errorf("resolve head: %w", err)
	}
	if baseSHA == "" {
		return emptyTreeSHA, resolvedHead, nil
	}
	resolvedBase, err := d.resolveRef(baseSHA)
	if err != nil {
		return "", "", fmt.Errorf("resolve base: %w", err)
	}
	return resolvedBase, resolvedHead, nil
}

func (d *Detector) resolveRef(ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", ref)
	cmd.Dir = d.RepoPath
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *Detector) runDiff(base, head string) ([]byte, error) {
	cmd := exec.Command("git", "diff", "--name-status", "-M", base, head)
	cmd.Dir = d.RepoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git diff failed: %s", string(exitErr.Stderr))
		}
		return nil, err
	}
	return out, nil
}

func parseDiff(out []byte, delta *Delta) error {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		status, paths := parseDiffLine(line)
		if status == "" || len(paths) == 0 {
			continue
		}
		switch status[0] {
		case 'A':
			delta.Added = append(delta.Added, paths[0])
		case 'M':
			delta.Modified = append(delta.Modified, paths[0])
		case 'D':
			delta.Deleted = append(delta.Deleted, paths[0])
		case 'R':
			if len(paths) >= 2 {
				delta.Renamed[paths[0]] = paths[1]
			}
		case 'C':
			if len(paths) >= 2 {
				delta.Added = append(delta.Added, paths[1])
			}
		}
	}
	return scanner.Err()
}

// parseDiffLine parses one "STATUS\tpath" or "STATUS\told\tnew" line.
func parseDiffLine(line string) (status string, paths []string) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return "", nil
	}
	return parts[0], parts[1:]
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
