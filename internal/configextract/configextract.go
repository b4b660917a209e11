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

// Package configextract turns recognized config and data files into the
// same file-scoped Result shape internal/extract uses for source code:
// nested keyed formats become ConfigBlock/ConfigKey trees, .env files
// become EnvVariable nodes, and a handful of well-known filename
// conventions (migrations, CI workflows, compose manifests) become their
// own node kinds. None of this has a teacher analogue — the teacher
// never looked at config files — so it borrows the teacher's file-in,
// typed-result-out shape and applies it to a new domain.
package configextract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"canopy/internal/extract"
)

// Detect recognizes path by extension and filename convention and
// dispatches to the matching extractor. ok is false for files this
// package has no opinion about.
func Detect(path string, src []byte) (extract.Result, bool, error) {
	base := filepath.Base(path)
	switch {
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return ExtractEnvFile(path, src), true, nil
	case isMigrationFile(base):
		res, err := ExtractMigration(path, src)
		return res, true, err
	case isComposeFile(base):
		res, err := ExtractDockerCompose(path, src)
		return res, true, err
	case isWorkflowFile(path):
		res, err := ExtractCIJob(path, src)
		return res, true, err
	case isStructuredConfig(base):
		res, err := ExtractStructured(path, src)
		return res, true, err
	default:
		return extract.Result{}, false, nil
	}
}

// Recognized reports whether path matches one of Detect's filename/
// extension conventions, without requiring the file's bytes. This lets
// callers decide a file is indexable before reading it off disk.
func Recognized(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return true
	case isMigrationFile(base):
		return true
	case isComposeFile(base):
		return true
	case isWorkflowFile(path):
		return true
	case isStructuredConfig(base):
		return true
	default:
		return false
	}
}

func isStructuredConfig(base string) bool {
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml" || ext == ".json" || ext == ".toml"
}

func isMigrationFile(base string) bool {
	return strings.HasSuffix(base, ".sql") && migrationPrefix.MatchString(base)
}

var migrationPrefix = regexp.MustCompile(`^\d{4,}[_-]`)

func isComposeFile(base string) bool {
	return strings.HasPrefix(base, "docker-compose") && (strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml"))
}

func isWorkflowFile(path string) bool {
	dir := filepath.ToSlash(filepath.Dir(path))
	ext := filepath.Ext(path)
	return strings.HasSuffix(dir, ".github/workflows") && (ext == ".yml" || ext == ".yaml")
}

// ExtractStructured walks a YAML/JSON/TOML-shaped file's yaml.Node tree.
// Nested mappings become ConfigBlock nodes, leaf keys become ConfigKey
// nodes, and Contains edges model the nesting. Files with a .toml
// extension go through the same YAML decoder; TOML syntax such as
// [table] headers and key = value lines is not understood, so such a
// file yields a decode error or no symbols.
func ExtractStructured(path string, src []byte) (extract.Result, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return extract.Result{}, err
	}
	res := extract.Result{}
	if len(doc.Content) == 0 {
		return res, nil
	}
	root := doc.Content[0]
	rootName := filepath.Base(path)
	walkMapping(root, path, rootName, &res)
	return res, nil
}

func walkMapping(node *yaml.Node, path, qualified string, res *extract.Result) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		keyQualified := qualified + "." + keyNode.Value

		switch valNode.Kind {
		case yaml.MappingNode:
			res.Symbols = append(res.Symbols, extract.Symbol{
				Kind:          "ConfigBlock",
				Name:          keyNode.Value,
				QualifiedName: keyQualified,
				StartLine:     keyNode.Line,
				EndLine:       blockEndLine(valNode),
			})
			res.IntraEdges = append(res.IntraEdges, extract.IntraEdge{
				Kind:          "Contains",
				FromQualified: qualified,
				ToQualified:   keyQualified,
				Line:          keyNode.Line,
			})
			walkMapping(valNode, path, keyQualified, res)
		case yaml.SequenceNode:
			res.Symbols = append(res.Symbols, extract.Symbol{
				Kind:          "ConfigKey",
				Name:          keyNode.Value,
				QualifiedName: keyQualified,
				StartLine:     keyNode.Line,
				EndLine:       blockEndLine(valNode),
				Metadata:      map[string]string{"value_kind": "sequence", "length": strconv.Itoa(len(valNode.Content))},
			})
		default:
			res.Symbols = append(res.Symbols, extract.Symbol{
				Kind:          "ConfigKey",
				Name:          keyNode.Value,
				QualifiedName: keyQualified,
				StartLine:     keyNode.Line,
				EndLine:       keyNode.Line,
				Metadata:      map[string]string{"value": valNode.Value, "value_kind": valNode.Tag},
			})
		}
	}
}

func blockEndLine(node *yaml.Node) int {
	line := node.Line
	for _, c := range node.Content {
		if c.Line > line {
			line = c.Line
		}
		if l := blockEndLine(c); l > line {
			line = l
		}
	}
	return line
}

var envLine = regexp.MustCompile(`^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

// ExtractEnvFile produces one EnvVariable node per KEY=VALUE assignment.
func ExtractEnvFile(path string, src []byte) extract.Result {
	res := extract.Result{}
	lines := strings.Split(string(src), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := envLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		res.Symbols = append(res.Symbols, extract.Symbol{
			Kind:          "EnvVariable",
			Name:          name,
			QualifiedName: path + "::env::" + name,
			StartLine:     i + 1,
			EndLine:       i + 1,
			Metadata:      map[string]string{"default_value": strings.Trim(m[2], `"'`)},
		})
	}
	return res
}

// ExtractMigration recognizes the `<timestamp>_<description>.sql`
// convention and produces a single Migration node. Metadata records the
// extracted timestamp prefix and a best-effort list of touched tables.
func ExtractMigration(path string, src []byte) (extract.Result, error) {
	base := filepath.Base(path)
	timestamp := migrationPrefix.FindString(base)
	timestamp = strings.TrimRight(timestamp, "_-")

	res := extract.Result{
		Symbols: []extract.Symbol{{
			Kind:          "Migration",
			Name:          base,
			QualifiedName: path + "::migration",
			StartLine:     1,
			EndLine:       strings.Count(string(src), "\n") + 1,
			Metadata: map[string]string{
				"timestamp": timestamp,
				"tables":    strings.Join(migrationTables(src), ","),
			},
		}},
	}
	return res, nil
}

var tableRef = regexp.MustCompile(`(?i)(?:CREATE TABLE|ALTER TABLE|DROP TABLE|INSERT INTO|UPDATE)\s+(?:IF NOT EXISTS\s+)?["` + "`" + `]?([a-zA-Z0-9_\.]+)["` + "`" + `]?`)

func migrationTables(src []byte) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tableRef.FindAllStringSubmatch(string(src), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// ExtractCIJob turns a GitHub Actions workflow file's `jobs:` map into
// one CIJob node per job. The `on:` section's event names are recorded,
// comma-joined, in each job's "triggers" metadata; no separate symbol is
// emitted for them.
func ExtractCIJob(path string, src []byte) (extract.Result, error) {
	var doc struct {
		On   yaml.Node `yaml:"on"`
		Jobs yaml.Node `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return extract.Result{}, err
	}

	res := extract.Result{}
	for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
		name := doc.Jobs.Content[i]
		body := doc.Jobs.Content[i+1]
		res.Symbols = append(res.Symbols, extract.Symbol{
			Kind:          "CIJob",
			Name:          name.Value,
			QualifiedName: path + "::job::" + name.Value,
			StartLine:     name.Line,
			EndLine:       blockEndLine(body),
			Metadata:      map[string]string{"triggers": triggerNames(&doc.On)},
		})
	}
	return res, nil
}

func triggerNames(on *yaml.Node) string {
	if on == nil {
		return ""
	}
	switch on.Kind {
	case yaml.ScalarNode:
		return on.Value
	case yaml.SequenceNode:
		var names []string
		for _, c := range on.Content {
			names = append(names, c.Value)
		}
		return strings.Join(names, ",")
	case yaml.MappingNode:
		var names []string
		for i := 0; i+1 < len(on.Content); i += 2 {
			names = append(names, on.Content[i].Value)
		}
		return strings.Join(names, ",")
	}
	return ""
}

// ExtractDockerCompose turns a compose file's `services:` map into one
// DockerService node per service, capturing image, port, volume and
// dependency metadata for later DockerMount edge construction in
// internal/heuristic.
func ExtractDockerCompose(path string, src []byte) (extract.Result, error) {
	var doc struct {
		Services yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return extract.Result{}, err
	}

	res := extract.Result{}
	for i := 0; i+1 < len(doc.Services.Content); i += 2 {
		name := doc.Services.Content[i]
		body := doc.Services.Content[i+1]

		var svc struct {
			Image     string   `yaml:"image"`
			Volumes   []string `yaml:"volumes"`
			Ports     []string `yaml:"ports"`
			DependsOn []string `yaml:"depends_on"`
		}
		_ = body.Decode(&svc)

		res.Symbols = append(res.Symbols, extract.Symbol{
			Kind:          "DockerService",
			Name:          name.Value,
			QualifiedName: path + "::service::" + name.Value,
			StartLine:     name.Line,
			EndLine:       blockEndLine(body),
			Metadata: map[string]string{
				"image":      svc.Image,
				"volumes":    strings.Join(svc.Volumes, ","),
				"ports":      strings.Join(svc.Ports, ","),
				"depends_on": strings.Join(svc.DependsOn, ","),
			},
		})
	}
	return res, nil
}
