// SPDX-License-Identifier: MPL-2.0

// Package workdirfile defines the data-configuration file format for working
// directories: a YAML document with `environment`, `attributes`, and
// `commands` sections. The placeholders {{ workdir }} and {{ here }} are
// substituted by plain template expansion before YAML parsing, so they may
// appear anywhere a string is expected, including inside path expressions.
package workdirfile

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultName is the data-configuration filename looked up per directory.
const DefaultName = "workdir.yml"

// HelpDelimiter separates a command template from its CLI help text. The
// text after the delimiter becomes the subcommand help and is stripped from
// the executable template. The surrounding spaces are part of the token so
// that "//" inside URLs is left alone.
const HelpDelimiter = " // "

var (
	workdirToken = regexp.MustCompile(`\{\{\s*workdir\s*\}\}`)
	hereToken    = regexp.MustCompile(`\{\{\s*here\s*\}\}`)
)

// Document is the parsed data-configuration content for one directory.
type Document struct {
	// Environment maps variable names to values applied inside a context.
	Environment map[string]string `yaml:"environment"`
	// Attributes maps names to literal values, including nested sequences
	// and mappings.
	Attributes map[string]any `yaml:"attributes"`
	// Commands maps names to shell command templates.
	Commands map[string]string `yaml:"commands"`
}

// ParseError reports malformed data-configuration content, naming the
// offending file and wrapping the underlying YAML error.
type ParseError struct {
	// Path is the data-configuration file that failed to parse.
	Path string
	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Substitute expands the {{ workdir }} and {{ here }} placeholders in text.
// workdirPath is the target directory of the owning instance; herePath is
// the directory containing the file being loaded. The replacements are
// literal: a "$" in a directory path must survive expansion unchanged.
func Substitute(text, workdirPath, herePath string) string {
	text = workdirToken.ReplaceAllLiteralString(text, workdirPath)
	return hereToken.ReplaceAllLiteralString(text, herePath)
}

// SplitCommand separates a command template from its help text. The help is
// everything after the last delimiter, trimmed; the returned template has
// the delimiter and help stripped. A template with no delimiter returns an
// empty help string.
func SplitCommand(raw string) (template, help string) {
	idx := strings.LastIndex(raw, HelpDelimiter)
	if idx < 0 {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(HelpDelimiter):])
}

// Parse substitutes placeholders in raw and unmarshals the result.
func Parse(raw []byte, path, workdirPath, herePath string) (*Document, error) {
	expanded := Substitute(string(raw), workdirPath, herePath)

	var doc Document
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &doc, nil
}

// Load reads and parses the data-configuration file at path. A missing file
// is not an error: it yields a nil document.
func Load(path, workdirPath, herePath string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return Parse(raw, path, workdirPath, herePath)
}
