// SPDX-License-Identifier: MPL-2.0

// Package shellrun executes command-shortcut templates through the embedded
// shell interpreter (mvdan.cc/sh). Templates run in the working directory
// with the effective environment overlay applied; no external shell binary
// is involved.
package shellrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Request describes one template execution.
type Request struct {
	// Template is the shell command text.
	Template string
	// Dir is the working directory for the interpreter.
	Dir string
	// Env is the full environment for the run, as a name to value map.
	Env map[string]string
	// Stdin, Stdout, Stderr default to the process streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitCodeError carries a nonzero shell exit status.
type ExitCodeError struct {
	// Code is the exit status of the template.
	Code int
}

// Error implements the error interface.
func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// Validate parses the template and reports syntax errors without running it.
func Validate(template string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(template), "command")
	if err != nil {
		return fmt.Errorf("command syntax error: %w", err)
	}
	return nil
}

// Run parses and executes the template. A nonzero exit status is returned as
// an ExitCodeError; other interpreter failures are returned as-is.
func Run(ctx context.Context, req Request) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Template), "command")
	if err != nil {
		return fmt.Errorf("parsing command template: %w", err)
	}

	stdin := req.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := req.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := req.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(req.Dir),
		interp.Env(expand.ListEnviron(EnvToSlice(req.Env)...)),
		interp.StdIO(stdin, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitCodeError{Code: int(status)}
		}
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}

// EnvToSlice flattens an environment map into sorted KEY=VALUE form.
func EnvToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
