// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for workdir. The subcommand tree is
// partly dynamic: the effective attribute table of the current directory is
// projected into subcommands before execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"workdir-cli/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// envFlags holds --env KEY=VALUE overrides applied inside the context.
	envFlags []string

	// rootCmd represents the base command when called without subcommands.
	rootCmd = &cobra.Command{
		Use:   "workdir",
		Short: "Scoped working directories with inherited configuration",
		Long: TitleStyle.Render("workdir") + SubtitleStyle.Render(" - scoped working directories") + `

workdir turns directory-local configuration into commands. Each directory
may carry a workdir.lua (functions and values) and a workdir.yml
(environment, attributes, commands); definitions are inherited down the
directory tree, with deeper definitions shadowing shallower ones.

Callables and command shortcuts from the effective attribute table of the
current directory appear below as subcommands.

` + SubtitleStyle.Render("Examples:") + `
  workdir attrs             List the effective attributes here
  workdir init              Scaffold workdir.lua and workdir.yml
  workdir <name> [flags]    Run an inherited callable or command shortcut`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&envFlags, "env", nil,
		"environment override KEY=VALUE, applied inside the context (repeatable)")

	rootCmd.AddCommand(attrsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the dynamic subcommands for the current directory and runs
// the CLI. A configuration error along the ancestor chain, including a
// missing option declaration, aborts before any subcommand executes.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		cfg = config.DefaultConfig()
	}

	if err := registerDynamicCommands(rootCmd, cfg); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// parseEnvFlags turns --env KEY=VALUE pairs into a map. Entries without "="
// are rejected.
func parseEnvFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(flags))
	for _, kv := range flags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}
