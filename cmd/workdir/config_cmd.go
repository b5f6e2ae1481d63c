// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"workdir-cli/internal/config"
)

// configCmd groups configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the global tool configuration",
}

// configShowCmd prints the resolved configuration as YAML.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cfgDir, err := config.ConfigDir()
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(map[string]any{
			"code_files":     cfg.CodeFiles,
			"data_files":     cfg.DataFiles,
			"code_recursion": cfg.CodeRecursion,
			"data_recursion": cfg.DataRecursion,
			"log": map[string]string{
				"filename":      cfg.Log.Filename,
				"console_level": cfg.Log.ConsoleLevel,
				"file_level":    cfg.Log.FileLevel,
			},
		})
		if err != nil {
			return err
		}

		path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("# "+path))
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
