// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"workdir-cli/internal/attr"
	"workdir-cli/internal/config"
	"workdir-cli/internal/workdir"
)

// attrsCmd lists the effective attribute table of the current directory:
// every inherited name with its kind and the source file that won the merge.
var attrsCmd = &cobra.Command{
	Use:   "attrs",
	Short: "List the effective attributes of the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			cfg = config.DefaultConfig()
		}

		wd, err := workdir.New("", workdirOptions(cfg, nil)...)
		if err != nil {
			return err
		}
		defer wd.Close()

		table, err := wd.Table()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if table.Len() == 0 {
			fmt.Fprintln(out, SubtitleStyle.Render("no attributes defined along "+wd.Path()))
			return nil
		}

		fmt.Fprintln(out, TitleStyle.Render("Attributes for ")+wd.Path())
		for _, name := range table.Names() {
			d, _ := table.Lookup(name)
			detail := d.Source
			if d.Kind == attr.KindCallable && d.Callable.NoCLI {
				detail += " (no cli)"
			}
			fmt.Fprintf(out, "  %s  %-8s  %s\n",
				AttrStyle.Render(fmt.Sprintf("%-20s", name)), d.Kind, SubtitleStyle.Render(detail))
		}
		return nil
	},
}
