// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"workdir-cli/internal/luacfg"
	"workdir-cli/pkg/workdirfile"
)

var (
	initForce bool

	// initCmd scaffolds the two configuration files in the current directory.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create workdir.lua and workdir.yml in the current directory",
		Long: `Create starter configuration files in the current directory.

workdir.lua holds values and functions; workdir.yml holds environment
variables, literal attributes, and shell command shortcuts. Both are
inherited by subdirectories.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
}

const starterLua = `-- Values and functions defined here become attributes of this
-- directory and every directory below it.

project = "example"

-- The reserved first parameter "workdir" binds the instance; "here" is
-- the directory containing this file.
function describe(workdir)
    return "project " .. workdir.project .. " at " .. workdir.path
end

function greet(workdir, name)
    return "hello " .. name .. " from " .. workdir.project
end
option(greet, "name", { type = "string", default = "world", help = "who to greet" })
`

const starterYml = `# Environment variables applied inside the context; attributes and
# shell command shortcuts inherited by subdirectories.
# {{ workdir }} expands to the target directory, {{ here }} to this one.
environment:
  PROJECT_ROOT: "{{ here }}"

attributes:
  build_dir: "{{ workdir }}/build"

commands:
  hello: "echo Hello from {{ here }} // print a greeting"
`

func runInit(cmd *cobra.Command, _ []string) error {
	files := map[string]string{
		luacfg.DefaultName:      starterLua,
		workdirfile.DefaultName: starterYml,
	}

	for name, content := range files {
		if _, err := os.Stat(name); err == nil && !initForce {
			return fmt.Errorf("file %q already exists, use --force to overwrite", name)
		}
		if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		abs, _ := filepath.Abs(name)
		fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", SuccessStyle.Render("✓"), abs)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("Next steps:"))
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Edit the files to add your attributes and commands")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. Run 'workdir attrs' to see the effective table")
	fmt.Fprintln(cmd.OutOrStdout(), "  3. Run 'workdir <name>' to invoke an attribute")
	return nil
}
