// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"workdir-cli/internal/attr"
	"workdir-cli/internal/config"
	"workdir-cli/internal/shellrun"
	"workdir-cli/internal/workdir"
)

// CliDeclarationError reports a callable parameter with no option
// declaration. It surfaces at CLI-build time, before any subcommand runs.
type CliDeclarationError struct {
	// Attr is the callable's attribute name.
	Attr string
	// Param is the undeclared parameter.
	Param string
	// Source is the file that defined the callable.
	Source string
}

// Error implements the error interface.
func (e *CliDeclarationError) Error() string {
	return fmt.Sprintf(
		"attribute %q (from %s): parameter %q has no option declaration; add option(%s, %q, {...}) to the source file",
		e.Attr, e.Source, e.Param, e.Attr, e.Param)
}

// workdirOptions maps the global configuration onto constructor options.
func workdirOptions(cfg *config.Config, env map[string]string) []workdir.Option {
	opts := []workdir.Option{
		workdir.WithCodeFiles(cfg.CodeFiles...),
		workdir.WithDataFiles(cfg.DataFiles...),
		workdir.WithCodeRecursion(cfg.CodeRecursion),
		workdir.WithDataRecursion(cfg.DataRecursion),
		workdir.WithLogFilename(cfg.Log.Filename),
	}

	console, errC := log.ParseLevel(cfg.Log.ConsoleLevel)
	file, errF := log.ParseLevel(cfg.Log.FileLevel)
	if errC == nil && errF == nil {
		opts = append(opts, workdir.WithLogLevels(console, file))
	}

	if len(env) > 0 {
		opts = append(opts, workdir.WithEnvironment(env))
	}
	return opts
}

// registerDynamicCommands projects the effective attribute table of the
// current directory onto root. The probe instance used for projection is
// never entered; every invocation resolves a fresh WorkDir so that --env
// overrides take effect.
func registerDynamicCommands(root *cobra.Command, cfg *config.Config) error {
	probe, err := workdir.New("", workdirOptions(cfg, nil)...)
	if err != nil {
		return err
	}
	defer probe.Close()

	table, err := probe.Table()
	if err != nil {
		return err
	}

	cmds, err := buildAttributeCommands(table, cfg)
	if err != nil {
		return err
	}

	taken := make(map[string]bool)
	for _, c := range root.Commands() {
		taken[c.Name()] = true
	}
	for _, c := range cmds {
		if taken[c.Name()] {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+
				fmt.Sprintf("attribute %q shadows a built-in subcommand and is skipped", c.Name()))
			continue
		}
		root.AddCommand(c)
	}
	return nil
}

// buildAttributeCommands turns callable and command-shortcut entries into
// cobra commands. Value attributes are data, not commands; callables marked
// no_cli stay programmatic-only. A callable parameter without an option
// declaration is a configuration error that fails the whole build.
func buildAttributeCommands(table *attr.Table, cfg *config.Config) ([]*cobra.Command, error) {
	var cmds []*cobra.Command
	for _, name := range table.Names() {
		d, _ := table.Lookup(name)
		switch d.Kind {
		case attr.KindCallable:
			if d.Callable.NoCLI {
				continue
			}
			c, err := callableCommand(name, d, cfg)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, c)
		case attr.KindCommand:
			cmds = append(cmds, shortcutCommand(name, d, cfg))
		}
	}
	return cmds, nil
}

// callableCommand projects one callable into a subcommand with typed flags.
func callableCommand(name string, d attr.Definition, cfg *config.Config) (*cobra.Command, error) {
	callable := d.Callable

	specs := make([]attr.OptionSpec, 0, len(callable.Params))
	for _, p := range callable.CLIParams() {
		spec, ok := callable.Options[p]
		if !ok {
			return nil, &CliDeclarationError{Attr: name, Param: p, Source: d.Source}
		}
		specs = append(specs, spec)
	}

	c := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run %q from %s", name, d.Source),
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := flagArgs(cmd, specs)
			if err != nil {
				return err
			}
			return invoke(cmd, cfg, name, args)
		},
	}

	for _, spec := range specs {
		if err := addFlag(c, spec); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// shortcutCommand projects one command shortcut into a subcommand with the
// help text extracted from the data source and no options.
func shortcutCommand(name string, d attr.Definition, cfg *config.Config) *cobra.Command {
	short := d.Command.Help
	if short == "" {
		short = fmt.Sprintf("Run %q from %s", name, d.Source)
	}
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(cmd, cfg, name, nil)
		},
	}
}

// invoke resolves a fresh WorkDir for the current directory, enters it,
// calls the attribute, and prints a non-nil result to stdout. The context is
// exited (cwd and environment restored) on every path.
func invoke(cmd *cobra.Command, cfg *config.Config, name string, args map[string]any) error {
	env, err := parseEnvFlags(envFlags)
	if err != nil {
		return err
	}

	wd, err := workdir.New("", workdirOptions(cfg, env)...)
	if err != nil {
		return err
	}

	err = wd.Do(func(w *workdir.WorkDir) error {
		res, err := w.Call(name, args)
		if err != nil {
			return err
		}
		if res != nil {
			fmt.Fprintln(cmd.OutOrStdout(), fmt.Sprint(res))
		}
		return nil
	})

	var status *shellrun.ExitCodeError
	if errors.As(err, &status) {
		return &ExitError{Code: status.Code, Err: err}
	}
	return err
}

// addFlag declares one typed flag from an option spec.
func addFlag(c *cobra.Command, spec attr.OptionSpec) error {
	help := spec.Help
	switch spec.Type {
	case attr.OptionBool:
		def, _ := spec.Default.(bool)
		if spec.Short != "" {
			c.Flags().BoolP(spec.Flag, spec.Short, def, help)
		} else {
			c.Flags().Bool(spec.Flag, def, help)
		}
	case attr.OptionInt:
		def, _ := spec.Default.(int)
		if spec.Short != "" {
			c.Flags().IntP(spec.Flag, spec.Short, def, help)
		} else {
			c.Flags().Int(spec.Flag, def, help)
		}
	case attr.OptionFloat:
		def, _ := spec.Default.(float64)
		if spec.Short != "" {
			c.Flags().Float64P(spec.Flag, spec.Short, def, help)
		} else {
			c.Flags().Float64(spec.Flag, def, help)
		}
	case attr.OptionString, "":
		def, _ := spec.Default.(string)
		if spec.Short != "" {
			c.Flags().StringP(spec.Flag, spec.Short, def, help)
		} else {
			c.Flags().String(spec.Flag, def, help)
		}
	default:
		return fmt.Errorf("option %q: unsupported type %q", spec.Flag, spec.Type)
	}
	return nil
}

// flagArgs extracts parsed flag values into the callable argument map,
// keyed by parameter name and typed per the option declaration.
func flagArgs(cmd *cobra.Command, specs []attr.OptionSpec) (map[string]any, error) {
	args := make(map[string]any, len(specs))
	for _, spec := range specs {
		var (
			val any
			err error
		)
		switch spec.Type {
		case attr.OptionBool:
			val, err = cmd.Flags().GetBool(spec.Flag)
		case attr.OptionInt:
			val, err = cmd.Flags().GetInt(spec.Flag)
		case attr.OptionFloat:
			val, err = cmd.Flags().GetFloat64(spec.Flag)
		default:
			val, err = cmd.Flags().GetString(spec.Flag)
		}
		if err != nil {
			return nil, err
		}
		args[spec.Param] = val
	}
	return args, nil
}
