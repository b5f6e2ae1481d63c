// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"workdir-cli/internal/attr"
	"workdir-cli/internal/config"
)

// tableOf builds an effective table from hand-rolled definitions.
func tableOf(defs ...attr.Definition) *attr.Table {
	return attr.Merge("/project", []attr.Contribution{
		{Dir: "/project", Depth: 0, Code: defs},
	})
}

func callableDef(name string, params []string, options map[string]attr.OptionSpec, noCLI bool) attr.Definition {
	return attr.Definition{
		Name:   name,
		Kind:   attr.KindCallable,
		Source: "/project/workdir.lua",
		Callable: &attr.Callable{
			Params:        params,
			BindsInstance: len(params) > 0 && params[0] == attr.ParamWorkdir,
			NoCLI:         noCLI,
			Options:       options,
			Fn: func(attr.Instance, map[string]any) (any, error) {
				return nil, nil
			},
		},
	}
}

// TestBuildAttributeCommands_ShortcutHelp verifies a command shortcut becomes
// a subcommand whose help line is exactly the text after the delimiter.
func TestBuildAttributeCommands_ShortcutHelp(t *testing.T) {
	t.Parallel()

	table := tableOf(attr.Definition{
		Name:    "echo",
		Kind:    attr.KindCommand,
		Source:  "/project/workdir.yml",
		Command: &attr.Command{Template: "echo Hello", Help: "prints Hello"},
	})

	cmds, err := buildAttributeCommands(table, config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildAttributeCommands() unexpected error: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}

	c := cmds[0]
	if c.Name() != "echo" {
		t.Errorf("Name() = %q, want %q", c.Name(), "echo")
	}
	if c.Short != "prints Hello" {
		t.Errorf("Short = %q, want %q", c.Short, "prints Hello")
	}
	if c.Flags().HasFlags() {
		t.Error("shortcut command should declare no flags")
	}
}

// TestBuildAttributeCommands_ShortcutFallbackHelp verifies the generated help
// line when the shortcut carries no delimiter text.
func TestBuildAttributeCommands_ShortcutFallbackHelp(t *testing.T) {
	t.Parallel()

	table := tableOf(attr.Definition{
		Name:    "build",
		Kind:    attr.KindCommand,
		Source:  "/project/workdir.yml",
		Command: &attr.Command{Template: "make all"},
	})

	cmds, err := buildAttributeCommands(table, config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cmds[0].Short == "" {
		t.Error("fallback help line should not be empty")
	}
	if !strings.Contains(cmds[0].Short, "build") {
		t.Errorf("fallback help %q should name the attribute", cmds[0].Short)
	}
}

// TestBuildAttributeCommands_TypedFlags verifies option declarations project
// onto typed cobra flags with shorthand and defaults.
func TestBuildAttributeCommands_TypedFlags(t *testing.T) {
	t.Parallel()

	table := tableOf(callableDef("deploy",
		[]string{attr.ParamWorkdir, "target", "jobs", "dry_run", "ratio"},
		map[string]attr.OptionSpec{
			"target":  {Param: "target", Flag: "target", Type: attr.OptionString, Default: "prod", Help: "deploy target"},
			"jobs":    {Param: "jobs", Flag: "jobs", Short: "j", Type: attr.OptionInt, Default: 4},
			"dry_run": {Param: "dry_run", Flag: "dry-run", Type: attr.OptionBool, Default: false},
			"ratio":   {Param: "ratio", Flag: "ratio", Type: attr.OptionFloat, Default: 0.5},
		},
		false))

	cmds, err := buildAttributeCommands(table, config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildAttributeCommands() unexpected error: %v", err)
	}
	flags := cmds[0].Flags()

	target := flags.Lookup("target")
	if target == nil || target.DefValue != "prod" || target.Usage != "deploy target" {
		t.Errorf("target flag = %+v", target)
	}
	jobs := flags.Lookup("jobs")
	if jobs == nil || jobs.Value.Type() != "int" || jobs.Shorthand != "j" || jobs.DefValue != "4" {
		t.Errorf("jobs flag = %+v", jobs)
	}
	if f := flags.Lookup("dry-run"); f == nil || f.Value.Type() != "bool" {
		t.Errorf("dry-run flag = %+v", f)
	}
	if f := flags.Lookup("ratio"); f == nil || f.Value.Type() != "float64" {
		t.Errorf("ratio flag = %+v", f)
	}
}

// TestBuildAttributeCommands_UndeclaredParam verifies a callable parameter
// with no option declaration fails the build with CliDeclarationError.
func TestBuildAttributeCommands_UndeclaredParam(t *testing.T) {
	t.Parallel()

	table := tableOf(callableDef("greet",
		[]string{attr.ParamWorkdir, "name"},
		nil,
		false))

	_, err := buildAttributeCommands(table, config.DefaultConfig())
	var declErr *CliDeclarationError
	if !errors.As(err, &declErr) {
		t.Fatalf("error = %v, want *CliDeclarationError", err)
	}
	if declErr.Attr != "greet" || declErr.Param != "name" {
		t.Errorf("CliDeclarationError = %+v, want greet/name", declErr)
	}
}

// TestBuildAttributeCommands_SkipsValuesAndNoCLI verifies value attributes
// and no_cli callables produce no subcommands.
func TestBuildAttributeCommands_SkipsValuesAndNoCLI(t *testing.T) {
	t.Parallel()

	table := tableOf(
		attr.Definition{Name: "a_number", Kind: attr.KindValue, Value: 1},
		callableDef("helper", []string{attr.ParamWorkdir}, nil, true),
	)

	cmds, err := buildAttributeCommands(table, config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildAttributeCommands() unexpected error: %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
}

// TestRegisterDynamicCommands_EndToEnd projects the current directory's
// attributes onto a root command and runs one with a flag.
func TestRegisterDynamicCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	lua := `
function greet(workdir, name)
    return "hello " .. name
end
option(greet, "name", { type = "string", default = "world", help = "who to greet" })
`
	if err := os.WriteFile(filepath.Join(dir, "workdir.lua"), []byte(lua), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	root := &cobra.Command{Use: "workdir"}
	if err := registerDynamicCommands(root, config.DefaultConfig()); err != nil {
		t.Fatalf("registerDynamicCommands() unexpected error: %v", err)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"greet", "--name", "gopher"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello gopher" {
		t.Errorf("output = %q, want %q", got, "hello gopher")
	}
}

// TestRegisterDynamicCommands_BuiltinCollision verifies an attribute sharing
// a built-in subcommand's name is skipped instead of shadowing it.
func TestRegisterDynamicCommands_BuiltinCollision(t *testing.T) {
	dir := t.TempDir()
	yml := "commands:\n  attrs: \"echo clash // shadows a builtin\"\n"
	if err := os.WriteFile(filepath.Join(dir, "workdir.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	root := &cobra.Command{Use: "workdir"}
	builtin := &cobra.Command{Use: "attrs", Short: "builtin listing"}
	root.AddCommand(builtin)

	if err := registerDynamicCommands(root, config.DefaultConfig()); err != nil {
		t.Fatalf("registerDynamicCommands() unexpected error: %v", err)
	}

	var matches []*cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "attrs" {
			matches = append(matches, c)
		}
	}
	if len(matches) != 1 || matches[0] != builtin {
		t.Errorf("expected the builtin attrs command to survive alone, got %d matches", len(matches))
	}
}

// TestParseEnvFlags verifies KEY=VALUE parsing and malformed entries.
func TestParseEnvFlags(t *testing.T) {
	t.Parallel()

	env, err := parseEnvFlags([]string{"A=1", "B=two=parts"})
	if err != nil {
		t.Fatalf("parseEnvFlags() unexpected error: %v", err)
	}
	if env["A"] != "1" {
		t.Errorf("A = %q, want 1", env["A"])
	}
	if env["B"] != "two=parts" {
		t.Errorf("B = %q, want two=parts", env["B"])
	}

	if _, err := parseEnvFlags([]string{"missing-equals"}); err == nil {
		t.Error("parseEnvFlags() accepted an entry without '='")
	}
}
