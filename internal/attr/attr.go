// SPDX-License-Identifier: MPL-2.0

// Package attr holds the attribute model for working directories: the tagged
// definition variant (value, callable, command shortcut), the effective
// attribute table, and the merge engine that folds per-directory
// contributions into one table.
package attr

import "fmt"

// Kind discriminates the definition variant.
type Kind int

const (
	// KindValue is a plain data attribute (scalar, sequence, or mapping).
	KindValue Kind = iota
	// KindCallable is a function attribute contributed by a code source.
	KindCallable
	// KindCommand is a shell command template contributed by a data source.
	KindCommand
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindCallable:
		return "callable"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Reserved parameter names recognized in code-source callables.
const (
	// ParamWorkdir receives the owning WorkDir instance.
	ParamWorkdir = "workdir"
	// ParamHere receives the absolute path of the directory containing the
	// source file. It is captured at load time, not at call time.
	ParamHere = "here"
)

// IsReservedParam reports whether name is one of the binding parameters that
// never appear as CLI options.
func IsReservedParam(name string) bool {
	return name == ParamWorkdir || name == ParamHere
}

// OptionType is the declared value type of a CLI option.
type OptionType string

const (
	OptionString OptionType = "string"
	OptionInt    OptionType = "int"
	OptionFloat  OptionType = "float"
	OptionBool   OptionType = "bool"
)

// OptionSpec declares how one callable parameter is exposed on the command
// line. Every non-reserved parameter of a CLI-projected callable must carry
// one (see CLI surface generation in cmd/workdir).
type OptionSpec struct {
	// Param is the covered parameter name.
	Param string
	// Flag is the long flag name. Defaults to the parameter name.
	Flag string
	// Short is an optional one-letter flag alias.
	Short string
	// Type selects the flag value type. Defaults to OptionString.
	Type OptionType
	// Default is the flag default, already of the declared type.
	Default any
	// Help is the flag usage text.
	Help string
}

// Instance is the minimal surface a callable needs from the owning WorkDir.
// It is an interface so the attribute model stays independent of the context
// manager that owns it.
type Instance interface {
	// Path returns the absolute path of the working directory.
	Path() string
	// Lookup returns the effective definition for name.
	Lookup(name string) (Definition, bool)
}

// CallFunc invokes a callable. Instance binding (injecting the instance as
// the reserved first argument) happens inside the implementation, driven by
// Callable.BindsInstance. Non-reserved arguments are passed by name.
type CallFunc func(inst Instance, args map[string]any) (any, error)

// Callable is the payload of a KindCallable definition.
type Callable struct {
	// Params are the declared parameter names, in order.
	Params []string
	// BindsInstance is true when the first declared parameter is the
	// reserved instance name; the instance is injected at invocation.
	BindsInstance bool
	// NoCLI excludes the callable from CLI projection while keeping it
	// invocable programmatically.
	NoCLI bool
	// Options maps non-reserved parameter names to their CLI option specs.
	Options map[string]OptionSpec
	// Here is the absolute directory of the defining source file.
	Here string
	// Fn performs the actual call.
	Fn CallFunc
}

// CLIParams returns the declared parameters that require an option spec,
// i.e. everything except the reserved binding names.
func (c *Callable) CLIParams() []string {
	var out []string
	for _, p := range c.Params {
		if !IsReservedParam(p) {
			out = append(out, p)
		}
	}
	return out
}

// Command is the payload of a KindCommand definition: a shell command
// template plus the help text extracted from the data source.
type Command struct {
	// Template is the executable shell template.
	Template string
	// Help is the CLI help text, empty when the source declared none.
	Help string
}

// Definition is one named entity contributed by a directory on the ancestor
// chain. Exactly one payload field is set, selected by Kind.
type Definition struct {
	// Name is the attribute name.
	Name string
	// Kind selects the payload.
	Kind Kind
	// Depth is the ordinal depth of the contributing directory, root = 0.
	Depth int
	// Source is the file that contributed the definition.
	Source string

	// Value is set for KindValue.
	Value any
	// Callable is set for KindCallable.
	Callable *Callable
	// Command is set for KindCommand.
	Command *Command
}

// NotFoundError reports access to a name with no effective definition.
type NotFoundError struct {
	// Name is the missing attribute name.
	Name string
	// Dir is the working directory whose table was consulted.
	Dir string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workdir %s has no attribute %q", e.Dir, e.Name)
}

// NotCallableError reports an invocation attempt on a value attribute.
type NotCallableError struct {
	// Name is the attribute name.
	Name string
	// Kind is the actual kind of the definition.
	Kind Kind
}

// Error implements the error interface.
func (e *NotCallableError) Error() string {
	return fmt.Sprintf("attribute %q is a %s, not callable", e.Name, e.Kind)
}
