// SPDX-License-Identifier: MPL-2.0

// Package luacfg loads code-configuration sources: Lua files whose top-level
// definitions become working-directory attributes. Each source runs once at
// load time in its own sandboxed state (no io, os, or debug libraries).
//
// Inside a source file, the global `here` holds the absolute path of the
// directory containing the file. Two declaration helpers are injected:
//
//	option(fn, "param", {flag=..., short=..., type=..., default=..., help=...})
//	no_cli(fn)
//
// option declares the CLI option spec for one non-reserved parameter of fn;
// no_cli keeps fn out of CLI projection without removing programmatic access.
//
// States are not goroutine-safe; a Source must be used from one goroutine.
package luacfg

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"workdir-cli/internal/attr"
)

// DefaultName is the code-configuration filename looked up per directory.
const DefaultName = "workdir.lua"

// ExecutionError reports a failure while executing a code-configuration
// file. Execution errors are never swallowed; they abort the resolution of
// the whole working directory.
type ExecutionError struct {
	// Path is the source file that failed.
	Path string
	// Err is the underlying Lua error.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Source is one evaluated code-configuration file. The Lua state stays open
// for the lifetime of the owning working directory so that callables remain
// invocable; Close releases it.
type Source struct {
	// Path is the absolute path of the source file.
	Path string
	// Dir is the directory containing the file.
	Dir string

	state   *lua.LState
	defs    []attr.Definition
	options map[*lua.LFunction]map[string]attr.OptionSpec
	noCLI   map[*lua.LFunction]bool
}

// Load evaluates the source file at path, contributed by the directory at
// the given chain depth. A syntax or runtime error in the file propagates as
// an ExecutionError.
func Load(path string, depth int) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ExecutionError{Path: path, Err: err}
	}

	s := &Source{
		Path:    abs,
		Dir:     filepath.Dir(abs),
		options: make(map[*lua.LFunction]map[string]attr.OptionSpec),
		noCLI:   make(map[*lua.LFunction]bool),
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	s.state = L
	openSafeLibraries(L)
	registerInstanceType(L)

	L.SetGlobal("here", lua.LString(s.Dir))
	L.SetGlobal("option", L.NewFunction(s.luaOption))
	L.SetGlobal("no_cli", L.NewFunction(s.luaNoCLI))

	baseline := globalNames(L)

	if err := L.DoFile(abs); err != nil {
		L.Close()
		return nil, &ExecutionError{Path: abs, Err: err}
	}

	s.collect(baseline, depth)
	return s, nil
}

// Definitions returns the attribute definitions contributed by the file, in
// name order.
func (s *Source) Definitions() []attr.Definition {
	return s.defs
}

// Close releases the underlying Lua state. Callables from this source must
// not be invoked afterwards.
func (s *Source) Close() {
	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}

// openSafeLibraries opens base, table, string, and math only. io, os,
// debug, and package stay closed: a configuration file has no business
// touching them, and the shell escape hatch is the data-source commands.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// globalNames snapshots the current global table keys.
func globalNames(L *lua.LState) map[string]bool {
	names := make(map[string]bool)
	globals, ok := L.Get(lua.GlobalsIndex).(*lua.LTable)
	if !ok {
		return names
	}
	globals.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			names[string(ks)] = true
		}
	})
	return names
}

// collect turns every global introduced by the chunk into a definition.
// Names starting with an underscore are private and skipped.
func (s *Source) collect(baseline map[string]bool, depth int) {
	globals, ok := s.state.Get(lua.GlobalsIndex).(*lua.LTable)
	if !ok {
		return
	}

	var names []string
	values := make(map[string]lua.LValue)
	globals.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		name := string(ks)
		if baseline[name] || strings.HasPrefix(name, "_") {
			return
		}
		names = append(names, name)
		values[name] = v
	})
	sort.Strings(names)

	for _, name := range names {
		s.defs = append(s.defs, s.define(name, values[name], depth))
	}
}

func (s *Source) define(name string, v lua.LValue, depth int) attr.Definition {
	d := attr.Definition{Name: name, Depth: depth, Source: s.Path}

	fn, isFn := v.(*lua.LFunction)
	if !isFn || fn.IsG {
		d.Kind = attr.KindValue
		d.Value = luaToGo(v)
		return d
	}

	params := paramNames(fn)
	d.Kind = attr.KindCallable
	d.Callable = &attr.Callable{
		Params:        params,
		BindsInstance: len(params) > 0 && params[0] == attr.ParamWorkdir,
		NoCLI:         s.noCLI[fn],
		Options:       s.options[fn],
		Here:          s.Dir,
		Fn:            s.callFunc(fn, params),
	}
	return d
}

// paramNames reads the declared parameter names from the compiled prototype.
// The first NumParameters debug locals are the parameters, in order.
func paramNames(fn *lua.LFunction) []string {
	if fn.Proto == nil {
		return nil
	}
	n := int(fn.Proto.NumParameters)
	names := make([]string, 0, n)
	for i := 0; i < n && i < len(fn.Proto.DbgLocals); i++ {
		names = append(names, fn.Proto.DbgLocals[i].Name)
	}
	return names
}

// callFunc builds the invocation closure for a callable. The reserved
// parameters are filled by the closure: `workdir` with the bound instance,
// `here` with the directory captured at load time. Everything else comes
// from the caller-supplied argument map.
func (s *Source) callFunc(fn *lua.LFunction, params []string) attr.CallFunc {
	return func(inst attr.Instance, args map[string]any) (any, error) {
		L := s.state
		if L == nil {
			return nil, &ExecutionError{Path: s.Path, Err: fmt.Errorf("source closed")}
		}

		L.Push(fn)
		for _, p := range params {
			switch p {
			case attr.ParamWorkdir:
				L.Push(instanceValue(L, inst))
			case attr.ParamHere:
				L.Push(lua.LString(s.Dir))
			default:
				L.Push(goToLua(L, args[p]))
			}
		}
		if err := L.PCall(len(params), 1, nil); err != nil {
			return nil, fmt.Errorf("calling function from %s: %w", s.Path, err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		return luaToGo(ret), nil
	}
}

// luaOption implements option(fn, param, spec).
func (s *Source) luaOption(L *lua.LState) int {
	fn := L.CheckFunction(1)
	param := L.CheckString(2)
	tbl := L.CheckTable(3)

	spec := attr.OptionSpec{Param: param, Flag: param, Type: attr.OptionString}
	if v := tbl.RawGetString("flag"); v != lua.LNil {
		spec.Flag = lua.LVAsString(v)
	}
	if v := tbl.RawGetString("short"); v != lua.LNil {
		spec.Short = lua.LVAsString(v)
	}
	if v := tbl.RawGetString("type"); v != lua.LNil {
		spec.Type = attr.OptionType(lua.LVAsString(v))
	}
	if v := tbl.RawGetString("help"); v != lua.LNil {
		spec.Help = lua.LVAsString(v)
	}
	if v := tbl.RawGetString("default"); v != lua.LNil {
		spec.Default = coerceDefault(luaToGo(v), spec.Type)
	}

	if s.options[fn] == nil {
		s.options[fn] = make(map[string]attr.OptionSpec)
	}
	s.options[fn][param] = spec
	return 0
}

// luaNoCLI implements no_cli(fn).
func (s *Source) luaNoCLI(L *lua.LState) int {
	fn := L.CheckFunction(1)
	s.noCLI[fn] = true
	return 0
}

// coerceDefault aligns a default value with the declared option type, so
// Lua numbers (always floats) come out as ints for int options.
func coerceDefault(v any, t attr.OptionType) any {
	switch t {
	case attr.OptionInt:
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	case attr.OptionFloat:
		switch n := v.(type) {
		case int:
			return float64(n)
		case float64:
			return n
		}
	}
	return v
}
