// SPDX-License-Identifier: MPL-2.0

package luacfg

import (
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"workdir-cli/internal/attr"
)

// instanceTypeName keys the metatable for working-directory userdata.
const instanceTypeName = "workdir_instance"

// registerInstanceType installs the metatable that backs the `workdir`
// argument of instance-bound callables. Attribute access goes through the
// effective table of the instance; `wd / "name"` joins against the instance
// path, mirroring the path-join builtin on the Go side.
func registerInstanceType(L *lua.LState) {
	mt := L.NewTypeMetatable(instanceTypeName)
	L.SetField(mt, "__index", L.NewFunction(instanceIndex))
	L.SetField(mt, "__div", L.NewFunction(instanceDiv))
	L.SetField(mt, "__tostring", L.NewFunction(instanceToString))
}

// instanceValue wraps inst as userdata for pushing into a Lua call.
func instanceValue(L *lua.LState, inst attr.Instance) lua.LValue {
	if inst == nil {
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = inst
	L.SetMetatable(ud, L.GetTypeMetatable(instanceTypeName))
	return ud
}

func checkInstance(L *lua.LState, idx int) attr.Instance {
	ud := L.CheckUserData(idx)
	inst, ok := ud.Value.(attr.Instance)
	if !ok {
		L.ArgError(idx, "workdir instance expected")
		return nil
	}
	return inst
}

func instanceIndex(L *lua.LState) int {
	inst := checkInstance(L, 1)
	name := L.CheckString(2)

	if name == "path" {
		L.Push(lua.LString(inst.Path()))
		return 1
	}

	d, ok := inst.Lookup(name)
	if !ok {
		L.RaiseError("workdir %s has no attribute %q", inst.Path(), name)
		return 0
	}

	switch d.Kind {
	case attr.KindValue:
		L.Push(goToLua(L, d.Value))
	case attr.KindCallable:
		L.Push(callableValue(L, inst, d))
	case attr.KindCommand:
		// Command shortcuts surface in Lua as their template text; running
		// shell commands stays on the Go side.
		L.Push(lua.LString(d.Command.Template))
	}
	return 1
}

// callableValue exposes an effective callable to Lua. Positional arguments
// map onto the callable's non-reserved parameters in declared order; the
// instance binds itself, so `workdir.greet()` works from inside another
// attribute function.
func callableValue(L *lua.LState, inst attr.Instance, d attr.Definition) lua.LValue {
	return L.NewFunction(func(L *lua.LState) int {
		start := 1
		// Tolerate colon-call syntax, which passes the userdata first.
		if ud, ok := L.Get(1).(*lua.LUserData); ok {
			if _, isInst := ud.Value.(attr.Instance); isInst {
				start = 2
			}
		}

		args := make(map[string]any)
		for i, p := range d.Callable.CLIParams() {
			v := L.Get(start + i)
			if v == lua.LNil {
				continue
			}
			args[p] = luaToGo(v)
		}

		res, err := d.Callable.Fn(inst, args)
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		L.Push(goToLua(L, res))
		return 1
	})
}

func instanceDiv(L *lua.LState) int {
	inst := checkInstance(L, 1)
	elem := L.CheckString(2)
	L.Push(lua.LString(filepath.Join(inst.Path(), elem)))
	return 1
}

func instanceToString(L *lua.LState) int {
	inst := checkInstance(L, 1)
	L.Push(lua.LString(inst.Path()))
	return 1
}
