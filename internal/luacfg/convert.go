// SPDX-License-Identifier: MPL-2.0

package luacfg

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// luaToGo converts a Lua value to its Go counterpart. Integral numbers come
// out as int, everything else as float64. Tables convert to []any when their
// keys form the sequence 1..n, to map[string]any otherwise.
func luaToGo(v lua.LValue) any {
	switch lv := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(lv)
	case lua.LString:
		return string(lv)
	case lua.LNumber:
		f := float64(lv)
		// float64(math.MaxInt) rounds up, so the upper bound is exclusive;
		// out-of-range integral values stay float64 rather than risk an
		// unspecified conversion.
		if f == math.Trunc(f) && f >= math.MinInt && f < math.MaxInt {
			return int(f)
		}
		return f
	case *lua.LTable:
		return tableToGo(lv)
	default:
		return v.String()
	}
}

func tableToGo(t *lua.LTable) any {
	n := t.MaxN()
	if n > 0 {
		seq := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			seq = append(seq, luaToGo(t.RawGetInt(i)))
		}
		return seq
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = luaToGo(v)
	})
	if len(m) == 0 {
		return []any{}
	}
	return m
}

// goToLua converts a Go value for passing into a Lua call.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch gv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(gv)
	case string:
		return lua.LString(gv)
	case int:
		return lua.LNumber(gv)
	case int64:
		return lua.LNumber(gv)
	case float64:
		return lua.LNumber(gv)
	case []any:
		t := L.NewTable()
		for _, el := range gv {
			t.Append(goToLua(L, el))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, el := range gv {
			t.RawSetString(k, goToLua(L, el))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(gv))
	}
}
