// SPDX-License-Identifier: MPL-2.0

package attr

import (
	"errors"
	"testing"
)

func valueDef(name string, depth int, v any) Definition {
	return Definition{Name: name, Kind: KindValue, Depth: depth, Value: v}
}

// TestMerge_DeepestWins verifies the shadowing law: the definition from the
// deepest directory defining a name is the effective one.
func TestMerge_DeepestWins(t *testing.T) {
	t.Parallel()

	table := Merge("/r/sub", []Contribution{
		{Dir: "/r", Depth: 0, Code: []Definition{valueDef("a_number", 0, 1), valueDef("only_root", 0, "x")}},
		{Dir: "/r/sub", Depth: 1, Code: []Definition{valueDef("a_number", 1, 2)}},
	})

	v, err := table.Value("a_number")
	if err != nil {
		t.Fatalf("Value(a_number) unexpected error: %v", err)
	}
	if v != 2 {
		t.Errorf("a_number = %v, want 2 (deepest definition)", v)
	}

	v, err = table.Value("only_root")
	if err != nil {
		t.Fatalf("Value(only_root) unexpected error: %v", err)
	}
	if v != "x" {
		t.Errorf("only_root = %v, want inherited %q", v, "x")
	}
}

// TestMerge_DataBeatsCodeSameDirectory verifies the explicit same-directory
// tie-break: a data-source definition overrides a code-source definition of
// the same name from the same directory.
func TestMerge_DataBeatsCodeSameDirectory(t *testing.T) {
	t.Parallel()

	table := Merge("/r", []Contribution{
		{
			Dir:  "/r",
			Code: []Definition{valueDef("x", 0, "from-code")},
			Data: []Definition{valueDef("x", 0, "from-data")},
		},
	})

	v, err := table.Value("x")
	if err != nil {
		t.Fatalf("Value(x) unexpected error: %v", err)
	}
	if v != "from-data" {
		t.Errorf("x = %v, want %q", v, "from-data")
	}
}

// TestMerge_KindCrossesDepth verifies pure depth precedence with no type
// reconciliation: a value at one depth shadows a callable at another.
func TestMerge_KindCrossesDepth(t *testing.T) {
	t.Parallel()

	callable := Definition{
		Name: "thing", Kind: KindCallable, Depth: 0,
		Callable: &Callable{Fn: func(Instance, map[string]any) (any, error) { return "called", nil }},
	}
	table := Merge("/r/sub", []Contribution{
		{Dir: "/r", Depth: 0, Code: []Definition{callable}},
		{Dir: "/r/sub", Depth: 1, Data: []Definition{valueDef("thing", 1, 7)}},
	})

	d, err := table.Get("thing")
	if err != nil {
		t.Fatalf("Get(thing) unexpected error: %v", err)
	}
	if d.Kind != KindValue {
		t.Errorf("thing kind = %s, want value (deepest wins regardless of kind)", d.Kind)
	}
}

// TestTable_GetMissing verifies undefined names fail with NotFoundError.
func TestTable_GetMissing(t *testing.T) {
	t.Parallel()

	table := Merge("/r", nil)
	_, err := table.Get("ghost")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Get(ghost) error = %v, want *NotFoundError", err)
	}
	if notFound.Name != "ghost" {
		t.Errorf("NotFoundError.Name = %q, want %q", notFound.Name, "ghost")
	}
}

// TestTable_InvokeDispatch verifies the tagged-variant dispatch: callables
// run their CallFunc, command shortcuts run through the supplied runner, and
// values are not callable.
func TestTable_InvokeDispatch(t *testing.T) {
	t.Parallel()

	table := Merge("/r", []Contribution{{
		Dir: "/r",
		Code: []Definition{
			valueDef("num", 0, 1),
			{
				Name: "fn", Kind: KindCallable,
				Callable: &Callable{Fn: func(_ Instance, args map[string]any) (any, error) {
					return args["x"], nil
				}},
			},
		},
		Data: []Definition{
			{Name: "sh", Kind: KindCommand, Command: &Command{Template: "echo hi"}},
		},
	}})

	res, err := table.Invoke("fn", nil, map[string]any{"x": 42}, nil)
	if err != nil {
		t.Fatalf("Invoke(fn) unexpected error: %v", err)
	}
	if res != 42 {
		t.Errorf("Invoke(fn) = %v, want 42", res)
	}

	var gotTemplate string
	_, err = table.Invoke("sh", nil, nil, func(tmpl string) (any, error) {
		gotTemplate = tmpl
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Invoke(sh) unexpected error: %v", err)
	}
	if gotTemplate != "echo hi" {
		t.Errorf("command runner got %q, want %q", gotTemplate, "echo hi")
	}

	_, err = table.Invoke("num", nil, nil, nil)
	var notCallable *NotCallableError
	if !errors.As(err, &notCallable) {
		t.Fatalf("Invoke(num) error = %v, want *NotCallableError", err)
	}
}

// TestTable_NamesOrder verifies first-seen ordering survives overwrites.
func TestTable_NamesOrder(t *testing.T) {
	t.Parallel()

	table := Merge("/r/sub", []Contribution{
		{Dir: "/r", Code: []Definition{valueDef("b", 0, 1), valueDef("a", 0, 1)}},
		{Dir: "/r/sub", Code: []Definition{valueDef("a", 1, 2), valueDef("c", 1, 3)}},
	})

	want := []string{"b", "a", "c"}
	got := table.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
