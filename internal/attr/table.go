// SPDX-License-Identifier: MPL-2.0

package attr

// Contribution is the loaded output of one directory on the ancestor chain:
// the definitions from its code source and from its data source, kept apart
// so the same-directory tie-break stays explicit.
type Contribution struct {
	// Dir is the absolute path of the contributing directory.
	Dir string
	// Depth is the ordinal depth from the filesystem root.
	Depth int
	// Code holds definitions from the code-configuration source.
	Code []Definition
	// Data holds definitions from the data-configuration source.
	Data []Definition
}

// Table is the effective attribute table of one resolved working directory:
// an insertion-ordered name to definition mapping with exactly one
// definition per name.
type Table struct {
	dir   string
	names []string
	defs  map[string]Definition
}

// NewTable returns an empty table for the given directory.
func NewTable(dir string) *Table {
	return &Table{dir: dir, defs: make(map[string]Definition)}
}

// Merge folds contributions into an effective table. Contributions must be
// ordered root to target (shallow to deep); each definition overwrites any
// earlier one with the same name, so the deepest definition wins. Within a
// single directory the data source is applied after the code source: a data
// definition of a name deliberately overrides a code definition of the same
// name in the same directory. Values, callables, and command shortcuts share
// one namespace and follow the same rule.
func Merge(dir string, contributions []Contribution) *Table {
	t := NewTable(dir)
	for _, c := range contributions {
		for _, d := range c.Code {
			t.set(d)
		}
		for _, d := range c.Data {
			t.set(d)
		}
	}
	return t
}

func (t *Table) set(d Definition) {
	if _, ok := t.defs[d.Name]; !ok {
		t.names = append(t.names, d.Name)
	}
	t.defs[d.Name] = d
}

// Dir returns the directory the table was resolved for.
func (t *Table) Dir() string {
	return t.dir
}

// Len returns the number of effective definitions.
func (t *Table) Len() int {
	return len(t.names)
}

// Names returns the attribute names in first-seen order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Lookup returns the effective definition for name.
func (t *Table) Lookup(name string) (Definition, bool) {
	d, ok := t.defs[name]
	return d, ok
}

// Get returns the effective definition for name, or a NotFoundError.
func (t *Table) Get(name string) (Definition, error) {
	d, ok := t.defs[name]
	if !ok {
		return Definition{}, &NotFoundError{Name: name, Dir: t.dir}
	}
	return d, nil
}

// Value resolves name to its plain data payload. Callables and command
// shortcuts resolve to their Definition so callers can inspect them.
func (t *Table) Value(name string) (any, error) {
	d, err := t.Get(name)
	if err != nil {
		return nil, err
	}
	if d.Kind == KindValue {
		return d.Value, nil
	}
	return d, nil
}

// Invoke dispatches a call over the definition variant. Values are not
// callable. Command shortcuts are executed through runCommand, supplied by
// the owner (the context manager wires in its shell runner). Callables run
// through their CallFunc with the instance bound when declared.
func (t *Table) Invoke(
	name string,
	inst Instance,
	args map[string]any,
	runCommand func(tmpl string) (any, error),
) (any, error) {
	d, err := t.Get(name)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case KindCallable:
		return d.Callable.Fn(inst, args)
	case KindCommand:
		if runCommand == nil {
			return nil, &NotCallableError{Name: name, Kind: d.Kind}
		}
		return runCommand(d.Command.Template)
	default:
		return nil, &NotCallableError{Name: name, Kind: d.Kind}
	}
}
