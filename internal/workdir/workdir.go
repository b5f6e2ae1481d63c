// SPDX-License-Identifier: MPL-2.0

// Package workdir implements scoped working directories: entering a WorkDir
// swaps the process working directory and environment, resolves the
// effective attribute table from directory-local configuration sources up
// the ancestor chain, and restores everything on exit.
//
// The process working directory and environment table are process-global,
// so at most one WorkDir may be Active in a process at a time. The package
// is single-threaded by design; nothing here is safe for concurrent use.
package workdir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"workdir-cli/internal/attr"
	"workdir-cli/internal/chain"
	"workdir-cli/internal/luacfg"
	"workdir-cli/internal/shellrun"
	"workdir-cli/pkg/workdirfile"
)

// State is the lifecycle state of a WorkDir.
type State int

const (
	// StateUnentered means the context has not been entered yet.
	StateUnentered State = iota
	// StateActive means the process cwd and environment belong to this
	// WorkDir until Exit.
	StateActive
	// StateExited means the context was exited; the instance cannot be
	// entered again.
	StateExited
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnentered:
		return "unentered"
	case StateActive:
		return "active"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// InvalidStateError reports a lifecycle misuse, such as entering an
// already-exited WorkDir. The table and overlay are computed once per enter;
// re-entry is unsupported.
type InvalidStateError struct {
	// Op is the attempted operation.
	Op string
	// State is the state the WorkDir was in.
	State State
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a %s workdir", e.Op, e.State)
}

// options collects constructor settings.
type options struct {
	mkdir         bool
	environment   map[string]string
	codeFiles     []string
	dataFiles     []string
	codeRecursion int
	dataRecursion int
	logFilename   string
	consoleLevel  log.Level
	fileLevel     log.Level
	consoleWriter io.Writer
}

func defaultOptions() options {
	return options{
		codeFiles:     []string{luacfg.DefaultName},
		dataFiles:     []string{workdirfile.DefaultName},
		codeRecursion: -1,
		dataRecursion: -1,
		logFilename:   "workdir.log",
		consoleLevel:  log.InfoLevel,
		fileLevel:     log.DebugLevel,
		consoleWriter: os.Stderr,
	}
}

// Option configures a WorkDir at construction.
type Option func(*options)

// WithMkDir creates the target directory when it does not exist.
func WithMkDir() Option {
	return func(o *options) { o.mkdir = true }
}

// WithEnvironment sets constructor-supplied environment entries. They are
// applied inside the context and always win over same-named entries from
// data-configuration files.
func WithEnvironment(env map[string]string) Option {
	return func(o *options) { o.environment = env }
}

// WithCodeFiles overrides the code-configuration filenames.
func WithCodeFiles(names ...string) Option {
	return func(o *options) { o.codeFiles = names }
}

// WithDataFiles overrides the data-configuration filenames.
func WithDataFiles(names ...string) Option {
	return func(o *options) { o.dataFiles = names }
}

// WithCodeRecursion limits code-source loading to n parent levels above the
// target; -1 recurses to the filesystem root.
func WithCodeRecursion(n int) Option {
	return func(o *options) { o.codeRecursion = n }
}

// WithDataRecursion is the data-source counterpart of WithCodeRecursion.
func WithDataRecursion(n int) Option {
	return func(o *options) { o.dataRecursion = n }
}

// WithLogFilename overrides the log file name created in the target
// directory.
func WithLogFilename(name string) Option {
	return func(o *options) { o.logFilename = name }
}

// WithLogLevels sets the console and file sink levels.
func WithLogLevels(console, file log.Level) Option {
	return func(o *options) {
		o.consoleLevel = console
		o.fileLevel = file
	}
}

// WithConsoleWriter redirects the console sink, primarily for tests.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.consoleWriter = w }
}

// WorkDir is one resolved working directory: the effective attribute table
// plus the scoped cwd/environment swap.
type WorkDir struct {
	path  string
	nodes []chain.Node
	state State
	opts  options

	resolved bool
	table    *attr.Table
	overlay  []envEntry
	sources  []*luacfg.Source

	prevCwd string
	prevEnv map[string]string

	sinks *logSinks
}

// New constructs an unentered WorkDir for dir ("" means the current
// directory). The path is resolved eagerly; attribute resolution happens on
// Enter (or on first programmatic access).
func New(dir string, opts ...Option) (*WorkDir, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if dir == "" {
		dir = "."
	}
	if o.mkdir {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, &chain.InvalidPathError{Path: dir, Reason: "cannot resolve absolute path", Err: err}
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			return nil, &chain.InvalidPathError{Path: abs, Reason: "exists and is a file"}
		case os.IsNotExist(err):
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return nil, &chain.InvalidPathError{Path: abs, Reason: "cannot create directory", Err: err}
			}
		}
	}

	abs, nodes, err := chain.Resolve(dir)
	if err != nil {
		return nil, err
	}

	return &WorkDir{path: abs, nodes: nodes, opts: o}, nil
}

// Path returns the absolute path of the working directory.
func (w *WorkDir) Path() string {
	return w.path
}

// String returns the absolute path.
func (w *WorkDir) String() string {
	return w.path
}

// State returns the lifecycle state.
func (w *WorkDir) State() State {
	return w.state
}

// Resolve loads the configuration sources along the ancestor chain and
// merges them into the effective attribute table and environment overlay.
// It is idempotent; Enter calls it implicitly. A loading error in any
// ancestor aborts the whole resolution: partial tables are never exposed.
func (w *WorkDir) Resolve() error {
	if w.resolved {
		return nil
	}

	maxDepth := w.nodes[len(w.nodes)-1].Depth
	var contributions []attr.Contribution
	var overlay []envEntry

	for _, node := range w.nodes {
		c := attr.Contribution{Dir: node.Path, Depth: node.Depth}

		if chain.WithinRecursion(node.Depth, maxDepth, w.opts.codeRecursion) {
			for _, name := range w.opts.codeFiles {
				path := filepath.Join(node.Path, name)
				if !fileExists(path) {
					continue
				}
				src, err := luacfg.Load(path, node.Depth)
				if err != nil {
					w.closeSources()
					return err
				}
				w.sources = append(w.sources, src)
				c.Code = append(c.Code, src.Definitions()...)
			}
		}

		if chain.WithinRecursion(node.Depth, maxDepth, w.opts.dataRecursion) {
			for _, name := range w.opts.dataFiles {
				path := filepath.Join(node.Path, name)
				doc, err := workdirfile.Load(path, w.path, node.Path)
				if err != nil {
					w.closeSources()
					return err
				}
				if doc == nil {
					continue
				}
				c.Data = append(c.Data, documentDefinitions(doc, node.Depth, path)...)
				overlay = append(overlay, documentEnv(doc)...)
			}
		}

		contributions = append(contributions, c)
	}

	// Constructor-supplied entries come last so they win on collision.
	for _, k := range sortedKeys(w.opts.environment) {
		overlay = append(overlay, envEntry{Name: k, Value: w.opts.environment[k]})
	}

	w.table = attr.Merge(w.path, contributions)
	w.overlay = overlay
	w.resolved = true
	return nil
}

// documentDefinitions converts a data document into definitions: attributes
// as values, commands as command shortcuts with their help text split off.
func documentDefinitions(doc *workdirfile.Document, depth int, source string) []attr.Definition {
	defs := make([]attr.Definition, 0, len(doc.Attributes)+len(doc.Commands))
	for _, name := range sortedKeys(doc.Attributes) {
		defs = append(defs, attr.Definition{
			Name:   name,
			Kind:   attr.KindValue,
			Depth:  depth,
			Source: source,
			Value:  doc.Attributes[name],
		})
	}
	for _, name := range sortedKeys(doc.Commands) {
		tmpl, help := workdirfile.SplitCommand(doc.Commands[name])
		defs = append(defs, attr.Definition{
			Name:    name,
			Kind:    attr.KindCommand,
			Depth:   depth,
			Source:  source,
			Command: &attr.Command{Template: tmpl, Help: help},
		})
	}
	return defs
}

func documentEnv(doc *workdirfile.Document) []envEntry {
	entries := make([]envEntry, 0, len(doc.Environment))
	for _, k := range sortedKeys(doc.Environment) {
		entries = append(entries, envEntry{Name: k, Value: doc.Environment[k]})
	}
	return entries
}

// Table returns the effective attribute table, resolving first if needed.
func (w *WorkDir) Table() (*attr.Table, error) {
	if err := w.Resolve(); err != nil {
		return nil, err
	}
	return w.table, nil
}

// Lookup implements attr.Instance. The interface cannot carry a resolution
// error, so a failing Resolve is logged and reported as a missing attribute;
// callables only ever receive an instance after a successful Resolve, which
// makes that branch unreachable in practice.
func (w *WorkDir) Lookup(name string) (attr.Definition, bool) {
	if err := w.Resolve(); err != nil {
		w.Log(log.ErrorLevel, "resolving attribute table", "attr", name, "err", err)
		return attr.Definition{}, false
	}
	return w.table.Lookup(name)
}

// Attr resolves an attribute by name. Values resolve to their payload;
// callables and command shortcuts resolve to bound invocation closures.
func (w *WorkDir) Attr(name string) (any, error) {
	if err := w.Resolve(); err != nil {
		return nil, err
	}
	d, err := w.table.Get(name)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case attr.KindCallable:
		return func(args map[string]any) (any, error) {
			return d.Callable.Fn(w, args)
		}, nil
	case attr.KindCommand:
		tmpl := d.Command.Template
		return func(map[string]any) (any, error) {
			return w.runCommand(tmpl)
		}, nil
	default:
		return d.Value, nil
	}
}

// Call invokes a callable or command-shortcut attribute. For instance-bound
// callables the WorkDir injects itself as the reserved first argument;
// remaining arguments are supplied by name in args.
func (w *WorkDir) Call(name string, args map[string]any) (any, error) {
	if err := w.Resolve(); err != nil {
		return nil, err
	}
	return w.table.Invoke(name, w, args, w.runCommand)
}

// runCommand executes a command-shortcut template in this directory with the
// effective environment overlay applied.
func (w *WorkDir) runCommand(tmpl string) (any, error) {
	env := snapshotEnv()
	for _, e := range w.overlay {
		env[e.Name] = e.Value
	}
	err := shellrun.Run(context.Background(), shellrun.Request{
		Template: tmpl,
		Dir:      w.path,
		Env:      env,
	})
	return nil, err
}

// Enter transitions Unentered -> Active: it snapshots the current cwd and
// the full environment, changes into the target directory, resolves the
// attribute table, applies the environment overlay, and opens the logging
// sinks. On any failure the snapshots are rolled back before returning.
func (w *WorkDir) Enter() error {
	if w.state != StateUnentered {
		return &InvalidStateError{Op: "enter", State: w.state}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("reading current directory: %w", err)
	}
	w.prevCwd = cwd
	w.prevEnv = snapshotEnv()

	if err := os.Chdir(w.path); err != nil {
		return fmt.Errorf("changing into %s: %w", w.path, err)
	}

	if err := w.Resolve(); err != nil {
		_ = os.Chdir(w.prevCwd)
		return err
	}

	for _, e := range w.overlay {
		if err := os.Setenv(e.Name, e.Value); err != nil {
			_ = restoreEnv(w.prevEnv)
			_ = os.Chdir(w.prevCwd)
			return fmt.Errorf("setting %s: %w", e.Name, err)
		}
	}

	sinks, err := openSinks(w.path, w.opts)
	if err != nil {
		_ = restoreEnv(w.prevEnv)
		_ = os.Chdir(w.prevCwd)
		return err
	}
	w.sinks = sinks

	w.state = StateActive
	w.Log(log.DebugLevel, "entered workdir", "path", w.path, "attributes", w.table.Len())
	return nil
}

// Exit transitions Active -> Exited. The pre-entry cwd and the full
// environment snapshot are restored on every path; cause, when non-nil, is
// the error raised inside the context and is logged before restoration.
// A restoration failure is returned but must not mask cause, which stays
// with the caller.
func (w *WorkDir) Exit(cause error) error {
	if w.state != StateActive {
		return &InvalidStateError{Op: "exit", State: w.state}
	}

	if cause != nil {
		w.Log(log.ErrorLevel, "error inside workdir context", "err", cause)
	}
	w.Log(log.DebugLevel, "exiting workdir", "path", w.path)

	var restoreErr error
	if err := os.Chdir(w.prevCwd); err != nil {
		restoreErr = fmt.Errorf("restoring working directory %s: %w", w.prevCwd, err)
	}
	if err := restoreEnv(w.prevEnv); err != nil && restoreErr == nil {
		restoreErr = err
	}

	if w.sinks != nil {
		if err := w.sinks.close(); err != nil && restoreErr == nil {
			restoreErr = err
		}
		w.sinks = nil
	}
	w.closeSources()

	w.state = StateExited
	return restoreErr
}

// Do runs fn inside the context: Enter, fn, Exit. Restoration is guaranteed
// on every path out of fn, including panics, which are re-raised after
// restoration. A restoration failure is returned only when fn succeeded;
// it never masks fn's error.
func (w *WorkDir) Do(fn func(*WorkDir) error) (err error) {
	if enterErr := w.Enter(); enterErr != nil {
		return enterErr
	}
	defer func() {
		r := recover()
		cause := err
		if r != nil {
			cause = fmt.Errorf("panic in workdir context: %v", r)
		}
		exitErr := w.Exit(cause)
		if exitErr != nil && err == nil && r == nil {
			err = exitErr
		}
		if r != nil {
			panic(r)
		}
	}()
	return fn(w)
}

// Join returns the absolute path of elem inside the working directory.
func (w *WorkDir) Join(elem ...string) string {
	parts := append([]string{w.path}, elem...)
	return filepath.Join(parts...)
}

// Files returns the names of the regular files in the working directory.
func (w *WorkDir) Files() ([]string, error) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Len returns the number of entries (files and subdirectories) in the
// working directory.
func (w *WorkDir) Len() (int, error) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Log writes to both sinks: the console at its configured level and the log
// file in the target directory. Sinks open lazily when logging before Enter.
func (w *WorkDir) Log(level log.Level, msg string, keyvals ...any) {
	if w.sinks == nil {
		sinks, err := openSinks(w.path, w.opts)
		if err != nil {
			return
		}
		w.sinks = sinks
	}
	w.sinks.log(level, msg, keyvals...)
}

// Close releases the loaded configuration sources of a WorkDir that was
// resolved but never entered (e.g. a probe used only to inspect the table).
// Exit performs the same cleanup for entered instances.
func (w *WorkDir) Close() {
	w.closeSources()
	if w.sinks != nil {
		_ = w.sinks.close()
		w.sinks = nil
	}
}

func (w *WorkDir) closeSources() {
	for _, s := range w.sources {
		s.Close()
	}
	w.sources = nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
