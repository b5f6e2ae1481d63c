// SPDX-License-Identifier: MPL-2.0

// Package chain resolves a requested directory to its absolute path and the
// ordered list of ancestor directories from the filesystem root down to the
// target. It has no side effects; directory creation is the caller's choice.
package chain

import (
	"fmt"
	"os"
	"path/filepath"
)

// Node is one directory on the ancestor chain.
type Node struct {
	// Path is the absolute directory path.
	Path string
	// Depth is the ordinal depth from the filesystem root, root = 0.
	Depth int
}

// InvalidPathError reports a target that does not exist or is not a
// directory.
type InvalidPathError struct {
	// Path is the requested directory.
	Path string
	// Reason describes why resolution failed.
	Reason string
	// Err is the underlying OS error, if any.
	Err error
}

// Error implements the error interface.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid workdir path %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *InvalidPathError) Unwrap() error {
	return e.Err
}

// Resolve turns dir (absolute, relative, or "" meaning the current
// directory) into an absolute path plus the ancestor chain root..target.
func Resolve(dir string) (string, []Node, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, &InvalidPathError{Path: dir, Reason: "cannot resolve absolute path", Err: err}
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, &InvalidPathError{Path: abs, Reason: "does not exist", Err: err}
	}
	if !info.IsDir() {
		return "", nil, &InvalidPathError{Path: abs, Reason: "not a directory"}
	}

	return abs, Ancestors(abs), nil
}

// Ancestors returns the chain root..abs for an already-absolute directory.
func Ancestors(abs string) []Node {
	var parts []string
	cur := abs
	for {
		parts = append(parts, cur)
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	nodes := make([]Node, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		nodes = append(nodes, Node{Path: parts[i], Depth: len(parts) - 1 - i})
	}
	return nodes
}

// WithinRecursion reports whether a node at depth is eligible for source
// loading under the recursion limit: -1 loads the whole chain, 0 only the
// target, n the target plus n parent levels. maxDepth is the target's depth.
func WithinRecursion(depth, maxDepth, recursion int) bool {
	if recursion < 0 {
		return true
	}
	return maxDepth-depth <= recursion
}
