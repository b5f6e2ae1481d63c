// SPDX-License-Identifier: MPL-2.0

package chain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestResolve_AncestorChain verifies the chain runs from the filesystem root
// down to the target, with depths counting up from zero.
func TestResolve_AncestorChain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	abs, nodes, err := Resolve(sub)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	if len(nodes) == 0 {
		t.Fatal("Resolve() returned empty chain")
	}
	if nodes[0].Depth != 0 {
		t.Errorf("first node depth = %d, want 0", nodes[0].Depth)
	}
	if nodes[0].Path != filepath.Dir(nodes[0].Path) {
		t.Errorf("first node %q is not the filesystem root", nodes[0].Path)
	}

	last := nodes[len(nodes)-1]
	if last.Path != abs {
		t.Errorf("last node = %q, want target %q", last.Path, abs)
	}
	if last.Depth != len(nodes)-1 {
		t.Errorf("last node depth = %d, want %d", last.Depth, len(nodes)-1)
	}

	for i := 1; i < len(nodes); i++ {
		if filepath.Dir(nodes[i].Path) != nodes[i-1].Path {
			t.Errorf("node %d (%q) is not a child of node %d (%q)",
				i, nodes[i].Path, i-1, nodes[i-1].Path)
		}
	}
}

// TestResolve_MissingPath verifies that a nonexistent target fails with
// InvalidPathError.
func TestResolve_MissingPath(t *testing.T) {
	t.Parallel()

	_, _, err := Resolve(filepath.Join(t.TempDir(), "nope"))
	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Resolve() error = %v, want *InvalidPathError", err)
	}
}

// TestResolve_FileNotDirectory verifies that a regular file is rejected.
func TestResolve_FileNotDirectory(t *testing.T) {
	t.Parallel()

	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Resolve(f)
	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Resolve() error = %v, want *InvalidPathError", err)
	}
}

// TestWithinRecursion covers the recursion eligibility rule.
func TestWithinRecursion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		depth     int
		maxDepth  int
		recursion int
		want      bool
	}{
		{"unlimited loads root", 0, 5, -1, true},
		{"zero loads target only", 5, 5, 0, true},
		{"zero excludes parent", 4, 5, 0, false},
		{"one includes parent", 4, 5, 1, true},
		{"one excludes grandparent", 3, 5, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := WithinRecursion(tt.depth, tt.maxDepth, tt.recursion); got != tt.want {
				t.Errorf("WithinRecursion(%d, %d, %d) = %v, want %v",
					tt.depth, tt.maxDepth, tt.recursion, got, tt.want)
			}
		})
	}
}
