// SPDX-License-Identifier: MPL-2.0

package workdir

import (
	"fmt"
	"os"
	"strings"
)

// envEntry is one overlay assignment. The overlay is ordered: data-source
// entries shallow to deep, then constructor entries, so later entries win on
// name collision.
type envEntry struct {
	Name  string
	Value string
}

// snapshotEnv copies the full process environment into a map.
func snapshotEnv() map[string]string {
	env := os.Environ()
	snapshot := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		snapshot[k] = v
	}
	return snapshot
}

// restoreEnv makes the process environment byte-identical to the snapshot:
// keys added since the snapshot are removed, changed values are reset, and
// removed keys are re-added. The first failure is reported but restoration
// continues for the remaining keys.
func restoreEnv(snapshot map[string]string) error {
	var firstErr error

	for k := range snapshotEnv() {
		if _, ok := snapshot[k]; ok {
			continue
		}
		if err := os.Unsetenv(k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unsetting %s: %w", k, err)
		}
	}

	for k, v := range snapshot {
		if cur, ok := os.LookupEnv(k); ok && cur == v {
			continue
		}
		if err := os.Setenv(k, v); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("restoring %s: %w", k, err)
		}
	}

	return firstErr
}
