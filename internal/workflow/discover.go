package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Discover lists demonstration directories under the demos directory whose
// names match demo.glob, sorted by name.
func (m *Manager) Discover() ([]string, error) {
	pattern := filepath.Join(m.cfg.Paths.DemosDir, m.cfg.Demo.Glob)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, match)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Sync enqueues every discovered demonstration not yet in the ledger and
// returns how many were added.
func (m *Manager) Sync(ctx context.Context) (int, error) {
	dirs, err := m.Discover()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, dir := range dirs {
		_, created, err := m.store.Enqueue(ctx, filepath.Base(dir), dir)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}
