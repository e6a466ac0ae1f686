package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is a scratch directory for one archive write. Its name is
// "<demo>-<uuid>" so stale or orphaned workspaces can be traced back to their
// demonstration.
type Workspace struct {
	Demo string
	Dir  string
}

// NewWorkspace creates a fresh workspace under stagingDir.
func NewWorkspace(stagingDir, demo string) (*Workspace, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, fmt.Errorf("staging directory not configured")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir := filepath.Join(stagingDir, demo+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Demo: demo, Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Remove deletes the workspace and everything inside it.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

// DemoFromDir recovers the demonstration name from a workspace directory name.
// Names that do not end in a UUID are returned unchanged.
func DemoFromDir(name string) string {
	const uuidLen = 36
	if len(name) <= uuidLen+1 || name[len(name)-uuidLen-1] != '-' {
		return name
	}
	if _, err := uuid.Parse(name[len(name)-uuidLen:]); err != nil {
		return name
	}
	return name[:len(name)-uuidLen-1]
}
