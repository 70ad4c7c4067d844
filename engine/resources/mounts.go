package resources

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spaghettifunk/ember/engine/core"
)

/**
 * @brief Maps mountpoints to OS directories so resource paths can be
 * resolved for disk I/O. "fs:" is always available and maps to the OS root.
 */
type MountTable struct {
	mu    sync.RWMutex
	roots map[string]string
}

func NewMountTable() *MountTable {
	return &MountTable{roots: make(map[string]string)}
}

// RegisterMount binds a mountpoint (trailing ':' required) to an OS
// directory. Re-registering replaces the previous root.
func (mt *MountTable) RegisterMount(mountpoint, dir string) error {
	if len(mountpoint) < 2 || mountpoint[len(mountpoint)-1] != ':' {
		return fmt.Errorf("mountpoint %q must end in ':': %w", mountpoint, core.ErrInvalid)
	}
	mt.mu.Lock()
	mt.roots[mountpoint] = dir
	mt.mu.Unlock()
	return nil
}

// OSPath resolves a resource path to an absolute OS path. Relative paths are
// resolved against the "res:" root.
func (mt *MountTable) OSPath(rp ResourcePath) (string, error) {
	mountpoint := rp.Mountpoint()
	if mountpoint == "" {
		mountpoint = MountRes
	}
	if mountpoint == MountFS {
		return "/" + filepath.Join(rp.Components()...), nil
	}

	mt.mu.RLock()
	root, ok := mt.roots[mountpoint]
	mt.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("mountpoint %q is not registered: %w", mountpoint, core.ErrNotFound)
	}
	return filepath.Join(append([]string{root}, rp.Components()...)...), nil
}

// ResourcePathFor maps an OS path under a registered root back to a mounted
// resource path. Returns false when no root contains it.
func (mt *MountTable) ResourcePathFor(osPath string) (ResourcePath, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	for mountpoint, root := range mt.roots {
		rel, err := filepath.Rel(root, osPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		return NewResourcePath(rel).WithMountpoint(mountpoint), true
	}
	return ResourcePath{}, false
}
