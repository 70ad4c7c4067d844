package resources

import (
	"fmt"
	"sync"
)

/**
 * @brief An ordered stack of manifest layers. Index 0 is the default
 * (project) manifest; later layers are overlays (per-user, session).
 *
 * Lookups walk the stack from the top down and return on the first hit, so a
 * later-pushed layer masks stale entries in the default manifest.
 */
type ResourceManager struct {
	mu        sync.RWMutex
	manifests []*ResourceManifest
}

func NewResourceManager(defaultManifest *ResourceManifest) *ResourceManager {
	rm := &ResourceManager{}
	if defaultManifest != nil {
		rm.manifests = append(rm.manifests, defaultManifest)
	}
	return rm
}

func (rm *ResourceManager) PushManifest(m *ResourceManifest) {
	rm.mu.Lock()
	rm.manifests = append(rm.manifests, m)
	rm.mu.Unlock()
}

func (rm *ResourceManager) PopManifest() (*ResourceManifest, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.manifests) == 0 {
		return nil, fmt.Errorf("no manifest to pop")
	}
	m := rm.manifests[len(rm.manifests)-1]
	rm.manifests = rm.manifests[:len(rm.manifests)-1]
	return m, nil
}

func (rm *ResourceManager) ManifestCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.manifests)
}

// DefaultManifest returns the bottom layer, nil when the stack is empty.
func (rm *ResourceManager) DefaultManifest() *ResourceManifest {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if len(rm.manifests) == 0 {
		return nil
	}
	return rm.manifests[0]
}

func (rm *ResourceManager) PathFromUUID(id UUID) (ResourcePath, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for i := len(rm.manifests) - 1; i >= 0; i-- {
		if path, ok := rm.manifests[i].UUIDToPath(id); ok {
			return path, true
		}
	}
	return ResourcePath{}, false
}

func (rm *ResourceManager) UUIDFromPath(path ResourcePath) (UUID, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for i := len(rm.manifests) - 1; i >= 0; i-- {
		if id, ok := rm.manifests[i].PathToUUID(path); ok {
			return id, true
		}
	}
	return UUID{}, false
}
