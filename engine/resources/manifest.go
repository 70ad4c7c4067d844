package resources

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/ember/engine/core"
)

/**
 * @brief A single named manifest layer: a bijection between UUIDs and
 * resource paths, with an optional per-entry MD5 content hash.
 *
 * Mutations take the write lock; lookups take the read lock. The two
 * directions are kept in lockstep by removing the inverse entry before
 * every insertion.
 */
type ResourceManifest struct {
	name string

	mu         sync.RWMutex
	uuidToPath map[UUID]ResourcePath
	pathToUUID map[string]UUID
	md5s       map[UUID]string
}

type manifestEntry struct {
	UUID string `toml:"uuid"`
	Path string `toml:"path"`
	MD5  string `toml:"md5,omitempty"`
}

type manifestDocument struct {
	Name    string          `toml:"name"`
	Entries []manifestEntry `toml:"entry"`
}

func NewResourceManifest(name string) *ResourceManifest {
	return &ResourceManifest{
		name:       name,
		uuidToPath: make(map[UUID]ResourcePath),
		pathToUUID: make(map[string]UUID),
		md5s:       make(map[UUID]string),
	}
}

func (m *ResourceManifest) Name() string {
	return m.name
}

// Register upserts the (uuid, path) pair. If the UUID already maps to a
// different path, or the path to a different UUID, the stale inverse entries
// are dropped first so the bijection holds at every step.
func (m *ResourceManifest) Register(id UUID, path ResourcePath, md5 string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := path.String()
	if old, ok := m.uuidToPath[id]; ok {
		delete(m.pathToUUID, old.String())
	}
	if oldID, ok := m.pathToUUID[key]; ok {
		delete(m.uuidToPath, oldID)
		delete(m.md5s, oldID)
	}

	m.uuidToPath[id] = path
	m.pathToUUID[key] = id
	if md5 != "" {
		m.md5s[id] = md5
	} else {
		delete(m.md5s, id)
	}
}

// Unregister removes both directions. No-op if the UUID is absent.
func (m *ResourceManifest) Unregister(id UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.uuidToPath[id]
	if !ok {
		return
	}
	delete(m.pathToUUID, path.String())
	delete(m.uuidToPath, id)
	delete(m.md5s, id)
}

func (m *ResourceManifest) UUIDToPath(id UUID) (ResourcePath, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.uuidToPath[id]
	return path, ok
}

func (m *ResourceManifest) PathToUUID(path ResourcePath) (UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pathToUUID[path.String()]
	return id, ok
}

func (m *ResourceManifest) HasUUID(id UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.uuidToPath[id]
	return ok
}

func (m *ResourceManifest) HasPath(path ResourcePath) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pathToUUID[path.String()]
	return ok
}

func (m *ResourceManifest) MD5(id UUID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md5, ok := m.md5s[id]
	return md5, ok
}

func (m *ResourceManifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uuidToPath)
}

// Paths returns the registered paths sorted by their canonical string.
func (m *ResourceManifest) Paths() []ResourcePath {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ResourcePath, 0, len(m.uuidToPath))
	for _, p := range m.uuidToPath {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b ResourcePath) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// snapshot returns the entries sorted by UUID string so two manifests with
// identical contents serialise byte-identically.
func (m *ResourceManifest) snapshot() manifestDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := manifestDocument{Name: m.name}
	for id, path := range m.uuidToPath {
		doc.Entries = append(doc.Entries, manifestEntry{
			UUID: id.String(),
			Path: path.String(),
			MD5:  m.md5s[id],
		})
	}
	slices.SortFunc(doc.Entries, func(a, b manifestEntry) int {
		switch {
		case a.UUID < b.UUID:
			return -1
		case a.UUID > b.UUID:
			return 1
		}
		return 0
	})
	return doc
}

// Save writes the manifest as TOML with an atomic replace.
func (m *ResourceManifest) Save(osPath string) error {
	data, err := toml.Marshal(m.snapshot())
	if err != nil {
		return fmt.Errorf("marshal manifest %q: %w", m.name, err)
	}
	if err := atomicWriteFile(osPath, data); err != nil {
		return fmt.Errorf("save manifest %q: %w (%w)", m.name, err, core.ErrIO)
	}
	return nil
}

// LoadResourceManifest reads a manifest layer from disk. Entries with a
// malformed UUID or an empty path are skipped with a warning rather than
// failing the whole layer.
func LoadResourceManifest(osPath string) (*ResourceManifest, error) {
	data, err := os.ReadFile(osPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w (%w)", err, core.ErrIO)
	}
	var doc manifestDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w (%w)", osPath, err, core.ErrInvalid)
	}

	m := NewResourceManifest(doc.Name)
	for _, e := range doc.Entries {
		id := ParseUUID(e.UUID)
		if !id.Valid() {
			core.LogWarn("manifest %s: skipping entry with bad uuid %q", osPath, e.UUID)
			continue
		}
		path := NewResourcePath(e.Path)
		if path.IsEmpty() {
			core.LogWarn("manifest %s: skipping entry %s with empty path", osPath, e.UUID)
			continue
		}
		m.Register(id, path, e.MD5)
	}
	return m, nil
}
