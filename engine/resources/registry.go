package resources

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/ember/engine/core"
)

var errGroupUnavailable = fmt.Errorf("group-file import: %w", core.ErrUnavailable)

/** @brief The import state of a single resource path. */
type ImportState int

const (
	ImportStateUnknown ImportState = iota
	// No side-car exists (or the source itself is gone).
	ImportStateNotImported
	// Side-car present, settings hash matches, per-path validity holds.
	ImportStateImportedValid
	// Hash mismatch, source changed or the per-path check failed.
	ImportStateImportedStale
	// The last import failed fatally; needs a fix or an option change.
	ImportStateBroken
)

func (s ImportState) String() string {
	switch s {
	case ImportStateNotImported:
		return "not-imported"
	case ImportStateImportedValid:
		return "valid"
	case ImportStateImportedStale:
		return "stale"
	case ImportStateBroken:
		return "broken"
	}
	return "unknown"
}

/** @brief The answer of a path-and-type probe against the side-car. */
type PathProbe struct {
	// Resolved on-disk location of the artifact.
	Location string
	// The engine resource type string.
	ResourceType string
	// The importer that produced the artifact.
	Importer *Importer
	// Optional group file, "" when not group-imported.
	GroupFile string
	// Opaque metadata the importer persisted.
	Metadata map[string]interface{}
}

type ImporterRegistryConfig struct {
	/** @brief Directory imported artifacts are written to. */
	ArtifactDir string
}

/**
 * @brief The ordered set of importer plugins. Registration happens during
 * startup/plugin load; after Freeze the set is read-only and safe to hash.
 *
 * The registry never holds its lock across an importer invocation: it
 * resolves and selects under the lock, releases it, then imports under a
 * per-path lock so concurrent imports of the same path coalesce.
 */
type ImporterRegistry struct {
	config ImporterRegistryConfig
	mounts *MountTable

	mu sync.RWMutex
	// Kept sorted by name for deterministic hashing.
	importers []*Importer
	frozen    bool

	lockMu    sync.Mutex
	pathLocks map[uint64]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewImporterRegistry(config ImporterRegistryConfig, mounts *MountTable) *ImporterRegistry {
	return &ImporterRegistry{
		config:    config,
		mounts:    mounts,
		pathLocks: make(map[uint64]*pathLock),
	}
}

// AddImporter registers an importer. Duplicate names are rejected, as is any
// registration after the registry has been frozen.
func (r *ImporterRegistry) AddImporter(imp *Importer) error {
	if imp == nil || imp.Name == "" {
		return fmt.Errorf("importer must declare a name: %w", core.ErrInvalid)
	}
	if imp.PresetCount < 1 {
		imp.PresetCount = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen; cannot add importer %q: %w", imp.Name, core.ErrInvalid)
	}
	for _, existing := range r.importers {
		if existing.Name == imp.Name {
			return fmt.Errorf("importer %q already registered: %w", imp.Name, core.ErrInvalid)
		}
	}
	r.importers = append(r.importers, imp)
	slices.SortFunc(r.importers, func(a, b *Importer) int {
		return strings.Compare(a.Name, b.Name)
	})
	core.LogDebug("importer %q registered (%d extensions)", imp.Name, len(imp.RecognizedExtensions))
	return nil
}

// Freeze closes the registry for registration. Idempotent; hashing and
// importing freeze on first use.
func (r *ImporterRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *ImporterRegistry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *ImporterRegistry) ImporterCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.importers)
}

func (r *ImporterRegistry) ImporterByName(name string) *Importer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.importerByNameLocked(name)
}

func (r *ImporterRegistry) importerByNameLocked(name string) *Importer {
	for _, imp := range r.importers {
		if imp.Name == name {
			return imp
		}
	}
	return nil
}

// wins reports whether a beats b for a contested extension:
// priority desc, import order asc, name asc.
func wins(a, b *Importer) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.ImportOrder != b.ImportOrder {
		return a.ImportOrder < b.ImportOrder
	}
	return a.Name < b.Name
}

// ImporterForExtension selects the winning importer for a source extension
// (without the dot, case-insensitive).
func (r *ImporterRegistry) ImporterForExtension(ext string) (*Importer, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Importer
	for _, imp := range r.importers {
		if !slices.Contains(imp.RecognizedExtensions, ext) {
			continue
		}
		if best == nil || wins(imp, best) {
			best = imp
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no importer recognizes extension %q: %w", ext, core.ErrUnsupported)
	}
	return best, nil
}

// ImportersForType returns every importer producing the given resource type,
// in the same tie-break order as extension selection.
func (r *ImporterRegistry) ImportersForType(resourceType string) []*Importer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Importer
	for _, imp := range r.importers {
		if imp.ResourceType == resourceType {
			out = append(out, imp)
		}
	}
	slices.SortFunc(out, func(a, b *Importer) int {
		if wins(a, b) {
			return -1
		}
		return 1
	})
	return out
}

// ImportSettingsHash digests the whole registry: any change to an importer's
// identity or option schema changes the hash, and the name-sorted order makes
// it invariant under plugin registration order. Freezes the registry.
func (r *ImporterRegistry) ImportSettingsHash() string {
	r.Freeze()

	r.mu.RLock()
	defer r.mu.RUnlock()

	h := md5.New()
	for _, imp := range r.importers {
		io.WriteString(h, imp.Name)
		io.WriteString(h, imp.VisibleName)
		for _, ext := range imp.RecognizedExtensions {
			io.WriteString(h, ext)
		}
		io.WriteString(h, imp.ResourceType)
		io.WriteString(h, strconv.FormatFloat(imp.Priority, 'g', -1, 64))
		io.WriteString(h, strconv.Itoa(imp.ImportOrder))
		io.WriteString(h, imp.ImportSettingsString())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AreImportSettingsValid reports whether the prior import of the path is
// still current: the side-car must exist, name a registered importer, carry
// the current settings hash and pass the importer's own per-path check.
func (r *ImporterRegistry) AreImportSettingsValid(path ResourcePath) bool {
	sidecarPath, err := r.mounts.OSPath(path.ImportPath())
	if err != nil {
		return false
	}
	s, err := loadSidecar(sidecarPath)
	if err != nil {
		return false
	}
	imp := r.ImporterByName(s.Importer)
	if imp == nil {
		return false
	}
	if s.SettingsHash != r.ImportSettingsHash() {
		return false
	}
	return imp.AreImportSettingsValid(path)
}

// ProbePath answers, for an imported path: artifact location, resource type,
// responsible importer, group file and metadata.
func (r *ImporterRegistry) ProbePath(path ResourcePath) (*PathProbe, error) {
	sidecarPath, err := r.mounts.OSPath(path.ImportPath())
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}
	s, err := loadSidecar(sidecarPath)
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}
	return &PathProbe{
		Location:     s.Dest,
		ResourceType: s.ResourceType,
		Importer:     r.ImporterByName(s.Importer),
		GroupFile:    s.GroupFile,
		Metadata:     s.Metadata,
	}, nil
}

// ImportState probes the per-resource state machine.
func (r *ImporterRegistry) ImportState(path ResourcePath) ImportState {
	sourcePath, err := r.mounts.OSPath(path)
	if err != nil {
		return ImportStateUnknown
	}
	if _, err := os.Stat(sourcePath); err != nil {
		// A deleted source drops back to not-imported regardless of the
		// side-car left behind.
		return ImportStateNotImported
	}

	sidecarPath, err := r.mounts.OSPath(path.ImportPath())
	if err != nil {
		return ImportStateUnknown
	}
	s, err := loadSidecar(sidecarPath)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ImportStateNotImported
		}
		// Malformed side-car: recover locally by reimporting.
		return ImportStateImportedStale
	}
	if s.Broken {
		return ImportStateBroken
	}
	if !r.AreImportSettingsValid(path) {
		return ImportStateImportedStale
	}
	if md5sum, err := fileMD5(sourcePath); err != nil || md5sum != s.SourceMD5 {
		return ImportStateImportedStale
	}
	return ImportStateImportedValid
}

// Import runs the winning importer for the path and persists the side-car.
// nil options select the default preset. Concurrent imports of the same path
// are coalesced under a per-path lock; the registry lock is never held while
// the importer runs.
func (r *ImporterRegistry) Import(path ResourcePath, options map[string]interface{}) (*Sidecar, error) {
	r.Freeze()

	imp, err := r.ImporterForExtension(path.Extension())
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}

	sourcePath, err := r.mounts.OSPath(path)
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, core.NewResourceError(path.String(), fmt.Errorf("source missing: %w", core.ErrNotFound))
	}

	if options == nil {
		options = DefaultOptions(imp, 0)
	}

	lock := r.acquirePathLock(path)
	defer r.releasePathLock(path, lock)

	savePath := r.savePathFor(path)
	clock := core.NewClock()
	clock.Start()
	output, err := imp.Import(sourcePath, savePath, options)
	clock.Update()
	clock.Stop()

	if err != nil {
		core.MetricsImportFailed()
		if errors.Is(err, core.ErrMissingDependencies) {
			// Retryable: leave any previous side-car untouched.
			return nil, core.NewResourceError(path.String(), err)
		}
		// Fatal: persist the broken state so probes report it.
		broken := &Sidecar{
			Version:  SidecarVersion,
			Importer: imp.Name,
			Broken:   true,
			Options:  options,
		}
		if sidecarPath, serr := r.mounts.OSPath(path.ImportPath()); serr == nil {
			if werr := broken.save(sidecarPath); werr != nil {
				core.LogError("failed to persist broken state for %s: %v", path, werr)
			}
		}
		core.EventFire(core.EVENT_CODE_RESOURCE_IMPORT_FAILED, r, core.EventContext{Path: path.String(), Err: err})
		return nil, core.NewResourceError(path.String(), fmt.Errorf("%w: %w", core.ErrFatal, err))
	}

	sourceMD5, err := fileMD5(sourcePath)
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}

	s := &Sidecar{
		Version:       SidecarVersion,
		Importer:      imp.Name,
		ResourceType:  imp.ResourceType,
		SourceMD5:     sourceMD5,
		SettingsHash:  r.ImportSettingsHash(),
		ValidityToken: imp.ImportSettingsString(),
		Dest:          savePath + "." + imp.SaveExtension,
		Options:       options,
	}
	if output != nil {
		s.PlatformVariants = output.PlatformVariants
		s.GeneratedFiles = output.GeneratedFiles
		s.Metadata = output.Metadata
	}
	if imp.OptionGroupFile != "" {
		s.GroupFile = imp.OptionGroupFile
	}

	sidecarPath, err := r.mounts.OSPath(path.ImportPath())
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}
	if err := s.save(sidecarPath); err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}

	core.MetricsImportCompleted(clock.ElapsedMS())
	core.EventFire(core.EVENT_CODE_RESOURCE_IMPORTED, r, core.EventContext{Path: path.String()})
	core.LogDebug("imported %s with %q -> %s", path, imp.Name, s.Dest)
	return s, nil
}

// ImportIfNeeded imports unless the current state is already valid.
func (r *ImporterRegistry) ImportIfNeeded(path ResourcePath, options map[string]interface{}) (*Sidecar, error) {
	if r.ImportState(path) == ImportStateImportedValid {
		core.MetricsImportSkipped()
		sidecarPath, err := r.mounts.OSPath(path.ImportPath())
		if err != nil {
			return nil, core.NewResourceError(path.String(), err)
		}
		return loadSidecar(sidecarPath)
	}
	return r.Import(path, options)
}

// ImportGroupFile dispatches a many-to-one import to the importer that owns
// the group file. Importers without group support surface ErrUnavailable.
func (r *ImporterRegistry) ImportGroupFile(groupFile ResourcePath, sources map[string]map[string]interface{}) error {
	r.mu.RLock()
	var owner *Importer
	for _, imp := range r.importers {
		if imp.OptionGroupFile != "" && imp.OptionGroupFile == groupFile.Leaf() {
			owner = imp
			break
		}
	}
	r.mu.RUnlock()

	if owner == nil {
		return core.NewResourceError(groupFile.String(), errGroupUnavailable)
	}
	return owner.ImportGroupFile(groupFile, sources)
}

// savePathFor returns the artifact destination without extension; the
// importer appends its save extension. The path hash keeps artifacts of
// equally named sources in different directories apart.
func (r *ImporterRegistry) savePathFor(path ResourcePath) string {
	leaf := path.Leaf()
	if i := strings.LastIndexByte(leaf, '.'); i > 0 {
		leaf = leaf[:i]
	}
	return filepath.Join(r.config.ArtifactDir, fmt.Sprintf("%s-%016x", leaf, path.Hash()))
}

func (r *ImporterRegistry) acquirePathLock(path ResourcePath) *pathLock {
	key := path.Hash()
	r.lockMu.Lock()
	l, ok := r.pathLocks[key]
	if !ok {
		l = &pathLock{}
		r.pathLocks[key] = l
	}
	l.refs++
	r.lockMu.Unlock()

	l.mu.Lock()
	return l
}

func (r *ImporterRegistry) releasePathLock(path ResourcePath, l *pathLock) {
	l.mu.Unlock()

	key := path.Hash()
	r.lockMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.pathLocks, key)
	}
	r.lockMu.Unlock()
}
