package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/ember/engine/config"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/resources"
	"github.com/spaghettifunk/ember/engine/resources/importers"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

/**
 * @brief A loaded resource artifact, the runtime-facing result of Load.
 */
type Artifact struct {
	Path     resources.ResourcePath
	Type     string
	Location string
	Data     []byte
	Metadata map[string]interface{}
}

/**
 * @brief An engine session owning the resource subsystem: mount table,
 * manifest stack, importer registry and source watcher. The only surface
 * consumers need is Resolve(uuid) and Load(path).
 */
type Engine struct {
	currentStage Stage
	config       *config.ProjectConfig

	mounts   *resources.MountTable
	manager  *resources.ResourceManager
	registry *resources.ImporterRegistry
	watcher  *resources.SourceWatcher

	// Absolute layer file paths, same order as the manifest stack.
	layerPaths []string
}

func New(cfg *config.ProjectConfig) (*Engine, error) {
	core.SetLogLevel(cfg.Level())

	mounts := resources.NewMountTable()
	if err := mounts.RegisterMount(resources.MountRes, cfg.AssetDir()); err != nil {
		return nil, err
	}
	if err := mounts.RegisterMount(resources.MountUser, filepath.Join(cfg.Root, ".ember", "user")); err != nil {
		return nil, err
	}
	for _, m := range cfg.Mounts {
		if err := mounts.RegisterMount(m.Mountpoint, m.Dir); err != nil {
			core.LogError(err.Error())
			return nil, err
		}
	}

	registry := resources.NewImporterRegistry(resources.ImporterRegistryConfig{
		ArtifactDir: cfg.ArtifactPath(),
	}, mounts)

	watcher, err := resources.NewSourceWatcher(resources.MountRes, cfg.AssetDir())
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		mounts:       mounts,
		manager:      resources.NewResourceManager(nil),
		registry:     registry,
		watcher:      watcher,
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot be initialized from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	core.EventSystemInitialize()
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	for _, dir := range []string{e.config.AssetDir(), e.config.ArtifactPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w (%w)", dir, err, core.ErrIO)
		}
	}

	// Built-in importers. Plugins register theirs before the first import
	// freezes the registry.
	builtins := []*resources.Importer{
		importers.NewImageImporter(),
		importers.NewBitmapFontImporter(),
		importers.NewTextImporter(),
	}
	for _, imp := range builtins {
		if err := e.registry.AddImporter(imp); err != nil {
			return err
		}
	}

	if err := e.loadManifestLayers(); err != nil {
		return err
	}

	if err := e.watcher.Start(); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("Resource subsystem initialized for project %q (%d manifest layers).",
		e.config.Name, e.manager.ManifestCount())
	return nil
}

// loadManifestLayers reads the configured layer files, bottom first. A
// missing bottom layer starts empty; missing overlays are skipped.
func (e *Engine) loadManifestLayers() error {
	for i, layer := range e.config.ManifestLayers {
		layerPath := filepath.Join(e.config.Root, layer)
		m, err := resources.LoadResourceManifest(layerPath)
		if err != nil {
			if i == 0 {
				m = resources.NewResourceManifest("default")
			} else {
				core.LogWarn("manifest layer %s not loadable, skipping: %v", layerPath, err)
				continue
			}
		}
		e.manager.PushManifest(m)
		e.layerPaths = append(e.layerPaths, layerPath)
	}
	if e.manager.ManifestCount() == 0 {
		e.manager.PushManifest(resources.NewResourceManifest("default"))
		e.layerPaths = append(e.layerPaths, filepath.Join(e.config.Root, ".ember", "default.manifest"))
	}
	return nil
}

func (e *Engine) Registry() *resources.ImporterRegistry {
	return e.registry
}

func (e *Engine) Manager() *resources.ResourceManager {
	return e.manager
}

func (e *Engine) Mounts() *resources.MountTable {
	return e.mounts
}

// Resolve maps a stable UUID to its current path across the manifest stack.
func (e *Engine) Resolve(id resources.UUID) (resources.ResourcePath, error) {
	path, ok := e.manager.PathFromUUID(id)
	if !ok {
		return resources.ResourcePath{}, fmt.Errorf("uuid %s: %w", id, core.ErrNotFound)
	}
	return path, nil
}

// Load returns the artifact for a path. Importable sources are (re)imported
// when stale; everything else is read verbatim from its mount.
func (e *Engine) Load(path resources.ResourcePath) (*Artifact, error) {
	s, err := e.registry.ImportIfNeeded(path, nil)
	if err != nil {
		if errors.Is(err, core.ErrUnsupported) {
			return e.loadRaw(path)
		}
		return nil, err
	}

	data, err := os.ReadFile(s.Dest)
	if err != nil {
		return nil, core.NewResourceError(path.String(), fmt.Errorf("read artifact: %w (%w)", err, core.ErrIO))
	}
	return &Artifact{
		Path:     path,
		Type:     s.ResourceType,
		Location: s.Dest,
		Data:     data,
		Metadata: s.Metadata,
	}, nil
}

func (e *Engine) loadRaw(path resources.ResourcePath) (*Artifact, error) {
	osPath, err := e.mounts.OSPath(path)
	if err != nil {
		return nil, core.NewResourceError(path.String(), err)
	}
	data, err := os.ReadFile(osPath)
	if err != nil {
		return nil, core.NewResourceError(path.String(), fmt.Errorf("%w (%w)", err, core.ErrIO))
	}
	return &Artifact{Path: path, Type: "Binary", Location: osPath, Data: data}, nil
}

// ImportAll sweeps the indexed sources, imports what is stale or new and
// makes sure every source has a stable UUID in the default manifest.
func (e *Engine) ImportAll() error {
	e.currentStage = EngineStageRunning

	var firstErr error
	for _, path := range e.watcher.Sources() {
		s, err := e.registry.ImportIfNeeded(path, nil)
		if err != nil {
			if errors.Is(err, core.ErrUnsupported) {
				continue
			}
			core.LogError("import %s: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.ensureRegistered(path, s.SourceMD5)
	}

	run, skipped, failed := core.MetricsImports()
	core.LogInfo("import pass complete: %d imported, %d up-to-date, %d failed", run, skipped, failed)
	return firstErr
}

// ProcessDirty reimports sources the watcher flagged since the last call.
func (e *Engine) ProcessDirty() {
	for _, path := range e.watcher.DirtyPaths() {
		if _, err := e.registry.Import(path, nil); err != nil {
			if !errors.Is(err, core.ErrUnsupported) {
				core.LogError("reimport %s: %v", path, err)
			}
		}
	}
}

func (e *Engine) ensureRegistered(path resources.ResourcePath, md5 string) {
	if _, ok := e.manager.UUIDFromPath(path); ok {
		return
	}
	defaultManifest := e.manager.DefaultManifest()
	if defaultManifest == nil {
		return
	}
	id := resources.GenerateUUID()
	defaultManifest.Register(id, path, md5)
	core.LogDebug("registered %s as %s", path, id)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if err := e.watcher.Close(); err != nil {
		return err
	}
	// Only the bottom (project) layer is written back; overlays belong to
	// whoever pushed them.
	if m := e.manager.DefaultManifest(); m != nil && len(e.layerPaths) > 0 {
		if err := m.Save(e.layerPaths[0]); err != nil {
			return err
		}
	}
	core.EventSystemShutdown()
	core.LogInfo("Resource subsystem shut down.")
	return nil
}
