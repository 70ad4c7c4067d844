package resources

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/ember/engine/core"
)

type fakeBehaviour struct {
	DefaultImporterBehaviour

	settings  string
	validFn   func(ResourcePath) bool
	importErr error
	missing   []string

	active int32
	calls  int32
}

func (f *fakeBehaviour) ImportSettingsString() string {
	return f.settings
}

func (f *fakeBehaviour) AreImportSettingsValid(path ResourcePath) bool {
	if f.validFn != nil {
		return f.validFn(path)
	}
	return true
}

func (f *fakeBehaviour) Import(sourceFile, savePath string, options map[string]interface{}) (*ImportOutput, error) {
	if n := atomic.AddInt32(&f.active, 1); n > 1 {
		panic("concurrent import of the same path was not coalesced")
	}
	defer atomic.AddInt32(&f.active, -1)
	atomic.AddInt32(&f.calls, 1)

	if f.importErr != nil {
		return &ImportOutput{MissingDependencies: f.missing}, f.importErr
	}
	if err := os.WriteFile(savePath+".bin", []byte("artifact"), 0o644); err != nil {
		return nil, err
	}
	return &ImportOutput{
		Metadata: map[string]interface{}{"fake": true},
	}, nil
}

func fakeImporter(name string, exts []string, priority float64, order int, b ImporterInterface) *Importer {
	if b == nil {
		b = &fakeBehaviour{}
	}
	return &Importer{
		ImporterCapabilities: ImporterCapabilities{
			Name:                 name,
			VisibleName:          name,
			RecognizedExtensions: exts,
			SaveExtension:        "bin",
			ResourceType:         "Fake",
			Priority:             priority,
			ImportOrder:          order,
			PresetCount:          1,
		},
		ImporterInterface: b,
	}
}

// testRegistry wires a registry over a scratch asset tree mounted at "res:".
func testRegistry(t *testing.T) (*ImporterRegistry, *MountTable, string) {
	t.Helper()
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))

	mounts := NewMountTable()
	require.NoError(t, mounts.RegisterMount(MountRes, assets))

	r := NewImporterRegistry(ImporterRegistryConfig{
		ArtifactDir: filepath.Join(dir, "imported"),
	}, mounts)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "imported"), 0o755))
	return r, mounts, assets
}

func writeSource(t *testing.T, assets, rel, content string) ResourcePath {
	t.Helper()
	osPath := filepath.Join(assets, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(osPath), 0o755))
	require.NoError(t, os.WriteFile(osPath, []byte(content), 0o644))
	return NewResourcePath(rel).WithMountpoint(MountRes)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r, _, _ := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("a", []string{"png"}, 1, 0, nil)))
	err := r.AddImporter(fakeImporter("a", []string{"jpg"}, 1, 0, nil))
	assert.ErrorIs(t, err, core.ErrInvalid)
	assert.Equal(t, 1, r.ImporterCount())
}

func TestRegistryFrozenRejectsAdd(t *testing.T) {
	r, _, _ := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("a", []string{"png"}, 1, 0, nil)))
	r.Freeze()
	assert.True(t, r.Frozen())
	assert.Error(t, r.AddImporter(fakeImporter("b", []string{"png"}, 1, 0, nil)))
}

func TestSelectImporterTieBreak(t *testing.T) {
	r, _, _ := testRegistry(t)

	// Both recognise .png at the same priority; lower import order wins.
	require.NoError(t, r.AddImporter(fakeImporter("late", []string{"png"}, 1.0, 10, nil)))
	require.NoError(t, r.AddImporter(fakeImporter("early", []string{"png"}, 1.0, 0, nil)))

	imp, err := r.ImporterForExtension("png")
	require.NoError(t, err)
	assert.Equal(t, "early", imp.Name)

	// Priority dominates import order.
	require.NoError(t, r.AddImporter(fakeImporter("strong", []string{"png"}, 2.0, 99, nil)))
	imp, err = r.ImporterForExtension("png")
	require.NoError(t, err)
	assert.Equal(t, "strong", imp.Name)

	// Full tie falls back to lexicographic name.
	r2, _, _ := testRegistry(t)
	require.NoError(t, r2.AddImporter(fakeImporter("zeta", []string{"wav"}, 1.0, 0, nil)))
	require.NoError(t, r2.AddImporter(fakeImporter("alpha", []string{"wav"}, 1.0, 0, nil)))
	imp, err = r2.ImporterForExtension(".WAV")
	require.NoError(t, err)
	assert.Equal(t, "alpha", imp.Name)
}

func TestSelectImporterUnsupported(t *testing.T) {
	r, _, _ := testRegistry(t)
	_, err := r.ImporterForExtension("xyz")
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestImportersForType(t *testing.T) {
	r, _, _ := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("b", []string{"png"}, 1.0, 5, nil)))
	require.NoError(t, r.AddImporter(fakeImporter("a", []string{"jpg"}, 1.0, 5, nil)))
	require.NoError(t, r.AddImporter(fakeImporter("c", []string{"wav"}, 2.0, 0, nil)))

	imps := r.ImportersForType("Fake")
	require.Len(t, imps, 3)
	assert.Equal(t, "c", imps[0].Name)
	assert.Equal(t, "a", imps[1].Name)
	assert.Equal(t, "b", imps[2].Name)
	assert.Empty(t, r.ImportersForType("Image"))
}

func TestSettingsHashOrderInvariance(t *testing.T) {
	a := fakeImporter("a", []string{"png"}, 1.0, 0, &fakeBehaviour{settings: "a-v1"})
	b := fakeImporter("b", []string{"wav"}, 2.0, 1, &fakeBehaviour{settings: "b-v1"})

	r1, _, _ := testRegistry(t)
	require.NoError(t, r1.AddImporter(a))
	require.NoError(t, r1.AddImporter(b))

	r2, _, _ := testRegistry(t)
	require.NoError(t, r2.AddImporter(fakeImporter("b", []string{"wav"}, 2.0, 1, &fakeBehaviour{settings: "b-v1"})))
	require.NoError(t, r2.AddImporter(fakeImporter("a", []string{"png"}, 1.0, 0, &fakeBehaviour{settings: "a-v1"})))

	assert.Equal(t, r1.ImportSettingsHash(), r2.ImportSettingsHash())
}

func TestSettingsHashSensitivity(t *testing.T) {
	base := func(priority float64, settings string) string {
		r, _, _ := testRegistry(t)
		require.NoError(t, r.AddImporter(fakeImporter("a", []string{"png"}, priority, 0, &fakeBehaviour{settings: settings})))
		require.NoError(t, r.AddImporter(fakeImporter("b", []string{"wav"}, 1.0, 0, nil)))
		return r.ImportSettingsHash()
	}

	h := base(1.0, "v1")
	assert.Equal(t, h, base(1.0, "v1"), "unchanged registry keeps its hash")
	assert.NotEqual(t, h, base(2.0, "v1"), "priority change must change the hash")
	assert.NotEqual(t, h, base(1.0, "v2"), "settings string change must change the hash")
}

func TestImportWritesArtifactAndSidecar(t *testing.T) {
	r, mounts, assets := testRegistry(t)
	fake := &fakeBehaviour{settings: "fake-v1"}
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, fake)))

	path := writeSource(t, assets, "textures/wall.png", "pixels")

	s, err := r.Import(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", s.Importer)
	assert.Equal(t, "Fake", s.ResourceType)
	assert.Equal(t, r.ImportSettingsHash(), s.SettingsHash)
	assert.Equal(t, "fake-v1", s.ValidityToken)
	assert.NotEmpty(t, s.SourceMD5)

	// Artifact on disk.
	_, err = os.Stat(s.Dest)
	require.NoError(t, err)

	// Side-car next to the source.
	sidecarPath, err := mounts.OSPath(path.ImportPath())
	require.NoError(t, err)
	_, err = os.Stat(sidecarPath)
	require.NoError(t, err)

	assert.Equal(t, ImportStateImportedValid, r.ImportState(path))
	assert.True(t, r.AreImportSettingsValid(path))

	probe, err := r.ProbePath(path)
	require.NoError(t, err)
	assert.Equal(t, s.Dest, probe.Location)
	assert.Equal(t, "Fake", probe.ResourceType)
	require.NotNil(t, probe.Importer)
	assert.Equal(t, "fake", probe.Importer.Name)
	assert.Equal(t, true, probe.Metadata["fake"])
}

func TestSettingsInvalidationTriggersReimport(t *testing.T) {
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))
	mounts := NewMountTable()
	require.NoError(t, mounts.RegisterMount(MountRes, assets))
	cfg := ImporterRegistryConfig{ArtifactDir: filepath.Join(dir, "imported")}
	require.NoError(t, os.MkdirAll(cfg.ArtifactDir, 0o755))

	r1 := NewImporterRegistry(cfg, mounts)
	require.NoError(t, r1.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, &fakeBehaviour{})))

	path := writeSource(t, assets, "wall.png", "pixels")
	s, err := r1.Import(path, nil)
	require.NoError(t, err)
	oldHash := s.SettingsHash

	// A fresh session with one extra importer: the registry hash moves, the
	// prior import is no longer valid.
	r2 := NewImporterRegistry(cfg, mounts)
	require.NoError(t, r2.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, &fakeBehaviour{})))
	require.NoError(t, r2.AddImporter(fakeImporter("extra", []string{"wav"}, 1.0, 0, nil)))

	require.NotEqual(t, oldHash, r2.ImportSettingsHash())
	assert.False(t, r2.AreImportSettingsValid(path))
	assert.Equal(t, ImportStateImportedStale, r2.ImportState(path))

	s2, err := r2.ImportIfNeeded(path, nil)
	require.NoError(t, err)
	assert.Equal(t, r2.ImportSettingsHash(), s2.SettingsHash)
	assert.Equal(t, ImportStateImportedValid, r2.ImportState(path))
}

func TestImportStateMachine(t *testing.T) {
	r, _, assets := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, &fakeBehaviour{})))

	path := writeSource(t, assets, "tex.png", "v1")
	assert.Equal(t, ImportStateNotImported, r.ImportState(path))

	_, err := r.Import(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStateImportedValid, r.ImportState(path))

	// Source modified: md5 no longer matches the side-car.
	writeSource(t, assets, "tex.png", "v2")
	assert.Equal(t, ImportStateImportedStale, r.ImportState(path))

	_, err = r.Import(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStateImportedValid, r.ImportState(path))

	// Source deleted: back to not-imported, side-car or not.
	require.NoError(t, os.Remove(filepath.Join(assets, "tex.png")))
	assert.Equal(t, ImportStateNotImported, r.ImportState(path))
}

func TestImportFatalMarksBroken(t *testing.T) {
	r, _, assets := testRegistry(t)
	failing := &fakeBehaviour{importErr: os.ErrPermission}
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, failing)))

	path := writeSource(t, assets, "bad.png", "pixels")

	_, err := r.Import(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFatal)
	assert.Equal(t, ImportStateBroken, r.ImportState(path))

	// The path is carried for the editor.
	var rerr *core.ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, path.String(), rerr.Path)

	// An importer fix allows the retry to succeed.
	failing.importErr = nil
	_, err = r.Import(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStateImportedValid, r.ImportState(path))
}

func TestImportMissingDependenciesIsRetryable(t *testing.T) {
	r, _, assets := testRegistry(t)
	waiting := &fakeBehaviour{
		importErr: core.ErrMissingDependencies,
		missing:   []string{"res:/textures/atlas.png"},
	}
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"scene"}, 1.0, 0, waiting)))

	path := writeSource(t, assets, "level.scene", "scene data")

	_, err := r.Import(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingDependencies)
	// No broken side-car is left behind.
	assert.Equal(t, ImportStateNotImported, r.ImportState(path))
}

func TestImportUnsupportedSource(t *testing.T) {
	r, _, assets := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, nil)))

	path := writeSource(t, assets, "readme.md", "# hi")
	_, err := r.Import(path, nil)
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestImportMissingSource(t *testing.T) {
	r, _, _ := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, nil)))

	_, err := r.Import(NewResourcePath("res://ghost.png"), nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGroupFileImportUnavailable(t *testing.T) {
	r, _, _ := testRegistry(t)
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, nil)))

	err := r.ImportGroupFile(NewResourcePath("res://atlas.group"), nil)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestConcurrentSamePathImportsCoalesce(t *testing.T) {
	r, _, assets := testRegistry(t)
	fake := &fakeBehaviour{}
	require.NoError(t, r.AddImporter(fakeImporter("fake", []string{"png"}, 1.0, 0, fake)))

	path := writeSource(t, assets, "contended.png", "pixels")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Import(path, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The fake panics if two invocations for the path ever overlap.
	assert.Equal(t, int32(8), atomic.LoadInt32(&fake.calls))
	assert.Equal(t, ImportStateImportedValid, r.ImportState(path))
}
