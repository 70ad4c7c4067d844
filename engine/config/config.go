package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/ember/engine/core"
)

type Mount struct {
	Mountpoint string `toml:"mountpoint"`
	Dir        string `toml:"dir"`
}

/** @brief The project file ("project.toml") at the root of every project. */
type ProjectConfig struct {
	Name string `toml:"name"`
	// Directory holding the source assets, relative to the project root.
	AssetBasePath string `toml:"asset_base_path"`
	// Directory imported artifacts are written to.
	ArtifactDir string `toml:"artifact_dir"`
	// Extra mount roots beyond the implicit "res:" and "user:".
	Mounts []Mount `toml:"mounts"`
	// Manifest layer files, bottom (default) first.
	ManifestLayers []string `toml:"manifest_layers"`
	LogLevel       string   `toml:"log_level"`

	// Root directory of the project, derived from the file location.
	Root string `toml:"-"`
}

func defaults(root string) *ProjectConfig {
	return &ProjectConfig{
		Name:           filepath.Base(root),
		AssetBasePath:  "assets",
		ArtifactDir:    filepath.Join(".ember", "imported"),
		ManifestLayers: []string{filepath.Join(".ember", "default.manifest")},
		LogLevel:       "info",
		Root:           root,
	}
}

// Load reads a project file. Missing keys fall back to defaults.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load project config: %w (%w)", err, core.ErrIO)
	}
	cfg := defaults(filepath.Dir(path))
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse project config %s: %w (%w)", path, err, core.ErrInvalid)
	}
	return cfg, nil
}

// New builds an in-memory configuration for the given project root, without
// a project file. Used by scratch projects and tests.
func New(root string) *ProjectConfig {
	return defaults(root)
}

func (c *ProjectConfig) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save project config: %w (%w)", err, core.ErrIO)
	}
	return nil
}

// AssetDir returns the absolute asset base directory.
func (c *ProjectConfig) AssetDir() string {
	return filepath.Join(c.Root, c.AssetBasePath)
}

// ArtifactPath returns the absolute artifact directory.
func (c *ProjectConfig) ArtifactPath() string {
	return filepath.Join(c.Root, c.ArtifactDir)
}

func (c *ProjectConfig) Level() core.LogLevel {
	switch c.LogLevel {
	case "debug":
		return core.DebugLevel
	case "warn":
		return core.WarnLevel
	case "error":
		return core.ErrorLevel
	default:
		return core.InfoLevel
	}
}
