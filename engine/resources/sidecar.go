package resources

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/ember/engine/core"
)

/** @brief Format version of the side-car document. */
const SidecarVersion = 1

/**
 * @brief The side-car document written next to every imported source
 * (e.g. "wall.png.import"). It records enough to decide whether the prior
 * import is still current without rerunning the importer.
 */
type Sidecar struct {
	Version      int    `toml:"version"`
	Importer     string `toml:"importer"`
	ResourceType string `toml:"type"`
	// MD5 of the source file at import time.
	SourceMD5 string `toml:"source_md5"`
	// The registry settings hash at import time.
	SettingsHash string `toml:"settings_hash"`
	// The importer's own identity contribution at import time.
	ValidityToken string `toml:"validity_token"`
	// OS path of the produced artifact, extension included.
	Dest             string   `toml:"dest"`
	PlatformVariants []string `toml:"platform_variants,omitempty"`
	GeneratedFiles   []string `toml:"generated_files,omitempty"`
	GroupFile        string   `toml:"group_file,omitempty"`
	// The resource is broken: the last import failed fatally.
	Broken bool `toml:"broken,omitempty"`

	Options  map[string]interface{} `toml:"options,omitempty"`
	Metadata map[string]interface{} `toml:"metadata,omitempty"`
}

// save writes the side-car atomically (write-temp-then-rename) so readers
// never observe a torn document.
func (s *Sidecar) save(osPath string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal side-car: %w", err)
	}
	if err := atomicWriteFile(osPath, data); err != nil {
		return fmt.Errorf("write side-car %s: %w (%w)", osPath, err, core.ErrIO)
	}
	return nil
}

// loadSidecar reads and parses a side-car. A missing file maps to
// core.ErrNotFound, a malformed one to core.ErrInvalid.
func loadSidecar(osPath string) (*Sidecar, error) {
	data, err := os.ReadFile(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no side-car at %s: %w", osPath, core.ErrNotFound)
		}
		return nil, fmt.Errorf("read side-car %s: %w (%w)", osPath, err, core.ErrIO)
	}
	var s Sidecar
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse side-car %s: %w (%w)", osPath, err, core.ErrInvalid)
	}
	if s.Version == 0 || s.Importer == "" {
		return nil, fmt.Errorf("side-car %s is incomplete: %w", osPath, core.ErrInvalid)
	}
	return &s, nil
}

func atomicWriteFile(osPath string, data []byte) error {
	dir := filepath.Dir(osPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(osPath)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), osPath)
}

// fileMD5 hashes a source file's content for the side-car and manifest.
func fileMD5(osPath string) (string, error) {
	f, err := os.Open(osPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w (%w)", osPath, err, core.ErrIO)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w (%w)", osPath, err, core.ErrIO)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
