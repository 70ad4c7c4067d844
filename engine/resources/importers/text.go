package importers

import (
	"fmt"
	"os"
	"strings"

	"github.com/spaghettifunk/ember/engine/resources"
)

type textImporter struct {
	resources.DefaultImporterBehaviour
}

// NewTextImporter passes text configuration sources (shader configs,
// materials) through unchanged. It exists so every source under the asset
// base path lands in the artifact directory with a side-car.
func NewTextImporter() *resources.Importer {
	return &resources.Importer{
		ImporterCapabilities: resources.ImporterCapabilities{
			Name:                 "text",
			VisibleName:          "Text",
			RecognizedExtensions: []string{"shadercfg", "kmt", "txt", "cfg"},
			SaveExtension:        "etx",
			ResourceType:         "Text",
			Priority:             0.5,
			ImportOrder:          100,
			PresetCount:          1,
		},
		ImporterInterface: &textImporter{},
	}
}

func (ti *textImporter) ImportOptions(preset int) []resources.ImportOption {
	return []resources.ImportOption{
		{Name: "strip_comments", Type: resources.OptionTypeBool, Default: false,
			HintText: "Drop lines starting with '#'"},
	}
}

func (ti *textImporter) ImportSettingsString() string {
	return "etx-v1"
}

func (ti *textImporter) Import(sourceFile, savePath string, options map[string]interface{}) (*resources.ImportOutput, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, err
	}

	text := string(data)
	if strip, _ := options["strip_comments"].(bool); strip {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}

	if err := writeArtifact(savePath+".etx", []byte(text)); err != nil {
		return nil, err
	}

	return &resources.ImportOutput{
		Metadata: map[string]interface{}{
			"line_count": int64(strings.Count(text, "\n") + 1),
		},
	}, nil
}

func writeArtifact(osPath string, data []byte) error {
	if err := os.WriteFile(osPath, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", osPath, err)
	}
	return nil
}
