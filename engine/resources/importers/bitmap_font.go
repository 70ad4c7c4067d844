package importers

import (
	"fmt"

	"github.com/fzipp/bmfont"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/ember/engine/resources"
)

const fontArtifactVersion = 1

type fontGlyph struct {
	Codepoint int32 `toml:"codepoint"`
	X         int   `toml:"x"`
	Y         int   `toml:"y"`
	Width     int   `toml:"width"`
	Height    int   `toml:"height"`
	XOffset   int   `toml:"x_offset"`
	YOffset   int   `toml:"y_offset"`
	XAdvance  int   `toml:"x_advance"`
	PageID    int   `toml:"page"`
}

type fontKerning struct {
	First  int32 `toml:"first"`
	Second int32 `toml:"second"`
	Amount int   `toml:"amount"`
}

type fontArtifact struct {
	Version    int           `toml:"version"`
	Face       string        `toml:"face"`
	Size       int           `toml:"size"`
	LineHeight int           `toml:"line_height"`
	Baseline   int           `toml:"baseline"`
	AtlasSizeX int           `toml:"atlas_size_x"`
	AtlasSizeY int           `toml:"atlas_size_y"`
	Pages      []string      `toml:"pages"`
	Glyphs     []fontGlyph   `toml:"glyphs"`
	Kernings   []fontKerning `toml:"kernings,omitempty"`
}

type bitmapFontImporter struct {
	resources.DefaultImporterBehaviour
}

// NewBitmapFontImporter converts AngelCode .fnt descriptors into the engine
// glyph-table artifact. The texture pages referenced by the descriptor are
// reported as generated files so they get imported as images too.
func NewBitmapFontImporter() *resources.Importer {
	return &resources.Importer{
		ImporterCapabilities: resources.ImporterCapabilities{
			Name:                 "bitmap_font",
			VisibleName:          "Bitmap Font",
			RecognizedExtensions: []string{"fnt"},
			SaveExtension:        "efnt",
			ResourceType:         "BitmapFont",
			Priority:             1.0,
			ImportOrder:          10,
			PresetCount:          1,
		},
		ImporterInterface: &bitmapFontImporter{},
	}
}

func (fi *bitmapFontImporter) ImportOptions(preset int) []resources.ImportOption {
	return []resources.ImportOption{
		{Name: "include_kernings", Type: resources.OptionTypeBool, Default: true},
	}
}

func (fi *bitmapFontImporter) ImportSettingsString() string {
	return fmt.Sprintf("efnt-v%d", fontArtifactVersion)
}

func (fi *bitmapFontImporter) Import(sourceFile, savePath string, options map[string]interface{}) (*resources.ImportOutput, error) {
	font, err := bmfont.Load(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("parse fnt %s: %w", sourceFile, err)
	}

	desc := font.Descriptor
	artifact := &fontArtifact{
		Version:    fontArtifactVersion,
		Face:       desc.Info.Face,
		Size:       desc.Info.Size,
		LineHeight: desc.Common.LineHeight,
		Baseline:   desc.Common.Base,
		AtlasSizeX: desc.Common.ScaleW,
		AtlasSizeY: desc.Common.ScaleH,
	}

	for _, p := range desc.Pages {
		artifact.Pages = append(artifact.Pages, p.File)
	}
	for _, g := range desc.Chars {
		artifact.Glyphs = append(artifact.Glyphs, fontGlyph{
			Codepoint: int32(g.ID),
			X:         g.X,
			Y:         g.Y,
			Width:     g.Width,
			Height:    g.Height,
			XOffset:   g.XOffset,
			YOffset:   g.YOffset,
			XAdvance:  g.XAdvance,
			PageID:    g.Page,
		})
	}
	if with, _ := options["include_kernings"].(bool); with {
		for pair, k := range desc.Kerning {
			artifact.Kernings = append(artifact.Kernings, fontKerning{
				First:  int32(pair.First),
				Second: int32(pair.Second),
				Amount: k.Amount,
			})
		}
	}

	data, err := toml.Marshal(artifact)
	if err != nil {
		return nil, err
	}
	if err := writeArtifact(savePath+".efnt", data); err != nil {
		return nil, err
	}

	return &resources.ImportOutput{
		GeneratedFiles: artifact.Pages,
		Metadata: map[string]interface{}{
			"face":        artifact.Face,
			"glyph_count": int64(len(artifact.Glyphs)),
			"page_count":  int64(len(artifact.Pages)),
		},
	}, nil
}
