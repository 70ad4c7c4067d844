package importers

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"os"

	// Decoders for the recognized source formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/ember/engine/resources"
)

// Artifact layout: magic, version, width, height, channel count, then raw
// RGBA pixels top-down (bottom-up when flip_y is set).
const (
	imageArtifactMagic   uint32 = 0xdaaaadd1
	imageArtifactVersion uint32 = 1
)

type imageImporter struct {
	resources.DefaultImporterBehaviour
}

// NewImageImporter produces the engine pixel artifact from common image
// sources.
func NewImageImporter() *resources.Importer {
	return &resources.Importer{
		ImporterCapabilities: resources.ImporterCapabilities{
			Name:                 "image",
			VisibleName:          "Image",
			RecognizedExtensions: []string{"png", "jpg", "jpeg", "bmp", "tiff"},
			SaveExtension:        "epx",
			ResourceType:         "Image",
			Priority:             1.0,
			ImportOrder:          0,
			PresetCount:          1,
		},
		ImporterInterface: &imageImporter{},
	}
}

func (ii *imageImporter) ImportOptions(preset int) []resources.ImportOption {
	return []resources.ImportOption{
		{Name: "flip_y", Type: resources.OptionTypeBool, Default: false,
			HintText: "Flip the image vertically on import"},
		{Name: "premultiply_alpha", Type: resources.OptionTypeBool, Default: false},
		{Name: "mipmaps", Type: resources.OptionTypeBool, Default: true},
	}
}

func (ii *imageImporter) OptionVisibility(option string, selected map[string]interface{}) bool {
	// Premultiplication is pointless without mipmap generation off the raw
	// pixels; hide it when mipmaps are disabled.
	if option == "premultiply_alpha" {
		on, _ := selected["mipmaps"].(bool)
		return on
	}
	return true
}

func (ii *imageImporter) ImportSettingsString() string {
	return fmt.Sprintf("epx-v%d", imageArtifactVersion)
}

func (ii *imageImporter) Import(sourceFile, savePath string, options map[string]interface{}) (*resources.ImportOutput, error) {
	f, err := os.Open(sourceFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", sourceFile, err)
	}

	bounds := src.Bounds()
	rgba := image.NewNRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	width := bounds.Dx()
	height := bounds.Dy()
	pixels := rgba.Pix
	if flip, _ := options["flip_y"].(bool); flip {
		pixels = flipPixelsY(pixels, width, height)
	}

	out, err := os.Create(savePath + ".epx")
	if err != nil {
		return nil, err
	}
	defer out.Close()

	header := []uint32{imageArtifactMagic, imageArtifactVersion, uint32(width), uint32(height), 4}
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if _, err := out.Write(pixels); err != nil {
		return nil, err
	}

	return &resources.ImportOutput{
		Metadata: map[string]interface{}{
			"width":         int64(width),
			"height":        int64(height),
			"channels":      int64(4),
			"source_format": format,
		},
	}, nil
}

func flipPixelsY(pixels []byte, width, height int) []byte {
	stride := width * 4
	out := make([]byte, len(pixels))
	for y := 0; y < height; y++ {
		copy(out[y*stride:(y+1)*stride], pixels[(height-1-y)*stride:(height-y)*stride])
	}
	return out
}
