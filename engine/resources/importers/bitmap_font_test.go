package importers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFNT = `info face="Test Mono" size=32 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=36 base=29 scaleW=256 scaleH=128 pages=1 packed=0 alphaChnl=1 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="test_mono_0.png"
chars count=2
char id=65 x=2 y=2 width=20 height=26 xoffset=0 yoffset=3 xadvance=21 page=0 chnl=15
char id=66 x=24 y=2 width=18 height=26 xoffset=1 yoffset=3 xadvance=20 page=0 chnl=15
kernings count=1
kerning first=65 second=66 amount=-1
`

func writeTestFont(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "test_mono.fnt")
	require.NoError(t, os.WriteFile(src, []byte(testFNT), 0o644))
	// The page sheet referenced by the descriptor.
	writeTestPNG(t, filepath.Join(dir, "test_mono_0.png"), 8, 8)
	return src
}

func TestBitmapFontImporterProducesGlyphTable(t *testing.T) {
	dir := t.TempDir()
	src := writeTestFont(t, dir)

	imp := NewBitmapFontImporter()
	save := filepath.Join(dir, "test_mono-artifact")
	out, err := imp.Import(src, save, map[string]interface{}{"include_kernings": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"test_mono_0.png"}, out.GeneratedFiles)
	assert.Equal(t, int64(2), out.Metadata["glyph_count"])
	assert.Equal(t, "Test Mono", out.Metadata["face"])

	data, err := os.ReadFile(save + ".efnt")
	require.NoError(t, err)

	var artifact fontArtifact
	require.NoError(t, toml.Unmarshal(data, &artifact))
	assert.Equal(t, "Test Mono", artifact.Face)
	assert.Equal(t, 32, artifact.Size)
	assert.Equal(t, 36, artifact.LineHeight)
	assert.Equal(t, 29, artifact.Baseline)
	assert.Equal(t, 256, artifact.AtlasSizeX)
	assert.Equal(t, 128, artifact.AtlasSizeY)
	require.Len(t, artifact.Glyphs, 2)
	require.Len(t, artifact.Kernings, 1)
	assert.Equal(t, int32(65), artifact.Kernings[0].First)
	assert.Equal(t, -1, artifact.Kernings[0].Amount)
}

func TestBitmapFontImporterKerningsOptional(t *testing.T) {
	dir := t.TempDir()
	src := writeTestFont(t, dir)

	imp := NewBitmapFontImporter()
	save := filepath.Join(dir, "no-kern")
	_, err := imp.Import(src, save, map[string]interface{}{"include_kernings": false})
	require.NoError(t, err)

	data, err := os.ReadFile(save + ".efnt")
	require.NoError(t, err)
	var artifact fontArtifact
	require.NoError(t, toml.Unmarshal(data, &artifact))
	assert.Empty(t, artifact.Kernings)
}
