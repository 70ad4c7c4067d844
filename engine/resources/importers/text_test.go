package importers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextImporterPassthrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "builtin.shadercfg")
	content := "# comment\nname=Builtin.World\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	imp := NewTextImporter()
	save := filepath.Join(dir, "out")
	out, err := imp.Import(src, save, map[string]interface{}{"strip_comments": false})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Metadata["line_count"])

	data, err := os.ReadFile(save + ".etx")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestTextImporterStripComments(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "builtin.shadercfg")
	require.NoError(t, os.WriteFile(src, []byte("# comment\nname=X"), 0o644))

	imp := NewTextImporter()
	save := filepath.Join(dir, "out")
	_, err := imp.Import(src, save, map[string]interface{}{"strip_comments": true})
	require.NoError(t, err)

	data, err := os.ReadFile(save + ".etx")
	require.NoError(t, err)
	assert.Equal(t, "name=X", string(data))
}
