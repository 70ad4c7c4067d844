/*
A scratch project used by the demo binary to exercise the resource
subsystem without shipping binary assets: sources are generated on first
run.
*/
package testbed

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/ember/engine/config"
)

const shaderConfig = `# builtin world shader
version=1
name=Builtin.World
stages=vertex,fragment
# uniform layout
uniform=projection:mat4
uniform=view:mat4
`

const bitmapFont = `info face="Ember Mono" size=32 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=36 base=29 scaleW=256 scaleH=256 pages=1 packed=0 alphaChnl=1 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="ember_mono_0.png"
chars count=2
char id=65 x=2 y=2 width=20 height=26 xoffset=0 yoffset=3 xadvance=21 page=0 chnl=15
char id=66 x=24 y=2 width=18 height=26 xoffset=1 yoffset=3 xadvance=20 page=0 chnl=15
kernings count=1
kerning first=65 second=66 amount=-1
`

// Setup creates (or reuses) the scratch project under dir and returns its
// configuration.
func Setup(dir string) (*config.ProjectConfig, error) {
	cfg := config.New(dir)
	cfg.Name = "ember-testbed"
	cfg.LogLevel = "debug"

	assets := cfg.AssetDir()
	for _, sub := range []string{"shaders", "fonts", "textures"} {
		if err := os.MkdirAll(filepath.Join(assets, sub), 0o755); err != nil {
			return nil, err
		}
	}

	if err := writeIfMissing(filepath.Join(assets, "shaders", "builtin.shadercfg"), []byte(shaderConfig)); err != nil {
		return nil, err
	}
	if err := writeIfMissing(filepath.Join(assets, "fonts", "ember_mono.fnt"), []byte(bitmapFont)); err != nil {
		return nil, err
	}
	if err := ensureCheckerTexture(filepath.Join(assets, "textures", "checker.png")); err != nil {
		return nil, err
	}
	if err := ensureCheckerTexture(filepath.Join(assets, "fonts", "ember_mono_0.png")); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeIfMissing(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureCheckerTexture(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.NRGBA{R: 220, G: 110, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
