package lanternaux

import (
	"bytes"
	"errors"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/soypat/lantern"
	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/gleffect"
	"github.com/spf13/afero"
)

func TestGradientPalette(t *testing.T) {
	img, err := GradientPalette(2, color.Black, color.White)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{A: 255}) {
		t.Errorf("shadow texel %v", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("lit texel %v", got)
	}

	// Red to blue takes the short way around the hue circle, through magenta.
	img, err = GradientPalette(3, color.RGBA{R: 255, A: 255}, color.RGBA{B: 255, A: 255})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{R: 255, B: 255, A: 255}) {
		t.Errorf("midpoint %v, want magenta", got)
	}
	if _, err := GradientPalette(1, color.Black, color.White); err == nil {
		t.Error("expected error for single texel palette")
	}
}

func TestSpecularPalette(t *testing.T) {
	img, err := SpecularPalette(4, color.White, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got.R != 0 {
		t.Errorf("first texel %v", got)
	}
	if got := img.RGBAAt(3, 0); got.R != 255 {
		t.Errorf("last texel %v", got)
	}
	prev := uint8(0)
	for x := 0; x < 4; x++ {
		r := img.RGBAAt(x, 0).R
		if r < prev {
			t.Fatal("specular intensity decreased")
		}
		prev = r
	}
	if _, err := SpecularPalette(4, color.White, 0); err == nil {
		t.Error("expected error for zero power")
	}
}

// paletteFile returns a palette file holding n entries. Entry k has diffuse
// blue k%256 and specular red 255-k%256.
func paletteFile(n int) []byte {
	var b []byte
	for k := 0; k < n; k++ {
		v := byte(k % 256)
		b = append(b, v, 0, 0, 255, 0, 0, 255-v, 255)
	}
	return b
}

func TestDecodePalettes(t *testing.T) {
	// Two complete palettes followed by half of a third and a partial entry.
	data := paletteFile(2*PaletteWidth + PaletteWidth/2)
	data = append(data, 1, 2, 3)
	pairs, err := DecodePalettes(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	for i, pp := range pairs {
		if want := i < 2; pp.Complete() != want {
			t.Errorf("palette %d complete=%v, want %v", i, pp.Complete(), want)
		}
	}
	if got := pairs[1].Diffuse.RGBAAt(7, 0); got != (color.RGBA{B: 7, A: 255}) {
		t.Errorf("diffuse texel %v", got)
	}
	if got := pairs[0].Specular.RGBAAt(255, 0); got != (color.RGBA{A: 255}) {
		t.Errorf("specular texel %v", got)
	}
	if got := pairs[0].Specular.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("specular texel %v", got)
	}

	// Data beyond the last palette is not read.
	pairs, err = DecodePalettes(bytes.NewReader(paletteFile(lantern.NumPalettes*PaletteWidth + 10)))
	if err != nil {
		t.Fatal(err)
	}
	if !pairs[lantern.NumPalettes-1].Complete() {
		t.Error("last palette missing")
	}

	pairs, err = DecodePalettes(bytes.NewReader(nil))
	if err != nil || pairs[0].Complete() {
		t.Errorf("empty file: complete=%v err=%v", pairs[0].Complete(), err)
	}
	if _, err := DecodePalettes(iotest.ErrReader(errors.New("io failure"))); err == nil {
		t.Error("expected read error")
	}
}

func TestColorOf(t *testing.T) {
	c := ColorOf(color.White)
	if c.R != 1 || c.G != 1 || c.B != 1 || c.A != 1 {
		t.Errorf("white converted to %+v", c)
	}
	c = ColorOf(color.Transparent)
	if c.A != 0 {
		t.Errorf("transparent converted to %+v", c)
	}
}

func TestOverlayRender(t *testing.T) {
	o, err := NewOverlay(OverlayConfig{Margin: 2, Background: color.Black})
	if err != nil {
		t.Fatal(err)
	}
	one := o.Bounds([]string{"hits 1"})
	two := o.Bounds([]string{"hits 1", "compiles 12345"})
	if two.Dy() <= one.Dy() || two.Dx() < one.Dx() {
		t.Errorf("bounds did not grow: %v %v", one, two)
	}
	img, err := o.Render([]string{"hits 1", "compiles 12345"})
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != two {
		t.Errorf("image bounds %v, want %v", img.Bounds(), two)
	}
	lit := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("no text drawn")
	}
	if _, err := NewOverlay(OverlayConfig{TTF: []byte("not a font")}); err == nil {
		t.Error("expected error parsing bad font")
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	r.Report("Shader load failed", errors.New("no such file"))
	out := buf.String()
	if !strings.Contains(out, "Shader load failed") || !strings.Contains(out, "no such file") {
		t.Errorf("unexpected log output %q", out)
	}
	if _, ok := NewReporter(lantern.Config{}).(LogReporter); !ok {
		t.Error("dialogs disabled should yield a log reporter")
	}
}

type nopBackend struct{}

func (nopBackend) Compile(glbuild.Stage, []byte, []glbuild.Macro, uint32) ([]byte, error) {
	return nil, errors.New("unused")
}
func (nopBackend) CreateProgram(glbuild.Stage, []byte) (gleffect.Program, error) {
	return nil, errors.New("unused")
}
func (nopBackend) DestroyProgram(gleffect.Program) {}
func (nopBackend) LinkPipeline(vs, ps gleffect.Program) (gleffect.Program, error) {
	return nil, errors.New("unused")
}
func (nopBackend) UnlinkPipeline(gleffect.Program) {}

type nopNative struct{}

func (nopNative) DrawPrimitive(gleffect.Primitive, uint32, uint32) gleffect.Result {
	return gleffect.ResultOK
}
func (nopNative) DrawIndexedPrimitive(gleffect.Primitive, int32, uint32, uint32, uint32, uint32) gleffect.Result {
	return gleffect.ResultOK
}
func (nopNative) DrawPrimitiveUP(gleffect.Primitive, uint32, []byte, uint32) gleffect.Result {
	return gleffect.ResultOK
}
func (nopNative) DrawIndexedPrimitiveUP(gleffect.Primitive, uint32, uint32, uint32, []byte, gleffect.IndexFormat, []byte, uint32) gleffect.Result {
	return gleffect.ResultOK
}

func TestStatsLines(t *testing.T) {
	ctx, err := lantern.NewContext(lantern.ContextConfig{
		Config:  lantern.DefaultConfig(),
		FS:      afero.NewMemMapFs(),
		Backend: nopBackend{},
		Native:  nopNative{},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Shutdown()
	lines := StatsLines(ctx)
	if len(lines) != 5 {
		t.Fatalf("want 5 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "unshaded pipeline/") {
		t.Errorf("state line %q", lines[0])
	}
	if !strings.Contains(lines[1], "35") || !strings.Contains(lines[1], "USE_FOG") {
		t.Errorf("flags line %q", lines[1])
	}
}
