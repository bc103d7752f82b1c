package lantern_test

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/lantern"
	"github.com/soypat/lantern/glparam"
)

func mat4Equal(a, b ms3.Mat4, tol float32) bool {
	aa, ba := a.Array(), b.Array()
	for i := range aa {
		if math32.Abs(aa[i]-ba[i]) > tol {
			return false
		}
	}
	return true
}

func TestSetTransformDerived(t *testing.T) {
	p := lantern.NewParams()
	world := ms3.ScalingMat4(ms3.Vec{X: 2, Y: 4, Z: 8})
	p.SetTransform(lantern.TransformWorld, world)
	if !mat4Equal(p.WorldView.Value(), world, 0) {
		t.Fatal("world-view should equal world under identity view")
	}
	want := ms3.ScalingMat4(ms3.Vec{X: 0.5, Y: 0.25, Z: 0.125})
	if !mat4Equal(p.WorldViewInvT.Value(), want, 1e-6) {
		t.Errorf("inverse transpose: got %v", p.WorldViewInvT.Value().Array())
	}

	view := ms3.ScalingMat4(ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
	p.SetTransform(lantern.TransformView, view)
	wantWV := ms3.ScalingMat4(ms3.Vec{X: 1, Y: 2, Z: 4})
	if !mat4Equal(p.WorldView.Value(), wantWV, 1e-6) {
		t.Errorf("world-view after view change: got %v", p.WorldView.Value().Array())
	}

	// Projection and texture transforms leave the derived matrices alone.
	before := p.WorldView.Value()
	p.SetTransform(lantern.TransformProjection, ms3.ScalingMat4(ms3.Vec{X: 3, Y: 3, Z: 3}))
	p.SetTransform(lantern.TransformTexture, ms3.ScalingMat4(ms3.Vec{X: 3, Y: 3, Z: 3}))
	if p.WorldView.Value() != before {
		t.Error("projection change modified world-view")
	}
}

func TestSetTransformSingular(t *testing.T) {
	p := lantern.NewParams()
	p.SetTransform(lantern.TransformWorld, ms3.ScalingMat4(ms3.Vec{X: 2, Y: 2, Z: 2}))
	invT := p.WorldViewInvT.Value()
	p.SetTransform(lantern.TransformWorld, ms3.ScalingMat4(ms3.Vec{X: 0, Y: 1, Z: 1}))
	if p.WorldViewInvT.Value() != invT {
		t.Error("singular world-view replaced the inverse transpose")
	}
}

func TestSetLight(t *testing.T) {
	p := lantern.NewParams()
	p.SetLight(ms3.Vec{X: 0, Y: -3, Z: 4})
	if got := p.LightDirection.Value(); got != (ms3.Vec{X: 0, Y: 3, Z: -4}) {
		t.Errorf("direction %v", got)
	}
	if got := p.LightLength.Value(); math32.Abs(got-5) > 1e-6 {
		t.Errorf("length %v", got)
	}
}

func TestSelectPalettes(t *testing.T) {
	p := lantern.NewParams()
	for i := 0; i < lantern.NumPalettes; i++ {
		p.SetPalette(i, lantern.Palette{
			Diffuse:  glparam.Texture{ID: uint32(10 + i)},
			Specular: glparam.Texture{ID: uint32(20 + i)},
		})
	}
	for _, tc := range []struct {
		lightType         int
		land              bool
		ok                bool
		diffuse, specular int
	}{
		{lightType: 0, land: false, ok: true, diffuse: 0, specular: 1},
		{lightType: 0, land: true, ok: true, diffuse: 0, specular: 0},
		{lightType: 2, ok: true, diffuse: 2, specular: 2},
		{lightType: 4, ok: true, diffuse: 2, specular: 3},
		{lightType: 6, ok: true, diffuse: 0, specular: 1},
		{lightType: 1, ok: false},
		{lightType: 8, ok: false},
	} {
		p.DiffuseIndexA.Set(-1)
		ok := p.SelectPalettes(tc.lightType, tc.land)
		if ok != tc.ok {
			t.Errorf("light type %d: ok=%v", tc.lightType, ok)
			continue
		}
		if !ok {
			if p.DiffuseIndexA.Value() != -1 {
				t.Errorf("light type %d assigned palettes", tc.lightType)
			}
			continue
		}
		dt, st := p.DiffusePalette.Value(), p.SpecularPalette.Value()
		if dt.ID != uint32(10+tc.diffuse) || st.ID != uint32(20+tc.specular) {
			t.Errorf("light type %d: textures %d %d", tc.lightType, dt.ID, st.ID)
		}
		if dt.Unit != 1 || st.Unit != 2 {
			t.Errorf("palette texture units changed: %d %d", dt.Unit, st.Unit)
		}
		if p.DiffuseIndexA.Value() != float32(tc.diffuse) || p.SpecularIndexA.Value() != float32(tc.specular) {
			t.Errorf("light type %d: indices %v %v", tc.lightType, p.DiffuseIndexA.Value(), p.SpecularIndexA.Value())
		}
	}
}

func TestSetBlendClamps(t *testing.T) {
	p := lantern.NewParams()
	p.SetBlend(2, 3, 1.5)
	if p.BlendFactor.Value() != 1 {
		t.Errorf("factor not clamped: %v", p.BlendFactor.Value())
	}
	p.SetBlend(2, 3, -1)
	if p.BlendFactor.Value() != 0 {
		t.Errorf("factor not clamped: %v", p.BlendFactor.Value())
	}
	if p.PaletteA.Value().Unit != 3 || p.PaletteB.Value().Unit != 4 {
		t.Error("blend palettes bound to wrong units")
	}
}

func TestPaletteIndexBounds(t *testing.T) {
	p := lantern.NewParams()
	pal := lantern.Palette{Diffuse: glparam.Texture{ID: 9}}
	for _, i := range []int{-1, lantern.NumPalettes} {
		if p.SetPalette(i, pal) {
			t.Errorf("palette %d accepted", i)
		}
		if p.Palette(i) != (lantern.Palette{}) {
			t.Errorf("palette %d not empty", i)
		}
	}
	if !p.SetPalette(lantern.NumPalettes-1, pal) || p.Palette(lantern.NumPalettes-1) != pal {
		t.Error("last palette rejected")
	}
	p.SetBlend(1, 1, 0.25)
	if p.SetBlend(lantern.NumPalettes, 0, 0.5) || p.SetBlend(0, -1, 0.5) {
		t.Error("out of range blend accepted")
	}
	if p.BlendFactor.Value() != 0.25 || p.DiffuseIndexB.Value() != 1 {
		t.Error("rejected blend changed parameters")
	}
}

func TestSetFog(t *testing.T) {
	p := lantern.NewParams()
	color := glparam.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}
	p.SetFog(lantern.FogLinear, 10, 100, 2, color)
	if p.FogMode.Value() != int32(lantern.FogLinear) {
		t.Errorf("mode %d", p.FogMode.Value())
	}
	if got := p.FogConfig.Value(); got != (ms3.Vec{X: 10, Y: 100, Z: 1}) {
		t.Errorf("config %v", got)
	}
	if p.FogColor.Value() != color {
		t.Error("color not set")
	}
}
