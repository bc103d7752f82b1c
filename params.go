package lantern

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/lantern/glparam"
)

// NumPalettes is the number of palette pairs a host may load.
const NumPalettes = 8

// Palette is a pair of lookup textures indexed by the lighting term.
type Palette struct {
	Diffuse  glparam.Texture
	Specular glparam.Texture
}

// Params holds every shader parameter of the lighting shaders. Slot names
// match the uniform names in shader source.
type Params struct {
	reg glparam.Registry

	// Palettes.
	DiffusePalette  *glparam.Slot[glparam.Texture]
	SpecularPalette *glparam.Slot[glparam.Texture]
	PaletteA        *glparam.Slot[glparam.Texture]
	PaletteB        *glparam.Slot[glparam.Texture]
	DiffuseIndexA   *glparam.Slot[float32]
	SpecularIndexA  *glparam.Slot[float32]
	DiffuseIndexB   *glparam.Slot[float32]
	SpecularIndexB  *glparam.Slot[float32]
	BlendFactor     *glparam.Slot[float32]

	// Transforms.
	WorldMatrix      *glparam.Slot[ms3.Mat4]
	ViewMatrix       *glparam.Slot[ms3.Mat4]
	ProjectionMatrix *glparam.Slot[ms3.Mat4]
	WorldView        *glparam.Slot[ms3.Mat4]
	WorldViewInvT    *glparam.Slot[ms3.Mat4]
	TextureTransform *glparam.Slot[ms3.Mat4]

	// Lighting and material.
	BaseTexture          *glparam.Slot[glparam.Texture]
	NormalScale          *glparam.Slot[ms3.Vec]
	LightDirection       *glparam.Slot[ms3.Vec]
	LightLength          *glparam.Slot[float32]
	DiffuseSource        *glparam.Slot[int32]
	MaterialDiffuse      *glparam.Slot[glparam.Color]
	AllowVertexColor     *glparam.Slot[bool]
	ForceDefaultDiffuse  *glparam.Slot[bool]
	DiffuseOverride      *glparam.Slot[bool]
	DiffuseOverrideColor *glparam.Slot[ms3.Vec]

	// Fog and alpha.
	FogMode   *glparam.Slot[int32]
	FogConfig *glparam.Slot[ms3.Vec]
	FogColor  *glparam.Slot[glparam.Color]
	AlphaRef  *glparam.Slot[float32]

	Viewport *glparam.Slot[ms2.Vec]

	palettes [NumPalettes]Palette
}

// DefaultAlphaRef is the alpha test reference restored after temporary overrides.
const DefaultAlphaRef = 16.0 / 255

// NewParams registers every lighting parameter with its default value.
func NewParams() *Params {
	p := &Params{}
	r := &p.reg
	identity := ms3.IdentityMat4()
	p.DiffusePalette = glparam.NewSlot(r, "DiffusePalette", glparam.Texture{Unit: 1})
	p.SpecularPalette = glparam.NewSlot(r, "SpecularPalette", glparam.Texture{Unit: 2})
	p.PaletteA = glparam.NewSlot(r, "PaletteA", glparam.Texture{Unit: 3})
	p.PaletteB = glparam.NewSlot(r, "PaletteB", glparam.Texture{Unit: 4})
	p.DiffuseIndexA = glparam.NewSlot(r, "DiffuseIndexA", float32(0))
	p.SpecularIndexA = glparam.NewSlot(r, "SpecularIndexA", float32(0))
	p.DiffuseIndexB = glparam.NewSlot(r, "DiffuseIndexB", float32(0))
	p.SpecularIndexB = glparam.NewSlot(r, "SpecularIndexB", float32(0))
	p.BlendFactor = glparam.NewSlot(r, "BlendFactor", float32(0))

	p.WorldMatrix = glparam.NewSlot(r, "WorldMatrix", identity)
	p.ViewMatrix = glparam.NewSlot(r, "ViewMatrix", identity)
	p.ProjectionMatrix = glparam.NewSlot(r, "ProjectionMatrix", identity)
	p.WorldView = glparam.NewSlot(r, "wvMatrix", identity)
	p.WorldViewInvT = glparam.NewSlot(r, "wvMatrixInvT", identity)
	p.TextureTransform = glparam.NewSlot(r, "TextureTransform", identity)

	p.BaseTexture = glparam.NewSlot(r, "BaseTexture", glparam.Texture{Unit: 0})
	p.NormalScale = glparam.NewSlot(r, "NormalScale", ms3.Vec{X: 1, Y: 1, Z: 1})
	p.LightDirection = glparam.NewSlot(r, "LightDirection", ms3.Vec{Y: -1})
	p.LightLength = glparam.NewSlot(r, "LightLength", float32(1))
	p.DiffuseSource = glparam.NewSlot(r, "DiffuseSource", int32(0))
	p.MaterialDiffuse = glparam.NewSlot(r, "MaterialDiffuse", glparam.Color{})
	p.AllowVertexColor = glparam.NewSlot(r, "AllowVertexColor", true)
	p.ForceDefaultDiffuse = glparam.NewSlot(r, "ForceDefaultDiffuse", false)
	p.DiffuseOverride = glparam.NewSlot(r, "DiffuseOverride", false)
	p.DiffuseOverrideColor = glparam.NewSlot(r, "DiffuseOverrideColor", ms3.Vec{X: 1, Y: 1, Z: 1})

	p.FogMode = glparam.NewSlot(r, "FogMode", int32(FogNone))
	p.FogConfig = glparam.NewSlot(r, "FogConfig", ms3.Vec{})
	p.FogColor = glparam.NewSlot(r, "FogColor", glparam.Color{})
	p.AlphaRef = glparam.NewSlot(r, "AlphaRef", float32(DefaultAlphaRef))

	p.Viewport = glparam.NewSlot(r, "Viewport", ms2.Vec{})
	return p
}

// Registry returns the registry all parameters are registered in.
func (p *Params) Registry() *glparam.Registry { return &p.reg }

// TransformKind selects which matrix SetTransform replaces.
type TransformKind uint8

const (
	TransformWorld TransformKind = iota + 1
	TransformView
	TransformProjection
	TransformTexture
)

// SetTransform replaces one of the transform matrices. World and view
// changes recompute the world-view matrix and its inverse transpose.
// A singular world-view matrix keeps the previous inverse transpose.
func (p *Params) SetTransform(kind TransformKind, m ms3.Mat4) {
	switch kind {
	case TransformWorld:
		p.WorldMatrix.Set(m)
	case TransformView:
		p.ViewMatrix.Set(m)
	case TransformProjection:
		p.ProjectionMatrix.Set(m)
		return
	case TransformTexture:
		p.TextureTransform.Set(m)
		return
	default:
		panic("invalid transform kind")
	}
	wv := ms3.MulMat4(p.ViewMatrix.Value(), p.WorldMatrix.Value())
	p.WorldView.Set(wv)
	if math32.Abs(wv.Determinant()) < epstol {
		Logger().Debug("singular world-view matrix")
		return
	}
	// The inverse transpose transforms normals for environment mapping.
	p.WorldViewInvT.Set(wv.Inverse().Transpose())
}

// epstol bounds badly conditioned determinants.
const epstol = 6e-7

// SetLight sets the direction light travels in. The shader receives the
// direction towards the light and the length of dir.
func (p *Params) SetLight(dir ms3.Vec) {
	p.LightDirection.Set(ms3.Scale(-1, dir))
	p.LightLength.Set(math32.Sqrt(ms3.Dot(dir, dir)))
}

// SetPalette stores palette pair i for later selection with SelectPalettes.
// It reports false and stores nothing when i is not a palette index.
// A zero Palette clears the pair.
func (p *Params) SetPalette(i int, pal Palette) bool {
	if !validPalette(i) {
		return false
	}
	p.palettes[i] = pal
	return true
}

// Palette returns palette pair i, or the zero Palette when i is out of range.
func (p *Params) Palette(i int) Palette {
	if !validPalette(i) {
		return Palette{}
	}
	return p.palettes[i]
}

func validPalette(i int) bool { return i >= 0 && i < NumPalettes }

// paletteIndices maps a light type to its diffuse and specular palettes.
// ok is false for light types that are not palette lit.
func paletteIndices(lightType int, landTable bool) (diffuse, specular int, ok bool) {
	switch lightType {
	case 0:
		// Level geometry and stage objects.
		if landTable {
			return 0, 0, true
		}
		return 0, 1, true
	case 2:
		// Characters.
		return 2, 2, true
	case 4:
		// Shiny characters.
		return 2, 3, true
	case 6:
		return 0, 1, true
	}
	return -1, -1, false
}

// SelectPalettes binds the palettes used by light type lightType.
// It reports false when the light type is not palette lit, in which case
// nothing is assigned.
func (p *Params) SelectPalettes(lightType int, landTable bool) bool {
	diffuse, specular, ok := paletteIndices(lightType, landTable)
	if !ok {
		return false
	}
	dt := p.palettes[diffuse].Diffuse
	dt.Unit = p.DiffusePalette.Default().Unit
	st := p.palettes[specular].Specular
	st.Unit = p.SpecularPalette.Default().Unit
	p.DiffusePalette.Set(dt)
	p.SpecularPalette.Set(st)
	p.DiffuseIndexA.Set(float32(diffuse))
	p.SpecularIndexA.Set(float32(specular))
	return true
}

// SetBlend sets the palette pair blended towards and the blend amount in [0,1].
// It reports false and assigns nothing when either index is out of range.
func (p *Params) SetBlend(diffuse, specular int, factor float32) bool {
	if !validPalette(diffuse) || !validPalette(specular) {
		return false
	}
	at := p.palettes[diffuse].Diffuse
	at.Unit = p.PaletteA.Default().Unit
	bt := p.palettes[specular].Specular
	bt.Unit = p.PaletteB.Default().Unit
	p.PaletteA.Set(at)
	p.PaletteB.Set(bt)
	p.DiffuseIndexB.Set(float32(diffuse))
	p.SpecularIndexB.Set(float32(specular))
	p.BlendFactor.Set(ms1.Clamp(factor, 0, 1))
	return true
}

// FogMode selects the fog falloff function.
type FogMode int32

const (
	FogNone FogMode = iota
	FogExp
	FogExp2
	FogLinear
)

// SetFog sets the fog falloff. start and end are used by FogLinear,
// density by FogExp and FogExp2.
func (p *Params) SetFog(mode FogMode, start, end, density float32, color glparam.Color) {
	p.FogMode.Set(int32(mode))
	p.FogConfig.Set(ms3.Vec{X: start, Y: end, Z: ms1.Clamp(density, 0, 1)})
	p.FogColor.Set(color)
}

// DiffuseSourceKind selects where the diffuse color of a vertex comes from.
type DiffuseSourceKind int32

const (
	DiffuseMaterial DiffuseSourceKind = iota
	DiffuseVertexColor
)

// Material describes the surface of the next draws.
type Material struct {
	Diffuse       glparam.Color
	DiffuseSource DiffuseSourceKind
	Texture       glparam.Texture
	UseTexture    bool
	UseAlpha      bool
	EnvMap        bool
	IgnoreLight   bool
}
