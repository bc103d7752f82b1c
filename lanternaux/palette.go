package lanternaux

import (
	"errors"
	"image"
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/lantern/glparam"
)

// GradientPalette returns a width x 1 diffuse palette. Texel 0 is the color of
// surfaces facing away from the light and the last texel of surfaces facing
// it. Colors are interpolated in HSV space along the shortest hue arc.
func GradientPalette(width int, shadow, lit color.Color) (*image.RGBA, error) {
	if width < 2 {
		return nil, errors.New("palette width must be at least 2")
	}
	h0, h1 := toHSV(shadow), toHSV(lit)
	img := image.NewRGBA(image.Rect(0, 0, width, 1))
	for x := 0; x < width; x++ {
		t := float32(x) / float32(width-1)
		img.SetRGBA(x, 0, h0.interp(h1, t).rgba())
	}
	return img, nil
}

// SpecularPalette returns a width x 1 specular palette of highlight color c
// whose intensity rises with the lighting term raised to power.
func SpecularPalette(width int, c color.Color, power float32) (*image.RGBA, error) {
	if width < 2 {
		return nil, errors.New("palette width must be at least 2")
	} else if power <= 0 {
		return nil, errors.New("specular power must be positive")
	}
	base := toHSV(c)
	img := image.NewRGBA(image.Rect(0, 0, width, 1))
	for x := 0; x < width; x++ {
		t := float32(x) / float32(width-1)
		texel := base
		texel.v *= math.Pow(t, power)
		img.SetRGBA(x, 0, texel.rgba())
	}
	return img, nil
}

// ColorOf converts c to the linear shader parameter color.
func ColorOf(c color.Color) glparam.Color {
	r, g, b, a := c.RGBA()
	const max16 = 0xffff
	return glparam.Color{
		R: float32(r) / max16,
		G: float32(g) / max16,
		B: float32(b) / max16,
		A: float32(a) / max16,
	}
}

// hsv holds hue, saturation and value in the range 0..1.
type hsv struct {
	h, s, v float32
}

func toHSV(c color.Color) hsv {
	r0, g0, b0, _ := c.RGBA()
	r := float32(r0>>8) / math.MaxUint8
	g := float32(g0>>8) / math.MaxUint8
	b := float32(b0>>8) / math.MaxUint8
	var (
		xmax   = max(r, g, b)
		chroma = xmax - min(r, g, b)
		out    = hsv{v: xmax}
	)
	switch {
	case chroma == 0:
	case xmax == r:
		out.h = (g - b) / (chroma * 6)
	case xmax == g:
		out.h = 1.0/3 + (b-r)/(chroma*6)
	default:
		out.h = 2.0/3 + (r-g)/(chroma*6)
	}
	if out.h < 0 {
		out.h += 1
	}
	if xmax > 0 {
		out.s = chroma / xmax
	}
	return out
}

func (c0 hsv) interp(c1 hsv, t float32) hsv {
	switch {
	case c1.h-c0.h > 0.5:
		c0.h += 1
	case c1.h-c0.h < -0.5:
		c1.h += 1
	}
	h := ms1.Interp(c0.h, c1.h, t)
	if h > 1 {
		h -= 1
	}
	return hsv{
		h: h,
		s: ms1.Interp(c0.s, c1.s, t),
		v: ms1.Interp(c0.v, c1.v, t),
	}
}

func (c hsv) rgba() color.RGBA {
	chroma := c.s * c.v
	x := chroma * (1 - math.Abs(math.Mod(c.h*6, 2)-1))
	m := c.v - chroma
	var r, g, b float32
	switch sector := int(c.h * 6); sector {
	case 0, 6:
		r, g, b = chroma, x, 0
	case 1:
		r, g, b = x, chroma, 0
	case 2:
		r, g, b = 0, chroma, x
	case 3:
		r, g, b = 0, x, chroma
	case 4:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	return color.RGBA{
		R: uint8(ms1.Clamp(r+m, 0, 1)*math.MaxUint8 + 0.5),
		G: uint8(ms1.Clamp(g+m, 0, 1)*math.MaxUint8 + 0.5),
		B: uint8(ms1.Clamp(b+m, 0, 1)*math.MaxUint8 + 0.5),
		A: math.MaxUint8,
	}
}
