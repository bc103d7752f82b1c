package lanternaux

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// OverlayConfig configures an [Overlay]. Zero fields take reasonable values.
type OverlayConfig struct {
	// Size is the font size in points.
	Size float64
	DPI  float64
	// TTF is a TrueType font. Go Regular is used if nil.
	TTF        []byte
	Foreground color.Color
	Background color.Color
	// Margin in pixels around the text.
	Margin int
}

// Overlay rasterizes lines of text, typically [StatsLines], into images
// hosts upload as a texture and draw over the scene.
type Overlay struct {
	ctx    *freetype.Context
	face   font.Face
	fg, bg image.Image
	margin int
	ascent int
	line   int
}

func NewOverlay(cfg OverlayConfig) (*Overlay, error) {
	if cfg.Size < 0 || cfg.DPI < 0 || cfg.Margin < 0 {
		return nil, errors.New("negative overlay dimensions")
	}
	if cfg.Size == 0 {
		cfg.Size = 12
	}
	if cfg.DPI == 0 {
		cfg.DPI = 72
	}
	if cfg.TTF == nil {
		cfg.TTF = goregular.TTF
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.White
	}
	if cfg.Background == nil {
		cfg.Background = color.RGBA{A: 160}
	}
	ttf, err := truetype.Parse(cfg.TTF)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    cfg.Size,
		DPI:     cfg.DPI,
		Hinting: font.HintingFull,
	})
	c := freetype.NewContext()
	c.SetDPI(cfg.DPI)
	c.SetFont(ttf)
	c.SetFontSize(cfg.Size)
	c.SetHinting(font.HintingFull)
	m := face.Metrics()
	return &Overlay{
		ctx:    c,
		face:   face,
		fg:     image.NewUniform(cfg.Foreground),
		bg:     image.NewUniform(cfg.Background),
		margin: cfg.Margin,
		ascent: m.Ascent.Ceil(),
		line:   m.Height.Ceil(),
	}, nil
}

// Bounds returns the size of the image Render creates for lines.
func (o *Overlay) Bounds(lines []string) image.Rectangle {
	var width fixed.Int26_6
	for _, l := range lines {
		width = max(width, font.MeasureString(o.face, l))
	}
	w := width.Ceil() + 2*o.margin
	h := len(lines)*o.line + 2*o.margin
	return image.Rect(0, 0, w, h)
}

// Render draws lines top to bottom onto a new image.
func (o *Overlay) Render(lines []string) (*image.RGBA, error) {
	img := image.NewRGBA(o.Bounds(lines))
	return img, o.Draw(img, lines)
}

// Draw draws lines top to bottom onto dst, clearing it to the background first.
func (o *Overlay) Draw(dst *image.RGBA, lines []string) error {
	bounds := dst.Bounds()
	draw.Draw(dst, bounds, o.bg, image.Point{}, draw.Src)
	o.ctx.SetDst(dst)
	o.ctx.SetClip(bounds)
	o.ctx.SetSrc(o.fg)
	pt := freetype.Pt(bounds.Min.X+o.margin, bounds.Min.Y+o.margin+o.ascent)
	for _, l := range lines {
		_, err := o.ctx.DrawString(l, pt)
		if err != nil {
			return err
		}
		pt.Y += fixed.I(o.line)
	}
	return nil
}
