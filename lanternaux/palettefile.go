package lanternaux

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/soypat/lantern"
)

// PaletteWidth is the number of texels in each palette of a palette file.
const PaletteWidth = 256

// paletteEntrySize is the size of one file entry: a diffuse and a specular color.
const paletteEntrySize = 8

// PalettePair holds the lookup images of one palette slot. Both are nil when
// the file does not hold the complete palette.
type PalettePair struct {
	Diffuse  *image.RGBA
	Specular *image.RGBA
}

// Complete reports whether the pair was present in the file.
func (pp PalettePair) Complete() bool { return pp.Diffuse != nil && pp.Specular != nil }

// DecodePalettes reads a palette file. The file is a sequence of entries, each
// a diffuse color followed by a specular color of 4 bytes in B, G, R, A order.
// Every PaletteWidth entries make up one palette, up to [lantern.NumPalettes].
// Slots the file does not fill completely are returned empty so that the host
// releases the textures previously loaded into them. A trailing partial entry
// is ignored.
func DecodePalettes(r io.Reader) (pairs [lantern.NumPalettes]PalettePair, err error) {
	const maxSize = lantern.NumPalettes * PaletteWidth * paletteEntrySize
	data, err := io.ReadAll(io.LimitReader(r, maxSize))
	if err != nil {
		return pairs, fmt.Errorf("reading palette file: %w", err)
	}
	entries := len(data) / paletteEntrySize
	for i := range pairs {
		if (i+1)*PaletteWidth > entries {
			break
		}
		run := data[i*PaletteWidth*paletteEntrySize:]
		diffuse := image.NewRGBA(image.Rect(0, 0, PaletteWidth, 1))
		specular := image.NewRGBA(image.Rect(0, 0, PaletteWidth, 1))
		for x := 0; x < PaletteWidth; x++ {
			entry := run[x*paletteEntrySize:]
			diffuse.SetRGBA(x, 0, bgra(entry[0:4]))
			specular.SetRGBA(x, 0, bgra(entry[4:8]))
		}
		pairs[i] = PalettePair{Diffuse: diffuse, Specular: specular}
	}
	return pairs, nil
}

func bgra(b []byte) color.RGBA {
	return color.RGBA{B: b[0], G: b[1], R: b[2], A: b[3]}
}
