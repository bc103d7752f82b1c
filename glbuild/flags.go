package glbuild

import "strconv"

// Flags is a bitmask of orthogonal shader capabilities. Each distinct
// sanitized value selects one shader variant.
type Flags uint32

const (
	FlagTexture Flags = 1 << iota
	FlagEnvMap
	FlagLight
	FlagBlend
	FlagAlpha
	FlagFog
	// FlagOIT enables order independent transparency. Carried through
	// macro generation; compositing is left to the shader source.
	FlagOIT

	// FlagCount is the number of representable flag combinations.
	FlagCount Flags = 1 << iota
	// FlagMask holds all legal flag bits.
	FlagMask = FlagCount - 1
)

// DefaultFlags is the variant active before the host sets any flag.
const DefaultFlags = FlagAlpha | FlagFog | FlagLight | FlagTexture

// Sanitize masks f to the legal bit range and clears flags whose
// prerequisite is absent: Blend requires Light and EnvMap requires Texture.
func (f Flags) Sanitize() Flags {
	f &= FlagMask
	if f&FlagBlend != 0 && f&FlagLight == 0 {
		f &^= FlagBlend
	}
	if f&FlagEnvMap != 0 && f&FlagTexture == 0 {
		f &^= FlagEnvMap
	}
	return f
}

// Stage returns the sanitized flags restricted to the bits relevant to stage.
func (f Flags) Stage(stage Stage) Flags {
	return f.Sanitize() & stage.Mask()
}

// Has reports whether all bits of other are set in f.
func (f Flags) Has(other Flags) bool { return f&other == other }

// With returns f with other set when add is true and cleared otherwise.
func (f Flags) With(other Flags, add bool) Flags {
	if add {
		return f | other
	}
	return f &^ other
}

// String returns the macro names of the set flags joined by " | ".
func (f Flags) String() string {
	return string(f.AppendString(nil))
}

// AppendString appends the human readable representation of f to b.
func (f Flags) AppendString(b []byte) []byte {
	start := len(b)
	for _, fm := range flagMacros {
		if f&fm.flag == 0 {
			continue
		}
		if len(b) > start {
			b = append(b, " | "...)
		}
		b = append(b, fm.name...)
		f &^= fm.flag
	}
	if f != 0 {
		// Bits outside the table are shown raw so that unsanitized values are visible in logs.
		if len(b) > start {
			b = append(b, " | "...)
		}
		b = append(b, "0x"...)
		b = strconv.AppendUint(b, uint64(f), 16)
	}
	return b
}

// Stage identifies which program stage a variant is compiled for.
type Stage uint8

const (
	StageUndefined Stage = iota
	// StageVertex compiles a separable vertex program.
	StageVertex
	// StagePixel compiles a separable fragment program.
	StagePixel
	// StageEffect compiles a single linked vertex+fragment program using all flags.
	StageEffect
)

const (
	vertexFlags = FlagTexture | FlagEnvMap | FlagLight | FlagBlend
	pixelFlags  = FlagTexture | FlagAlpha | FlagFog | FlagOIT
)

// Mask returns the flag bits that change the compiled output of stage.
func (s Stage) Mask() Flags {
	switch s {
	case StageVertex:
		return vertexFlags
	case StagePixel:
		return pixelFlags
	case StageEffect:
		return FlagMask
	}
	return 0
}

// Ext returns the cache file extension of stage, including the leading dot.
func (s Stage) Ext() string {
	switch s {
	case StageVertex:
		return ".vs"
	case StagePixel:
		return ".ps"
	case StageEffect:
		return ".fx"
	}
	return ".bin"
}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "pixel"
	case StageEffect:
		return "effect"
	}
	return "undefined"
}

// AllVariants returns every distinct sanitized flag value relevant to stage,
// in ascending order. Used to materialize the whole variant set up front.
func AllVariants(stage Stage) []Flags {
	var seen [FlagCount]bool
	var variants []Flags
	for f := Flags(0); f < FlagCount; f++ {
		v := f.Stage(stage)
		if seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}
	// Ascending since v <= f for every f and each v is first seen at f == v.
	return variants
}
