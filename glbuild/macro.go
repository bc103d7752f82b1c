package glbuild

import (
	"bytes"
	"errors"
)

// Macro is a preprocessor definition passed to the shader compiler.
type Macro struct {
	Name  string
	Value string
}

// flagMacros maps every flag bit to its macro name. The order is fixed and
// determines macro order, string representation and therefore cache contents.
var flagMacros = [...]struct {
	flag Flags
	name string
}{
	{flag: FlagTexture, name: "USE_TEXTURE"},
	{flag: FlagEnvMap, name: "USE_ENVMAP"},
	{flag: FlagLight, name: "USE_LIGHT"},
	{flag: FlagBlend, name: "USE_BLEND"},
	{flag: FlagAlpha, name: "USE_ALPHA"},
	{flag: FlagFog, name: "USE_FOG"},
	{flag: FlagOIT, name: "USE_OIT"},
}

// MacroName returns the macro defined when flag is set. flag must be a single bit.
func MacroName(flag Flags) string {
	for _, fm := range flagMacros {
		if fm.flag == flag {
			return fm.name
		}
	}
	return ""
}

// AppendMacros appends one presence macro per set bit of f to dst in the fixed
// flag table order and returns the result. f is not sanitized.
func AppendMacros(dst []Macro, f Flags) []Macro {
	for _, fm := range flagMacros {
		if f&fm.flag != 0 {
			dst = append(dst, Macro{Name: fm.name, Value: "1"})
		}
	}
	return dst
}

// AppendVariantID appends the fixed-width lowercase hex identifier of f.
func AppendVariantID(b []byte, f Flags) []byte {
	const hexdigits = "0123456789abcdef"
	v := uint32(f)
	if v > 0xff {
		// Wider than two digits, emit all significant digits.
		start := len(b)
		for v > 0 {
			b = append(b, hexdigits[v&0xf])
			v >>= 4
		}
		reverse(b[start:])
		return b
	}
	return append(b, hexdigits[v>>4], hexdigits[v&0xf])
}

// VariantFilename returns the cache file name of the variant f for stage.
// f is expected to be already sanitized and masked for stage.
func VariantFilename(f Flags, stage Stage) string {
	var buf [16]byte
	b := AppendVariantID(buf[:0], f)
	b = append(b, stage.Ext()...)
	return string(b)
}

const versionDirective = "#version"

// AppendVariantSource appends src to dst with a #define for each macro
// inserted after every #version directive, so that combined sources with one
// section per stage receive the definitions in every section. If src has no
// #version directive the definitions are placed at the top.
func AppendVariantSource(dst, src []byte, macros []Macro) ([]byte, error) {
	if len(src) == 0 {
		return dst, errors.New("empty shader source")
	}
	found := false
	rest := src
	for len(rest) > 0 {
		line := rest
		nl := bytes.IndexByte(rest, '\n')
		if nl >= 0 {
			line = rest[:nl+1]
		}
		rest = rest[len(line):]
		dst = append(dst, line...)
		if !bytes.HasPrefix(bytes.TrimSpace(line), []byte(versionDirective)) {
			continue
		}
		if line[len(line)-1] != '\n' {
			dst = append(dst, '\n')
		}
		found = true
		dst = appendDefines(dst, macros)
	}
	if !found {
		var defs []byte
		defs = appendDefines(defs, macros)
		dst = append(dst[:len(dst)-len(src)], append(defs, src...)...)
	}
	return dst, nil
}

func appendDefines(dst []byte, macros []Macro) []byte {
	for _, m := range macros {
		dst = AppendDefineDecl(dst, m.Name, m.Value)
	}
	return dst
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
