// Package glbuild derives shader variants from feature flags: it sanitizes
// flag combinations, generates the macro set of a variant and injects it into
// GLSL source code.
package glbuild

import (
	"errors"
	"hash/fnv"
)

// Programmer generates variant sources. It reuses internal buffers so that
// building many variants in a row does not allocate per variant.
// The zero value is ready to use. Results are only valid until the next call.
type Programmer struct {
	macros  []Macro
	scratch []byte
}

// VariantSource returns the macros of f and src with their definitions
// injected. f is used as is, callers are expected to sanitize and stage-mask it.
func (p *Programmer) VariantSource(src []byte, f Flags) (source []byte, macros []Macro, err error) {
	if f&^FlagMask != 0 {
		return nil, nil, errors.New("flags outside of legal range")
	}
	p.macros = AppendMacros(p.macros[:0], f)
	p.scratch, err = AppendVariantSource(p.scratch[:0], src, p.macros)
	if err != nil {
		return nil, nil, err
	}
	return p.scratch, p.macros, nil
}

// Hash returns a short non-cryptographic hash of the variant source.
// Useful for labelling programs in debug output.
func Hash(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	b = append(b, ' ')
	b = append(b, aliasReplace...)
	b = append(b, '\n')
	return b
}
