// Package glparam tracks shader parameters (uniforms) between host state
// changes and GPU program commits. Each parameter remembers the value last
// pushed to the program so that only changed values are written.
package glparam

import (
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// Handle is an opaque reference to a parameter inside a program. Its meaning
// is defined by the [Target] that returned it.
type Handle uint64

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float32
}

// Array returns the color components in RGBA order.
func (c Color) Array() [4]float32 { return [4]float32{c.R, c.G, c.B, c.A} }

// Texture references a GPU texture bound to a sampler unit.
// The zero value unbinds the unit.
type Texture struct {
	ID   uint32
	Unit int32
}

// Value lists the types a parameter may hold.
type Value interface {
	bool | int32 | float32 | ms2.Vec | ms3.Vec | Color | ms3.Mat4 | Texture
}

// Target receives parameter values. It is implemented by compiled programs.
type Target interface {
	// Lookup returns the handle of the named parameter. ok is false when the
	// program does not use the parameter.
	Lookup(name string) (h Handle, ok bool)
	SetBool(h Handle, v bool) error
	SetInt(h Handle, v int32) error
	SetFloat(h Handle, v float32) error
	SetVec2(h Handle, v ms2.Vec) error
	SetVec3(h Handle, v ms3.Vec) error
	SetColor(h Handle, v Color) error
	SetMat4(h Handle, v ms3.Mat4) error
	SetTexture(h Handle, v Texture) error
}

// Param is the type-erased view of a [Slot] used by [Registry].
type Param interface {
	Name() string
	// Dirty reports whether the pending value still has to be written.
	Dirty() bool
	// Resolved reports whether the parameter exists in the bound target.
	Resolved() bool
	resolve(t Target)
	resync()
	commit(t Target) (wrote bool, err error)
	restore()
	release()
	markTouched() bool
	clearTouched()
}

func upload[T Value](t Target, h Handle, v T) error {
	switch v := any(v).(type) {
	case bool:
		return t.SetBool(h, v)
	case int32:
		return t.SetInt(h, v)
	case float32:
		return t.SetFloat(h, v)
	case ms2.Vec:
		return t.SetVec2(h, v)
	case ms3.Vec:
		return t.SetVec3(h, v)
	case Color:
		return t.SetColor(h, v)
	case ms3.Mat4:
		return t.SetMat4(h, v)
	case Texture:
		return t.SetTexture(h, v)
	}
	panic(fmt.Sprintf("glparam: unsupported parameter type %T", v))
}
