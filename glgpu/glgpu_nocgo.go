//go:build tinygo || !cgo

package glgpu

import (
	"errors"
	"log/slog"

	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/gleffect"
)

var errNoCGO = errors.New("OpenGL backend requires CGo and is not supported on TinyGo")

func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

type Backend struct{}

func NewBackend(cfg Config) (*Backend, error) {
	return nil, errNoCGO
}

func (b *Backend) Compile(stage glbuild.Stage, source []byte, macros []glbuild.Macro, compilerFlags uint32) ([]byte, error) {
	return nil, errNoCGO
}

func (b *Backend) CreateProgram(stage glbuild.Stage, blob []byte) (gleffect.Program, error) {
	return nil, errNoCGO
}

func (b *Backend) DestroyProgram(p gleffect.Program) {}

func (b *Backend) LinkPipeline(vs, ps gleffect.Program) (gleffect.Program, error) {
	return nil, errNoCGO
}

func (b *Backend) UnlinkPipeline(p gleffect.Program) {}

type DrawConfig struct {
	IndexFormat gleffect.IndexFormat
	Layout      func(stride uint32)
	Logger      *slog.Logger
}

type DrawBackend struct{}

func NewDrawBackend(cfg DrawConfig) (*DrawBackend, error) {
	return nil, errNoCGO
}

func (db *DrawBackend) Err() error { return errNoCGO }

func (db *DrawBackend) Delete() {}

func (db *DrawBackend) DrawPrimitive(prim gleffect.Primitive, startVertex, primCount uint32) gleffect.Result {
	return ResultGLError
}

func (db *DrawBackend) DrawIndexedPrimitive(prim gleffect.Primitive, baseVertex int32, minIndex, numVertices, startIndex, primCount uint32) gleffect.Result {
	return ResultGLError
}

func (db *DrawBackend) DrawPrimitiveUP(prim gleffect.Primitive, primCount uint32, vertexData []byte, stride uint32) gleffect.Result {
	return ResultGLError
}

func (db *DrawBackend) DrawIndexedPrimitiveUP(prim gleffect.Primitive, minIndex, numVertices, primCount uint32, indexData []byte, format gleffect.IndexFormat, vertexData []byte, stride uint32) gleffect.Result {
	return ResultGLError
}
