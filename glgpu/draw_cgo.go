//go:build !tinygo && cgo

package glgpu

import (
	"errors"
	"log/slog"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/lantern/gleffect"
)

var errEmptyData = errors.New("empty user pointer data")

// DrawConfig configures a [DrawBackend].
type DrawConfig struct {
	// IndexFormat is the format of the element buffer bound by the host for
	// indexed draws.
	IndexFormat gleffect.IndexFormat
	// Layout declares the vertex attributes of user pointer draws. It is
	// called with the streaming vertex buffer bound to GL_ARRAY_BUFFER.
	Layout func(stride uint32)
	Logger *slog.Logger
}

// DrawBackend submits draws to OpenGL. Draws from host buffers use whatever
// vertex array the host has bound. User pointer draws stream their data
// through buffers owned by the backend.
type DrawBackend struct {
	indexFormat gleffect.IndexFormat
	layout      func(stride uint32)
	log         *slog.Logger
	vao         uint32
	vbo         uint32
	ebo         uint32
	err         error
}

var _ gleffect.NativeDrawBackend = (*DrawBackend)(nil)

// NewDrawBackend creates the streaming buffers of user pointer draws.
func NewDrawBackend(cfg DrawConfig) (*DrawBackend, error) {
	if cfg.IndexFormat == 0 {
		cfg.IndexFormat = gleffect.Index16
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger
	}
	db := &DrawBackend{indexFormat: cfg.IndexFormat, layout: cfg.Layout, log: cfg.Logger}
	gl.GenVertexArrays(1, &db.vao)
	gl.GenBuffers(1, &db.vbo)
	gl.GenBuffers(1, &db.ebo)
	if db.vao == 0 || db.vbo == 0 || db.ebo == 0 {
		db.Delete()
		return nil, glErrOrMessage("creating streaming buffers")
	}
	return db, nil
}

// Err returns the error of the last failed draw.
func (db *DrawBackend) Err() error { return db.err }

// Delete frees the streaming buffers.
func (db *DrawBackend) Delete() {
	gl.DeleteVertexArrays(1, &db.vao)
	gl.DeleteBuffers(1, &db.vbo)
	gl.DeleteBuffers(1, &db.ebo)
	db.vao, db.vbo, db.ebo = 0, 0, 0
}

func (db *DrawBackend) DrawPrimitive(prim gleffect.Primitive, startVertex, primCount uint32) gleffect.Result {
	n, err := vertexCount(prim, primCount)
	if err != nil {
		return db.fail(err)
	}
	gl.DrawArrays(glMode(prim), int32(startVertex), int32(n))
	return db.check()
}

func (db *DrawBackend) DrawIndexedPrimitive(prim gleffect.Primitive, baseVertex int32, minIndex, numVertices, startIndex, primCount uint32) gleffect.Result {
	n, err := vertexCount(prim, primCount)
	if err != nil {
		return db.fail(err)
	}
	offset := int(startIndex) * db.indexFormat.Size()
	gl.DrawElementsBaseVertex(glMode(prim), int32(n), glIndexType(db.indexFormat), gl.PtrOffset(offset), baseVertex)
	return db.check()
}

func (db *DrawBackend) DrawPrimitiveUP(prim gleffect.Primitive, primCount uint32, vertexData []byte, stride uint32) gleffect.Result {
	n, err := vertexCount(prim, primCount)
	if err != nil {
		return db.fail(err)
	} else if n == 0 {
		return gleffect.ResultOK
	} else if len(vertexData) == 0 {
		return db.fail(errEmptyData)
	}
	restore := db.bindStream(vertexData, stride)
	defer restore()
	gl.DrawArrays(glMode(prim), 0, int32(n))
	return db.check()
}

func (db *DrawBackend) DrawIndexedPrimitiveUP(prim gleffect.Primitive, minIndex, numVertices, primCount uint32, indexData []byte, format gleffect.IndexFormat, vertexData []byte, stride uint32) gleffect.Result {
	n, err := vertexCount(prim, primCount)
	if err != nil {
		return db.fail(err)
	} else if n == 0 {
		return gleffect.ResultOK
	} else if len(vertexData) == 0 || len(indexData) == 0 {
		return db.fail(errEmptyData)
	}
	restore := db.bindStream(vertexData, stride)
	defer restore()
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, db.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indexData), gl.Ptr(indexData), gl.STREAM_DRAW)
	gl.DrawElements(glMode(prim), int32(n), glIndexType(format), gl.PtrOffset(0))
	return db.check()
}

// bindStream uploads vertex data to the streaming buffer and returns a
// function restoring the host's vertex array.
func (db *DrawBackend) bindStream(vertexData []byte, stride uint32) (restore func()) {
	var prev int32
	gl.GetIntegerv(gl.VERTEX_ARRAY_BINDING, &prev)
	gl.BindVertexArray(db.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, db.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertexData), gl.Ptr(vertexData), gl.STREAM_DRAW)
	if db.layout != nil {
		db.layout(stride)
	}
	return func() { gl.BindVertexArray(uint32(prev)) }
}

func (db *DrawBackend) check() gleffect.Result {
	err := glgl.Err()
	if err != nil {
		return db.fail(err)
	}
	return gleffect.ResultOK
}

func (db *DrawBackend) fail(err error) gleffect.Result {
	db.err = err
	db.log.Error("draw failed", slog.String("err", err.Error()))
	return ResultGLError
}

func glMode(prim gleffect.Primitive) uint32 {
	switch prim {
	case gleffect.PointList:
		return gl.POINTS
	case gleffect.LineList:
		return gl.LINES
	case gleffect.LineStrip:
		return gl.LINE_STRIP
	case gleffect.TriangleStrip:
		return gl.TRIANGLE_STRIP
	case gleffect.TriangleFan:
		return gl.TRIANGLE_FAN
	}
	return gl.TRIANGLES
}

func glIndexType(f gleffect.IndexFormat) uint32 {
	if f == gleffect.Index32 {
		return gl.UNSIGNED_INT
	}
	return gl.UNSIGNED_SHORT
}
