package gleffect

// Primitive is the topology of a draw.
type Primitive uint8

const (
	PointList Primitive = iota + 1
	LineList
	LineStrip
	TriangleList
	TriangleStrip
	TriangleFan
)

func (p Primitive) String() string {
	switch p {
	case PointList:
		return "points"
	case LineList:
		return "lines"
	case LineStrip:
		return "line-strip"
	case TriangleList:
		return "triangles"
	case TriangleStrip:
		return "triangle-strip"
	case TriangleFan:
		return "triangle-fan"
	}
	return "undefined"
}

// IndexFormat is the width of indices in user index data.
type IndexFormat uint8

const (
	Index16 IndexFormat = iota + 1
	Index32
)

// Size returns the size in bytes of one index.
func (f IndexFormat) Size() int {
	switch f {
	case Index16:
		return 2
	case Index32:
		return 4
	}
	return 0
}

// Result is the status code returned by a native draw. Zero is success and
// negative values are failures.
type Result int32

// ResultOK is the success result.
const ResultOK Result = 0

// Failed reports whether r is a failure code.
func (r Result) Failed() bool { return r < 0 }

// NativeDrawBackend is the host's primitive submission API. Arguments are
// forwarded unmodified by [Interceptor].
type NativeDrawBackend interface {
	DrawPrimitive(prim Primitive, startVertex, primCount uint32) Result
	DrawIndexedPrimitive(prim Primitive, baseVertex int32, minIndex, numVertices, startIndex, primCount uint32) Result
	DrawPrimitiveUP(prim Primitive, primCount uint32, vertexData []byte, stride uint32) Result
	DrawIndexedPrimitiveUP(prim Primitive, minIndex, numVertices, primCount uint32, indexData []byte, format IndexFormat, vertexData []byte, stride uint32) Result
}

// Interceptor implements [NativeDrawBackend] by bracketing every draw of the
// wrapped backend with the runtime's effect activation. Draws issued from
// inside another draw, for example by a backend calling back into the
// interceptor, nest through the runtime's counter.
type Interceptor struct {
	rt      *Runtime
	backend NativeDrawBackend
}

var _ NativeDrawBackend = (*Interceptor)(nil)

// NewInterceptor wraps backend with rt.
func NewInterceptor(rt *Runtime, backend NativeDrawBackend) *Interceptor {
	if rt == nil || backend == nil {
		panic("nil runtime or backend")
	}
	return &Interceptor{rt: rt, backend: backend}
}

// Backend returns the wrapped backend.
func (ic *Interceptor) Backend() NativeDrawBackend { return ic.backend }

// Runtime returns the runtime draws are bracketed with.
func (ic *Interceptor) Runtime() *Runtime { return ic.rt }

// Bracket runs fn as a tracked draw path. Higher level draws (a model made of
// many primitives) are bracketed so that the program session and temporary
// overrides persist until the whole model is drawn.
func (ic *Interceptor) Bracket(fn func()) {
	ic.rt.Begin()
	defer ic.rt.End()
	fn()
}

func (ic *Interceptor) DrawPrimitive(prim Primitive, startVertex, primCount uint32) Result {
	ic.start()
	defer ic.finish()
	return ic.backend.DrawPrimitive(prim, startVertex, primCount)
}

func (ic *Interceptor) DrawIndexedPrimitive(prim Primitive, baseVertex int32, minIndex, numVertices, startIndex, primCount uint32) Result {
	ic.start()
	defer ic.finish()
	return ic.backend.DrawIndexedPrimitive(prim, baseVertex, minIndex, numVertices, startIndex, primCount)
}

func (ic *Interceptor) DrawPrimitiveUP(prim Primitive, primCount uint32, vertexData []byte, stride uint32) Result {
	ic.start()
	defer ic.finish()
	return ic.backend.DrawPrimitiveUP(prim, primCount, vertexData, stride)
}

func (ic *Interceptor) DrawIndexedPrimitiveUP(prim Primitive, minIndex, numVertices, primCount uint32, indexData []byte, format IndexFormat, vertexData []byte, stride uint32) Result {
	ic.start()
	defer ic.finish()
	return ic.backend.DrawIndexedPrimitiveUP(prim, minIndex, numVertices, primCount, indexData, format, vertexData, stride)
}

func (ic *Interceptor) start() {
	ic.rt.Begin()
	// Errors were reported by the runtime. The draw runs unshaded.
	ic.rt.StartEffect()
}

func (ic *Interceptor) finish() {
	if ic.rt.mode == ModePerDraw {
		ic.rt.EndEffect()
	}
	ic.rt.End()
}
