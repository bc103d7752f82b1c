// Package glgpu implements the program and draw backends of lantern on top of
// OpenGL 4.6. Compiled programs are persisted as driver program binaries.
//
// Every function touching the GPU requires a current OpenGL context on the
// calling thread and CGo. Without CGo the constructors return an error.
package glgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soypat/lantern/glcache"
	"github.com/soypat/lantern/gleffect"
	"github.com/soypat/lantern/glparam"
)

// Compiler flags understood by [Backend.Compile]. They are part of the
// cache checksum so changing them recompiles every variant.
const (
	// CompileDebug enables shader debugging in drivers that support it.
	CompileDebug uint32 = 1 << iota
	// CompileNoOptimize disables driver shader optimization.
	CompileNoOptimize
	// CompileValidate validates every program against the current GL state
	// after linking and rejects programs that fail.
	CompileValidate
)

// ResultGLError is returned by [DrawBackend] draws that failed.
const ResultGLError gleffect.Result = -1

// Config configures a [Backend].
type Config struct {
	Logger *slog.Logger
	// Label names every created program after a hash of its binary so that
	// programs can be told apart in graphics debuggers.
	Label bool
}

// blobHeaderSize is the size of the binary format prefix of a program blob.
const blobHeaderSize = 4

// encodeBlob prefixes a driver program binary with its format enum.
func encodeBlob(format uint32, bin []byte) []byte {
	blob := make([]byte, blobHeaderSize+len(bin))
	binary.LittleEndian.PutUint32(blob, format)
	copy(blob[blobHeaderSize:], bin)
	return blob
}

// decodeBlob splits a blob created by encodeBlob. Malformed blobs wrap
// [glcache.ErrCorrupt].
func decodeBlob(blob []byte) (format uint32, bin []byte, err error) {
	if len(blob) <= blobHeaderSize {
		return 0, nil, fmt.Errorf("%w: program blob of %d bytes", glcache.ErrCorrupt, len(blob))
	}
	format = binary.LittleEndian.Uint32(blob)
	if format == 0 {
		return 0, nil, fmt.Errorf("%w: zero binary format", glcache.ErrCorrupt)
	}
	return format, blob[blobHeaderSize:], nil
}

// insertPragmas adds the pragmas selected by compilerFlags after the
// #version line of a single stage source.
func insertPragmas(section string, compilerFlags uint32) string {
	var pragmas string
	if compilerFlags&CompileDebug != 0 {
		pragmas += "#pragma debug(on)\n"
	}
	if compilerFlags&CompileNoOptimize != 0 {
		pragmas += "#pragma optimize(off)\n"
	}
	if pragmas == "" {
		return section
	}
	idx := strings.Index(section, "#version")
	if idx < 0 {
		return pragmas + section
	}
	nl := strings.IndexByte(section[idx:], '\n')
	if nl < 0 {
		return section + "\n" + pragmas
	}
	at := idx + nl + 1
	return section[:at] + pragmas + section[at:]
}

// nullTerminated returns s ending in a NUL byte as required by the GL bindings.
func nullTerminated(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

// vertexCount returns the number of vertices consumed by primCount
// primitives of topology prim.
func vertexCount(prim gleffect.Primitive, primCount uint32) (uint32, error) {
	if primCount == 0 {
		return 0, nil
	}
	switch prim {
	case gleffect.PointList:
		return primCount, nil
	case gleffect.LineList:
		return 2 * primCount, nil
	case gleffect.LineStrip:
		return primCount + 1, nil
	case gleffect.TriangleList:
		return 3 * primCount, nil
	case gleffect.TriangleStrip, gleffect.TriangleFan:
		return primCount + 2, nil
	}
	return 0, errors.New("invalid primitive " + prim.String())
}

// binding is one uniform location inside one program.
type binding struct {
	program uint32
	loc     int32
}

// uniformTable resolves parameter names across the programs bound together
// by a draw. A parameter declared by several stages is written to each.
type uniformTable struct {
	programs []uint32
	// locate returns the location of name in program or -1.
	locate  func(program uint32, name string) int32
	handles map[string]glparam.Handle
	entries [][]binding
}

func newUniformTable(locate func(uint32, string) int32, programs ...uint32) *uniformTable {
	return &uniformTable{
		programs: programs,
		locate:   locate,
		handles:  make(map[string]glparam.Handle),
	}
}

// Lookup implements [glparam.Target]. Results are memoized.
func (t *uniformTable) Lookup(name string) (glparam.Handle, bool) {
	if h, ok := t.handles[name]; ok {
		return h, h != missingHandle
	}
	var binds []binding
	for _, prog := range t.programs {
		loc := t.locate(prog, name)
		if loc >= 0 {
			binds = append(binds, binding{program: prog, loc: loc})
		}
	}
	if len(binds) == 0 {
		t.handles[name] = missingHandle
		return 0, false
	}
	h := glparam.Handle(len(t.entries))
	t.entries = append(t.entries, binds)
	t.handles[name] = h
	return h, true
}

const missingHandle = ^glparam.Handle(0)

func (t *uniformTable) bindings(h glparam.Handle) []binding {
	if h >= glparam.Handle(len(t.entries)) {
		return nil
	}
	return t.entries[h]
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
