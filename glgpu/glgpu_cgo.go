//go:build !tinygo && cgo

package glgpu

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/glcache"
	"github.com/soypat/lantern/gleffect"
	"github.com/soypat/lantern/glparam"
)

// Init1x1GLFW starts a 1x1 sized GLFW window with a current OpenGL 4.6
// context so that programs can be compiled without a visible window.
// terminate must be called when done with the GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "lantern",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// Backend compiles GLSL sources into program binaries and creates programs
// and pipelines from them. It implements lantern.Backend.
type Backend struct {
	log   *slog.Logger
	label bool
}

// NewBackend checks the current context supports program binaries.
func NewBackend(cfg Config) (*Backend, error) {
	var formats int32
	gl.GetIntegerv(gl.NUM_PROGRAM_BINARY_FORMATS, &formats)
	if formats == 0 {
		return nil, glErrOrMessage("driver supports no program binary formats")
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger
	}
	log.Debug("program binary formats", slog.Int("count", int(formats)))
	return &Backend{log: log, label: cfg.Label}, nil
}

// Compile compiles the stages of the combined source needed by stage and
// returns the linked program binary. source is a glgl combined source with
// the variant macros already defined.
func (b *Backend) Compile(stage glbuild.Stage, source []byte, macros []glbuild.Macro, compilerFlags uint32) ([]byte, error) {
	ss, err := glgl.ParseCombined(bytes.NewReader(source))
	if err != nil {
		return nil, &glcache.CompileError{Stage: stage, Err: err}
	}
	ss.Vertex = insertPragmas(ss.Vertex, compilerFlags)
	ss.Fragment = insertPragmas(ss.Fragment, compilerFlags)
	var id uint32
	switch stage {
	case glbuild.StageEffect:
		prog, err := glgl.CompileProgram(glgl.ShaderSource{
			Vertex:   nullTerminated(ss.Vertex),
			Fragment: nullTerminated(ss.Fragment),
		})
		if err != nil {
			return nil, &glcache.CompileError{Stage: stage, Log: err.Error()}
		}
		defer prog.Delete()
		id = prog.ID()
	case glbuild.StageVertex:
		id, err = compileSeparable(gl.VERTEX_SHADER, ss.Vertex)
	case glbuild.StagePixel:
		id, err = compileSeparable(gl.FRAGMENT_SHADER, ss.Fragment)
	default:
		return nil, fmt.Errorf("unsupported stage %s", stage)
	}
	if err != nil {
		return nil, &glcache.CompileError{Stage: stage, Log: err.Error()}
	}
	if stage != glbuild.StageEffect {
		defer gl.DeleteProgram(id)
	}
	if compilerFlags&CompileValidate != 0 {
		err = validateProgram(id)
		if err != nil {
			return nil, &glcache.CompileError{Stage: stage, Log: err.Error()}
		}
	}
	b.log.Debug("compiled program", slog.String("stage", stage.String()), slog.Int("macros", len(macros)))
	return programBinary(id)
}

func compileSeparable(shaderType uint32, src string) (uint32, error) {
	if src == "" {
		return 0, errors.New("missing shader section")
	}
	csrc, free := gl.Strs(nullTerminated(src))
	id := gl.CreateShaderProgramv(shaderType, 1, csrc)
	free()
	if id == 0 {
		return 0, glErrOrMessage("creating separable program")
	}
	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programInfoLog(id)
		gl.DeleteProgram(id)
		return 0, errors.New(log)
	}
	return id, nil
}

func validateProgram(id uint32) error {
	gl.ValidateProgram(id)
	var status int32
	gl.GetProgramiv(id, gl.VALIDATE_STATUS, &status)
	if status == gl.FALSE {
		return fmt.Errorf("validation failed: %s", programInfoLog(id))
	}
	return nil
}

func programInfoLog(id uint32) string {
	var n int32
	gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no info log"
	}
	log := make([]byte, n)
	gl.GetProgramInfoLog(id, n, nil, &log[0])
	return string(bytes.TrimRight(log, "\x00"))
}

func programBinary(id uint32) ([]byte, error) {
	var size int32
	gl.GetProgramiv(id, gl.PROGRAM_BINARY_LENGTH, &size)
	if size <= 0 {
		return nil, glErrOrMessage("program has no binary")
	}
	bin := make([]byte, size)
	var length int32
	var format uint32
	gl.GetProgramBinary(id, size, &length, &format, unsafe.Pointer(&bin[0]))
	if length <= 0 {
		return nil, glErrOrMessage("retrieving program binary")
	}
	return encodeBlob(format, bin[:length]), nil
}

// CreateProgram loads a blob returned by [Backend.Compile]. Blobs rejected by
// the driver, for example after a driver update, wrap [glcache.ErrCorrupt].
func (b *Backend) CreateProgram(stage glbuild.Stage, blob []byte) (gleffect.Program, error) {
	format, bin, err := decodeBlob(blob)
	if err != nil {
		return nil, err
	}
	id := gl.CreateProgram()
	if id == 0 {
		return nil, glErrOrMessage("creating program")
	}
	if stage != glbuild.StageEffect {
		gl.ProgramParameteri(id, gl.PROGRAM_SEPARABLE, gl.TRUE)
	}
	gl.ProgramBinary(id, format, unsafe.Pointer(&bin[0]), int32(len(bin)))
	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		gl.DeleteProgram(id)
		glgl.Err() // Clear INVALID_ENUM left by unknown formats.
		return nil, fmt.Errorf("%w: driver rejected %s binary", glcache.ErrCorrupt, stage)
	}
	if b.label {
		label := fmt.Sprintf("lantern %s %016x", stage, glbuild.Hash(bin))
		gl.ObjectLabel(gl.PROGRAM, id, int32(len(label)), gl.Str(label+"\x00"))
	}
	return newProgram(id, stage), nil
}

// DestroyProgram deletes a program created by [Backend.CreateProgram].
func (b *Backend) DestroyProgram(p gleffect.Program) {
	prog := p.(*Program)
	gl.DeleteProgram(prog.id)
	prog.id = 0
}

// LinkPipeline binds a separable vertex and pixel program into a program
// pipeline object.
func (b *Backend) LinkPipeline(vs, ps gleffect.Program) (gleffect.Program, error) {
	vp, pp := vs.(*Program), ps.(*Program)
	if vp.stage != glbuild.StageVertex || pp.stage != glbuild.StagePixel {
		return nil, fmt.Errorf("cannot link %s and %s programs", vp.stage, pp.stage)
	}
	var id uint32
	gl.GenProgramPipelines(1, &id)
	if id == 0 {
		return nil, glErrOrMessage("creating program pipeline")
	}
	gl.UseProgramStages(id, gl.VERTEX_SHADER_BIT, vp.id)
	gl.UseProgramStages(id, gl.FRAGMENT_SHADER_BIT, pp.id)
	gl.ValidateProgramPipeline(id)
	var status int32
	gl.GetProgramPipelineiv(id, gl.VALIDATE_STATUS, &status)
	if status == gl.FALSE {
		gl.DeleteProgramPipelines(1, &id)
		return nil, glErrOrMessage("program pipeline failed validation")
	}
	return &Pipeline{
		uniformTable: newUniformTable(uniformLocation, vp.id, pp.id),
		id:           id,
	}, nil
}

// UnlinkPipeline deletes a pipeline created by [Backend.LinkPipeline]. The
// stage programs are left intact.
func (b *Backend) UnlinkPipeline(p gleffect.Program) {
	pl := p.(*Pipeline)
	gl.DeleteProgramPipelines(1, &pl.id)
	pl.id = 0
}

func uniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

// Program is a linked GL program. Programs of the effect stage are drawn
// with directly, stage programs only through a [Pipeline].
type Program struct {
	*uniformTable
	id    uint32
	stage glbuild.Stage
}

var _ gleffect.Program = (*Program)(nil)

func newProgram(id uint32, stage glbuild.Stage) *Program {
	return &Program{
		uniformTable: newUniformTable(uniformLocation, id),
		id:           id,
		stage:        stage,
	}
}

// ID returns the GL program name.
func (p *Program) ID() uint32 { return p.id }

// Begin implements [gleffect.Program]. Programs have a single pass.
func (p *Program) Begin() (int, error) { return 1, nil }

func (p *Program) BeginPass(int) error {
	gl.BindProgramPipeline(0)
	gl.UseProgram(p.id)
	return nil
}

// CommitChanges reports errors raised by uniform writes since they are
// written directly to the program.
func (p *Program) CommitChanges() error { return glgl.Err() }

func (p *Program) EndPass() error {
	gl.UseProgram(0)
	return nil
}

func (p *Program) End() error { return glgl.Err() }

// Pipeline is a program pipeline object combining a vertex and pixel program.
type Pipeline struct {
	*uniformTable
	id uint32
}

var _ gleffect.Program = (*Pipeline)(nil)

// ID returns the GL program pipeline name.
func (p *Pipeline) ID() uint32 { return p.id }

func (p *Pipeline) Begin() (int, error) { return 1, nil }

func (p *Pipeline) BeginPass(int) error {
	gl.UseProgram(0)
	gl.BindProgramPipeline(p.id)
	return nil
}

func (p *Pipeline) CommitChanges() error { return glgl.Err() }

func (p *Pipeline) EndPass() error {
	gl.BindProgramPipeline(0)
	return nil
}

func (p *Pipeline) End() error { return glgl.Err() }

func (t *uniformTable) SetBool(h glparam.Handle, v bool) error {
	return t.SetInt(h, b2i(v))
}

func (t *uniformTable) SetInt(h glparam.Handle, v int32) error {
	for _, b := range t.bindings(h) {
		gl.ProgramUniform1i(b.program, b.loc, v)
	}
	return nil
}

func (t *uniformTable) SetFloat(h glparam.Handle, v float32) error {
	for _, b := range t.bindings(h) {
		gl.ProgramUniform1f(b.program, b.loc, v)
	}
	return nil
}

func (t *uniformTable) SetVec2(h glparam.Handle, v ms2.Vec) error {
	for _, b := range t.bindings(h) {
		gl.ProgramUniform2f(b.program, b.loc, v.X, v.Y)
	}
	return nil
}

func (t *uniformTable) SetVec3(h glparam.Handle, v ms3.Vec) error {
	for _, b := range t.bindings(h) {
		gl.ProgramUniform3f(b.program, b.loc, v.X, v.Y, v.Z)
	}
	return nil
}

func (t *uniformTable) SetColor(h glparam.Handle, v glparam.Color) error {
	for _, b := range t.bindings(h) {
		gl.ProgramUniform4f(b.program, b.loc, v.R, v.G, v.B, v.A)
	}
	return nil
}

func (t *uniformTable) SetMat4(h glparam.Handle, v ms3.Mat4) error {
	arr := v.Array()
	for _, b := range t.bindings(h) {
		// Array is row major.
		gl.ProgramUniformMatrix4fv(b.program, b.loc, 1, true, &arr[0])
	}
	return nil
}

func (t *uniformTable) SetTexture(h glparam.Handle, v glparam.Texture) error {
	binds := t.bindings(h)
	for _, b := range binds {
		gl.ProgramUniform1i(b.program, b.loc, v.Unit)
	}
	if len(binds) > 0 {
		gl.BindTextureUnit(uint32(v.Unit), v.ID)
	}
	return nil
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
