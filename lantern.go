// Package lantern redirects a fixed-function draw stream through palette
// lit shader programs. A [Context] owns the shader variant caches, the
// parameter set and the draw bracketing runtime of one rendering device.
//
// Draws are submitted through [Context.Draw], which forwards every call to the
// host's native backend after activating the program selected by the current
// shader flags. Higher level draws (whole models) are wrapped with
// [Context.Bracket] so that one program session and any temporary parameter
// overrides span all of their primitives.
package lantern

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/glcache"
	"github.com/soypat/lantern/gleffect"
	"github.com/soypat/lantern/glparam"
	"github.com/spf13/afero"
)

// Context is the shading state of one rendering device. It is not safe for
// concurrent use and must be used from the thread owning the device.
type Context struct {
	cfg      Config
	fs       afero.Fs
	backend  Backend
	reporter gleffect.Reporter
	log      *slog.Logger

	disk     *glcache.Disk
	variants variantSet
	params   *Params
	rt       *gleffect.Runtime
	ic       *gleffect.Interceptor

	source     []byte
	loaded     bool
	usePalette bool
	// Temporary overrides active until the outermost bracket ends.
	forceDefaultDiffuse bool
}

// ContextConfig holds the collaborators of a [Context].
type ContextConfig struct {
	Config Config
	// FS is where the shader source and cache directory live.
	FS      afero.Fs
	Backend Backend
	// Native is the host's draw API.
	Native gleffect.NativeDrawBackend
	// Reporter presents errors to the user. If nil errors are only logged.
	Reporter gleffect.Reporter
}

// NewContext creates a context. No file is read and nothing is compiled until
// [Context.LoadShader] is called; until then draws are forwarded unshaded.
func NewContext(cc ContextConfig) (*Context, error) {
	cfg := cc.Config
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	switch {
	case cc.FS == nil:
		return nil, errors.New("nil filesystem")
	case cc.Backend == nil:
		return nil, errors.New("nil backend")
	case cc.Native == nil:
		return nil, errors.New("nil native draw backend")
	}
	log := Logger()
	disk, err := glcache.NewDisk(cc.FS, cfg.CachePath)
	if err != nil {
		return nil, err
	}
	disk.SetLogger(log)
	c := &Context{
		cfg:      cfg,
		fs:       cc.FS,
		backend:  cc.Backend,
		reporter: cc.Reporter,
		log:      log,
		disk:     disk,
		params:   NewParams(),
	}
	if cfg.Program == ProgramEffect {
		c.variants, err = newEffectVariants(cc.Backend, disk, log)
	} else {
		c.variants, err = newPipelineVariants(cc.Backend, disk, log, cfg.PipelineCacheSize)
	}
	if err != nil {
		disk.Close()
		return nil, err
	}
	mode, _ := cfg.sessionMode()
	c.rt, err = gleffect.New(gleffect.Config{
		Source:   c.variants,
		Params:   c.params.Registry(),
		Mode:     mode,
		Reporter: cc.Reporter,
		Logger:   log,
		Flags:    cfg.DefaultFlags,
	})
	if err != nil {
		disk.Close()
		return nil, err
	}
	c.rt.OnTeardown(c.resetOverrides)
	// Texture units are context state the host may rebind between draws.
	c.rt.OnPreCommit(func() { glparam.Resync[glparam.Texture](c.params.Registry()) })
	// Shading stays off until a source is loaded.
	c.rt.Disable()
	c.ic = gleffect.NewInterceptor(c.rt, cc.Native)
	return c, nil
}

// Config returns the configuration the context was created with.
func (c *Context) Config() Config { return c.cfg }

// Params returns the shader parameters.
func (c *Context) Params() *Params { return c.params }

// Runtime returns the draw bracketing runtime.
func (c *Context) Runtime() *gleffect.Runtime { return c.rt }

// Draw returns the draw API hosts submit primitives through.
func (c *Context) Draw() *gleffect.Interceptor { return c.ic }

// Bracket runs fn as one logical draw. See [gleffect.Interceptor.Bracket].
func (c *Context) Bracket(fn func()) { c.ic.Bracket(fn) }

// Loaded reports whether a shader source is loaded and shading is enabled.
func (c *Context) Loaded() bool { return c.loaded && c.rt.Enabled() }

// Source returns the loaded shader source.
func (c *Context) Source() []byte { return c.source }

// Stats returns the variant cache statistics.
func (c *Context) Stats() VariantStats { return c.variants.stats() }

// LoadShader reads the shader source, validates the cache directory against
// it and, if configured, compiles every variant. On failure shading is
// disabled, the error reported and returned; draws keep working unshaded.
func (c *Context) LoadShader() error {
	err := c.load()
	if err != nil {
		c.loaded = false
		c.rt.Disable()
		c.report("Shader load failed", err)
		return err
	}
	return nil
}

func (c *Context) load() error {
	src, err := afero.ReadFile(c.fs, c.cfg.ShaderPath)
	if err != nil {
		return fmt.Errorf("reading shader source: %w", err)
	} else if len(src) == 0 {
		return fmt.Errorf("shader source %s is empty", c.cfg.ShaderPath)
	}
	c.rt.Release()
	c.source = src
	c.variants.setSource(src, c.cfg.CompilerFlags)
	// Stale binaries are discarded before any variant is compiled.
	err = c.disk.Validate()
	if err != nil {
		return err
	}
	c.log.Info("loaded shader", slog.String("path", c.cfg.ShaderPath), slog.Int("size", len(src)))
	if c.cfg.Precompile {
		err = c.variants.precompile()
		if err != nil {
			return err
		}
		st := c.variants.stats()
		c.log.Info("precompiled variants", slog.Int("programs", st.Programs), slog.Int("compiled", st.Compiles), slog.Int("loaded", st.Loads))
	}
	c.loaded = true
	c.rt.Reset()
	return nil
}

// Reload re-reads the shader source, drops every program and re-enables
// shading after a previous failure.
func (c *Context) Reload() error {
	c.log.Info("reloading shader", slog.String("path", c.cfg.ShaderPath))
	c.rt.Release()
	c.variants.release()
	return c.LoadShader()
}

// SetFlags sets or clears flags in the requested flag set.
func (c *Context) SetFlags(f glbuild.Flags, add bool) {
	c.rt.SetFlags(c.rt.Flags().With(f, add))
}

// Flags returns the requested flag set.
func (c *Context) Flags() glbuild.Flags { return c.rt.Flags() }

// SetTransform replaces a transform matrix. See [Params.SetTransform].
func (c *Context) SetTransform(kind TransformKind, m ms3.Mat4) {
	c.params.SetTransform(kind, m)
}

// SetLight sets the light direction and enables lighting.
func (c *Context) SetLight(dir ms3.Vec) {
	c.params.SetLight(dir)
	c.SetFlags(glbuild.FlagLight, true)
}

// SelectPalettes binds the palettes of lightType. Light types that are not
// palette lit turn shading off for the following draws.
func (c *Context) SelectPalettes(lightType int, landTable bool) bool {
	c.usePalette = c.Loaded() && c.params.SelectPalettes(lightType, landTable)
	if !c.usePalette {
		c.rt.SetUseEffect(false)
	}
	return c.usePalette
}

// SetMaterial sets the material of the following draws and selects the
// shader flags it needs. Draws are shaded only while a palette is selected.
func (c *Context) SetMaterial(m Material) {
	c.rt.SetUseEffect(false)
	if !c.usePalette {
		return
	}
	c.SetFlags(glbuild.FlagLight, !m.IgnoreLight)
	c.SetFlags(glbuild.FlagAlpha, m.UseAlpha)
	c.SetFlags(glbuild.FlagTexture, m.UseTexture)
	c.SetFlags(glbuild.FlagEnvMap, m.EnvMap)
	if m.UseTexture {
		tex := m.Texture
		tex.Unit = c.params.BaseTexture.Default().Unit
		c.params.BaseTexture.Set(tex)
	}
	c.params.MaterialDiffuse.Set(m.Diffuse)
	c.params.DiffuseSource.Set(int32(m.DiffuseSource))
	c.rt.SetUseEffect(true)
}

// SetFog sets the fog parameters and the fog flag.
func (c *Context) SetFog(mode FogMode, start, end, density float32, color glparam.Color) {
	c.params.SetFog(mode, start, end, density, color)
	c.SetFlags(glbuild.FlagFog, mode != FogNone)
}

// SetDiffuseOverride replaces the diffuse color of the following draws.
// A temporary override lasts until the outermost bracket ends.
func (c *Context) SetDiffuseOverride(enable bool, color ms3.Vec, temporary bool) {
	if temporary {
		c.params.DiffuseOverride.SetTemporary(enable)
		c.params.DiffuseOverrideColor.SetTemporary(color)
		return
	}
	c.params.DiffuseOverride.Set(enable)
	c.params.DiffuseOverrideColor.Set(color)
}

// SetAlphaRef sets the alpha test reference. A temporary value lasts until
// the outermost bracket ends.
func (c *Context) SetAlphaRef(ref float32, temporary bool) {
	if temporary {
		c.params.AlphaRef.SetTemporary(ref)
		return
	}
	c.params.AlphaRef.Set(ref)
}

// ForceDefaultDiffuse ignores vertex and material diffuse colors until the
// outermost bracket ends.
func (c *Context) ForceDefaultDiffuse() {
	c.forceDefaultDiffuse = true
	c.params.ForceDefaultDiffuse.Set(true)
}

func (c *Context) resetOverrides() {
	if c.forceDefaultDiffuse {
		c.forceDefaultDiffuse = false
		c.params.ForceDefaultDiffuse.Set(false)
	}
}

// SetViewport sets the viewport size and writes it to the active program
// immediately, outside of the draw bracket.
func (c *Context) SetViewport(width, height int) error {
	c.params.Viewport.Set(ms2.Vec{X: float32(width), Y: float32(height)})
	return c.params.Viewport.CommitNow()
}

// OnDeviceLost releases all GPU programs. Blobs on disk, the source and
// parameter values survive. A draw in flight is torn down.
func (c *Context) OnDeviceLost() {
	c.log.Info("device lost")
	c.rt.Abort()
	c.rt.Release()
	c.variants.release()
}

// OnDeviceReset recreates GPU state after the device was reset. Programs are
// recreated lazily, or eagerly when precompilation is configured, and every
// parameter is written again on the next shaded draw.
func (c *Context) OnDeviceReset() error {
	c.log.Info("device reset")
	if !c.loaded {
		return nil
	}
	if c.cfg.Precompile {
		err := c.variants.precompile()
		if err != nil {
			c.rt.Disable()
			c.report("Shader creation failed", err)
			return err
		}
	}
	return nil
}

// Shutdown releases every program and parameter. The context must not be
// used afterwards.
func (c *Context) Shutdown() {
	c.rt.Disable()
	c.variants.release()
	c.params.Registry().Release()
	c.disk.Close()
	c.source = nil
	c.loaded = false
}

func (c *Context) report(title string, err error) {
	c.log.Error(title, slog.String("err", err.Error()))
	if c.reporter != nil {
		c.reporter.Report(title, err)
	}
}
