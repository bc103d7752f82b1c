// Package glcache maps sanitized shader flags to compiled programs. Programs
// are compiled once per variant and persisted to a content addressed
// directory so that later runs load them without invoking the compiler.
package glcache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/lantern/glbuild"
)

// ErrCorrupt is returned by devices when a program blob cannot be turned into a program.
var ErrCorrupt = errors.New("corrupt program binary")

// Compiler compiles shader source with a set of macros into a program blob
// which can be stored and later handed to a [Device].
type Compiler interface {
	Compile(stage glbuild.Stage, source []byte, macros []glbuild.Macro, compilerFlags uint32) (blob []byte, err error)
}

// Device creates GPU programs from compiled blobs.
type Device[P any] interface {
	CreateProgram(stage glbuild.Stage, blob []byte) (P, error)
	DestroyProgram(P)
}

// CompileError is returned when the compiler rejects a variant.
type CompileError struct {
	Stage glbuild.Stage
	Flags glbuild.Flags
	// Log is the compiler output.
	Log string
	Err error
}

func (ce *CompileError) Error() string {
	if ce.Log == "" {
		return fmt.Sprintf("compiling %s variant %02x [%s]: %v", ce.Stage, uint32(ce.Flags), ce.Flags, ce.Err)
	}
	return fmt.Sprintf("compiling %s variant %02x [%s]: %s", ce.Stage, uint32(ce.Flags), ce.Flags, ce.Log)
}

func (ce *CompileError) Unwrap() error { return ce.Err }

// Config configures a [Cache].
type Config[P any] struct {
	// Stage selects which flag bits distinguish variants and the file extension of blobs.
	Stage    glbuild.Stage
	Compiler Compiler
	Device   Device[P]
	// Disk persists blobs. If nil variants are compiled on every run.
	Disk *Disk
	// Logger receives compile and load events. May be nil.
	Logger *slog.Logger
}

// Stats counts cache activity since creation.
type Stats struct {
	Hits     int // Variants served from memory.
	Loads    int // Variants loaded from disk.
	Compiles int // Compiler invocations.
	Failures int // Failed compiles or program creations.
}

// Cache holds at most one program per stage-masked sanitized flag value.
type Cache[P any] struct {
	stage         glbuild.Stage
	compiler      Compiler
	device        Device[P]
	disk          *Disk
	log           *slog.Logger
	source        []byte
	compilerFlags uint32
	programs      map[glbuild.Flags]P
	prog          glbuild.Programmer
	stats         Stats
}

// New returns a ready to use cache. A source must be set before requesting programs.
func New[P any](cfg Config[P]) (*Cache[P], error) {
	switch {
	case cfg.Stage == glbuild.StageUndefined || cfg.Stage > glbuild.StageEffect:
		return nil, errors.New("invalid cache stage")
	case cfg.Compiler == nil:
		return nil, errors.New("nil compiler")
	case cfg.Device == nil:
		return nil, errors.New("nil device")
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger
	}
	return &Cache[P]{
		stage:    cfg.Stage,
		compiler: cfg.Compiler,
		device:   cfg.Device,
		disk:     cfg.Disk,
		log:      log.With(slog.String("stage", cfg.Stage.String())),
		programs: make(map[glbuild.Flags]P),
	}, nil
}

// Stage returns the stage programs are compiled for.
func (c *Cache[P]) Stage() glbuild.Stage { return c.stage }

// Stats returns the cache counters.
func (c *Cache[P]) Stats() Stats { return c.stats }

// Len returns the number of programs held in memory.
func (c *Cache[P]) Len() int { return len(c.programs) }

// SetSource sets the shader source and compiler flags variants are built
// from. Programs built from a previous source are destroyed.
func (c *Cache[P]) SetSource(source []byte, compilerFlags uint32) {
	c.Release()
	c.source = source
	c.compilerFlags = compilerFlags
	if c.disk != nil {
		c.disk.SetSource(source, compilerFlags)
	}
}

// Key returns the key under which the program for flags is stored.
func (c *Cache[P]) Key(flags glbuild.Flags) glbuild.Flags { return flags.Stage(c.stage) }

// Lookup returns the program for flags if it is held in memory.
func (c *Cache[P]) Lookup(flags glbuild.Flags) (P, bool) {
	p, ok := c.programs[c.Key(flags)]
	return p, ok
}

// Get returns the program for the variant selected by flags, loading it from
// disk or compiling it on a miss. Errors are not cached: a later call retries.
func (c *Cache[P]) Get(flags glbuild.Flags) (P, error) {
	var zero P
	key := c.Key(flags)
	if p, ok := c.programs[key]; ok {
		c.stats.Hits++
		return p, nil
	}
	if len(c.source) == 0 {
		return zero, errors.New("no shader source set")
	}
	name := glbuild.VariantFilename(key, c.stage)
	var blob []byte
	var loaded bool
	if c.disk != nil {
		var err error
		blob, loaded, err = c.disk.Load(name)
		if err != nil {
			return zero, err
		}
	}
	if loaded {
		p, err := c.device.CreateProgram(c.stage, blob)
		if err == nil {
			c.stats.Loads++
			c.log.Debug("loaded variant", slog.String("file", name))
			c.programs[key] = p
			return p, nil
		}
		// The binary may have been produced by another driver. Fall back to compiling.
		c.log.Warn("discarding cached variant", slog.String("file", name), slog.String("err", err.Error()))
	}

	source, macros, err := c.prog.VariantSource(c.source, key)
	if err != nil {
		return zero, err
	}
	c.log.Debug("compiling variant", slog.String("file", name), slog.String("macros", key.String()))
	c.stats.Compiles++
	blob, err = c.compiler.Compile(c.stage, source, macros, c.compilerFlags)
	if err != nil {
		c.stats.Failures++
		var ce *CompileError
		if errors.As(err, &ce) {
			// Compilers only see macros.
			ce.Stage, ce.Flags = c.stage, key
		} else {
			err = &CompileError{Stage: c.stage, Flags: key, Err: err}
		}
		return zero, err
	}
	p, err := c.device.CreateProgram(c.stage, blob)
	if err != nil {
		c.stats.Failures++
		return zero, fmt.Errorf("creating %s program %s: %w", c.stage, name, err)
	}
	if c.disk != nil {
		err = c.disk.Store(name, blob)
		if err != nil {
			c.log.Warn("persisting variant", slog.String("file", name), slog.String("err", err.Error()))
		}
	}
	c.programs[key] = p
	return p, nil
}

// Precompile materializes every legal variant of the cache's stage.
// The result is identical to requesting each variant lazily.
func (c *Cache[P]) Precompile() error {
	var errs []error
	for _, f := range glbuild.AllVariants(c.stage) {
		_, err := c.Get(f)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Release destroys all programs held in memory. Blobs on disk and the
// source are kept so that programs can be recreated after a device reset.
func (c *Cache[P]) Release() {
	for key, p := range c.programs {
		c.device.DestroyProgram(p)
		delete(c.programs, key)
	}
}
