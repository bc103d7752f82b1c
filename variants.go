package lantern

import (
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/glcache"
	"github.com/soypat/lantern/gleffect"
)

// Backend compiles and creates GPU programs.
type Backend interface {
	glcache.Compiler
	glcache.Device[gleffect.Program]
	// LinkPipeline combines a separable vertex and pixel program.
	LinkPipeline(vs, ps gleffect.Program) (gleffect.Program, error)
	// UnlinkPipeline destroys a program returned by LinkPipeline. The stage
	// programs it was linked from are left intact.
	UnlinkPipeline(gleffect.Program)
}

// VariantStats aggregates the cache statistics of all stages.
type VariantStats struct {
	glcache.Stats
	// Programs is the number of programs held in memory.
	Programs int
	// Pipelines is the number of linked pipelines held in memory.
	Pipelines int
}

// variantSet is a family of programs indexed by sanitized flags.
type variantSet interface {
	gleffect.Source
	setSource(src []byte, compilerFlags uint32)
	precompile() error
	release()
	stats() VariantStats
}

// effectVariants holds one linked program per sanitized flag value.
type effectVariants struct {
	cache *glcache.Cache[gleffect.Program]
}

var _ variantSet = (*effectVariants)(nil)

func newEffectVariants(backend Backend, disk *glcache.Disk, log *slog.Logger) (*effectVariants, error) {
	cache, err := glcache.New(glcache.Config[gleffect.Program]{
		Stage:    glbuild.StageEffect,
		Compiler: backend,
		Device:   backend,
		Disk:     disk,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	return &effectVariants{cache: cache}, nil
}

func (ev *effectVariants) Program(flags glbuild.Flags) (gleffect.Program, error) {
	return ev.cache.Get(flags)
}

func (ev *effectVariants) setSource(src []byte, compilerFlags uint32) {
	ev.cache.SetSource(src, compilerFlags)
}

func (ev *effectVariants) precompile() error { return ev.cache.Precompile() }

func (ev *effectVariants) release() { ev.cache.Release() }

func (ev *effectVariants) stats() VariantStats {
	return VariantStats{Stats: ev.cache.Stats(), Programs: ev.cache.Len()}
}

// pipelineVariants compiles vertex and pixel programs separately, each keyed
// by the flags relevant to its stage, and links them on demand. Flag values
// that differ only in bits of one stage share the other stage's program.
type pipelineVariants struct {
	backend Backend
	vs      *glcache.Cache[gleffect.Program]
	ps      *glcache.Cache[gleffect.Program]
	linked  *lru.Cache[pipelineKey, gleffect.Program]
}

var _ variantSet = (*pipelineVariants)(nil)

type pipelineKey struct {
	vs, ps glbuild.Flags
}

func newPipelineVariants(backend Backend, disk *glcache.Disk, log *slog.Logger, size int) (*pipelineVariants, error) {
	pv := &pipelineVariants{backend: backend}
	var err error
	for _, stage := range []glbuild.Stage{glbuild.StageVertex, glbuild.StagePixel} {
		cache, cerr := glcache.New(glcache.Config[gleffect.Program]{
			Stage:    stage,
			Compiler: backend,
			Device:   backend,
			Disk:     disk,
			Logger:   log,
		})
		err = errors.Join(err, cerr)
		if stage == glbuild.StageVertex {
			pv.vs = cache
		} else {
			pv.ps = cache
		}
	}
	if err != nil {
		return nil, err
	}
	pv.linked, err = lru.NewWithEvict(size, func(_ pipelineKey, p gleffect.Program) {
		backend.UnlinkPipeline(p)
	})
	if err != nil {
		return nil, err
	}
	return pv, nil
}

func (pv *pipelineVariants) Program(flags glbuild.Flags) (gleffect.Program, error) {
	key := pipelineKey{vs: pv.vs.Key(flags), ps: pv.ps.Key(flags)}
	if p, ok := pv.linked.Get(key); ok {
		return p, nil
	}
	vs, err := pv.vs.Get(flags)
	if err != nil {
		return nil, err
	}
	ps, err := pv.ps.Get(flags)
	if err != nil {
		return nil, err
	}
	p, err := pv.backend.LinkPipeline(vs, ps)
	if err != nil {
		return nil, err
	}
	pv.linked.Add(key, p)
	return p, nil
}

func (pv *pipelineVariants) setSource(src []byte, compilerFlags uint32) {
	pv.linked.Purge()
	pv.vs.SetSource(src, compilerFlags)
	pv.ps.SetSource(src, compilerFlags)
}

func (pv *pipelineVariants) precompile() error {
	return errors.Join(pv.vs.Precompile(), pv.ps.Precompile())
}

func (pv *pipelineVariants) release() {
	// Pipelines reference stage programs so they go first.
	pv.linked.Purge()
	pv.vs.Release()
	pv.ps.Release()
}

func (pv *pipelineVariants) stats() VariantStats {
	vs, ps := pv.vs.Stats(), pv.ps.Stats()
	return VariantStats{
		Stats: glcache.Stats{
			Hits:     vs.Hits + ps.Hits,
			Loads:    vs.Loads + ps.Loads,
			Compiles: vs.Compiles + ps.Compiles,
			Failures: vs.Failures + ps.Failures,
		},
		Programs:  pv.vs.Len() + pv.ps.Len(),
		Pipelines: pv.linked.Len(),
	}
}
