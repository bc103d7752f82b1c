// Package gleffect brackets draw calls with shader program activation. It
// tracks draw nesting, swaps programs when the sanitized shader flags change
// and commits dirty parameters before every shaded draw.
package gleffect

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/glparam"
)

// ErrMultiPass is returned when a program requests more than one pass.
var ErrMultiPass = errors.New("multi-pass programs are not supported")

// ErrDisabled is returned by StartEffect when shading was disabled by an earlier failure.
var ErrDisabled = errors.New("shading disabled")

// Program is an activatable GPU program whose parameters are set through
// [glparam.Target]. A session is Begin, BeginPass, draws, EndPass, End.
type Program interface {
	glparam.Target
	// Begin starts a program session and returns the number of passes the program needs.
	Begin() (passes int, err error)
	BeginPass(pass int) error
	// CommitChanges flushes parameter writes performed while a pass is open.
	CommitChanges() error
	EndPass() error
	End() error
}

// Source returns the program for a sanitized flag value.
type Source interface {
	Program(flags glbuild.Flags) (Program, error)
}

// Reporter presents errors to the user. Implementations must not panic.
type Reporter interface {
	Report(title string, err error)
}

// Mode selects when program sessions are closed.
type Mode uint8

const (
	// ModePerDraw closes the program session after every draw.
	ModePerDraw Mode = iota
	// ModeBatched keeps the session open across draws until the flags
	// change or the outermost draw bracket ends.
	ModeBatched
)

func (m Mode) String() string {
	switch m {
	case ModePerDraw:
		return "per-draw"
	case ModeBatched:
		return "batched"
	}
	return "Mode(" + fmt.Sprint(uint8(m)) + ")"
}

// Config configures a [Runtime].
type Config struct {
	Source Source
	Params *glparam.Registry
	Mode   Mode
	// Reporter receives compile and session errors. May be nil.
	Reporter Reporter
	Logger   *slog.Logger
	// Flags is the initial flag set. Hosts usually start from [glbuild.DefaultFlags].
	Flags glbuild.Flags
}

// Stats counts runtime activity.
type Stats struct {
	Starts    int // StartEffect calls.
	Fallbacks int // StartEffect calls that left the draw unshaded.
	Swaps     int // Program swaps.
	Sessions  int // Program sessions opened.
	Commits   int // Commits that wrote at least one value.
	Teardowns int // Outermost End calls.
}

// Runtime is the draw bracketing state machine. It is Idle while no draw is
// in flight, Drawing while the nesting counter is positive and PassOpen while
// a program pass is active. Runtime is not safe for concurrent use; it lives on
// the render thread.
type Runtime struct {
	source   Source
	params   *glparam.Registry
	mode     Mode
	reporter Reporter
	log      *slog.Logger

	drawing   int
	useEffect bool
	enabled   bool
	flags     glbuild.Flags

	active      Program
	activeFlags glbuild.Flags
	passOpen    bool

	preCommit []func()
	teardown  []func()
	stats     Stats
}

// New returns a runtime with shading enabled.
func New(cfg Config) (*Runtime, error) {
	if cfg.Source == nil {
		return nil, errors.New("nil program source")
	} else if cfg.Params == nil {
		return nil, errors.New("nil parameter registry")
	} else if cfg.Mode > ModeBatched {
		return nil, errors.New("invalid runtime mode")
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger
	}
	return &Runtime{
		source:   cfg.Source,
		params:   cfg.Params,
		mode:     cfg.Mode,
		reporter: cfg.Reporter,
		log:      log,
		flags:    cfg.Flags,
		enabled:  true,
	}, nil
}

// Mode returns the session mode.
func (r *Runtime) Mode() Mode { return r.mode }

// Drawing returns the draw nesting depth.
func (r *Runtime) Drawing() int { return r.drawing }

// PassOpen reports whether a program pass is active.
func (r *Runtime) PassOpen() bool { return r.passOpen }

// Enabled reports whether shading is enabled. It is cleared by compile failures.
func (r *Runtime) Enabled() bool { return r.enabled }

// Active returns the active program and its sanitized flags.
func (r *Runtime) Active() (Program, glbuild.Flags) { return r.active, r.activeFlags }

// Stats returns the runtime counters.
func (r *Runtime) Stats() Stats { return r.stats }

// Flags returns the requested, unsanitized, flags.
func (r *Runtime) Flags() glbuild.Flags { return r.flags }

// SetFlags replaces the requested flags. The program is swapped on the next
// StartEffect if the sanitized value changed.
func (r *Runtime) SetFlags(f glbuild.Flags) { r.flags = f }

// UseEffect reports whether the next draws are shaded.
func (r *Runtime) UseEffect() bool { return r.useEffect }

// SetUseEffect selects whether draws inside the current bracket are shaded.
// It is cleared when the outermost bracket ends.
func (r *Runtime) SetUseEffect(use bool) { r.useEffect = use }

// OnPreCommit registers fn to run before parameters are committed in StartEffect.
func (r *Runtime) OnPreCommit(fn func()) { r.preCommit = append(r.preCommit, fn) }

// OnTeardown registers fn to run when the outermost bracket ends.
func (r *Runtime) OnTeardown(fn func()) { r.teardown = append(r.teardown, fn) }

// Begin enters a tracked draw path.
func (r *Runtime) Begin() { r.drawing++ }

// End leaves a tracked draw path. When the outermost path ends the open pass
// is closed, use-effect is cleared and temporary parameter overrides are restored.
// Unbalanced calls are ignored.
func (r *Runtime) End() {
	if r.drawing <= 0 {
		r.log.Warn("unbalanced draw end")
		r.drawing = 0
		return
	}
	r.drawing--
	if r.drawing > 0 {
		return
	}
	r.stats.Teardowns++
	r.EndEffect()
	r.useEffect = false
	r.params.ResetTemporaries()
	for _, fn := range r.teardown {
		fn()
	}
}

// Abort leaves every tracked draw path at once and tears down as the
// outermost End does. The End calls still pending from aborted paths are
// ignored as unbalanced.
func (r *Runtime) Abort() {
	if r.drawing <= 0 {
		return
	}
	r.log.Warn("aborting draw", slog.Int("depth", r.drawing))
	r.drawing = 1
	r.End()
}

// StartEffect prepares the active program for the next draw. It is called once
// per intercepted draw before the native draw executes. If shading does not
// apply the open pass is closed and the draw proceeds unshaded. A returned
// error has already been reported and logged; the draw must still execute.
func (r *Runtime) StartEffect() error {
	r.stats.Starts++
	if !r.useEffect || !r.enabled || r.drawing == 0 {
		r.stats.Fallbacks++
		r.EndEffect()
		if !r.enabled && r.useEffect {
			return ErrDisabled
		}
		return nil
	}
	flags := r.flags.Sanitize()
	if r.active == nil || flags != r.activeFlags {
		r.EndEffect()
		err := r.swap(flags)
		if err != nil {
			r.stats.Fallbacks++
			r.fail("shader creation failed", err)
			return err
		}
	}
	for _, fn := range r.preCommit {
		fn()
	}
	changed, err := r.params.CommitAll()
	if err != nil {
		r.log.Warn("committing parameters", slog.String("err", err.Error()))
	}
	if changed {
		r.stats.Commits++
	}
	if r.passOpen {
		if changed {
			err = r.active.CommitChanges()
			if err != nil {
				r.fail("committing changes failed", err)
				return err
			}
		}
		return nil
	}
	err = r.open()
	if err != nil {
		r.fail("starting shader pass failed", err)
		return err
	}
	return nil
}

// EndEffect closes the open pass and its program session, if any.
func (r *Runtime) EndEffect() {
	if !r.passOpen {
		return
	}
	r.passOpen = false
	err := r.active.EndPass()
	err = errors.Join(err, r.active.End())
	if err != nil {
		r.log.Warn("closing shader pass", slog.String("err", err.Error()))
	}
}

// Release closes any open pass and unbinds the active program so that all
// parameter handles are invalid. Used when the device is lost or the
// programs are about to be destroyed.
func (r *Runtime) Release() {
	r.EndEffect()
	r.active = nil
	r.activeFlags = 0
	r.params.Resolve(nil)
}

// Reset releases the active program and re-enables shading after a failure.
func (r *Runtime) Reset() {
	r.Release()
	r.enabled = true
}

// Disable turns shading off until [Runtime.Reset].
func (r *Runtime) Disable() {
	r.Release()
	r.enabled = false
}

func (r *Runtime) swap(flags glbuild.Flags) error {
	p, err := r.source.Program(flags)
	if err != nil {
		return err
	}
	r.log.Debug("swapping program", slog.String("flags", flags.String()))
	r.stats.Swaps++
	r.active = p
	r.activeFlags = flags
	// Every handle belongs to the previous program. Rebind them in one step.
	r.params.Resolve(p)
	return nil
}

func (r *Runtime) open() error {
	passes, err := r.active.Begin()
	if err != nil {
		return err
	}
	if passes != 1 {
		r.active.End()
		if passes > 1 {
			return fmt.Errorf("program for %s requests %d passes: %w", r.activeFlags, passes, ErrMultiPass)
		}
		return fmt.Errorf("program for %s requests %d passes", r.activeFlags, passes)
	}
	err = r.active.BeginPass(0)
	if err != nil {
		r.active.End()
		return err
	}
	r.stats.Sessions++
	r.passOpen = true
	return nil
}

// fail disables shading for the rest of the session and reports err.
func (r *Runtime) fail(title string, err error) {
	r.log.Error(title, slog.String("flags", r.flags.Sanitize().String()), slog.String("err", err.Error()))
	r.Disable()
	if r.reporter != nil {
		r.reporter.Report(title, err)
	}
}
