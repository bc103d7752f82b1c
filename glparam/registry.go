package glparam

import (
	"errors"
	"fmt"
)

// Slot is a named shader parameter of type T.
//
// A slot is dirty when its pending value differs from the value last
// committed to the program or when its handle was just resolved against a
// new program, which forces a resync.
type Slot[T Value] struct {
	reg      *Registry
	name     string
	def      T
	last     T
	pending  T
	forced   bool
	handle   Handle
	resolved bool
	touched  bool
	// Temporary override bookkeeping.
	temporary  bool
	persistent T
}

// Name returns the name of the parameter inside shader source code.
func (s *Slot[T]) Name() string { return s.name }

// Default returns the value the slot was created with.
func (s *Slot[T]) Default() T { return s.def }

// Value returns the pending value, which is the value the next commit writes.
func (s *Slot[T]) Value() T { return s.pending }

// Committed returns the value last written to the program.
func (s *Slot[T]) Committed() T { return s.last }

// Dirty implements [Param].
func (s *Slot[T]) Dirty() bool { return s.forced || s.pending != s.last }

// Resolved implements [Param].
func (s *Slot[T]) Resolved() bool { return s.resolved }

// Set assigns v as the slot's pending value. See [Registry.Assign].
func (s *Slot[T]) Set(v T) {
	if s.temporary {
		// A persistent write during a temporary override becomes the value restored at teardown.
		s.persistent = v
		return
	}
	s.set(v)
}

// SetTemporary assigns v until the registry's temporaries are reset, after
// which the slot returns to the last value given to [Slot.Set].
func (s *Slot[T]) SetTemporary(v T) {
	if !s.temporary {
		s.temporary = true
		s.persistent = s.pending
		s.reg.temps = append(s.reg.temps, s)
	}
	s.set(v)
}

// Reset assigns the slot's default value.
func (s *Slot[T]) Reset() { s.Set(s.def) }

// CommitNow writes the slot to the bound program immediately, bypassing
// the touched set. It is a no-op when no program is bound.
func (s *Slot[T]) CommitNow() error {
	t := s.reg.target
	if t == nil {
		return nil
	}
	_, err := s.commit(t)
	return err
}

func (s *Slot[T]) set(v T) {
	s.pending = v
	s.reg.touch(s)
}

func (s *Slot[T]) resolve(t Target) {
	if t == nil {
		s.handle, s.resolved, s.forced = 0, false, false
		return
	}
	s.handle, s.resolved = t.Lookup(s.name)
	s.resync()
}

// resync forces the next commit to write the pending value since the
// program's copy of the parameter is unknown.
func (s *Slot[T]) resync() { s.forced = s.resolved }

func (s *Slot[T]) commit(t Target) (wrote bool, err error) {
	if !s.Dirty() {
		return false, nil
	}
	if s.resolved {
		err = upload(t, s.handle, s.pending)
		if err != nil {
			return false, fmt.Errorf("committing %q: %w", s.name, err)
		}
		wrote = true
	}
	s.last = s.pending
	s.forced = false
	return wrote, nil
}

func (s *Slot[T]) restore() {
	if !s.temporary {
		return
	}
	s.temporary = false
	s.set(s.persistent)
}

func (s *Slot[T]) release() {
	var z T
	s.handle, s.resolved, s.forced = 0, false, false
	s.temporary, s.persistent = false, z
	s.pending, s.last = s.def, s.def
	s.touched = false
}

// Registry is the ordered collection of all parameters of a shader program
// family. It remembers which parameters were assigned since the last commit,
// in assignment order.
type Registry struct {
	params  []Param
	byName  map[string]Param
	touched []Param
	temps   []Param
	target  Target
	writes  int
}

// NewSlot registers a new parameter named name with default value def.
// It panics if the name is already registered.
func NewSlot[T Value](r *Registry, name string, def T) *Slot[T] {
	if name == "" {
		panic("glparam: empty parameter name")
	}
	if r.byName == nil {
		r.byName = make(map[string]Param)
	} else if _, dup := r.byName[name]; dup {
		panic("glparam: duplicate parameter " + name)
	}
	s := &Slot[T]{reg: r, name: name, def: def, last: def, pending: def}
	r.params = append(r.params, s)
	r.byName[name] = s
	return s
}

// Lookup returns the parameter registered as name.
func (r *Registry) Lookup(name string) (Param, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Assign sets the pending value of the parameter named name. Assigning a
// value of a type different from the registered one is a programming error
// and panics.
func Assign[T Value](r *Registry, name string, v T) {
	p, ok := r.byName[name]
	if !ok {
		panic("glparam: unknown parameter " + name)
	}
	s, ok := p.(*Slot[T])
	if !ok {
		panic(fmt.Sprintf("glparam: parameter %q is %T, cannot assign %T", name, p, v))
	}
	s.Set(v)
}

// Params returns all registered parameters in registration order.
func (r *Registry) Params() []Param { return r.params }

// Touched returns the parameters assigned since the last commit, in assignment order.
func (r *Registry) Touched() []Param { return r.touched }

// Target returns the program parameters are committed to. It is nil when no program is bound.
func (r *Registry) Target() Target { return r.target }

// Writes returns the total number of values written to programs.
func (r *Registry) Writes() int { return r.writes }

func (r *Registry) touch(p Param) {
	if p.markTouched() {
		r.touched = append(r.touched, p)
	}
}

func (s *Slot[T]) markTouched() bool {
	if s.touched {
		return false
	}
	s.touched = true
	return true
}

func (s *Slot[T]) clearTouched() { s.touched = false }

// Resolve binds all parameters to t in one step, looking up every handle by
// name. Parameters absent from t are skipped by later commits. Every resolved
// parameter is scheduled for the next commit so t receives the current values.
// A nil t unbinds the registry keeping pending values.
func (r *Registry) Resolve(t Target) {
	r.target = t
	for _, p := range r.params {
		p.resolve(t)
		if p.Resolved() {
			r.touch(p)
		}
	}
}

// CommitAll writes every dirty touched parameter to the bound program in
// assignment order and clears the touched set. Parameters whose write failed
// stay in the touched set. It reports whether any value
// was written. Without a bound program CommitAll does nothing.
func (r *Registry) CommitAll() (changed bool, err error) {
	t := r.target
	if t == nil {
		return false, nil
	}
	var errs []error
	var failed []Param
	for _, p := range r.touched {
		wrote, err := p.commit(t)
		p.clearTouched()
		if err != nil {
			errs = append(errs, err)
			failed = append(failed, p)
			continue
		}
		changed = changed || wrote
		if wrote {
			r.writes++
		}
	}
	clear(r.touched)
	r.touched = r.touched[:0]
	// Failed parameters are still dirty and are retried by the next commit.
	for _, p := range failed {
		r.touch(p)
	}
	return changed, errors.Join(errs...)
}

// CommitEverything writes every resolved parameter regardless of its dirty
// state. Used after device resets where the GPU lost all program state.
func (r *Registry) CommitEverything() error {
	t := r.target
	if t == nil {
		return nil
	}
	for _, p := range r.params {
		if p.Resolved() {
			p.resync()
			r.touch(p)
		}
	}
	_, err := r.CommitAll()
	return err
}

// Resync schedules every resolved parameter of type T to be written by the
// next commit even if its value is unchanged. Used for values that mirror
// state shared with code outside the registry, such as texture units.
func Resync[T Value](r *Registry) {
	for _, p := range r.params {
		s, ok := p.(*Slot[T])
		if ok && s.resolved {
			s.resync()
			r.touch(s)
		}
	}
}

// ResetTemporaries restores every parameter set with SetTemporary to its
// persistent value.
func (r *Registry) ResetTemporaries() {
	for _, p := range r.temps {
		p.restore()
	}
	clear(r.temps)
	r.temps = r.temps[:0]
}

// Release unbinds the registry from its program and returns every
// parameter to its default value, dropping held texture references.
func (r *Registry) Release() {
	r.target = nil
	for _, p := range r.params {
		p.release()
	}
	clear(r.touched)
	r.touched = r.touched[:0]
	clear(r.temps)
	r.temps = r.temps[:0]
}
