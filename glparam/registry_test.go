package glparam_test

import (
	"errors"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/lantern/glparam"
)

type write struct {
	h glparam.Handle
	v any
}

// fakeTarget records writes. Only names present in handles resolve.
type fakeTarget struct {
	handles map[string]glparam.Handle
	writes  []write
	fail    glparam.Handle
}

func newFakeTarget(names ...string) *fakeTarget {
	t := &fakeTarget{handles: make(map[string]glparam.Handle)}
	for i, name := range names {
		t.handles[name] = glparam.Handle(i + 1)
	}
	return t
}

func (t *fakeTarget) Lookup(name string) (glparam.Handle, bool) {
	h, ok := t.handles[name]
	return h, ok
}

func (t *fakeTarget) set(h glparam.Handle, v any) error {
	if h == t.fail {
		return errors.New("write failed")
	}
	t.writes = append(t.writes, write{h: h, v: v})
	return nil
}

func (t *fakeTarget) SetBool(h glparam.Handle, v bool) error           { return t.set(h, v) }
func (t *fakeTarget) SetInt(h glparam.Handle, v int32) error           { return t.set(h, v) }
func (t *fakeTarget) SetFloat(h glparam.Handle, v float32) error       { return t.set(h, v) }
func (t *fakeTarget) SetVec2(h glparam.Handle, v ms2.Vec) error        { return t.set(h, v) }
func (t *fakeTarget) SetVec3(h glparam.Handle, v ms3.Vec) error        { return t.set(h, v) }
func (t *fakeTarget) SetColor(h glparam.Handle, v glparam.Color) error { return t.set(h, v) }
func (t *fakeTarget) SetMat4(h glparam.Handle, v ms3.Mat4) error       { return t.set(h, v) }
func (t *fakeTarget) SetTexture(h glparam.Handle, v glparam.Texture) error {
	return t.set(h, v)
}

func (t *fakeTarget) reset() { t.writes = t.writes[:0] }

func TestCommitMinimality(t *testing.T) {
	var reg glparam.Registry
	alpha := glparam.NewSlot(&reg, "AlphaRef", float32(16.0/255))
	target := newFakeTarget("AlphaRef")
	reg.Resolve(target)
	if _, err := reg.CommitAll(); err != nil {
		t.Fatal(err)
	}
	target.reset()

	alpha.Set(0.5)
	alpha.Set(0.5)
	changed, err := reg.CommitAll()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(target.writes) != 1 {
		t.Fatalf("want exactly one write, got %d (changed=%v)", len(target.writes), changed)
	}
	if target.writes[0].v != float32(0.5) {
		t.Errorf("wrote %v", target.writes[0].v)
	}

	// No changes since last commit.
	changed, err = reg.CommitAll()
	if err != nil || changed || len(target.writes) != 1 {
		t.Fatalf("second commit should be a no-op: changed=%v writes=%d err=%v", changed, len(target.writes), err)
	}

	// Assigning the committed value again does not write.
	alpha.Set(0.5)
	changed, _ = reg.CommitAll()
	if changed || len(target.writes) != 1 {
		t.Errorf("equal assignment caused a write")
	}
	if alpha.Dirty() {
		t.Error("slot dirty after commit")
	}
}

func TestCommitOrderDedup(t *testing.T) {
	var reg glparam.Registry
	a := glparam.NewSlot(&reg, "a", int32(0))
	b := glparam.NewSlot(&reg, "b", int32(0))
	c := glparam.NewSlot(&reg, "c", int32(0))
	target := newFakeTarget("a", "b", "c")
	reg.Resolve(target)
	reg.CommitAll()
	target.reset()

	c.Set(1)
	a.Set(1)
	c.Set(2)
	b.Set(1)
	if n := len(reg.Touched()); n != 3 {
		t.Fatalf("want 3 touched, got %d", n)
	}
	reg.CommitAll()
	want := []write{{h: 3, v: int32(2)}, {h: 1, v: int32(1)}, {h: 2, v: int32(1)}}
	if len(target.writes) != len(want) {
		t.Fatalf("want %d writes, got %v", len(want), target.writes)
	}
	for i := range want {
		if target.writes[i] != want[i] {
			t.Errorf("write %d: want %v, got %v", i, want[i], target.writes[i])
		}
	}
	if len(reg.Touched()) != 0 {
		t.Error("touched set not cleared")
	}
}

func TestCommitSkipsMissing(t *testing.T) {
	var reg glparam.Registry
	fog := glparam.NewSlot(&reg, "FogColor", glparam.Color{})
	scale := glparam.NewSlot(&reg, "NormalScale", ms3.Vec{X: 1, Y: 1, Z: 1})
	target := newFakeTarget("NormalScale")
	reg.Resolve(target)
	if fog.Resolved() || !scale.Resolved() {
		t.Fatal("unexpected resolution")
	}
	reg.CommitAll()
	target.reset()

	fog.Set(glparam.Color{R: 1, A: 1})
	scale.Set(ms3.Vec{X: 2, Y: 2, Z: 2})
	changed, err := reg.CommitAll()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(target.writes) != 1 || target.writes[0].h != 1 {
		t.Fatalf("expected only NormalScale written: %v", target.writes)
	}
	if fog.Dirty() {
		t.Error("unresolvable slot should not stay dirty")
	}
}

func TestResolveResync(t *testing.T) {
	var reg glparam.Registry
	idx := glparam.NewSlot(&reg, "DiffuseIndex", int32(0))
	first := newFakeTarget("DiffuseIndex")
	reg.Resolve(first)
	idx.Set(3)
	reg.CommitAll()
	if len(first.writes) != 1 {
		t.Fatalf("want 1 write, got %d", len(first.writes))
	}

	// A new program has no knowledge of previous values.
	second := newFakeTarget("unrelated", "DiffuseIndex")
	reg.Resolve(second)
	if !idx.Dirty() {
		t.Fatal("resolved slot should be dirty")
	}
	changed, _ := reg.CommitAll()
	if !changed || len(second.writes) != 1 || second.writes[0] != (write{h: 2, v: int32(3)}) {
		t.Fatalf("expected resync write, got %v", second.writes)
	}
	if len(first.writes) != 1 {
		t.Error("old target written after swap")
	}
}

func TestCommitWithoutTarget(t *testing.T) {
	var reg glparam.Registry
	s := glparam.NewSlot(&reg, "BlendFactor", float32(0))
	s.Set(0.25)
	changed, err := reg.CommitAll()
	if changed || err != nil {
		t.Fatalf("commit without target: changed=%v err=%v", changed, err)
	}
	if s.Committed() != 0 || !s.Dirty() {
		t.Error("state modified without target")
	}
	target := newFakeTarget("BlendFactor")
	reg.Resolve(target)
	reg.CommitAll()
	if len(target.writes) != 1 || target.writes[0].v != float32(0.25) {
		t.Fatalf("pending value lost: %v", target.writes)
	}

	// Unbinding keeps host state.
	reg.Resolve(nil)
	s.Set(0.75)
	if changed, _ := reg.CommitAll(); changed {
		t.Error("commit wrote with no target")
	}
	if s.Value() != 0.75 {
		t.Error("pending value lost after unbind")
	}
}

func TestAssignTypeMismatch(t *testing.T) {
	var reg glparam.Registry
	glparam.NewSlot(&reg, "UseTexture", false)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on type mismatch")
		}
	}()
	glparam.Assign(&reg, "UseTexture", int32(1))
}

func TestAssignByName(t *testing.T) {
	var reg glparam.Registry
	s := glparam.NewSlot(&reg, "ViewPort", ms2.Vec{})
	glparam.Assign(&reg, "ViewPort", ms2.Vec{X: 640, Y: 480})
	if s.Value() != (ms2.Vec{X: 640, Y: 480}) {
		t.Errorf("got %v", s.Value())
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown name")
		}
	}()
	glparam.Assign(&reg, "Nope", int32(0))
}

func TestDuplicateSlot(t *testing.T) {
	var reg glparam.Registry
	glparam.NewSlot(&reg, "a", int32(0))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate name")
		}
	}()
	glparam.NewSlot(&reg, "a", float32(0))
}

func TestTemporaries(t *testing.T) {
	var reg glparam.Registry
	override := glparam.NewSlot(&reg, "DiffuseOverride", false)
	alpha := glparam.NewSlot(&reg, "AlphaRef", float32(0.1))
	target := newFakeTarget("DiffuseOverride", "AlphaRef")
	reg.Resolve(target)
	reg.CommitAll()

	override.SetTemporary(true)
	alpha.SetTemporary(0.9)
	alpha.Set(0.2) // Persistent write while overridden.
	if alpha.Value() != 0.9 {
		t.Fatalf("temporary value replaced: %v", alpha.Value())
	}
	reg.CommitAll()
	target.reset()

	reg.ResetTemporaries()
	if override.Value() || alpha.Value() != 0.2 {
		t.Fatalf("temporaries not restored: %v %v", override.Value(), alpha.Value())
	}
	reg.CommitAll()
	if len(target.writes) != 2 {
		t.Fatalf("want 2 restoring writes, got %v", target.writes)
	}
	// Restoring twice is harmless.
	reg.ResetTemporaries()
	if changed, _ := reg.CommitAll(); changed {
		t.Error("second reset caused writes")
	}
}

func TestCommitEverythingAndRelease(t *testing.T) {
	var reg glparam.Registry
	a := glparam.NewSlot(&reg, "a", int32(7))
	glparam.NewSlot(&reg, "b", glparam.Texture{})
	glparam.NewSlot(&reg, "c", float32(1))
	target := newFakeTarget("a", "b")
	reg.Resolve(target)
	reg.CommitAll()
	target.reset()

	if err := reg.CommitEverything(); err != nil {
		t.Fatal(err)
	}
	if len(target.writes) != 2 {
		t.Fatalf("want 2 writes of resolved slots, got %v", target.writes)
	}
	a.Set(9)
	reg.Release()
	if reg.Target() != nil || a.Resolved() || a.Value() != 7 || len(reg.Touched()) != 0 {
		t.Error("release did not restore defaults")
	}
}

func TestCommitErrorJoined(t *testing.T) {
	var reg glparam.Registry
	a := glparam.NewSlot(&reg, "a", int32(0))
	b := glparam.NewSlot(&reg, "b", int32(0))
	target := newFakeTarget("a", "b")
	target.fail = 1
	reg.Resolve(target)
	a.Set(1)
	b.Set(1)
	_, err := reg.CommitAll()
	if err == nil {
		t.Fatal("expected error")
	}
	if len(target.writes) != 1 || target.writes[0].h != 2 {
		t.Errorf("remaining slots should still be written: %v", target.writes)
	}
	if !a.Dirty() {
		t.Error("failed slot should remain dirty")
	}
}

func TestCommitRetriesFailed(t *testing.T) {
	var reg glparam.Registry
	a := glparam.NewSlot(&reg, "a", int32(0))
	target := newFakeTarget("a")
	reg.Resolve(target)
	reg.CommitAll()
	target.reset()

	target.fail = 1
	a.Set(5)
	if _, err := reg.CommitAll(); err == nil {
		t.Fatal("expected error")
	}
	if len(reg.Touched()) != 1 || !a.Dirty() {
		t.Fatalf("failed slot dropped: touched=%d dirty=%v", len(reg.Touched()), a.Dirty())
	}
	// The target recovers and the next commit writes the pending value.
	target.fail = 0
	changed, err := reg.CommitAll()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(target.writes) != 1 || target.writes[0].v != int32(5) {
		t.Errorf("retry did not write: changed=%v writes=%v", changed, target.writes)
	}
	if a.Dirty() || len(reg.Touched()) != 0 {
		t.Error("slot still pending after successful retry")
	}
}

func TestResyncTextures(t *testing.T) {
	var reg glparam.Registry
	tex := glparam.NewSlot(&reg, "tex", glparam.Texture{Unit: 1})
	f := glparam.NewSlot(&reg, "f", float32(0))
	missing := glparam.NewSlot(&reg, "missing", glparam.Texture{Unit: 2})
	target := newFakeTarget("tex", "f")
	reg.Resolve(target)
	tex.Set(glparam.Texture{ID: 3, Unit: 1})
	reg.CommitAll()
	target.reset()

	// Same texture assigned again: nothing to write unless units are resynced.
	tex.Set(glparam.Texture{ID: 3, Unit: 1})
	if changed, _ := reg.CommitAll(); changed {
		t.Fatal("unchanged texture written")
	}
	glparam.Resync[glparam.Texture](&reg)
	if !tex.Dirty() || f.Dirty() || missing.Dirty() {
		t.Errorf("resync marked wrong slots: tex=%v f=%v missing=%v", tex.Dirty(), f.Dirty(), missing.Dirty())
	}
	changed, err := reg.CommitAll()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(target.writes) != 1 || target.writes[0].h != 1 {
		t.Errorf("texture not rebound: %v", target.writes)
	}
}
