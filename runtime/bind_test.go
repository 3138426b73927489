package runtime

import (
	"errors"
	"testing"
)

// makeBlock builds an array of word cells from spellings. Entries
// starting with a nested slice marker are not supported here; tests
// that need nesting build it by hand.
func makeBlock(p *Pool, in *Interner, spellings ...string) *Series {
	block := p.AllocArrayCap(len(spellings))
	for _, sp := range spellings {
		var w Cell
		w.InitWord(KindWord, in.Intern(p, sp))
		block.Append(w)
	}
	return block
}

func makeTestAction(p *Pool, in *Interner, params ...string) *Action {
	specs := make([]Param, len(params))
	for i, sp := range params {
		specs[i] = Param{
			Class:    KindParamNormal,
			Symbol:   in.Intern(p, sp),
			Typebits: anyValueTypebits,
		}
	}
	return MakeAction(p, specs, p.AllocArray(0))
}

func TestBindValuesAndGetVar(t *testing.T) {
	p, in := newTestEnv()
	ctx := AllocContext(p, KindObject, 2)
	_, slot := ctx.AppendVar(p, in.Intern(p, "x"))
	slot.InitInteger(10)
	_, slot = ctx.AppendVar(p, in.Intern(p, "y"))
	slot.InitInteger(20)

	block := makeBlock(p, in, "y", "z", "x")
	BindValues(p, block.Head(), ctx, 0)

	got, err := GetVar(block.At(0), Specified)
	if err != nil {
		t.Fatalf("GetVar(y) = %v", err)
	}
	if got.Integer() != 20 {
		t.Fatalf("y = %d, want 20", got.Integer())
	}

	if _, err := GetVar(block.At(1), Specified); !errors.Is(err, ErrNotBound) {
		t.Fatalf("GetVar(z) = %v, want ErrNotBound", err)
	}

	if block.At(2).WordIndex() != 1 {
		t.Fatal("x did not bind to slot 1")
	}
}

func TestBindValuesDeep(t *testing.T) {
	p, in := newTestEnv()
	ctx := AllocContext(p, KindObject, 1)
	_, slot := ctx.AppendVar(p, in.Intern(p, "x"))
	slot.InitInteger(1)

	inner := makeBlock(p, in, "x")
	outer := p.AllocArrayCap(2)
	var nest Cell
	nest.InitArray(KindBlock, inner)
	outer.Append(nest)
	var w Cell
	w.InitWord(KindWord, in.Intern(p, "x"))
	outer.Append(w)

	BindValues(p, outer.Head(), ctx, 0)
	if inner.At(0).Binding().IsSpecific() {
		t.Fatal("shallow bind recursed into the nested block")
	}

	BindValues(p, outer.Head(), ctx, BindDeep)
	if !inner.At(0).Binding().IsSpecific() {
		t.Fatal("deep bind skipped the nested block")
	}
}

func TestBindValuesAdd(t *testing.T) {
	p, in := newTestEnv()
	ctx := AllocContext(p, KindObject, 2)
	ctx.AppendVar(p, in.Intern(p, "x"))

	block := makeBlock(p, in, "x", "fresh", "fresh")
	BindValues(p, block.Head(), ctx, BindAdd)

	if ctx.Len() != 2 {
		t.Fatalf("ctx.Len() = %d, want 2", ctx.Len())
	}
	if block.At(1).WordIndex() != 2 || block.At(2).WordIndex() != 2 {
		t.Fatal("repeated new word did not share one slot")
	}
}

func TestUnbindAndRebind(t *testing.T) {
	p, in := newTestEnv()
	a := AllocContext(p, KindObject, 1)
	_, slot := a.AppendVar(p, in.Intern(p, "x"))
	slot.InitInteger(1)
	b := AllocContext(p, KindObject, 2)
	b.AppendVar(p, in.Intern(p, "pad"))
	_, slot = b.AppendVar(p, in.Intern(p, "x"))
	slot.InitInteger(2)

	block := makeBlock(p, in, "x")
	BindValues(p, block.Head(), a, 0)

	RebindValuesDeep(a, b, block.Head())
	got, err := GetVar(block.At(0), Specified)
	if err != nil {
		t.Fatalf("GetVar after rebind = %v", err)
	}
	if got.Integer() != 2 {
		t.Fatalf("rebound x = %d, want 2", got.Integer())
	}
	if block.At(0).WordIndex() != 2 {
		t.Fatal("rebind kept the old slot index")
	}

	UnbindValues(block.Head(), nil)
	if _, err := GetVar(block.At(0), Specified); !errors.Is(err, ErrNotBound) {
		t.Fatalf("GetVar after unbind = %v, want ErrNotBound", err)
	}
}

func TestSetVarProtection(t *testing.T) {
	p, in := newTestEnv()
	ctx := AllocContext(p, KindObject, 2)
	ctx.AppendVar(p, in.Intern(p, "open"))
	_, sealed := ctx.AppendVar(p, in.Intern(p, "sealed"))
	sealed.Protect(true)

	block := makeBlock(p, in, "open", "sealed")
	BindValues(p, block.Head(), ctx, 0)

	var v Cell
	v.InitInteger(5)
	if err := SetVar(block.At(0), Specified, &v); err != nil {
		t.Fatalf("SetVar(open) = %v", err)
	}
	if err := SetVar(block.At(1), Specified, &v); !errors.Is(err, ErrProtected) {
		t.Fatalf("SetVar(sealed) = %v, want ErrProtected", err)
	}

	ctx.Protect(true)
	if err := SetVar(block.At(0), Specified, &v); !errors.Is(err, ErrProtected) {
		t.Fatalf("SetVar on protected context = %v, want ErrProtected", err)
	}
}

func TestOverrideThroughFrameSpecifier(t *testing.T) {
	p, in := newTestEnv()

	base := AllocContext(p, KindObject, 1)
	_, slot := base.AppendVar(p, in.Intern(p, "field"))
	slot.InitInteger(100)

	derived := ExpandContext(p, base, []*Series{in.Intern(p, "extra")})
	derived.Var(1).InitInteger(200)

	// A word bound into the base, as a shared method body would hold.
	var w Cell
	w.InitWord(KindWord, in.Intern(p, "field"))
	TryBindWord(base, &w)

	// Invoked without a deriving binding, the stored context applies.
	got, err := GetVar(&w, Specified)
	if err != nil || got.Integer() != 100 {
		t.Fatalf("unspecified read = %v, %v; want 100", got, err)
	}

	// Invoked through a frame whose action cell carried the derived
	// context, the derivation's slot wins.
	fs := NewFrameStack()
	act := makeTestAction(p, in, "arg")
	f := fs.Push(p, act, SpecificBinding(derived))

	got, err = GetVar(&w, f.Context())
	if err != nil {
		t.Fatalf("overridden read = %v", err)
	}
	if got.Integer() != 200 {
		t.Fatalf("overridden read = %d, want 200", got.Integer())
	}

	fs.Pop(p, f, false)
}

func TestOverrideIsTransitive(t *testing.T) {
	p, in := newTestEnv()

	a := AllocContext(p, KindObject, 1)
	a.AppendVar(p, in.Intern(p, "x"))
	b := ExpandContext(p, a, []*Series{in.Intern(p, "y")})
	c := ExpandContext(p, b, []*Series{in.Intern(p, "z")})

	if !IsOverriding(a, b) || !IsOverriding(b, c) {
		t.Fatal("direct derivation does not override")
	}
	if !IsOverriding(a, c) {
		t.Fatal("override does not chain through generations")
	}
	if IsOverriding(c, a) || IsOverriding(b, a) {
		t.Fatal("override relation ran backwards")
	}

	unrelated := AllocContext(p, KindObject, 1)
	unrelated.AppendVar(p, in.Intern(p, "x"))
	if IsOverriding(a, unrelated) || IsOverriding(unrelated, a) {
		t.Fatal("unrelated contexts report as overriding")
	}
}

func TestRelativeBindingResolvesThroughFrame(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")

	body := makeBlock(p, in, "n", "other")
	rel := CopyAndBindRelativeDeep(p, body, act)

	if !rel.At(0).Binding().IsRelative() {
		t.Fatal("param word is not relatively bound")
	}
	if !rel.At(1).Binding().IsUnbound() {
		t.Fatal("non-param word picked up a binding")
	}
	if body.At(0).Binding().IsRelative() {
		t.Fatal("relativization mutated the source body")
	}

	// Without a specifier the word cannot be read at all.
	if _, err := GetVar(rel.At(0), Specified); !errors.Is(err, ErrNoRelativeContext) {
		t.Fatalf("specifierless read = %v, want ErrNoRelativeContext", err)
	}

	fs := NewFrameStack()
	f := fs.Push(p, act, Unbound)
	f.Arg(1).InitInteger(42)

	got, err := GetVar(rel.At(0), f.Context())
	if err != nil {
		t.Fatalf("framed read = %v", err)
	}
	if got.Integer() != 42 {
		t.Fatalf("framed read = %d, want 42", got.Integer())
	}
	fs.Pop(p, f, true)
}

func TestRelativeBindingSurvivesViaSameUnderlying(t *testing.T) {
	p, in := newTestEnv()
	base := makeTestAction(p, in, "n")
	derived := DeriveAction(p, base, p.AllocArray(0))

	rel := CopyAndBindRelativeDeep(p, makeBlock(p, in, "n"), base)

	// A frame of the derived action shares the base's underlying
	// paramlist, so the base's relative body reads from it.
	fs := NewFrameStack()
	f := fs.Push(p, derived, Unbound)
	f.Arg(1).InitInteger(7)

	got, err := GetVar(rel.At(0), f.Context())
	if err != nil || got.Integer() != 7 {
		t.Fatalf("read through derived frame = %v, %v; want 7", got, err)
	}
	fs.Pop(p, f, false)
}

func TestPoppedFrameBecomesInaccessible(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	rel := CopyAndBindRelativeDeep(p, makeBlock(p, in, "n"), act)

	fs := NewFrameStack()
	f := fs.Push(p, act, Unbound)
	f.Arg(1).InitInteger(1)
	spc := f.Context()
	fs.Pop(p, f, false)

	if f.IsOnStack() {
		t.Fatal("popped frame still reports on-stack")
	}
	if _, err := GetVar(rel.At(0), spc); !errors.Is(err, ErrInaccessible) {
		t.Fatalf("read after decay = %v, want ErrInaccessible", err)
	}
}

func TestReifiedFrameStaysReadable(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	rel := CopyAndBindRelativeDeep(p, makeBlock(p, in, "n"), act)

	fs := NewFrameStack()
	f := fs.Push(p, act, Unbound)
	f.Arg(1).InitInteger(3)
	spc := f.Context()
	fs.Pop(p, f, true)

	got, err := GetVar(rel.At(0), spc)
	if err != nil {
		t.Fatalf("read after reify = %v", err)
	}
	if got.Integer() != 3 {
		t.Fatalf("read after reify = %d, want 3", got.Integer())
	}
	if spc.Keylist() != act.Paramlist() {
		t.Fatal("reified keysource is not the paramlist")
	}
}

func TestDerelativize(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	rel := CopyAndBindRelativeDeep(p, makeBlock(p, in, "n"), act)

	fs := NewFrameStack()
	f := fs.Push(p, act, Unbound)
	f.Arg(1).InitInteger(11)

	var out Cell
	Derelativize(&out, rel.At(0), f.Context())
	if !out.Binding().IsSpecific() {
		t.Fatal("derelativized cell is not specifically bound")
	}

	// The copy keeps reading after the frame is reified and popped.
	fs.Pop(p, f, true)
	got, err := GetVar(&out, Specified)
	if err != nil || got.Integer() != 11 {
		t.Fatalf("read of derelativized word = %v, %v; want 11", got, err)
	}
}

func TestDerelativizeWithoutSpecifierPanics(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	rel := CopyAndBindRelativeDeep(p, makeBlock(p, in, "n"), act)

	defer func() {
		if recover() == nil {
			t.Fatal("Derelativize of a relative cell without specifier did not panic")
		}
	}()
	var out Cell
	Derelativize(&out, rel.At(0), Specified)
}

func TestDeriveSpecifier(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	fs := NewFrameStack()
	f := fs.Push(p, act, Unbound)

	ctx := AllocContext(p, KindObject, 1)
	ctx.AppendVar(p, in.Intern(p, "x"))

	var specific Cell
	specific.InitArray(KindBlock, p.AllocArray(0))
	specific.SetBinding(SpecificBinding(ctx))

	var bare Cell
	bare.InitArray(KindBlock, p.AllocArray(0))

	if got := DeriveSpecifier(f.Context(), &specific); got != ctx {
		t.Fatal("child's own binding did not supply the specifier")
	}
	if got := DeriveSpecifier(f.Context(), &bare); got != f.Context() {
		t.Fatal("unbound child did not inherit the parent specifier")
	}
	if got := DeriveSpecifier(DeriveSpecifier(f.Context(), &specific), &specific); got != ctx {
		t.Fatal("deriving twice changed the answer")
	}

	fs.Pop(p, f, false)
}

func TestDropToUnwindsAndDecays(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	fs := NewFrameStack()

	f1 := fs.Push(p, act, Unbound)
	f2 := fs.Push(p, act, Unbound)
	f3 := fs.Push(p, act, Unbound)

	fs.DropTo(p, f2)
	if fs.Depth() != 1 || fs.Top() != f1 {
		t.Fatalf("Depth() = %d after DropTo, want 1", fs.Depth())
	}
	if f2.Context().IsAccessible() || f3.Context().IsAccessible() {
		t.Fatal("unwound frame contexts were not decayed")
	}
	if f2.IsOnStack() || f3.IsOnStack() {
		t.Fatal("unwound frames still report on-stack")
	}
	if !f1.Context().IsAccessible() {
		t.Fatal("frame below the unwind target was decayed")
	}
}

func TestPopOutOfOrderPanics(t *testing.T) {
	p, in := newTestEnv()
	act := makeTestAction(p, in, "n")
	fs := NewFrameStack()
	f1 := fs.Push(p, act, Unbound)
	fs.Push(p, act, Unbound)

	defer func() {
		if recover() == nil {
			t.Fatal("popping a buried frame did not panic")
		}
	}()
	fs.Pop(p, f1, false)
}
