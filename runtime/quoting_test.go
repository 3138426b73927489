package runtime

import "testing"

// ---------------------------------------------------------------------------
// In-line quoting (depth 1..3)
// ---------------------------------------------------------------------------

func TestQuotifyInline(t *testing.T) {
	p := NewPool(DefaultTuning())

	for depth := 1; depth <= 3; depth++ {
		var c Cell
		c.InitInteger(42)

		Quotify(p, &c, depth)

		if got := c.QuoteDepth(); got != depth {
			t.Errorf("depth %d: QuoteDepth() = %d", depth, got)
		}
		if c.Kind() != KindQuoted {
			t.Errorf("depth %d: Kind() = %s, want quoted!", depth, c.Kind())
		}
		if c.HeartKind() != KindInteger {
			t.Errorf("depth %d: HeartKind() = %s, want integer!", depth, c.HeartKind())
		}
		if p.ManagedCount() != 0 {
			t.Errorf("depth %d: in-line quoting allocated %d nodes", depth, p.ManagedCount())
		}

		Unquotify(&c, depth)
		if c.Kind() != KindInteger || c.Integer() != 42 {
			t.Errorf("depth %d: round trip gave %s", depth, c.String())
		}
	}
}

func TestQuotifyAccumulates(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(7)
	Quotify(p, &c, 1)
	Quotify(p, &c, 2)

	if got := c.QuoteDepth(); got != 3 {
		t.Fatalf("QuoteDepth() = %d, want 3", got)
	}
	Unquotify(&c, 1)
	if got := c.QuoteDepth(); got != 2 {
		t.Fatalf("after Unquotify 1: depth = %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// Boxed quoting (depth >= 4)
// ---------------------------------------------------------------------------

func TestQuotifyBoxed(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(42)
	Quotify(p, &c, 4)

	if got := c.QuoteDepth(); got != 4 {
		t.Fatalf("QuoteDepth() = %d, want 4", got)
	}
	if Kind(c.KindByte()) != KindQuoted {
		t.Fatalf("kind byte is %d, want the boxed sentinel", c.KindByte())
	}
	if p.ManagedCount() != 1 {
		t.Fatalf("boxed quoting allocated %d nodes, want 1", p.ManagedCount())
	}

	inner := Unescaped(&c)
	if inner.HeartKind() != KindInteger || inner.Integer() != 42 {
		t.Fatalf("Unescaped content is %s", inner.String())
	}

	Unquotify(&c, 4)
	if c.Kind() != KindInteger || c.Integer() != 42 {
		t.Fatalf("round trip gave %s", c.String())
	}
}

func TestQuotifyBoxedDeepening(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(1)
	Quotify(p, &c, 5)
	before := p.ManagedCount()

	// Deepening an already-boxed value reuses the box.
	Quotify(p, &c, 10)
	if got := c.QuoteDepth(); got != 15 {
		t.Fatalf("QuoteDepth() = %d, want 15", got)
	}
	if p.ManagedCount() != before {
		t.Fatalf("deepening allocated a new box")
	}

	// Coming back down to 3 collapses the box back into the cell.
	Unquotify(&c, 12)
	if got := c.QuoteDepth(); got != 3 {
		t.Fatalf("QuoteDepth() = %d, want 3", got)
	}
	if Kind(c.KindByte()) == KindQuoted {
		t.Fatalf("depth 3 should be in-line, cell is still boxed")
	}
	Unquotify(&c, 3)
	if c.Integer() != 1 {
		t.Fatalf("content lost through box collapse")
	}
}

func TestQuotedBoxNeverNests(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(9)
	Quotify(p, &c, 6)

	content := Unescaped(&c)
	if Kind(content.KindByte()) == KindQuoted {
		t.Fatal("box content is itself boxed")
	}
	if content.KindByte() >= kindBand {
		t.Fatal("box content carries in-line quoting")
	}
}

// Quoting an integer five times yields depth 5 whose unescaped content
// is still that integer.
func TestFiveQuotedInteger(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(5)
	for i := 0; i < 5; i++ {
		Quotify(p, &c, 1)
	}

	if got := c.QuoteDepth(); got != 5 {
		t.Fatalf("QuoteDepth() = %d, want 5", got)
	}
	inner := Unescaped(&c)
	if inner.HeartKind() != KindInteger || inner.Integer() != 5 {
		t.Fatalf("unescaped content is %s, want 5", inner.String())
	}
}

// ---------------------------------------------------------------------------
// Round trip across the inline/boxed boundary
// ---------------------------------------------------------------------------

func TestQuoteRoundTripAllDepths(t *testing.T) {
	p := NewPool(DefaultTuning())
	in := NewInterner()
	sym := in.Intern(p, "foo")

	for depth := 0; depth <= 8; depth++ {
		var c Cell
		c.InitWord(KindWord, sym)

		Quotify(p, &c, depth)
		if got := c.QuoteDepth(); got != depth {
			t.Errorf("depth %d: QuoteDepth() = %d", depth, got)
		}
		Unquotify(&c, depth)

		if c.Kind() != KindWord {
			t.Errorf("depth %d: round trip kind = %s", depth, c.Kind())
			continue
		}
		if c.WordSymbol() != sym {
			t.Errorf("depth %d: round trip lost the symbol", depth)
		}
	}
}

func TestQuotedWordKeepsBinding(t *testing.T) {
	p := NewPool(DefaultTuning())
	in := NewInterner()
	sym := in.Intern(p, "x")

	ctx := AllocContext(p, KindObject, 1)
	index, slot := ctx.AppendVar(p, sym)
	slot.InitInteger(17)

	var word Cell
	word.InitWord(KindWord, sym)
	if !TryBindWord(ctx, &word) {
		t.Fatal("TryBindWord failed")
	}

	// The binding survives boxing and unboxing.
	Quotify(p, &word, 6)
	if !word.Binding().IsSpecific() {
		t.Fatal("boxed quoted word lost its binding")
	}
	Unquotify(&word, 6)

	got, _, err := Resolve(&word, Specified)
	if err != nil {
		t.Fatalf("Resolve after round trip: %v", err)
	}
	if got != ctx || word.WordIndex() != index {
		t.Fatal("binding changed through quote round trip")
	}
}

func TestUnquotifyTooFarPanics(t *testing.T) {
	p := NewPool(DefaultTuning())

	var c Cell
	c.InitInteger(3)
	Quotify(p, &c, 2)

	defer func() {
		if recover() == nil {
			t.Fatal("Unquotify past depth 0 did not panic")
		}
	}()
	Unquotify(&c, 3)
}

func TestQuotifyPseudoKindPanics(t *testing.T) {
	p := NewPool(DefaultTuning())
	in := NewInterner()

	var param Cell
	param.InitParam(KindParamNormal, in.Intern(p, "arg"), anyValueTypebits)

	defer func() {
		if recover() == nil {
			t.Fatal("quoting a parameter cell did not panic")
		}
	}()
	Quotify(p, &param, 1)
}

func TestDequotify(t *testing.T) {
	p := NewPool(DefaultTuning())

	tests := []int{0, 1, 3, 4, 7}
	for _, depth := range tests {
		var c Cell
		c.InitInteger(11)
		Quotify(p, &c, depth)

		if got := Dequotify(&c); got != depth {
			t.Errorf("Dequotify removed %d levels, want %d", got, depth)
		}
		if c.Kind() != KindInteger || c.Integer() != 11 {
			t.Errorf("depth %d: Dequotify gave %s", depth, c.String())
		}
	}
}
