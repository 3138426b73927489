package runtime

import "fmt"

// Binding resolution. A bound word names a (context, index) pair, but
// which concrete context applies can depend on the invocation that is
// reading the word:
//
//   - A specifically bound word usually reads from its stored context,
//     unless the active frame's invocation binding names a context
//     derived from the stored one; then the derived context overrides,
//     which is what makes method bodies shared between an object and its
//     derivations see the derivation's fields.
//
//   - A relatively bound word was deep-copied into a function body and
//     stores only the function template. It cannot be read at all
//     without a specifier naming which invocation's frame to use.
//
// Resolution is a pure function of (cell, specifier); there is no
// ambient frame state consulted anywhere in this file.

// A Specifier is the context of a frame-kind invocation, threaded
// through traversal of relatively bound arrays. nil means "specified":
// every cell encountered must carry a concrete binding of its own.
type Specifier = *Context

// Specified is the empty specifier.
var Specified Specifier = nil

// specifierBinding extracts the invocation binding a frame specifier
// contributes to override checks. Works even on a decayed frame: the
// varlist stub keeps its archetype exactly so this cannot fail.
func specifierBinding(spc Specifier) Binding {
	varlist := spc.varlist
	if len(varlist.cells) == 0 {
		panic("specifierBinding: specifier varlist has no archetype")
	}
	archetype := &varlist.cells[0]
	if archetype.HeartKind() != KindFrame {
		panic(fmt.Sprintf(
			"specifierBinding: specifier archetype is %s, not a frame",
			archetype.HeartKind()))
	}
	return archetype.binding
}

// IsOverriding reports whether override's variables take precedence
// over stored's for lookup: true when walking override's keylist
// ancestor chain reaches stored's keylist. Frame keylists are
// paramlists, carry no ancestor, and never participate.
func IsOverriding(stored, override *Context) bool {
	if !stored.IsAccessible() || !override.IsAccessible() {
		return false
	}
	storedKeys := stored.Keylist()
	if storedKeys.hasFlag(flagParamlist) {
		return false
	}
	temp := override.Keylist()
	if temp.hasFlag(flagParamlist) {
		return false
	}

	for {
		if temp == storedKeys {
			return true
		}
		if temp.ancestor == nil || temp.ancestor == temp {
			return false
		}
		temp = temp.ancestor
	}
}

// Resolve computes the concrete (context, slot index) a bound word
// refers to, given the specifier in effect. Failure modes: ErrNotBound
// for an unbound word, ErrNoRelativeContext for a relative word with no
// specifier, ErrInaccessible when the resolved context's storage has
// been reclaimed.
func Resolve(word *Cell, spc Specifier) (*Context, int, error) {
	if !word.HeartKind().IsWord() {
		panic(fmt.Sprintf("Resolve: %s is not a word kind", word.HeartKind()))
	}

	binding := word.binding
	var ctx *Context

	switch {
	case binding.IsUnbound():
		return nil, 0, errNotBound(word)

	case binding.IsSpecific():
		ctx = binding.Context()
		if spc != Specified {
			fb := specifierBinding(spc)
			if fb.IsSpecific() && IsOverriding(ctx, fb.Context()) {
				ctx = fb.Context()
			}
		}

	default: // relative
		if spc == Specified {
			return nil, 0, errNoRelativeContext(word)
		}
		ctx = spc
		checkRelativeMatch(word, binding, spc)
	}

	if !ctx.IsAccessible() {
		return nil, 0, errInaccessible(word)
	}

	index := word.WordIndex()
	if index < 1 || index > ctx.Len() {
		panic(fmt.Sprintf(
			"Resolve: word %q index %d outside context of %d vars",
			word.WordSymbol().Spelling(), index, ctx.Len()))
	}
	return ctx, index, nil
}

// checkRelativeMatch panics unless the specifier frame was spawned from
// the template the relative binding stores. Relative cells are only
// ever relative to one underlying action; a mismatch means the caller
// threaded the wrong specifier, which is a bug, not a script error.
func checkRelativeMatch(v *Cell, binding Binding, spc Specifier) {
	if !spc.IsAccessible() {
		return // inaccessibility reported by the caller instead
	}
	rootkey := spc.Keylist().At(0)
	if rootkey.HeartKind() != KindAction {
		panic("Resolve: relative binding against a non-frame specifier")
	}
	underlying := rootkey.ActionOf().Underlying().paramlist
	if underlying != binding.Paramlist() {
		panic(fmt.Sprintf(
			"Resolve: relative cell %q bound to a different action than the specifier frame",
			v.String()))
	}
}

// GetVar resolves a word and returns a read-only view of its variable
// cell.
func GetVar(word *Cell, spc Specifier) (*Cell, error) {
	ctx, index, err := Resolve(word, spc)
	if err != nil {
		return nil, err
	}
	return ctx.Var(index), nil
}

// SetVar resolves a word and writes the variable, honoring both
// whole-context protection and the per-cell protect bit.
func SetVar(word *Cell, spc Specifier, value *Cell) error {
	ctx, index, err := Resolve(word, spc)
	if err != nil {
		return err
	}
	if ctx.IsProtected() || ctx.varlist.hasFlag(flagHold) {
		return errProtected(word.WordSymbol().Spelling())
	}
	slot := ctx.Var(index)
	if slot.IsProtected() {
		return errProtected(word.WordSymbol().Spelling())
	}
	slot.Move(value)
	return nil
}

// Derelativize copies a possibly-relative cell into out as a fully
// specific one, applying the same override logic as Resolve. Relative
// words live inside relatively bound arrays, so this accepts any
// bindable cell. Calling it on a relative cell with no specifier is a
// caller bug and panics.
func Derelativize(out, v *Cell, spc Specifier) *Cell {
	out.Move(v)
	if !v.HeartKind().IsBindable() {
		return out
	}

	binding := v.binding
	switch {
	case binding.IsUnbound():
		// nothing to fix up

	case binding.IsRelative():
		if spc == Specified {
			panic(fmt.Sprintf(
				"Derelativize: relative cell %q with no specifier", v.String()))
		}
		checkRelativeMatch(v, binding, spc)
		out.binding = SpecificBinding(spc)

	default: // specific
		if spc != Specified {
			fb := specifierBinding(spc)
			if fb.IsSpecific() && IsOverriding(binding.Context(), fb.Context()) {
				out.binding = fb
			}
		}
	}
	return out
}

// DeriveSpecifier computes the specifier for the contents of item while
// traversing under parent. A child carrying its own concrete binding
// supplies it; otherwise the parent's specifier continues to apply with
// no copying on descent.
func DeriveSpecifier(parent Specifier, item *Cell) Specifier {
	if item.HeartKind().IsBindable() && item.binding.IsSpecific() {
		return item.binding.Context()
	}
	return parent
}

// BindFlags adjust the block-binding walk.
type BindFlags uint8

const (
	// BindDeep recurses into nested arrays.
	BindDeep BindFlags = 1 << iota

	// BindAdd appends words not already in the context as new
	// variables instead of leaving them untouched.
	BindAdd
)

// BindValues binds word cells in a block of cells to ctx, in place.
// Words whose canon is not in ctx are skipped (or appended under
// BindAdd). Quoting at in-cell depths binds through; box-escaped values
// are left alone, as the evaluator unquotes before lookup.
func BindValues(p *Pool, cells []Cell, ctx *Context, flags BindFlags) {
	binder := NewBinder()
	defer binder.Shutdown()

	keys := ctx.Keylist()
	for i := 1; i < keys.Len(); i++ {
		binder.mustAdd(keys.At(i).KeySymbol(), i)
	}

	bindValuesInner(p, cells, ctx, binder, flags)

	for i := 1; i <= ctx.Len(); i++ {
		binder.Remove(ctx.Key(i).KeySymbol())
	}
}

func bindValuesInner(p *Pool, cells []Cell, ctx *Context, binder *Binder, flags BindFlags) {
	for i := range cells {
		v := &cells[i]
		heart := v.HeartKind()

		switch {
		case heart.IsWord():
			index, ok := binder.Lookup(v.WordSymbol())
			if !ok {
				if flags&BindAdd == 0 {
					continue
				}
				index, _ = ctx.AppendVar(p, v.WordSymbol())
				binder.mustAdd(v.WordSymbol(), index)
			}
			v.binding = SpecificBinding(ctx)
			v.setWordIndex(index)

		case heart.IsArray() && flags&BindDeep != 0:
			sub := v.Array()
			if !sub.IsAccessible() {
				continue
			}
			bindValuesInner(p, sub.Head(), ctx, binder, flags)
		}
	}
}

// UnbindValues removes bindings from word cells in place. With a nil
// ctx every binding is removed; otherwise only bindings to that
// context. Always deep.
func UnbindValues(cells []Cell, ctx *Context) {
	for i := range cells {
		v := &cells[i]
		heart := v.HeartKind()

		if heart.IsWord() {
			if ctx != nil {
				b := v.binding
				if !b.IsSpecific() || b.Context() != ctx {
					continue
				}
			}
			v.binding = Unbound
			v.payload[1].bits = wordIndexUnbound
			continue
		}

		if heart.IsArray() {
			sub := v.Array()
			if sub.IsAccessible() {
				UnbindValues(sub.Head(), ctx)
			}
		}
	}
}

// RebindValuesDeep retargets every binding to `from` so it points at
// the same-named slot of `to`. The contexts need not share a keylist;
// slots are re-looked-up by symbol.
func RebindValuesDeep(from, to *Context, cells []Cell) {
	for i := range cells {
		v := &cells[i]
		heart := v.HeartKind()

		if heart.IsWord() {
			b := v.binding
			if !b.IsSpecific() || b.Context() != from {
				continue
			}
			index := to.FindSymbol(v.WordSymbol())
			if index == 0 {
				continue
			}
			v.binding = SpecificBinding(to)
			v.setWordIndex(index)
			continue
		}

		if heart.IsArray() {
			sub := v.Array()
			if sub.IsAccessible() {
				RebindValuesDeep(from, to, sub.Head())
			}
		}
	}
}

// CopyAndBindRelativeDeep deep-copies a body block for use as act's
// body, binding every word that names one of act's parameters
// relatively to the template. The resulting array's cells resolve only
// through a frame specifier of a live invocation.
func CopyAndBindRelativeDeep(p *Pool, body *Series, act *Action) *Series {
	binder := NewBinder()
	defer binder.Shutdown()

	paramlist := act.Underlying().paramlist
	for i := 1; i < paramlist.Len(); i++ {
		binder.mustAdd(paramlist.At(i).KeySymbol(), i)
	}

	out := copyAndBindRelativeInner(p, body, act, binder)

	for i := 1; i < paramlist.Len(); i++ {
		binder.Remove(paramlist.At(i).KeySymbol())
	}
	return out
}

func copyAndBindRelativeInner(p *Pool, body *Series, act *Action, binder *Binder) *Series {
	out := p.AllocArrayCap(body.Len())
	for i := 0; i < body.Len(); i++ {
		var cp Cell
		cp.Move(body.At(i))
		heart := cp.HeartKind()

		switch {
		case heart.IsWord():
			if index, ok := binder.Lookup(cp.WordSymbol()); ok {
				cp.binding = RelativeBinding(act)
				cp.setWordIndex(index)
			}

		case heart.IsArray():
			sub := cp.Array()
			if sub.IsAccessible() {
				cp.payload[0].node = copyAndBindRelativeInner(p, sub, act, binder)
				// The copied array is itself relative to the template:
				// its words cannot resolve without the same specifier.
				cp.binding = RelativeBinding(act)
			}
		}
		out.Append(cp)
	}
	return out
}

// TryBindWord binds a single word to ctx if its symbol is present,
// returning whether it bound.
func TryBindWord(ctx *Context, word *Cell) bool {
	index := ctx.FindSymbol(word.WordSymbol())
	if index == 0 {
		return false
	}
	word.binding = SpecificBinding(ctx)
	word.setWordIndex(index)
	return true
}
