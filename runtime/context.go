package runtime

import "fmt"

// A Context pairs an ordered keylist (symbols plus typeset metadata)
// with a varlist of values. Objects, modules, errors, ports and
// invocation frames are all contexts; only the archetype kind differs.
//
// Varlist slot 0 reproduces the context's own archetype cell, so any
// reference to the context can reconstruct a value of it. User variables
// are 1-based: Key(1)/Var(1) is the first field.
//
// Keylists may be shared between context generations. Copying a context
// shallowly shares the keylist read-only; the first structural mutation
// of either side forks a private keylist whose ancestor reference
// records the derivation. That ancestor chain is what the binding
// override walk consumes (see bind.go).
type Context struct {
	varlist *Series
}

// AllocContext creates an empty context of the given archetype kind
// with room reserved for capacity variables.
func AllocContext(p *Pool, kind Kind, capacity int) *Context {
	if !kind.IsContext() {
		panic(fmt.Sprintf("AllocContext: %s is not a context kind", kind))
	}

	keylist := p.AllocArrayCap(capacity + 1)
	keylist.ancestor = keylist // no parent: chain terminates here

	var rootkey Cell
	rootkey.InitBlank() // slot 0 reserved; paramlists put the archetype here
	keylist.Append(rootkey)

	varlist := p.AllocArrayCap(capacity + 1)
	varlist.setFlag(flagVarlist)
	varlist.keylist = keylist

	ctx := &Context{varlist: varlist}
	varlist.context = ctx

	var archetype Cell
	archetype.reset(kind)
	archetype.payload[0].node = varlist
	varlist.Append(archetype)
	return ctx
}

// Kind returns the context's archetype kind.
func (c *Context) Kind() Kind {
	if !c.IsAccessible() {
		return KindZero
	}
	return c.Archetype().Kind()
}

// IsAccessible reports whether the context's storage still exists.
func (c *Context) IsAccessible() bool {
	return c.varlist.IsAccessible()
}

// Varlist returns the backing varlist node.
func (c *Context) Varlist() *Series {
	return c.varlist
}

// Keylist returns the keylist node. For a stack frame that has not been
// reified this is the action's paramlist.
func (c *Context) Keylist() *Series {
	if c.varlist.keylist != nil {
		return c.varlist.keylist
	}
	if c.varlist.frame != nil {
		return c.varlist.frame.action.paramlist
	}
	panic("Context.Keylist: varlist has no keysource")
}

// Archetype returns varlist slot 0.
func (c *Context) Archetype() *Cell {
	if !c.IsAccessible() {
		panic("Context.Archetype: context is inaccessible")
	}
	return c.varlist.At(0)
}

// Len returns the number of variables (archetype slot excluded).
func (c *Context) Len() int {
	if !c.IsAccessible() {
		return 0
	}
	return c.varlist.Len() - 1
}

// Key returns the 1-based keylist entry.
func (c *Context) Key(index int) *Cell {
	if index < 1 || index > c.Len() {
		panic(fmt.Sprintf("Context.Key: index %d out of range 1..%d", index, c.Len()))
	}
	return c.Keylist().At(index)
}

// Var returns the 1-based variable cell.
func (c *Context) Var(index int) *Cell {
	if index < 1 || index > c.Len() {
		panic(fmt.Sprintf("Context.Var: index %d out of range 1..%d", index, c.Len()))
	}
	return c.varlist.At(index)
}

// FindSymbol returns the 1-based index of the variable named by sym
// under case-insensitive comparison, or 0 if absent.
func (c *Context) FindSymbol(sym *Series) int {
	if !c.IsAccessible() {
		return 0
	}
	keys := c.Keylist()
	for i := 1; i < keys.Len(); i++ {
		if SameWord(keys.At(i).KeySymbol(), sym) {
			return i
		}
	}
	return 0
}

// IsProtected reports whether the context refuses mutation as a whole.
func (c *Context) IsProtected() bool {
	return c.varlist.hasFlag(flagProtected)
}

// Protect sets or clears whole-context protection.
func (c *Context) Protect(on bool) {
	if on {
		c.varlist.setFlag(flagProtected)
	} else {
		c.varlist.clearFlag(flagProtected)
	}
}

// ensurePrivateKeylist forks a shared keylist before a structural
// mutation, leaving other generations' view intact. The fork's ancestor
// is the keylist it forked from, which is what later lets a derived
// context override its parent during lookup.
func (c *Context) ensurePrivateKeylist(p *Pool) {
	keys := c.Keylist()
	if keys.hasFlag(flagParamlist) {
		panic("Context.ensurePrivateKeylist: frame keylists cannot be expanded")
	}
	if !keys.hasFlag(flagKeylistShared) {
		return
	}

	forked := p.AllocArrayCap(keys.Len() + 1)
	for i := 0; i < keys.Len(); i++ {
		var cp Cell
		cp.Move(keys.At(i))
		forked.Append(cp)
	}
	forked.ancestor = keys
	c.varlist.keylist = forked
}

// AppendVar adds a variable for sym, returning its 1-based index and
// the (trash) cell to fill in. Panics if the symbol is already present
// or the context is protected.
func (c *Context) AppendVar(p *Pool, sym *Series) (int, *Cell) {
	if !c.IsAccessible() {
		panic("Context.AppendVar: context is inaccessible")
	}
	if c.IsProtected() {
		panic("Context.AppendVar: context is protected")
	}
	if c.FindSymbol(sym) != 0 {
		panic(fmt.Sprintf("Context.AppendVar: duplicate key %q", sym.Spelling()))
	}

	c.ensurePrivateKeylist(p)

	var key Cell
	key.InitKey(sym, anyValueTypebits)
	c.Keylist().Append(key)

	var slot Cell
	slot.InitNulled()
	c.varlist.Append(slot)

	index := c.Len()
	return index, c.Var(index)
}

// anyValueTypebits admits every real datatype.
const anyValueTypebits = (uint64(1) << uint(KindMax)) - 1

// CopyContextShallow makes a sibling context sharing the keylist
// copy-on-write. Variable cells are copied; the new archetype points at
// the new varlist. The shared keylist's ancestor chain is untouched, so
// parent and copy remain peers (derivation is recorded only when a
// shared keylist is later forked by expansion).
func CopyContextShallow(p *Pool, src *Context) *Context {
	if !src.IsAccessible() {
		panic("CopyContextShallow: source context is inaccessible")
	}
	keys := src.Keylist()
	if keys.hasFlag(flagParamlist) {
		panic("CopyContextShallow: cannot copy a frame context")
	}
	keys.setFlag(flagKeylistShared)

	varlist := p.AllocArrayCap(src.varlist.Len())
	varlist.setFlag(flagVarlist)
	varlist.keylist = keys

	ctx := &Context{varlist: varlist}
	varlist.context = ctx

	for i := 0; i < src.varlist.Len(); i++ {
		var cp Cell
		cp.Move(src.varlist.At(i))
		varlist.Append(cp)
	}
	varlist.At(0).payload[0].node = varlist
	return ctx
}

// ExpandContext derives a new generation from src: a shallow copy that
// then appends the given symbols. The copy's keylist forks off the
// shared one, so IsOverriding(src, derived) holds afterward.
func ExpandContext(p *Pool, src *Context, syms []*Series) *Context {
	derived := CopyContextShallow(p, src)
	for _, sym := range syms {
		if derived.FindSymbol(sym) != 0 {
			continue // inherited field keeps its slot
		}
		derived.AppendVar(p, sym)
	}
	return derived
}

// InitContext makes cell a value referencing ctx, with the archetype's
// kind.
func (c *Cell) InitContext(ctx *Context) *Cell {
	kind := ctx.Archetype().Kind()
	c.reset(kind)
	c.payload[0].node = ctx.varlist
	return c
}

// ContextOf returns the Context handle behind a context-kind cell.
// Returns the handle even if decayed; accessibility is the caller's
// check so tombstones can be reported as ErrInaccessible rather than
// crashing.
func (c *Cell) ContextOf() *Context {
	if !c.HeartKind().IsContext() {
		panic(fmt.Sprintf("Cell.ContextOf: %s is not a context kind", c.HeartKind()))
	}
	return c.payload[0].node.context
}
