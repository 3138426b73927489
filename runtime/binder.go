package runtime

import "fmt"

// A Binder is the transient symbol -> index table used while binding or
// collecting keys. The C-era design claimed one of two spare bit-fields
// on each canon symbol node, which capped safe nesting at two concurrent
// sessions and was flagged in its own source as a placeholder. Here each
// session owns its claims outright in a scoped table keyed by canon, so
// sessions nest without limit and never touch shared symbol state.
//
// What survives from the old contract: claims must balance. Every
// TryAdd must be undone by Remove before Shutdown, on all paths
// including errors; Shutdown panics on leaked claims. A leak under the
// shared-field scheme silently corrupted unrelated future binds on the
// same symbol, so the balance check stays a hard invariant rather than
// becoming cosmetic.
//
// Binders are not safe for concurrent use and never visible to the
// collector; no GC may run while any binder holds claims.
type Binder struct {
	claims map[*Series]int
	live   int
	done   bool
}

// NewBinder starts a binding session.
func NewBinder() *Binder {
	return &Binder{claims: make(map[*Series]int)}
}

// TryAdd claims sym's canon with the given 1-based index. Returns false
// if this session already claimed it, which is the signal callers use to detect
// re-collection of the same word in one pass.
func (b *Binder) TryAdd(sym *Series, index int) bool {
	if b.done {
		panic("Binder.TryAdd: binder already shut down")
	}
	if index == 0 {
		panic("Binder.TryAdd: index 0 is reserved for absence")
	}
	canon := sym.Canon()
	if _, dup := b.claims[canon]; dup {
		return false
	}
	b.claims[canon] = index
	b.live++
	return true
}

// Add claims sym's canon, reporting ErrDuplicateBinding when this
// session already holds it. For scanner-facing callers where a repeated
// symbol is a script error, not a bug.
func (b *Binder) Add(sym *Series, index int) error {
	if !b.TryAdd(sym, index) {
		return errDuplicateBinding(sym.Spelling())
	}
	return nil
}

// mustAdd claims or panics; for callers that have already ruled out
// duplicates.
func (b *Binder) mustAdd(sym *Series, index int) {
	if !b.TryAdd(sym, index) {
		panic(fmt.Sprintf("Binder: duplicate claim on %q", sym.Spelling()))
	}
}

// Lookup returns the index claimed for sym's canon in this session.
func (b *Binder) Lookup(sym *Series) (int, bool) {
	index, ok := b.claims[sym.Canon()]
	return index, ok
}

// Remove releases the claim on sym's canon, returning the old index.
func (b *Binder) Remove(sym *Series) (int, bool) {
	canon := sym.Canon()
	index, ok := b.claims[canon]
	if !ok {
		return 0, false
	}
	delete(b.claims, canon)
	b.live--
	return index, true
}

// mustRemove releases a claim that must exist.
func (b *Binder) mustRemove(sym *Series) int {
	index, ok := b.Remove(sym)
	if !ok {
		panic(fmt.Sprintf("Binder: removing unclaimed symbol %q", sym.Spelling()))
	}
	return index
}

// Shutdown ends the session. Leaked claims are a correctness bug in the
// caller. Under this design they only waste memory, but they always
// mean some path forgot its removals, so it panics either way.
func (b *Binder) Shutdown() {
	if b.done {
		return
	}
	b.done = true
	if b.live != 0 {
		panic(fmt.Sprintf("Binder.Shutdown: %d claims leaked", b.live))
	}
}

// A KeyCollector accumulates the unique word symbols of a spec block in
// first-appearance order, using a Binder to reject duplicates in one
// pass. It is how object constructors turn source blocks into keylists.
type KeyCollector struct {
	binder *Binder
	Syms   []*Series
}

// NewKeyCollector starts a collection pass. Seed symbols (an existing
// context's keys, for expansion) occupy the first indexes.
func NewKeyCollector(seed []*Series) *KeyCollector {
	kc := &KeyCollector{binder: NewBinder()}
	for _, sym := range seed {
		kc.Add(sym)
	}
	return kc
}

// Add records sym if this pass has not seen its canon yet. Reports
// whether the symbol was new.
func (kc *KeyCollector) Add(sym *Series) bool {
	if !kc.binder.TryAdd(sym, len(kc.Syms)+1) {
		return false
	}
	kc.Syms = append(kc.Syms, sym)
	return true
}

// CollectSetWords walks a block (deep through nested arrays when deep
// is set) adding the symbol of every set-word encountered.
func (kc *KeyCollector) CollectSetWords(block *Series, deep bool) {
	for i := 0; i < block.Len(); i++ {
		v := block.At(i)
		heart := v.HeartKind()
		switch {
		case heart == KindSetWord:
			kc.Add(v.WordSymbol())
		case heart.IsArray() && deep:
			sub := v.Array()
			if sub.IsAccessible() {
				kc.CollectSetWords(sub, deep)
			}
		}
	}
}

// End releases every claim and shuts the session down. The collector is
// unusable afterward.
func (kc *KeyCollector) End() {
	for _, sym := range kc.Syms {
		kc.binder.mustRemove(sym)
	}
	kc.binder.Shutdown()
}

// MakeContextFromBlock scans a block for set-words, builds a context of
// the given kind with one variable per unique symbol, and binds the
// block's words to it deeply. Variables start nulled; evaluation is the
// caller's business.
func MakeContextFromBlock(p *Pool, kind Kind, block *Series) *Context {
	kc := NewKeyCollector(nil)
	kc.CollectSetWords(block, true)

	ctx := AllocContext(p, kind, len(kc.Syms))
	for _, sym := range kc.Syms {
		ctx.AppendVar(p, sym)
	}
	kc.End()

	BindValues(p, block.Head(), ctx, BindDeep)
	return ctx
}
