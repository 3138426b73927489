package runtime

import "fmt"

// A Cell is the fixed-size tagged slot holding one value. Every value
// shape packs into the same layout: a kind byte (which also encodes small
// quote depths, see quoting.go), per-cell flags, a two-slot payload, and
// a binding. A slot is either a raw scalar or a reference to a backing
// Series node; which interpretation applies is fixed by the kind.
//
// Cells live either on an evaluation stack (transient) or inside a
// managed array (persistent). Reachability is decided by whatever owns
// the cell, never by the cell itself.
type Cell struct {
	kindByte byte
	flags    cellFlag
	payload  [2]Slot
	binding  Binding
}

// A Slot is one half of a cell payload.
type Slot struct {
	node *Series // reference interpretation
	bits uint64  // scalar interpretation
}

type cellFlag uint8

const (
	// cellProtected refuses assignment through SetVar. It rides on the
	// variable cell, not the key, so sibling contexts sharing a keylist
	// are unaffected. Never copied between cells.
	cellProtected cellFlag = 1 << iota
)

// KindByte returns the raw kind byte, quote-depth encoding included.
func (c *Cell) KindByte() byte {
	return c.kindByte
}

// Kind returns the apparent datatype: any kind byte at or above the band
// reads as quoted, matching the boxed sentinel.
func (c *Cell) Kind() Kind {
	if c.kindByte >= kindBand {
		return KindQuoted
	}
	return Kind(c.kindByte)
}

// HeartKind returns the datatype underneath any in-cell quoting. For a
// boxed cell this is KindQuoted; use Unescaped to see inside the box.
func (c *Cell) HeartKind() Kind {
	return Kind(c.kindByte % kindBand)
}

// IsProtected reports whether the cell carries the per-variable protect
// bit.
func (c *Cell) IsProtected() bool {
	return c.flags&cellProtected != 0
}

// Protect sets or clears the per-variable protect bit.
func (c *Cell) Protect(on bool) {
	if on {
		c.flags |= cellProtected
	} else {
		c.flags &^= cellProtected
	}
}

// Binding returns the cell's binding.
func (c *Cell) Binding() Binding {
	return c.binding
}

// SetBinding replaces the cell's binding. Panics on unbindable kinds;
// those cells have no live binding field to set.
func (c *Cell) SetBinding(b Binding) {
	if !c.HeartKind().IsBindable() {
		panic(fmt.Sprintf("Cell.SetBinding: %s is not bindable", c.HeartKind()))
	}
	c.binding = b
}

// Move copies the entire cell: header, payload and binding in one step.
// The protect bit stays behind; it belongs to the variable slot, not the
// value.
func (c *Cell) Move(src *Cell) {
	kept := c.flags & cellProtected
	*c = *src
	c.flags = (src.flags &^ cellProtected) | kept
}

// reset rewrites the header for a fresh kind, clearing payload and
// binding. Internal: callers go through the Init constructors.
func (c *Cell) reset(k Kind) {
	c.kindByte = byte(k)
	c.flags = 0
	c.payload[0] = Slot{}
	c.payload[1] = Slot{}
	c.binding = Binding{}
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// InitNulled makes c the null value.
func (c *Cell) InitNulled() *Cell {
	c.reset(KindNulled)
	return c
}

// InitVoid makes c a void value.
func (c *Cell) InitVoid() *Cell {
	c.reset(KindVoid)
	return c
}

// InitBlank makes c a blank value.
func (c *Cell) InitBlank() *Cell {
	c.reset(KindBlank)
	return c
}

// InitLogic makes c a logic value.
func (c *Cell) InitLogic(b bool) *Cell {
	c.reset(KindLogic)
	if b {
		c.payload[0].bits = 1
	}
	return c
}

// InitInteger makes c an integer value.
func (c *Cell) InitInteger(n int64) *Cell {
	c.reset(KindInteger)
	c.payload[0].bits = uint64(n)
	return c
}

// InitChar makes c a char value.
func (c *Cell) InitChar(r rune) *Cell {
	c.reset(KindChar)
	c.payload[0].bits = uint64(uint32(r))
	return c
}

// InitTypesetBits makes c an anonymous typeset holding a raw kind
// bitmask in slot 1 (slot 0 stays free for a key symbol).
func (c *Cell) InitTypesetBits(bits uint64) *Cell {
	c.reset(KindTypeset)
	c.payload[1].bits = bits
	return c
}

// InitKey makes c a context keylist entry: a typeset over a symbol.
func (c *Cell) InitKey(sym *Series, typebits uint64) *Cell {
	if !sym.IsSymbol() {
		panic("Cell.InitKey: node is not symbol flavor")
	}
	c.reset(KindTypeset)
	c.payload[0].node = sym
	c.payload[1].bits = typebits
	return c
}

// InitSeries makes c a single-reference value (binary, text, bitset,
// map, ...) of the given kind over a backing node.
func (c *Cell) InitSeries(k Kind, s *Series) *Cell {
	if !k.IsSingleRef() {
		panic(fmt.Sprintf("Cell.InitSeries: %s is not a single-reference kind", k))
	}
	c.reset(k)
	c.payload[0].node = s
	return c
}

// InitArray makes c an array value (block, group, path variant) over a
// cell array node. Arrays are bindable; they start unbound.
func (c *Cell) InitArray(k Kind, a *Series) *Cell {
	if !k.IsArray() {
		panic(fmt.Sprintf("Cell.InitArray: %s is not an array kind", k))
	}
	if !a.IsArray() {
		panic("Cell.InitArray: node is not array flavor")
	}
	c.reset(k)
	c.payload[0].node = a
	return c
}

// InitWord makes c an unbound word of the given kind over a symbol node.
func (c *Cell) InitWord(k Kind, sym *Series) *Cell {
	if !k.IsWord() {
		panic(fmt.Sprintf("Cell.InitWord: %s is not a word kind", k))
	}
	if !sym.IsSymbol() {
		panic("Cell.InitWord: node is not symbol flavor")
	}
	c.reset(k)
	c.payload[0].node = sym
	c.payload[1].bits = wordIndexUnbound
	return c
}

// wordIndexUnbound fills the index slot of words with no binding; bound
// words always hold an index >= 1.
const wordIndexUnbound = ^uint64(0)

// InitParam makes c a paramlist key: a parameter-class pseudo-kind over
// a symbol, carrying a typeset of accepted kinds.
func (c *Cell) InitParam(k Kind, sym *Series, typebits uint64) *Cell {
	if !k.IsPseudo() {
		panic(fmt.Sprintf("Cell.InitParam: %s is not a parameter class", k))
	}
	c.reset(k)
	c.payload[0].node = sym
	c.payload[1].bits = typebits
	return c
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Logic returns the logic payload. Panics on other kinds.
func (c *Cell) Logic() bool {
	c.requireHeart(KindLogic, "Cell.Logic")
	return c.payload[0].bits != 0
}

// Integer returns the integer payload. Panics on other kinds.
func (c *Cell) Integer() int64 {
	c.requireHeart(KindInteger, "Cell.Integer")
	return int64(c.payload[0].bits)
}

// Char returns the char payload. Panics on other kinds.
func (c *Cell) Char() rune {
	c.requireHeart(KindChar, "Cell.Char")
	return rune(uint32(c.payload[0].bits))
}

// Node returns the series referenced by payload slot 0, or nil for
// scalar kinds.
func (c *Cell) Node() *Series {
	return c.payload[0].node
}

// Array returns the cell array behind an array-kind cell.
func (c *Cell) Array() *Series {
	if !c.HeartKind().IsArray() {
		panic(fmt.Sprintf("Cell.Array: %s is not an array kind", c.HeartKind()))
	}
	return c.payload[0].node
}

// WordSymbol returns the symbol node behind a word cell.
func (c *Cell) WordSymbol() *Series {
	if !c.HeartKind().IsWord() && !c.HeartKind().IsPseudo() {
		panic(fmt.Sprintf("Cell.WordSymbol: %s has no symbol", c.HeartKind()))
	}
	return c.payload[0].node
}

// KeySymbol returns the symbol of a keylist entry (typeset key or
// paramlist param).
func (c *Cell) KeySymbol() *Series {
	k := c.HeartKind()
	if k != KindTypeset && !k.IsPseudo() {
		panic(fmt.Sprintf("Cell.KeySymbol: %s is not a key", k))
	}
	sym := c.payload[0].node
	if sym == nil {
		panic("Cell.KeySymbol: anonymous typeset has no symbol")
	}
	return sym
}

// TypesetBits returns the kind bitmask of a typeset or param cell.
func (c *Cell) TypesetBits() uint64 {
	k := c.HeartKind()
	if k != KindTypeset && !k.IsPseudo() {
		panic(fmt.Sprintf("Cell.TypesetBits: %s has no typeset", k))
	}
	return c.payload[1].bits
}

// WordIndex returns the 1-based variable index of a bound word, or 0 if
// the word carries no index.
func (c *Cell) WordIndex() int {
	if !c.HeartKind().IsWord() {
		panic(fmt.Sprintf("Cell.WordIndex: %s is not a word kind", c.HeartKind()))
	}
	if c.payload[1].bits == wordIndexUnbound {
		return 0
	}
	return int(c.payload[1].bits)
}

func (c *Cell) setWordIndex(i int) {
	c.payload[1].bits = uint64(i)
}

func (c *Cell) requireHeart(k Kind, who string) {
	if c.HeartKind() != k {
		panic(fmt.Sprintf("%s: cell is %s, not %s", who, c.HeartKind(), k))
	}
}

// String renders a short diagnostic description; full molding belongs to
// the datatype layer, not the core.
func (c *Cell) String() string {
	switch c.HeartKind() {
	case KindInteger:
		return fmt.Sprintf("%d", c.Integer())
	case KindLogic:
		if c.Logic() {
			return "#[true]"
		}
		return "#[false]"
	case KindWord, KindSetWord, KindGetWord, KindSymWord:
		return c.WordSymbol().Spelling()
	default:
		return c.Kind().String()
	}
}
