package runtime

// A Series is one variable-length backing allocation. Cells never embed
// variable-length content; they reference a Series opaquely through a
// payload slot. One Series type covers every flavor (cell arrays, byte
// data, symbols) so the collector can treat the pool uniformly.
type Series struct {
	flags  seriesFlag
	flavor seriesFlavor

	// Content for whichever flavor the node was allocated as.
	cells []Cell // array flavor
	data  []byte // byte flavor (binary, text, bitset)

	// Symbol flavor (see symbol.go). The canon pointer is nil on the
	// canonical spelling itself.
	spelling string
	canon    *Series

	// Keylists remember the keylist they were expanded from. This is a
	// reference, not ownership: the ancestor's lifetime is independent,
	// and the override walk in bind.go is the only consumer. A keylist
	// with no ancestor points at itself, which terminates the walk.
	ancestor *Series

	// Varlists reach their keys through exactly one of these. While a
	// frame is stack-resident the varlist points at the frame; reifying
	// or popping moves the keysource to the managed paramlist.
	keylist *Series
	frame   *Frame

	// Varlists also carry a back-pointer to the Context handle built
	// over them, so binding resolution can recover the handle from a
	// stored binding without allocating.
	context *Context

	// Paramlists point at the paramlist of the underlying action
	// (themselves, unless this action was derived from another). Relative
	// bindings always store the underlying paramlist, so bodies shared
	// between a template and its derivations keep matching.
	underlying *Series
}

type seriesFlavor byte

const (
	flavorArray seriesFlavor = iota
	flavorBytes
	flavorSymbol
)

type seriesFlag uint16

const (
	// flagManaged marks nodes owned by the pool and subject to sweep.
	flagManaged seriesFlag = 1 << iota

	// flagMarked is the collector's reachability bit for the current
	// mark phase. Meaningless outside a collection.
	flagMarked

	// flagInaccessible marks a decayed node: the stub survives as a
	// tombstone but the content is gone. Marking stops at these rather
	// than treating them as an error.
	flagInaccessible

	// flagVarlist and flagParamlist identify the two array roles that
	// binding resolution distinguishes. A paramlist doubles as a frame
	// keylist, which is why it is excluded from the ancestor chain.
	flagVarlist
	flagParamlist

	// flagKeylistShared is set on a keylist while more than one context
	// generation views it. The first structural mutation of a context
	// holding a shared keylist forks a private copy.
	flagKeylistShared

	// flagStack marks a varlist whose storage belongs to a frame still
	// on the frame stack (not yet reified into the heap).
	flagStack

	// flagProtected refuses structural mutation of the series (the
	// context-level protect; individual cells use cellProtected).
	flagProtected

	// flagHold is a temporary mutation refusal taken out by natives
	// while they iterate.
	flagHold
)

func (s *Series) hasFlag(f seriesFlag) bool { return s.flags&f != 0 }
func (s *Series) setFlag(f seriesFlag)      { s.flags |= f }
func (s *Series) clearFlag(f seriesFlag)    { s.flags &^= f }

// IsAccessible reports whether the node still has content. Decayed nodes
// answer false forever.
func (s *Series) IsAccessible() bool {
	return !s.hasFlag(flagInaccessible)
}

// IsManaged reports whether the node is owned by a pool.
func (s *Series) IsManaged() bool {
	return s.hasFlag(flagManaged)
}

// IsArray reports whether this is a cell-array flavor node.
func (s *Series) IsArray() bool {
	return s.flavor == flavorArray
}

// IsSymbol reports whether this is a symbol flavor node.
func (s *Series) IsSymbol() bool {
	return s.flavor == flavorSymbol
}

// Len returns the element count of whichever flavor is populated.
func (s *Series) Len() int {
	if s.cells != nil {
		return len(s.cells)
	}
	return len(s.data)
}

// At returns the cell at index i of an array node.
func (s *Series) At(i int) *Cell {
	if !s.IsAccessible() {
		panic("Series.At: node is inaccessible")
	}
	return &s.cells[i]
}

// Head returns the cells of an array node for iteration.
func (s *Series) Head() []Cell {
	if !s.IsAccessible() {
		panic("Series.Head: node is inaccessible")
	}
	return s.cells
}

// Append adds a cell to an array node, honoring protection.
func (s *Series) Append(c Cell) {
	if s.hasFlag(flagProtected) || s.hasFlag(flagHold) {
		panic("Series.Append: series is protected or held")
	}
	if !s.IsAccessible() {
		panic("Series.Append: node is inaccessible")
	}
	s.cells = append(s.cells, c)
}

// Bytes returns the byte content of a byte-flavor node.
func (s *Series) Bytes() []byte {
	if !s.IsAccessible() {
		panic("Series.Bytes: node is inaccessible")
	}
	return s.data
}

// Spelling returns the spelling of a symbol node.
func (s *Series) Spelling() string {
	return s.spelling
}

// Canon returns the canonical node for a symbol. The canonical spelling
// returns itself.
func (s *Series) Canon() *Series {
	if s.canon == nil {
		return s
	}
	return s.canon
}
