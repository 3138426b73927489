package runtime

import "fmt"

// Any value can be quote-escaped an arbitrary number of times. Depths up
// to 3 are free: they live in the kind byte as `kind + 64*depth`, so
// adding or removing a quote level is an in-place header rewrite with no
// allocation. Depth 4 and beyond overflows into a managed one-cell box:
// the cell becomes `{KindQuoted, depth, -> box}` and the box holds a
// verbatim copy of the original at depth 0.
//
// The box content's kind byte is never KindQuoted itself; deepening an
// already-boxed value only bumps the stored count, so boxes never nest.
//
// Boxed cells stay bindable regardless of content: the binding field of
// the outer cell is the live one (synced from the content at box time),
// which keeps binding checks from needing a box-aware special case. If
// the content kind is not bindable the outer binding is simply Unbound.

// QuoteDepth returns how many quote levels wrap the cell.
func (c *Cell) QuoteDepth() int {
	if c.kindByte >= kindBand {
		return int(c.kindByte / kindBand)
	}
	if Kind(c.kindByte) == KindQuoted {
		return int(c.payload[1].bits)
	}
	return 0
}

// IsQuoted reports whether at least one quote level wraps the cell.
func (c *Cell) IsQuoted() bool {
	return c.QuoteDepth() > 0
}

// boxContent returns the boxed cell of an out-of-line quoted value.
func (c *Cell) boxContent() *Cell {
	if Kind(c.kindByte) != KindQuoted || c.kindByte >= kindBand {
		panic("Cell.boxContent: cell quoting is in-line")
	}
	box := c.payload[0].node
	if int(c.payload[1].bits) <= 3 {
		panic("Cell.boxContent: boxed depth <= 3 should have been in-line")
	}
	return box.At(0)
}

// Quotify adds depth quote levels to the cell, in place when the total
// stays within the kind byte and via a managed box otherwise. Returns
// the same cell for chaining.
func Quotify(p *Pool, c *Cell, depth int) *Cell {
	if depth < 0 {
		panic("Quotify: negative depth")
	}

	if Kind(c.kindByte) == KindQuoted {
		// Already boxed: the box is reusable, only the count changes.
		c.payload[1].bits += uint64(depth)
		return c
	}

	heart := c.HeartKind()
	if heart.IsPseudo() || heart == KindZero {
		if depth != 0 {
			panic(fmt.Sprintf("Quotify: %s cannot be quoted", heart))
		}
		return c
	}

	depth += int(c.kindByte / kindBand)
	if depth <= 3 {
		c.kindByte = byte(heart) + byte(kindBand*depth)
		return c
	}

	box := p.AllocSingular()
	content := box.At(0)
	content.Move(c)
	content.kindByte = byte(heart) // escaping lives in the outer cell only

	c.kindByte = byte(KindQuoted)
	c.payload[0] = Slot{node: box}
	c.payload[1] = Slot{bits: uint64(depth)}
	if !heart.IsBindable() {
		c.binding = Unbound
	}
	// else: binding already matches the content's, keep it live here.
	return c
}

// Unquotify removes n quote levels. Removing more levels than are
// present is a caller bug and panics. When the depth drops back to 3 or
// less from a boxed state, the content is copied back in-line.
func Unquotify(c *Cell, n int) *Cell {
	if n < 0 {
		panic("Unquotify: negative count")
	}
	if n == 0 {
		return c
	}

	if Kind(c.kindByte) != KindQuoted {
		depth := int(c.kindByte / kindBand)
		if depth < n {
			panic(fmt.Sprintf("Unquotify: depth %d cannot drop %d levels", depth, n))
		}
		c.kindByte -= byte(kindBand * n)
		return c
	}

	depth := int(c.payload[1].bits)
	if depth < n {
		panic(fmt.Sprintf("Unquotify: depth %d cannot drop %d levels", depth, n))
	}
	depth -= n

	if depth > 3 {
		c.payload[1].bits = uint64(depth)
		return c
	}

	content := c.boxContent()
	if Kind(content.kindByte) == KindQuoted || content.kindByte >= kindBand {
		panic("Unquotify: box content is itself quoted")
	}

	// The outer cell's binding stays in effect; only kind and payload
	// come back out of the box.
	binding := c.binding
	flags := c.flags
	c.kindByte = content.kindByte + byte(kindBand*depth)
	c.payload = content.payload
	c.flags = flags
	c.binding = binding
	return c
}

// Unescaped returns a read-only view of the innermost unquoted content.
// For in-line quoting that is the cell itself (the kind byte aliases
// through HeartKind); for boxed quoting it is the box content. Callers
// must not mutate the result: a box may be shared by copies of the
// quoted cell.
func Unescaped(c *Cell) *Cell {
	if Kind(c.kindByte) != KindQuoted {
		return c
	}
	return c.boxContent()
}

// Dequotify strips every quote level and returns how many were removed.
func Dequotify(c *Cell) int {
	depth := c.QuoteDepth()
	if depth > 0 {
		Unquotify(c, depth)
	}
	return depth
}
