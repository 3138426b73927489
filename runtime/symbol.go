package runtime

import "strings"

// Interner owns the canonical symbol table. Words are case-preserving
// but compare case-insensitively, so every spelling maps to a canon node
// shared by all case variants. Symbols are managed nodes like any other;
// spellings nothing references anymore are reclaimed by the sweep, and
// Prune drops the stale table entries afterward.
type Interner struct {
	bySpelling map[string]*Series // exact spelling -> node
	canons     map[string]*Series // folded spelling -> canon node
}

// NewInterner creates an empty symbol table.
func NewInterner() *Interner {
	return &Interner{
		bySpelling: make(map[string]*Series),
		canons:     make(map[string]*Series),
	}
}

// Intern returns the symbol node for a spelling, allocating it (and its
// canon, if this is a new case-fold class) on first sight.
func (in *Interner) Intern(p *Pool, spelling string) *Series {
	if spelling == "" {
		panic("Interner.Intern: empty spelling")
	}
	if s, ok := in.bySpelling[spelling]; ok && s.IsAccessible() {
		return s
	}

	folded := strings.ToLower(spelling)
	canon, ok := in.canons[folded]
	if !ok || !canon.IsAccessible() {
		canon = p.allocSymbol(folded, nil)
		in.canons[folded] = canon
		in.bySpelling[folded] = canon
	}
	if spelling == folded {
		return canon
	}

	s := p.allocSymbol(spelling, canon)
	in.bySpelling[spelling] = s
	return s
}

// Lookup returns the node for an exact spelling without interning.
func (in *Interner) Lookup(spelling string) (*Series, bool) {
	s, ok := in.bySpelling[spelling]
	if !ok || !s.IsAccessible() {
		return nil, false
	}
	return s, true
}

// SameWord reports whether two symbols name the same word under the
// case-insensitive comparison rule.
func SameWord(a, b *Series) bool {
	return a.Canon() == b.Canon()
}

// Prune drops table entries whose nodes were reclaimed by a sweep.
// Called by the collector driver after sweeping.
func (in *Interner) Prune() int {
	dropped := 0
	for spelling, s := range in.bySpelling {
		if !s.IsAccessible() {
			delete(in.bySpelling, spelling)
			dropped++
		}
	}
	for folded, s := range in.canons {
		if !s.IsAccessible() {
			delete(in.canons, folded)
		}
	}
	return dropped
}

// Count returns the number of live interned spellings.
func (in *Interner) Count() int {
	return len(in.bySpelling)
}
