package runtime

import "fmt"

// Post-mark integrity pass. Runs between mark and sweep when
// Tuning.GCChecks is on, and re-verifies the mark contract cell by
// cell: every reference owned by a marked, accessible node must itself
// have been marked, and the structural invariants that binding
// resolution depends on must hold. Any violation is a bug in the core,
// so everything here panics rather than returning errors.
func (gc *Collector) checkMarked() {
	for _, s := range gc.pool.managed {
		if !s.hasFlag(flagMarked) || !s.IsAccessible() {
			continue
		}

		if s.flavor == flavorSymbol {
			if s.canon != nil && !s.canon.hasFlag(flagMarked) {
				panic(fmt.Sprintf("gc check: symbol %q marked but canon unmarked", s.spelling))
			}
			continue
		}
		if s.flavor != flavorArray {
			continue
		}

		if s.hasFlag(flagParamlist) {
			checkParamlist(s)
		}
		if s.hasFlag(flagVarlist) {
			checkVarlist(s)
		}

		for i := range s.cells {
			checkCellMarked(&s.cells[i])
		}
	}
}

// checkParamlist verifies the invariants every parameter list holds:
// an action archetype in slot 0, with a null binding (an archetype is
// the template itself, not a method instance), cross-referencing this
// very paramlist.
func checkParamlist(s *Series) {
	if s.Len() == 0 {
		panic("gc check: empty paramlist")
	}
	archetype := s.At(0)
	if archetype.HeartKind() != KindAction {
		panic("gc check: paramlist slot 0 is not an action archetype")
	}
	if !archetype.binding.IsUnbound() {
		panic("gc check: paramlist archetype carries a binding")
	}
	if archetype.payload[0].node != s {
		panic("gc check: paramlist archetype references a different paramlist")
	}
	for i := 1; i < s.Len(); i++ {
		if !s.At(i).HeartKind().IsPseudo() {
			panic(fmt.Sprintf("gc check: paramlist slot %d is not a parameter", i))
		}
	}
}

// checkVarlist verifies a context varlist: slot 0 is an archetype of a
// context kind referencing this varlist, and the keysource is exactly
// one of a live stack frame or a managed keylist array.
func checkVarlist(s *Series) {
	if s.Len() == 0 {
		panic("gc check: empty varlist")
	}
	archetype := s.At(0)
	if !archetype.HeartKind().IsContext() {
		panic("gc check: varlist slot 0 is not a context archetype")
	}
	if archetype.payload[0].node != s {
		panic("gc check: varlist archetype references a different varlist")
	}

	switch {
	case s.frame != nil:
		if s.keylist != nil {
			panic("gc check: varlist has both a frame and a keylist keysource")
		}
		if !s.hasFlag(flagStack) {
			panic("gc check: frame keysource on a non-stack varlist")
		}
		if !s.frame.IsOnStack() {
			panic("gc check: varlist keysource is a dead frame")
		}
	case s.keylist != nil:
		if !s.keylist.IsManaged() {
			panic("gc check: varlist keylist is unmanaged")
		}
		if !s.keylist.hasFlag(flagMarked) {
			panic("gc check: varlist marked but keylist unmarked")
		}
	default:
		panic("gc check: varlist has no keysource")
	}

	if archetype.HeartKind() == KindFrame {
		if phase := archetype.payload[1].node; phase != nil && !phase.hasFlag(flagMarked) {
			panic("gc check: frame phase unmarked")
		}
	} else if archetype.payload[1].node != nil {
		panic(fmt.Sprintf("gc check: %s archetype carries a phase", archetype.HeartKind()))
	}
}

// checkCellMarked re-derives the owned references of one cell and
// asserts each was marked. Inaccessible targets are tombstones and
// exempt from content checks, but the stub itself must still be marked.
func checkCellMarked(v *Cell) {
	heart := v.HeartKind()

	if heart.IsBindable() {
		if b := v.binding.ownedNode(); b != nil && !b.hasFlag(flagMarked) {
			panic(fmt.Sprintf("gc check: %s cell binding unmarked", heart))
		}
	}

	if Kind(v.kindByte) == KindQuoted {
		box := v.payload[0].node
		requireMarked(box, "quoted box")
		if box.IsAccessible() {
			content := box.At(0)
			if Kind(content.kindByte) == KindQuoted {
				panic("gc check: quoted box content is itself boxed")
			}
			if content.kindByte >= kindBand {
				panic("gc check: quoted box content carries in-line quoting")
			}
		}
		return
	}

	switch {
	case heart == KindTypeset, heart.IsPseudo():
		if sym := v.payload[0].node; sym != nil {
			requireMarked(sym, "key symbol")
		}

	case heart.IsScalar():
		// nothing owned

	case heart.IsSingleRef(), heart.IsArray(), heart.IsWord():
		requireMarked(v.payload[0].node, heart.String())

	case heart.IsContext():
		requireMarked(v.payload[0].node, heart.String())
		if phase := v.payload[1].node; phase != nil {
			if heart != KindFrame {
				panic(fmt.Sprintf("gc check: %s cell carries a phase", heart))
			}
			requireMarked(phase, "frame phase")
		}

	case heart == KindAction:
		requireMarked(v.payload[0].node, "action paramlist")
		requireMarked(v.payload[1].node, "action details")

	case heart == KindZero:
		// trash slots own nothing
	}
}

func requireMarked(s *Series, what string) {
	if s == nil {
		panic(fmt.Sprintf("gc check: %s reference is nil", what))
	}
	if s.IsManaged() && !s.hasFlag(flagMarked) {
		panic(fmt.Sprintf("gc check: %s reference unmarked", what))
	}
}
