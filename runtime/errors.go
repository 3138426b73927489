package runtime

import (
	"errors"
	"fmt"
)

// The recoverable failure taxonomy. These surface to the evaluator as
// ordinary script-level errors and are matched with errors.Is. Invariant
// violations (malformed kinds, unbalanced binder claims, archetype
// mismatches) are never errors: they panic, because they mean the cell,
// binding or GC contract itself is broken.
var (
	// ErrNotBound reports variable access through a word with no
	// binding at all.
	ErrNotBound = errors.New("word is not bound")

	// ErrInaccessible reports access to a context whose storage has
	// been reclaimed (a frame popped without reification, or a swept
	// node).
	ErrInaccessible = errors.New("context is no longer accessible")

	// ErrDuplicateBinding reports the same symbol claimed twice in one
	// binder session, as when a spec block names a variable twice.
	ErrDuplicateBinding = errors.New("duplicate binding for symbol")

	// ErrNoRelativeContext reports a relatively bound cell resolved
	// with no specifier to name the invocation.
	ErrNoRelativeContext = errors.New("relative binding without a frame specifier")

	// ErrProtected reports assignment to a protected variable or a
	// locked context.
	ErrProtected = errors.New("variable is protected")
)

func errNotBound(word *Cell) error {
	return fmt.Errorf("%s: %w", word.WordSymbol().Spelling(), ErrNotBound)
}

func errInaccessible(word *Cell) error {
	return fmt.Errorf("%s: %w", word.WordSymbol().Spelling(), ErrInaccessible)
}

func errNoRelativeContext(word *Cell) error {
	return fmt.Errorf("%s: %w", word.WordSymbol().Spelling(), ErrNoRelativeContext)
}

func errDuplicateBinding(spelling string) error {
	return fmt.Errorf("%s: %w", spelling, ErrDuplicateBinding)
}

func errProtected(spelling string) error {
	return fmt.Errorf("%s: %w", spelling, ErrProtected)
}
