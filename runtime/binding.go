package runtime

// Binding records where a bindable cell's variables live. Three states:
//
//   - Unbound: the cell names nothing yet.
//   - Specific: the cell is tied to one concrete context; its word index
//     selects a varlist slot there (possibly overridden at lookup time by
//     a more derived context, see bind.go).
//   - Relative: the cell was deep-copied into a function body and is tied
//     to the function template, not any one invocation. Resolution needs
//     a specifier naming the live frame.
//
// The zero value is Unbound.
type Binding struct {
	class bindingClass
	node  *Series // varlist (specific) or underlying paramlist (relative)
}

type bindingClass uint8

const (
	bindUnbound bindingClass = iota
	bindSpecific
	bindRelative
)

// Unbound is the no-binding value.
var Unbound = Binding{}

// SpecificBinding ties a cell to a concrete context.
func SpecificBinding(ctx *Context) Binding {
	return Binding{class: bindSpecific, node: ctx.varlist}
}

// RelativeBinding ties a cell to a function template. The underlying
// action is always what gets stored, so copied or adapted derivations of
// the same template still match their shared bodies.
func RelativeBinding(act *Action) Binding {
	return Binding{class: bindRelative, node: act.Underlying().paramlist}
}

// IsUnbound reports whether no binding is present.
func (b Binding) IsUnbound() bool { return b.class == bindUnbound }

// IsSpecific reports whether the binding names a concrete context.
func (b Binding) IsSpecific() bool { return b.class == bindSpecific }

// IsRelative reports whether the binding names a function template.
func (b Binding) IsRelative() bool { return b.class == bindRelative }

// Context returns the bound context of a specific binding.
func (b Binding) Context() *Context {
	if b.class != bindSpecific {
		panic("Binding.Context: binding is not specific")
	}
	return b.node.context
}

// Paramlist returns the underlying paramlist of a relative binding.
func (b Binding) Paramlist() *Series {
	if b.class != bindRelative {
		panic("Binding.Paramlist: binding is not relative")
	}
	return b.node
}

// ownedNode returns the series the collector must trace for this
// binding, or nil.
func (b Binding) ownedNode() *Series {
	return b.node
}
