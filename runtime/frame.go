package runtime

import "fmt"

// A Frame is one action invocation. The evaluator pushes a frame to run
// an action, fills the argument slots, and pops it when the call
// returns. While the frame is on the stack its context varlist is
// stack-resident; popping without reification decays the varlist, and
// any binding that escaped into heap values then reports
// ErrInaccessible instead of reading freed slots.
type Frame struct {
	action *Action

	// binding is the binding of the ACTION! cell that spawned this
	// invocation: the derived context for method-style dispatch. It is
	// what the override walk consults when this frame serves as a
	// specifier.
	binding Binding

	varctx *Context
	stack  *FrameStack
	depth  int
}

// Action returns the invoked template.
func (f *Frame) Action() *Action {
	return f.action
}

// Context returns the frame's context. Usable as a specifier while the
// frame is live, and as a plain context after reification.
func (f *Frame) Context() *Context {
	return f.varctx
}

// Binding returns the invocation binding captured from the action cell.
func (f *Frame) Binding() Binding {
	return f.binding
}

// Arg returns the 1-based argument cell.
func (f *Frame) Arg(index int) *Cell {
	return f.varctx.Var(index)
}

// FrameStack tracks live invocations in strict stack discipline,
// mirroring lexical scope. The evaluator owns exactly one.
type FrameStack struct {
	frames []*Frame
}

// NewFrameStack creates an empty stack.
func NewFrameStack() *FrameStack {
	return &FrameStack{}
}

// Depth returns the number of live frames.
func (fs *FrameStack) Depth() int {
	return len(fs.frames)
}

// Top returns the innermost live frame, or nil.
func (fs *FrameStack) Top() *Frame {
	if len(fs.frames) == 0 {
		return nil
	}
	return fs.frames[len(fs.frames)-1]
}

// Push begins an invocation of act. The frame context's keysource is
// the frame itself until reification; argument slots start nulled. The
// binding argument carries whatever binding rode on the action cell
// being invoked (Unbound for plain calls).
func (fs *FrameStack) Push(p *Pool, act *Action, binding Binding) *Frame {
	varlist := p.AllocArrayCap(act.NumParams() + 1)
	varlist.setFlag(flagVarlist)
	varlist.setFlag(flagStack)

	f := &Frame{
		action:  act,
		binding: binding,
		stack:   fs,
		depth:   len(fs.frames),
	}
	varlist.frame = f

	ctx := &Context{varlist: varlist}
	varlist.context = ctx
	f.varctx = ctx

	var archetype Cell
	archetype.reset(KindFrame)
	archetype.payload[0].node = varlist
	archetype.payload[1].node = act.paramlist // phase: the executing action
	archetype.binding = binding
	varlist.Append(archetype)

	for i := 0; i < act.NumParams(); i++ {
		var slot Cell
		slot.InitNulled()
		varlist.Append(slot)
	}

	fs.frames = append(fs.frames, f)
	return f
}

// Pop ends the innermost invocation. With reify the frame context is
// promoted to ordinary heap storage (keysource moves to the paramlist)
// and stays accessible; without it the varlist decays and later
// resolution against this frame reports ErrInaccessible.
func (fs *FrameStack) Pop(p *Pool, f *Frame, reify bool) {
	if fs.Top() != f {
		panic("FrameStack.Pop: popping a frame that is not on top")
	}
	fs.frames = fs.frames[:len(fs.frames)-1]

	if reify {
		f.Reify()
		return
	}
	p.Decay(f.varctx.varlist)
}

// Reify detaches the frame context from the stack so it survives the
// frame: the varlist's keysource becomes the managed paramlist.
func (f *Frame) Reify() {
	varlist := f.varctx.varlist
	if !varlist.IsAccessible() {
		panic("Frame.Reify: frame context already decayed")
	}
	varlist.clearFlag(flagStack)
	varlist.frame = nil
	varlist.keylist = f.action.paramlist
}

// DropTo unwinds the stack down to (and including) f, decaying every
// unreified frame context on the way. Used for error escapes.
func (fs *FrameStack) DropTo(p *Pool, f *Frame) {
	for len(fs.frames) > 0 {
		top := fs.frames[len(fs.frames)-1]
		fs.frames = fs.frames[:len(fs.frames)-1]
		if top.varctx.varlist.hasFlag(flagStack) {
			p.Decay(top.varctx.varlist)
		}
		if top == f {
			return
		}
	}
	panic(fmt.Sprintf("FrameStack.DropTo: frame at depth %d not found", f.depth))
}

// IsOnStack reports whether the frame is still live (not popped).
func (f *Frame) IsOnStack() bool {
	return f.varctx.varlist.hasFlag(flagStack)
}
