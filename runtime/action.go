package runtime

import "fmt"

// An Action is a function template: a paramlist (doubles as the keylist
// of every invocation frame) and a details array holding whatever state
// the dispatcher needs. Slot 0 of the paramlist is the action archetype
// cell, which must reference both the paramlist and the same details
// array; the collector treats a mismatch as a fatal consistency failure.
type Action struct {
	paramlist *Series
	details   *Series
}

// Param describes one parameter for MakeAction.
type Param struct {
	Class    Kind // one of the KindParam* pseudo-kinds
	Symbol   *Series
	Typebits uint64
}

// MakeAction builds a template from a parameter list and a details
// array.
func MakeAction(p *Pool, params []Param, details *Series) *Action {
	if details == nil || !details.IsArray() {
		panic("MakeAction: details must be an array node")
	}

	paramlist := p.AllocArrayCap(len(params) + 1)
	paramlist.setFlag(flagParamlist)
	paramlist.underlying = paramlist

	act := &Action{paramlist: paramlist, details: details}

	var archetype Cell
	archetype.reset(KindAction)
	archetype.payload[0].node = paramlist
	archetype.payload[1].node = details
	paramlist.Append(archetype)

	for _, param := range params {
		if !param.Class.IsPseudo() {
			panic(fmt.Sprintf("MakeAction: %s is not a parameter class", param.Class))
		}
		var key Cell
		key.InitParam(param.Class, param.Symbol, param.Typebits)
		paramlist.Append(key)
	}
	return act
}

// DeriveAction builds a template reusing base's paramlist identity as
// its underlying, the way specializations and adaptations stay
// compatible with bodies relativized against the base.
func DeriveAction(p *Pool, base *Action, details *Series) *Action {
	act := MakeAction(p, nil, details)

	// Rebuild the paramlist with base's params but base's underlying.
	for i := 1; i < base.paramlist.Len(); i++ {
		var cp Cell
		cp.Move(base.paramlist.At(i))
		act.paramlist.Append(cp)
	}
	act.paramlist.underlying = base.Underlying().paramlist
	return act
}

// Paramlist returns the parameter list node.
func (a *Action) Paramlist() *Series {
	return a.paramlist
}

// Details returns the dispatcher-state array.
func (a *Action) Details() *Series {
	return a.details
}

// NumParams returns the parameter count.
func (a *Action) NumParams() int {
	return a.paramlist.Len() - 1
}

// Param returns the 1-based parameter key cell.
func (a *Action) Param(index int) *Cell {
	if index < 1 || index >= a.paramlist.Len() {
		panic(fmt.Sprintf("Action.Param: index %d out of range 1..%d", index, a.NumParams()))
	}
	return a.paramlist.At(index)
}

// Archetype returns paramlist slot 0.
func (a *Action) Archetype() *Cell {
	return a.paramlist.At(0)
}

// Underlying returns the action whose paramlist identity relative
// bindings use. For a base action that is the action itself.
func (a *Action) Underlying() *Action {
	u := a.paramlist.underlying
	if u == a.paramlist {
		return a
	}
	return ActionOfParamlist(u)
}

// ActionOfParamlist recovers the Action handle from a paramlist node
// via its archetype.
func ActionOfParamlist(paramlist *Series) *Action {
	if !paramlist.hasFlag(flagParamlist) {
		panic("ActionOfParamlist: node is not a paramlist")
	}
	archetype := paramlist.At(0)
	if archetype.HeartKind() != KindAction {
		panic("ActionOfParamlist: slot 0 is not an action archetype")
	}
	return &Action{
		paramlist: archetype.payload[0].node,
		details:   archetype.payload[1].node,
	}
}

// InitAction makes cell an action value for act.
func (c *Cell) InitAction(act *Action) *Cell {
	c.reset(KindAction)
	c.payload[0].node = act.paramlist
	c.payload[1].node = act.details
	return c
}

// ActionOf returns the Action behind an action cell.
func (c *Cell) ActionOf() *Action {
	c.requireHeart(KindAction, "Cell.ActionOf")
	return &Action{
		paramlist: c.payload[0].node,
		details:   c.payload[1].node,
	}
}
