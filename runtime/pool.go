package runtime

// Tuning carries the runtime knobs the pool and collector honor. The
// config package populates one of these from quill.toml; zero value
// means defaults.
type Tuning struct {
	// PoolCapacity preallocates tracking space for this many managed
	// nodes.
	PoolCapacity int

	// GCChecks enables the post-mark integrity pass (see gc_check.go).
	GCChecks bool

	// GCStress makes every allocation eligible to trigger a collection
	// request, shaking out missing-root bugs in callers.
	GCStress bool
}

// DefaultTuning mirrors the defaults quill.toml documents.
func DefaultTuning() Tuning {
	return Tuning{PoolCapacity: 256, GCChecks: true}
}

// Pool is the series allocator: it hands out backing nodes and tracks
// every managed one so the collector can sweep. A pool serves a single
// mutator; nothing here is safe for concurrent use (the collector runs
// only between mutator steps).
type Pool struct {
	tuning  Tuning
	managed []*Series

	// stressPending is set after an allocation in stress mode; the
	// evaluator checks and clears it at safe points.
	stressPending bool
}

// NewPool creates a pool with the given tuning.
func NewPool(t Tuning) *Pool {
	if t.PoolCapacity <= 0 {
		t.PoolCapacity = DefaultTuning().PoolCapacity
	}
	return &Pool{
		tuning:  t,
		managed: make([]*Series, 0, t.PoolCapacity),
	}
}

// Tuning returns the pool's active tuning.
func (p *Pool) Tuning() Tuning {
	return p.tuning
}

// ManagedCount returns the number of live managed nodes.
func (p *Pool) ManagedCount() int {
	return len(p.managed)
}

// StressPending reports and clears the stress-mode collection request.
func (p *Pool) StressPending() bool {
	was := p.stressPending
	p.stressPending = false
	return was
}

func (p *Pool) track(s *Series) *Series {
	s.setFlag(flagManaged)
	p.managed = append(p.managed, s)
	if p.tuning.GCStress {
		p.stressPending = true
	}
	return s
}

// AllocArray allocates a managed cell array of the given length. Cells
// start as trash (KindZero).
func (p *Pool) AllocArray(length int) *Series {
	return p.track(&Series{
		flavor: flavorArray,
		cells:  make([]Cell, length),
	})
}

// AllocArrayCap allocates an empty managed cell array with capacity.
func (p *Pool) AllocArrayCap(capacity int) *Series {
	return p.track(&Series{
		flavor: flavorArray,
		cells:  make([]Cell, 0, capacity),
	})
}

// AllocSingular allocates the one-cell box used for deep quoting.
func (p *Pool) AllocSingular() *Series {
	return p.AllocArray(1)
}

// AllocBytes allocates a managed byte-flavor node holding a copy of b.
func (p *Pool) AllocBytes(b []byte) *Series {
	data := make([]byte, len(b))
	copy(data, b)
	return p.track(&Series{flavor: flavorBytes, data: data})
}

// allocSymbol allocates a managed symbol node. Only the interner calls
// this; everyone else goes through Interner.Intern.
func (p *Pool) allocSymbol(spelling string, canon *Series) *Series {
	return p.track(&Series{
		flavor:   flavorSymbol,
		spelling: spelling,
		canon:    canon,
	})
}

// Decay makes a node inaccessible, dropping its content while leaving
// the stub as a tombstone. References elsewhere keep resolving to the
// stub and observe the inaccessibility instead of crashing. A varlist
// stub keeps its archetype cell: a derelativized value may have
// captured the frame's binding override, which must stay consultable
// after the frame itself is gone.
func (p *Pool) Decay(s *Series) {
	if !s.IsAccessible() {
		return
	}
	s.setFlag(flagInaccessible)
	s.clearFlag(flagStack)
	if s.hasFlag(flagVarlist) && len(s.cells) > 0 {
		s.cells = s.cells[:1:1]
	} else {
		s.cells = nil
	}
	s.data = nil
	s.keylist = nil
	s.frame = nil
	s.ancestor = nil
}

// sweep drops every managed node the mark phase left unmarked, clearing
// the mark bit on survivors. Returns reclaimed count.
func (p *Pool) sweep() int {
	kept := p.managed[:0]
	reclaimed := 0
	for _, s := range p.managed {
		if s.hasFlag(flagMarked) {
			s.clearFlag(flagMarked)
			kept = append(kept, s)
			continue
		}
		s.setFlag(flagInaccessible)
		s.clearFlag(flagManaged)
		s.cells = nil
		s.data = nil
		s.keylist = nil
		s.frame = nil
		s.ancestor = nil
		reclaimed++
	}
	// Let the dropped tail be collected by the host.
	for i := len(kept); i < len(p.managed); i++ {
		p.managed[i] = nil
	}
	p.managed = kept
	return reclaimed
}

// clearMarks resets the mark bit ahead of a mark phase.
func (p *Pool) clearMarks() {
	for _, s := range p.managed {
		s.clearFlag(flagMarked)
	}
}
