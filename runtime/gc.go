package runtime

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("quill.gc")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("gc: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Collector drives mark and sweep over one pool. The model is
// single-mutator, stop-the-world: Collect runs only between mutator
// steps, never concurrently with cell mutation, and never while a
// Binder holds claims.
//
// The per-kind tracing rules live in markCell; they are the contract an
// alternative driver would have to reproduce. Roots are whatever the
// caller passes plus the guard list and every live frame on the stack.
type Collector struct {
	pool     *Pool
	interner *Interner
	frames   *FrameStack

	guardedCells []*Cell
	guardedNodes []*Series
}

// NewCollector creates a collector for the pool. interner and frames
// may be nil when the caller manages those roots itself.
func NewCollector(pool *Pool, interner *Interner, frames *FrameStack) *Collector {
	return &Collector{pool: pool, interner: interner, frames: frames}
}

// Guard pins a node as a root until Unguard. Used by natives holding
// references in places the collector cannot see.
func (gc *Collector) Guard(s *Series) {
	gc.guardedNodes = append(gc.guardedNodes, s)
}

// GuardCell pins a cell's references as roots until UnguardCell.
func (gc *Collector) GuardCell(c *Cell) {
	gc.guardedCells = append(gc.guardedCells, c)
}

// Unguard releases the most recent Guard of s. Guards are expected to
// nest in stack order.
func (gc *Collector) Unguard(s *Series) {
	for i := len(gc.guardedNodes) - 1; i >= 0; i-- {
		if gc.guardedNodes[i] == s {
			gc.guardedNodes = append(gc.guardedNodes[:i], gc.guardedNodes[i+1:]...)
			return
		}
	}
	panic("Collector.Unguard: node was not guarded")
}

// UnguardCell releases the most recent GuardCell of c.
func (gc *Collector) UnguardCell(c *Cell) {
	for i := len(gc.guardedCells) - 1; i >= 0; i-- {
		if gc.guardedCells[i] == c {
			gc.guardedCells = append(gc.guardedCells[:i], gc.guardedCells[i+1:]...)
			return
		}
	}
	panic("Collector.UnguardCell: cell was not guarded")
}

// SweepStats reports one collection run. Snapshot is diagnostic
// telemetry; it is not a persistence format for values.
type SweepStats struct {
	RunID         string        `cbor:"run-id"`
	NodesBefore   int           `cbor:"nodes-before"`
	NodesAfter    int           `cbor:"nodes-after"`
	Reclaimed     int           `cbor:"reclaimed"`
	SymbolsPruned int           `cbor:"symbols-pruned"`
	Duration      time.Duration `cbor:"duration-ns"`
}

// Snapshot encodes the stats in canonical CBOR for telemetry sinks.
func (st *SweepStats) Snapshot() ([]byte, error) {
	return cborEncMode.Marshal(st)
}

// DecodeSweepStats decodes a Snapshot.
func DecodeSweepStats(data []byte) (*SweepStats, error) {
	var st SweepStats
	if err := cbor.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("gc: unmarshal sweep stats: %w", err)
	}
	return &st, nil
}

// Collect marks from the given roots (plus guards and live frames),
// optionally runs the post-mark integrity pass, then sweeps unmarked
// managed nodes and prunes dead interner entries.
func (gc *Collector) Collect(roots ...*Cell) SweepStats {
	start := time.Now()
	stats := SweepStats{
		RunID:       uuid.New().String(),
		NodesBefore: gc.pool.ManagedCount(),
	}

	gc.pool.clearMarks()
	m := newMarker(gc.pool)

	for _, c := range roots {
		m.markCell(c)
	}
	for _, c := range gc.guardedCells {
		m.markCell(c)
	}
	for _, s := range gc.guardedNodes {
		m.queueNode(s)
	}
	if gc.frames != nil {
		for _, f := range gc.frames.frames {
			m.queueNode(f.varctx.varlist)
			m.queueNode(f.action.paramlist)
			m.queueNode(f.action.details)
			if b := f.binding.ownedNode(); b != nil {
				m.queueNode(b)
			}
		}
	}
	m.propagate()

	if gc.pool.Tuning().GCChecks {
		gc.checkMarked()
	}

	stats.Reclaimed = gc.pool.sweep()
	if gc.interner != nil {
		stats.SymbolsPruned = gc.interner.Prune()
	}
	stats.NodesAfter = gc.pool.ManagedCount()
	stats.Duration = time.Since(start)

	gcLog.Debugf("collect %s: %d -> %d nodes, %d reclaimed, %d symbols pruned, %s",
		stats.RunID, stats.NodesBefore, stats.NodesAfter,
		stats.Reclaimed, stats.SymbolsPruned, stats.Duration)
	return stats
}

// marker holds the iterative mark state. Deeply nested arrays are
// walked through an explicit worklist rather than native recursion, so
// pathological nesting cannot blow the goroutine stack.
type marker struct {
	pool     *Pool
	worklist []*Series
}

func newMarker(p *Pool) *marker {
	return &marker{pool: p}
}

// queueNode marks a node and schedules its contents. Marking stops at
// inaccessible nodes: a tombstone is an expected terminal, not an
// error. The exception is that a decayed varlist still owns what its preserved
// archetype references (see Pool.Decay).
func (m *marker) queueNode(s *Series) {
	if s == nil || s.hasFlag(flagMarked) {
		return
	}
	s.setFlag(flagMarked)

	if !s.IsAccessible() {
		if s.hasFlag(flagVarlist) && len(s.cells) > 0 {
			m.markCell(&s.cells[0])
		}
		return
	}

	switch s.flavor {
	case flavorSymbol:
		// A marked symbol keeps its canon alive; case variants must
		// never outlive the node they compare through.
		if s.canon != nil {
			m.queueNode(s.canon)
		}

	case flavorBytes:
		// leaf

	case flavorArray:
		// Keysources are owned: a varlist without its keylist cannot
		// answer lookups. The keylist ancestor is deliberately NOT
		// traced here: it is a weak reference, and the override walk
		// tolerates tombstoned ancestors.
		if s.keylist != nil {
			m.queueNode(s.keylist)
		}
		m.worklist = append(m.worklist, s)
	}
}

// propagate drains the worklist, applying the per-kind cell rules to
// every element of every queued array.
func (m *marker) propagate() {
	for len(m.worklist) > 0 {
		s := m.worklist[len(m.worklist)-1]
		m.worklist = m.worklist[:len(m.worklist)-1]
		for i := range s.cells {
			m.markCell(&s.cells[i])
		}
	}
}

// markCell applies the per-kind mark contract to one cell. This is the
// normative statement of which payload slots own references.
func (m *marker) markCell(v *Cell) {
	heart := v.HeartKind()

	// The binding is an owned reference for every bindable cell: a
	// specific binding owns its varlist, a relative one its paramlist.
	if heart.IsBindable() {
		if b := v.binding.ownedNode(); b != nil {
			m.queueNode(b)
		}
	}

	if Kind(v.kindByte) == KindQuoted && v.kindByte < kindBand {
		// Box-escaped value: one owned reference to the box. The box
		// content must never itself be boxed.
		box := v.payload[0].node
		m.queueNode(box)
		if box.IsAccessible() {
			content := box.At(0)
			if Kind(content.kindByte) == KindQuoted {
				panic("gc: quoted box contains another boxed quoted")
			}
		}
		return
	}

	switch {
	case heart == KindZero || heart == KindNulled || heart == KindVoid || heart == KindBlank:
		// nothing owned

	case heart == KindTypeset:
		// Anonymous typesets are pure bits; keylist keys own their
		// symbol.
		m.queueNode(v.payload[0].node)

	case heart.IsScalar():
		// numbers, dates, logic: nothing owned

	case heart.IsSingleRef():
		m.queueNode(v.payload[0].node)

	case heart.IsContext():
		m.queueNode(v.payload[0].node) // varlist; keylist follows from it
		if phase := v.payload[1].node; phase != nil {
			if heart != KindFrame {
				panic(fmt.Sprintf("gc: %s cell carries a phase", heart))
			}
			m.queueNode(phase)
		}

	case heart.IsArray():
		m.queueNode(v.payload[0].node)

	case heart.IsWord():
		m.queueNode(v.payload[0].node)

	case heart == KindAction:
		paramlist := v.payload[0].node
		details := v.payload[1].node
		m.queueNode(paramlist)
		m.queueNode(details)
		if paramlist.IsAccessible() {
			archetype := paramlist.At(0)
			if archetype.HeartKind() != KindAction ||
				archetype.payload[1].node != details {
				// Not a recoverable condition: the template's identity
				// is split across two nodes that no longer agree.
				panic("gc: action archetype does not cross-reference its details array")
			}
		}

	case heart.IsPseudo():
		m.queueNode(v.payload[0].node) // param symbol

	default:
		panic(fmt.Sprintf("gc: cell with malformed kind byte %d", v.kindByte))
	}
}
