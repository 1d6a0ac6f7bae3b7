// Package heap implements a stop-the-world mark-and-sweep collector:
// the entities registered through Alloc (in this interpreter: environments,
// objects and thunks) are tracked by a Heap, marking also walks through
// unregistered values they reference, and a collection cycle sweeps any
// registered cell unreached by the last mark pass. Thunks and closures form cycles
// routinely (mutual recursion), which is why tracing is used rather than
// reference counting.
//
// The allocator never returns a pointer to an already-marked cell, and a
// collection compacts the internal index on sweep, so callers must keep intermediate values reachable
// from the continuation stack or the stash across any allocation site —
// see Heap.StashPush.
package heap

// Mark is a generation counter compared against, not a boolean: entities
// keep their last-seen mark so "unmarked" is implicit on the next cycle
// (no separate sweep-reset pass is needed).
type Mark uint8

// Entity is the supertype of everything the heap owns. Mark walks anything
// this entity directly references and calls h.MarkFrom on it.
type Entity interface {
	Mark(h *Heap)
	heapMark() Mark
	setHeapMark(m Mark)
}

// Base is embedded by every concrete heap entity to carry its mark byte.
type Base struct {
	mark Mark
}

func (b *Base) heapMark() Mark     { return b.mark }
func (b *Base) setHeapMark(m Mark) { b.mark = m }

// Config carries the collection thresholds the VM exposes as
// gc_min_objects / gc_growth_trigger.
type Config struct {
	MinObjects    int
	GrowthTrigger float64
}

func DefaultConfig() Config {
	return Config{MinObjects: 1000, GrowthTrigger: 2.0}
}

// Heap owns every long-lived value. It is not safe for concurrent use;
// the evaluator is strictly single-threaded.
type Heap struct {
	cfg Config

	lastMark Mark

	entities []Entity

	// stash holds entities that are live intermediate results not yet
	// reachable from the continuation stack. Push/Pop around any sequence of
	// allocations that must not be swept mid-sequence.
	stash []Entity

	lastNumEntities int
}

func New(cfg Config) *Heap {
	return &Heap{cfg: cfg}
}

// Alloc registers a freshly constructed entity with the heap and returns
// it. It never triggers a collection itself — callers check ShouldCollect
// and run Collect with the current roots once an allocation episode (e.g.
// one evaluator step) completes.
func Alloc[T Entity](h *Heap, e T) T {
	e.setHeapMark(h.lastMark)
	h.entities = append(h.entities, e)
	return e
}

// StashPush keeps e reachable across subsequent allocations until the
// matching StashPop. Returns the stash depth to pass to StashPop, so
// nested push/pop pairs compose.
func (h *Heap) StashPush(es ...Entity) int {
	mark := len(h.stash)
	h.stash = append(h.stash, es...)
	return mark
}

func (h *Heap) StashPop(mark int) {
	h.stash = h.stash[:mark]
}

// MarkFrom marks e and, transitively, everything e.Mark reports as
// reachable from it. Entities already bearing the current mark are not
// revisited (breaks cycles).
func (h *Heap) MarkFrom(e Entity) {
	if e == nil {
		return
	}
	if e.heapMark() == h.lastMark+1 {
		return
	}
	e.setHeapMark(h.lastMark + 1)
	e.Mark(h)
}

// ShouldCollect reports whether growth since the last cycle passes the
// configured thresholds: live count above the minimum AND grown by at
// least the growth factor since the previous cycle.
func (h *Heap) ShouldCollect() bool {
	return len(h.entities) > h.cfg.MinObjects &&
		float64(len(h.entities)) > h.cfg.GrowthTrigger*float64(h.lastNumEntities)
}

// Collect runs one mark-and-sweep cycle. roots are marked first (stack
// frames, scratch registers — whatever the caller currently considers
// live), then the stash, then sweep removes anything left at the prior
// mark.
func (h *Heap) Collect(roots ...Entity) {
	for _, r := range roots {
		h.MarkFrom(r)
	}
	for _, r := range h.stash {
		h.MarkFrom(r)
	}
	h.sweep()
}

func (h *Heap) sweep() {
	h.lastMark++
	live := h.entities[:0]
	for _, e := range h.entities {
		if e.heapMark() == h.lastMark {
			live = append(live, e)
		}
	}
	h.entities = live
	h.lastNumEntities = len(h.entities)
}

// Len reports the number of currently-live entities, exposed for tests and
// for the CLI's optional diagnostics.
func (h *Heap) Len() int { return len(h.entities) }
