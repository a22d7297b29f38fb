package aggregate

import "github.com/rowbatch/colexec/internal/mathutil"

// groupState is the invariant per live group from spec.md §3.
type groupState struct {
	keyBytes   []byte
	stateBytes []byte
	scratch    []int
}

// sizeofGroupState approximates the in-memory footprint of one
// groupState header (three slice headers plus bookkeeping), used only
// for the doubling-growth memory-accounting formula in spec.md §4.4.
const sizeofGroupState = 64

// sizeofTableSlot approximates sizeof((u64, usize)) from spec.md §4.4.
const sizeofTableSlot = 16

const initialScratchCap = 2

// pushScratch appends r to g.scratch, growing by doubling (initial
// bump = 2) and reporting the byte delta of the grow. A caller that
// accounts memory grants that delta via the MemoryPool before calling
// pushScratch, per spec.md §4.4.2.d.
func (g *groupState) pushScratch(r int) (growDelta uint64, grown bool) {
	if len(g.scratch) == cap(g.scratch) {
		oldCap := cap(g.scratch)
		newCap := oldCap * 2
		if newCap == 0 {
			newCap = initialScratchCap
		}
		bump := newCap - oldCap
		grownSlice := make([]int, len(g.scratch), newCap)
		copy(grownSlice, g.scratch)
		g.scratch = grownSlice
		growDelta = uint64(4 * bump)
		grown = true
	}
	g.scratch = append(g.scratch, r)
	return growDelta, grown
}

// tableSlot is one entry of groupTable: (hash, group_idx). The table
// never stores the canonical key bytes; equality is deferred to the
// caller's predicate over groupStates[idx].keyBytes, per spec.md §3/§9
// ("Table without stored keys").
type tableSlot struct {
	occupied bool
	hash     uint64
	idx      uint32
}

// groupTable is GroupTable: an open-addressed hash set of (hash,
// group_idx) pairs with linear probing, emulating a hash-table API
// that accepts a caller-supplied equality predicate and a precomputed
// hash, per spec.md §9's own recommended emulation strategy.
type groupTable struct {
	slots []tableSlot
	count int
}

func newGroupTable(capacityHint int) *groupTable {
	cap0 := mathutil.Max(mathutil.NextPow2(capacityHint), 16)
	return &groupTable{slots: make([]tableSlot, cap0)}
}

func (t *groupTable) capacity() int { return len(t.slots) }

func (t *groupTable) mask() uint64 { return uint64(len(t.slots) - 1) }

// willGrowBeforeInsert reports whether the next insert would push the
// table's load factor past 3/4, matching the ingest algorithm's
// "if table insertion fails without growing" check performed ahead of
// the single combined allocation for a new group.
func (t *groupTable) willGrowBeforeInsert() bool {
	return (t.count+1)*4 > len(t.slots)*3
}

// probe looks up hashVal, calling equal(idx) for every bucket whose
// stored hash matches, per spec.md §3's "equality predicate dereferences
// group_idx" design.
func (t *groupTable) probe(hashVal uint64, equal func(idx uint32) bool) (uint32, bool) {
	m := t.mask()
	i := hashVal & m
	for {
		slot := &t.slots[i]
		if !slot.occupied {
			return 0, false
		}
		if slot.hash == hashVal && equal(slot.idx) {
			return slot.idx, true
		}
		i = (i + 1) & m
	}
}

// insertPrecomputed inserts (hashVal, idx) using the already-computed
// row hash, per spec.md §4.4.2.d "insert into the table using the
// precomputed hash as the hash function".
func (t *groupTable) insertPrecomputed(hashVal uint64, idx uint32) {
	m := t.mask()
	i := hashVal & m
	for t.slots[i].occupied {
		i = (i + 1) & m
	}
	t.slots[i] = tableSlot{occupied: true, hash: hashVal, idx: idx}
	t.count++
}

// grow doubles the table's capacity (or to 16, whichever is larger)
// and reinserts every occupied slot using its stored hash.
func (t *groupTable) grow() {
	newCap := mathutil.Max(len(t.slots)*2, 16)
	old := t.slots
	t.slots = make([]tableSlot, newCap)
	t.count = 0
	for _, s := range old {
		if s.occupied {
			t.insertPrecomputed(s.hash, s.idx)
		}
	}
}
