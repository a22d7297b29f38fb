package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupTableProbeInsertGrow(t *testing.T) {
	tbl := newGroupTable(16)
	for i := uint32(0); i < 20; i++ {
		h := uint64(i) * 7919
		if tbl.willGrowBeforeInsert() {
			tbl.grow()
		}
		tbl.insertPrecomputed(h, i)
	}
	for i := uint32(0); i < 20; i++ {
		h := uint64(i) * 7919
		idx, found := tbl.probe(h, func(cand uint32) bool { return cand == i })
		require.True(t, found)
		require.Equal(t, i, idx)
	}
}

func TestPushScratchDoublesAndReportsDelta(t *testing.T) {
	gs := &groupState{scratch: make([]int, 0, initialScratchCap)}
	_, grown := gs.pushScratch(1)
	require.False(t, grown)
	_, grown = gs.pushScratch(2)
	require.False(t, grown)
	delta, grown := gs.pushScratch(3)
	require.True(t, grown)
	require.Equal(t, uint64(4*initialScratchCap), delta)
	require.Equal(t, []int{1, 2, 3}, gs.scratch)
}
