package accum_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/accum"
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/rowcodec"
)

func newWriter(fields []batch.Field) (*rowcodec.RowWriter, *rowcodec.Layout, []byte) {
	layout := rowcodec.NewLayout(batch.Schema{Fields: fields})
	buf := make([]byte, layout.FixedWidth)
	w := &rowcodec.RowWriter{}
	w.PointTo(layout, buf)
	return w, layout, buf
}

func TestCountUpdateBatchCountsNonNullRows(t *testing.T) {
	a := accum.NewCount()()
	w, layout, buf := newWriter(a.StateSchema().Fields)

	col := &batch.Column{Type: batch.Int64, Int64s: []int64{1, 2, 3}}
	col.SetNull(1)
	require.NoError(t, a.UpdateBatch([]*batch.Column{col}, []int{0, 1, 2}, w))

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Int64)
}

func TestSumFoldsViaUint256AndPersistsAsUint64(t *testing.T) {
	a := accum.NewSum(batch.Uint64)()
	w, layout, buf := newWriter(a.StateSchema().Fields)

	col := &batch.Column{Type: batch.Uint64, Uint64s: []uint64{10, 20, 30}}
	require.NoError(t, a.UpdateBatch([]*batch.Column{col}, []int{0, 1, 2}, w))

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.False(t, out.Null)
	require.Equal(t, uint64(60), out.Uint64)
}

func TestSumMergeBatchCombinesPartials(t *testing.T) {
	a := accum.NewSum(batch.Uint64)()
	w, layout, buf := newWriter(a.StateSchema().Fields)

	partials := &batch.Column{Type: batch.Uint64, Uint64s: []uint64{5, 7}}
	require.NoError(t, a.MergeBatch([]*batch.Column{partials}, []int{0, 1}, w))

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.Equal(t, uint64(12), out.Uint64)
}

func TestMinMaxTrackExtremes(t *testing.T) {
	min := accum.NewMin(batch.Float64)()
	w, layout, buf := newWriter(min.StateSchema().Fields)
	col := &batch.Column{Type: batch.Float64, Float64s: []float64{3, 1, 2}}
	require.NoError(t, min.UpdateBatch([]*batch.Column{col}, []int{0, 1, 2}, w))
	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := min.Evaluate(r)
	require.NoError(t, err)
	require.Equal(t, 1.0, out.Float64)

	max := accum.NewMax(batch.Float64)()
	w2, layout2, buf2 := newWriter(max.StateSchema().Fields)
	require.NoError(t, max.UpdateBatch([]*batch.Column{col}, []int{0, 1, 2}, w2))
	r2 := &rowcodec.RowReader{}
	r2.PointTo(layout2, buf2)
	out2, err := max.Evaluate(r2)
	require.NoError(t, err)
	require.Equal(t, 3.0, out2.Float64)
}

func TestExtremeEvaluatesNullWhenNoRowsSeen(t *testing.T) {
	max := accum.NewMax(batch.Float64)()
	_, layout, buf := newWriter(max.StateSchema().Fields)
	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := max.Evaluate(r)
	require.NoError(t, err)
	require.True(t, out.Null)
}

func TestAvgDividesSumByCount(t *testing.T) {
	a := accum.NewAvg()()
	w, layout, buf := newWriter(a.StateSchema().Fields)
	col := &batch.Column{Type: batch.Float64, Float64s: []float64{2, 4, 6}}
	require.NoError(t, a.UpdateBatch([]*batch.Column{col}, []int{0, 1, 2}, w))

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.Equal(t, 4.0, out.Float64)
}

func TestAvgMergeBatchCombinesSumsAndCounts(t *testing.T) {
	a := accum.NewAvg()()
	w, layout, buf := newWriter(a.StateSchema().Fields)
	sums := &batch.Column{Type: batch.Float64, Float64s: []float64{10, 20}}
	counts := &batch.Column{Type: batch.Int64, Int64s: []int64{2, 3}}
	require.NoError(t, a.MergeBatch([]*batch.Column{sums, counts}, []int{0, 1}, w))

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.InDelta(t, 30.0/5.0, out.Float64, 1e-9)
}

func TestAvgEvaluatesNullWhenCountZero(t *testing.T) {
	a := accum.NewAvg()()
	_, layout, buf := newWriter(a.StateSchema().Fields)
	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	out, err := a.Evaluate(r)
	require.NoError(t, err)
	require.True(t, out.Null)
}
