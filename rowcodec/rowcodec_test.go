package rowcodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/rowcodec"
)

func testSchema() batch.Schema {
	return batch.Schema{Fields: []batch.Field{
		{Name: "a", Type: batch.Int64},
		{Name: "b", Type: batch.Utf8, Nullable: true},
	}}
}

func TestCompactRoundTrip(t *testing.T) {
	schema := testSchema()
	cols := []*batch.Column{
		{Type: batch.Int64, Int64s: []int64{42, -7}},
		{Type: batch.Utf8, Strings: []string{"hello", ""}},
	}
	cols[1].SetNull(1)

	row0, err := rowcodec.EncodeCompact(cols, 0, schema)
	require.NoError(t, err)
	row1, err := rowcodec.EncodeCompact(cols, 1, schema)
	require.NoError(t, err)

	decoded, err := rowcodec.DecodeMany([][]byte{row0, row1}, schema)
	require.NoError(t, err)
	require.Equal(t, []int64{42, -7}, decoded[0].Int64s)
	require.Equal(t, "hello", decoded[1].Strings[0])
	require.True(t, decoded[1].IsNull(1))
}

func TestCompactByteEqualityMatchesRowEquality(t *testing.T) {
	schema := testSchema()
	cols := []*batch.Column{
		{Type: batch.Int64, Int64s: []int64{1, 1}},
		{Type: batch.Utf8, Strings: []string{"x", "x"}},
	}
	row0, err := rowcodec.EncodeCompact(cols, 0, schema)
	require.NoError(t, err)
	row1, err := rowcodec.EncodeCompact(cols, 1, schema)
	require.NoError(t, err)
	require.Equal(t, row0, row1)
}

func TestCompactDistinguishesNullFromZeroValue(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{{Name: "a", Type: batch.Int64, Nullable: true}}}
	cols := []*batch.Column{{Type: batch.Int64, Int64s: []int64{0, 0}}}
	cols[0].SetNull(1)

	row0, _ := rowcodec.EncodeCompact(cols, 0, schema)
	row1, _ := rowcodec.EncodeCompact(cols, 1, schema)
	require.NotEqual(t, row0, row1)
}

func TestWordAlignedFixedWidthIsPure(t *testing.T) {
	schema := testSchema()
	w1 := rowcodec.FixedWidthOf(schema)
	w2 := rowcodec.FixedWidthOf(schema)
	require.Equal(t, w1, w2)
	require.Equal(t, len(schema.Fields)*9, w1)
}

func TestWordAlignedRoundTrip(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{
		{Name: "sum", Type: batch.Uint64},
		{Name: "count", Type: batch.Int64},
	}}
	layout := rowcodec.NewLayout(schema)

	w := &rowcodec.RowWriter{}
	buf := make([]byte, layout.FixedWidth)
	w.PointTo(layout, buf)
	w.SetUint64(0, 123)
	w.SetInt64(1, 7)

	r := &rowcodec.RowReader{}
	r.PointTo(layout, buf)
	require.Equal(t, uint64(123), r.Uint64(0))
	require.Equal(t, int64(7), r.Int64(1))

	decoded, err := rowcodec.DecodeWordAlignedMany([][]byte{buf}, layout)
	require.NoError(t, err)
	require.Equal(t, uint64(123), decoded[0].Uint64s[0])
	require.Equal(t, int64(7), decoded[1].Int64s[0])
}

func TestLayoutSubAddressesDisjointFields(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{
		{Name: "a", Type: batch.Uint64},
		{Name: "b", Type: batch.Uint64},
	}}
	layout := rowcodec.NewLayout(schema)
	buf := make([]byte, layout.FixedWidth)

	subA := layout.Sub(0, 1)
	subB := layout.Sub(1, 1)

	wa := &rowcodec.RowWriter{}
	wa.PointTo(subA, buf)
	wa.SetUint64(0, 111)

	wb := &rowcodec.RowWriter{}
	wb.PointTo(subB, buf)
	wb.SetUint64(0, 222)

	require.Equal(t, uint64(111), wa.Uint64(0))
	require.Equal(t, uint64(222), wb.Uint64(0))
}
