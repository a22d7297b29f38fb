package join

import (
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
)

// JoinType selects the equi-join semantics, per spec.md §4.5.
type JoinType int

const (
	Inner JoinType = iota
	Left
	Right
	Full
)

// PartitionMode selects how the build side is shared across output
// partitions, per spec.md §4.5/§5.
type PartitionMode int

const (
	// CollectLeft builds the left side once, shared across partitions.
	CollectLeft PartitionMode = iota
	// Partitioned builds the left side once per partition, unshared.
	Partitioned
)

// OnPair is one (left_col_name, right_col_name) equi-join pair.
type OnPair struct {
	Left  string
	Right string
}

// ColumnIndex maps an output field to its source side and column
// index, per spec.md §3.
type ColumnIndex struct {
	Index  int
	IsLeft bool
}

// buildOutputSchema computes the joined output schema and its
// ColumnIndex map for join_type, per spec.md §4.5: for Left/Inner/Full,
// left columns precede right columns; for Right, right precedes left.
func buildOutputSchema(left, right batch.Schema, jt JoinType) (batch.Schema, []ColumnIndex) {
	var fields []batch.Field
	var indices []ColumnIndex
	addLeft := func() {
		for i, f := range left.Fields {
			nullable := f.Nullable || jt == Right || jt == Full
			fields = append(fields, batch.Field{Name: f.Name, Type: f.Type, Nullable: nullable})
			indices = append(indices, ColumnIndex{Index: i, IsLeft: true})
		}
	}
	addRight := func() {
		for i, f := range right.Fields {
			nullable := f.Nullable || jt == Left || jt == Full
			fields = append(fields, batch.Field{Name: f.Name, Type: f.Type, Nullable: nullable})
			indices = append(indices, ColumnIndex{Index: i, IsLeft: false})
		}
	}
	if jt == Right {
		addRight()
		addLeft()
	} else {
		addLeft()
		addRight()
	}
	return batch.Schema{Fields: fields}, indices
}

// columnIndicesFromSchema resolves each on-pair to (left index, right
// index), failing with an Internal error if a name is not found —
// spec.md §7's "schema-lookup failure in column_indices_from_schema".
func columnIndicesFromSchema(left, right batch.Schema, on []OnPair) ([]int, []int, error) {
	leftIdx := make([]int, len(on))
	rightIdx := make([]int, len(on))
	for i, pair := range on {
		li := left.IndexOf(pair.Left)
		if li < 0 {
			return nil, nil, colerr.Internalf("join: left column %q not found in schema", pair.Left)
		}
		ri := right.IndexOf(pair.Right)
		if ri < 0 {
			return nil, nil, colerr.Internalf("join: right column %q not found in schema", pair.Right)
		}
		leftIdx[i] = li
		rightIdx[i] = ri
	}
	return leftIdx, rightIdx, nil
}

// ColumnEqual implements the per-column element equality from spec.md
// §4.5: null vs anything is always false; otherwise typed equality.
func ColumnEqual(a *batch.Column, ai int, b *batch.Column, bi int) (bool, error) {
	if a.IsNull(ai) || b.IsNull(bi) {
		return false, nil
	}
	if a.Type != b.Type {
		return false, colerr.Internalf("join: column_equal: mismatched types %s vs %s", a.Type, b.Type)
	}
	switch a.Type {
	case batch.Int8:
		return a.Int8s[ai] == b.Int8s[bi], nil
	case batch.Int16:
		return a.Int16s[ai] == b.Int16s[bi], nil
	case batch.Int32, batch.Date32:
		return a.Int32s[ai] == b.Int32s[bi], nil
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		return a.Int64s[ai] == b.Int64s[bi], nil
	case batch.Uint8:
		return a.Uint8s[ai] == b.Uint8s[bi], nil
	case batch.Uint16:
		return a.Uint16s[ai] == b.Uint16s[bi], nil
	case batch.Uint32:
		return a.Uint32s[ai] == b.Uint32s[bi], nil
	case batch.Uint64:
		return a.Uint64s[ai] == b.Uint64s[bi], nil
	case batch.Bool:
		return a.Bools[ai] == b.Bools[bi], nil
	case batch.Float32:
		return a.Float32s[ai] == b.Float32s[bi], nil
	case batch.Float64:
		return a.Float64s[ai] == b.Float64s[bi], nil
	case batch.Utf8, batch.LargeUtf8:
		return a.Strings[ai] == b.Strings[bi], nil
	default:
		return false, colerr.Internalf("join: column_equal: unsupported data type %s", a.Type)
	}
}

// RowsEqual runs ColumnEqual over every join column pair; all columns
// must be equal for the row pair to be considered equal.
func RowsEqual(leftCols []*batch.Column, li int, rightCols []*batch.Column, ri int) (bool, error) {
	for c := range leftCols {
		eq, err := ColumnEqual(leftCols[c], li, rightCols[c], ri)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}
