package join

import (
	"context"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/hash"
)

// probeRow describes one emitted output row during the probe phase:
// leftIdx == -1 marks a null left side (Right-join bucket miss).
type probeRow struct {
	leftIdx  int
	rightIdx int
}

// probeNext consumes exactly one right-side batch and returns the
// corresponding output batch, per spec.md §4.5 probe phase. Returns
// (nil, nil) once the right stream is exhausted.
func (j *HashJoiner) probeNext(ctx context.Context) (*batch.Batch, error) {
	r, err := j.cfg.Right.Next(ctx)
	if err != nil {
		return nil, colerr.WrapExternal(err)
	}
	if r == nil {
		return nil, nil
	}

	rightJoinCols := leftColumnsOf(r, j.rightOnIdx)
	hashes := make([]uint64, r.NumRows)
	if err := hash.HashRows(rightJoinCols, hash.ReferenceSeed, hashes); err != nil {
		return nil, err
	}

	var rows []probeRow
	leftJoinCols := j.built.joinCols

	for rr := 0; rr < r.NumRows; rr++ {
		candidates, ok := j.built.index.probe(hashes[rr])
		if !ok || len(candidates) == 0 {
			switch j.cfg.JoinType {
			case Right, Full:
				rows = append(rows, probeRow{leftIdx: -1, rightIdx: rr})
			}
			continue
		}
		matched := false
		for _, c := range candidates {
			li := int(c)
			eq, err := RowsEqual(leftJoinCols, li, rightJoinCols, rr)
			if err != nil {
				return nil, err
			}
			if !eq {
				continue
			}
			matched = true
			rows = append(rows, probeRow{leftIdx: li, rightIdx: rr})
			if j.visitedLeft != nil {
				j.visitedLeft.Add(uint32(li))
			}
		}
		if !matched {
			switch j.cfg.JoinType {
			case Right, Full:
				rows = append(rows, probeRow{leftIdx: -1, rightIdx: rr})
			}
		}
	}

	return j.buildOutputBatch(rows, r)
}

// buildOutputBatch gathers from the build batch with the left indices
// and from r with the right indices, arranging columns according to
// column_indices, per spec.md §4.5 step 4.
func (j *HashJoiner) buildOutputBatch(rows []probeRow, r *batch.Batch) (*batch.Batch, error) {
	leftIndices := make([]int, len(rows))
	leftNulls := make([]bool, len(rows))
	rightIndices := make([]int, len(rows))
	for i, pr := range rows {
		if pr.leftIdx < 0 {
			leftNulls[i] = true
		} else {
			leftIndices[i] = pr.leftIdx
		}
		rightIndices[i] = pr.rightIdx
	}

	leftSchema := j.cfg.Left.Schema()
	cols := make([]*batch.Column, len(j.columnIdx))
	for ci, idx := range j.columnIdx {
		if idx.IsLeft {
			if j.built.numRows == 0 {
				cols[ci] = allNullColumn(leftSchema.Fields[idx.Index].Type, len(rows))
				continue
			}
			col, err := batch.Take(j.built.batch.Columns[idx.Index], leftIndices)
			if err != nil {
				return nil, colerr.Codecf("join: take on left column: %v", err)
			}
			applyNullMask(col, leftNulls)
			cols[ci] = col
		} else {
			col, err := batch.Take(r.Columns[idx.Index], rightIndices)
			if err != nil {
				return nil, colerr.Codecf("join: take on right column: %v", err)
			}
			cols[ci] = col
		}
	}
	return &batch.Batch{Schema: j.outSchema, Columns: cols, NumRows: len(rows)}, nil
}

func applyNullMask(col *batch.Column, nulls []bool) {
	for i, n := range nulls {
		if n {
			col.SetNull(i)
		}
	}
}

// drainUnmatched implements the post-probe unmatched-left emission for
// Left and Full joins, per spec.md §4.5: {i : !visited_left[i]}
// gathered from the build side with all right-side columns
// materialized as nulls. Per spec.md §9's open question, this repo
// preserves the reference behavior of a single unpaginated trailing
// batch rather than paging it.
func (j *HashJoiner) drainUnmatched() (*batch.Batch, error) {
	var unmatched []int
	for i := 0; i < j.built.numRows; i++ {
		if !j.visitedLeft.Contains(uint32(i)) {
			unmatched = append(unmatched, i)
		}
	}

	rightSchema := j.cfg.Right.Schema()
	cols := make([]*batch.Column, len(j.columnIdx))
	for ci, idx := range j.columnIdx {
		if idx.IsLeft {
			col, err := batch.Take(j.built.batch.Columns[idx.Index], unmatched)
			if err != nil {
				return nil, colerr.Codecf("join: take on left column during unmatched drain: %v", err)
			}
			cols[ci] = col
		} else {
			field := rightSchema.Fields[idx.Index]
			cols[ci] = allNullColumn(field.Type, len(unmatched))
		}
	}
	return &batch.Batch{Schema: j.outSchema, Columns: cols, NumRows: len(unmatched)}, nil
}

func allNullColumn(typ batch.DataType, n int) *batch.Column {
	indices := make([]int, n)
	src := &batch.Column{Type: typ}
	switch typ {
	case batch.Int8:
		src.Int8s = []int8{0}
	case batch.Int16:
		src.Int16s = []int16{0}
	case batch.Int32, batch.Date32:
		src.Int32s = []int32{0}
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		src.Int64s = []int64{0}
	case batch.Uint8:
		src.Uint8s = []uint8{0}
	case batch.Uint16:
		src.Uint16s = []uint16{0}
	case batch.Uint32:
		src.Uint32s = []uint32{0}
	case batch.Uint64:
		src.Uint64s = []uint64{0}
	case batch.Bool:
		src.Bools = []bool{false}
	case batch.Float32:
		src.Float32s = []float32{0}
	case batch.Float64:
		src.Float64s = []float64{0}
	case batch.Utf8, batch.LargeUtf8:
		src.Strings = []string{""}
	}
	col, _ := batch.Take(src, indices)
	for i := 0; i < n; i++ {
		col.SetNull(i)
	}
	return col
}
