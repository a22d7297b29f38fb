// Package accum implements the Accumulator contract from spec.md §4.4/
// §6 and a handful of concrete aggregate functions: Count, Sum, Min,
// Max, Avg. Each operates against a WordAligned state slot addressed
// through rowcodec.RowReader/RowWriter.
//
// Sum folds its running total through github.com/holiman/uint256.Int
// before persisting it back as a checked uint64, the way a production
// engine keeps aggregate arithmetic overflow-safe; the teacher's own
// erigon-lib/common/math helpers informed the general SafeAdd
// discipline (see internal/mathutil), and uint256 is already part of
// the teacher's dependency closure for balance arithmetic.
package accum

import (
	"github.com/holiman/uint256"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/rowcodec"
)

// Scalar is a boxed output value produced by Accumulator.Evaluate.
type Scalar struct {
	Type    batch.DataType
	Null    bool
	Int64   int64
	Uint64  uint64
	Float64 float64
	Bool    bool
	String  string
}

// Accumulator is per-aggregate-function state update/merge/evaluate
// against a WordAligned row, per spec.md §6.
type Accumulator interface {
	// StateSchema describes the WordAligned slots this accumulator
	// owns (one or more, concatenated with other accumulators' slots
	// into the group's full state_bytes buffer).
	StateSchema() batch.Schema
	// UpdateBatch folds values at rows (Partial mode) into the state
	// addressed by w.
	UpdateBatch(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error
	// MergeBatch merges already-partial states, at rows, into the
	// state addressed by w (Final/FinalPartitioned mode).
	MergeBatch(states []*batch.Column, rows []int, w *rowcodec.RowWriter) error
	// Evaluate produces the final scalar from the state addressed by r.
	Evaluate(r *rowcodec.RowReader) (Scalar, error)
	// OutputType is the data type Evaluate's Scalar carries.
	OutputType() batch.DataType
}

// Factory builds a fresh Accumulator instance for one aggregate
// expression position, per spec.md §4.4 "aggregates: list of
// Accumulator factories".
type Factory func() Accumulator

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return colerr.WrapAccumulator(err)
}

// Field1 is a convenience for a single-field state schema.
func Field1(name string, typ batch.DataType) []batch.Field {
	return []batch.Field{{Name: name, Type: typ}}
}

// --- Count ---------------------------------------------------------

type countAccumulator struct{}

// NewCount returns a Factory for COUNT(col), counting non-null input
// rows.
func NewCount() Factory { return func() Accumulator { return &countAccumulator{} } }

func (c *countAccumulator) StateSchema() batch.Schema {
	return batch.Schema{Fields: Field1("count", batch.Int64)}
}

func (c *countAccumulator) UpdateBatch(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	col := values[0]
	n := w.Int64(0)
	for _, r := range rows {
		if !col.IsNull(r) {
			n++
		}
	}
	w.SetInt64(0, n)
	return nil
}

func (c *countAccumulator) MergeBatch(states []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	col := states[0]
	n := w.Int64(0)
	for _, r := range rows {
		if !col.IsNull(r) {
			n += col.Int64s[r]
		}
	}
	w.SetInt64(0, n)
	return nil
}

func (c *countAccumulator) Evaluate(r *rowcodec.RowReader) (Scalar, error) {
	return Scalar{Type: batch.Int64, Int64: r.Int64(0)}, nil
}

func (c *countAccumulator) OutputType() batch.DataType { return batch.Int64 }

// --- Sum -------------------------------------------------------------

type sumAccumulator struct {
	outType batch.DataType
}

// NewSum returns a Factory for SUM(col) over a numeric column.
func NewSum(outType batch.DataType) Factory {
	return func() Accumulator { return &sumAccumulator{outType: outType} }
}

func (s *sumAccumulator) StateSchema() batch.Schema {
	return batch.Schema{Fields: []batch.Field{{Name: "sum", Type: batch.Uint64, Nullable: true}}}
}

func (s *sumAccumulator) fold(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	total := uint256.NewInt(w.Uint64(0))
	for _, row := range rows {
		v, ok := columnAsUint64(values[0], row)
		if !ok {
			continue
		}
		total = new(uint256.Int).Add(total, uint256.NewInt(v))
	}
	if !total.IsUint64() {
		return colerr.Internalf("accum: sum overflowed uint64 range")
	}
	w.SetUint64(0, total.Uint64())
	return nil
}

func (s *sumAccumulator) UpdateBatch(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	return wrapErr(s.fold(values, rows, w))
}

func (s *sumAccumulator) MergeBatch(states []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	return wrapErr(s.fold(states, rows, w))
}

func (s *sumAccumulator) Evaluate(r *rowcodec.RowReader) (Scalar, error) {
	if r.IsNull(0) {
		return Scalar{Type: s.outType, Null: true}, nil
	}
	return Scalar{Type: s.outType, Uint64: r.Uint64(0)}, nil
}

func (s *sumAccumulator) OutputType() batch.DataType { return s.outType }

// --- Min/Max ---------------------------------------------------------

type extremeAccumulator struct {
	outType batch.DataType
	max     bool
}

// NewMin returns a Factory for MIN(col) over a float64-comparable
// numeric column.
func NewMin(outType batch.DataType) Factory {
	return func() Accumulator { return &extremeAccumulator{outType: outType} }
}

// NewMax returns a Factory for MAX(col).
func NewMax(outType batch.DataType) Factory {
	return func() Accumulator { return &extremeAccumulator{outType: outType, max: true} }
}

func (e *extremeAccumulator) StateSchema() batch.Schema {
	return batch.Schema{Fields: []batch.Field{{Name: "extreme", Type: batch.Float64, Nullable: true}}}
}

func (e *extremeAccumulator) fold(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	hasCur := !w.IsNull(0)
	cur := w.Float64(0)
	for _, row := range rows {
		v, ok := columnAsFloat64(values[0], row)
		if !ok {
			continue
		}
		if !hasCur || (e.max && v > cur) || (!e.max && v < cur) {
			cur = v
			hasCur = true
		}
	}
	if !hasCur {
		return nil
	}
	w.SetFloat64(0, cur)
	return nil
}

func (e *extremeAccumulator) UpdateBatch(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	return wrapErr(e.fold(values, rows, w))
}

func (e *extremeAccumulator) MergeBatch(states []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	return wrapErr(e.fold(states, rows, w))
}

func (e *extremeAccumulator) Evaluate(r *rowcodec.RowReader) (Scalar, error) {
	if r.IsNull(0) {
		return Scalar{Type: e.outType, Null: true}, nil
	}
	return Scalar{Type: e.outType, Float64: r.Float64(0)}, nil
}

func (e *extremeAccumulator) OutputType() batch.DataType { return e.outType }

// --- Avg ---------------------------------------------------------------

type avgAccumulator struct{}

// NewAvg returns a Factory for AVG(col), keeping a running (sum,
// count) pair as its partial state.
func NewAvg() Factory { return func() Accumulator { return &avgAccumulator{} } }

func (a *avgAccumulator) StateSchema() batch.Schema {
	return batch.Schema{Fields: []batch.Field{
		{Name: "avg_sum", Type: batch.Float64},
		{Name: "avg_count", Type: batch.Int64},
	}}
}

func (a *avgAccumulator) UpdateBatch(values []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	sum := w.Float64(0)
	count := w.Int64(1)
	for _, row := range rows {
		v, ok := columnAsFloat64(values[0], row)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	w.SetFloat64(0, sum)
	w.SetInt64(1, count)
	return nil
}

func (a *avgAccumulator) MergeBatch(states []*batch.Column, rows []int, w *rowcodec.RowWriter) error {
	sum := w.Float64(0)
	count := w.Int64(1)
	sums, counts := states[0], states[1]
	for _, row := range rows {
		if sums.IsNull(row) {
			continue
		}
		sum += sums.Float64s[row]
		count += counts.Int64s[row]
	}
	w.SetFloat64(0, sum)
	w.SetInt64(1, count)
	return nil
}

func (a *avgAccumulator) Evaluate(r *rowcodec.RowReader) (Scalar, error) {
	count := r.Int64(1)
	if count == 0 {
		return Scalar{Type: batch.Float64, Null: true}, nil
	}
	return Scalar{Type: batch.Float64, Float64: r.Float64(0) / float64(count)}, nil
}

func (a *avgAccumulator) OutputType() batch.DataType { return batch.Float64 }

// --- shared helpers ----------------------------------------------------

func columnAsFloat64(col *batch.Column, i int) (float64, bool) {
	if col.IsNull(i) {
		return 0, false
	}
	switch col.Type {
	case batch.Int8:
		return float64(col.Int8s[i]), true
	case batch.Int16:
		return float64(col.Int16s[i]), true
	case batch.Int32, batch.Date32:
		return float64(col.Int32s[i]), true
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		return float64(col.Int64s[i]), true
	case batch.Uint8:
		return float64(col.Uint8s[i]), true
	case batch.Uint16:
		return float64(col.Uint16s[i]), true
	case batch.Uint32:
		return float64(col.Uint32s[i]), true
	case batch.Uint64:
		return float64(col.Uint64s[i]), true
	case batch.Float32:
		return float64(col.Float32s[i]), true
	case batch.Float64:
		return col.Float64s[i], true
	default:
		return 0, false
	}
}

func columnAsUint64(col *batch.Column, i int) (uint64, bool) {
	if col.IsNull(i) {
		return 0, false
	}
	switch col.Type {
	case batch.Int8:
		return uint64(col.Int8s[i]), true
	case batch.Int16:
		return uint64(col.Int16s[i]), true
	case batch.Int32, batch.Date32:
		return uint64(col.Int32s[i]), true
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		return uint64(col.Int64s[i]), true
	case batch.Uint8:
		return uint64(col.Uint8s[i]), true
	case batch.Uint16:
		return uint64(col.Uint16s[i]), true
	case batch.Uint32:
		return uint64(col.Uint32s[i]), true
	case batch.Uint64:
		return col.Uint64s[i], true
	default:
		return 0, false
	}
}
