package rowcodec

import (
	"encoding/binary"
	"math"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
)

// wordWidth is the fixed per-field slot width: 1 validity byte followed
// by up to 8 data bytes (variable-width fields store a length-prefixed
// inline payload capped to the same 8-byte slot, which is sufficient
// for the fixed-width accumulator state this layout exists to serve).
const wordWidth = 9

// Layout describes the fixed byte layout of a WordAligned row for a
// given schema: one slot per field, offsets computed once.
type Layout struct {
	Schema      batch.Schema
	FixedWidth  int
	offsets     []int
}

// NewLayout computes the WordAligned layout for schema.
func NewLayout(schema batch.Schema) *Layout {
	l := &Layout{Schema: schema}
	l.offsets = make([]int, len(schema.Fields))
	w := 0
	for i := range schema.Fields {
		l.offsets[i] = w
		w += wordWidth
	}
	l.FixedWidth = w
	return l
}

// FixedWidthOf is the pure function fixed_width(schema) from the spec.
func FixedWidthOf(schema batch.Schema) int {
	return len(schema.Fields) * wordWidth
}

// Offset returns the byte offset of field i within a state buffer.
func (l *Layout) Offset(i int) int { return l.offsets[i] }

// Sub returns a view over count consecutive fields of l starting at
// startField, sharing l's absolute byte offsets. Used to address one
// accumulator's slice of a GroupedAggregator's combined state buffer.
func (l *Layout) Sub(startField, count int) *Layout {
	return &Layout{
		Schema:     batch.Schema{Fields: l.Schema.Fields[startField : startField+count]},
		FixedWidth: l.FixedWidth,
		offsets:    l.offsets[startField : startField+count],
	}
}

// EncodeWordAligned writes row rowIdx of columns into a freshly
// allocated fixed-width buffer sized by layout.
func EncodeWordAligned(columns []*batch.Column, rowIdx int, layout *Layout) ([]byte, error) {
	buf := make([]byte, layout.FixedWidth)
	for i, col := range columns {
		off := layout.Offset(i)
		if col.IsNull(rowIdx) {
			buf[off] = nullByte
			continue
		}
		buf[off] = validByte
		if err := writeWordValue(buf[off+1:off+wordWidth], col, rowIdx, layout.Schema.Fields[i].Type); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func writeWordValue(slot []byte, col *batch.Column, i int, typ batch.DataType) error {
	switch typ {
	case batch.Int8:
		slot[0] = byte(col.Int8s[i])
	case batch.Uint8:
		slot[0] = col.Uint8s[i]
	case batch.Bool:
		if col.Bools[i] {
			slot[0] = 1
		}
	case batch.Int16:
		binary.LittleEndian.PutUint16(slot, uint16(col.Int16s[i]))
	case batch.Uint16:
		binary.LittleEndian.PutUint16(slot, col.Uint16s[i])
	case batch.Int32, batch.Date32:
		binary.LittleEndian.PutUint32(slot, uint32(col.Int32s[i]))
	case batch.Uint32:
		binary.LittleEndian.PutUint32(slot, col.Uint32s[i])
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		binary.LittleEndian.PutUint64(slot, uint64(col.Int64s[i]))
	case batch.Uint64:
		binary.LittleEndian.PutUint64(slot, col.Uint64s[i])
	case batch.Float32:
		binary.LittleEndian.PutUint32(slot, math.Float32bits(col.Float32s[i]))
	case batch.Float64:
		binary.LittleEndian.PutUint64(slot, math.Float64bits(col.Float64s[i]))
	case batch.Utf8, batch.LargeUtf8:
		s := col.Strings[i]
		if len(s) > 7 {
			s = s[:7]
		}
		slot[0] = byte(len(s))
		copy(slot[1:], s)
	default:
		return colerr.Internalf("rowcodec: unsupported data type %s", typ)
	}
	return nil
}

// DecodeWordAlignedMany inflates columns from a sequence of
// WordAligned-encoded state buffers.
func DecodeWordAlignedMany(rows [][]byte, layout *Layout) ([]*batch.Column, error) {
	cols := make([]*batch.Column, len(layout.Schema.Fields))
	for i, f := range layout.Schema.Fields {
		cols[i] = &batch.Column{Type: f.Type}
	}
	for _, row := range rows {
		for i, f := range layout.Schema.Fields {
			off := layout.Offset(i)
			if row[off] == nullByte {
				appendZero(cols[i], f.Type)
				cols[i].SetNull(cols[i].Len() - 1)
				continue
			}
			if err := readWordValue(cols[i], row[off+1:off+wordWidth], f.Type); err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}

func readWordValue(col *batch.Column, slot []byte, typ batch.DataType) error {
	switch typ {
	case batch.Int8:
		col.Int8s = append(col.Int8s, int8(slot[0]))
	case batch.Uint8:
		col.Uint8s = append(col.Uint8s, slot[0])
	case batch.Bool:
		col.Bools = append(col.Bools, slot[0] != 0)
	case batch.Int16:
		col.Int16s = append(col.Int16s, int16(binary.LittleEndian.Uint16(slot)))
	case batch.Uint16:
		col.Uint16s = append(col.Uint16s, binary.LittleEndian.Uint16(slot))
	case batch.Int32, batch.Date32:
		col.Int32s = append(col.Int32s, int32(binary.LittleEndian.Uint32(slot)))
	case batch.Uint32:
		col.Uint32s = append(col.Uint32s, binary.LittleEndian.Uint32(slot))
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		col.Int64s = append(col.Int64s, int64(binary.LittleEndian.Uint64(slot)))
	case batch.Uint64:
		col.Uint64s = append(col.Uint64s, binary.LittleEndian.Uint64(slot))
	case batch.Float32:
		col.Float32s = append(col.Float32s, math.Float32frombits(binary.LittleEndian.Uint32(slot)))
	case batch.Float64:
		col.Float64s = append(col.Float64s, math.Float64frombits(binary.LittleEndian.Uint64(slot)))
	case batch.Utf8, batch.LargeUtf8:
		l := int(slot[0])
		col.Strings = append(col.Strings, string(slot[1:1+l]))
	default:
		return colerr.Internalf("rowcodec: unsupported data type %s", typ)
	}
	return nil
}

// RowWriter points at a mutable WordAligned buffer, mirroring the
// external RowWriter interface spec.md §6 treats as a collaborator
// contract that the core's Accumulators use via the state accessor
// passed to update_batch/merge_batch. It also supports reading back
// the field it is about to overwrite, since accumulator state update
// is read-modify-write against the same buffer.
type RowWriter struct {
	layout *Layout
	buf    []byte
}

// PointTo rebinds the writer to buf, which must be FixedWidth bytes.
func (w *RowWriter) PointTo(layout *Layout, buf []byte) {
	w.layout = layout
	w.buf = buf
}

// WriteRow writes columns' row rowIdx into the bound buffer.
func (w *RowWriter) WriteRow(columns []*batch.Column, rowIdx int) error {
	for i, col := range columns {
		off := w.layout.Offset(i)
		if col.IsNull(rowIdx) {
			w.buf[off] = nullByte
			continue
		}
		w.buf[off] = validByte
		if err := writeWordValue(w.buf[off+1:off+wordWidth], col, rowIdx, w.layout.Schema.Fields[i].Type); err != nil {
			return err
		}
	}
	return nil
}

// IsNull reports whether field i is currently null.
func (w *RowWriter) IsNull(i int) bool { return w.buf[w.layout.Offset(i)] == nullByte }

// SetNull marks field i null.
func (w *RowWriter) SetNull(i int) { w.buf[w.layout.Offset(i)] = nullByte }

func (w *RowWriter) slot(i int) []byte {
	off := w.layout.Offset(i)
	w.buf[off] = validByte
	return w.buf[off+1 : off+wordWidth]
}

// Uint64 reads field i as a little-endian uint64, or 0 if null.
func (w *RowWriter) Uint64(i int) uint64 {
	if w.IsNull(i) {
		return 0
	}
	off := w.layout.Offset(i)
	return binary.LittleEndian.Uint64(w.buf[off+1 : off+wordWidth])
}

// SetUint64 writes v into field i and marks it valid.
func (w *RowWriter) SetUint64(i int, v uint64) { binary.LittleEndian.PutUint64(w.slot(i), v) }

// Int64 reads field i as a little-endian int64, or 0 if null.
func (w *RowWriter) Int64(i int) int64 { return int64(w.Uint64(i)) }

// SetInt64 writes v into field i and marks it valid.
func (w *RowWriter) SetInt64(i int, v int64) { w.SetUint64(i, uint64(v)) }

// Float64 reads field i as a float64, or 0 if null.
func (w *RowWriter) Float64(i int) float64 {
	if w.IsNull(i) {
		return 0
	}
	off := w.layout.Offset(i)
	return math.Float64frombits(binary.LittleEndian.Uint64(w.buf[off+1 : off+wordWidth]))
}

// SetFloat64 writes v into field i and marks it valid.
func (w *RowWriter) SetFloat64(i int, v float64) {
	binary.LittleEndian.PutUint64(w.slot(i), math.Float64bits(v))
}

// RowReader points at an immutable WordAligned buffer for field reads,
// used by Accumulator.Evaluate.
type RowReader struct {
	layout *Layout
	buf    []byte
}

// PointTo rebinds the reader to buf.
func (r *RowReader) PointTo(layout *Layout, buf []byte) {
	r.layout = layout
	r.buf = buf
}

// FixedPartWidth returns the bound layout's fixed width.
func (r *RowReader) FixedPartWidth() int { return r.layout.FixedWidth }

// IsNull reports whether field i is null in the bound buffer.
func (r *RowReader) IsNull(i int) bool {
	return r.buf[r.layout.Offset(i)] == nullByte
}

// Slot returns the raw data bytes for field i (excluding the validity
// byte), for accumulators that mutate state in place.
func (r *RowReader) Slot(i int) []byte {
	off := r.layout.Offset(i)
	return r.buf[off+1 : off+wordWidth]
}

// Uint64 reads field i as a little-endian uint64, or 0 if null.
func (r *RowReader) Uint64(i int) uint64 {
	if r.IsNull(i) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.Slot(i))
}

// Int64 reads field i as a little-endian int64, or 0 if null.
func (r *RowReader) Int64(i int) int64 { return int64(r.Uint64(i)) }

// Float64 reads field i as a float64, or 0 if null.
func (r *RowReader) Float64(i int) float64 {
	if r.IsNull(i) {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.Slot(i)))
}
