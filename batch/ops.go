package batch

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Take gathers rows of col at the given indices into a new Column.
func Take(col *Column, indices []int) (*Column, error) {
	out := &Column{Type: col.Type}
	n := len(indices)
	var nulls *bitset.BitSet
	if col.Nulls != nil {
		nulls = bitset.New(uint(n))
	}
	for outIdx, srcIdx := range indices {
		if col.IsNull(srcIdx) {
			nulls.Set(uint(outIdx))
		}
	}
	switch col.Type {
	case Int8:
		out.Int8s = takeSlice(col.Int8s, indices)
	case Int16:
		out.Int16s = takeSlice(col.Int16s, indices)
	case Int32, Date32:
		out.Int32s = takeSlice(col.Int32s, indices)
	case Int64, Date64, TimestampSeconds:
		out.Int64s = takeSlice(col.Int64s, indices)
	case Uint8:
		out.Uint8s = takeSlice(col.Uint8s, indices)
	case Uint16:
		out.Uint16s = takeSlice(col.Uint16s, indices)
	case Uint32:
		out.Uint32s = takeSlice(col.Uint32s, indices)
	case Uint64:
		out.Uint64s = takeSlice(col.Uint64s, indices)
	case Bool:
		out.Bools = takeSlice(col.Bools, indices)
	case Float32:
		out.Float32s = takeSlice(col.Float32s, indices)
	case Float64:
		out.Float64s = takeSlice(col.Float64s, indices)
	case Utf8, LargeUtf8:
		out.Strings = takeSlice(col.Strings, indices)
	default:
		return nil, fmt.Errorf("batch: take: unsupported type %s", col.Type)
	}
	out.Nulls = nulls
	return out, nil
}

func takeSlice[T any](src []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = src[idx]
	}
	return out
}

// Slice returns a length-len view of col starting at offset, copying
// the backing data so the result is independent of the source.
func Slice(col *Column, offset, length int) (*Column, error) {
	indices := make([]int, length)
	for i := range indices {
		indices[i] = offset + i
	}
	return Take(col, indices)
}

// Concat concatenates batches sharing schema into one batch of totalRows.
func Concat(schema Schema, batches []*Batch, totalRows int) (*Batch, error) {
	out := &Batch{Schema: schema, NumRows: totalRows}
	out.Columns = make([]*Column, len(schema.Fields))
	for ci, field := range schema.Fields {
		merged := &Column{Type: field.Type}
		var anyNulls bool
		for _, b := range batches {
			if ci < len(b.Columns) && b.Columns[ci].Nulls != nil {
				anyNulls = true
			}
		}
		if anyNulls {
			merged.Nulls = bitset.New(uint(totalRows))
		}
		rowOffset := 0
		for _, b := range batches {
			src := b.Columns[ci]
			if err := appendColumn(merged, src, rowOffset); err != nil {
				return nil, err
			}
			rowOffset += src.Len()
		}
		out.Columns[ci] = merged
	}
	return out, nil
}

func appendColumn(dst, src *Column, rowOffset int) error {
	if src.Nulls != nil && dst.Nulls != nil {
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				dst.Nulls.Set(uint(rowOffset + i))
			}
		}
	}
	switch src.Type {
	case Int8:
		dst.Int8s = append(dst.Int8s, src.Int8s...)
	case Int16:
		dst.Int16s = append(dst.Int16s, src.Int16s...)
	case Int32, Date32:
		dst.Int32s = append(dst.Int32s, src.Int32s...)
	case Int64, Date64, TimestampSeconds:
		dst.Int64s = append(dst.Int64s, src.Int64s...)
	case Uint8:
		dst.Uint8s = append(dst.Uint8s, src.Uint8s...)
	case Uint16:
		dst.Uint16s = append(dst.Uint16s, src.Uint16s...)
	case Uint32:
		dst.Uint32s = append(dst.Uint32s, src.Uint32s...)
	case Uint64:
		dst.Uint64s = append(dst.Uint64s, src.Uint64s...)
	case Bool:
		dst.Bools = append(dst.Bools, src.Bools...)
	case Float32:
		dst.Float32s = append(dst.Float32s, src.Float32s...)
	case Float64:
		dst.Float64s = append(dst.Float64s, src.Float64s...)
	case Utf8, LargeUtf8:
		dst.Strings = append(dst.Strings, src.Strings...)
	default:
		return fmt.Errorf("batch: concat: unsupported type %s", src.Type)
	}
	return nil
}

// Cast converts col to the target data type. Only numeric widening/
// narrowing conversions and integer<->date/timestamp reinterpretation
// are supported; casting between incompatible families is an error.
func Cast(col *Column, to DataType) (*Column, error) {
	if col.Type == to {
		return col, nil
	}
	n := col.Len()
	out := &Column{Type: to, Nulls: col.Nulls}
	toFloat := func(i int) float64 {
		switch col.Type {
		case Int8:
			return float64(col.Int8s[i])
		case Int16:
			return float64(col.Int16s[i])
		case Int32, Date32:
			return float64(col.Int32s[i])
		case Int64, Date64, TimestampSeconds:
			return float64(col.Int64s[i])
		case Uint8:
			return float64(col.Uint8s[i])
		case Uint16:
			return float64(col.Uint16s[i])
		case Uint32:
			return float64(col.Uint32s[i])
		case Uint64:
			return float64(col.Uint64s[i])
		case Float32:
			return float64(col.Float32s[i])
		case Float64:
			return col.Float64s[i]
		default:
			return 0
		}
	}
	toInt := func(i int) int64 {
		switch col.Type {
		case Int8:
			return int64(col.Int8s[i])
		case Int16:
			return int64(col.Int16s[i])
		case Int32, Date32:
			return int64(col.Int32s[i])
		case Int64, Date64, TimestampSeconds:
			return col.Int64s[i]
		case Uint8:
			return int64(col.Uint8s[i])
		case Uint16:
			return int64(col.Uint16s[i])
		case Uint32:
			return int64(col.Uint32s[i])
		case Uint64:
			return int64(col.Uint64s[i])
		case Float32:
			return int64(col.Float32s[i])
		case Float64:
			return int64(col.Float64s[i])
		default:
			return 0
		}
	}
	if !col.Type.IsInteger() && col.Type != Float32 && col.Type != Float64 {
		return nil, fmt.Errorf("batch: cast: unsupported source type %s", col.Type)
	}
	switch to {
	case Int8:
		out.Int8s = make([]int8, n)
		for i := range out.Int8s {
			out.Int8s[i] = int8(toInt(i))
		}
	case Int16:
		out.Int16s = make([]int16, n)
		for i := range out.Int16s {
			out.Int16s[i] = int16(toInt(i))
		}
	case Int32, Date32:
		out.Int32s = make([]int32, n)
		for i := range out.Int32s {
			out.Int32s[i] = int32(toInt(i))
		}
	case Int64, Date64, TimestampSeconds:
		out.Int64s = make([]int64, n)
		for i := range out.Int64s {
			out.Int64s[i] = toInt(i)
		}
	case Uint8:
		out.Uint8s = make([]uint8, n)
		for i := range out.Uint8s {
			out.Uint8s[i] = uint8(toInt(i))
		}
	case Uint16:
		out.Uint16s = make([]uint16, n)
		for i := range out.Uint16s {
			out.Uint16s[i] = uint16(toInt(i))
		}
	case Uint32:
		out.Uint32s = make([]uint32, n)
		for i := range out.Uint32s {
			out.Uint32s[i] = uint32(toInt(i))
		}
	case Uint64:
		out.Uint64s = make([]uint64, n)
		for i := range out.Uint64s {
			out.Uint64s[i] = uint64(toInt(i))
		}
	case Float32:
		out.Float32s = make([]float32, n)
		for i := range out.Float32s {
			out.Float32s[i] = float32(toFloat(i))
		}
	case Float64:
		out.Float64s = make([]float64, n)
		for i := range out.Float64s {
			out.Float64s[i] = toFloat(i)
		}
	default:
		return nil, fmt.Errorf("batch: cast: unsupported target type %s", to)
	}
	return out, nil
}
