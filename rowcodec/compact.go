// Package rowcodec implements the two opaque row serialization schemes
// used by the core: Compact (variable-width, byte-equality group
// identity) and WordAligned (fixed-width, in-place accumulator state).
//
// No example repo in the retrieval pack ships a row-codec library with
// this exact shape (datafusion_row's layout is the closest analogue,
// referenced only for the split between the two formats); this package
// is therefore original, stdlib-based code. See DESIGN.md.
package rowcodec

import (
	"encoding/binary"
	"math"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
)

// nullByte/validByte precede every Compact field, so a null never
// collides with a valid zero-valued field of the same type.
const (
	nullByte  = 0x00
	validByte = 0x01
)

// EncodeCompact encodes row rowIdx of columns (following schema's field
// order) into a variable-width byte string. Two rows produce identical
// byte strings iff they compare equal under the Compact encoding.
func EncodeCompact(columns []*batch.Column, rowIdx int, schema batch.Schema) ([]byte, error) {
	// Upper-bound capacity guess: 1 tag byte + up to 8 data bytes per
	// fixed column, plus actual length for variable columns.
	buf := make([]byte, 0, len(columns)*9)
	for ci, col := range columns {
		if col.IsNull(rowIdx) {
			buf = append(buf, nullByte)
			continue
		}
		buf = append(buf, validByte)
		var err error
		buf, err = appendCompactValue(buf, col, rowIdx, schema.Fields[ci].Type)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendCompactValue(buf []byte, col *batch.Column, i int, typ batch.DataType) ([]byte, error) {
	switch typ {
	case batch.Int8:
		return append(buf, byte(col.Int8s[i])), nil
	case batch.Uint8:
		return append(buf, col.Uint8s[i]), nil
	case batch.Bool:
		if col.Bools[i] {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case batch.Int16:
		return appendUint16(buf, uint16(col.Int16s[i])), nil
	case batch.Uint16:
		return appendUint16(buf, col.Uint16s[i]), nil
	case batch.Int32, batch.Date32:
		return appendUint32(buf, uint32(col.Int32s[i])), nil
	case batch.Uint32:
		return appendUint32(buf, col.Uint32s[i]), nil
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		return appendUint64(buf, uint64(col.Int64s[i])), nil
	case batch.Uint64:
		return appendUint64(buf, col.Uint64s[i]), nil
	case batch.Float32:
		return appendUint32(buf, math.Float32bits(col.Float32s[i])), nil
	case batch.Float64:
		return appendUint64(buf, math.Float64bits(col.Float64s[i])), nil
	case batch.Utf8, batch.LargeUtf8:
		s := col.Strings[i]
		buf = appendUint64(buf, uint64(len(s)))
		return append(buf, s...), nil
	default:
		return nil, colerr.Internalf("rowcodec: unsupported data type %s", typ)
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// DecodeMany inflates columns following schema from a sequence of
// Compact-encoded row byte strings.
func DecodeMany(rows [][]byte, schema batch.Schema) ([]*batch.Column, error) {
	cols := make([]*batch.Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = &batch.Column{Type: f.Type}
	}
	for _, row := range rows {
		off := 0
		for ci, f := range schema.Fields {
			if off >= len(row) {
				return nil, colerr.Codecf("rowcodec: compact row truncated at field %d", ci)
			}
			tag := row[off]
			off++
			if tag == nullByte {
				appendZero(cols[ci], f.Type)
				cols[ci].SetNull(cols[ci].Len() - 1)
				continue
			}
			n, err := decodeCompactValue(cols[ci], row[off:], f.Type)
			if err != nil {
				return nil, err
			}
			off += n
		}
	}
	return cols, nil
}

func appendZero(col *batch.Column, typ batch.DataType) {
	switch typ {
	case batch.Int8:
		col.Int8s = append(col.Int8s, 0)
	case batch.Uint8:
		col.Uint8s = append(col.Uint8s, 0)
	case batch.Bool:
		col.Bools = append(col.Bools, false)
	case batch.Int16:
		col.Int16s = append(col.Int16s, 0)
	case batch.Uint16:
		col.Uint16s = append(col.Uint16s, 0)
	case batch.Int32, batch.Date32:
		col.Int32s = append(col.Int32s, 0)
	case batch.Uint32:
		col.Uint32s = append(col.Uint32s, 0)
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		col.Int64s = append(col.Int64s, 0)
	case batch.Uint64:
		col.Uint64s = append(col.Uint64s, 0)
	case batch.Float32:
		col.Float32s = append(col.Float32s, 0)
	case batch.Float64:
		col.Float64s = append(col.Float64s, 0)
	case batch.Utf8, batch.LargeUtf8:
		col.Strings = append(col.Strings, "")
	}
}

func decodeCompactValue(col *batch.Column, rest []byte, typ batch.DataType) (int, error) {
	switch typ {
	case batch.Int8:
		col.Int8s = append(col.Int8s, int8(rest[0]))
		return 1, nil
	case batch.Uint8:
		col.Uint8s = append(col.Uint8s, rest[0])
		return 1, nil
	case batch.Bool:
		col.Bools = append(col.Bools, rest[0] != 0)
		return 1, nil
	case batch.Int16:
		col.Int16s = append(col.Int16s, int16(binary.LittleEndian.Uint16(rest)))
		return 2, nil
	case batch.Uint16:
		col.Uint16s = append(col.Uint16s, binary.LittleEndian.Uint16(rest))
		return 2, nil
	case batch.Int32, batch.Date32:
		col.Int32s = append(col.Int32s, int32(binary.LittleEndian.Uint32(rest)))
		return 4, nil
	case batch.Uint32:
		col.Uint32s = append(col.Uint32s, binary.LittleEndian.Uint32(rest))
		return 4, nil
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		col.Int64s = append(col.Int64s, int64(binary.LittleEndian.Uint64(rest)))
		return 8, nil
	case batch.Uint64:
		col.Uint64s = append(col.Uint64s, binary.LittleEndian.Uint64(rest))
		return 8, nil
	case batch.Float32:
		col.Float32s = append(col.Float32s, math.Float32frombits(binary.LittleEndian.Uint32(rest)))
		return 4, nil
	case batch.Float64:
		col.Float64s = append(col.Float64s, math.Float64frombits(binary.LittleEndian.Uint64(rest)))
		return 8, nil
	case batch.Utf8, batch.LargeUtf8:
		l := int(binary.LittleEndian.Uint64(rest))
		s := string(rest[8 : 8+l])
		col.Strings = append(col.Strings, s)
		return 8 + l, nil
	default:
		return 0, colerr.Internalf("rowcodec: unsupported data type %s", typ)
	}
}
