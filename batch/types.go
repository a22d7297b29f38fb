// Package batch provides the minimal columnar batch, schema and typed
// column primitives that the aggregation and join operators treat as an
// external collaborator. It is not part of the operators' core logic;
// it exists so this module compiles and runs standalone.
package batch

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// DataType enumerates the scalar types a Column may hold.
type DataType int

const (
	Int8 DataType = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
	Float32
	Float64
	Date32
	Date64
	TimestampSeconds
	Utf8
	LargeUtf8
)

func (t DataType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bool:
		return "bool"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Date32:
		return "date32"
	case Date64:
		return "date64"
	case TimestampSeconds:
		return "timestamp_seconds"
	case Utf8:
		return "utf8"
	case LargeUtf8:
		return "large_utf8"
	default:
		return fmt.Sprintf("datatype(%d)", int(t))
	}
}

// IsInteger reports whether t is hashed/equated as a fixed-width integer.
func (t DataType) IsInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Date32, Date64, TimestampSeconds:
		return true
	}
	return false
}

// Width returns the fixed byte width of t, or 0 for variable-width types.
func (t DataType) Width() int {
	switch t {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32, Date32:
		return 4
	case Int64, Uint64, Float64, Date64, TimestampSeconds:
		return 8
	default:
		return 0
	}
}

// Field describes one column of a Schema.
type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Schema is an ordered list of Fields.
type Schema struct {
	Fields []Field
}

// IndexOf returns the position of the field named name, or -1.
func (s Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Column is a typed, possibly-nullable array of NumRows values.
//
// Exactly one of the typed slices below is populated, selected by Type.
// Nulls are tracked out-of-band via Nulls (nil means no column-wide null
// support was requested and every row is valid).
type Column struct {
	Type DataType

	Int8s    []int8
	Int16s   []int16
	Int32s   []int32
	Int64s   []int64
	Uint8s   []uint8
	Uint16s  []uint16
	Uint32s  []uint32
	Uint64s  []uint64
	Bools    []bool
	Float32s []float32
	Float64s []float64
	Strings  []string

	Nulls *bitset.BitSet
}

// Len returns the column's row count, derived from its populated slice.
func (c *Column) Len() int {
	switch c.Type {
	case Int8:
		return len(c.Int8s)
	case Int16:
		return len(c.Int16s)
	case Int32, Date32:
		return len(c.Int32s)
	case Int64, Date64, TimestampSeconds:
		return len(c.Int64s)
	case Uint8:
		return len(c.Uint8s)
	case Uint16:
		return len(c.Uint16s)
	case Uint32:
		return len(c.Uint32s)
	case Uint64:
		return len(c.Uint64s)
	case Bool:
		return len(c.Bools)
	case Float32:
		return len(c.Float32s)
	case Float64:
		return len(c.Float64s)
	case Utf8, LargeUtf8:
		return len(c.Strings)
	default:
		return 0
	}
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Nulls != nil && c.Nulls.Test(uint(i))
}

// SetNull marks row i as null.
func (c *Column) SetNull(i int) {
	if c.Nulls == nil {
		c.Nulls = bitset.New(uint(c.Len()))
	}
	c.Nulls.Set(uint(i))
}

// Batch is an ordered list of columns sharing a row count and a schema.
type Batch struct {
	Schema  Schema
	Columns []*Column
	NumRows int
}

// Column returns the column named name, or nil if absent.
func (b *Batch) Column(name string) *Column {
	i := b.Schema.IndexOf(name)
	if i < 0 {
		return nil
	}
	return b.Columns[i]
}
