// Package hash implements the seeded multi-column row hasher shared by
// GroupedAggregator's GroupTable and HashJoiner's JoinIndex.
//
// Per-column hashing is delegated to github.com/cespare/xxhash/v2; the
// reference four-word seed (0,0,0,0) is folded into a single 64-bit
// xxhash seed with github.com/spaolacci/murmur3, so a caller-supplied
// seed of any shape can be reduced to the single uint64 xxhash wants.
package hash

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
)

// Seed is the four-word seed shape from the reference source.
type Seed [4]uint64

// ReferenceSeed is the fixed (0,0,0,0) seed used by the reference source.
var ReferenceSeed = Seed{0, 0, 0, 0}

// reduce folds a four-word seed down to the single uint64 xxhash wants.
func (s Seed) reduce() uint64 {
	buf := make([]byte, 32)
	for i, w := range s {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return murmur3.Sum64(buf)
}

// combine folds a per-column hash h_c into the running row hash r using
// the fixed multi-column combination rule from the reference source.
func combine(hc, r uint64) uint64 {
	return (17*37 + hc) * 37 + r
}

// HashRows fills out[0..n) with the hash of row i across all columns,
// in column order, using seed. Nulls contribute nothing to the hash.
func HashRows(columns []*batch.Column, seed Seed, out []uint64) error {
	if len(columns) == 0 {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	n := len(out)
	for i := range out {
		out[i] = 0
	}
	xseed := seed.reduce()
	single := len(columns) == 1
	scratch := make([]uint64, n)
	for ci, col := range columns {
		if err := hashColumn(col, xseed, scratch); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if col.IsNull(i) {
				continue
			}
			if single && ci == 0 {
				out[i] = scratch[i]
			} else {
				out[i] = combine(scratch[i], out[i])
			}
		}
	}
	return nil
}

func hashColumn(col *batch.Column, xseed uint64, out []uint64) error {
	hashBytes := func(i int, b []byte) {
		out[i] = xxhashSum(b, xseed)
	}
	switch col.Type {
	case batch.Int8:
		for i, v := range col.Int8s {
			hashBytes(i, []byte{byte(v)})
		}
	case batch.Uint8:
		for i, v := range col.Uint8s {
			hashBytes(i, []byte{v})
		}
	case batch.Bool:
		for i, v := range col.Bools {
			b := byte(0)
			if v {
				b = 1
			}
			hashBytes(i, []byte{b})
		}
	case batch.Int16:
		for i, v := range col.Int16s {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(v))
			hashBytes(i, b[:])
		}
	case batch.Uint16:
		for i, v := range col.Uint16s {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], v)
			hashBytes(i, b[:])
		}
	case batch.Int32, batch.Date32:
		for i, v := range col.Int32s {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v))
			hashBytes(i, b[:])
		}
	case batch.Uint32:
		for i, v := range col.Uint32s {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], v)
			hashBytes(i, b[:])
		}
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		for i, v := range col.Int64s {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			hashBytes(i, b[:])
		}
	case batch.Uint64:
		for i, v := range col.Uint64s {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], v)
			hashBytes(i, b[:])
		}
	case batch.Float32:
		for i, v := range col.Float32s {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
			hashBytes(i, b[:])
		}
	case batch.Float64:
		for i, v := range col.Float64s {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			hashBytes(i, b[:])
		}
	case batch.Utf8, batch.LargeUtf8:
		for i, v := range col.Strings {
			hashBytes(i, []byte(v))
		}
	default:
		return colerr.Internalf("hash: unsupported data type %s", col.Type)
	}
	return nil
}

func xxhashSum(b []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	d.Write(b)
	return d.Sum64()
}
