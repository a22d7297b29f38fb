package aggregate

import (
	"github.com/rowbatch/colexec/accum"
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/rowcodec"
)

// emitNext implements the emit algorithm of spec.md §4.4: paged output
// starting at skipPosition, advancing by BatchSize each call.
func (a *GroupedAggregator) emitNext() (*batch.Batch, error) {
	if a.skipPosition > len(a.groupStates) {
		return nil, nil
	}
	if len(a.groupStates) == 0 {
		a.skipPosition = len(a.groupStates) + 1
		return emptyBatch(a.outSchema), nil
	}
	if a.skipPosition == len(a.groupStates) {
		a.skipPosition++
		return nil, nil
	}

	start := a.skipPosition
	end := start + a.cfg.BatchSize
	if end > len(a.groupStates) {
		end = len(a.groupStates)
	}
	block := a.groupStates[start:end]
	a.skipPosition = end

	keyRows := make([][]byte, len(block))
	for i, gs := range block {
		keyRows[i] = gs.keyBytes
	}
	groupingCols, err := rowcodec.DecodeMany(keyRows, a.groupingSchema)
	if err != nil {
		return nil, colerr.Codecf("aggregate: decoding group keys: %v", err)
	}

	outCols := append([]*batch.Column{}, groupingCols...)

	if a.cfg.Mode == Partial {
		stateRows := make([][]byte, len(block))
		for i, gs := range block {
			stateRows[i] = gs.stateBytes
		}
		stateCols, err := rowcodec.DecodeWordAlignedMany(stateRows, a.stateLayout)
		if err != nil {
			return nil, colerr.Codecf("aggregate: decoding partial state: %v", err)
		}
		outCols = append(outCols, stateCols...)
	} else {
		for ai, acc := range a.accumulators {
			col := &batch.Column{Type: acc.OutputType()}
			for _, gs := range block {
				r := &rowcodec.RowReader{}
				r.PointTo(a.stateLayout.Sub(a.accOffsets[ai], a.accFieldCounts[ai]), gs.stateBytes)
				scalar, err := acc.Evaluate(r)
				if err != nil {
					return nil, colerr.WrapAccumulator(err)
				}
				if err := appendScalar(col, scalar); err != nil {
					return nil, err
				}
			}
			outCols = append(outCols, col)
		}
	}

	for i, field := range a.outSchema.Fields {
		if outCols[i].Type != field.Type {
			cast, err := batch.Cast(outCols[i], field.Type)
			if err != nil {
				return nil, colerr.Codecf("aggregate: casting output column %q: %v", field.Name, err)
			}
			outCols[i] = cast
		}
	}

	return &batch.Batch{Schema: a.outSchema, Columns: outCols, NumRows: len(block)}, nil
}

func emptyBatch(schema batch.Schema) *batch.Batch {
	cols := make([]*batch.Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = &batch.Column{Type: f.Type}
	}
	return &batch.Batch{Schema: schema, Columns: cols, NumRows: 0}
}

func appendScalar(col *batch.Column, s accum.Scalar) error {
	if s.Null {
		col.SetNull(col.Len())
	}
	switch col.Type {
	case batch.Int8:
		col.Int8s = append(col.Int8s, int8(s.Int64))
	case batch.Int16:
		col.Int16s = append(col.Int16s, int16(s.Int64))
	case batch.Int32, batch.Date32:
		col.Int32s = append(col.Int32s, int32(s.Int64))
	case batch.Int64, batch.Date64, batch.TimestampSeconds:
		col.Int64s = append(col.Int64s, s.Int64)
	case batch.Uint8:
		col.Uint8s = append(col.Uint8s, uint8(s.Uint64))
	case batch.Uint16:
		col.Uint16s = append(col.Uint16s, uint16(s.Uint64))
	case batch.Uint32:
		col.Uint32s = append(col.Uint32s, uint32(s.Uint64))
	case batch.Uint64:
		col.Uint64s = append(col.Uint64s, s.Uint64)
	case batch.Bool:
		col.Bools = append(col.Bools, s.Bool)
	case batch.Float32:
		col.Float32s = append(col.Float32s, float32(s.Float64))
	case batch.Float64:
		col.Float64s = append(col.Float64s, s.Float64)
	case batch.Utf8, batch.LargeUtf8:
		col.Strings = append(col.Strings, s.String)
	default:
		return colerr.Internalf("aggregate: unsupported accumulator output type %s", col.Type)
	}
	return nil
}
