// Package aggregate implements GroupedAggregator, the single-input
// grouped hash aggregation operator of spec.md §2/§4.4.
//
// Grounded on izhukov1992-super's runtime/sam/op/aggregate/aggregate.go
// (table map[string]*Row keyed by encoded row bytes, built up batch by
// batch) and on original_source/datafusion's row_hash.rs
// (GroupedHashAggregateStreamV2, Compact/WordAligned row split,
// RandomState-seeded hashing). Spill is deliberately unsupported
// (spec.md §4.3/§9); grouping-set name collisions are detected with
// github.com/deckarep/golang-set/v2.
package aggregate

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/rowbatch/colexec/accum"
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/expr"
	"github.com/rowbatch/colexec/hash"
	"github.com/rowbatch/colexec/internal/mathutil"
	"github.com/rowbatch/colexec/memconsumer"
	"github.com/rowbatch/colexec/rowcodec"
	"github.com/rowbatch/colexec/stream"
)

// Mode selects whether Accumulator.UpdateBatch or Accumulator.MergeBatch
// is invoked on input rows, per spec.md §4.4.
type Mode int

const (
	// Partial aggregation: input rows are raw values.
	Partial Mode = iota
	// Final aggregation: input rows are already-encoded partial states.
	Final
	// FinalPartitioned aggregation: like Final, merged per-partition.
	FinalPartitioned
)

// GroupingSet is one ordered list of expressions partitioning rows
// into groups for one logical GROUP BY, per the GLOSSARY. Every
// grouping set configured on one GroupedAggregator must agree in
// arity and declared types, since they share one GroupTable and
// output schema.
type GroupingSet []expr.PhysicalExpr

// AggregateSpec pairs the aggregate-input expression(s) with the
// Accumulator factory that consumes them. Partial mode expects exactly
// one raw-value input; Final/FinalPartitioned modes expect one input
// per field of the accumulator's StateSchema, in order, since a
// multi-field accumulator (e.g. Avg's sum+count pair) receives its
// already-partial state as that many aligned columns.
type AggregateSpec struct {
	Name   string
	Inputs []expr.PhysicalExpr
	New    accum.Factory
}

// Config configures a GroupedAggregator.
type Config struct {
	Mode       Mode
	Grouping   []GroupingSet
	Aggregates []AggregateSpec
	BatchSize  int
	Input      stream.BatchStream
	Manager    memconsumer.MemoryManager
	BlockSize  uint64
	Logger     *zap.Logger
}

// GroupedAggregator is the operator from spec.md §4.4.
type GroupedAggregator struct {
	cfg    Config
	logger *zap.Logger

	consumer *memconsumer.MemoryConsumer
	pool     *memconsumer.Pool

	groupingSchema batch.Schema
	outSchema      batch.Schema
	stateLayout    *rowcodec.Layout
	accOffsets     []int // index of each accumulator's first field in stateLayout
	accFieldCounts []int // number of state fields owned by each accumulator
	accumulators   []accum.Accumulator

	table       *groupTable
	groupStates []*groupState

	ingested     bool
	skipPosition int
}

// New validates cfg and constructs a GroupedAggregator.
func New(cfg Config) (*GroupedAggregator, error) {
	if len(cfg.Grouping) == 0 {
		return nil, colerr.Internalf("aggregate: at least one grouping set is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	first := cfg.Grouping[0]
	for _, gs := range cfg.Grouping[1:] {
		if len(gs) != len(first) {
			return nil, colerr.Internalf("aggregate: grouping sets must share arity (%d != %d)", len(gs), len(first))
		}
	}

	names := mapset.NewSet[string]()
	groupingFields := make([]batch.Field, len(first))
	for i, e := range first {
		if names.Contains(e.Name()) {
			return nil, colerr.Internalf("aggregate: duplicate grouping column name %q", e.Name())
		}
		names.Add(e.Name())
		groupingFields[i] = batch.Field{Name: e.Name(), Type: e.DataType(), Nullable: true}
	}
	groupingSchema := batch.Schema{Fields: groupingFields}

	accumulators := make([]accum.Accumulator, len(cfg.Aggregates))
	var stateFields []batch.Field
	accOffsets := make([]int, len(cfg.Aggregates))
	accFieldCounts := make([]int, len(cfg.Aggregates))
	outFields := append([]batch.Field{}, groupingFields...)
	for i, spec := range cfg.Aggregates {
		if names.Contains(spec.Name) {
			return nil, colerr.Internalf("aggregate: duplicate aggregate name %q", spec.Name)
		}
		names.Add(spec.Name)
		a := spec.New()
		accumulators[i] = a
		accOffsets[i] = len(stateFields)
		accFieldCounts[i] = len(a.StateSchema().Fields)
		for _, f := range a.StateSchema().Fields {
			stateFields = append(stateFields, batch.Field{Name: spec.Name + "#" + f.Name, Type: f.Type, Nullable: true})
		}
		switch cfg.Mode {
		case Partial:
			for _, f := range a.StateSchema().Fields {
				outFields = append(outFields, batch.Field{Name: spec.Name + "#" + f.Name, Type: f.Type, Nullable: true})
			}
		default:
			outFields = append(outFields, batch.Field{Name: spec.Name, Type: a.OutputType(), Nullable: true})
		}
	}
	stateSchema := batch.Schema{Fields: stateFields}
	layout := rowcodec.NewLayout(stateSchema)

	var consumer *memconsumer.MemoryConsumer
	var pool *memconsumer.Pool
	if cfg.Manager != nil {
		consumer = memconsumer.New(cfg.Manager, "GroupedAggregator", memconsumer.RejectSpill)
		pool = memconsumer.NewPool(consumer, cfg.BlockSize)
	}

	return &GroupedAggregator{
		cfg:            cfg,
		logger:         logger,
		consumer:       consumer,
		pool:           pool,
		groupingSchema: groupingSchema,
		outSchema:      batch.Schema{Fields: outFields},
		stateLayout:    layout,
		accOffsets:     accOffsets,
		accFieldCounts: accFieldCounts,
		accumulators:   accumulators,
		table:          newGroupTable(16),
	}, nil
}

// Schema implements stream.BatchStream.
func (a *GroupedAggregator) Schema() batch.Schema { return a.outSchema }

// Close releases the aggregator's memory consumer.
func (a *GroupedAggregator) Close() {
	if a.consumer != nil {
		if a.pool != nil {
			a.pool.Close()
		}
		a.consumer.Close()
	}
}

// Next implements stream.BatchStream: drains the input stream on the
// first call, then pages emitted groups.
func (a *GroupedAggregator) Next(ctx context.Context) (*batch.Batch, error) {
	if !a.ingested {
		if err := a.ingestAll(ctx); err != nil {
			return nil, err
		}
		a.ingested = true
	}
	return a.emitNext()
}

func (a *GroupedAggregator) ingestAll(ctx context.Context) error {
	for {
		b, err := a.cfg.Input.Next(ctx)
		if err != nil {
			return colerr.WrapExternal(err)
		}
		if b == nil {
			return nil
		}
		if err := a.ingestBatch(ctx, b); err != nil {
			return err
		}
	}
}

func (a *GroupedAggregator) ingestBatch(ctx context.Context, b *batch.Batch) error {
	aggInputs := make([][]*batch.Column, len(a.cfg.Aggregates))
	for i, spec := range a.cfg.Aggregates {
		cols := make([]*batch.Column, len(spec.Inputs))
		for j, in := range spec.Inputs {
			col, err := in.Evaluate(b)
			if err != nil {
				return colerr.Codecf("aggregate: evaluating aggregate input %q: %v", spec.Name, err)
			}
			cols[j] = col
		}
		aggInputs[i] = cols
	}

	for _, gset := range a.cfg.Grouping {
		groupingCols := make([]*batch.Column, len(gset))
		for i, e := range gset {
			col, err := e.Evaluate(b)
			if err != nil {
				return colerr.Codecf("aggregate: evaluating grouping expr %q: %v", e.Name(), err)
			}
			groupingCols[i] = col
		}

		hashes := make([]uint64, b.NumRows)
		if err := hash.HashRows(groupingCols, hash.ReferenceSeed, hashes); err != nil {
			return err
		}

		var groupsWithRows []uint32
		for r := 0; r < b.NumRows; r++ {
			keyBytes, err := rowcodec.EncodeCompact(groupingCols, r, a.groupingSchema)
			if err != nil {
				return colerr.Codecf("aggregate: encoding group key: %v", err)
			}
			h := hashes[r]
			idx, found := a.table.probe(h, func(cand uint32) bool {
				return bytesEqual(a.groupStates[cand].keyBytes, keyBytes)
			})
			if found {
				gs := a.groupStates[idx]
				wasEmpty := len(gs.scratch) == 0
				if a.pool != nil && len(gs.scratch) == cap(gs.scratch) {
					bump := mathutil.Max(cap(gs.scratch), initialScratchCap)
					if err := a.growScratchAccounted(ctx, gs, uint64(4*bump)); err != nil {
						return err
					}
				}
				gs.pushScratch(r)
				if wasEmpty {
					groupsWithRows = append(groupsWithRows, idx)
				}
				continue
			}
			newIdx, err := a.createGroup(ctx, keyBytes, r, h)
			if err != nil {
				return err
			}
			groupsWithRows = append(groupsWithRows, newIdx)
		}

		if err := a.foldGroups(groupsWithRows, aggInputs); err != nil {
			return err
		}
		for _, idx := range groupsWithRows {
			a.groupStates[idx].scratch = a.groupStates[idx].scratch[:0]
		}
	}
	return nil
}

// growScratchAccounted grants delta bytes from the pool for the scratch
// grow that the following pushScratch on gs will perform. It runs
// before that grow, so a denied grant surfaces as ResourcesExhausted
// and aborts ingestion with gs.scratch left unchanged.
func (a *GroupedAggregator) growScratchAccounted(ctx context.Context, gs *groupState, delta uint64) error {
	return a.pool.Alloc(ctx, delta)
}

func (a *GroupedAggregator) createGroup(ctx context.Context, keyBytes []byte, r int, h uint64) (uint32, error) {
	keyClone := append([]byte(nil), keyBytes...)
	W := a.stateLayout.FixedWidth

	var delta uint64
	if a.pool != nil {
		delta = uint64(cap(keyClone)) + uint64(W) + uint64(4*initialScratchCap)
		groupStatesGrowing := len(a.groupStates) == cap(a.groupStates)
		if groupStatesGrowing {
			newCap := mathutil.Max(2*cap(a.groupStates), 16)
			delta += uint64(sizeofGroupState) * uint64(newCap)
		}
		tableGrowing := a.table.willGrowBeforeInsert()
		if tableGrowing {
			newCap := mathutil.Max(2*a.table.capacity(), 16)
			delta += uint64(sizeofTableSlot) * uint64(newCap)
		}
		if err := a.pool.Alloc(ctx, delta); err != nil {
			return 0, err
		}
	}

	if len(a.groupStates) == cap(a.groupStates) {
		newCap := mathutil.Max(2*cap(a.groupStates), 16)
		grown := make([]*groupState, len(a.groupStates), newCap)
		copy(grown, a.groupStates)
		a.groupStates = grown
	}
	if a.table.willGrowBeforeInsert() {
		a.table.grow()
	}

	gs := &groupState{
		keyBytes:   keyClone,
		stateBytes: make([]byte, W),
		scratch:    make([]int, 0, initialScratchCap),
	}
	gs.scratch = append(gs.scratch, r)
	idx := uint32(len(a.groupStates))
	a.groupStates = append(a.groupStates, gs)
	a.table.insertPrecomputed(h, idx)
	return idx, nil
}

// foldGroups implements step 3-4 of the ingest algorithm: for each
// participating group, run each accumulator against the group's
// WordAligned state slice over the group's scratch row indices.
func (a *GroupedAggregator) foldGroups(groupIdxs []uint32, aggInputs [][]*batch.Column) error {
	for _, idx := range groupIdxs {
		gs := a.groupStates[idx]
		rows := gs.scratch
		if len(rows) == 0 {
			continue
		}
		for ai := range a.cfg.Aggregates {
			sub := &rowcodec.RowWriter{}
			sub.PointTo(a.stateLayout.Sub(a.accOffsets[ai], a.accFieldCounts[ai]), gs.stateBytes)
			var err error
			switch a.cfg.Mode {
			case Partial:
				err = a.accumulators[ai].UpdateBatch(aggInputs[ai], rows, sub)
			default:
				err = a.accumulators[ai].MergeBatch(aggInputs[ai], rows, sub)
			}
			if err != nil {
				return colerr.WrapAccumulator(err)
			}
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
