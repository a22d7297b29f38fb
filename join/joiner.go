package join

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/hash"
	"github.com/rowbatch/colexec/stream"
)

type opState int

const (
	stateBuildPending opState = iota
	stateBuildDone
	stateProbing
	stateDrainingUnmatched
	stateExhausted
)

// builtSide is the immutable (index, batch) handle produced once at
// build completion and cloned by reference into each probe worker, per
// spec.md §9 "Cyclic ownership in the join".
type builtSide struct {
	batch    *batch.Batch
	joinCols []*batch.Column
	index    *joinIndex
	numRows  int
}

// Shared holds the CollectLeft-mode build handle shared across output
// partitions, protected by an exclusive-access mutex and built at most
// once via a single-flight group, per spec.md §5.
type Shared struct {
	mu     sync.Mutex
	group  singleflight.Group
	handle *builtSide
}

// NewShared constructs a fresh CollectLeft sharing handle. All
// partitions of one logical join must be given the same *Shared.
func NewShared() *Shared { return &Shared{} }

// Config configures a HashJoiner.
type Config struct {
	JoinType      JoinType
	On            []OnPair
	PartitionMode PartitionMode
	Shared        *Shared // required when PartitionMode == CollectLeft
	Left          stream.BatchStream
	Right         stream.BatchStream
	Logger        *zap.Logger
}

// HashJoiner is the operator from spec.md §4.5.
type HashJoiner struct {
	cfg    Config
	logger *zap.Logger

	outSchema    batch.Schema
	columnIdx    []ColumnIndex
	leftOnIdx    []int
	rightOnIdx   []int

	state        opState
	built        *builtSide
	visitedLeft  *roaring.Bitmap
	drainedUnmatched bool
}

// New validates cfg and constructs a HashJoiner.
func New(cfg Config) (*HashJoiner, error) {
	if cfg.PartitionMode == CollectLeft && cfg.Shared == nil {
		return nil, colerr.Internalf("join: CollectLeft partition mode requires a Shared handle")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	leftSchema := cfg.Left.Schema()
	rightSchema := cfg.Right.Schema()
	leftOnIdx, rightOnIdx, err := columnIndicesFromSchema(leftSchema, rightSchema, cfg.On)
	if err != nil {
		return nil, err
	}
	outSchema, columnIdx := buildOutputSchema(leftSchema, rightSchema, cfg.JoinType)
	return &HashJoiner{
		cfg:        cfg,
		logger:     logger,
		outSchema:  outSchema,
		columnIdx:  columnIdx,
		leftOnIdx:  leftOnIdx,
		rightOnIdx: rightOnIdx,
		state:      stateBuildPending,
	}, nil
}

// Schema implements stream.BatchStream.
func (j *HashJoiner) Schema() batch.Schema { return j.outSchema }

// Close releases the joiner's state. Cancellation aborts pending work
// and releases the build allocation for Partitioned mode; a
// CollectLeft build outlives the joiner that triggered it, since other
// partitions may still be using it.
func (j *HashJoiner) Close() {
	j.state = stateExhausted
	j.built = nil
	j.visitedLeft = nil
	j.cfg.Left.Close()
	j.cfg.Right.Close()
}

// hashRowsConcurrently computes the row hash for every row of joinCols,
// splitting the row range into two disjoint halves hashed by two
// goroutines via errgroup, since hash.HashRows over one row range never
// reads or writes another row's slot. The subsequent JoinIndex/Bloom
// insertion pass is not split this way: bucket-map and Bloom-filter
// writes are not independent across rows, so that pass stays
// single-threaded after this function returns.
func hashRowsConcurrently(joinCols []*batch.Column, total int) ([]uint64, error) {
	hashes := make([]uint64, total)
	mid := total / 2
	if mid == 0 {
		return hashes, hash.HashRows(joinCols, hash.ReferenceSeed, hashes)
	}

	lowCols := make([]*batch.Column, len(joinCols))
	highCols := make([]*batch.Column, len(joinCols))
	for i, col := range joinCols {
		low, err := batch.Slice(col, 0, mid)
		if err != nil {
			return nil, colerr.Codecf("join: slicing build column for concurrent hashing: %v", err)
		}
		high, err := batch.Slice(col, mid, total-mid)
		if err != nil {
			return nil, colerr.Codecf("join: slicing build column for concurrent hashing: %v", err)
		}
		lowCols[i] = low
		highCols[i] = high
	}

	var g errgroup.Group
	g.Go(func() error { return hash.HashRows(lowCols, hash.ReferenceSeed, hashes[:mid]) })
	g.Go(func() error { return hash.HashRows(highCols, hash.ReferenceSeed, hashes[mid:]) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

func leftColumnsOf(b *batch.Batch, idx []int) []*batch.Column {
	cols := make([]*batch.Column, len(idx))
	for i, ci := range idx {
		cols[i] = b.Columns[ci]
	}
	return cols
}

// buildOnce drains the left stream, concatenates it, and constructs
// the JoinIndex, per spec.md §4.5 build phase. In CollectLeft mode
// this runs at most once across all partitions sharing cfg.Shared.
func (j *HashJoiner) buildOnce(ctx context.Context) (*builtSide, error) {
	build := func() (*builtSide, error) {
		var batches []*batch.Batch
		total := 0
		for {
			b, err := j.cfg.Left.Next(ctx)
			if err != nil {
				return nil, colerr.WrapExternal(err)
			}
			if b == nil {
				break
			}
			batches = append(batches, b)
			total += b.NumRows
		}
		concatenated, err := batch.Concat(j.cfg.Left.Schema(), batches, total)
		if err != nil {
			return nil, colerr.Codecf("join: concatenating build batches: %v", err)
		}
		joinCols := leftColumnsOf(concatenated, j.leftOnIdx)

		idx, err := newJoinIndex(total)
		if err != nil {
			return nil, err
		}

		hashes, err := hashRowsConcurrently(joinCols, total)
		if err != nil {
			return nil, err
		}
		for r := 0; r < total; r++ {
			idx.insert(hashes[r], uint64(r))
		}

		return &builtSide{batch: concatenated, joinCols: joinCols, index: idx, numRows: total}, nil
	}

	if j.cfg.PartitionMode != CollectLeft {
		return build()
	}

	sh := j.cfg.Shared
	sh.mu.Lock()
	if sh.handle != nil {
		h := sh.handle
		sh.mu.Unlock()
		return h, nil
	}
	sh.mu.Unlock()

	v, err, _ := sh.group.Do("build", func() (interface{}, error) {
		sh.mu.Lock()
		if sh.handle != nil {
			h := sh.handle
			sh.mu.Unlock()
			return h, nil
		}
		sh.mu.Unlock()
		h, err := build()
		if err != nil {
			return nil, err
		}
		sh.mu.Lock()
		sh.handle = h
		sh.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*builtSide), nil
}

// Next implements stream.BatchStream.
func (j *HashJoiner) Next(ctx context.Context) (*batch.Batch, error) {
	switch j.state {
	case stateExhausted:
		return nil, nil
	case stateBuildPending:
		built, err := j.buildOnce(ctx)
		if err != nil {
			j.state = stateExhausted
			return nil, err
		}
		j.built = built
		if j.cfg.JoinType == Left || j.cfg.JoinType == Full {
			j.visitedLeft = roaring.New()
		}
		j.state = stateBuildDone
		fallthrough
	case stateBuildDone:
		j.state = stateProbing
		fallthrough
	case stateProbing:
		out, err := j.probeNext(ctx)
		if err != nil {
			j.state = stateExhausted
			return nil, err
		}
		if out != nil {
			return out, nil
		}
		if j.cfg.JoinType == Left || j.cfg.JoinType == Full {
			j.state = stateDrainingUnmatched
			return j.Next(ctx)
		}
		j.state = stateExhausted
		return nil, nil
	case stateDrainingUnmatched:
		if j.drainedUnmatched {
			j.state = stateExhausted
			return nil, nil
		}
		j.drainedUnmatched = true
		out, err := j.drainUnmatched()
		if err != nil {
			j.state = stateExhausted
			return nil, err
		}
		return out, nil
	default:
		return nil, nil
	}
}
