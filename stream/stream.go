// Package stream defines the BatchStream pull interface from spec.md
// §6 ("Batch stream: poll_next() -> ... the final None is terminal and
// idempotent") and a fusing wrapper guaranteeing that idempotence for
// streams whose underlying implementation forgets to provide it.
//
// Grounded loosely on izhukov1992-super's Op.Pull channel-based pull
// pattern (runtime/sam/op/join/join.go), adapted here to Go's
// context-and-error-return idiom rather than a channel, since every
// other core component already threads context.Context and error
// returns rather than channels.
package stream

import (
	"context"

	"github.com/rowbatch/colexec/batch"
)

// BatchStream is an asynchronous pull interface over record batches.
// Next returns (nil, nil) at end-of-stream; after that, every
// subsequent call must also return (nil, nil) — never re-enter the
// underlying producer.
type BatchStream interface {
	// Schema is stable for the lifetime of the stream.
	Schema() batch.Schema
	// Next returns the next batch, or (nil, nil) at end-of-stream, or
	// a non-nil error that is terminal for the stream.
	Next(ctx context.Context) (*batch.Batch, error)
	// Close releases any resources held by the stream (pending memory
	// grants, upstream handles). Safe to call multiple times.
	Close()
}

// Fuse wraps inner so that once it has returned end-of-stream or an
// error, every subsequent Next call returns the same terminal result
// without re-polling inner.
func Fuse(inner BatchStream) BatchStream {
	return &fused{inner: inner}
}

type fused struct {
	inner BatchStream
	done  bool
	err   error
}

func (f *fused) Schema() batch.Schema { return f.inner.Schema() }

func (f *fused) Next(ctx context.Context) (*batch.Batch, error) {
	if f.done {
		return nil, f.err
	}
	b, err := f.inner.Next(ctx)
	if err != nil {
		f.done = true
		f.err = err
		return nil, err
	}
	if b == nil {
		f.done = true
	}
	return b, nil
}

func (f *fused) Close() { f.inner.Close() }

// Slice is a BatchStream over a fixed in-memory list of batches, used
// by tests and by cmd/rowbench's synthetic source.
type Slice struct {
	schema  batch.Schema
	batches []*batch.Batch
	pos     int
}

// NewSlice builds a BatchStream yielding batches in order, then EOS.
func NewSlice(schema batch.Schema, batches []*batch.Batch) *Slice {
	return &Slice{schema: schema, batches: batches}
}

func (s *Slice) Schema() batch.Schema { return s.schema }

func (s *Slice) Next(ctx context.Context) (*batch.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.batches) {
		return nil, nil
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

func (s *Slice) Close() {}
