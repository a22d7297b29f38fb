package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/stream"
)

func schema() batch.Schema {
	return batch.Schema{Fields: []batch.Field{{Name: "x", Type: batch.Int64}}}
}

func TestSliceYieldsBatchesThenEOS(t *testing.T) {
	b1 := &batch.Batch{Schema: schema(), NumRows: 1}
	b2 := &batch.Batch{Schema: schema(), NumRows: 1}
	s := stream.NewSlice(schema(), []*batch.Batch{b1, b2})

	got1, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Same(t, b1, got1)

	got2, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Same(t, b2, got2)

	got3, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, got3)
}

type errOnceStream struct {
	schema batch.Schema
	polled bool
}

func (e *errOnceStream) Schema() batch.Schema { return e.schema }
func (e *errOnceStream) Next(ctx context.Context) (*batch.Batch, error) {
	if e.polled {
		panic("must not be re-polled after a terminal error")
	}
	e.polled = true
	return nil, errors.New("boom")
}
func (e *errOnceStream) Close() {}

func TestFuseMakesTerminalErrorIdempotent(t *testing.T) {
	inner := &errOnceStream{schema: schema()}
	fused := stream.Fuse(inner)

	_, err1 := fused.Next(context.Background())
	require.Error(t, err1)

	_, err2 := fused.Next(context.Background())
	require.Error(t, err2)
	require.Equal(t, err1, err2)
}

type eosOnceStream struct {
	schema batch.Schema
	polled bool
}

func (e *eosOnceStream) Schema() batch.Schema { return e.schema }
func (e *eosOnceStream) Next(ctx context.Context) (*batch.Batch, error) {
	if e.polled {
		panic("must not be re-polled after end-of-stream")
	}
	e.polled = true
	return nil, nil
}
func (e *eosOnceStream) Close() {}

func TestFuseMakesEndOfStreamIdempotentWithoutRepolling(t *testing.T) {
	s := &eosOnceStream{schema: schema()}
	fused := stream.Fuse(s)

	b, err := fused.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, b)

	b2, err := fused.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, b2)
}
