package colerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/colerr"
)

func TestNewAndIs(t *testing.T) {
	err := colerr.ResourcesExhaustedf("budget exceeded: %d", 42)
	require.True(t, colerr.Is(err, colerr.ResourcesExhausted))
	require.False(t, colerr.Is(err, colerr.Codec))
	require.Contains(t, err.Error(), "budget exceeded: 42")
}

func TestWrapPreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := colerr.Wrap(colerr.External, cause, "stream read failed")
	require.ErrorIs(t, err, cause)
}

func TestWrapAccumulatorPropagatesExistingKindUnchanged(t *testing.T) {
	inner := colerr.ResourcesExhaustedf("no room for new group")
	wrapped := colerr.WrapAccumulator(inner)
	require.Same(t, inner, wrapped)
	require.True(t, colerr.Is(wrapped, colerr.ResourcesExhausted))
}

func TestWrapAccumulatorWrapsForeignErrorAsAccumulatorKind(t *testing.T) {
	foreign := errors.New("boom")
	wrapped := colerr.WrapAccumulator(foreign)
	require.True(t, colerr.Is(wrapped, colerr.Accumulator))
	require.ErrorIs(t, wrapped, foreign)
}

func TestWrapAccumulatorNilIsNil(t *testing.T) {
	require.Nil(t, colerr.WrapAccumulator(nil))
}

func TestErrorsAsExtractsKind(t *testing.T) {
	err := colerr.Internalf("unsupported type")
	var target *colerr.Error
	require.True(t, errors.As(err, &target))
	require.Equal(t, colerr.Internal, target.Kind)
}
