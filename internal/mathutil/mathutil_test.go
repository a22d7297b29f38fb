package mathutil_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/internal/mathutil"
)

func TestSafeAddDetectsOverflow(t *testing.T) {
	sum, overflow := mathutil.SafeAdd(10, 20)
	require.False(t, overflow)
	require.Equal(t, uint64(30), sum)

	_, overflow2 := mathutil.SafeAdd(math.MaxUint64, 1)
	require.True(t, overflow2)
}

func TestSafeMulDetectsOverflow(t *testing.T) {
	prod, overflow := mathutil.SafeMul(6, 7)
	require.False(t, overflow)
	require.Equal(t, uint64(42), prod)

	_, overflow2 := mathutil.SafeMul(math.MaxUint64, 2)
	require.True(t, overflow2)
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 3, mathutil.CeilDiv(7, 3))
	require.Equal(t, 2, mathutil.CeilDiv(6, 3))
	require.Equal(t, 0, mathutil.CeilDiv(5, 0))
}

func TestMaxMin(t *testing.T) {
	require.Equal(t, uint64(5), mathutil.Max(uint64(5), uint64(3)))
	require.Equal(t, 3, mathutil.Min(5, 3))
	require.Equal(t, 2.5, mathutil.Max(1.0, 2.5))
}

func TestNextPow2(t *testing.T) {
	require.Equal(t, 1, mathutil.NextPow2(0))
	require.Equal(t, 1, mathutil.NextPow2(1))
	require.Equal(t, 4, mathutil.NextPow2(3))
	require.Equal(t, 8, mathutil.NextPow2(8))
	require.Equal(t, 16, mathutil.NextPow2(9))
}
