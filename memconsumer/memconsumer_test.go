package memconsumer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/memconsumer"
	"github.com/rowbatch/colexec/memconsumer/refmanager"
)

func TestTryGrowAndShrinkTracksUsed(t *testing.T) {
	mgr := refmanager.New(1024)
	c := memconsumer.New(mgr, "test", nil)

	require.NoError(t, c.TryGrow(context.Background(), 100))
	require.Equal(t, uint64(100), c.Used())

	c.Shrink(40)
	require.Equal(t, uint64(60), c.Used())
}

func TestTryGrowDeniedWhenBudgetExhausted(t *testing.T) {
	mgr := refmanager.New(50)
	mgr.MaxWait = 0
	c := memconsumer.New(mgr, "test", nil)

	err := c.TryGrow(context.Background(), 100)
	require.Error(t, err)
	require.True(t, colerr.Is(err, colerr.ResourcesExhausted))
}

func TestCloseReportsZeroUsedAfterTermination(t *testing.T) {
	mgr := refmanager.New(1024)
	c := memconsumer.New(mgr, "test", nil)
	require.NoError(t, c.TryGrow(context.Background(), 200))
	c.Close()
	require.Equal(t, uint64(0), c.Used())
	require.Equal(t, uint64(0), mgr.Outstanding())
}

func TestRejectSpillAlwaysFails(t *testing.T) {
	err := memconsumer.RejectSpill(context.Background())
	require.True(t, colerr.Is(err, colerr.ResourcesExhausted))
}

func TestPoolAmortizesAllocationsBelowBlockSize(t *testing.T) {
	mgr := refmanager.New(1 << 20)
	c := memconsumer.New(mgr, "pool-test", nil)
	pool := memconsumer.NewPool(c, 4096)

	require.NoError(t, pool.Alloc(context.Background(), 100))
	require.Equal(t, uint64(4096), c.Used(), "first alloc should grant one full block")

	require.NoError(t, pool.Alloc(context.Background(), 200))
	require.Equal(t, uint64(4096), c.Used(), "second alloc should be served from pool slack")
}

func TestPoolCloseReturnsSlack(t *testing.T) {
	mgr := refmanager.New(1 << 20)
	c := memconsumer.New(mgr, "pool-test", nil)
	pool := memconsumer.NewPool(c, 4096)
	require.NoError(t, pool.Alloc(context.Background(), 10))
	pool.Close()
	require.Equal(t, uint64(10), c.Used(), "close returns unused slack, leaving only what was actually consumed")
	c.Close()
	require.Equal(t, uint64(0), mgr.Outstanding())
}
