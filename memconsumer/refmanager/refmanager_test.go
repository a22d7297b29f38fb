package refmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/memconsumer/refmanager"
)

func TestTryGrowGrantsWithinBudget(t *testing.T) {
	m := refmanager.New(1000)
	id := uuid.New()
	m.RegisterRequester(id)
	require.NoError(t, m.TryGrow(context.Background(), id, 500))
	require.Equal(t, uint64(500), m.Outstanding())
}

func TestTryGrowDeniesOverBudgetAfterRetries(t *testing.T) {
	m := refmanager.New(100)
	m.MaxWait = 10 * time.Millisecond
	id := uuid.New()
	m.RegisterRequester(id)
	err := m.TryGrow(context.Background(), id, 200)
	require.Error(t, err)
	require.True(t, colerr.Is(err, colerr.ResourcesExhausted))
}

func TestShrinkReleasesBudgetForOtherConsumers(t *testing.T) {
	m := refmanager.New(100)
	a, b := uuid.New(), uuid.New()
	m.RegisterRequester(a)
	m.RegisterRequester(b)
	require.NoError(t, m.TryGrow(context.Background(), a, 100))

	m.MaxWait = 10 * time.Millisecond
	require.Error(t, m.TryGrow(context.Background(), b, 10))

	m.Shrink(a, 50)
	require.NoError(t, m.TryGrow(context.Background(), b, 10))
}

func TestDropConsumerReturnsOutstandingBalance(t *testing.T) {
	m := refmanager.New(100)
	id := uuid.New()
	m.RegisterRequester(id)
	require.NoError(t, m.TryGrow(context.Background(), id, 80))
	m.DropConsumer(id, 80)
	require.Equal(t, uint64(0), m.Outstanding())
}
