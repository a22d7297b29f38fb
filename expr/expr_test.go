package expr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/expr"
)

func TestColumnEvaluateResolvesByName(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{{Name: "x", Type: batch.Int64}}}
	b := &batch.Batch{Schema: schema, Columns: []*batch.Column{{Type: batch.Int64, Int64s: []int64{1, 2}}}, NumRows: 2}

	c := expr.NewColumn("x", batch.Int64)
	out, err := c.Evaluate(b)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, out.Int64s)
	require.Equal(t, "x", c.Name())
	require.Equal(t, batch.Int64, c.DataType())
}

func TestColumnEvaluateMissingColumnErrors(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{{Name: "x", Type: batch.Int64}}}
	b := &batch.Batch{Schema: schema, Columns: []*batch.Column{{Type: batch.Int64, Int64s: []int64{1}}}, NumRows: 1}

	c := expr.NewColumn("missing", batch.Int64)
	_, err := c.Evaluate(b)
	require.Error(t, err)
}

func TestLiteralBroadcastsToEveryRow(t *testing.T) {
	schema := batch.Schema{Fields: []batch.Field{{Name: "x", Type: batch.Int64}}}
	b := &batch.Batch{Schema: schema, Columns: []*batch.Column{{Type: batch.Int64, Int64s: []int64{1, 2, 3}}}, NumRows: 3}

	lit := expr.NewInt64Literal("one", 1)
	out, err := lit.Evaluate(b)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 1, 1}, out.Int64s)
}
