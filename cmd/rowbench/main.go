// Command rowbench drives a synthetic batch source through
// GroupedAggregator, for manual inspection and smoke testing; it does
// not run HashJoiner. It is not part of the core (spec.md §1 excludes
// CLI from the core's scope) but every standalone repo needs a runnable
// entrypoint, built the way the teacher builds its command surfaces:
// github.com/spf13/cobra + github.com/spf13/pflag, a JSON dump of the
// output schema (--explain) via github.com/json-iterator/go,
// human-readable summaries via github.com/dustin/go-humanize.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rowbatch/colexec/accum"
	"github.com/rowbatch/colexec/aggregate"
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/expr"
	"github.com/rowbatch/colexec/memconsumer/refmanager"
	"github.com/rowbatch/colexec/stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// byteSizeFlag lets --mem-limit take a human-readable size ("64MB",
// "1GB") instead of a raw byte count, parsed via c2h5oh/datasize and
// wired in as a pflag.Value the way the teacher wires its own
// size-valued flags.
type byteSizeFlag struct{ datasize.ByteSize }

func (f *byteSizeFlag) String() string   { return f.ByteSize.HumanReadable() }
func (f *byteSizeFlag) Type() string     { return "byteSize" }
func (f *byteSizeFlag) Set(s string) error {
	return f.ByteSize.UnmarshalText([]byte(s))
}

var _ pflag.Value = (*byteSizeFlag)(nil)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var explain bool
	var rows int
	var batchSize int
	memLimit := byteSizeFlag{ByteSize: 64 * datasize.MB}

	cmd := &cobra.Command{
		Use:   "rowbench",
		Short: "Run a synthetic batch through the grouped-aggregation operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.Context(), rows, batchSize, memLimit.Bytes(), explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "dump the physical plan schema as JSON")
	cmd.Flags().IntVar(&rows, "rows", 100000, "number of synthetic input rows")
	cmd.Flags().IntVar(&batchSize, "batch-size", 4096, "input/output batch size")
	cmd.Flags().Var(&memLimit, "mem-limit", "memory budget, e.g. 64MB")
	return cmd
}

func runAggregate(ctx context.Context, rows, batchSize int, memLimit uint64, explain bool) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	schema := batch.Schema{Fields: []batch.Field{
		{Name: "group_key", Type: batch.Int64},
		{Name: "value", Type: batch.Int64},
	}}
	src := syntheticSource(schema, rows, batchSize)

	mgr := refmanager.New(memLimit)
	cfg := aggregate.Config{
		Mode: aggregate.Partial,
		Grouping: []aggregate.GroupingSet{
			{expr.NewColumn("group_key", batch.Int64)},
		},
		Aggregates: []aggregate.AggregateSpec{
			{Name: "cnt", Inputs: []expr.PhysicalExpr{expr.NewColumn("value", batch.Int64)}, New: accum.NewCount()},
		},
		BatchSize: batchSize,
		Input:     src,
		Manager:   mgr,
		Logger:    logger,
	}

	agg, err := aggregate.New(cfg)
	if err != nil {
		return err
	}

	if explain {
		out, err := json.MarshalIndent(agg.Schema(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}

	var outRows, outBatches int
	for {
		b, err := agg.Next(ctx)
		if err != nil {
			return err
		}
		if b == nil {
			break
		}
		outBatches++
		outRows += b.NumRows
	}
	agg.Close()

	fmt.Printf("synthesized %s input rows across %s-row batches, memory budget %s\n",
		humanize.Comma(int64(rows)), humanize.Comma(int64(batchSize)), humanize.Bytes(memLimit))
	fmt.Printf("emitted %s distinct groups across %s output batches\n",
		humanize.Comma(int64(outRows)), humanize.Comma(int64(outBatches)))
	fmt.Printf("manager outstanding bytes after close: %s\n", humanize.Bytes(mgr.Outstanding()))
	return nil
}

func syntheticSource(schema batch.Schema, rows, batchSize int) stream.BatchStream {
	var batches []*batch.Batch
	for start := 0; start < rows; start += batchSize {
		n := batchSize
		if start+n > rows {
			n = rows - start
		}
		keys := make([]int64, n)
		values := make([]int64, n)
		for i := 0; i < n; i++ {
			keys[i] = int64((start + i) % 37)
			values[i] = int64(start + i)
		}
		b := &batch.Batch{
			Schema: schema,
			Columns: []*batch.Column{
				{Type: batch.Int64, Int64s: keys},
				{Type: batch.Int64, Int64s: values},
			},
			NumRows: n,
		}
		batches = append(batches, b)
	}
	return stream.NewSlice(schema, batches)
}
