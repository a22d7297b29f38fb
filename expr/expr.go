// Package expr implements the minimal PhysicalExpr contract spec.md §6
// treats as an external collaborator (logical planning and expression
// evaluation are explicitly out of scope, spec.md §1): evaluate(batch)
// -> column. Only the two primitive expressions the operators actually
// need to drive grouping/join/aggregate-input columns are provided —
// a named column reference and a typed literal.
package expr

import (
	"github.com/rowbatch/colexec/batch"
	"github.com/rowbatch/colexec/colerr"
)

// PhysicalExpr evaluates against a batch to produce one output column.
type PhysicalExpr interface {
	Evaluate(b *batch.Batch) (*batch.Column, error)
	// Name is used to label the expression's position in a derived
	// schema (e.g. "b1", "count(c1)").
	Name() string
	// DataType is the output type this expression's evaluate produces.
	DataType() batch.DataType
}

// Column references an input batch column by name.
type Column struct {
	name string
	typ  batch.DataType
}

// NewColumn builds a column-reference PhysicalExpr; typ must match the
// referenced field's declared type.
func NewColumn(name string, typ batch.DataType) *Column {
	return &Column{name: name, typ: typ}
}

func (c *Column) Name() string            { return c.name }
func (c *Column) DataType() batch.DataType { return c.typ }

func (c *Column) Evaluate(b *batch.Batch) (*batch.Column, error) {
	col := b.Column(c.name)
	if col == nil {
		return nil, colerr.Internalf("expr: column %q not found in schema", c.name)
	}
	return col, nil
}

// Literal is a constant value broadcast to every row of the batch.
type Literal struct {
	name string
	typ  batch.DataType
	val  batch.Column
}

// NewInt64Literal builds a broadcast Int64 literal expression.
func NewInt64Literal(name string, v int64) *Literal {
	return &Literal{name: name, typ: batch.Int64, val: batch.Column{Type: batch.Int64, Int64s: []int64{v}}}
}

func (l *Literal) Name() string            { return l.name }
func (l *Literal) DataType() batch.DataType { return l.typ }

func (l *Literal) Evaluate(b *batch.Batch) (*batch.Column, error) {
	indices := make([]int, b.NumRows)
	return batch.Take(&l.val, indices)
}
