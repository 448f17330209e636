// Package polarslite is a compact, dependency-free evaluator for the
// Polars-flavoured method-chain source text the execution engine emits
// (spec §4.F "Code emission per operator"). It is not a Python runtime:
// it understands assignment statements over a small set of pl.* builtins
// and Frame methods, enough to reproduce Polars' documented semantics for
// the closed set of operators the flow graph supports.
package polarslite

import "fmt"

// DType is a column's logical type tag, independent of any host package
// so this evaluator has no upward dependency on the flow graph model.
type DType string

const (
	Int64    DType = "Int64"
	Float64  DType = "Float64"
	Boolean  DType = "Boolean"
	String   DType = "String"
	Date     DType = "Date"
	Datetime DType = "Datetime"
	Unknown  DType = "Unknown"
)

// ColumnSchema names one output column and its type.
type ColumnSchema struct {
	Name  string
	DType DType
}

// Frame is a fully materialised table: an ordered schema plus row-major
// data. The real Polars interpreter this stands in for would keep an
// unmaterialised lazy plan, but since every consumer here (preview,
// output) immediately materialises anyway, collapsing the two costs
// nothing observable for this engine's purposes.
type Frame struct {
	Schema []ColumnSchema
	Rows   [][]interface{}
}

// NewFrame builds a Frame from parallel column/type/row slices.
func NewFrame(schema []ColumnSchema, rows [][]interface{}) *Frame {
	return &Frame{Schema: schema, Rows: rows}
}

// ColumnIndex returns the position of name in the schema, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (f *Frame) columnNames() []string {
	out := make([]string, len(f.Schema))
	for i, c := range f.Schema {
		out[i] = c.Name
	}
	return out
}

// Value is anything the evaluator can hold in a binding or pass as an
// argument: a *Frame, a scalar (string/float64/int64/bool/nil), a []Value
// list, or a map[string]Value dict.
type Value interface{}

// runtimeError is raised for malformed source text or type mismatches;
// it always carries enough context to become an ExecError traceback.
type runtimeError struct {
	msg string
}

func (e *runtimeError) Error() string { return e.msg }

func errf(format string, args ...interface{}) error {
	return &runtimeError{msg: fmt.Sprintf(format, args...)}
}
