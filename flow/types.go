// Package flow implements the Flowfile-WASM execution engine: a directed
// acyclic graph of typed data-transformation operators driven against a
// single shared, sandboxed Polars interpreter (see package interp).
package flow

import "fmt"

// NodeType is the closed set of operator kinds a node may take.
//
// The set is fixed by the host contract (spec §6, "Node type taxonomy").
// Adding a member here is a breaking change to every collaborator that
// switches on it: schema inference, code emission, and serialisation.
type NodeType string

const (
	TypeReadCSV        NodeType = "read_csv"
	TypeManualInput     NodeType = "manual_input"
	TypeExternalData    NodeType = "external-data"
	TypeFilter          NodeType = "filter"
	TypeSelect          NodeType = "select"
	TypeGroupBy         NodeType = "group_by"
	TypeJoin            NodeType = "join"
	TypeSort            NodeType = "sort"
	TypeUnique          NodeType = "unique"
	TypeHead            NodeType = "head"
	TypeSample          NodeType = "sample" // alias of TypeHead
	TypePivot           NodeType = "pivot"
	TypeUnpivot         NodeType = "unpivot"
	TypePolarsCode      NodeType = "polars_code"
	TypePreview         NodeType = "preview"
	TypeExploreData     NodeType = "explore_data" // alias of TypePreview
	TypeOutput          NodeType = "output"
	TypeExternalOutput  NodeType = "external-output"
)

// canonical folds alias node types down to their primary identity so
// switch statements elsewhere only need to handle one case per behaviour.
func (t NodeType) canonical() NodeType {
	switch t {
	case TypeSample:
		return TypeHead
	case TypeExploreData:
		return TypePreview
	default:
		return t
	}
}

func (t NodeType) valid() bool {
	switch t {
	case TypeReadCSV, TypeManualInput, TypeExternalData, TypeFilter, TypeSelect,
		TypeGroupBy, TypeJoin, TypeSort, TypeUnique, TypeHead, TypeSample,
		TypePivot, TypeUnpivot, TypePolarsCode, TypePreview, TypeExploreData,
		TypeOutput, TypeExternalOutput:
		return true
	default:
		return false
	}
}

// isSource reports whether nodes of this type have no data inputs.
func (t NodeType) isSource() bool {
	switch t.canonical() {
	case TypeReadCSV, TypeManualInput, TypeExternalData:
		return true
	default:
		return false
	}
}

// isBinary reports whether nodes of this type consume a left and right input.
func (t NodeType) isBinary() bool {
	return t.canonical() == TypeJoin
}

// DataType is the closed set of column type tags the engine and schema
// inference exchange. It intentionally mirrors Polars' scalar type names
// (as text tags, never a binding to an actual Polars type object) so that
// schemas serialise legibly and compare with simple equality.
type DataType string

const (
	Int64    DataType = "Int64"
	Float64  DataType = "Float64"
	Boolean  DataType = "Boolean"
	String   DataType = "String"
	Date     DataType = "Date"
	Datetime DataType = "Datetime"
	Unknown  DataType = "Unknown"
)

// widenNumeric returns the output type of a numeric reduction over a column
// of the given source type, following Polars' widening rules closely enough
// for this engine's purposes: sum/min/max preserve the source numeric type,
// while mean/median/std/var/quantile always promote to Float64.
func widenNumeric(fn string, src DataType) DataType {
	switch fn {
	case "mean", "median", "std", "var", "quantile":
		return Float64
	case "sum", "min", "max":
		if src == Int64 || src == Float64 {
			return src
		}
		return Float64
	default:
		return src
	}
}

// ColumnSchema names one output column and its data type tag, in the order
// it appears in the owning schema.
type ColumnSchema struct {
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
}

// Schema is an ordered sequence of columns. A nil Schema means "unknown":
// inference could not determine the shape statically (spec §4.C).
type Schema []ColumnSchema

// ColumnIndex returns the position of name in the schema, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) String() string {
	return fmt.Sprintf("%v", []ColumnSchema(s))
}
