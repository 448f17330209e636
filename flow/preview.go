package flow

import (
	"encoding/json"

	"github.com/flowfile-wasm/engine/interp"
	"github.com/flowfile-wasm/engine/interp/polarslite"
)

// NullMarker is the distinguished sentinel a PreviewTable uses in place of
// a null cell (spec §4.F "Preview materialisation"). A typed nil isn't
// enough on its own once the table crosses a JSON boundary, since JSON null
// and "the cell held no value" need to stay distinguishable from "the cell
// legitimately holds the string \"null\"".
type NullMarker struct{}

// MarshalJSON renders NullMarker as JSON null.
func (NullMarker) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// PreviewTable is the bounded, row-major materialisation of a node's
// result (spec §4.F "Preview materialisation").
type PreviewTable struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	TotalRows int             `json:"totalRows"`
}

// materialisePreview converts an evaluated frame into a PreviewTable capped
// at rowCap rows, reporting the true row count in TotalRows even when
// truncated (spec invariant, §8 "Preview row cap is exactly 100").
func materialisePreview(v interp.Value, rowCap int) (*PreviewTable, Schema, error) {
	f, ok := v.(*polarslite.Frame)
	if !ok {
		return nil, nil, &PreviewOverflowError{Reason: "interpreter value is not a table"}
	}
	cols := make([]string, len(f.Schema))
	schema := make(Schema, len(f.Schema))
	for i, c := range f.Schema {
		cols[i] = c.Name
		schema[i] = ColumnSchema{Name: c.Name, DataType: DataType(c.DType)}
	}
	n := len(f.Rows)
	capped := n
	if capped > rowCap {
		capped = rowCap
	}
	rows := make([][]interface{}, capped)
	for i := 0; i < capped; i++ {
		row := make([]interface{}, len(f.Rows[i]))
		for j, cell := range f.Rows[i] {
			row[j] = previewCell(cell)
		}
		rows[i] = row
	}
	return &PreviewTable{Columns: cols, Rows: rows, TotalRows: n}, schema, nil
}

// previewCell converts one evaluated cell to its host-native preview
// representation: numeric/boolean/string pass through, nil becomes
// NullMarker, and anything else (nested structures) is JSON-stringified
// (spec §4.F).
func previewCell(v interface{}) interface{} {
	switch v.(type) {
	case nil:
		return NullMarker{}
	case string, bool, int64, float64:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return NullMarker{}
		}
		return string(b)
	}
}
