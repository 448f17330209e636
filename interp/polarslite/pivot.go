package polarslite

import "strings"

// methodUnpivot implements spec §4.C's unpivot rule: index columns, then
// variable:String, value:String.
func methodUnpivot(f *Frame, args callArgs) (Value, error) {
	var indexCols []string
	for _, v := range args.list("index") {
		if s, ok := v.(string); ok {
			indexCols = append(indexCols, s)
		}
	}
	var valueCols []string
	for _, v := range args.list("value_columns") {
		if s, ok := v.(string); ok {
			valueCols = append(valueCols, s)
		}
	}
	indexIdx := mapColumnIndexes(f, indexCols)
	indexSet := map[int]bool{}
	for _, idx := range indexIdx {
		indexSet[idx] = true
	}
	var valueIdx []int
	if len(valueCols) == 0 {
		for i := range f.Schema {
			if !indexSet[i] {
				valueIdx = append(valueIdx, i)
			}
		}
	} else {
		valueIdx = mapColumnIndexes(f, valueCols)
	}

	schema := make([]ColumnSchema, 0, len(indexCols)+2)
	for i, name := range indexCols {
		schema = append(schema, ColumnSchema{Name: name, DType: f.Schema[indexIdx[i]].DType})
	}
	schema = append(schema, ColumnSchema{Name: "variable", DType: String})
	schema = append(schema, ColumnSchema{Name: "value", DType: String})

	var rows [][]interface{}
	for _, row := range f.Rows {
		for _, vi := range valueIdx {
			out := make([]interface{}, 0, len(indexIdx)+2)
			for _, idx := range indexIdx {
				out = append(out, row[idx])
			}
			out = append(out, f.Schema[vi].Name, cellToString(row[vi]))
			rows = append(rows, out)
		}
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

// methodPivot widens rows into columns named after the distinct values of
// the "on" column(s); data-dependent, so schema inference returns null for
// this operator (spec §4.C) and only execution can produce a schema.
func methodPivot(f *Frame, args callArgs) (Value, error) {
	var onCols, indexCols, valueCols []string
	for _, v := range args.list("on") {
		if s, ok := v.(string); ok {
			onCols = append(onCols, s)
		}
	}
	for _, v := range args.list("index") {
		if s, ok := v.(string); ok {
			indexCols = append(indexCols, s)
		}
	}
	for _, v := range args.list("values") {
		if s, ok := v.(string); ok {
			valueCols = append(valueCols, s)
		}
	}
	aggFunc := args.str("agg_func", "first")
	if len(onCols) == 0 || len(valueCols) == 0 {
		return nil, errf("pivot: 'on' and 'values' are required")
	}

	onIdx := mapColumnIndexes(f, onCols)
	indexIdx := mapColumnIndexes(f, indexCols)
	valueIdx := mapColumnIndexes(f, valueCols)

	type group struct {
		indexVals []interface{}
		byColumn  map[string][]interface{}
	}
	order := []string{}
	groups := map[string]*group{}
	var columnOrder []string
	seenColumn := map[string]bool{}

	for _, row := range f.Rows {
		indexVals := make([]interface{}, len(indexIdx))
		var ik strings.Builder
		for i, idx := range indexIdx {
			indexVals[i] = row[idx]
			ik.WriteString(cellToString(row[idx]))
			ik.WriteByte('\x1f')
		}
		key := ik.String()
		g, ok := groups[key]
		if !ok {
			g = &group{indexVals: indexVals, byColumn: map[string][]interface{}{}}
			groups[key] = g
			order = append(order, key)
		}

		var onKey strings.Builder
		for _, idx := range onIdx {
			onKey.WriteString(cellToString(row[idx]))
			onKey.WriteByte('\x1f')
		}
		for _, vi := range valueIdx {
			colName := onKey.String() + f.Schema[vi].Name
			colName = strings.Trim(colName, "\x1f")
			if !seenColumn[colName] {
				seenColumn[colName] = true
				columnOrder = append(columnOrder, colName)
			}
			g.byColumn[colName] = append(g.byColumn[colName], row[vi])
		}
	}

	schema := make([]ColumnSchema, 0, len(indexCols)+len(columnOrder))
	for i, name := range indexCols {
		schema = append(schema, ColumnSchema{Name: name, DType: f.Schema[indexIdx[i]].DType})
	}
	for _, name := range columnOrder {
		schema = append(schema, ColumnSchema{Name: name, DType: Float64})
	}

	rows := make([][]interface{}, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make([]interface{}, 0, len(indexCols)+len(columnOrder))
		row = append(row, g.indexVals...)
		for _, name := range columnOrder {
			vals := g.byColumn[name]
			if len(vals) == 0 {
				row = append(row, nil)
				continue
			}
			row = append(row, applyAgg(aggFunc, vals, 0.5))
		}
		rows = append(rows, row)
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}
