package flow

// InferSchema is the Schema Inference Subsystem (spec §4.C): a pure
// function of a node's type, its settings, and its input schema(s). It
// never touches the interpreter and never mutates the graph (spec
// property 8). It returns nil when static inference isn't possible; the
// Flow Graph Model propagates that as "unknown" downstream.
//
// left is the node's leftInputId schema (main input for unary operators);
// right is the rightInputId schema, used only by join.
func InferSchema(t NodeType, settings Settings, left, right Schema) Schema {
	switch t.canonical() {
	case TypeReadCSV, TypeExternalData:
		return nil // unknown until execution/parsing materialises a schema

	case TypeManualInput:
		mi, ok := settings.(*ManualInputSettings)
		if !ok {
			return nil
		}
		out := make(Schema, len(mi.Columns))
		for i, c := range mi.Columns {
			out[i] = ColumnSchema{Name: c.Name, DataType: c.DataType}
		}
		return out

	case TypeFilter, TypeSort, TypeUnique, TypeHead, TypePreview:
		if left == nil {
			return nil
		}
		return append(Schema(nil), left...)

	case TypeSelect:
		return inferSelect(settings, left)

	case TypeGroupBy:
		return inferGroupBy(settings, left)

	case TypeJoin:
		return inferJoin(settings, left, right)

	case TypeUnpivot:
		return inferUnpivot(settings, left)

	case TypePivot, TypePolarsCode:
		return nil

	default:
		return nil
	}
}

func inferSelect(settings Settings, left Schema) Schema {
	sel, ok := settings.(*SelectSettings)
	if !ok || left == nil {
		return nil
	}
	type kept struct {
		col SelectColumn
	}
	var keptCols []kept
	for _, c := range sel.Columns {
		if !c.Keep {
			continue
		}
		if left.ColumnIndex(c.OldName) < 0 {
			continue // unknown input columns are dropped
		}
		keptCols = append(keptCols, kept{c})
	}
	// Order by position.
	for i := 1; i < len(keptCols); i++ {
		j := i
		for j > 0 && keptCols[j-1].col.Position > keptCols[j].col.Position {
			keptCols[j-1], keptCols[j] = keptCols[j], keptCols[j-1]
			j--
		}
	}
	out := make(Schema, 0, len(keptCols))
	for _, k := range keptCols {
		idx := left.ColumnIndex(k.col.OldName)
		dt := left[idx].DataType
		if k.col.DataTypeChange && k.col.DataType != "" {
			dt = k.col.DataType
		}
		name := k.col.NewName
		if name == "" {
			name = k.col.OldName
		}
		out = append(out, ColumnSchema{Name: name, DataType: dt})
	}
	return out
}

func inferGroupBy(settings Settings, left Schema) Schema {
	gb, ok := settings.(*GroupBySettings)
	if !ok || left == nil || len(gb.Aggregations) == 0 {
		return nil
	}
	var hasAgg bool
	for _, a := range gb.Aggregations {
		if !a.GroupKey {
			hasAgg = true
		}
	}
	if !hasAgg {
		return nil // "Returns null if no aggregation columns are specified"
	}
	var out Schema
	for _, a := range gb.Aggregations {
		if !a.GroupKey {
			continue
		}
		idx := left.ColumnIndex(a.Column)
		dt := DataType(Unknown)
		if idx >= 0 {
			dt = left[idx].DataType
		}
		name := a.Column
		out = append(out, ColumnSchema{Name: name, DataType: dt})
	}
	for _, a := range gb.Aggregations {
		if a.GroupKey {
			continue
		}
		idx := left.ColumnIndex(a.Column)
		srcType := DataType(Unknown)
		if idx >= 0 {
			srcType = left[idx].DataType
		}
		var dt DataType
		switch a.AggFunc {
		case "count", "n_unique":
			dt = Int64
		case "first", "last":
			dt = srcType
		default:
			dt = widenNumeric(a.AggFunc, srcType)
		}
		name := a.NewName
		if name == "" {
			name = a.Column
		}
		out = append(out, ColumnSchema{Name: name, DataType: dt})
	}
	return out
}

func inferJoin(settings Settings, left, right Schema) Schema {
	js, ok := settings.(*JoinSettings)
	if !ok || left == nil || right == nil {
		return nil
	}
	switch js.How {
	case JoinSemi, JoinAnti:
		return append(Schema(nil), left...)
	case JoinInner, JoinLeft, JoinRight, JoinFull, JoinOuter:
		rightKeys := make(map[string]bool, len(js.RightOn))
		for _, k := range js.RightOn {
			rightKeys[k] = true
		}
		leftNames := make(map[string]bool, len(left))
		for _, c := range left {
			leftNames[c.Name] = true
		}
		var out Schema
		for _, c := range left {
			name := c.Name
			if !rightKeys[name] {
				if rightHasNonKeyCollision(right, rightKeys, name) {
					name += js.LeftSuffix
				}
			}
			out = append(out, ColumnSchema{Name: name, DataType: c.DataType})
		}
		for _, c := range right {
			if rightKeys[c.Name] {
				continue // right-side join keys dropped
			}
			name := c.Name
			if leftNames[name] {
				name += js.RightSuffix
			}
			out = append(out, ColumnSchema{Name: name, DataType: c.DataType})
		}
		return out
	default:
		return nil
	}
}

func rightHasNonKeyCollision(right Schema, rightKeys map[string]bool, name string) bool {
	for _, c := range right {
		if c.Name == name && !rightKeys[c.Name] {
			return true
		}
	}
	return false
}

func inferUnpivot(settings Settings, left Schema) Schema {
	up, ok := settings.(*UnpivotSettings)
	if !ok || left == nil {
		return nil
	}
	out := make(Schema, 0, len(up.IndexColumns)+2)
	for _, idx := range up.IndexColumns {
		i := left.ColumnIndex(idx)
		if i < 0 {
			continue
		}
		out = append(out, left[i])
	}
	out = append(out, ColumnSchema{Name: "variable", DataType: String})
	out = append(out, ColumnSchema{Name: "value", DataType: String})
	return out
}
