package flow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// emitSource renders the statement a node contributes to one execution pass
// (spec §4.F step 4b): "<binding(id)> = <expr referencing binding(inputIds)>".
// left/right are the bindings of the node's resolved inputs; fileGlobal is
// the scratch global name bound for this node in step 4a, or "" if none.
func emitSource(n *Node, left, right string, fileGlobal string) (string, error) {
	expr, err := emitExpr(n, left, right, fileGlobal)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s\n", n.binding(), expr), nil
}

func emitExpr(n *Node, left, right, fileGlobal string) (string, error) {
	switch n.Type.canonical() {
	case TypeReadCSV:
		return emitReadCSV(n.Settings.(*ReadCSVSettings), fileGlobal)
	case TypeManualInput:
		return emitManualInput(n.Settings.(*ManualInputSettings))
	case TypeExternalData:
		return emitExternalData(n.Settings.(*ExternalDataSettings), fileGlobal)
	case TypeFilter:
		return emitFilter(n.Settings.(*FilterSettings), left)
	case TypeSelect:
		return emitSelect(n.Settings.(*SelectSettings), left)
	case TypeGroupBy:
		return emitGroupBy(n.Settings.(*GroupBySettings), left)
	case TypeJoin:
		return emitJoin(n.Settings.(*JoinSettings), left, right)
	case TypeSort:
		return emitSort(n.Settings.(*SortSettings), left)
	case TypeUnique:
		return emitUnique(n.Settings.(*UniqueSettings), left)
	case TypeHead:
		return emitHead(n.Settings.(*HeadSettings), left)
	case TypePivot:
		return emitPivot(n.Settings.(*PivotSettings), left)
	case TypeUnpivot:
		return emitUnpivot(n.Settings.(*UnpivotSettings), left)
	case TypePolarsCode:
		return emitPolarsCode(n.Settings.(*PolarsCodeSettings), left)
	case TypePreview:
		return left, nil
	case TypeOutput:
		return emitOutput(n.Settings.(*OutputSettings), left)
	case TypeExternalOutput:
		return emitExternalOutput(n.Settings.(*ExternalOutputSettings), left)
	default:
		return "", fmt.Errorf("flow: no code emission for node type %s", n.Type)
	}
}

func pyStr(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func pyStrList(vals []string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = pyStr(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func emitReadCSV(s *ReadCSVSettings, fileGlobal string) (string, error) {
	var b strings.Builder
	b.WriteString("pl.read_csv(")
	fmt.Fprintf(&b, "content=%s", fileGlobal)
	if s.Delimiter != "" {
		fmt.Fprintf(&b, ", separator=%s", pyStr(s.Delimiter))
	}
	fmt.Fprintf(&b, ", has_header=%s", pyBool(s.HasHeader))
	if s.SkipRows > 0 {
		fmt.Fprintf(&b, ", skip_rows=%d", s.SkipRows)
	}
	if s.NRows != nil {
		fmt.Fprintf(&b, ", n_rows=%d", *s.NRows)
	}
	if len(s.NullValues) > 0 {
		fmt.Fprintf(&b, ", null_values=%s", pyStrList(s.NullValues))
	}
	if len(s.SchemaOverrides) > 0 {
		fmt.Fprintf(&b, ", schema_overrides=%s", pyDict(s.SchemaOverrides))
	}
	b.WriteString(")")
	return b.String(), nil
}

func pyDict(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s: %s", pyStr(k), pyStr(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func emitManualInput(s *ManualInputSettings) (string, error) {
	var cols strings.Builder
	cols.WriteString("[")
	for i, c := range s.Columns {
		if i > 0 {
			cols.WriteString(", ")
		}
		fmt.Fprintf(&cols, "{%s: %s, %s: %s}", pyStr("name"), pyStr(c.Name), pyStr("data_type"), pyStr(string(c.DataType)))
	}
	cols.WriteString("]")

	var rows strings.Builder
	rows.WriteString("[")
	for i, row := range s.Rows {
		if i > 0 {
			rows.WriteString(", ")
		}
		rows.WriteString("[")
		for j, cell := range row {
			if j > 0 {
				rows.WriteString(", ")
			}
			rows.WriteString(pyLiteral(cell))
		}
		rows.WriteString("]")
	}
	rows.WriteString("]")
	return fmt.Sprintf("pl.DataFrame(columns=%s, rows=%s)", cols.String(), rows.String()), nil
}

func pyLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return pyStr(t)
	case bool:
		return pyBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func emitExternalData(s *ExternalDataSettings, fileGlobal string) (string, error) {
	return fmt.Sprintf("pl.external_data(content=%s, format=%s, delimiter=%s)",
		fileGlobal, pyStr(s.Format), pyStr(s.Delimiter)), nil
}

func emitFilter(s *FilterSettings, left string) (string, error) {
	if s.Advanced {
		return fmt.Sprintf("%s.filter(expr=%s)", left, pyStr(s.AdvancedExpr)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s.filter(column=%s, operator=%s", left, pyStr(s.Column), pyStr(string(s.Operator)))
	if s.Value != "" {
		fmt.Fprintf(&b, ", value=%s", pyStr(s.Value))
	}
	if s.Value2 != "" {
		fmt.Fprintf(&b, ", value2=%s", pyStr(s.Value2))
	}
	if len(s.Values) > 0 {
		fmt.Fprintf(&b, ", values=%s", pyStrList(s.Values))
	}
	b.WriteString(")")
	return b.String(), nil
}

func emitSelect(s *SelectSettings, left string) (string, error) {
	var cols strings.Builder
	cols.WriteString("[")
	for i, c := range s.Columns {
		if i > 0 {
			cols.WriteString(", ")
		}
		fmt.Fprintf(&cols, "{%s: %s, %s: %s, %s: %s, %s: %d",
			pyStr("old_name"), pyStr(c.OldName),
			pyStr("new_name"), pyStr(c.NewName),
			pyStr("keep"), pyBool(c.Keep),
			pyStr("position"), c.Position)
		if c.DataTypeChange {
			fmt.Fprintf(&cols, ", %s: %s, %s: %s", pyStr("data_type_change"), pyBool(true), pyStr("data_type"), pyStr(string(c.DataType)))
		}
		cols.WriteString("}")
	}
	cols.WriteString("]")
	return fmt.Sprintf("%s.select(columns=%s)", left, cols.String()), nil
}

func emitGroupBy(s *GroupBySettings, left string) (string, error) {
	var aggs strings.Builder
	aggs.WriteString("[")
	for i, a := range s.Aggregations {
		if i > 0 {
			aggs.WriteString(", ")
		}
		if a.GroupKey {
			fmt.Fprintf(&aggs, "{%s: %s, %s: %s}", pyStr("column"), pyStr(a.Column), pyStr("group_key"), pyBool(true))
			continue
		}
		fmt.Fprintf(&aggs, "{%s: %s, %s: %s, %s: %s", pyStr("column"), pyStr(a.Column), pyStr("new_name"), pyStr(a.NewName), pyStr("agg_func"), pyStr(a.AggFunc))
		if a.Quantile != nil {
			fmt.Fprintf(&aggs, ", %s: %s", pyStr("quantile"), strconv.FormatFloat(*a.Quantile, 'g', -1, 64))
		}
		aggs.WriteString("}")
	}
	aggs.WriteString("]")
	return fmt.Sprintf("%s.group_by(aggregations=%s)", left, aggs.String()), nil
}

func emitJoin(s *JoinSettings, left, right string) (string, error) {
	return fmt.Sprintf("%s.join(other=%s, how=%s, left_on=%s, right_on=%s, left_suffix=%s, right_suffix=%s)",
		left, right, pyStr(string(s.How)), pyStrList(s.LeftOn), pyStrList(s.RightOn), pyStr(s.LeftSuffix), pyStr(s.RightSuffix)), nil
}

func emitSort(s *SortSettings, left string) (string, error) {
	var keys strings.Builder
	keys.WriteString("[")
	for i, k := range s.Keys {
		if i > 0 {
			keys.WriteString(", ")
		}
		fmt.Fprintf(&keys, "{%s: %s, %s: %s}", pyStr("column"), pyStr(k.Column), pyStr("descending"), pyBool(k.Descending))
	}
	keys.WriteString("]")
	return fmt.Sprintf("%s.sort(keys=%s)", left, keys.String()), nil
}

func emitUnique(s *UniqueSettings, left string) (string, error) {
	return fmt.Sprintf("%s.unique(subset=%s, keep=%s)", left, pyStrList(s.Subset), pyStr(string(s.Keep))), nil
}

func emitHead(s *HeadSettings, left string) (string, error) {
	return fmt.Sprintf("%s.head(%d)", left, s.N), nil
}

func emitPivot(s *PivotSettings, left string) (string, error) {
	return fmt.Sprintf("%s.pivot(on=%s, index=%s, values=%s, agg_func=%s)",
		left, pyStrList(s.On), pyStrList(s.Index), pyStrList(s.Values), pyStr(s.AggFunc)), nil
}

func emitUnpivot(s *UnpivotSettings, left string) (string, error) {
	return fmt.Sprintf("%s.unpivot(index=%s, value_columns=%s)", left, pyStrList(s.IndexColumns), pyStrList(s.ValueColumns)), nil
}

// emitPolarsCode splices the user's source as-is (spec §4.F, "splice user
// source"). The supported grammar is the same method-chain expression
// grammar the engine itself emits (see interp/polarslite), not arbitrary
// Python: a deliberate scope restriction, since there is no sandboxed
// general-purpose Python runtime behind this engine's interpreter bridge.
func emitPolarsCode(s *PolarsCodeSettings, left string) (string, error) {
	src := strings.TrimSpace(s.Source)
	if src == "" {
		return left, nil
	}
	return src, nil
}

func emitOutput(s *OutputSettings, left string) (string, error) {
	switch s.Format {
	case FormatCSV:
		hasHeader := s.HasHeader
		delim := s.Delimiter
		if delim == "" {
			delim = ","
		}
		return fmt.Sprintf("%s.to_csv(separator=%s, has_header=%s)", left, pyStr(delim), pyBool(hasHeader)), nil
	case FormatParquet:
		// No Parquet writer exists in this interpreter's evaluator; the
		// engine captures the CSV bytes and tags them as a documented
		// stand-in rather than a true Parquet byte-sequence (see DESIGN.md).
		return fmt.Sprintf("%s.to_csv(separator=%s, has_header=%s)", left, pyStr(","), pyBool(true)), nil
	default:
		return "", fmt.Errorf("flow: unsupported output format %q", s.Format)
	}
}

func emitExternalOutput(s *ExternalOutputSettings, left string) (string, error) {
	return fmt.Sprintf("%s.to_csv(separator=%s, has_header=%s)", left, pyStr(","), pyBool(true)), nil
}
