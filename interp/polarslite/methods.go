package polarslite

import (
	"sort"
	"strconv"
	"strings"
)

type methodFunc func(*Frame, callArgs) (Value, error)

var frameMethods = map[string]methodFunc{
	"filter":  methodFilter,
	"select":  methodSelect,
	"group_by": methodGroupBy,
	"join":    methodJoin,
	"sort":    methodSort,
	"unique":  methodUnique,
	"head":    methodHead,
	"unpivot": methodUnpivot,
	"pivot":   methodPivot,
	"to_csv":  methodToCSV,
}

// methodFilter implements basic-mode filter (spec §4.F); advanced-mode
// predicates are evaluated separately by filterByExpr.
func methodFilter(f *Frame, args callArgs) (Value, error) {
	if expr := args.str("expr", ""); expr != "" {
		return filterByExpr(f, expr)
	}
	column := args.str("column", "")
	op := args.str("operator", "")
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return nil, errf("filter: unknown column %q", column)
	}
	value := args.str("value", "")
	value2 := args.str("value2", "")
	var values []string
	for _, v := range args.list("values") {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}

	var rows [][]interface{}
	for _, row := range f.Rows {
		if matchFilter(row[idx], op, value, value2, values) {
			rows = append(rows, row)
		}
	}
	return &Frame{Schema: f.Schema, Rows: rows}, nil
}

func matchFilter(cell interface{}, op, value, value2 string, values []string) bool {
	switch op {
	case "is_null":
		return cell == nil
	case "is_not_null":
		return cell != nil
	}
	if cell == nil {
		return false
	}
	switch op {
	case "equals":
		return compareCellString(cell) == value
	case "not_equals":
		return compareCellString(cell) != value
	case "greater_than":
		return compareNumeric(cell, value) > 0
	case "greater_than_equals":
		return compareNumeric(cell, value) >= 0
	case "less_than":
		return compareNumeric(cell, value) < 0
	case "less_than_equals":
		return compareNumeric(cell, value) <= 0
	case "contains":
		return strings.Contains(compareCellString(cell), value)
	case "not_contains":
		return !strings.Contains(compareCellString(cell), value)
	case "starts_with":
		return strings.HasPrefix(compareCellString(cell), value)
	case "ends_with":
		return strings.HasSuffix(compareCellString(cell), value)
	case "in":
		return containsString(values, compareCellString(cell))
	case "not_in":
		return !containsString(values, compareCellString(cell))
	case "between":
		return compareNumeric(cell, value) >= 0 && compareNumeric(cell, value2) <= 0
	default:
		return false
	}
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func compareCellString(cell interface{}) string {
	return cellToString(cell)
}

// compareNumeric compares cell (int64/float64) against a string literal
// parsed as a number; non-numeric cells compare as equal-or-not via string
// ordering so `contains`-style misuse never panics.
func compareNumeric(cell interface{}, literal string) int {
	cf, cok := asFloat(cell)
	lf, lerr := parseFloatLoose(literal)
	if cok && lerr == nil {
		switch {
		case cf < lf:
			return -1
		case cf > lf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(compareCellString(cell), literal)
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func parseFloatLoose(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// methodSelect implements keep/rename/reorder/retype (spec §4.C select rule).
func methodSelect(f *Frame, args callArgs) (Value, error) {
	columns := args.list("columns")
	type plan struct {
		oldName  string
		newName  string
		position int
		retype   bool
		dtype    DType
	}
	var plans []plan
	for _, c := range columns {
		d, ok := c.(map[string]Value)
		if !ok {
			continue
		}
		if keep, _ := d["keep"].(bool); !keep {
			continue
		}
		oldName, _ := d["old_name"].(string)
		if f.ColumnIndex(oldName) < 0 {
			continue // unknown input columns are dropped
		}
		newName, _ := d["new_name"].(string)
		if newName == "" {
			newName = oldName
		}
		position := 0
		if p, ok := d["position"].(float64); ok {
			position = int(p)
		}
		retype, _ := d["data_type_change"].(bool)
		dtypeName, _ := d["data_type"].(string)
		plans = append(plans, plan{oldName: oldName, newName: newName, position: position, retype: retype, dtype: dtypeFromName(dtypeName)})
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].position < plans[j].position })

	schema := make([]ColumnSchema, len(plans))
	srcIdx := make([]int, len(plans))
	for i, p := range plans {
		idx := f.ColumnIndex(p.oldName)
		srcIdx[i] = idx
		dtype := f.Schema[idx].DType
		if p.retype {
			dtype = p.dtype
		}
		schema[i] = ColumnSchema{Name: p.newName, DType: dtype}
	}
	rows := make([][]interface{}, len(f.Rows))
	for r, row := range f.Rows {
		out := make([]interface{}, len(plans))
		for i, idx := range srcIdx {
			out[i] = row[idx]
		}
		rows[r] = out
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

func methodHead(f *Frame, args callArgs) (Value, error) {
	n := args.integer("n", len(args.positional))
	if len(args.positional) > 0 {
		if v, ok := args.positional[0].(float64); ok {
			n = int(v)
		}
	}
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	rows := make([][]interface{}, n)
	copy(rows, f.Rows[:n])
	return &Frame{Schema: f.Schema, Rows: rows}, nil
}

func methodSort(f *Frame, args callArgs) (Value, error) {
	type key struct {
		idx  int
		desc bool
	}
	var keys []key
	for _, k := range args.list("keys") {
		d, ok := k.(map[string]Value)
		if !ok {
			continue
		}
		name, _ := d["column"].(string)
		idx := f.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		desc, _ := d["descending"].(bool)
		keys = append(keys, key{idx: idx, desc: desc})
	}
	rows := append([][]interface{}{}, f.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareValues(rows[i][k.idx], rows[j][k.idx])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return &Frame{Schema: f.Schema, Rows: rows}, nil
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(cellToString(a), cellToString(b))
}

func methodUnique(f *Frame, args callArgs) (Value, error) {
	var subset []int
	for _, v := range args.list("subset") {
		if s, ok := v.(string); ok {
			if idx := f.ColumnIndex(s); idx >= 0 {
				subset = append(subset, idx)
			}
		}
	}
	if len(subset) == 0 {
		for i := range f.Schema {
			subset = append(subset, i)
		}
	}
	keep := args.str("keep", "any")

	keyOf := func(row []interface{}) string {
		var sb strings.Builder
		for _, idx := range subset {
			sb.WriteString(cellToString(row[idx]))
			sb.WriteByte('\x1f')
		}
		return sb.String()
	}

	switch keep {
	case "last":
		last := map[string][]interface{}{}
		var order []string
		for _, row := range f.Rows {
			k := keyOf(row)
			if _, seen := last[k]; !seen {
				order = append(order, k)
			}
			last[k] = row
		}
		rows := make([][]interface{}, 0, len(order))
		for _, k := range order {
			rows = append(rows, last[k])
		}
		return &Frame{Schema: f.Schema, Rows: rows}, nil
	case "none":
		counts := map[string]int{}
		for _, row := range f.Rows {
			counts[keyOf(row)]++
		}
		var rows [][]interface{}
		for _, row := range f.Rows {
			if counts[keyOf(row)] == 1 {
				rows = append(rows, row)
			}
		}
		return &Frame{Schema: f.Schema, Rows: rows}, nil
	default: // "first" and "any" both keep first occurrence deterministically
		seen := map[string]bool{}
		var rows [][]interface{}
		for _, row := range f.Rows {
			k := keyOf(row)
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, row)
		}
		return &Frame{Schema: f.Schema, Rows: rows}, nil
	}
}

func methodToCSV(f *Frame, args callArgs) (Value, error) {
	delim := delimiterRune(args.str("separator", ","))
	hasHeader := args.boolean("has_header", true)
	return f.toCSV(delim, hasHeader)
}
