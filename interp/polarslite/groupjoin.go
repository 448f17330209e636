package polarslite

import (
	"math"
	"sort"
	"strings"
)

// methodGroupBy implements group_by + aggregate (spec §4.C group_by rule).
func methodGroupBy(f *Frame, args callArgs) (Value, error) {
	var keyCols []string
	type aggSpec struct {
		column  string
		newName string
		fn      string
		q       float64
	}
	var aggs []aggSpec
	for _, a := range args.list("aggregations") {
		d, ok := a.(map[string]Value)
		if !ok {
			continue
		}
		if groupKey, _ := d["group_key"].(bool); groupKey {
			col, _ := d["column"].(string)
			keyCols = append(keyCols, col)
			continue
		}
		col, _ := d["column"].(string)
		newName, _ := d["new_name"].(string)
		fn, _ := d["agg_func"].(string)
		q := 0.5
		if qv, ok := d["quantile"].(float64); ok {
			q = qv
		}
		aggs = append(aggs, aggSpec{column: col, newName: newName, fn: fn, q: q})
	}
	if len(aggs) == 0 {
		return nil, errf("group_by: no aggregation columns specified")
	}

	keyIdx := make([]int, len(keyCols))
	for i, k := range keyCols {
		keyIdx[i] = f.ColumnIndex(k)
	}
	aggIdx := make([]int, len(aggs))
	for i, a := range aggs {
		aggIdx[i] = f.ColumnIndex(a.column)
	}

	type group struct {
		keyVals []interface{}
		rows    [][]interface{}
	}
	order := []string{}
	groups := map[string]*group{}
	for _, row := range f.Rows {
		keyVals := make([]interface{}, len(keyIdx))
		var sb strings.Builder
		for i, idx := range keyIdx {
			keyVals[i] = row[idx]
			sb.WriteString(cellToString(row[idx]))
			sb.WriteByte('\x1f')
		}
		k := sb.String()
		g, ok := groups[k]
		if !ok {
			g = &group{keyVals: keyVals}
			groups[k] = g
			order = append(order, k)
		}
		g.rows = append(g.rows, row)
	}

	schema := make([]ColumnSchema, 0, len(keyCols)+len(aggs))
	for i, k := range keyCols {
		schema = append(schema, ColumnSchema{Name: k, DType: f.Schema[keyIdx[i]].DType})
	}
	for i, a := range aggs {
		srcType := f.Schema[aggIdx[i]].DType
		schema = append(schema, ColumnSchema{Name: a.newName, DType: aggregatedType(a.fn, srcType)})
	}

	rows := make([][]interface{}, 0, len(order))
	for _, k := range order {
		g := groups[k]
		row := make([]interface{}, 0, len(keyCols)+len(aggs))
		row = append(row, g.keyVals...)
		for i, a := range aggs {
			vals := columnValues(g.rows, aggIdx[i])
			row = append(row, applyAgg(a.fn, vals, a.q))
		}
		rows = append(rows, row)
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

func aggregatedType(fn string, src DType) DType {
	switch fn {
	case "count", "n_unique":
		return Int64
	case "first", "last":
		return src
	case "sum":
		if src == Int64 || src == Float64 {
			return src
		}
		return Float64
	case "min", "max":
		if src == Int64 || src == Float64 {
			return src
		}
		return Float64
	case "mean", "median", "std", "var", "quantile":
		return Float64
	default:
		return src
	}
}

func columnValues(rows [][]interface{}, idx int) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r[idx]
	}
	return out
}

func applyAgg(fn string, vals []interface{}, quantile float64) interface{} {
	nonNull := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}
	switch fn {
	case "count":
		return int64(len(nonNull))
	case "n_unique":
		seen := map[string]bool{}
		for _, v := range nonNull {
			seen[cellToString(v)] = true
		}
		return int64(len(seen))
	case "first":
		if len(vals) == 0 {
			return nil
		}
		return vals[0]
	case "last":
		if len(vals) == 0 {
			return nil
		}
		return vals[len(vals)-1]
	case "sum":
		return sumValues(nonNull)
	case "mean":
		return meanValues(nonNull)
	case "median":
		return quantileValues(nonNull, 0.5)
	case "min":
		return minMaxValues(nonNull, true)
	case "max":
		return minMaxValues(nonNull, false)
	case "std":
		return math.Sqrt(varianceValues(nonNull))
	case "var":
		return varianceValues(nonNull)
	case "quantile":
		return quantileValues(nonNull, quantile)
	default:
		return nil
	}
}

func allIntegral(vals []interface{}) bool {
	for _, v := range vals {
		if _, ok := v.(int64); !ok {
			return false
		}
	}
	return true
}

func sumValues(vals []interface{}) interface{} {
	if len(vals) == 0 {
		return int64(0)
	}
	if allIntegral(vals) {
		var sum int64
		for _, v := range vals {
			sum += v.(int64)
		}
		return sum
	}
	var sum float64
	for _, v := range vals {
		f, _ := asFloat(v)
		sum += f
	}
	return sum
}

func meanValues(vals []interface{}) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		f, _ := asFloat(v)
		sum += f
	}
	return sum / float64(len(vals))
}

func varianceValues(vals []interface{}) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := meanValues(vals)
	var sumSq float64
	for _, v := range vals {
		f, _ := asFloat(v)
		sumSq += (f - mean) * (f - mean)
	}
	return sumSq / float64(len(vals)-1)
}

func quantileValues(vals []interface{}, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	nums := make([]float64, len(vals))
	for i, v := range vals {
		nums[i], _ = asFloat(v)
	}
	sort.Float64s(nums)
	if len(nums) == 1 {
		return nums[0]
	}
	pos := q * float64(len(nums)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return nums[lo]
	}
	frac := pos - float64(lo)
	return nums[lo]*(1-frac) + nums[hi]*frac
}

func minMaxValues(vals []interface{}, wantMin bool) interface{} {
	if len(vals) == 0 {
		return nil
	}
	best := vals[0]
	for _, v := range vals[1:] {
		c := compareValues(v, best)
		if (wantMin && c < 0) || (!wantMin && c > 0) {
			best = v
		}
	}
	return best
}

// methodJoin implements the join rule of spec §4.C: inner/left/right/
// full/outer project left columns then right columns minus right keys,
// suffixing non-key name collisions; semi/anti return the left schema.
func methodJoin(f *Frame, args callArgs) (Value, error) {
	otherVal, ok := args.kwargs["other"]
	if !ok {
		return nil, errf("join: missing other frame")
	}
	other, ok := otherVal.(*Frame)
	if !ok {
		return nil, errf("join: other must be a frame")
	}
	how := args.str("how", "inner")
	var leftOn, rightOn []string
	for _, v := range args.list("left_on") {
		if s, ok := v.(string); ok {
			leftOn = append(leftOn, s)
		}
	}
	for _, v := range args.list("right_on") {
		if s, ok := v.(string); ok {
			rightOn = append(rightOn, s)
		}
	}
	leftSuffix := args.str("left_suffix", "_left")
	rightSuffix := args.str("right_suffix", "_right")

	if how == "semi" || how == "anti" {
		return joinSemiAnti(f, other, leftOn, rightOn, how == "semi")
	}

	leftKeyIdx := mapColumnIndexes(f, leftOn)
	rightKeyIdx := mapColumnIndexes(other, rightOn)
	rightKeySet := map[int]bool{}
	for _, idx := range rightKeyIdx {
		rightKeySet[idx] = true
	}

	rightCollision := map[string]bool{}
	for i, rc := range other.Schema {
		if rightKeySet[i] {
			continue
		}
		for _, lc := range f.Schema {
			if lc.Name == rc.Name {
				rightCollision[rc.Name] = true
			}
		}
	}

	schema := make([]ColumnSchema, 0, len(f.Schema)+len(other.Schema))
	for _, lc := range f.Schema {
		name := lc.Name
		if rightCollision[name] {
			name += leftSuffix
		}
		schema = append(schema, ColumnSchema{Name: name, DType: lc.DType})
	}
	rightOutIdx := []int{}
	for i, rc := range other.Schema {
		if rightKeySet[i] {
			continue
		}
		rightOutIdx = append(rightOutIdx, i)
		name := rc.Name
		if rightCollision[name] {
			name += rightSuffix
		}
		schema = append(schema, ColumnSchema{Name: name, DType: rc.DType})
	}

	rightByKey := map[string][][]interface{}{}
	for _, row := range other.Rows {
		k := rowKey(row, rightKeyIdx)
		rightByKey[k] = append(rightByKey[k], row)
	}

	var rows [][]interface{}
	matchedRightKeys := map[string]bool{}
	for _, lrow := range f.Rows {
		k := rowKey(lrow, leftKeyIdx)
		matches := rightByKey[k]
		if len(matches) > 0 {
			matchedRightKeys[k] = true
			for _, rrow := range matches {
				rows = append(rows, joinRow(lrow, rrow, rightOutIdx))
			}
		} else if how == "left" || how == "full" || how == "outer" {
			rows = append(rows, joinRow(lrow, nil, rightOutIdx))
		}
	}
	if how == "right" || how == "full" || how == "outer" {
		for _, rrow := range other.Rows {
			k := rowKey(rrow, rightKeyIdx)
			if matchedRightKeys[k] {
				continue
			}
			blankLeft := make([]interface{}, len(f.Schema))
			rows = append(rows, joinRow(blankLeft, rrow, rightOutIdx))
		}
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

func joinSemiAnti(f, other *Frame, leftOn, rightOn []string, semi bool) (*Frame, error) {
	leftKeyIdx := mapColumnIndexes(f, leftOn)
	rightKeyIdx := mapColumnIndexes(other, rightOn)
	rightKeys := map[string]bool{}
	for _, row := range other.Rows {
		rightKeys[rowKey(row, rightKeyIdx)] = true
	}
	var rows [][]interface{}
	for _, row := range f.Rows {
		present := rightKeys[rowKey(row, leftKeyIdx)]
		if present == semi {
			rows = append(rows, row)
		}
	}
	return &Frame{Schema: f.Schema, Rows: rows}, nil
}

func mapColumnIndexes(f *Frame, names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = f.ColumnIndex(n)
	}
	return out
}

func rowKey(row []interface{}, idx []int) string {
	var sb strings.Builder
	for _, i := range idx {
		if i < 0 || i >= len(row) {
			sb.WriteByte('\x00')
			continue
		}
		sb.WriteString(cellToString(row[i]))
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

func joinRow(lrow, rrow []interface{}, rightOutIdx []int) []interface{} {
	out := make([]interface{}, 0, len(lrow)+len(rightOutIdx))
	out = append(out, lrow...)
	for _, idx := range rightOutIdx {
		if rrow == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, rrow[idx])
	}
	return out
}
