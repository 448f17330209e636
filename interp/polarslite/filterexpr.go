package polarslite

import (
	"strings"
)

// filterByExpr evaluates an advanced-mode filter predicate spliced in by
// the user (spec §4.F, "in advanced mode, splice the user-provided
// expression as-is"). The supported grammar is deliberately small:
// `<column> <op> <literal>` clauses joined by "and"/"or", e.g.
// `val > 9 and region == "A"`. This is not arbitrary Python, but it is
// enough to express the predicates the basic mode itself can't.
func filterByExpr(f *Frame, exprText string) (*Frame, error) {
	clauses, joiners, err := splitBoolExpr(exprText)
	if err != nil {
		return nil, err
	}
	var rows [][]interface{}
	for _, row := range f.Rows {
		ok, err := evalClauses(f, row, clauses, joiners)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return &Frame{Schema: f.Schema, Rows: rows}, nil
}

type boolClause struct {
	column string
	op     string
	value  string
}

var compareOps = []string{"==", "!=", ">=", "<=", ">", "<"}

func splitBoolExpr(text string) ([]boolClause, []string, error) {
	var joiners, parts []string
	rest := text
	for {
		ai, oi := strings.Index(rest, " and "), strings.Index(rest, " or ")
		if ai < 0 && oi < 0 {
			break
		}
		sep := " and "
		if ai < 0 || (oi >= 0 && oi < ai) {
			ai, sep = oi, " or "
		}
		parts = append(parts, rest[:ai])
		joiners = append(joiners, strings.TrimSpace(sep))
		rest = rest[ai+len(sep):]
	}
	parts = append(parts, rest)
	clauses := make([]boolClause, 0, len(parts))
	for _, p := range parts {
		c, err := parseBoolClause(p)
		if err != nil {
			return nil, nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, joiners, nil
}

func parseBoolClause(text string) (boolClause, error) {
	text = strings.TrimSpace(text)
	for _, op := range compareOps {
		if idx := strings.Index(text, op); idx >= 0 {
			column := strings.TrimSpace(text[:idx])
			value := strings.TrimSpace(text[idx+len(op):])
			value = strings.Trim(value, `"'`)
			return boolClause{column: column, op: op, value: value}, nil
		}
	}
	return boolClause{}, errf("unsupported filter expression clause %q", text)
}

func evalClauses(f *Frame, row []interface{}, clauses []boolClause, joiners []string) (bool, error) {
	if len(clauses) == 0 {
		return true, nil
	}
	result, err := evalClause(f, row, clauses[0])
	if err != nil {
		return false, err
	}
	for i, j := range joiners {
		next, err := evalClause(f, row, clauses[i+1])
		if err != nil {
			return false, err
		}
		if j == "and" {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result, nil
}

func evalClause(f *Frame, row []interface{}, c boolClause) (bool, error) {
	idx := f.ColumnIndex(c.column)
	if idx < 0 {
		return false, errf("filter expression references unknown column %q", c.column)
	}
	cell := row[idx]
	switch c.op {
	case "==":
		return matchFilter(cell, "equals", c.value, "", nil), nil
	case "!=":
		return matchFilter(cell, "not_equals", c.value, "", nil), nil
	case ">":
		return matchFilter(cell, "greater_than", c.value, "", nil), nil
	case ">=":
		return matchFilter(cell, "greater_than_equals", c.value, "", nil), nil
	case "<":
		return matchFilter(cell, "less_than", c.value, "", nil), nil
	case "<=":
		return matchFilter(cell, "less_than_equals", c.value, "", nil), nil
	default:
		return false, errf("unsupported operator %q", c.op)
	}
}
