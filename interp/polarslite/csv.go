package polarslite

import (
	"encoding/csv"
	"strconv"
	"strings"
)

type csvOptions struct {
	delimiter  rune
	hasHeader  bool
	skipRows   int
	nRows      *int
	nullValues map[string]bool
	overrides  map[string]DType
}

func defaultCSVOptions() csvOptions {
	return csvOptions{delimiter: ',', hasHeader: true, nullValues: map[string]bool{}, overrides: map[string]DType{}}
}

// parseCSV decodes UTF-8 CSV text into a Frame, inferring each column's
// type from its non-null values (spec §6, file payload format).
func parseCSV(content string, opts csvOptions) (*Frame, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = opts.delimiter
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errf("csv parse error: %v", err)
	}
	if opts.skipRows > 0 && opts.skipRows <= len(records) {
		records = records[opts.skipRows:]
	} else if opts.skipRows > len(records) {
		records = nil
	}
	if len(records) == 0 {
		return &Frame{}, nil
	}

	var header []string
	var dataRows [][]string
	if opts.hasHeader {
		header = records[0]
		dataRows = records[1:]
	} else {
		for i := range records[0] {
			header = append(header, "column_"+strconv.Itoa(i))
		}
		dataRows = records
	}

	if opts.nRows != nil && *opts.nRows < len(dataRows) {
		dataRows = dataRows[:*opts.nRows]
	}

	cellIsNull := func(s string) bool {
		return s == "" || opts.nullValues[s]
	}

	dtypes := make([]DType, len(header))
	for i, name := range header {
		if override, ok := opts.overrides[name]; ok {
			dtypes[i] = override
		} else {
			dtypes[i] = sniffColumnType(dataRows, i, cellIsNull)
		}
	}

	rows := make([][]interface{}, len(dataRows))
	for r, rec := range dataRows {
		row := make([]interface{}, len(header))
		for c := range header {
			var raw string
			if c < len(rec) {
				raw = rec[c]
			}
			if cellIsNull(raw) {
				row[c] = nil
				continue
			}
			row[c] = coerceCell(raw, dtypes[c])
		}
		rows[r] = row
	}

	schema := make([]ColumnSchema, len(header))
	for i, name := range header {
		schema[i] = ColumnSchema{Name: name, DType: dtypes[i]}
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

func sniffColumnType(rows [][]string, col int, isNull func(string) bool) DType {
	sawFloat, sawInt, sawBool, sawAny := false, false, false, false
	for _, rec := range rows {
		if col >= len(rec) {
			continue
		}
		v := rec[col]
		if isNull(v) {
			continue
		}
		sawAny = true
		switch {
		case v == "true" || v == "false":
			sawBool = true
		case isIntLiteral(v):
			sawInt = true
		case isFloatLiteral(v):
			sawFloat = true
		default:
			return String
		}
	}
	switch {
	case !sawAny:
		return String
	case sawBool && !sawInt && !sawFloat:
		return Boolean
	case sawFloat:
		return Float64
	case sawInt:
		return Int64
	default:
		return String
	}
}

func isIntLiteral(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloatLiteral(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func coerceCell(raw string, dtype DType) interface{} {
	switch dtype {
	case Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return raw
		}
		return v
	case Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		return v
	case Boolean:
		return raw == "true"
	default:
		return raw
	}
}

// toCSV re-serialises a Frame to CSV text (spec's output-node emission,
// "same options in reverse").
func (f *Frame) toCSV(delimiter rune, hasHeader bool) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = delimiter
	if hasHeader {
		if err := w.Write(f.columnNames()); err != nil {
			return "", err
		}
	}
	for _, row := range f.Rows {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = cellToString(cell)
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func cellToString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
