package polarslite

import "encoding/json"

type builtinFunc func(callArgs) (Value, error)

var builtins = map[string]builtinFunc{
	"read_csv":      builtinReadCSV,
	"DataFrame":     builtinDataFrame,
	"external_data": builtinExternalData,
}

func dtypeFromName(name string) DType {
	switch name {
	case "Int64":
		return Int64
	case "Float64":
		return Float64
	case "Boolean":
		return Boolean
	case "Date":
		return Date
	case "Datetime":
		return Datetime
	case "String":
		return String
	default:
		return Unknown
	}
}

func overridesFromDict(d map[string]Value) map[string]DType {
	out := make(map[string]DType, len(d))
	for k, v := range d {
		if s, ok := v.(string); ok {
			out[k] = dtypeFromName(s)
		}
	}
	return out
}

func nullValuesFromList(l []Value) map[string]bool {
	out := make(map[string]bool, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}

func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

// builtinReadCSV implements pl.read_csv(content=, separator=, has_header=,
// skip_rows=, n_rows=, null_values=, schema_overrides=).
func builtinReadCSV(args callArgs) (Value, error) {
	content := args.str("content", "")
	if content == "" {
		return &Frame{}, nil
	}
	opts := defaultCSVOptions()
	opts.delimiter = delimiterRune(args.str("separator", ","))
	opts.hasHeader = args.boolean("has_header", true)
	opts.skipRows = args.integer("skip_rows", 0)
	if v, ok := args.kwargs["n_rows"]; ok {
		if f, ok := v.(float64); ok {
			n := int(f)
			opts.nRows = &n
		}
	}
	opts.nullValues = nullValuesFromList(args.list("null_values"))
	opts.overrides = overridesFromDict(args.dict("schema_overrides"))
	return parseCSV(content, opts)
}

// builtinExternalData implements pl.external_data(content=, format=,
// delimiter=) for named datasets pushed via setInputData.
func builtinExternalData(args callArgs) (Value, error) {
	content := args.str("content", "")
	format := args.str("format", "csv")
	switch format {
	case "json":
		return parseJSONRecords(content)
	default:
		opts := defaultCSVOptions()
		opts.delimiter = delimiterRune(args.str("delimiter", ","))
		return parseCSV(content, opts)
	}
}

func parseJSONRecords(content string) (Value, error) {
	if content == "" {
		return &Frame{}, nil
	}
	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(content), &records); err != nil {
		return nil, errf("json parse error: %v", err)
	}
	if len(records) == 0 {
		return &Frame{}, nil
	}
	var order []string
	seen := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	dtypes := make(map[string]DType, len(order))
	for _, name := range order {
		dtypes[name] = sniffJSONColumnType(records, name)
	}
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		row := make([]interface{}, len(order))
		for c, name := range order {
			row[c] = rec[name]
		}
		rows[i] = row
	}
	schema := make([]ColumnSchema, len(order))
	for i, name := range order {
		schema[i] = ColumnSchema{Name: name, DType: dtypes[name]}
	}
	return &Frame{Schema: schema, Rows: rows}, nil
}

func sniffJSONColumnType(records []map[string]interface{}, name string) DType {
	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case bool:
			return Boolean
		case float64:
			return Float64
		case string:
			return String
		}
	}
	return String
}

// builtinDataFrame implements pl.DataFrame(columns=[{name,data_type}],
// rows=[[...]]) for manual_input nodes (spec §6 manual_input settings).
func builtinDataFrame(args callArgs) (Value, error) {
	columns := args.list("columns")
	rows := args.list("rows")

	schema := make([]ColumnSchema, len(columns))
	for i, c := range columns {
		d, ok := c.(map[string]Value)
		if !ok {
			return nil, errf("DataFrame columns[%d] must be a dict", i)
		}
		name, _ := d["name"].(string)
		dtypeName, _ := d["data_type"].(string)
		schema[i] = ColumnSchema{Name: name, DType: dtypeFromName(dtypeName)}
	}

	out := make([][]interface{}, len(rows))
	for r, rowVal := range rows {
		rowList, ok := rowVal.([]Value)
		if !ok {
			return nil, errf("DataFrame rows[%d] must be a list", r)
		}
		cells := make([]interface{}, len(schema))
		for c := range schema {
			if c >= len(rowList) {
				cells[c] = nil
				continue
			}
			cells[c] = coerceValue(rowList[c], schema[c].DType)
		}
		out[r] = cells
	}
	return &Frame{Schema: schema, Rows: out}, nil
}

// coerceValue normalises a parsed literal (always float64/string/bool/nil
// from the evaluator) to the declared column type.
func coerceValue(v Value, dtype DType) interface{} {
	if v == nil {
		return nil
	}
	switch dtype {
	case Int64:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case Float64:
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return v
}
