package flow

// Settings is the tagged-union payload carried by a Node. Each NodeType has
// exactly one concrete Settings implementation; the engine and schema
// inference switch on the node's NodeType folded by canonical() rather than
// on the concrete settings type, so that alias types (head/sample,
// preview/explore_data) share a branch.
//
// Implementations should be plain data (JSON-serialisable) with no
// behaviour beyond NodeTag and IsSetup, per the "sum type with per-variant
// payload records" guidance (spec §9).
type Settings interface {
	// NodeTag identifies which NodeType this settings payload belongs to.
	NodeTag() NodeType

	// IsSetup reports whether the node has enough configuration to
	// participate in an execution pass. An ancestor that returns false
	// aborts the pass with UpstreamUnconfiguredError (spec §4.F step 2).
	IsSetup() bool
}

// ReadCSVSettings configures a read_csv source node (spec §6, "File payload
// format").
type ReadCSVSettings struct {
	// FileContent is the inline CSV text when the payload is below the
	// Large-Content Store's inline threshold. Above the threshold the
	// Flow Graph Model instead routes the bytes through the store and
	// leaves this field empty; the engine resolves the content at
	// execution time via Model.FileContent.
	FileContent string `json:"file_content,omitempty"`
	FileName    string `json:"file_name,omitempty"`

	Delimiter       string            `json:"delimiter"`
	HasHeader       bool              `json:"has_header"`
	Encoding        string            `json:"encoding"`
	SkipRows        int               `json:"skip_rows"`
	NRows           *int              `json:"n_rows,omitempty"`
	NullValues      []string          `json:"null_values,omitempty"`
	SchemaOverrides map[string]string `json:"schema_overrides,omitempty"`
}

func (s *ReadCSVSettings) NodeTag() NodeType { return TypeReadCSV }
func (s *ReadCSVSettings) IsSetup() bool     { return s.FileName != "" || s.FileContent != "" }

func defaultReadCSVSettings() *ReadCSVSettings {
	return &ReadCSVSettings{Delimiter: ",", HasHeader: true, Encoding: "utf8"}
}

// ManualColumn declares one column of a manual_input node.
type ManualColumn struct {
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
}

// ManualInputSettings configures a manual_input source node: a literal,
// user-typed table with a declared schema.
type ManualInputSettings struct {
	Columns []ManualColumn  `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

func (s *ManualInputSettings) NodeTag() NodeType { return TypeManualInput }
func (s *ManualInputSettings) IsSetup() bool      { return len(s.Columns) > 0 }

func defaultManualInputSettings() *ManualInputSettings {
	return &ManualInputSettings{Columns: []ManualColumn{}, Rows: [][]interface{}{}}
}

// ExternalDataSettings configures an external-data source node: a named
// dataset pushed in by the host via setInputData before execution.
type ExternalDataSettings struct {
	InputName string `json:"input_name"`
	Format    string `json:"format"` // "csv" (default) or "json" (an array of records)
	Delimiter string `json:"delimiter"`
}

func (s *ExternalDataSettings) NodeTag() NodeType { return TypeExternalData }
func (s *ExternalDataSettings) IsSetup() bool      { return s.InputName != "" }

func defaultExternalDataSettings() *ExternalDataSettings {
	return &ExternalDataSettings{Format: "csv", Delimiter: ","}
}

// FilterOp is the closed set of basic-mode filter operators (spec §4.F).
type FilterOp string

const (
	OpEquals      FilterOp = "equals"
	OpNotEquals   FilterOp = "not_equals"
	OpGreaterThan FilterOp = "greater_than"
	OpGreaterEq   FilterOp = "greater_than_equals"
	OpLessThan    FilterOp = "less_than"
	OpLessEq      FilterOp = "less_than_equals"
	OpContains    FilterOp = "contains"
	OpNotContains FilterOp = "not_contains"
	OpStartsWith  FilterOp = "starts_with"
	OpEndsWith    FilterOp = "ends_with"
	OpIsNull      FilterOp = "is_null"
	OpIsNotNull   FilterOp = "is_not_null"
	OpIn          FilterOp = "in"
	OpNotIn       FilterOp = "not_in"
	OpBetween     FilterOp = "between"
)

// FilterSettings configures a filter node, either in basic (tag-driven) or
// advanced (user-expression) mode.
type FilterSettings struct {
	Advanced bool `json:"advanced"`

	// Basic-mode fields, used when Advanced == false.
	Column   string   `json:"column,omitempty"`
	Operator FilterOp `json:"operator,omitempty"`
	Value    string   `json:"value,omitempty"`
	Value2   string   `json:"value2,omitempty"` // upper bound for "between"
	Values   []string `json:"values,omitempty"` // for "in" / "not_in"

	// AdvancedExpr, used when Advanced == true: a predicate expression in
	// this engine's expression DSL (see interp/polarslite), spliced
	// as-is into the emitted source.
	AdvancedExpr string `json:"advanced_expr,omitempty"`
}

func (s *FilterSettings) NodeTag() NodeType { return TypeFilter }
func (s *FilterSettings) IsSetup() bool {
	if s.Advanced {
		return s.AdvancedExpr != ""
	}
	return s.Column != "" && s.Operator != ""
}

func defaultFilterSettings() *FilterSettings {
	return &FilterSettings{Operator: OpEquals}
}

// SelectColumn is one entry of a select node's column list.
type SelectColumn struct {
	OldName        string   `json:"old_name"`
	NewName        string   `json:"new_name"`
	Keep           bool     `json:"keep"`
	Position       int      `json:"position"`
	DataTypeChange bool     `json:"data_type_change"`
	DataType       DataType `json:"data_type,omitempty"`
}

// SelectSettings configures a select node: keep/rename/reorder/retype.
type SelectSettings struct {
	Columns []SelectColumn `json:"columns"`
}

func (s *SelectSettings) NodeTag() NodeType { return TypeSelect }
func (s *SelectSettings) IsSetup() bool      { return len(s.Columns) > 0 }

func defaultSelectSettings() *SelectSettings {
	return &SelectSettings{Columns: []SelectColumn{}}
}

// Aggregation is one aggregated-output entry of a group_by node. An entry
// with GroupKey == true is a grouping key rather than an aggregation;
// schema inference and code emission both use GroupKey, not AggFunc, as
// that marker.
type Aggregation struct {
	Column   string   `json:"column"`
	NewName  string   `json:"new_name"`
	AggFunc  string   `json:"agg_func"` // count|n_unique|first|last|sum|mean|median|min|max|std|var|quantile
	Quantile *float64 `json:"quantile,omitempty"`
	GroupKey bool     `json:"group_key"`
}

// GroupBySettings configures a group_by node.
type GroupBySettings struct {
	Aggregations []Aggregation `json:"aggregations"`
}

func (s *GroupBySettings) NodeTag() NodeType { return TypeGroupBy }
func (s *GroupBySettings) IsSetup() bool {
	for _, a := range s.Aggregations {
		if !a.GroupKey {
			return true
		}
	}
	return false
}

func defaultGroupBySettings() *GroupBySettings {
	return &GroupBySettings{Aggregations: []Aggregation{}}
}

// JoinHow is the closed set of join strategies.
type JoinHow string

const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
	JoinRight JoinHow = "right"
	JoinFull  JoinHow = "full"
	JoinOuter JoinHow = "outer"
	JoinSemi  JoinHow = "semi"
	JoinAnti  JoinHow = "anti"
)

// JoinSettings configures a join node (binary operator).
type JoinSettings struct {
	How         JoinHow  `json:"how"`
	LeftOn      []string `json:"left_on"`
	RightOn     []string `json:"right_on"`
	LeftSuffix  string   `json:"left_suffix"`
	RightSuffix string   `json:"right_suffix"`
}

func (s *JoinSettings) NodeTag() NodeType { return TypeJoin }
func (s *JoinSettings) IsSetup() bool {
	return s.How != "" && len(s.LeftOn) > 0 && len(s.RightOn) == len(s.LeftOn)
}

func defaultJoinSettings() *JoinSettings {
	return &JoinSettings{How: JoinInner, LeftSuffix: "_left", RightSuffix: "_right"}
}

// SortKey is one key of a multi-key sort.
type SortKey struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// SortSettings configures a sort node.
type SortSettings struct {
	Keys []SortKey `json:"keys"`
}

func (s *SortSettings) NodeTag() NodeType { return TypeSort }
func (s *SortSettings) IsSetup() bool      { return len(s.Keys) > 0 }

func defaultSortSettings() *SortSettings { return &SortSettings{Keys: []SortKey{}} }

// UniqueKeep is the closed set of tie-break rules for a unique node.
type UniqueKeep string

const (
	KeepFirst UniqueKeep = "first"
	KeepLast  UniqueKeep = "last"
	KeepNone  UniqueKeep = "none"
	KeepAny   UniqueKeep = "any"
)

// UniqueSettings configures a unique (deduplicate) node.
type UniqueSettings struct {
	Subset []string   `json:"subset,omitempty"`
	Keep   UniqueKeep `json:"keep"`
}

func (s *UniqueSettings) NodeTag() NodeType { return TypeUnique }
func (s *UniqueSettings) IsSetup() bool      { return true }

func defaultUniqueSettings() *UniqueSettings { return &UniqueSettings{Keep: KeepAny} }

// HeadSettings configures a head/sample node: take the first N rows.
type HeadSettings struct {
	N      int  `json:"n"`
	Sample bool `json:"sample"`
}

func (s *HeadSettings) NodeTag() NodeType { return TypeHead }
func (s *HeadSettings) IsSetup() bool      { return s.N > 0 }

func defaultHeadSettings() *HeadSettings { return &HeadSettings{N: 100} }

// PivotSettings configures a pivot node. Schema inference always returns
// null for pivot (spec §4.C) because the output columns are data-dependent.
type PivotSettings struct {
	On     []string `json:"on"`
	Index  []string `json:"index"`
	Values []string `json:"values"`
	AggFunc string  `json:"agg_func"`
}

func (s *PivotSettings) NodeTag() NodeType { return TypePivot }
func (s *PivotSettings) IsSetup() bool      { return len(s.On) > 0 }

func defaultPivotSettings() *PivotSettings { return &PivotSettings{AggFunc: "first"} }

// UnpivotSettings configures an unpivot node.
type UnpivotSettings struct {
	IndexColumns []string `json:"index_columns"`
	ValueColumns []string `json:"value_columns,omitempty"` // empty means "all remaining"
}

func (s *UnpivotSettings) NodeTag() NodeType { return TypeUnpivot }
func (s *UnpivotSettings) IsSetup() bool      { return len(s.IndexColumns) > 0 }

func defaultUnpivotSettings() *UnpivotSettings {
	return &UnpivotSettings{IndexColumns: []string{}}
}

// PolarsCodeSettings configures a polars_code node: raw user source emitted
// as-is as the single expression bound to the node's output. The source is
// not wrapped in a function; it reaches its inputs through their binding
// names in the shared interpreter namespace.
type PolarsCodeSettings struct {
	Source string `json:"source"`
}

func (s *PolarsCodeSettings) NodeTag() NodeType { return TypePolarsCode }
func (s *PolarsCodeSettings) IsSetup() bool      { return s.Source != "" }

func defaultPolarsCodeSettings() *PolarsCodeSettings { return &PolarsCodeSettings{} }

// PreviewSettings configures a preview/explore_data node. It has no
// user-facing configuration; it always passes its input through unchanged.
type PreviewSettings struct{}

func (s *PreviewSettings) NodeTag() NodeType { return TypePreview }
func (s *PreviewSettings) IsSetup() bool      { return true }

func defaultPreviewSettings() *PreviewSettings { return &PreviewSettings{} }

// OutputFormat is the closed set of sink formats for an output node.
type OutputFormat string

const (
	FormatCSV     OutputFormat = "csv"
	FormatParquet OutputFormat = "parquet"
)

// OutputSettings configures an output node: sink to CSV or Parquet bytes,
// captured for the host rather than written to disk (spec §4.F).
type OutputSettings struct {
	Format    OutputFormat `json:"format"`
	Delimiter string       `json:"delimiter,omitempty"`
	HasHeader bool         `json:"has_header"`
	FileName  string       `json:"file_name,omitempty"`
}

func (s *OutputSettings) NodeTag() NodeType { return TypeOutput }
func (s *OutputSettings) IsSetup() bool      { return s.Format != "" }

func defaultOutputSettings() *OutputSettings {
	return &OutputSettings{Format: FormatCSV, Delimiter: ",", HasHeader: true, FileName: "output.csv"}
}

// ExternalOutputSettings configures an external-output node: like output,
// but the destination name is host-defined rather than a file name.
type ExternalOutputSettings struct {
	OutputName string       `json:"output_name"`
	Format     OutputFormat `json:"format"`
}

func (s *ExternalOutputSettings) NodeTag() NodeType { return TypeExternalOutput }
func (s *ExternalOutputSettings) IsSetup() bool      { return s.OutputName != "" }

func defaultExternalOutputSettings() *ExternalOutputSettings {
	return &ExternalOutputSettings{Format: FormatCSV}
}

// defaultSettings builds the zero-value settings record for a freshly
// minted node of the given type (Model.addNode, spec §4.D).
func defaultSettings(t NodeType) Settings {
	switch t.canonical() {
	case TypeReadCSV:
		return defaultReadCSVSettings()
	case TypeManualInput:
		return defaultManualInputSettings()
	case TypeExternalData:
		return defaultExternalDataSettings()
	case TypeFilter:
		return defaultFilterSettings()
	case TypeSelect:
		return defaultSelectSettings()
	case TypeGroupBy:
		return defaultGroupBySettings()
	case TypeJoin:
		return defaultJoinSettings()
	case TypeSort:
		return defaultSortSettings()
	case TypeUnique:
		return defaultUniqueSettings()
	case TypeHead:
		return defaultHeadSettings()
	case TypePivot:
		return defaultPivotSettings()
	case TypeUnpivot:
		return defaultUnpivotSettings()
	case TypePolarsCode:
		return defaultPolarsCodeSettings()
	case TypePreview:
		return defaultPreviewSettings()
	case TypeOutput:
		return defaultOutputSettings()
	case TypeExternalOutput:
		return defaultExternalOutputSettings()
	default:
		return nil
	}
}
