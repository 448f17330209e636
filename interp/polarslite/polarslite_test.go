package polarslite

import (
	"context"
	"testing"
)

func mustFrame(t *testing.T, v Value) *Frame {
	t.Helper()
	f, ok := v.(*Frame)
	if !ok {
		t.Fatalf("expected *Frame, got %T", v)
	}
	return f
}

func TestFilterThenPreview(t *testing.T) {
	e := NewEvaluator()
	source := `df_1 = pl.read_csv(content="id,val
1,10
2,20
3,5
", separator=",", has_header=True)
df_2 = df_1.filter(column="val", operator="greater_than", value="9")
`
	if err := e.Exec(context.Background(), source); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := e.Eval(context.Background(), "df_2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f := mustFrame(t, v)
	if len(f.Schema) != 2 || f.Schema[0].Name != "id" || f.Schema[1].Name != "val" {
		t.Fatalf("unexpected schema: %+v", f.Schema)
	}
	if f.Schema[0].DType != Int64 || f.Schema[1].DType != Int64 {
		t.Fatalf("unexpected dtypes: %+v", f.Schema)
	}
	if len(f.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(f.Rows), f.Rows)
	}
	if f.Rows[0][0] != int64(1) || f.Rows[0][1] != int64(10) {
		t.Errorf("row0 = %+v", f.Rows[0])
	}
	if f.Rows[1][0] != int64(2) || f.Rows[1][1] != int64(20) {
		t.Errorf("row1 = %+v", f.Rows[1])
	}
}

func TestGroupBySum(t *testing.T) {
	e := NewEvaluator()
	source := `df_1 = pl.DataFrame(columns=[{"name": "region", "data_type": "String"}, {"name": "amount", "data_type": "Int64"}], rows=[["A", 100], ["B", 200], ["A", 150]])
df_2 = df_1.group_by(aggregations=[{"column": "region", "group_key": True}, {"column": "amount", "new_name": "total", "agg_func": "sum"}])
`
	if err := e.Exec(context.Background(), source); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := e.Eval(context.Background(), "df_2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f := mustFrame(t, v)
	if len(f.Schema) != 2 || f.Schema[0].Name != "region" || f.Schema[1].Name != "total" {
		t.Fatalf("unexpected schema: %+v", f.Schema)
	}
	if f.Schema[1].DType != Int64 {
		t.Fatalf("expected total to be Int64, got %v", f.Schema[1].DType)
	}
	got := map[string]int64{}
	for _, row := range f.Rows {
		got[row[0].(string)] = row[1].(int64)
	}
	if got["A"] != 250 || got["B"] != 200 {
		t.Errorf("unexpected aggregates: %+v", got)
	}
}

func TestInnerJoinWithSuffixes(t *testing.T) {
	e := NewEvaluator()
	source := `df_1 = pl.DataFrame(columns=[{"name": "id", "data_type": "Int64"}, {"name": "v", "data_type": "String"}], rows=[[1, "l1"], [2, "l2"]])
df_2 = pl.DataFrame(columns=[{"name": "id", "data_type": "Int64"}, {"name": "v", "data_type": "String"}], rows=[[1, "r1"], [3, "r3"]])
df_3 = df_1.join(other=df_2, how="inner", left_on=["id"], right_on=["id"], left_suffix="_L", right_suffix="_R")
`
	if err := e.Exec(context.Background(), source); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := e.Eval(context.Background(), "df_3")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f := mustFrame(t, v)
	wantNames := []string{"id", "v_L", "v_R"}
	for i, name := range wantNames {
		if f.Schema[i].Name != name {
			t.Fatalf("schema[%d] = %q, want %q (full: %+v)", i, f.Schema[i].Name, name, f.Schema)
		}
	}
	if len(f.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", len(f.Rows), f.Rows)
	}
	row := f.Rows[0]
	if row[0] != int64(1) || row[1] != "l1" || row[2] != "r1" {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestHeadLimitsRows(t *testing.T) {
	e := NewEvaluator()
	source := `df_1 = pl.DataFrame(columns=[{"name": "n", "data_type": "Int64"}], rows=[[1], [2], [3]])
df_2 = df_1.head(2)
`
	if err := e.Exec(context.Background(), source); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, _ := e.Eval(context.Background(), "df_2")
	f := mustFrame(t, v)
	if len(f.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(f.Rows))
	}
}

func TestSetAndDelGlobal(t *testing.T) {
	e := NewEvaluator()
	e.SetGlobal("__file_1", "id,val\n1,2\n")
	if _, ok := e.GetGlobal("__file_1"); !ok {
		t.Fatal("expected global to be set")
	}
	e.DelGlobal("__file_1")
	if _, ok := e.GetGlobal("__file_1"); ok {
		t.Fatal("expected global to be deleted")
	}
}

func TestUnknownNameIsError(t *testing.T) {
	e := NewEvaluator()
	if _, err := e.Eval(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for undefined name")
	}
}
