package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowfile-wasm/engine/flow"
	"github.com/flowfile-wasm/engine/flow/emit"
	"github.com/flowfile-wasm/engine/interp"
)

func newTestEngine(t *testing.T) (*flow.Engine, *emit.BufferedEmitter) {
	t.Helper()
	buf := emit.NewBufferedEmitter()
	eng, err := flow.New(
		flow.WithInterpreter(interp.NewMockBridge()),
		flow.WithEmitter(buf),
	)
	require.NoError(t, err)
	return eng, buf
}

func TestExecuteFlowReadFilterOutput(t *testing.T) {
	ctx := context.Background()
	eng, buf := newTestEngine(t)
	m := eng.Model()

	csv, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetFileContent(ctx, csv.ID, []byte("a,b\n1,x\n2,y\n")))

	filterNode, err := m.AddNode(flow.TypeFilter, 100, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(filterNode.ID, &flow.FilterSettings{
		Column: "a", Operator: flow.OpEquals, Value: "1",
	}))

	out, err := m.AddNode(flow.TypeOutput, 200, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(out.ID, &flow.OutputSettings{
		Format: flow.FormatCSV, HasHeader: true, FileName: "result.csv",
	}))

	_, err = m.AddEdge(csv.ID, "output-0", filterNode.ID, "input-0")
	require.NoError(t, err)
	_, err = m.AddEdge(filterNode.ID, "output-0", out.ID, "input-0")
	require.NoError(t, err)

	results, err := eng.ExecuteFlow(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	fr := results[filterNode.ID]
	require.True(t, fr.Success)
	require.NotNil(t, fr.Data)
	require.Equal(t, 1, fr.Data.TotalRows)

	or := results[out.ID]
	require.True(t, or.Success)

	var sawOutput bool
	for _, ev := range buf.History("") {
		if ev.Kind == emit.KindOutput {
			sawOutput = true
			require.Equal(t, out.ID, ev.NodeID)
			require.Contains(t, ev.Meta["content"], "1,x")
		}
	}
	require.True(t, sawOutput, "expected an output event")
}

func TestExecuteNodeAbortsOnUpstreamUnconfigured(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	m := eng.Model()

	csv, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	// No file content set: read_csv stays unconfigured.

	filterNode, err := m.AddNode(flow.TypeFilter, 100, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(filterNode.ID, &flow.FilterSettings{
		Column: "a", Operator: flow.OpEquals, Value: "1",
	}))
	_, err = m.AddEdge(csv.ID, "output-0", filterNode.ID, "input-0")
	require.NoError(t, err)

	_, err = eng.ExecuteNode(ctx, filterNode.ID)
	var upstream *flow.UpstreamUnconfiguredError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, csv.ID, upstream.NodeID)
}

func TestExecuteNodeOnlyRunsAncestors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	m := eng.Model()

	csv, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetFileContent(ctx, csv.ID, []byte("a\n1\n2\n")))

	unrelated, err := m.AddNode(flow.TypeReadCSV, 0, 100)
	require.NoError(t, err)
	require.NoError(t, m.SetFileContent(ctx, unrelated.ID, []byte("z\n9\n")))

	results, err := eng.ExecuteNode(ctx, csv.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results, csv.ID)
}

func TestExternalDataRequiresPushedInput(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	m := eng.Model()

	ext, err := m.AddNode(flow.TypeExternalData, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(ext.ID, &flow.ExternalDataSettings{
		InputName: "sales", Format: "csv", Delimiter: ",",
	}))

	_, err = eng.ExecuteNode(ctx, ext.ID)
	require.Error(t, err)

	eng.SetInputData("sales", []byte("a,b\n1,2\n"), "", "")
	results, err := eng.ExecuteNode(ctx, ext.ID)
	require.NoError(t, err)
	require.True(t, results[ext.ID].Success)
}

func TestExecuteFlowFailsOnInterpreterLoadError(t *testing.T) {
	ctx := context.Background()
	bridge := interp.NewMockBridge()
	bridge.FailInitialise = context.DeadlineExceeded
	eng, err := flow.New(flow.WithInterpreter(bridge))
	require.NoError(t, err)

	_, err = eng.ExecuteFlow(ctx)
	require.ErrorIs(t, err, flow.ErrInterpreterLoadError)
}

func TestExecuteFlowFailsOnHostNotIsolated(t *testing.T) {
	ctx := context.Background()
	bridge := interp.NewMockBridge()
	bridge.FailIsolation = true
	eng, err := flow.New(flow.WithInterpreter(bridge))
	require.NoError(t, err)

	_, err = eng.ExecuteFlow(ctx)
	require.ErrorIs(t, err, flow.ErrHostNotIsolated)
}

func TestExecuteFlowFailsOnInterpreterUnavailable(t *testing.T) {
	ctx := context.Background()
	bridge := interp.NewMockBridge()
	bridge.FailInitialise = context.DeadlineExceeded
	eng, err := flow.New(flow.WithInterpreter(bridge))
	require.NoError(t, err)

	// First pass: Initialise fails and the bridge transitions to Failed.
	_, err = eng.ExecuteFlow(ctx)
	require.ErrorIs(t, err, flow.ErrInterpreterLoadError)

	// Second pass: the bridge is already Failed, so ensureReady short-circuits
	// without calling Initialise again.
	_, err = eng.ExecuteFlow(ctx)
	require.ErrorIs(t, err, flow.ErrInterpreterUnavailable)
}

func TestClearFlowResetsResultsAndGraph(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	m := eng.Model()

	csv, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetFileContent(ctx, csv.ID, []byte("a\n1\n")))
	_, err = eng.ExecuteNode(ctx, csv.ID)
	require.NoError(t, err)

	_, ok := eng.GetNodeResult(csv.ID)
	require.True(t, ok)

	require.NoError(t, eng.ClearFlow(ctx))
	require.Empty(t, m.Nodes())
}
