package flow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowfile-wasm/engine/flow"
	"github.com/flowfile-wasm/engine/flow/store"
)

func buildSampleGraph(t *testing.T) *flow.Model {
	t.Helper()
	m := newTestModel()
	src, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(src.ID, &flow.ReadCSVSettings{
		FileContent: "a,b\n1,2\n", Delimiter: ",", HasHeader: true, Encoding: "utf8",
	}))

	filterNode, err := m.AddNode(flow.TypeFilter, 150, 20)
	require.NoError(t, err)
	require.NoError(t, m.UpdateNode(filterNode.ID, 150, 20, "filtered", "keep positives"))
	require.NoError(t, m.UpdateNodeSettings(filterNode.ID, &flow.FilterSettings{
		Column: "a", Operator: flow.OpGreaterThan, Value: "0",
	}))

	_, err = m.AddEdge(src.ID, "output-0", filterNode.ID, "input-0")
	require.NoError(t, err)
	return m
}

func TestExportImportRoundTrip(t *testing.T) {
	m := buildSampleGraph(t)
	doc := flow.Export(m, "sample", flow.DefaultFlowSettings())
	require.Equal(t, flow.DocumentVersion, doc.FlowfileVersion)
	require.Len(t, doc.Nodes, 2)

	m2 := flow.NewModel(store.NewMemStore(), store.InlineThreshold)
	require.NoError(t, flow.Import(m2, doc))

	doc2 := flow.Export(m2, "sample", flow.DefaultFlowSettings())
	require.Equal(t, len(doc.Nodes), len(doc2.Nodes))
	for i := range doc.Nodes {
		require.Equal(t, doc.Nodes[i].ID, doc2.Nodes[i].ID)
		require.Equal(t, doc.Nodes[i].Type, doc2.Nodes[i].Type)
		require.Equal(t, doc.Nodes[i].InputIDs, doc2.Nodes[i].InputIDs)
		require.Equal(t, doc.Nodes[i].LeftInputID, doc2.Nodes[i].LeftInputID)
		require.Equal(t, doc.Nodes[i].IsStartNode, doc2.Nodes[i].IsStartNode)
	}

	filterNode, ok := m2.Node(doc.Nodes[1].ID)
	require.True(t, ok)
	require.Equal(t, "filtered", filterNode.NodeReference)
	require.Equal(t, &doc.Nodes[0].ID, filterNode.LeftInputID())
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	m := buildSampleGraph(t)
	doc := flow.Export(m, "sample", flow.DefaultFlowSettings())
	doc.FlowfileVersion = "99"

	m2 := newTestModel()
	err := flow.Import(m2, doc)
	require.ErrorIs(t, err, flow.ErrUnsupportedVersion)
}

func TestImportRejectsDanglingInputReference(t *testing.T) {
	m := buildSampleGraph(t)
	doc := flow.Export(m, "sample", flow.DefaultFlowSettings())
	dangling := int64(9999)
	doc.Nodes[1].LeftInputID = &dangling
	doc.Nodes[1].InputIDs = []int64{dangling}

	m2 := newTestModel()
	err := flow.Import(m2, doc)
	require.ErrorIs(t, err, flow.ErrMissingNode)
}

func TestImportLeavesExistingGraphUntouchedOnFailure(t *testing.T) {
	m2 := buildSampleGraph(t)
	before := flow.Export(m2, "before", flow.DefaultFlowSettings())

	bad := &flow.Document{FlowfileVersion: "not-a-real-version"}
	err := flow.Import(m2, bad)
	require.Error(t, err)

	after := flow.Export(m2, "before", flow.DefaultFlowSettings())
	require.Equal(t, len(before.Nodes), len(after.Nodes))
}

func TestDocumentJSONAndYAMLRoundTrip(t *testing.T) {
	m := buildSampleGraph(t)
	doc := flow.Export(m, "sample", flow.DefaultFlowSettings())

	jsonBytes, err := doc.ToJSON()
	require.NoError(t, err)
	fromJSON, err := flow.DocumentFromJSON(jsonBytes)
	require.NoError(t, err)
	require.Equal(t, doc.FlowfileName, fromJSON.FlowfileName)
	require.Len(t, fromJSON.Nodes, len(doc.Nodes))

	yamlBytes, err := doc.ToYAML()
	require.NoError(t, err)
	fromYAML, err := flow.DocumentFromYAML(yamlBytes)
	require.NoError(t, err)
	require.Equal(t, doc.FlowfileName, fromYAML.FlowfileName)
	require.Len(t, fromYAML.Nodes, len(doc.Nodes))

	m3 := newTestModel()
	require.NoError(t, flow.Import(m3, fromYAML))
	n, ok := m3.Node(doc.Nodes[1].ID)
	require.True(t, ok)
	require.Equal(t, "filtered", n.NodeReference)
}
