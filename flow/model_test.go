package flow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowfile-wasm/engine/flow"
	"github.com/flowfile-wasm/engine/flow/store"
)

// failingStore wraps a Store and makes Put always reject, to exercise the
// storage-full error path without a real capacity-limited backend.
type failingStore struct {
	store.Store
}

func (failingStore) Put(_ context.Context, _ int64, _ []byte) error {
	return store.ErrFull
}

func newTestModel() *flow.Model {
	return flow.NewModel(store.NewMemStore(), store.InlineThreshold)
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	m := newTestModel()
	a, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)
	b, err := m.AddNode(flow.TypeFilter, 0, 0)
	require.NoError(t, err)

	_, err = m.AddEdge(a.ID, "output-0", b.ID, "input-0")
	require.NoError(t, err)

	_, err = m.AddEdge(b.ID, "output-0", a.ID, "input-0")
	var cycleErr *flow.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestAddEdgeRejectsDuplicateTargetHandle(t *testing.T) {
	m := newTestModel()
	a, _ := m.AddNode(flow.TypeReadCSV, 0, 0)
	b, _ := m.AddNode(flow.TypeReadCSV, 0, 0)
	c, _ := m.AddNode(flow.TypeJoin, 0, 0)

	_, err := m.AddEdge(a.ID, "output-0", c.ID, "input-0")
	require.NoError(t, err)
	_, err = m.AddEdge(b.ID, "output-0", c.ID, "input-0")
	var dup *flow.DuplicateEdgeError
	require.ErrorAs(t, err, &dup)
}

func TestUpdateNodeSettingsInvalidatesDownstreamSchema(t *testing.T) {
	m := newTestModel()
	src, _ := m.AddNode(flow.TypeManualInput, 0, 0)
	require.NoError(t, m.UpdateNodeSettings(src.ID, &flow.ManualInputSettings{
		Columns: []flow.ManualColumn{{Name: "x", DataType: flow.Int64}},
		Rows:    [][]interface{}{{int64(1)}},
	}))

	sel, _ := m.AddNode(flow.TypeSelect, 100, 0)
	_, err := m.AddEdge(src.ID, "output-0", sel.ID, "input-0")
	require.NoError(t, err)
	require.NoError(t, m.UpdateNodeSettings(sel.ID, &flow.SelectSettings{
		Columns: []flow.SelectColumn{{OldName: "x", NewName: "x", Keep: true}},
	}))

	schema, ok := m.Schema(sel.ID)
	require.True(t, ok)
	require.Len(t, schema, 1)

	// Changing the source schema must invalidate the select node's cache.
	require.NoError(t, m.UpdateNodeSettings(src.ID, &flow.ManualInputSettings{
		Columns: []flow.ManualColumn{
			{Name: "x", DataType: flow.Int64},
			{Name: "y", DataType: flow.String},
		},
		Rows: [][]interface{}{{int64(1), "a"}},
	}))
	schema, ok = m.Schema(sel.ID)
	require.True(t, ok)
	require.Len(t, schema, 1) // select still projects only "x"

	// But a select that keeps both columns now sees "y" too.
	require.NoError(t, m.UpdateNodeSettings(sel.ID, &flow.SelectSettings{
		Columns: []flow.SelectColumn{
			{OldName: "x", NewName: "x", Keep: true},
			{OldName: "y", NewName: "y", Keep: true},
		},
	}))
	schema, ok = m.Schema(sel.ID)
	require.True(t, ok)
	require.Len(t, schema, 2)
}

func TestSetFileContentRoutesAcrossInlineThreshold(t *testing.T) {
	ctx := context.Background()
	m := flow.NewModel(store.NewMemStore(), 16)
	n, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)

	require.NoError(t, m.SetFileContent(ctx, n.ID, []byte("small")))
	content, err := m.FileContent(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, "small", content)

	big := []byte("this payload is definitely over the threshold")
	require.NoError(t, m.SetFileContent(ctx, n.ID, big))
	content, err = m.FileContent(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, string(big), content)

	// Routing back under the threshold clears the persistent entry.
	require.NoError(t, m.SetFileContent(ctx, n.ID, []byte("tiny")))
	content, err = m.FileContent(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, "tiny", content)
}

func TestSetFileContentWrapsStorageFullError(t *testing.T) {
	ctx := context.Background()
	m := flow.NewModel(failingStore{store.NewMemStore()}, 4)
	n, err := m.AddNode(flow.TypeReadCSV, 0, 0)
	require.NoError(t, err)

	err = m.SetFileContent(ctx, n.ID, []byte("over the threshold"))
	require.Error(t, err)
	require.True(t, errors.Is(err, flow.ErrStorageFull))
}

func TestRemoveNodeClearsEdgesAndRecomputesProjections(t *testing.T) {
	m := newTestModel()
	a, _ := m.AddNode(flow.TypeReadCSV, 0, 0)
	b, _ := m.AddNode(flow.TypeFilter, 0, 0)
	_, err := m.AddEdge(a.ID, "output-0", b.ID, "input-0")
	require.NoError(t, err)

	require.NoError(t, m.RemoveNode(a.ID))
	bNode, ok := m.Node(b.ID)
	require.True(t, ok)
	require.Empty(t, bNode.InputIDs())
	require.Nil(t, bNode.LeftInputID())
	require.Empty(t, m.Edges())
}
