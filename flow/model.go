package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowfile-wasm/engine/flow/store"
)

// Model is the Flow Graph Model (spec §3/§4.A): the mutable, in-memory
// document of nodes and edges, plus everything derived from it — input
// projections, schema cache, and large-file-payload routing. Every mutating
// method recomputes the projections and invalidates caches that depend on
// what changed; callers never need to call a separate "recompute" step.
//
// A Model assumes a single logical writer, per spec §5: callers are
// expected to serialise their own command stream (e.g. one goroutine per
// open document). The mutex here guards against incidental concurrent
// reads, not concurrent writers.
type Model struct {
	mu sync.RWMutex

	nodes map[int64]*Node
	edges map[int64]*Edge

	// nodeOrder/edgeOrder preserve insertion order for iteration and
	// serialisation, independent of map iteration order.
	nodeOrder []int64
	edgeOrder []int64

	selected map[int64]bool

	nodeIDs *idSeq
	edgeIDs *idSeq

	schemaCache map[int64]Schema
	schemaValid map[int64]bool

	largeContent    store.Store
	inlineThreshold int

	// largeKeys tracks which nodes currently have their file content routed
	// to largeContent rather than held inline on the settings record.
	largeKeys map[int64]bool
}

// NewModel returns an empty Model backed by the given large-content store
// and inline/persistent routing threshold (spec §4.A).
func NewModel(largeContent store.Store, inlineThreshold int) *Model {
	return &Model{
		nodes:           map[int64]*Node{},
		edges:           map[int64]*Edge{},
		selected:        map[int64]bool{},
		nodeIDs:         newIDSeq(),
		edgeIDs:         newIDSeq(),
		schemaCache:     map[int64]Schema{},
		schemaValid:     map[int64]bool{},
		largeContent:    largeContent,
		inlineThreshold: inlineThreshold,
		largeKeys:       map[int64]bool{},
	}
}

// addNode creates a node of the given type with default settings at
// position (x, y) and returns it (spec §4.D, "instantiate with
// defaultSettings(type)").
func (m *Model) addNode(t NodeType, x, y float64) (*Node, error) {
	if !t.valid() {
		return nil, &InvalidOptionError{Option: "addNode", Reason: "unknown node type " + string(t)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nodeIDs.next1()
	n := &Node{ID: id, Type: t, X: x, Y: y, Settings: defaultSettings(t)}
	m.nodes[id] = n
	m.nodeOrder = append(m.nodeOrder, id)
	return n, nil
}

// updateNode changes a node's position, reference label, and description.
// An empty ref clears the synthetic-binding override.
func (m *Model) updateNode(id int64, x, y float64, nodeReference, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.X, n.Y = x, y
	n.NodeReference = nodeReference
	n.Description = description
	return nil
}

// updateNodeSettings replaces a node's settings payload. The tag must match
// the node's type; invalidates this node's schema cache and every
// downstream descendant's (spec §4.C, "cache invalidation on settings
// change propagates to every downstream descendant").
func (m *Model) updateNodeSettings(id int64, settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if settings.NodeTag().canonical() != n.Type.canonical() {
		return &InvalidOptionError{Option: "updateNodeSettings", Reason: "settings type does not match node type"}
	}
	n.Settings = settings
	m.invalidateDownstreamLocked(id)
	return nil
}

// removeNode deletes a node and every edge touching it, then recomputes
// the projections of every node that referenced it as an input.
func (m *Model) removeNode(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrUnknownNode
	}

	var touched []int64
	var remainingEdges []int64
	for _, eid := range m.edgeOrder {
		e, ok := m.edges[eid]
		if !ok {
			continue
		}
		if e.SourceNodeID == id || e.TargetNodeID == id {
			touched = append(touched, e.TargetNodeID, e.SourceNodeID)
			delete(m.edges, eid)
			continue
		}
		remainingEdges = append(remainingEdges, eid)
	}
	m.edgeOrder = remainingEdges

	delete(m.nodes, id)
	delete(m.selected, id)
	delete(m.schemaCache, id)
	delete(m.schemaValid, id)
	if m.largeKeys[id] {
		_ = m.largeContent.Delete(context.Background(), id)
		delete(m.largeKeys, id)
	}

	newOrder := make([]int64, 0, len(m.nodeOrder))
	for _, nid := range m.nodeOrder {
		if nid != id {
			newOrder = append(newOrder, nid)
		}
	}
	m.nodeOrder = newOrder

	for _, nid := range touched {
		if nid == id {
			continue
		}
		m.recomputeProjectionsLocked(nid)
		m.invalidateDownstreamLocked(nid)
	}
	return nil
}

// addEdge connects source's output handle to target's input handle.
// Rejects duplicate (target, targetHandle) pairs and any edge that would
// close a cycle in the node graph (spec §3 uniqueness invariant, §4.D
// cycle rejection).
func (m *Model) addEdge(sourceID int64, sourceHandle string, targetID int64, targetHandle string) (*Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[sourceID]; !ok {
		return nil, ErrUnknownNode
	}
	if _, ok := m.nodes[targetID]; !ok {
		return nil, ErrUnknownNode
	}

	targetHandle = normalizedTargetHandle(targetHandle)
	candidate := Edge{SourceNodeID: sourceID, SourceHandle: sourceHandle, TargetNodeID: targetID, TargetHandle: targetHandle}
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		if e.TargetNodeID == targetID && e.TargetHandle == targetHandle {
			return nil, &DuplicateEdgeError{TargetID: targetID, TargetHandle: targetHandle}
		}
		if e.key() == candidate.key() {
			return nil, &DuplicateEdgeError{TargetID: targetID, TargetHandle: targetHandle}
		}
	}

	if m.reachableLocked(targetID, sourceID) {
		return nil, &CycleError{NodeID: targetID}
	}

	id := m.edgeIDs.next1()
	e := &Edge{ID: id, SourceNodeID: sourceID, SourceHandle: sourceHandle, TargetNodeID: targetID, TargetHandle: targetHandle}
	m.edges[id] = e
	m.edgeOrder = append(m.edgeOrder, id)

	m.recomputeProjectionsLocked(targetID)
	m.invalidateDownstreamLocked(targetID)
	return e, nil
}

// removeEdge deletes an edge and recomputes its former target's projections.
func (m *Model) removeEdge(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[id]
	if !ok {
		return ErrUnknownEdge
	}
	delete(m.edges, id)
	newOrder := make([]int64, 0, len(m.edgeOrder))
	for _, eid := range m.edgeOrder {
		if eid != id {
			newOrder = append(newOrder, eid)
		}
	}
	m.edgeOrder = newOrder

	m.recomputeProjectionsLocked(e.TargetNodeID)
	m.invalidateDownstreamLocked(e.TargetNodeID)
	return nil
}

// reachableLocked reports whether target is reachable from start by walking
// outgoing edges forward. Used by addEdge to reject edges that would close
// a cycle: adding source->target is safe only if target cannot already
// reach source.
func (m *Model) reachableLocked(start, target int64) bool {
	if start == target {
		return true
	}
	visited := map[int64]bool{start: true}
	stack := []int64{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, eid := range m.edgeOrder {
			e := m.edges[eid]
			if e.SourceNodeID != cur {
				continue
			}
			if e.TargetNodeID == target {
				return true
			}
			if !visited[e.TargetNodeID] {
				visited[e.TargetNodeID] = true
				stack = append(stack, e.TargetNodeID)
			}
		}
	}
	return false
}

// recomputeProjectionsLocked rebuilds nodeID's inputIds/leftInputID/
// rightInputID from the current edge set, in edge-insertion order.
func (m *Model) recomputeProjectionsLocked(nodeID int64) {
	n, ok := m.nodes[nodeID]
	if !ok {
		return
	}
	var inputs []int64
	var left, right *int64
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		if e.TargetNodeID != nodeID {
			continue
		}
		inputs = append(inputs, e.SourceNodeID)
		idx := handleIndex("input", e.TargetHandle)
		src := e.SourceNodeID
		switch idx {
		case 1:
			right = &src
		default:
			if left == nil {
				left = &src
			}
		}
	}
	n.inputIds = inputs
	n.leftInputID = left
	n.rightInputID = right
}

// invalidateDownstreamLocked drops the cached schema for nodeID and every
// node reachable from it by following edges forward (spec §4.C).
func (m *Model) invalidateDownstreamLocked(nodeID int64) {
	visited := map[int64]bool{}
	queue := []int64{nodeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		delete(m.schemaCache, cur)
		delete(m.schemaValid, cur)
		for _, eid := range m.edgeOrder {
			e := m.edges[eid]
			if e.SourceNodeID == cur && !visited[e.TargetNodeID] {
				queue = append(queue, e.TargetNodeID)
			}
		}
	}
}

// Schema returns the cached schema for nodeID, computing and caching it via
// InferSchema if it isn't already cached. The second return reports whether
// the node exists.
func (m *Model) Schema(nodeID int64) (Schema, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, false
	}
	if m.schemaValid[nodeID] {
		return m.schemaCache[nodeID], true
	}

	var left, right Schema
	if n.leftInputID != nil {
		left, _ = m.schemaLocked(*n.leftInputID)
	}
	if n.rightInputID != nil {
		right, _ = m.schemaLocked(*n.rightInputID)
	}
	s := InferSchema(n.Type, n.Settings, left, right)
	m.schemaCache[nodeID] = s
	m.schemaValid[nodeID] = true
	return s, true
}

// schemaCached reports whether nodeID's schema is already cached, without
// computing it. Used by the engine to record cache hit/miss metrics.
func (m *Model) schemaCached(nodeID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schemaValid[nodeID]
}

func (m *Model) schemaLocked(nodeID int64) (Schema, bool) {
	if m.schemaValid[nodeID] {
		return m.schemaCache[nodeID], true
	}
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, false
	}
	var left, right Schema
	if n.leftInputID != nil {
		left, _ = m.schemaLocked(*n.leftInputID)
	}
	if n.rightInputID != nil {
		right, _ = m.schemaLocked(*n.rightInputID)
	}
	s := InferSchema(n.Type, n.Settings, left, right)
	m.schemaCache[nodeID] = s
	m.schemaValid[nodeID] = true
	return s, true
}

// selectNode sets a node's selection flag. Selection is host/UI focus
// state only: the Engine does not read it when choosing what to execute.
func (m *Model) selectNode(id int64, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrUnknownNode
	}
	if selected {
		m.selected[id] = true
	} else {
		delete(m.selected, id)
	}
	return nil
}

// SelectedNodes returns the ids currently marked selected, in node-insertion
// order. An empty result means "the whole graph" to callers that treat an
// empty selection as no scoping.
func (m *Model) SelectedNodes() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int64
	for _, id := range m.nodeOrder {
		if m.selected[id] {
			out = append(out, id)
		}
	}
	return out
}

// setFileContent routes a source node's file payload through the
// inline/persistent policy boundary (spec §4.A): content under the
// threshold is held directly on the node's settings; content at or above it
// is written to the large-content store and cleared from the settings.
func (m *Model) setFileContent(ctx context.Context, nodeID int64, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return ErrUnknownNode
	}
	rc, ok := n.Settings.(*ReadCSVSettings)
	if !ok {
		return &InvalidOptionError{Option: "setFileContent", Reason: "node is not a read_csv node"}
	}

	policy := store.Inline
	if len(content) >= m.inlineThreshold {
		policy = store.Persistent
	}

	if policy == store.Persistent {
		if err := m.largeContent.Put(ctx, nodeID, content); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFull, err)
		}
		m.largeKeys[nodeID] = true
		rc.FileContent = ""
	} else {
		if m.largeKeys[nodeID] {
			_ = m.largeContent.Delete(ctx, nodeID)
			delete(m.largeKeys, nodeID)
		}
		rc.FileContent = string(content)
	}
	m.invalidateDownstreamLocked(nodeID)
	return nil
}

// FileContent resolves a read_csv node's payload regardless of where the
// inline/persistent boundary routed it (spec §4.A).
func (m *Model) FileContent(ctx context.Context, nodeID int64) (string, error) {
	m.mu.RLock()
	n, ok := m.nodes[nodeID]
	large := ok && m.largeKeys[nodeID]
	m.mu.RUnlock()
	if !ok {
		return "", ErrUnknownNode
	}
	rc, ok := n.Settings.(*ReadCSVSettings)
	if !ok {
		return "", &InvalidOptionError{Option: "FileContent", Reason: "node is not a read_csv node"}
	}
	if !large {
		return rc.FileContent, nil
	}
	content, err := m.largeContent.Get(ctx, nodeID)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// clear empties the document: every node, edge, selection, cache entry, and
// large-content entry (spec §4.D "clear()").
func (m *Model) clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.largeKeys {
		_ = m.largeContent.Delete(ctx, id)
	}
	m.nodes = map[int64]*Node{}
	m.edges = map[int64]*Edge{}
	m.nodeOrder = nil
	m.edgeOrder = nil
	m.selected = map[int64]bool{}
	m.schemaCache = map[int64]Schema{}
	m.schemaValid = map[int64]bool{}
	m.largeKeys = map[int64]bool{}
	m.nodeIDs = newIDSeq()
	m.edgeIDs = newIDSeq()
	return m.largeContent.Clear(ctx)
}

// AddNode is the exported Host Interface command wrapping addNode (spec
// §6, "addNode(type, x, y) → id").
func (m *Model) AddNode(t NodeType, x, y float64) (*Node, error) { return m.addNode(t, x, y) }

// UpdateNode is the exported Host Interface command wrapping updateNode
// (spec §6, "updateNode(id, patch)").
func (m *Model) UpdateNode(id int64, x, y float64, nodeReference, description string) error {
	return m.updateNode(id, x, y, nodeReference, description)
}

// UpdateNodeSettings is the exported Host Interface command wrapping
// updateNodeSettings (spec §6).
func (m *Model) UpdateNodeSettings(id int64, settings Settings) error {
	return m.updateNodeSettings(id, settings)
}

// RemoveNode is the exported Host Interface command wrapping removeNode
// (spec §6, "removeNode(id)").
func (m *Model) RemoveNode(id int64) error { return m.removeNode(id) }

// AddEdge is the exported Host Interface command wrapping addEdge (spec
// §6, "addEdge(edge)").
func (m *Model) AddEdge(sourceID int64, sourceHandle string, targetID int64, targetHandle string) (*Edge, error) {
	return m.addEdge(sourceID, sourceHandle, targetID, targetHandle)
}

// RemoveEdge is the exported Host Interface command wrapping removeEdge
// (spec §6, "removeEdge(id)").
func (m *Model) RemoveEdge(id int64) error { return m.removeEdge(id) }

// SelectNode is the exported Host Interface command toggling a node's
// selection flag (focus state; execution passes do not consult it).
func (m *Model) SelectNode(id int64, selected bool) error { return m.selectNode(id, selected) }

// SetFileContent is the exported Host Interface command wrapping
// setFileContent (spec §6, "setFileContent(nodeId, content)").
func (m *Model) SetFileContent(ctx context.Context, nodeID int64, content []byte) error {
	return m.setFileContent(ctx, nodeID, content)
}

// Clear is the exported Host Interface command wrapping clear (spec §6,
// "clearFlow()").
func (m *Model) Clear(ctx context.Context) error { return m.clear(ctx) }

// Node returns a shallow snapshot of a node by id.
func (m *Model) Node(id int64) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// Nodes returns every node in insertion order.
func (m *Model) Nodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Node, 0, len(m.nodeOrder))
	for _, id := range m.nodeOrder {
		cp := *m.nodes[id]
		out = append(out, &cp)
	}
	return out
}

// Edges returns every edge in insertion order.
func (m *Model) Edges() []*Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Edge, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		cp := *m.edges[id]
		out = append(out, &cp)
	}
	return out
}
