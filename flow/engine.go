package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowfile-wasm/engine/flow/emit"
	"github.com/flowfile-wasm/engine/interp"
)

// NodeResult is the cached outcome of a node's most recent execution
// (spec §4.F, the per-node result cache entry). It is retained until the
// next pass that runs the node overwrites it, or ClearFlow drops it; a
// pass re-executes every node in its set rather than reusing these.
type NodeResult struct {
	NodeID  int64         `json:"node_id"`
	Success bool          `json:"success"`
	Schema  Schema        `json:"schema,omitempty"`
	Data    *PreviewTable `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// externalInput is one named dataset pushed via SetInputData, consumed by
// external-data nodes at execution time (spec §6, "setInputData").
type externalInput struct {
	content   string
	format    string
	delimiter string
}

// Engine is the Execution Engine (spec §4.F): it drives the Interpreter
// Bridge through a topological pass over a Flow Graph Model, emitting
// Host Interface events and maintaining the per-node result cache.
//
// Per spec §5, an Engine is single-threaded cooperative: it is the only
// writer of result state during a pass, and callers are expected to
// serialise ExecuteFlow/ExecuteNode calls the same way they serialise
// Model mutations.
type Engine struct {
	model       *Model
	interpreter interp.Bridge

	metrics *EngineMetrics
	emitter emit.Emitter

	previewRowCap int
	clock         func() time.Time

	mu             sync.Mutex
	results        map[int64]*NodeResult
	externalInputs map[string]externalInput
	cancelled      bool
	executing      bool
}

// New builds an Engine and its backing Flow Graph Model from the given
// options. WithInterpreter is required; every other option has a default.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.interpreter == nil {
		return nil, ErrInterpreterUnavailable
	}
	return &Engine{
		model:          NewModel(cfg.largeContent, cfg.inlineThreshold),
		interpreter:    cfg.interpreter,
		metrics:        cfg.metrics,
		emitter:        cfg.emitter,
		previewRowCap:  cfg.previewRowCap,
		clock:          cfg.clock,
		results:        map[int64]*NodeResult{},
		externalInputs: map[string]externalInput{},
	}, nil
}

// Model returns the engine's Flow Graph Model.
func (e *Engine) Model() *Model { return e.model }

// SetInputData pushes a named external dataset consumed by external-data
// nodes whose InputName matches (spec §6). format/delimiter override the
// consuming node's own settings when non-empty; an empty format falls
// back to the node's declared format.
func (e *Engine) SetInputData(name string, content []byte, format, delimiter string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.externalInputs[name] = externalInput{content: string(content), format: format, delimiter: delimiter}
}

// Cancel requests that the in-flight execution pass stop at its next
// suspension point (spec §5, "host-issued cancel()"). The node currently
// executing in the interpreter runs to completion. Every pass clears the
// request when it starts, so a Cancel issued while no pass is running has
// no effect.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
}

func (e *Engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *Engine) resetCancel() {
	e.mu.Lock()
	e.cancelled = false
	e.mu.Unlock()
}

// IsExecuting reports whether a pass is currently in flight.
func (e *Engine) IsExecuting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

// GetNodeResult returns the cached result for a node, if any.
func (e *Engine) GetNodeResult(nodeID int64) (*NodeResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[nodeID]
	return r, ok
}

func (e *Engine) recordResult(id int64, r *NodeResult) {
	e.mu.Lock()
	e.results[id] = r
	e.mu.Unlock()
}

// ExecuteFlow runs a whole-graph pass: every configured node in the
// document plus its ancestors, in topological order (spec §4.F,
// "whole-graph mode"). Unconfigured nodes are left out; the pass aborts
// with UpstreamUnconfiguredError only when one of them is an ancestor of a
// configured node.
func (e *Engine) ExecuteFlow(ctx context.Context) (map[int64]*NodeResult, error) {
	set := map[int64]bool{}
	for _, n := range e.model.Nodes() {
		if !e.configured(n.ID, n.Settings) {
			continue
		}
		anc, err := e.ancestorsAndSelf(n.ID)
		if err != nil {
			return nil, err
		}
		for id := range anc {
			set[id] = true
		}
	}
	return e.runPass(ctx, set)
}

// ExecuteNode runs a single-node pass: the target node plus every
// transitive ancestor it depends on (spec §4.F, "single-node mode").
func (e *Engine) ExecuteNode(ctx context.Context, nodeID int64) (map[int64]*NodeResult, error) {
	set, err := e.ancestorsAndSelf(nodeID)
	if err != nil {
		return nil, err
	}
	return e.runPass(ctx, set)
}

// ancestorsAndSelf returns nodeID and every node it transitively depends
// on via InputIDs.
func (e *Engine) ancestorsAndSelf(nodeID int64) (map[int64]bool, error) {
	set := map[int64]bool{}
	var walk func(int64) error
	walk = func(cur int64) error {
		if set[cur] {
			return nil
		}
		set[cur] = true
		n, ok := e.model.Node(cur)
		if !ok {
			return ErrUnknownNode
		}
		for _, in := range n.InputIDs() {
			if err := walk(in); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nodeID); err != nil {
		return nil, err
	}
	return set, nil
}

// configured reports whether a node can take part in a pass: its settings
// are set up, or its file content is held in the large-content store.
func (e *Engine) configured(id int64, s Settings) bool {
	if s.IsSetup() {
		return true
	}
	e.model.mu.RLock()
	defer e.model.mu.RUnlock()
	return e.model.largeKeys[id]
}

// runPass implements the execution-pass steps of spec §4.F.
func (e *Engine) runPass(ctx context.Context, set map[int64]bool) (map[int64]*NodeResult, error) {
	e.mu.Lock()
	e.executing = true
	e.mu.Unlock()
	e.resetCancel()
	defer func() {
		e.mu.Lock()
		e.executing = false
		e.mu.Unlock()
	}()

	start := e.clock()
	runID := newRunID()
	e.emitter.Emit(emit.Event{Kind: emit.KindExecutionStarted, RunID: runID})

	// Step 1: the interpreter must be ready.
	if err := e.ensureReady(ctx); err != nil {
		e.emitFailure(runID, 0, err)
		return nil, err
	}

	// Step 2: every node in the set must be configured.
	for id := range set {
		n, ok := e.model.Node(id)
		if !ok {
			e.emitFailure(runID, id, ErrUnknownNode)
			return nil, ErrUnknownNode
		}
		if !e.configured(id, n.Settings) {
			err := &UpstreamUnconfiguredError{NodeID: id}
			e.emitFailure(runID, id, err)
			return nil, err
		}
	}

	// Step 3: topological order over the set.
	order, err := e.topoOrder(set)
	if err != nil {
		e.emitFailure(runID, 0, err)
		return nil, err
	}

	// Step 4: execute each node in order.
	results := make(map[int64]*NodeResult, len(order))
	for _, id := range order {
		if e.isCancelled() {
			e.emitFailure(runID, id, ErrCancelled)
			return results, ErrCancelled
		}

		res, err := e.executeNodeStep(ctx, id)
		results[id] = res
		e.recordResult(id, res)
		e.emitter.Emit(emit.Event{
			Kind: emit.KindNodeExecuted, RunID: runID, NodeID: id,
			Meta: map[string]interface{}{"result": res},
		})
		if err != nil {
			e.emitFailure(runID, id, err)
			return results, err
		}
	}

	if e.metrics != nil {
		e.metrics.RecordPassDuration(e.clock().Sub(start))
	}
	e.emitter.Emit(emit.Event{
		Kind: emit.KindExecutionComplete, RunID: runID,
		Meta: map[string]interface{}{"results": results},
	})
	return results, nil
}

func (e *Engine) emitFailure(runID string, nodeID int64, err error) {
	e.emitter.Emit(emit.Event{
		Kind: emit.KindExecutionError, RunID: runID, NodeID: nodeID,
		Msg: err.Error(), Meta: map[string]interface{}{"error": err},
	})
}

// ensureReady waits for the Interpreter Bridge to reach Ready, triggering
// Initialise if it hasn't started yet (spec §4.F step 1).
func (e *Engine) ensureReady(ctx context.Context) error {
	switch e.interpreter.State() {
	case interp.Ready:
		return nil
	case interp.Failed:
		return ErrInterpreterUnavailable
	}
	e.emitter.Emit(emit.Event{Kind: emit.KindLoadingStatus, Msg: "initialising interpreter"})
	if err := e.interpreter.Initialise(ctx); err != nil {
		if errors.Is(err, interp.ErrHostNotIsolated) {
			return fmt.Errorf("%w: %v", ErrHostNotIsolated, err)
		}
		return fmt.Errorf("%w: %v", ErrInterpreterLoadError, err)
	}
	if e.interpreter.State() != interp.Ready {
		return ErrInterpreterUnavailable
	}
	return nil
}

// topoOrder produces a Kahn-style topological order over set, restricted
// to edges whose endpoints are both in set. A cycle aborts with
// CycleError (spec §4.F step 3).
func (e *Engine) topoOrder(set map[int64]bool) ([]int64, error) {
	inDegree := make(map[int64]int, len(set))
	adj := make(map[int64][]int64, len(set))
	for id := range set {
		inDegree[id] = 0
	}
	for _, ed := range e.model.Edges() {
		if !set[ed.SourceNodeID] || !set[ed.TargetNodeID] {
			continue
		}
		inDegree[ed.TargetNodeID]++
		adj[ed.SourceNodeID] = append(adj[ed.SourceNodeID], ed.TargetNodeID)
	}

	var ready []int64
	for _, n := range e.model.Nodes() {
		if set[n.ID] && inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]int64, 0, len(set))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(set) {
		var stuck int64
		for _, n := range e.model.Nodes() {
			if set[n.ID] && inDegree[n.ID] > 0 {
				stuck = n.ID
				break
			}
		}
		return nil, &CycleError{NodeID: stuck}
	}
	return order, nil
}

// executeNodeStep performs steps 4a-4e for a single node.
func (e *Engine) executeNodeStep(ctx context.Context, id int64) (*NodeResult, error) {
	nodeStart := e.clock()
	n, ok := e.model.Node(id)
	if !ok {
		return nil, ErrUnknownNode
	}

	left, right, err := e.resolveBindings(n)
	if err != nil {
		return &NodeResult{NodeID: id, Success: false, Error: err.Error()}, err
	}

	// Step 4a: bind any large file payload this node requires.
	fileGlobal, err := e.bindFilePayload(ctx, n)
	if err != nil {
		return &NodeResult{NodeID: id, Success: false, Error: err.Error()}, err
	}
	if fileGlobal != "" {
		defer func() { _ = e.interpreter.DelGlobal(ctx, fileGlobal) }() // step 4e
	}

	// Step 4b: emit source.
	source, err := emitSource(n, left, right, fileGlobal)
	if err != nil {
		return &NodeResult{NodeID: id, Success: false, Error: err.Error()}, err
	}

	// Step 4c: execute.
	if err := e.interpreter.Exec(ctx, source); err != nil {
		traceback := err.Error()
		if execErr, ok := err.(*interp.ExecError); ok {
			traceback = execErr.Traceback
		}
		wrapped := newInterpreterExecError(id, traceback, err)
		if e.metrics != nil {
			e.metrics.RecordNodeExecuted(string(n.Type), e.clock().Sub(nodeStart), "error")
		}
		return &NodeResult{NodeID: id, Success: false, Error: wrapped.Error()}, wrapped
	}

	// Step 4d: materialise the result.
	res, err := e.captureResult(ctx, n)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if e.metrics != nil {
		e.metrics.RecordNodeExecuted(string(n.Type), e.clock().Sub(nodeStart), status)
	}
	return res, err
}

// resolveBindings returns the interpreter global names of n's resolved
// left/right inputs, empty when unbound.
func (e *Engine) resolveBindings(n *Node) (left, right string, err error) {
	if n.leftInputID != nil {
		ln, ok := e.model.Node(*n.leftInputID)
		if !ok {
			return "", "", ErrUnknownNode
		}
		left = ln.binding()
	}
	if n.rightInputID != nil {
		rn, ok := e.model.Node(*n.rightInputID)
		if !ok {
			return "", "", ErrUnknownNode
		}
		right = rn.binding()
	}
	return left, right, nil
}

// bindFilePayload binds the scratch global a source node's raw bytes need
// (spec §4.F step 4a, §5 "Large-content scratch globals use the reserved
// prefix __file_"). n.Settings may be replaced with a transient copy
// carrying an external-input override; this never touches the Model's
// stored settings since n is already a private copy (Model.Node returns
// one per call).
func (e *Engine) bindFilePayload(ctx context.Context, n *Node) (string, error) {
	switch n.Type.canonical() {
	case TypeReadCSV:
		content, err := e.model.FileContent(ctx, n.ID)
		if err != nil {
			return "", err
		}
		global := fileGlobal(n.ID)
		if err := e.interpreter.SetGlobal(ctx, global, content); err != nil {
			return "", err
		}
		if e.metrics != nil {
			e.metrics.RecordStorageRouting(len(content) >= e.model.inlineThreshold)
		}
		return global, nil

	case TypeExternalData:
		eds, ok := n.Settings.(*ExternalDataSettings)
		if !ok {
			return "", &InvalidOptionError{Option: "bindFilePayload", Reason: "external-data node missing settings"}
		}
		e.mu.Lock()
		in, found := e.externalInputs[eds.InputName]
		e.mu.Unlock()
		if !found {
			return "", fmt.Errorf("flow: no external input pushed for %q", eds.InputName)
		}
		effective := *eds
		if in.format != "" {
			effective.Format = in.format
		}
		if in.delimiter != "" {
			effective.Delimiter = in.delimiter
		}
		n.Settings = &effective

		global := fileGlobal(n.ID)
		if err := e.interpreter.SetGlobal(ctx, global, in.content); err != nil {
			return "", err
		}
		return global, nil

	default:
		return "", nil
	}
}

func fileGlobal(id int64) string { return fmt.Sprintf("__file_%d", id) }

// captureResult evaluates a node's binding and shapes it into a
// NodeResult. output/external-output nodes bind their sink bytes rather
// than a table, so their result is reported success-only and surfaced via
// a dedicated "output" event instead of a preview table.
func (e *Engine) captureResult(ctx context.Context, n *Node) (*NodeResult, error) {
	v, err := e.interpreter.Eval(ctx, n.binding())
	if err != nil {
		wrapped := newInterpreterExecError(n.ID, err.Error(), err)
		return &NodeResult{NodeID: n.ID, Success: false, Error: wrapped.Error()}, wrapped
	}

	switch n.Type.canonical() {
	case TypeOutput, TypeExternalOutput:
		content, _ := v.(string)
		e.emitOutputEvent(n, content)
		return &NodeResult{NodeID: n.ID, Success: true}, nil
	}

	table, schema, err := materialisePreview(v, e.previewRowCap)
	if err != nil {
		overflow := &PreviewOverflowError{NodeID: n.ID, Reason: err.Error()}
		return &NodeResult{NodeID: n.ID, Success: false, Error: overflow.Error()}, overflow
	}
	return &NodeResult{NodeID: n.ID, Success: true, Schema: schema, Data: table}, nil
}

// emitOutputEvent publishes the captured sink bytes for an output /
// external-output node (spec §6, "output(nodeId, content, fileName,
// mimeType, rowCount)").
func (e *Engine) emitOutputEvent(n *Node, content string) {
	var fileName, mimeType string
	switch s := n.Settings.(type) {
	case *OutputSettings:
		fileName = s.FileName
		mimeType = mimeTypeFor(s.Format)
	case *ExternalOutputSettings:
		fileName = s.OutputName
		mimeType = mimeTypeFor(s.Format)
	}
	rowCount := countCSVDataRows(content)
	e.emitter.Emit(emit.Event{
		Kind:   emit.KindOutput,
		NodeID: n.ID,
		Meta: map[string]interface{}{
			"content":   content,
			"file_name": fileName,
			"mime_type": mimeType,
			"row_count": rowCount,
		},
	})
}

func mimeTypeFor(f OutputFormat) string {
	if f == FormatParquet {
		return "application/octet-stream"
	}
	return "text/csv"
}

// countCSVDataRows reports the number of data rows (excluding a header
// line) in CSV-shaped content, used only for the advisory row_count on
// the output event.
func countCSVDataRows(content string) int {
	if content == "" {
		return 0
	}
	n := 0
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	if content[len(content)-1] != '\n' {
		n++
	}
	if n > 0 {
		n-- // header line
	}
	return n
}

// IsReady reports whether the Interpreter Bridge has reached Ready.
func (e *Engine) IsReady() bool {
	return e.interpreter.State() == interp.Ready
}

// GetNodeInputSchema returns the inferred schema for a node's own output
// (spec §6 query "getNodeInputSchema"), recording a cache hit/miss.
func (e *Engine) GetNodeInputSchema(nodeID int64) (Schema, bool) {
	hit := e.model.schemaCached(nodeID)
	s, ok := e.model.Schema(nodeID)
	if ok && e.metrics != nil {
		e.metrics.RecordSchemaCache(hit)
	}
	return s, ok
}

// GetLeftInputSchema returns the schema of a node's resolved left input.
func (e *Engine) GetLeftInputSchema(nodeID int64) (Schema, bool) {
	n, ok := e.model.Node(nodeID)
	if !ok || n.leftInputID == nil {
		return nil, false
	}
	return e.GetNodeInputSchema(*n.leftInputID)
}

// GetRightInputSchema returns the schema of a node's resolved right input.
func (e *Engine) GetRightInputSchema(nodeID int64) (Schema, bool) {
	n, ok := e.model.Node(nodeID)
	if !ok || n.rightInputID == nil {
		return nil, false
	}
	return e.GetNodeInputSchema(*n.rightInputID)
}

// ClearFlow empties the Flow Graph Model and the engine's own result
// cache and unbinds every known node binding from the interpreter (spec
// §4.F "Lazy-handle lifecycle", "clear() ... additionally unbinds every
// known node binding").
func (e *Engine) ClearFlow(ctx context.Context) error {
	for _, n := range e.model.Nodes() {
		_ = e.interpreter.DelGlobal(ctx, n.binding())
	}
	e.mu.Lock()
	e.results = map[int64]*NodeResult{}
	e.externalInputs = map[string]externalInput{}
	e.mu.Unlock()
	return e.model.clear(ctx)
}
