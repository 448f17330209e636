// Package emit provides the Host Interface event stream (spec §6): ready,
// execution-started, node-executed, execution-complete, execution-error,
// output, flow-changed, loading-status.
package emit

// Kind is the closed set of event names the Host Interface publishes.
type Kind string

const (
	KindReady             Kind = "ready"
	KindExecutionStarted  Kind = "execution-started"
	KindNodeExecuted      Kind = "node-executed"
	KindExecutionComplete Kind = "execution-complete"
	KindExecutionError    Kind = "execution-error"
	KindOutput            Kind = "output"
	KindFlowChanged       Kind = "flow-changed"
	KindLoadingStatus     Kind = "loading-status"
)

// Event is one observability/host-notification event emitted during
// bridge initialisation, graph mutation, or execution.
type Event struct {
	Kind Kind

	// RunID identifies the execution pass that produced this event; empty
	// for document-level events (ready, flow-changed, loading-status) and
	// for output events, which the engine emits without a run id.
	RunID string

	// NodeID identifies the node this event concerns; zero when not
	// node-scoped.
	NodeID int64

	// Msg is a human-readable description, used verbatim by
	// loading-status and execution-error.
	Msg string

	// Meta carries event-specific structured payload. Common keys:
	//   - "result": *flow.NodeResult (node-executed)
	//   - "results": map[int64]*flow.NodeResult (execution-complete)
	//   - "error": error (execution-error)
	//   - "content"/"file_name"/"mime_type"/"row_count" (output)
	//   - "duration_ms": float64
	Meta map[string]interface{}
}
