package flow

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// DocumentVersion is the only flowfile_version this engine understands.
// Import rejects anything else with ErrUnsupportedVersion (spec §4.E).
const DocumentVersion = "1"

// ExecutionMode is advisory document metadata; the engine itself does not
// branch on it (spec §6 document format).
type ExecutionMode string

const (
	ExecutionDevelopment ExecutionMode = "Development"
	ExecutionPerformance ExecutionMode = "Performance"
)

// ExecutionLocation is advisory document metadata, same treatment as
// ExecutionMode.
type ExecutionLocation string

const (
	LocationLocal  ExecutionLocation = "local"
	LocationRemote ExecutionLocation = "remote"
)

// FlowSettings carries document-level options that round-trip through
// serialisation without the engine interpreting them (spec §6).
type FlowSettings struct {
	Description          string            `json:"description" yaml:"description"`
	ExecutionMode        ExecutionMode     `json:"execution_mode" yaml:"execution_mode"`
	ExecutionLocation    ExecutionLocation `json:"execution_location" yaml:"execution_location"`
	AutoSave             bool              `json:"auto_save" yaml:"auto_save"`
	ShowDetailedProgress bool              `json:"show_detailed_progress" yaml:"show_detailed_progress"`
}

// DefaultFlowSettings returns the zero-value settings a freshly created
// document carries until the host overrides them.
func DefaultFlowSettings() FlowSettings {
	return FlowSettings{
		ExecutionMode:     ExecutionDevelopment,
		ExecutionLocation: LocationLocal,
	}
}

// SerializedNode is one node entry of a Document. Edges are not stored
// separately; they are reconstructed from InputIDs/LeftInputID/
// RightInputID on import (spec §4.E).
type SerializedNode struct {
	ID            int64           `json:"id" yaml:"id"`
	Type          NodeType        `json:"type" yaml:"type"`
	IsStartNode   bool            `json:"is_start_node" yaml:"is_start_node"`
	Description   string          `json:"description" yaml:"description"`
	NodeReference string          `json:"node_reference,omitempty" yaml:"node_reference,omitempty"`
	XPosition     float64         `json:"x_position" yaml:"x_position"`
	YPosition     float64         `json:"y_position" yaml:"y_position"`
	InputIDs      []int64         `json:"input_ids" yaml:"input_ids"`
	LeftInputID   *int64          `json:"left_input_id,omitempty" yaml:"left_input_id,omitempty"`
	RightInputID  *int64          `json:"right_input_id,omitempty" yaml:"right_input_id,omitempty"`
	Outputs       []string        `json:"outputs,omitempty" yaml:"outputs,omitempty"` // advisory only, not authoritative

	// SettingInput is the node's settings payload as JSON. The YAML codec
	// (ToYAML/DocumentFromYAML) round-trips it through a parallel
	// interface{}-typed field since yaml.v3 cannot decode arbitrary
	// JSON-shaped raw bytes the way encoding/json can.
	SettingInput json.RawMessage `json:"setting_input" yaml:"-"`
}

// Document is the versioned, self-contained serialisation format for a
// flow graph (spec §4.E / §6).
type Document struct {
	FlowfileVersion  string           `json:"flowfile_version" yaml:"flowfile_version"`
	FlowfileID       int64            `json:"flowfile_id" yaml:"flowfile_id"`
	FlowfileName     string           `json:"flowfile_name" yaml:"flowfile_name"`
	FlowfileSettings FlowSettings     `json:"flowfile_settings" yaml:"flowfile_settings"`
	Nodes            []SerializedNode `json:"nodes" yaml:"nodes"`
}

// Export serialises m into a Document under the given name. The returned
// document's FlowfileID is freshly minted on every call, so repeated
// exports of the same model carry different ids.
func Export(m *Model, name string, settings FlowSettings) *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := &Document{
		FlowfileVersion:  DocumentVersion,
		FlowfileID:       newDocumentIDInt(),
		FlowfileName:     name,
		FlowfileSettings: settings,
		Nodes:            make([]SerializedNode, 0, len(m.nodeOrder)),
	}
	for _, id := range m.nodeOrder {
		n := m.nodes[id]
		raw, err := marshalSettings(n.Settings)
		if err != nil {
			raw = json.RawMessage("null")
		}
		sn := SerializedNode{
			ID:            n.ID,
			Type:          n.Type,
			IsStartNode:   n.IsStartNode(),
			Description:   n.Description,
			NodeReference: n.NodeReference,
			XPosition:     n.X,
			YPosition:     n.Y,
			InputIDs:      append([]int64(nil), n.inputIds...),
			SettingInput:  raw,
		}
		if n.leftInputID != nil {
			v := *n.leftInputID
			sn.LeftInputID = &v
		}
		if n.rightInputID != nil {
			v := *n.rightInputID
			sn.RightInputID = &v
		}
		doc.Nodes = append(doc.Nodes, sn)
	}
	return doc
}

// Import validates doc and replaces m's entire graph with the document's
// contents (spec §4.E). On any validation failure m is left untouched
// ("import errors never mutate the existing graph", spec §7).
func Import(m *Model, doc *Document) error {
	if doc.FlowfileVersion != DocumentVersion {
		return ErrUnsupportedVersion
	}
	seen := map[int64]bool{}
	for _, n := range doc.Nodes {
		if n.ID <= 0 {
			return &MalformedDocumentError{Reason: "node id must be positive"}
		}
		if seen[n.ID] {
			return &MalformedDocumentError{Reason: "duplicate node id"}
		}
		seen[n.ID] = true
		if !n.Type.valid() {
			return &MalformedDocumentError{Reason: "unknown node type " + string(n.Type)}
		}
	}
	for _, n := range doc.Nodes {
		for _, in := range n.InputIDs {
			if !seen[in] {
				return ErrMissingNode
			}
		}
		if n.LeftInputID != nil && !seen[*n.LeftInputID] {
			return ErrMissingNode
		}
		if n.RightInputID != nil && !seen[*n.RightInputID] {
			return ErrMissingNode
		}
	}

	built := make(map[int64]*Node, len(doc.Nodes))
	order := make([]int64, 0, len(doc.Nodes))
	var maxID int64
	for _, sn := range doc.Nodes {
		settings, err := unmarshalSettings(sn.Type, sn.SettingInput)
		if err != nil {
			return &MalformedDocumentError{Reason: err.Error()}
		}
		n := &Node{
			ID:            sn.ID,
			Type:          sn.Type,
			X:             sn.XPosition,
			Y:             sn.YPosition,
			NodeReference: sn.NodeReference,
			Description:   sn.Description,
			Settings:      settings,
			inputIds:      append([]int64(nil), sn.InputIDs...),
		}
		if sn.LeftInputID != nil {
			v := *sn.LeftInputID
			n.leftInputID = &v
		}
		if sn.RightInputID != nil {
			v := *sn.RightInputID
			n.rightInputID = &v
		}
		built[sn.ID] = n
		order = append(order, sn.ID)
		if sn.ID > maxID {
			maxID = sn.ID
		}
	}

	edges := make(map[int64]*Edge, len(doc.Nodes)*2)
	var edgeOrder []int64
	edgeID := int64(0)
	addReconstructedEdge := func(source, target int64, handle string) {
		edgeID++
		edges[edgeID] = &Edge{ID: edgeID, SourceNodeID: source, SourceHandle: outputHandle(0), TargetNodeID: target, TargetHandle: handle}
		edgeOrder = append(edgeOrder, edgeID)
	}
	for _, sn := range doc.Nodes {
		switch {
		case sn.LeftInputID != nil || sn.RightInputID != nil:
			if sn.LeftInputID != nil {
				addReconstructedEdge(*sn.LeftInputID, sn.ID, inputHandle(0))
			}
			if sn.RightInputID != nil {
				addReconstructedEdge(*sn.RightInputID, sn.ID, inputHandle(1))
			}
		default:
			for i, in := range sn.InputIDs {
				addReconstructedEdge(in, sn.ID, inputHandle(i))
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = built
	m.nodeOrder = order
	m.edges = edges
	m.edgeOrder = edgeOrder
	m.selected = map[int64]bool{}
	m.schemaCache = map[int64]Schema{}
	m.schemaValid = map[int64]bool{}
	m.nodeIDs = newIDSeq()
	m.nodeIDs.bumpPast(maxID)
	m.edgeIDs = newIDSeq()
	m.edgeIDs.bumpPast(edgeID)
	for id := range built {
		m.recomputeProjectionsLocked(id)
	}
	return nil
}

// MalformedDocumentError carries the structural reason a document failed
// validation, while still satisfying errors.Is(err, ErrMalformedDocument).
type MalformedDocumentError struct {
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	return "flow: malformed document: " + e.Reason
}

func (e *MalformedDocumentError) Is(target error) bool { return target == ErrMalformedDocument }

// ToJSON encodes a Document as indented JSON.
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// DocumentFromJSON decodes a Document from JSON bytes.
func DocumentFromJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &MalformedDocumentError{Reason: err.Error()}
	}
	return &d, nil
}

// ToYAML encodes a Document as YAML. Because SerializedNode.SettingInput is
// a json.RawMessage (opaque to the YAML codec), it is decoded to an
// interface{} value first so yaml.v3 can render it as native YAML.
func (d *Document) ToYAML() ([]byte, error) {
	type yamlNode struct {
		ID            int64       `yaml:"id"`
		Type          NodeType    `yaml:"type"`
		IsStartNode   bool        `yaml:"is_start_node"`
		Description   string      `yaml:"description"`
		NodeReference string      `yaml:"node_reference,omitempty"`
		XPosition     float64     `yaml:"x_position"`
		YPosition     float64     `yaml:"y_position"`
		InputIDs      []int64     `yaml:"input_ids"`
		LeftInputID   *int64      `yaml:"left_input_id,omitempty"`
		RightInputID  *int64      `yaml:"right_input_id,omitempty"`
		Outputs       []string    `yaml:"outputs,omitempty"`
		SettingInput  interface{} `yaml:"setting_input"`
	}
	type yamlDoc struct {
		FlowfileVersion  string       `yaml:"flowfile_version"`
		FlowfileID       int64        `yaml:"flowfile_id"`
		FlowfileName     string       `yaml:"flowfile_name"`
		FlowfileSettings FlowSettings `yaml:"flowfile_settings"`
		Nodes            []yamlNode   `yaml:"nodes"`
	}
	out := yamlDoc{
		FlowfileVersion:  d.FlowfileVersion,
		FlowfileID:       d.FlowfileID,
		FlowfileName:     d.FlowfileName,
		FlowfileSettings: d.FlowfileSettings,
	}
	for _, n := range d.Nodes {
		var asAny interface{}
		_ = json.Unmarshal(n.SettingInput, &asAny)
		out.Nodes = append(out.Nodes, yamlNode{
			ID: n.ID, Type: n.Type, IsStartNode: n.IsStartNode, Description: n.Description,
			NodeReference: n.NodeReference, XPosition: n.XPosition, YPosition: n.YPosition,
			InputIDs: n.InputIDs, LeftInputID: n.LeftInputID, RightInputID: n.RightInputID,
			Outputs: n.Outputs, SettingInput: asAny,
		})
	}
	return yaml.Marshal(out)
}

// DocumentFromYAML decodes a Document from YAML bytes.
func DocumentFromYAML(data []byte) (*Document, error) {
	type yamlNode struct {
		ID            int64       `yaml:"id"`
		Type          NodeType    `yaml:"type"`
		IsStartNode   bool        `yaml:"is_start_node"`
		Description   string      `yaml:"description"`
		NodeReference string      `yaml:"node_reference,omitempty"`
		XPosition     float64     `yaml:"x_position"`
		YPosition     float64     `yaml:"y_position"`
		InputIDs      []int64     `yaml:"input_ids"`
		LeftInputID   *int64      `yaml:"left_input_id,omitempty"`
		RightInputID  *int64      `yaml:"right_input_id,omitempty"`
		Outputs       []string    `yaml:"outputs,omitempty"`
		SettingInput  interface{} `yaml:"setting_input"`
	}
	type yamlDoc struct {
		FlowfileVersion  string       `yaml:"flowfile_version"`
		FlowfileID       int64        `yaml:"flowfile_id"`
		FlowfileName     string       `yaml:"flowfile_name"`
		FlowfileSettings FlowSettings `yaml:"flowfile_settings"`
		Nodes            []yamlNode   `yaml:"nodes"`
	}
	var in yamlDoc
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, &MalformedDocumentError{Reason: err.Error()}
	}
	d := &Document{
		FlowfileVersion:  in.FlowfileVersion,
		FlowfileID:       in.FlowfileID,
		FlowfileName:     in.FlowfileName,
		FlowfileSettings: in.FlowfileSettings,
	}
	for _, n := range in.Nodes {
		raw, err := json.Marshal(n.SettingInput)
		if err != nil {
			return nil, &MalformedDocumentError{Reason: err.Error()}
		}
		d.Nodes = append(d.Nodes, SerializedNode{
			ID: n.ID, Type: n.Type, IsStartNode: n.IsStartNode, Description: n.Description,
			NodeReference: n.NodeReference, XPosition: n.XPosition, YPosition: n.YPosition,
			InputIDs: n.InputIDs, LeftInputID: n.LeftInputID, RightInputID: n.RightInputID,
			Outputs: n.Outputs, SettingInput: raw,
		})
	}
	return d, nil
}
