package flow

import "encoding/json"

// marshalSettings renders a Settings payload to JSON. It is a thin wrapper
// today, kept separate from settings.go so the (de)serialisation concern
// stays next to Document's own JSON/YAML handling.
func marshalSettings(s Settings) (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(s)
}

// unmarshalSettings decodes a JSON settings payload against the shape
// implied by t, validating the shape matches the node's type (spec §4.D
// updateNodeSettings: "validates shape against type").
func unmarshalSettings(t NodeType, raw json.RawMessage) (Settings, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultSettings(t), nil
	}
	target := defaultSettings(t)
	if target == nil {
		return nil, &MalformedSettingsError{NodeType: t, Reason: "unknown node type"}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, &MalformedSettingsError{NodeType: t, Reason: err.Error()}
	}
	return target, nil
}

// MalformedSettingsError reports that a settings payload's JSON shape does
// not match what its declared NodeType requires.
type MalformedSettingsError struct {
	NodeType NodeType
	Reason   string
}

func (e *MalformedSettingsError) Error() string {
	return "flow: settings for node type " + string(e.NodeType) + " malformed: " + e.Reason
}
