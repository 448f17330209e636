package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// Edge is a directed connection between two nodes (spec §3). Handles are
// strings of the form "output-<k>" / "input-<k>"; input-0 (or the absence
// of a handle on a single-input node) denotes the main/left input, input-1
// the right input on binary operators.
type Edge struct {
	ID int64

	SourceNodeID int64
	SourceHandle string

	TargetNodeID int64
	TargetHandle string
}

// key identifies an edge for the uniqueness invariant: edges are unique by
// (source, target, sourceHandle, targetHandle) (spec §3).
func (e Edge) key() edgeKey {
	return edgeKey{e.SourceNodeID, e.SourceHandle, e.TargetNodeID, e.TargetHandle}
}

type edgeKey struct {
	source       int64
	sourceHandle string
	target       int64
	targetHandle string
}

// normalizedTargetHandle returns "input-0" for an empty handle, since the
// data model treats absence as the main input (spec §3).
func normalizedTargetHandle(h string) string {
	if h == "" {
		return "input-0"
	}
	return h
}

// handleIndex parses the trailing integer out of a "input-<k>" / "output-<k>"
// handle. Returns -1 if the handle doesn't match the expected shape.
func handleIndex(prefix, handle string) int {
	if !strings.HasPrefix(handle, prefix+"-") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(handle, prefix+"-"))
	if err != nil {
		return -1
	}
	return n
}

func inputHandle(k int) string { return fmt.Sprintf("input-%d", k) }
func outputHandle(k int) string { return fmt.Sprintf("output-%d", k) }
