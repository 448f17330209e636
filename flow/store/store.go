// Package store provides persistence implementations for the Large-Content
// Store (spec §4.A): a persistent key→blob store of oversized node file
// payloads, keyed by node identity.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for the given node id.
var ErrNotFound = errors.New("store: not found")

// ErrFull is returned by Put when the host runtime rejects the write
// (spec §4.A, "Fails with StorageFull when the host runtime rejects the
// write").
var ErrFull = errors.New("store: storage full")

// InlineThreshold is the fixed boundary (spec §4.A, §8): content at or
// above this many UTF-8 bytes is routed to persistent storage; below it,
// content stays inline in the node's settings.
const InlineThreshold = 5 * 1024 * 1024 // 5 MiB

// Policy is the routing decision Policy() returns.
type Policy int

const (
	Inline Policy = iota
	Persistent
)

func (p Policy) String() string {
	if p == Persistent {
		return "persistent"
	}
	return "inline"
}

// PolicyFor returns Persistent iff the UTF-8 byte length of content meets
// or exceeds InlineThreshold (spec §4.A, §8: "crosses at exactly 5 MiB...
// below ⇒ inline, at-or-above ⇒ persistent").
func PolicyFor(content []byte) Policy {
	if len(content) >= InlineThreshold {
		return Persistent
	}
	return Inline
}

// Store is a persistent, ordered key-value store of integer node id to
// byte-sequence content, outliving a single session (spec §4.A).
//
// The persistent implementations (SQLiteStore, MySQLStore) keep writes
// durable across session restarts; MemStore keeps them only for the life of
// the process. Every implementation guarantees: reads are consistent with
// the last successful write; no
// concurrent writers are assumed within one document (spec §5, "single
// logical writer per document").
type Store interface {
	// Put writes content for nodeID atomically, overwriting any prior
	// value. Returns ErrFull if the host runtime rejects the write.
	Put(ctx context.Context, nodeID int64, content []byte) error

	// Get returns the last successful write for nodeID, or ErrNotFound.
	Get(ctx context.Context, nodeID int64) ([]byte, error)

	// Delete removes the entry for nodeID. Idempotent: deleting an
	// absent key is not an error (spec property 7).
	Delete(ctx context.Context, nodeID int64) error

	// Keys returns every node id currently holding an entry.
	Keys(ctx context.Context) ([]int64, error)

	// Clear empties the store.
	Clear(ctx context.Context) error

	// Close releases any resources (open file handles, connections) held
	// by the store. Safe to call more than once.
	Close() error
}
