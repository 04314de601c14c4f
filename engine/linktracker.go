// linktracker.go - concurrency-safe source-inode to dest-path map
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Placement is the outcome of a LinkTracker.RecordOrGet call.
type Placement struct {
	// First is true when this call planted the key; the caller must
	// copy the entry normally. When false, Existing names the
	// destination a hard link should be made from instead.
	First    bool
	Existing string
}

// LinkTracker maps a LinkKey to the first destination path it was
// placed at. It is consulted whenever a source entry's link count is
// greater than one and the policy preserves hard links; a LinkKey is
// only ever inserted under those conditions - see Copier.copyRegular.
// The hard-link-instead-of-copy mode links every destination to its
// source directly and does not consult the tracker.
//
// RecordOrGet is linearizable: xsync.MapOf's LoadOrStore performs the
// check-and-insert atomically, so two workers racing to discover the
// same (dev, inode) can never both observe First == true.
type LinkTracker struct {
	m *xsync.MapOf[LinkKey, string]
}

func NewLinkTracker() *LinkTracker {
	return &LinkTracker{m: xsync.NewMapOf[LinkKey, string]()}
}

// RecordOrGet atomically inserts proposedDest for key if absent, or
// returns the previously-recorded placement.
func (t *LinkTracker) RecordOrGet(key LinkKey, proposedDest string) Placement {
	existing, loaded := t.m.LoadOrStore(key, proposedDest)
	if !loaded {
		return Placement{First: true}
	}
	return Placement{First: false, Existing: existing}
}

// Reset clears the tracker. Per the spec, a fresh top-level source on a
// different device may start a new tracking epoch; sources sharing a
// device span the whole run.
func (t *LinkTracker) Reset() {
	t.m.Clear()
}

// Len returns the number of distinct inodes currently tracked.
func (t *LinkTracker) Len() int {
	return t.m.Size()
}
