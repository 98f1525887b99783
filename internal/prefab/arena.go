// Package prefab resolves serialized scene-graph documents into Prefab
// records: one flattened record per root entity, with every recognized
// behavior payload attached under its component-type name and all embedded
// references rewritten in place.
package prefab

import "timbertrees/internal/document"

// Entry is one auxiliary entry of a scene-graph document, keyed by its
// document-local integer anchor. ClassID is the serializer's numeric class
// tag; ClassName is the single top-level key of the entry document (e.g.
// "GameObject", "MonoBehaviour", "Transform").
type Entry struct {
	Anchor    int64
	ClassID   int
	ClassName string
	Doc       document.Value
}

// Body returns the entry's payload map, the value under its class-name key.
func (e Entry) Body() document.Value {
	body, _ := e.Doc.Field(e.ClassName)
	return body
}

// Arena owns the auxiliary entry pool of exactly one document resolution.
// Entries are taken out as they are consumed and never come back, which makes
// "already consumed" a checkable state and guarantees termination: the pool
// only shrinks. An Arena is never shared between resolution tasks, so it
// needs no locking.
type Arena struct {
	entries map[int64]Entry
	order   []int64
}

// NewArena builds the pool from the document's entries in document order.
func NewArena(entries []Entry) *Arena {
	a := &Arena{entries: make(map[int64]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := a.entries[e.Anchor]; dup {
			continue
		}
		a.entries[e.Anchor] = e
		a.order = append(a.order, e.Anchor)
	}
	return a
}

// Take removes and returns the entry at anchor. The second result is false
// when the anchor is absent, either never present or already consumed.
func (a *Arena) Take(anchor int64) (Entry, bool) {
	e, ok := a.entries[anchor]
	if ok {
		delete(a.entries, anchor)
	}
	return e, ok
}

// Peek returns the entry at anchor without consuming it.
func (a *Arena) Peek(anchor int64) (Entry, bool) {
	e, ok := a.entries[anchor]
	return e, ok
}

// Len reports how many entries remain unconsumed.
func (a *Arena) Len() int { return len(a.entries) }

// Remaining returns the unconsumed entries in original document order.
func (a *Arena) Remaining() []Entry {
	out := make([]Entry, 0, len(a.entries))
	for _, anchor := range a.order {
		if e, ok := a.entries[anchor]; ok {
			out = append(out, e)
		}
	}
	return out
}
