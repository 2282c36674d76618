// Package tags maintains the app-wide tag vocabulary shared by all
// recordings. Edits are broadcast to subscribers as typed events so the
// recordings list can be rewritten in step.
package tags

import (
	"strings"
	"sync"
)

// EventKind classifies vocabulary edits.
type EventKind string

const (
	EventRenamed EventKind = "renamed"
	EventRemoved EventKind = "removed"
	EventMerged  EventKind = "merged"
)

// Event describes one vocabulary edit. Name is the affected tag; NewName
// is set for renames and merges (the surviving tag).
type Event struct {
	Kind    EventKind
	Name    string
	NewName string
}

// Vocabulary is the ordered, case-insensitively unique set of known tags.
type Vocabulary struct {
	mu        sync.Mutex
	names     []string
	listeners []func(Event)
}

// NewVocabulary creates a vocabulary seeded with the given tags.
func NewVocabulary(seed []string) *Vocabulary {
	v := &Vocabulary{}
	v.Add(seed...)
	return v
}

// Subscribe registers a listener for vocabulary edits. Listeners are
// invoked synchronously, outside the vocabulary lock.
func (v *Vocabulary) Subscribe(fn func(Event)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// All returns a snapshot of known tags in insertion order.
func (v *Vocabulary) All() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Add inserts tags not yet known, ignoring case. Empty names are dropped.
// Reports whether the vocabulary changed.
func (v *Vocabulary) Add(names ...string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := false
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if v.indexOf(trimmed) >= 0 {
			continue
		}
		v.names = append(v.names, trimmed)
		changed = true
	}
	return changed
}

// Rename replaces old with new (case-insensitive lookup) and broadcasts
// the edit. A rename onto an existing tag collapses into that tag.
func (v *Vocabulary) Rename(old, new string) bool {
	old = strings.TrimSpace(old)
	new = strings.TrimSpace(new)
	if old == "" || new == "" || old == new {
		return false
	}

	v.mu.Lock()
	idx := v.indexOf(old)
	if idx < 0 {
		v.mu.Unlock()
		return false
	}
	if existing := v.indexOf(new); existing >= 0 && existing != idx {
		// Target already known: the rename is effectively a merge.
		v.names = append(v.names[:idx], v.names[idx+1:]...)
	} else {
		v.names[idx] = new
	}
	v.mu.Unlock()

	v.broadcast(Event{Kind: EventRenamed, Name: old, NewName: new})
	return true
}

// Remove deletes a tag (case-insensitive) and broadcasts the edit.
func (v *Vocabulary) Remove(name string) bool {
	name = strings.TrimSpace(name)

	v.mu.Lock()
	idx := v.indexOf(name)
	if idx < 0 {
		v.mu.Unlock()
		return false
	}
	v.names = append(v.names[:idx], v.names[idx+1:]...)
	v.mu.Unlock()

	v.broadcast(Event{Kind: EventRemoved, Name: name})
	return true
}

// Merge folds from into to (case-insensitive) and broadcasts the edit.
func (v *Vocabulary) Merge(from, to string) bool {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" || strings.EqualFold(from, to) {
		return false
	}

	v.mu.Lock()
	idx := v.indexOf(from)
	if idx < 0 {
		v.mu.Unlock()
		return false
	}
	v.names = append(v.names[:idx], v.names[idx+1:]...)
	if v.indexOf(to) < 0 {
		v.names = append(v.names, to)
	}
	v.mu.Unlock()

	v.broadcast(Event{Kind: EventMerged, Name: from, NewName: to})
	return true
}

// indexOf finds a tag ignoring case. Caller holds the lock.
func (v *Vocabulary) indexOf(name string) int {
	for i, n := range v.names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// broadcast delivers an event to all listeners without holding the lock.
func (v *Vocabulary) broadcast(event Event) {
	v.mu.Lock()
	listeners := make([]func(Event), len(v.listeners))
	copy(listeners, v.listeners)
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
