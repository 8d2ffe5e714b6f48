// Package registry keeps the table of callbacks a client dispatches
// inbound messages to.
//
// Each entry pairs a Kind with an optional topic filter. An empty filter
// means the entry handles every topic of its kind. Two kinds are
// category-wide: Commands receives every command and DMActions receives
// every device management action. At most one of each may be registered,
// and while one is set no other entry of its category is accepted.
//
// All methods are safe for concurrent use; lookups from the transport's
// callback goroutine may race with registration from application code.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tinayla696/iotp_client_golang/module/topic"
)

var (
	// ErrAlreadyRegistered is returned when a category-wide handler
	// conflicts with an existing registration.
	ErrAlreadyRegistered = errors.New("registry: handler already registered")

	// ErrKindMismatch is returned when a filter is re-registered with a
	// different kind than the one stored.
	ErrKindMismatch = errors.New("registry: handler kind mismatch")

	// ErrInvalidHandler is returned for nil callbacks, unknown kinds, or a
	// callback variant that does not fit the kind.
	ErrInvalidHandler = errors.New("registry: invalid handler")
)

const noSlot = -1

// AppHandler receives application messages: commands, events,
// notifications and monitoring messages. typeID and deviceID are empty
// for topics addressed to the client itself.
type AppHandler func(typeID, deviceID, name, format string, payload []byte)

// ActionHandler receives device management actions.
type ActionHandler func(kind Kind, reqID string, payload []byte)

// Entry is one registration. Exactly one of App and Action is set,
// selected by Kind.IsAction.
type Entry struct {
	Kind   Kind
	Filter string
	App    AppHandler
	Action ActionHandler
}

// Registry maps topics to handler entries.
type Registry struct {
	mu          sync.RWMutex
	entries     []Entry
	allCommands int
	allActions  int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		allCommands: noSlot,
		allActions:  noSlot,
	}
}

// Register adds or updates an application handler. An empty filter
// registers the handler for every topic of its kind.
func (r *Registry) Register(kind Kind, filter string, h AppHandler) error {
	if h == nil || !kind.Valid() || kind.IsAction() {
		return fmt.Errorf("%w: %s", ErrInvalidHandler, kind)
	}
	if kind == Commands {
		filter = ""
	}
	return r.add(Entry{Kind: kind, Filter: filter, App: h})
}

// RegisterAction adds or updates a device management handler. Specific
// actions are keyed by their device-form action topic; DMActions is
// category-wide.
func (r *Registry) RegisterAction(kind Kind, h ActionHandler) error {
	if h == nil || !kind.IsAction() {
		return fmt.Errorf("%w: %s", ErrInvalidHandler, kind)
	}

	var filter string
	if action, ok := kind.Action(); ok {
		filter = topic.ActionTopic(action)
	}
	return r.add(Entry{Kind: kind, Filter: filter, Action: h})
}

func (r *Registry) add(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case e.Kind == Commands && r.allCommands != noSlot,
		e.Kind == DMActions && r.allActions != noSlot:
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, e.Kind)
	case e.Kind.IsCommand() && r.allCommands != noSlot:
		return fmt.Errorf("%w: %s blocks %s", ErrAlreadyRegistered, Commands, e.Kind)
	case e.Kind.IsAction() && r.allActions != noSlot:
		return fmt.Errorf("%w: %s blocks %s", ErrAlreadyRegistered, DMActions, e.Kind)
	}

	if i := r.find(e); i != noSlot {
		if r.entries[i].Kind != e.Kind {
			return fmt.Errorf("%w: %q is registered as %s, not %s", ErrKindMismatch, e.Filter, r.entries[i].Kind, e.Kind)
		}
		r.entries[i].App = e.App
		r.entries[i].Action = e.Action
		return nil
	}

	r.entries = append(r.entries, e)
	switch e.Kind {
	case Commands:
		r.allCommands = len(r.entries) - 1
	case DMActions:
		r.allActions = len(r.entries) - 1
	}
	return nil
}

// find returns the index of the entry e would update. Filters match
// exactly; filter-less entries match on kind.
func (r *Registry) find(e Entry) int {
	for i, cur := range r.entries {
		if e.Filter != "" && cur.Filter == e.Filter {
			return i
		}
		if e.Filter == "" && cur.Filter == "" && cur.Kind == e.Kind {
			return i
		}
	}
	return noSlot
}

// Lookup returns the entry that handles the inbound topic name.
//
// Management topics go to the DMActions entry when one is set, topics
// shaped like commands to the Commands entry, even when they do not
// decode. Events never reach the Commands entry. Otherwise an entry whose filter equals
// name wins, then a filter-less entry whose kind covers the topic.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return Entry{}, false
	}

	if topic.IsAction(name) && r.allActions != noSlot {
		return r.entries[r.allActions], true
	}

	if topic.IsCommand(name) && r.allCommands != noSlot {
		return r.entries[r.allCommands], true
	}

	class := topic.ClassUnknown
	if t, err := topic.Parse(name); err == nil {
		class = t.Class
	}

	for _, e := range r.entries {
		if e.Filter != "" && e.Filter == name {
			return e, true
		}
	}
	for _, e := range r.entries {
		if e.Filter == "" && e.Kind.accepts(class) {
			return e, true
		}
	}
	return Entry{}, false
}

// Unregister removes the entry registered with filter. It reports whether
// an entry was removed.
func (r *Registry) Unregister(filter string) bool {
	if filter == "" {
		return false
	}
	return r.remove(func(e Entry) bool { return e.Filter == filter })
}

// UnregisterKind removes the filter-less entry of kind, including the
// category-wide ones.
func (r *Registry) UnregisterKind(kind Kind) bool {
	if action, ok := kind.Action(); ok {
		return r.Unregister(topic.ActionTopic(action))
	}
	return r.remove(func(e Entry) bool { return e.Filter == "" && e.Kind == kind })
}

func (r *Registry) remove(match func(Entry) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.entries, match)
	if i < 0 {
		return false
	}
	r.entries = slices.Delete(r.entries, i, i+1)

	r.allCommands, r.allActions = noSlot, noSlot
	for j, e := range r.entries {
		switch e.Kind {
		case Commands:
			r.allCommands = j
		case DMActions:
			r.allActions = j
		}
	}
	return true
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
