package types

import "sort"

// Event represents a typed event emitted during marketplace state transitions.
// Sequence is assigned when the event is flushed after a committed operation,
// giving indexers a total order across all listings.
type Event struct {
	Type       string            `json:"type"`
	Sequence   uint64            `json:"sequence,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the attribute stored under key, or "" when absent.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Keys returns the attribute names in sorted order.
func (e *Event) Keys() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
