package session

import "fmt"

// Registry assigns each peer id a stable display label for the lifetime of
// a session. Labels are handed out in first-seen order and never reused.
type Registry struct {
	labels map[string]string
	next   int
}

// NewRegistry returns an empty registry whose first label is "Peer-1".
func NewRegistry() *Registry {
	return &Registry{labels: make(map[string]string), next: 1}
}

// LabelFor returns the label for id, allocating the next one on first sight.
func (r *Registry) LabelFor(id string) string {
	if label, ok := r.labels[id]; ok {
		return label
	}
	label := fmt.Sprintf("Peer-%d", r.next)
	r.next++
	r.labels[id] = label
	return label
}

// Len returns the number of labelled peers.
func (r *Registry) Len() int {
	return len(r.labels)
}
