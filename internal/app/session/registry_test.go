package session

import "testing"

func TestRegistry_FirstSeenOrder(t *testing.T) {
	r := NewRegistry()
	ids := []string{"car-b", "car-a", "car-b", "bike", "car-a", "car-b"}
	want := []string{"Peer-1", "Peer-2", "Peer-1", "Peer-3", "Peer-2", "Peer-1"}

	for i, id := range ids {
		if got := r.LabelFor(id); got != want[i] {
			t.Errorf("LabelFor(%q) #%d = %q, want %q", id, i, got, want[i])
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistry_FreshRegistryRestartsNumbering(t *testing.T) {
	r := NewRegistry()
	r.LabelFor("x")
	r.LabelFor("y")

	fresh := NewRegistry()
	if got := fresh.LabelFor("y"); got != "Peer-1" {
		t.Errorf("fresh registry LabelFor(y) = %q, want Peer-1", got)
	}
}
