package fingerprint

import "testing"

func TestHashObjectOrderIndependent(t *testing.T) {
	a := map[string]string{"b": "2", "a": "1"}
	b := map[string]string{"a": "1", "b": "2"}
	if HashObject(a) != HashObject(b) {
		t.Fatalf("expected equal hashes for maps with different insertion order")
	}
}

func TestHashObjectDiffersOnChange(t *testing.T) {
	a := map[string]string{"a": "1"}
	b := map[string]string{"a": "2"}
	if HashObject(a) == HashObject(b) {
		t.Fatalf("expected different hashes for different values")
	}
}

func TestHashObjectSliceOrderMatters(t *testing.T) {
	a := []string{"x", "y"}
	b := []string{"y", "x"}
	if HashObject(a) == HashObject(b) {
		t.Fatalf("expected slice order to matter, since slices are ordered lists")
	}
}

func TestShort(t *testing.T) {
	h := HashString([]byte("hello"))
	if len(h.Short()) != 16 {
		t.Fatalf("expected short hash to be 16 chars, got %d", len(h.Short()))
	}
	if len(h) != 64 {
		t.Fatalf("expected full hash to be 64 hex chars, got %d", len(h))
	}
}
