package env

import (
	"reflect"
	"testing"
)

func TestToHashableIsSortedAndDeterministic(t *testing.T) {
	m := Map{"B": "2", "A": "1", "C": "3"}
	got := m.ToHashable()
	want := Pairs{"A=1", "B=2", "C=3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToHashable() = %v, want %v", got, want)
	}
}

func TestToSecretHashableHidesValue(t *testing.T) {
	m := Map{"TOKEN": "super-secret"}
	got := m.ToSecretHashable()
	if len(got) != 1 {
		t.Fatalf("expected one pair, got %v", got)
	}
	if got[0] == "TOKEN=super-secret" {
		t.Fatal("expected the raw value to be hashed, not printed in the clear")
	}
}

func TestFromWildcardsInclusionAndExclusion(t *testing.T) {
	m := Map{"NEXT_PUBLIC_FOO": "a", "NEXT_PUBLIC_SECRET": "b", "OTHER": "c"}
	got, err := m.FromWildcards([]string{"NEXT_PUBLIC_*", "!NEXT_PUBLIC_SECRET"})
	if err != nil {
		t.Fatalf("FromWildcards() error = %v", err)
	}
	want := Map{"NEXT_PUBLIC_FOO": "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FromWildcards() = %v, want %v", got, want)
	}
}

func TestFromWildcardsNilPatternsReturnsNil(t *testing.T) {
	m := Map{"A": "1"}
	got, err := m.FromWildcards(nil)
	if err != nil {
		t.Fatalf("FromWildcards(nil) error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestUnionAndDifference(t *testing.T) {
	base := Map{"A": "1", "B": "2"}
	base.Union(Map{"B": "override", "C": "3"})
	if base["B"] != "override" || base["C"] != "3" {
		t.Fatalf("unexpected union result: %v", base)
	}
	base.Difference(Map{"A": ""})
	if _, ok := base["A"]; ok {
		t.Fatal("expected A to be removed by Difference")
	}
}
