package globwalk

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestEnumerateDoubleStar(t *testing.T) {
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, "dist", "a.js"), "a")
	mustWrite(t, filepath.Join(base, "dist", "nested", "b.js"), "b")
	mustWrite(t, filepath.Join(base, "src", "index.js"), "c")

	got, err := Enumerate(base, []string{"dist/**"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dist/a.js", "dist/nested/b.js"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEnumerateIdempotent(t *testing.T) {
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, "a.txt"), "a")
	mustWrite(t, filepath.Join(base, "b.txt"), "b")

	first, err := Enumerate(base, []string{"**/*.txt"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Enumerate(base, []string{"**/*.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("enumerate is not idempotent: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("enumerate is not idempotent: %v vs %v", first, second)
		}
	}
}

func TestEnumerateRespectsNegation(t *testing.T) {
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, "dist", "a.js"), "a")
	mustWrite(t, filepath.Join(base, "dist", "a.map"), "a")

	got, err := Enumerate(base, []string{"dist/**", "!dist/**/*.map"})
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range got {
		if filepath.Ext(g) == ".map" {
			t.Fatalf("expected .map files to be excluded by negation, got %v", got)
		}
	}
}

func TestMatchesNegation(t *testing.T) {
	if Matches("dist/a.map", []string{"dist/**", "!dist/**/*.map"}) {
		t.Fatalf("expected dist/a.map to be excluded")
	}
	if !Matches("dist/a.js", []string{"dist/**", "!dist/**/*.map"}) {
		t.Fatalf("expected dist/a.js to be included")
	}
}
