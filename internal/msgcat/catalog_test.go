package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEmbeddedCatalogRenders(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("session.joined.white", map[string]any{"User": "alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "alice has joined the game as White." {
		t.Fatalf("unexpected text %q", got)
	}
	if _, err := c.Render("session.moved", map[string]any{"User": "a"}); err == nil {
		t.Fatalf("expected missing field error")
	}
}

func TestRequiredKeysAreChecked(t *testing.T) {
	if _, err := New("", "session.left", "error.internal"); err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err := New("", "session.left", "session.vanished")
	if err == nil || !strings.Contains(err.Error(), "session.vanished") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestTextFallsBackToKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("fallback = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("session.left", nil); got != "session.left" {
		t.Fatalf("nil catalog fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "session:\n  left: \"{{.User}} walked away.\"\n")
	writeFile(t, dir, "notes.txt", "ignored")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("session.left", map[string]any{"User": "bob"}); got != "bob walked away." {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their defaults
	if got := c.Text("session.resigned", map[string]any{"User": "bob"}); !strings.Contains(got, "resigned") {
		t.Fatalf("default lost: %q", got)
	}
}

func TestBadOverridesRejected(t *testing.T) {
	cases := map[string]map[string]string{
		"duplicate key": {"a.yaml": "session:\n  left: x\n", "b.yml": "session:\n  left: y\n"},
		"unknown key":   {"a.yaml": "session:\n  lef: x\n"},
		"bad template":  {"a.yaml": "session:\n  left: \"{{.User\"\n"},
		"list value":    {"a.yaml": "session:\n  left: [a, b]\n"},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for n, body := range files {
				writeFile(t, dir, n, body)
			}
			if _, err := New(dir); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
