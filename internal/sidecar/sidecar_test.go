package sidecar

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShadowPathAndOwningContainer(t *testing.T) {
	m := New("/mnt/cf/A.MLV")
	want := "/mnt/cf/A.MLD"
	if got := m.ShadowPath(); got != want {
		t.Fatalf("ShadowPath = %q, want %q", got, want)
	}
	if got := OwningContainer("A.MLD"); got != "A" {
		t.Fatalf("OwningContainer = %q, want %q", got, "A")
	}
}

func TestEnsureCreatedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	m := New(path)

	if err := m.EnsureCreated(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(m.ShadowPath())
	if err != nil || !info.IsDir() {
		t.Fatalf("shadow dir not created: %v", err)
	}
	if err := m.EnsureCreated(); err != nil {
		t.Fatalf("second EnsureCreated should be a no-op, got %v", err)
	}
}

func TestListEntriesExcludesBookkeepingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	m := New(path)
	if err := m.EnsureCreated(); err != nil {
		t.Fatal(err)
	}
	shadow := m.ShadowPath()
	for _, name := range []string{"notes.txt", "sub.MLD", "A.IDX"} {
		if err := os.WriteFile(filepath.Join(shadow, name), []byte("x"), 0o644); err != nil && name != "sub.MLD" {
			t.Fatal(err)
		}
	}
	os.Mkdir(filepath.Join(shadow, "sub.MLD"), 0o755)

	names, err := m.ListEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "notes.txt" {
		t.Fatalf("got %v, want [notes.txt]", names)
	}
}

func TestListEntriesMissingDirReturnsNil(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "A.MLV"))
	names, err := m.ListEntries()
	if err != nil {
		t.Fatal(err)
	}
	if names != nil {
		t.Fatalf("got %v, want nil", names)
	}
}

func TestRealPath(t *testing.T) {
	m := New("/mnt/cf/A.MLV")
	want := "/mnt/cf/A.MLD/notes.txt"
	if got := m.RealPath("notes.txt"); got != want {
		t.Fatalf("RealPath = %q, want %q", got, want)
	}
}
