package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindRecordingsSortsAndFiltersExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "B.MLV")
	touch(t, dir, "a.mlv")
	touch(t, dir, "notes.txt")
	touch(t, dir, "B.M00") // continuation, not a top-level recording
	if err := os.Mkdir(filepath.Join(dir, ".hidden.MLV"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRecordings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", got)
	}
	if filepath.Base(got[0]) != "a.mlv" || filepath.Base(got[1]) != "B.MLV" {
		t.Fatalf("got %v, want [a.mlv B.MLV] (case-insensitive sort)", got)
	}
}

func TestFindRecordingsErrorsOnEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindRecordings(dir); err == nil {
		t.Fatal("expected error for directory with no recordings")
	}
}

func TestFindRecordingsErrorsOnMissingDir(t *testing.T) {
	if _, err := FindRecordings(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFindRecordingsErrorsOnNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "A.MLV")
	touch(t, dir, "A.MLV")
	if _, err := FindRecordings(file); err == nil {
		t.Fatal("expected error when path is a file, not a directory")
	}
}

func TestFindRecordingsSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, ".A.MLV")
	touch(t, dir, "B.MLV")
	got, err := FindRecordings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "B.MLV" {
		t.Fatalf("got %v, want [B.MLV]", got)
	}
}
