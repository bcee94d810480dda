package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateTempDirAndCleanup(t *testing.T) {
	base := t.TempDir()
	td, err := CreateTempDir(base, "job")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(td.Path()); err != nil {
		t.Fatalf("temp dir not created: %v", err)
	}
	if err := td.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(td.Path()); !os.IsNotExist(err) {
		t.Fatal("expected temp dir to be removed after Cleanup")
	}
}

func TestCreateTempFileAndCleanup(t *testing.T) {
	dir := t.TempDir()
	tf, err := CreateTempFile(dir, "frame", "dng")
	if err != nil {
		t.Fatal(err)
	}
	path := tf.path
	if filepath.Ext(path) != ".dng" {
		t.Fatalf("got extension %q, want .dng", filepath.Ext(path))
	}
	if err := tf.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected temp file to be removed after Cleanup")
	}
}

func TestCreateTempFilePathDoesNotCreateFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateTempFilePath(dir, "job", "tmp")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("CreateTempFilePath should not create the file")
	}
}

func TestEnsureDirectoryWritableRejectsMissingAndFile(t *testing.T) {
	if err := EnsureDirectoryWritable(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDirectoryWritable(file); err == nil {
		t.Fatal("expected error when path is a regular file")
	}
	if err := EnsureDirectoryWritable(dir); err != nil {
		t.Fatalf("unexpected error for a writable directory: %v", err)
	}
}

func TestCleanupStaleTempFilesRemovesOnlyOldMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "job_old.tmp")
	recent := filepath.Join(dir, "job_recent.tmp")
	unrelated := filepath.Join(dir, "other_old.tmp")
	for _, p := range []string{old, recent, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}

	n, err := CleanupStaleTempFiles(dir, "job", 24)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("cleaned %d files, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale matching file should have been removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatal("recent matching file should survive")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatal("non-matching prefix file should survive")
	}
}

func TestCleanupStaleTempFilesMissingDirIsNoOp(t *testing.T) {
	n, err := CleanupStaleTempFiles(filepath.Join(t.TempDir(), "nope"), "job", 24)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("got %d, want 0", n)
	}
}
