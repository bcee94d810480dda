package chunkset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenSingleChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	writeFile(t, path, []byte("hello"))

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.ChunkCount() != 1 {
		t.Fatalf("ChunkCount = %d, want 1", s.ChunkCount())
	}
	if s.Recording() != path {
		t.Fatalf("Recording() = %q, want %q", s.Recording(), path)
	}
}

func TestOpenDiscoversContinuationsInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "A.MLV")
	writeFile(t, base, []byte("base"))
	writeFile(t, filepath.Join(dir, "A.M01"), []byte("m01"))
	writeFile(t, filepath.Join(dir, "A.M00"), []byte("m00"))
	// Not a continuation of A: wrong stem, must be ignored.
	writeFile(t, filepath.Join(dir, "B.M00"), []byte("ignored"))

	s, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.ChunkCount() != 3 {
		t.Fatalf("ChunkCount = %d, want 3", s.ChunkCount())
	}

	buf := make([]byte, 4)
	n, err := s.ReadAt(1, 0, buf[:3])
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || string(buf[:3]) != "m00" {
		t.Fatalf("chunk 1 = %q, want m00", buf[:n])
	}
	n, err = s.ReadAt(2, 0, buf[:3])
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "m01" {
		t.Fatalf("chunk 2 = %q, want m01", buf[:n])
	}
}

func TestChunkSizeOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	writeFile(t, path, []byte("x"))
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.ChunkSize(5); err == nil {
		t.Fatal("expected error for out-of-range chunk index")
	}
	if _, err := s.ReadAt(5, 0, make([]byte, 1)); err == nil {
		t.Fatal("expected error for out-of-range chunk index on ReadAt")
	}
}

func TestReadAtReturnsRequestedBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	writeFile(t, path, []byte("0123456789"))
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	buf := make([]byte, 4)
	n, err := s.ReadAt(0, 3, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || string(buf) != "3456" {
		t.Fatalf("got %q", buf[:n])
	}

	size, err := s.ChunkSize(0)
	if err != nil {
		t.Fatal(err)
	}
	if size != 10 {
		t.Fatalf("ChunkSize = %d, want 10", size)
	}
}
