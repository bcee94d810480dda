package debuglog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlvtest"
)

func buildDebugContainer(t *testing.T, bodies [][]byte) (*chunkset.Set, []Entry) {
	t.Helper()
	var buf bytes.Buffer
	var entries []Entry
	ts := uint64(0)
	for _, body := range bodies {
		off := int64(buf.Len())
		mlvtest.Block(&buf, "DEBG", ts, body)
		entries = append(entries, Entry{ChunkIndex: 0, Offset: off, Timestamp: ts})
		ts++
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := chunkset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { set.Close() })
	return set, entries
}

func TestBuildConcatenatesWithNulSeparators(t *testing.T) {
	set, entries := buildDebugContainer(t, [][]byte{
		[]byte("first line\x00"),
		[]byte("second line"), // no trailing NUL in this block
	})
	got, err := Build(set, entries)
	if err != nil {
		t.Fatal(err)
	}
	want := "first line\x00second line\x00"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildSkipsUnreadableBlock(t *testing.T) {
	set, entries := buildDebugContainer(t, [][]byte{[]byte("ok\x00")})
	// Append a bogus entry pointing past EOF; it must be skipped, not fail
	// the whole build.
	entries = append(entries, Entry{ChunkIndex: 0, Offset: 1 << 20, Timestamp: 99})
	got, err := Build(set, entries)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok\x00" {
		t.Fatalf("got %q, want %q", got, "ok\x00")
	}
}

func TestBuildEmpty(t *testing.T) {
	set, _ := buildDebugContainer(t, nil)
	got, err := Build(set, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
