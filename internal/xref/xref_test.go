package xref

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
	"github.com/cmhamiche/mlvfs/internal/mlvtest"
)

// writeContainer assembles a minimal well-formed recording (MLVI, RAWI,
// IDNT, then one EXPO+VIDF pair per frame, each frame's VIDF timestamp
// greater than the last) and opens it as a chunkset.Set.
func writeContainer(t *testing.T, frameCount int) *chunkset.Set {
	t.Helper()
	var buf bytes.Buffer
	mlvtest.Block(&buf, "MLVI", 0, mlvtest.FileHeaderBody(0, 0, uint32(frameCount)))
	mlvtest.Block(&buf, "RAWI", 1, mlvtest.RawInfoBody(16, 16, 14, 0, 16383, 0x02010100))
	mlvtest.Block(&buf, "IDNT", 2, mlvtest.IdentityBody("5D3", 0x80000285))

	ts := uint64(10)
	for i := 0; i < frameCount; i++ {
		mlvtest.Block(&buf, "EXPO", ts, mlvtest.ExposureBody(1000, uint32(100+i)))
		ts++
		mlvtest.Block(&buf, "VIDF", ts, mlvtest.VideoFrameBody(uint32(i), ts, 0, make([]byte, 16*16*2)))
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
	return set
}

func TestBuildCollectsMetadataAndFrames(t *testing.T) {
	set := writeContainer(t, 3)
	table, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	if !table.HasRawInfo || table.RawInfo.Width != 16 {
		t.Fatalf("RawInfo not captured: %+v", table.RawInfo)
	}
	if !table.HasIdentity || table.Identity.CameraName != "5D3" {
		t.Fatalf("Identity not captured: %+v", table.Identity)
	}
	if table.VideoFrameCount() != 3 {
		t.Fatalf("VideoFrameCount = %d, want 3", table.VideoFrameCount())
	}
	if table.Truncated {
		t.Fatal("well-formed container reported Truncated")
	}
}

func TestBuildOrdersEntriesByTimestamp(t *testing.T) {
	set := writeContainer(t, 4)
	table, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	var lastTs uint64
	for i, e := range table.Entries {
		if i > 0 && e.Timestamp < lastTs {
			t.Fatalf("entries not sorted by timestamp at index %d", i)
		}
		lastTs = e.Timestamp
	}
	for i := 0; i < 4; i++ {
		e, err := table.VideoEntry(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.FrameNumber != uint32(i) {
			t.Fatalf("VideoEntry(%d).FrameNumber = %d, want %d", i, e.FrameNumber, i)
		}
	}
}

func TestBuildRequiresRawInfo(t *testing.T) {
	var buf bytes.Buffer
	mlvtest.Block(&buf, "MLVI", 0, mlvtest.FileHeaderBody(0, 0, 0))
	mlvtest.Block(&buf, "VIDF", 1, mlvtest.VideoFrameBody(0, 1, 0, nil))

	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := chunkset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()

	_, err = Build(set)
	if !errors.Is(err, mlverr.ErrMalformed) {
		t.Fatalf("got err %v, want ErrMalformed", err)
	}
}

func TestBuildWarnsOnRawiAfterFirstVidfOffset(t *testing.T) {
	var buf bytes.Buffer
	mlvtest.Block(&buf, "MLVI", 0, mlvtest.FileHeaderBody(0, 0, 1))
	// VIDF physically precedes RAWI on disk but carries a later timestamp,
	// so timestamp order still puts RAWI first; the anomaly should only
	// produce a warning, never change frame resolution.
	mlvtest.Block(&buf, "VIDF", 20, mlvtest.VideoFrameBody(0, 20, 0, make([]byte, 16*16*2)))
	mlvtest.Block(&buf, "RAWI", 10, mlvtest.RawInfoBody(16, 16, 14, 0, 16383, 0))

	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := chunkset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()

	table, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Warnings) == 0 {
		t.Fatal("expected a warning about RAWI disk-offset ordering")
	}
	// Frame resolution itself must be unaffected: there's still exactly one
	// VIDF entry, correctly typed.
	if table.VideoFrameCount() != 1 {
		t.Fatalf("VideoFrameCount = %d, want 1", table.VideoFrameCount())
	}
}

func TestBuildRecoversTruncatedChunk(t *testing.T) {
	set := writeContainer(t, 2)
	full, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	set.Close()

	// Re-truncate the on-disk file mid-way through the final block and
	// rebuild: earlier entries must still be recovered.
	path := set.Recording()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := data[:len(data)-10]
	if err := os.WriteFile(path, truncated, 0o644); err != nil {
		t.Fatal(err)
	}
	set2, err := chunkset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer set2.Close()

	table, err := Build(set2)
	if err != nil {
		t.Fatal(err)
	}
	if !table.Truncated {
		t.Fatal("expected Truncated=true for a mid-block cutoff")
	}
	if table.VideoFrameCount() >= full.VideoFrameCount() {
		t.Fatalf("expected fewer recovered frames than the untruncated build (%d)", full.VideoFrameCount())
	}
}

func TestSaveLoadRehydrateRoundTrip(t *testing.T) {
	set := writeContainer(t, 3)
	table, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}

	idxPath := filepath.Join(t.TempDir(), "A.IDX")
	if err := SaveIndex(table, idxPath); err != nil {
		t.Fatal(err)
	}

	pi, err := LoadIndex(idxPath)
	if err != nil {
		t.Fatal(err)
	}
	if pi.TotalBlocks != table.TotalBlocks {
		t.Fatalf("TotalBlocks = %d, want %d", pi.TotalBlocks, table.TotalBlocks)
	}
	if len(pi.Entries) != len(table.Entries) {
		t.Fatalf("Entries = %d, want %d", len(pi.Entries), len(table.Entries))
	}

	rehydrated, err := Rehydrate(set, pi)
	if err != nil {
		t.Fatal(err)
	}
	if rehydrated.VideoFrameCount() != table.VideoFrameCount() {
		t.Fatalf("rehydrated VideoFrameCount = %d, want %d", rehydrated.VideoFrameCount(), table.VideoFrameCount())
	}
	if !rehydrated.HasRawInfo || rehydrated.RawInfo != table.RawInfo {
		t.Fatalf("rehydrated RawInfo = %+v, want %+v", rehydrated.RawInfo, table.RawInfo)
	}
	if rehydrated.Warnings != nil {
		t.Fatalf("rehydrated Table should have nil Warnings, got %v", rehydrated.Warnings)
	}
	if rehydrated.Truncated {
		t.Fatal("rehydrated Table should never report Truncated")
	}
}

func TestRehydrateDetectsStaleIndex(t *testing.T) {
	set := writeContainer(t, 2)
	table, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	idxPath := filepath.Join(t.TempDir(), "A.IDX")
	if err := SaveIndex(table, idxPath); err != nil {
		t.Fatal(err)
	}
	pi, err := LoadIndex(idxPath)
	if err != nil {
		t.Fatal(err)
	}
	pi.TotalBlocks += 1 // simulate a recording that changed since the index was written

	if _, err := Rehydrate(set, pi); err == nil {
		t.Fatal("expected stale-index error")
	}
}

func TestIndexPath(t *testing.T) {
	if got := IndexPath("/mnt/cf/A.MLV"); got != "/mnt/cf/A.IDX" {
		t.Fatalf("IndexPath = %q", got)
	}
}
