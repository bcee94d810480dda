package frameindex

import (
	"testing"

	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/xref"
)

// buildTable constructs a synthetic xref.Table with a RAWI block followed by
// n VIDF entries, each preceded by an EXPO block whose IsoValue encodes the
// frame number, so tests can check the right metadata travelled with the
// right frame.
func buildTable(n int) *xref.Table {
	t := &xref.Table{HasRawInfo: true}
	ts := uint64(0)

	t.Entries = append(t.Entries, xref.Entry{
		Type: xref.EntryRawInfo, Timestamp: ts,
		Meta: mlv.RawInfo{Width: 100, Height: 100, BitsPerPixel: 14},
	})
	ts++

	for i := 0; i < n; i++ {
		t.Entries = append(t.Entries, xref.Entry{
			Type: xref.EntryExposure, Timestamp: ts,
			Meta: mlv.Exposure{IsoValue: uint32(i)},
		})
		ts++
		t.Entries = append(t.Entries, xref.Entry{
			Type: xref.EntryVideo, Timestamp: ts, FrameNumber: uint32(i),
		})
		ts++
	}
	return t
}

func TestFrameHeadersSequentialForward(t *testing.T) {
	table := buildTable(5)
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		rec, err := c.FrameHeaders("rec", table, i)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if rec.FrameIndex != i {
			t.Fatalf("frame %d: FrameIndex = %d", i, rec.FrameIndex)
		}
		if rec.Entry.FrameNumber != uint32(i) {
			t.Fatalf("frame %d: got VIDF FrameNumber %d, want %d (regression: forward-scan resume must not reuse the previous frame's VIDF entry)", i, rec.Entry.FrameNumber, i)
		}
		if rec.Exposure.IsoValue != uint32(i) {
			t.Fatalf("frame %d: got Exposure.IsoValue %d, want %d", i, rec.Exposure.IsoValue, i)
		}
	}
}

func TestFrameHeadersRepeatedSameIndexIsStable(t *testing.T) {
	table := buildTable(3)
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.FrameHeaders("rec", table, i); err != nil {
			t.Fatal(err)
		}
	}

	// Re-request frame 1 (behind frame 2, the last index the sequential pass
	// resolved) twice in a row: the first request rescans, the second hits
	// the memoized resume point; both must return frame 1's own data, not
	// frame 2's.
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := c.FrameHeaders("rec", table, 1)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Entry.FrameNumber != 1 {
			t.Fatalf("attempt %d: FrameNumber = %d, want 1", attempt, rec.Entry.FrameNumber)
		}
	}
}

func TestFrameHeadersOutOfOrderFallsBackToFullScan(t *testing.T) {
	table := buildTable(5)
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.FrameHeaders("rec", table, 4); err != nil {
		t.Fatal(err)
	}
	// Request an earlier frame after advancing forward; must not use the
	// stale forward-only resume point.
	rec, err := c.FrameHeaders("rec", table, 1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Entry.FrameNumber != 1 {
		t.Fatalf("FrameNumber = %d, want 1", rec.Entry.FrameNumber)
	}
}

func TestFrameHeadersOutOfRange(t *testing.T) {
	table := buildTable(2)
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FrameHeaders("rec", table, 2); err == nil {
		t.Fatal("expected NotFound for frame index == frame count")
	}
}

func TestFrameHeadersMissingRawiIsMalformed(t *testing.T) {
	table := &xref.Table{}
	table.Entries = append(table.Entries, xref.Entry{Type: xref.EntryVideo, Timestamp: 0, FrameNumber: 0})
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FrameHeaders("rec", table, 0); err == nil {
		t.Fatal("expected Malformed error when no RAWI precedes the frame")
	}
}

func TestForgetClearsResumePoint(t *testing.T) {
	table := buildTable(3)
	c, err := NewCache(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FrameHeaders("rec", table, 2); err != nil {
		t.Fatal(err)
	}
	c.Forget("rec")
	// After Forget, resolving frame 0 again must still work (full rescan).
	rec, err := c.FrameHeaders("rec", table, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Entry.FrameNumber != 0 {
		t.Fatalf("FrameNumber = %d, want 0", rec.Entry.FrameNumber)
	}
}
