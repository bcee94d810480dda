// Package frameindex resolves a (recording, frame index) pair to the full
// set of header blocks in effect at that frame: the most recent RAWI, IDNT,
// EXPO, LENS, WBAL seen at or before the frame's xref position, plus the
// VIDF entry itself. Because these "sticky" blocks change rarely within a
// recording, lookups are served by a forward scan from the last resolved
// position rather than by re-scanning from the start every time.
package frameindex

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
	"github.com/cmhamiche/mlvfs/internal/xref"
)

// FrameRecord is the fully-resolved header state for one video frame.
type FrameRecord struct {
	FrameIndex int
	Entry      xref.Entry

	RawInfo  mlv.RawInfo
	Identity mlv.Identity
	Exposure mlv.Exposure
	Lens     mlv.Lens
	WhiteBal mlv.WhiteBalance
}

// resumePoint is what gets memoized per recording: the last frame index
// resolved, the entry slice position immediately after its VIDF entry (so
// resuming never re-counts that VIDF), the sticky header state as of that
// position, and the resolved record itself (so re-requesting the same
// frame index twice in a row is a cache hit rather than an unmatched scan).
type resumePoint struct {
	lastFrameIndex int
	lastEntryIdx   int
	lastEntry      xref.Entry
	rawi           mlv.RawInfo
	idnt           mlv.Identity
	expo           mlv.Exposure
	lens           mlv.Lens
	wbal           mlv.WhiteBalance
	hasRawi        bool
}

// Cache serves FrameHeaders lookups for many concurrently open recordings,
// memoizing one forward-scan resume point per recording path.
type Cache struct {
	mu     sync.Mutex
	resume *lru.Cache[string, *resumePoint]
}

// NewCache builds a header cache that remembers resume points for up to
// maxRecordings distinct recordings at once.
func NewCache(maxRecordings int) (*Cache, error) {
	c, err := lru.New[string, *resumePoint](maxRecordings)
	if err != nil {
		return nil, fmt.Errorf("frameindex: new cache: %w", err)
	}
	return &Cache{resume: c}, nil
}

// FrameHeaders resolves the header state for frameIndex within the
// recording identified by recordingPath, given its already-built xref table.
// It forward-scans from the last resolved position when the request is for
// the same or a later frame than last time (the common case: sequential
// directory listing / sequential reads), and falls back to a full scan from
// the start otherwise.
func (c *Cache) FrameHeaders(recordingPath string, t *xref.Table, frameIndex int) (FrameRecord, error) {
	if frameIndex < 0 {
		return FrameRecord{}, fmt.Errorf("frameindex: negative frame index: %w", mlverr.ErrNotFound)
	}

	c.mu.Lock()
	rp, ok := c.resume.Get(recordingPath)
	c.mu.Unlock()

	// Re-requesting the same frame index just resolved is a pure cache hit:
	// the memoized entry position sits right after this frame's VIDF, so
	// resuming a scan from there would skip past it rather than match it.
	if ok && rp.lastFrameIndex == frameIndex {
		if !rp.hasRawi {
			return FrameRecord{}, mlverr.Malformed(recordingPath, frameIndex, "no RAWI block precedes this frame")
		}
		return FrameRecord{
			FrameIndex: frameIndex,
			Entry:      rp.lastEntry,
			RawInfo:    rp.rawi,
			Identity:   rp.idnt,
			Exposure:   rp.expo,
			Lens:       rp.lens,
			WhiteBal:   rp.wbal,
		}, nil
	}

	startEntryIdx := 0
	// Start empty rather than seeded from the table's first-seen values:
	// the merged Entries sequence below carries every sticky metadata
	// occurrence in timestamp order, so a scan from position 0 discovers
	// the correct values on its own.
	var state resumePoint
	startFrame := -1

	if ok && rp.lastFrameIndex < frameIndex {
		// lastEntryIdx is the position just past the previously-found VIDF
		// entry, so resuming here never re-counts it.
		startEntryIdx = rp.lastEntryIdx
		startFrame = rp.lastFrameIndex
		state = *rp
	}

	seenFrame := startFrame
	entryIdx := startEntryIdx
	var found *xref.Entry

	for ; entryIdx < len(t.Entries); entryIdx++ {
		e := t.Entries[entryIdx]
		switch e.Type {
		case xref.EntryRawInfo:
			if ri, ok := e.Meta.(mlv.RawInfo); ok {
				state.rawi, state.hasRawi = ri, true
			}
		case xref.EntryIdentity:
			if id, ok := e.Meta.(mlv.Identity); ok {
				state.idnt = id
			}
		case xref.EntryExposure:
			if ex, ok := e.Meta.(mlv.Exposure); ok {
				state.expo = ex
			}
		case xref.EntryLens:
			if l, ok := e.Meta.(mlv.Lens); ok {
				state.lens = l
			}
		case xref.EntryWhiteBal:
			if wb, ok := e.Meta.(mlv.WhiteBalance); ok {
				state.wbal = wb
			}
		case xref.EntryVideo:
			seenFrame++
			if seenFrame == frameIndex {
				found = &t.Entries[entryIdx]
			}
		}
		if found != nil {
			break
		}
	}

	if found == nil {
		return FrameRecord{}, fmt.Errorf("frameindex: %s: frame %d: %w", recordingPath, frameIndex, mlverr.ErrNotFound)
	}

	if !state.hasRawi {
		return FrameRecord{}, mlverr.Malformed(recordingPath, frameIndex, "no RAWI block precedes this frame")
	}

	rec := FrameRecord{
		FrameIndex: frameIndex,
		Entry:      *found,
		RawInfo:    state.rawi,
		Identity:   state.idnt,
		Exposure:   state.expo,
		Lens:       state.lens,
		WhiteBal:   state.wbal,
	}

	newState := state
	newState.lastFrameIndex = frameIndex
	newState.lastEntryIdx = entryIdx + 1
	newState.lastEntry = *found
	c.mu.Lock()
	c.resume.Add(recordingPath, &newState)
	c.mu.Unlock()

	return rec, nil
}

// Forget drops the memoized resume point for a recording, e.g. when it is
// closed or its xref table is rebuilt.
func (c *Cache) Forget(recordingPath string) {
	c.mu.Lock()
	c.resume.Remove(recordingPath)
	c.mu.Unlock()
}
