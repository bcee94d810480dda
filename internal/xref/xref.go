// Package xref builds and persists the block index (cross-reference table)
// for one MLV recording: every VIDF/AUDF block's chunk, disk offset, and
// timestamp, sorted by timestamp so frame index k means "the k-th VIDF in
// timestamp order", independent of on-disk frameNumber order.
package xref

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// EntryType distinguishes the two frame-bearing block types the xref tracks.
type EntryType uint16

const (
	EntryVideo EntryType = 1
	EntryAudio EntryType = 2

	// Sticky metadata entry types. These are interleaved into Entries
	// alongside Video/Audio so that frameindex can forward-scan a single
	// ordered sequence and track "the most recent occurrence of each
	// metadata block type up to and including this frame" per spec's
	// Frame Record definition, instead of freezing on the first value
	// seen anywhere in the recording.
	EntryRawInfo  EntryType = 3
	EntryIdentity EntryType = 4
	EntryExposure EntryType = 5
	EntryLens     EntryType = 6
	EntryWhiteBal EntryType = 7
)

// Entry is one row of the cross-reference table. For Video/Audio entries,
// FrameNumber and FrameSpace are populated. For sticky metadata entries
// (EntryRawInfo, EntryIdentity, EntryExposure, EntryLens, EntryWhiteBal),
// Meta carries the parsed block payload (mlv.RawInfo, mlv.Identity, ...).
type Entry struct {
	ChunkIndex  int
	Offset      int64 // offset of the block prefix within its chunk
	Type        EntryType
	Timestamp   uint64
	FrameNumber uint32
	FrameSpace  uint32 // VIDF/AUDF padding-before-payload field
	Meta        any
}

// Table is the full index plus the metadata blocks collected while scanning.
type Table struct {
	Entries []Entry // sorted by Timestamp, then FrameNumber as a tiebreak

	FileHeader   mlv.FileHeader
	RawInfo      mlv.RawInfo
	HasRawInfo   bool
	Identity     mlv.Identity
	HasIdentity  bool
	Exposure     mlv.Exposure
	HasExposure  bool
	Lens         mlv.Lens
	HasLens      bool
	WhiteBalance mlv.WhiteBalance
	HasWhiteBal  bool
	WaveInfo     mlv.WaveInfo
	HasWaveInfo  bool
	RTCInfo      mlv.RTCInfo
	HasRTCInfo   bool

	// Warnings records non-fatal anomalies found while scanning, such as a
	// RAWI block whose disk offset sits after the first VIDF's disk offset
	// even though timestamp order places it earlier.
	Warnings []string

	// Truncated is true when scanning stopped early because a chunk ended
	// mid-block; entries collected before the truncation point are still
	// valid (partial-recording recovery).
	Truncated bool

	// DebugBlocks locates every DEBG block found while scanning, in
	// timestamp order, for internal/debuglog to assemble into the virtual
	// ".LOG" file.
	DebugBlocks []DebugBlock

	// TotalBlocks is every block observed while scanning (including NULL
	// padding and types the xref otherwise ignores); it is persisted as
	// Rehydrate's validity fingerprint, since it is the cheapest figure
	// that changes whenever the underlying chunk files do.
	TotalBlocks uint64
}

// DebugBlock locates one DEBG block within its chunk.
type DebugBlock struct {
	ChunkIndex int
	Offset     int64
	Timestamp  uint64
}

// VideoFrameCount returns the number of VIDF entries, i.e. the recording's
// frame count as exposed through the virtual filesystem.
func (t *Table) VideoFrameCount() int {
	n := 0
	for _, e := range t.Entries {
		if e.Type == EntryVideo {
			n++
		}
	}
	return n
}

// VideoEntry returns the frameIndex-th VIDF entry in timestamp order.
func (t *Table) VideoEntry(frameIndex int) (Entry, error) {
	if frameIndex < 0 {
		return Entry{}, fmt.Errorf("xref: negative frame index %d: %w", frameIndex, mlverr.ErrNotFound)
	}
	n := 0
	for _, e := range t.Entries {
		if e.Type != EntryVideo {
			continue
		}
		if n == frameIndex {
			return e, nil
		}
		n++
	}
	return Entry{}, fmt.Errorf("xref: frame index %d out of range (%d frames): %w", frameIndex, n, mlverr.ErrNotFound)
}

type chunkScan struct {
	entries    []Entry
	header     *mlv.FileHeader
	rawi       *mlv.RawInfo
	rawiOffset int64
	idnt       *mlv.Identity
	expo       *mlv.Exposure
	lens       *mlv.Lens
	wbal       *mlv.WhiteBalance
	wavi       *mlv.WaveInfo
	rtci       *mlv.RTCInfo
	debug       []DebugBlock
	warn        []string
	trunc       bool
	totalBlocks uint64
}

// Build scans every chunk in set, in parallel, and returns the merged,
// timestamp-sorted cross-reference table.
func Build(set *chunkset.Set) (*Table, error) {
	n := set.ChunkCount()
	results := make([]chunkScan, n)

	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			scan, err := scanChunk(set, idx)
			if err != nil {
				return err
			}
			results[idx] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Table{}
	for idx, r := range results {
		t.Entries = append(t.Entries, r.entries...)
		t.DebugBlocks = append(t.DebugBlocks, r.debug...)
		t.TotalBlocks += r.totalBlocks
		if r.trunc {
			t.Truncated = true
			t.Warnings = append(t.Warnings, fmt.Sprintf("chunk %d ended mid-block, recovering partial recording", idx))
		}
		t.Warnings = append(t.Warnings, r.warn...)
		if idx == 0 {
			if r.header != nil {
				t.FileHeader = *r.header
			}
		}
		if r.rawi != nil && !t.HasRawInfo {
			t.RawInfo, t.HasRawInfo = *r.rawi, true
		}
		if r.idnt != nil && !t.HasIdentity {
			t.Identity, t.HasIdentity = *r.idnt, true
		}
		if r.expo != nil && !t.HasExposure {
			t.Exposure, t.HasExposure = *r.expo, true
		}
		if r.lens != nil && !t.HasLens {
			t.Lens, t.HasLens = *r.lens, true
		}
		if r.wbal != nil && !t.HasWhiteBal {
			t.WhiteBalance, t.HasWhiteBal = *r.wbal, true
		}
		if r.wavi != nil && !t.HasWaveInfo {
			t.WaveInfo, t.HasWaveInfo = *r.wavi, true
		}
		if r.rtci != nil && !t.HasRTCInfo {
			t.RTCInfo, t.HasRTCInfo = *r.rtci, true
		}
	}

	if !t.HasRawInfo {
		return nil, fmt.Errorf("xref: %s: no RAWI block found: %w", set.Recording(), mlverr.ErrMalformed)
	}

	sort.SliceStable(t.Entries, func(i, j int) bool {
		if t.Entries[i].Timestamp != t.Entries[j].Timestamp {
			return t.Entries[i].Timestamp < t.Entries[j].Timestamp
		}
		return t.Entries[i].FrameNumber < t.Entries[j].FrameNumber
	})
	sort.SliceStable(t.DebugBlocks, func(i, j int) bool {
		return t.DebugBlocks[i].Timestamp < t.DebugBlocks[j].Timestamp
	})

	checkRawiOrdering(t, results)

	return t, nil
}

// checkRawiOrdering appends a warning (without altering behavior) when RAWI's
// disk offset falls after the first VIDF's disk offset in the same chunk, a
// case spec.md flags as ambiguous: timestamp order still governs frame
// indexing, but the anomaly is worth surfacing.
func checkRawiOrdering(t *Table, results []chunkScan) {
	if len(results) == 0 || results[0].rawi == nil {
		return
	}
	first := results[0]
	var firstVidfOffset int64 = -1
	for _, e := range first.entries {
		if e.Type == EntryVideo {
			firstVidfOffset = e.Offset
			break
		}
	}
	if firstVidfOffset < 0 {
		return
	}
	if first.rawiOffset > firstVidfOffset {
		t.Warnings = append(t.Warnings, fmt.Sprintf(
			"RAWI block at disk offset %d sits after the first VIDF at offset %d; timestamp order still governs frame indexing",
			first.rawiOffset, firstVidfOffset))
	}
}

// scanChunk walks one chunk file's blocks from offset 0, recording VIDF/AUDF
// positions and capturing the first metadata block of each type seen.
func scanChunk(set *chunkset.Set, idx int) (chunkScan, error) {
	size, err := set.ChunkSize(idx)
	if err != nil {
		return chunkScan{}, err
	}

	var scan chunkScan
	var offset int64

	prefixBuf := make([]byte, mlv.PrefixSize)
	for offset+int64(mlv.PrefixSize) <= size {
		n, err := set.ReadAt(idx, offset, prefixBuf)
		if err != nil || n < mlv.PrefixSize {
			scan.trunc = true
			break
		}

		blockType := string(prefixBuf[0:4])
		blockSize := binary.LittleEndian.Uint32(prefixBuf[4:8])
		timestamp := binary.LittleEndian.Uint64(prefixBuf[8:16])

		if blockSize < uint32(mlv.PrefixSize) || offset+int64(blockSize) > size {
			scan.trunc = true
			break
		}
		scan.totalBlocks++

		bodySize := int(blockSize) - mlv.PrefixSize

		// VIDF/AUDF bodies carry the raw pixel/audio payload after their
		// small fixed header, which can be megabytes; scanning only needs
		// FrameNumber/Timestamp/FrameSpace, so read just that much instead
		// of the whole block. DEBG's position is all the xref needs (its
		// text is read on demand by internal/debuglog); NULL carries no
		// metadata the xref cares about. Every other known block type is
		// small enough that reading its full body is cheap.
		var readSize int
		switch blockType {
		case mlv.TypeVideoFrame:
			readSize = mlv.VideoFrameHeaderSize
		case mlv.TypeAudioFrame:
			readSize = mlv.AudioFrameHeaderSize
		case mlv.TypeDebug, mlv.TypeNull:
			readSize = 0
		default:
			readSize = bodySize
		}
		if readSize > bodySize {
			readSize = bodySize
		}

		var body []byte
		if readSize > 0 {
			body = make([]byte, readSize)
			if n, err := set.ReadAt(idx, offset+int64(mlv.PrefixSize), body); err != nil || n < readSize {
				scan.trunc = true
				break
			}
		}

		switch blockType {
		case mlv.TypeFileHeader:
			if fh, err := mlv.ParseFileHeader(body); err == nil {
				scan.header = &fh
			} else {
				scan.warn = append(scan.warn, err.Error())
			}
		case mlv.TypeRawInfo:
			if ri, err := mlv.ParseRawInfo(body); err == nil {
				if scan.rawi == nil {
					scan.rawi = &ri
					scan.rawiOffset = offset
				}
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryRawInfo,
					Timestamp: timestamp, Meta: ri,
				})
			} else {
				scan.warn = append(scan.warn, err.Error())
			}
		case mlv.TypeIdentity:
			if id, err := mlv.ParseIdentity(body); err == nil {
				if scan.idnt == nil {
					scan.idnt = &id
				}
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryIdentity,
					Timestamp: timestamp, Meta: id,
				})
			}
		case mlv.TypeExposure:
			if ex, err := mlv.ParseExposure(body); err == nil {
				if scan.expo == nil {
					scan.expo = &ex
				}
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryExposure,
					Timestamp: timestamp, Meta: ex,
				})
			}
		case mlv.TypeLens:
			if l, err := mlv.ParseLens(body); err == nil {
				if scan.lens == nil {
					scan.lens = &l
				}
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryLens,
					Timestamp: timestamp, Meta: l,
				})
			}
		case mlv.TypeWhiteBal:
			if wb, err := mlv.ParseWhiteBalance(body); err == nil {
				if scan.wbal == nil {
					scan.wbal = &wb
				}
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryWhiteBal,
					Timestamp: timestamp, Meta: wb,
				})
			}
		case mlv.TypeWaveInfo:
			if wi, err := mlv.ParseWaveInfo(body); err == nil {
				if scan.wavi == nil {
					scan.wavi = &wi
				}
			}
		case mlv.TypeRTCInfo:
			if rc, err := mlv.ParseRTCInfo(body); err == nil {
				if scan.rtci == nil {
					rc.Timestamp = timestamp
					scan.rtci = &rc
				}
			}
		case mlv.TypeVideoFrame:
			if vh, err := mlv.ParseVideoFrameHeader(body); err == nil {
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryVideo,
					Timestamp: timestamp, FrameNumber: vh.FrameNumber, FrameSpace: vh.FrameSpace,
				})
			}
		case mlv.TypeAudioFrame:
			if ah, err := mlv.ParseAudioFrameHeader(body); err == nil {
				scan.entries = append(scan.entries, Entry{
					ChunkIndex: idx, Offset: offset, Type: EntryAudio,
					Timestamp: timestamp, FrameNumber: ah.FrameNumber, FrameSpace: ah.FrameSpace,
				})
			}
		case mlv.TypeDebug:
			scan.debug = append(scan.debug, DebugBlock{
				ChunkIndex: idx, Offset: offset, Timestamp: timestamp,
			})
		}

		offset += int64(blockSize)
	}

	return scan, nil
}

// --- .IDX persistence ---

const (
	idxMagic   = "XREF"
	idxVersion = uint32(2)

	entryRowSize = 32
)

// PersistedIndex is what SaveIndex writes and LoadIndex reads back: enough
// to rebuild a Table without re-parsing every VIDF/AUDF block, the
// dominant cost of a fresh Build.
type PersistedIndex struct {
	TotalBlocks uint64 // validation fingerprint; see Rehydrate
	Entries     []Entry
	DebugBlocks []DebugBlock
	FileHeader  mlv.FileHeader
	HasWaveInfo bool
	WaveInfo    mlv.WaveInfo
	HasRTCInfo  bool
	RTCInfo     mlv.RTCInfo
}

// SaveIndex writes t to path. The format is a fixed header, a row per
// Entries (chunk/offset/type/timestamp/frameNumber/frameSpace, so VIDF/AUDF
// entries need no re-read on load), a row per DebugBlocks, and a small
// fixed epilogue for the file-wide blocks (FileHeader/WaveInfo/RTCInfo)
// that only ever occur once and so aren't worth indexing as entries.
func SaveIndex(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("xref: create index %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(idxMagic); err != nil {
		return err
	}
	var hdr [24]byte
	binary.LittleEndian.PutUint32(hdr[0:4], idxVersion)
	binary.LittleEndian.PutUint64(hdr[4:12], t.TotalBlocks)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(t.Entries)))
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(t.DebugBlocks)))
	// hdr[20:24] reserved
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	row := make([]byte, entryRowSize)
	writeRow := func(chunkIndex int, offset int64, typ EntryType, timestamp uint64, frameNumber, frameSpace uint32) error {
		binary.LittleEndian.PutUint16(row[0:2], uint16(chunkIndex))
		binary.LittleEndian.PutUint16(row[2:4], 0)
		binary.LittleEndian.PutUint64(row[4:12], uint64(offset))
		binary.LittleEndian.PutUint16(row[12:14], uint16(typ))
		binary.LittleEndian.PutUint16(row[14:16], 0)
		binary.LittleEndian.PutUint64(row[16:24], timestamp)
		binary.LittleEndian.PutUint32(row[24:28], frameNumber)
		binary.LittleEndian.PutUint32(row[28:32], frameSpace)
		_, err := w.Write(row)
		return err
	}

	for _, e := range t.Entries {
		if err := writeRow(e.ChunkIndex, e.Offset, e.Type, e.Timestamp, e.FrameNumber, e.FrameSpace); err != nil {
			return err
		}
	}
	for _, d := range t.DebugBlocks {
		if err := writeRow(d.ChunkIndex, d.Offset, 0, d.Timestamp, 0, 0); err != nil {
			return err
		}
	}

	if err := writeFileHeader(w, t.FileHeader); err != nil {
		return err
	}
	if err := writeBool(w, t.HasWaveInfo); err != nil {
		return err
	}
	if err := writeWaveInfo(w, t.WaveInfo); err != nil {
		return err
	}
	if err := writeBool(w, t.HasRTCInfo); err != nil {
		return err
	}
	if err := writeRTCInfo(w, t.RTCInfo); err != nil {
		return err
	}

	return w.Flush()
}

func writeBool(w *bufio.Writer, b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func writeFileHeader(w *bufio.Writer, fh mlv.FileHeader) error {
	var buf [32]byte
	copy(buf[0:8], fh.VersionString)
	binary.LittleEndian.PutUint64(buf[8:16], fh.FileGUID)
	binary.LittleEndian.PutUint16(buf[16:18], fh.FileNum)
	binary.LittleEndian.PutUint16(buf[18:20], fh.FileCount)
	binary.LittleEndian.PutUint32(buf[20:24], fh.FileFlags)
	binary.LittleEndian.PutUint16(buf[24:26], fh.VideoClass)
	binary.LittleEndian.PutUint16(buf[26:28], fh.AudioClass)
	binary.LittleEndian.PutUint32(buf[28:32], fh.VideoFrameCount)
	_, err := w.Write(buf[:])
	return err
}

func readFileHeader(r io.Reader) (mlv.FileHeader, error) {
	var buf [32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return mlv.FileHeader{}, err
	}
	return mlv.FileHeader{
		VersionString:   trimNulString(buf[0:8]),
		FileGUID:        binary.LittleEndian.Uint64(buf[8:16]),
		FileNum:         binary.LittleEndian.Uint16(buf[16:18]),
		FileCount:       binary.LittleEndian.Uint16(buf[18:20]),
		FileFlags:       binary.LittleEndian.Uint32(buf[20:24]),
		VideoClass:      binary.LittleEndian.Uint16(buf[24:26]),
		AudioClass:      binary.LittleEndian.Uint16(buf[26:28]),
		VideoFrameCount: binary.LittleEndian.Uint32(buf[28:32]),
	}, nil
}

func writeWaveInfo(w *bufio.Writer, wi mlv.WaveInfo) error {
	var buf [16]byte
	binary.LittleEndian.PutUint16(buf[0:2], wi.Format)
	binary.LittleEndian.PutUint16(buf[2:4], wi.Channels)
	binary.LittleEndian.PutUint32(buf[4:8], wi.SampleRate)
	binary.LittleEndian.PutUint32(buf[8:12], wi.BytesPerSec)
	binary.LittleEndian.PutUint16(buf[12:14], wi.BlockAlign)
	binary.LittleEndian.PutUint16(buf[14:16], wi.BitsPerSample)
	_, err := w.Write(buf[:])
	return err
}

func readWaveInfo(r io.Reader) (mlv.WaveInfo, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return mlv.WaveInfo{}, err
	}
	return mlv.WaveInfo{
		Format:        binary.LittleEndian.Uint16(buf[0:2]),
		Channels:      binary.LittleEndian.Uint16(buf[2:4]),
		SampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
		BytesPerSec:   binary.LittleEndian.Uint32(buf[8:12]),
		BlockAlign:    binary.LittleEndian.Uint16(buf[12:14]),
		BitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
	}, nil
}

func writeRTCInfo(w *bufio.Writer, rc mlv.RTCInfo) error {
	var buf [44]byte
	vals := []int32{rc.Sec, rc.Min, rc.Hour, rc.MDay, rc.Mon, rc.Year, rc.WDay, rc.YDay, rc.IsDST}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v))
	}
	binary.LittleEndian.PutUint64(buf[36:44], rc.Timestamp)
	_, err := w.Write(buf[:])
	return err
}

func readRTCInfo(r io.Reader) (mlv.RTCInfo, error) {
	var buf [44]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return mlv.RTCInfo{}, err
	}
	vals := make([]int32, 9)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return mlv.RTCInfo{
		Sec: vals[0], Min: vals[1], Hour: vals[2],
		MDay: vals[3], Mon: vals[4], Year: vals[5],
		WDay: vals[6], YDay: vals[7], IsDST: vals[8],
		Timestamp: binary.LittleEndian.Uint64(buf[36:44]),
	}, nil
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// LoadIndex reads a previously persisted .IDX file. Sticky metadata entries
// (EntryRawInfo, EntryIdentity, ...) come back with Meta still nil: their
// payloads aren't persisted since they'd otherwise need to duplicate most
// of a RAWI/IDNT/EXPO/LENS/WBAL block's own encoding. Rehydrate fills Meta
// back in from a bounded number of re-reads.
func LoadIndex(path string) (*PersistedIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("xref: read index magic: %w", err)
	}
	if string(magic) != idxMagic {
		return nil, fmt.Errorf("xref: %s: bad index magic %q: %w", path, magic, mlverr.ErrMalformed)
	}
	var hdr [24]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	version := binary.LittleEndian.Uint32(hdr[0:4])
	if version != idxVersion {
		return nil, fmt.Errorf("xref: %s: unsupported index version %d", path, version)
	}
	totalBlocks := binary.LittleEndian.Uint64(hdr[4:12])
	entryCount := binary.LittleEndian.Uint32(hdr[12:16])
	debugCount := binary.LittleEndian.Uint32(hdr[16:20])

	readRow := func() (chunkIndex int, offset int64, typ EntryType, timestamp uint64, frameNumber, frameSpace uint32, err error) {
		row := make([]byte, entryRowSize)
		if _, err = io.ReadFull(r, row); err != nil {
			return
		}
		chunkIndex = int(binary.LittleEndian.Uint16(row[0:2]))
		offset = int64(binary.LittleEndian.Uint64(row[4:12]))
		typ = EntryType(binary.LittleEndian.Uint16(row[12:14]))
		timestamp = binary.LittleEndian.Uint64(row[16:24])
		frameNumber = binary.LittleEndian.Uint32(row[24:28])
		frameSpace = binary.LittleEndian.Uint32(row[28:32])
		return
	}

	entries := make([]Entry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		ci, off, typ, ts, fn, fs, err := readRow()
		if err != nil {
			return nil, fmt.Errorf("xref: %s: truncated index at entry row %d: %w", path, i, err)
		}
		entries = append(entries, Entry{ChunkIndex: ci, Offset: off, Type: typ, Timestamp: ts, FrameNumber: fn, FrameSpace: fs})
	}

	debugBlocks := make([]DebugBlock, 0, debugCount)
	for i := uint32(0); i < debugCount; i++ {
		ci, off, _, ts, _, _, err := readRow()
		if err != nil {
			return nil, fmt.Errorf("xref: %s: truncated index at debug row %d: %w", path, i, err)
		}
		debugBlocks = append(debugBlocks, DebugBlock{ChunkIndex: ci, Offset: off, Timestamp: ts})
	}

	fh, err := readFileHeader(r)
	if err != nil {
		return nil, fmt.Errorf("xref: %s: truncated index file header: %w", path, err)
	}
	hasWave, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	wi, err := readWaveInfo(r)
	if err != nil {
		return nil, fmt.Errorf("xref: %s: truncated index wave info: %w", path, err)
	}
	hasRTC, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	rtc, err := readRTCInfo(r)
	if err != nil {
		return nil, fmt.Errorf("xref: %s: truncated index rtc info: %w", path, err)
	}

	return &PersistedIndex{
		TotalBlocks: totalBlocks,
		Entries:     entries,
		DebugBlocks: debugBlocks,
		FileHeader:  fh,
		HasWaveInfo: hasWave != 0,
		WaveInfo:    wi,
		HasRTCInfo:  hasRTC != 0,
		RTCInfo:     rtc,
	}, nil
}

// Rehydrate rebuilds a Table from a loaded PersistedIndex without
// re-parsing VIDF/AUDF blocks, the dominant cost of a fresh Build. It
// re-reads only the bounded set of sticky metadata blocks (RAWI, IDNT,
// EXPO, LENS, WBAL), whose payloads aren't persisted, and validates the
// index is still current by recounting blocks per chunk first.
//
// Warnings and Truncated are not reconstructed (they describe the scan
// itself, not the recording, and aren't needed for frame resolution), so
// callers of a rehydrated Table always see an empty Warnings slice and
// Truncated=false even if the original Build reported either.
func Rehydrate(set *chunkset.Set, pi *PersistedIndex) (*Table, error) {
	observed, err := countAllBlocksOnDisk(set)
	if err != nil {
		return nil, err
	}
	if observed != pi.TotalBlocks {
		return nil, fmt.Errorf("xref: index stale: %d blocks on disk, %d in index", observed, pi.TotalBlocks)
	}

	t := &Table{
		Entries:     pi.Entries,
		DebugBlocks: pi.DebugBlocks,
		FileHeader:  pi.FileHeader,
		HasWaveInfo: pi.HasWaveInfo,
		WaveInfo:    pi.WaveInfo,
		HasRTCInfo:  pi.HasRTCInfo,
		RTCInfo:     pi.RTCInfo,
	}

	for i := range t.Entries {
		e := &t.Entries[i]
		switch e.Type {
		case EntryRawInfo, EntryIdentity, EntryExposure, EntryLens, EntryWhiteBal:
		default:
			continue
		}
		body, err := readBlockBody(set, e.ChunkIndex, e.Offset)
		if err != nil {
			return nil, fmt.Errorf("xref: rehydrate %s entry at chunk %d offset %d: %w", blockTypeName(e), e.ChunkIndex, e.Offset, err)
		}
		switch e.Type {
		case EntryRawInfo:
			ri, err := mlv.ParseRawInfo(body)
			if err != nil {
				return nil, err
			}
			e.Meta = ri
			if !t.HasRawInfo {
				t.RawInfo, t.HasRawInfo = ri, true
			}
		case EntryIdentity:
			id, err := mlv.ParseIdentity(body)
			if err != nil {
				return nil, err
			}
			e.Meta = id
			if !t.HasIdentity {
				t.Identity, t.HasIdentity = id, true
			}
		case EntryExposure:
			ex, err := mlv.ParseExposure(body)
			if err != nil {
				return nil, err
			}
			e.Meta = ex
			if !t.HasExposure {
				t.Exposure, t.HasExposure = ex, true
			}
		case EntryLens:
			l, err := mlv.ParseLens(body)
			if err != nil {
				return nil, err
			}
			e.Meta = l
			if !t.HasLens {
				t.Lens, t.HasLens = l, true
			}
		case EntryWhiteBal:
			wb, err := mlv.ParseWhiteBalance(body)
			if err != nil {
				return nil, err
			}
			e.Meta = wb
			if !t.HasWhiteBal {
				t.WhiteBalance, t.HasWhiteBal = wb, true
			}
		}
	}

	if !t.HasRawInfo {
		return nil, fmt.Errorf("xref: rehydrated index: no RAWI block found: %w", mlverr.ErrMalformed)
	}

	return t, nil
}

// blockTypeName exists only so the error message above can name the
// entry's block type without a second switch; EntryType already
// stringifies poorly (it's a bare int), so this keeps the error readable.
func blockTypeName(e *Entry) string {
	switch e.Type {
	case EntryRawInfo:
		return "RAWI"
	case EntryIdentity:
		return "IDNT"
	case EntryExposure:
		return "EXPO"
	case EntryLens:
		return "LENS"
	case EntryWhiteBal:
		return "WBAL"
	default:
		return "?"
	}
}

func readBlockBody(set *chunkset.Set, chunkIndex int, offset int64) ([]byte, error) {
	var prefix [mlv.PrefixSize]byte
	if _, err := set.ReadAt(chunkIndex, offset, prefix[:]); err != nil {
		return nil, err
	}
	blockSize := binary.LittleEndian.Uint32(prefix[4:8])
	bodySize := int(blockSize) - mlv.PrefixSize
	if bodySize <= 0 {
		return nil, nil
	}
	body := make([]byte, bodySize)
	if _, err := set.ReadAt(chunkIndex, offset+mlv.PrefixSize, body); err != nil {
		return nil, err
	}
	return body, nil
}

// countAllBlocksOnDisk walks every chunk's block prefixes (never bodies) in
// parallel, counting blocks the same way Build's scanChunk does via
// chunkScan.totalBlocks, so a stale .IDX (recording re-recorded, truncated,
// or extended since the sidecar was written) is detected before its stale
// positions are trusted.
func countAllBlocksOnDisk(set *chunkset.Set) (uint64, error) {
	n := set.ChunkCount()
	counts := make([]uint64, n)

	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			size, err := set.ChunkSize(idx)
			if err != nil {
				return err
			}
			var offset int64
			var count uint64
			prefixBuf := make([]byte, mlv.PrefixSize)
			for offset+int64(mlv.PrefixSize) <= size {
				n, err := set.ReadAt(idx, offset, prefixBuf)
				if err != nil || n < mlv.PrefixSize {
					break
				}
				blockSize := binary.LittleEndian.Uint32(prefixBuf[4:8])
				if blockSize < uint32(mlv.PrefixSize) || offset+int64(blockSize) > size {
					break
				}
				count++
				offset += int64(blockSize)
			}
			counts[idx] = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total uint64
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// IndexPath returns the conventional ".IDX" sidecar path for a recording.
func IndexPath(recordingPath string) string {
	return strings.TrimSuffix(recordingPath, ".MLV") + ".IDX"
}
