// Package dng synthesizes a minimal, deterministic DNG (Digital Negative,
// TIFF/EP + EXIF) container around one frame's decoded raw samples. The
// header layout is fixed and computed without any file I/O so that
// HeaderSize and Size can be called before the pixel payload exists, which
// is what lets the virtual filesystem answer stat() without materializing
// the frame.
package dng

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/cmhamiche/mlvfs/internal/mlv"
)

// Tag IDs used by the minimal TIFF/EP DNG structure this package writes.
const (
	tagNewSubfileType      = 0x00FE
	tagImageWidth          = 0x0100
	tagImageLength         = 0x0101
	tagBitsPerSample       = 0x0102
	tagCompression         = 0x0103
	tagPhotometricInterp   = 0x0106
	tagFillOrder           = 0x010A
	tagStripOffsets        = 0x0111
	tagSamplesPerPixel     = 0x0115
	tagRowsPerStrip        = 0x0116
	tagStripByteCounts     = 0x0117
	tagPlanarConfig        = 0x011C
	tagCFARepeatPatternDim = 0x828D
	tagCFAPattern          = 0x828E
	tagMake                = 0x010F
	tagModel               = 0x0110
	tagSoftware            = 0x0131
	tagDateTime            = 0x0132
	tagDNGVersion          = 0xC612
	tagUniqueCameraModel   = 0xC614
	tagBlackLevel          = 0xC61A
	tagWhiteLevel          = 0xC61D
	tagDefaultScale        = 0xC61E
	tagDefaultCropOrigin   = 0xC61F
	tagDefaultCropSize     = 0xC620
	tagColorMatrix1        = 0xC621
	tagColorMatrix2        = 0xC622
	tagCFALayout           = 0xC617
	tagAsShotNeutral       = 0xC628
	tagBaselineExposure    = 0xC62A
	tagCameraSerialNumber  = 0xC62F
	tagActiveArea          = 0xC68D
	tagForwardMatrix1      = 0xC714
	tagForwardMatrix2      = 0xC715
	tagFrameRate           = 0xC764
	tagExposureTime        = 0x829A
	tagFNumber             = 0x829D
	tagISOSpeedRatings     = 0x8827
	tagFocalLength         = 0x920A
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

// dateTimeLayout is the fixed-width TIFF DateTime format: "YYYY:MM:DD
// HH:MM:SS" plus the trailing NUL ASCII terminator already handled by
// asciiEntry.
const dateTimeLayout = "2006:01:02 15:04:05"

// epochDateTime is the DateTime tag's fallback value when a recording
// carries no RTCI block, so HeaderSize never has to vary the header's tag
// count on whether wall-clock time is known.
var epochDateTime = time.Unix(0, 0).UTC()

// Header is the immutable DNG header for one frame: everything except the
// raw pixel bytes themselves.
type Header struct {
	bytes []byte
}

// Bytes returns the serialized TIFF/EP header.
func (h Header) Bytes() []byte { return h.bytes }

// Len returns the header's size in bytes.
func (h Header) Len() int { return len(h.bytes) }

// ifdEntry is one fixed-size (12-byte) IFD directory entry, plus overflow
// data for values that don't fit inline.
type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	inline   [4]byte
	overflow []byte // non-nil if the value doesn't fit in 4 bytes
}

// BaselineExposure is the rational pair the deflicker pass produces:
// numerator/denominator, e.g. {correction*10000, 10000}.
type BaselineExposure struct {
	Numerator, Denominator int32
}

// FrameParams is everything BuildHeader needs about one frame beyond its
// RAWI geometry: the sticky metadata blocks resolved for it, the per-camera
// color tables, and the recording-wide values (frame rate, wall clock) a
// caller derives once per Recording rather than per frame.
type FrameParams struct {
	RawInfo  mlv.RawInfo
	Identity mlv.Identity
	Exposure mlv.Exposure
	Lens     mlv.Lens
	WhiteBal mlv.WhiteBalance

	CameraName string
	Serial     string

	ColorMatrix1   [9]int32
	ColorMatrix2   [9]int32
	ForwardMatrix1 [9]int32
	ForwardMatrix2 [9]int32

	BaselineExposure BaselineExposure

	// FPS is the frame rate written to the FrameRate tag: the mount's "fps"
	// override when set, otherwise the recording's own MLVI-derived rate.
	// Zero is written as-is; callers decide the fallback.
	FPS float64

	// DateTime is the frame's wall-clock capture time. The zero time.Time
	// means "unknown" and is written as epochDateTime so the tag's encoded
	// length never depends on whether a recording carries an RTCI block.
	DateTime time.Time
}

// BuildHeader constructs the deterministic DNG header for one frame. Frame
// pixel data is NOT included; callers append exactly Width*Height*2 raw
// sample bytes immediately after Header.Bytes().
func BuildHeader(p FrameParams) (Header, error) {
	rawi := p.RawInfo
	if rawi.Width == 0 || rawi.Height == 0 {
		return Header{}, fmt.Errorf("dng: zero image dimensions")
	}

	const ifdStart = 8 // after the 8-byte TIFF file header

	dateTime := p.DateTime
	if dateTime.IsZero() {
		dateTime = epochDateTime
	}

	cropOX, cropOY, cropW, cropH := defaultCrop(rawi)
	top, left, bottom, right := activeArea(rawi)
	neutral := asShotNeutral(p.WhiteBal)
	fpsNum, fpsDenom := fpsRational(p.FPS)

	entries := []ifdEntry{
		shortEntry(tagNewSubfileType, 0),
		longEntry(tagImageWidth, rawi.Width),
		longEntry(tagImageLength, rawi.Height),
		shortEntry(tagBitsPerSample, 16),
		shortEntry(tagCompression, 1),            // uncompressed
		shortEntry(tagPhotometricInterp, 32803),   // CFA
		shortEntry(tagFillOrder, 1),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, rawi.Height),
		shortEntry(tagPlanarConfig, 1),
		asciiEntry(tagMake, "Canon"),
		asciiEntry(tagModel, p.CameraName),
		asciiEntry(tagSoftware, "mlvfs"),
		asciiEntry(tagDateTime, dateTime.Format(dateTimeLayout)),
		asciiEntry(tagDNGVersion, "1.4.0.0"),
		asciiEntry(tagUniqueCameraModel, p.CameraName),
		shortArrayEntry(tagCFARepeatPatternDim, []uint16{2, 2}),
		cfaPatternEntry(rawi.BayerPattern),
		shortEntry(tagCFALayout, 1),
		shortEntry(tagBlackLevel, rawi.BlackLevel),
		shortEntry(tagWhiteLevel, rawi.WhiteLevel),
		rationalArrayEntry(tagDefaultScale, [][2]uint32{{1, 1}, {1, 1}}),
		rationalArrayEntry(tagDefaultCropOrigin, [][2]uint32{{cropOX, 1}, {cropOY, 1}}),
		rationalArrayEntry(tagDefaultCropSize, [][2]uint32{{cropW, 1}, {cropH, 1}}),
		longArrayEntry(tagActiveArea, []uint32{top, left, bottom, right}),
		rationalArrayEntry(tagAsShotNeutral, neutral[:]),
		colorMatrixEntry(tagColorMatrix1, p.ColorMatrix1),
		colorMatrixEntry(tagColorMatrix2, p.ColorMatrix2),
		colorMatrixEntry(tagForwardMatrix1, p.ForwardMatrix1),
		colorMatrixEntry(tagForwardMatrix2, p.ForwardMatrix2),
		srationalEntry(tagBaselineExposure, p.BaselineExposure.Numerator, p.BaselineExposure.Denominator),
		srationalEntry(tagFrameRate, fpsNum, fpsDenom),
		rationalEntry(tagExposureTime, p.Exposure.ShutterMicros, 1_000_000),
		shortEntry(tagISOSpeedRatings, isoValue(p.Exposure)),
		rationalEntry(tagFNumber, uint64(p.Lens.ApertureTenths), 10),
		rationalEntry(tagFocalLength, uint64(p.Lens.FocalLength), 1),
		asciiEntry(tagCameraSerialNumber, p.Serial),
	}

	// StripOffsets/StripByteCounts are appended last because StripOffsets
	// depends on the final header length, which depends on the entry count
	// (fixed at this point) and the overflow-data size (computed next).
	headerLen := ifdStart + 2 + len(entries)*12 + 4 /* next-IFD pointer */ + 2*12 /* the two strip entries below */
	overflowOffset := headerLen
	overflowTotal := 0
	for _, e := range entries {
		if e.overflow != nil {
			overflowTotal += len(e.overflow)
			if len(e.overflow)%2 == 1 {
				overflowTotal++ // word-align, matching TIFF's even-offset rule
			}
		}
	}
	stripOffset := overflowOffset + overflowTotal

	byteCount := rawi.Width * rawi.Height * 2
	entries = append(entries,
		longEntry(tagStripOffsets, uint32(stripOffset)),
		longEntry(tagStripByteCounts, byteCount),
	)

	return Header{bytes: serialize(entries, ifdStart)}, nil
}

// HeaderSize returns the byte length of the header BuildHeader would produce
// for the given RAWI geometry and tag set, without building it, so callers
// can answer stat() cheaply. It must be kept in exact lockstep with
// BuildHeader's layout.
func HeaderSize(rawi mlv.RawInfo, cameraNameLen, serialLen int) int {
	const ifdStart = 8
	const fixedEntryCount = 37 // entries list in BuildHeader, excluding the two strip entries
	const stripEntryCount = 2

	overflow := 0
	addASCII := func(n int) {
		sz := n + 1
		if sz > 4 {
			overflow += sz
			if sz%2 == 1 {
				overflow++
			}
		}
	}
	addASCII(len("Canon"))
	addASCII(cameraNameLen)
	addASCII(len("mlvfs"))
	addASCII(len(dateTimeLayout))
	addASCII(len("1.4.0.0"))
	addASCII(cameraNameLen)
	// CFARepeatPatternDim is a 2-short array: exactly 4 bytes, fits inline.
	overflow += 16 // DefaultScale: 2 rationals * 8 bytes each
	overflow += 16 // DefaultCropOrigin: 2 rationals * 8 bytes each
	overflow += 16 // DefaultCropSize: 2 rationals * 8 bytes each
	overflow += 16 // ActiveArea: 4 longs * 4 bytes each
	overflow += 24 // AsShotNeutral: 3 rationals * 8 bytes each
	overflow += 72 // ColorMatrix1: 9 srationals * 8 bytes each
	overflow += 72 // ColorMatrix2: 9 srationals * 8 bytes each
	overflow += 72 // ForwardMatrix1: 9 srationals * 8 bytes each
	overflow += 72 // ForwardMatrix2: 9 srationals * 8 bytes each
	overflow += 8  // BaselineExposure: 1 srational
	overflow += 8  // FrameRate: 1 srational
	overflow += 8  // ExposureTime: 1 rational
	// ISOSpeedRatings is a single SHORT: fits inline.
	overflow += 8 // FNumber: 1 rational
	overflow += 8 // FocalLength: 1 rational
	addASCII(serialLen)

	headerLen := ifdStart + 2 + (fixedEntryCount+stripEntryCount)*12 + 4 + overflow
	return headerLen
}

// Size returns the total DNG file size (header + raw pixel payload) for a
// frame of the given geometry.
func Size(rawi mlv.RawInfo, cameraNameLen, serialLen int) int64 {
	return int64(HeaderSize(rawi, cameraNameLen, serialLen)) + int64(rawi.Width)*int64(rawi.Height)*2
}

// activeArea returns RAWI's active sensor area as TIFF/EP's ActiveArea
// quadruplet (top, left, bottom, right). A RAWI without active-area fields
// (ActiveWidth/ActiveHeight both zero) reports the full image as active.
func activeArea(rawi mlv.RawInfo) (top, left, bottom, right uint32) {
	if rawi.ActiveWidth == 0 || rawi.ActiveHeight == 0 {
		return 0, 0, rawi.Height, rawi.Width
	}
	return rawi.ActiveY, rawi.ActiveX, rawi.ActiveY + rawi.ActiveHeight, rawi.ActiveX + rawi.ActiveWidth
}

// defaultCrop returns DefaultCropOrigin/DefaultCropSize from the same
// active-area fields activeArea uses, falling back to the full image when
// RAWI carries no active-area data.
func defaultCrop(rawi mlv.RawInfo) (originX, originY, width, height uint32) {
	if rawi.ActiveWidth == 0 || rawi.ActiveHeight == 0 {
		return 0, 0, rawi.Width, rawi.Height
	}
	return rawi.ActiveX, rawi.ActiveY, rawi.ActiveWidth, rawi.ActiveHeight
}

// asShotNeutral derives AsShotNeutral from WBAL's per-channel gains: the
// reciprocal of each channel's gain relative to green, i.e. the camera-
// native neutral-gray value those gains would normalize to 1.0. A WBAL with
// any zero gain (not yet resolved) reports a neutral 1:1:1.
func asShotNeutral(wb mlv.WhiteBalance) [3][2]uint32 {
	const scale = 10000
	if wb.GainR == 0 || wb.GainG == 0 || wb.GainB == 0 {
		return [3][2]uint32{{1, 1}, {1, 1}, {1, 1}}
	}
	r := uint32(float64(wb.GainG) / float64(wb.GainR) * scale)
	b := uint32(float64(wb.GainG) / float64(wb.GainB) * scale)
	return [3][2]uint32{{r, scale}, {scale, scale}, {b, scale}}
}

// fpsRational converts a frame rate to the SRATIONAL pair FrameRate expects,
// at 1/1000 precision. fps <= 0 (unknown) is written as 0/1.
func fpsRational(fps float64) (int32, int32) {
	if fps <= 0 {
		return 0, 1
	}
	return int32(fps*1000 + 0.5), 1000
}

// isoValue clamps EXPO's ISO to the SHORT range ISOSpeedRatings requires.
func isoValue(e mlv.Exposure) uint16 {
	if e.IsoValue > 0xFFFF {
		return 0xFFFF
	}
	return uint16(e.IsoValue)
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	var inline [4]byte
	binary.LittleEndian.PutUint16(inline[0:2], v)
	return ifdEntry{tag: tag, typ: typeShort, count: 1, inline: inline}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	var inline [4]byte
	binary.LittleEndian.PutUint32(inline[:], v)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, inline: inline}
}

func longArrayEntry(tag uint16, vals []uint32) ifdEntry {
	buf := new(bytes.Buffer)
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(vals)), overflow: buf.Bytes()}
}

func shortArrayEntry(tag uint16, vals []uint16) ifdEntry {
	if len(vals) == 2 {
		var inline [4]byte
		binary.LittleEndian.PutUint16(inline[0:2], vals[0])
		binary.LittleEndian.PutUint16(inline[2:4], vals[1])
		return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), inline: inline}
	}
	buf := new(bytes.Buffer)
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), overflow: buf.Bytes()}
}

func cfaPatternEntry(bayerPattern uint32) ifdEntry {
	// 2x2 CFA pattern encoded as 4 bytes; bayerPattern's low byte ordering
	// follows RAWI's own 4-channel code (0=R,1=G,2=G,3=B in RGGB order) — MLV
	// already stores it pre-arranged, so bytes are taken directly.
	var pat [4]byte
	pat[0] = byte(bayerPattern)
	pat[1] = byte(bayerPattern >> 8)
	pat[2] = byte(bayerPattern >> 16)
	pat[3] = byte(bayerPattern >> 24)
	return ifdEntry{tag: tagCFAPattern, typ: typeByte, count: 4, inline: pat}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	if len(b) <= 4 {
		var inline [4]byte
		copy(inline[:], b)
		return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), inline: inline}
	}
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), overflow: b}
}

func colorMatrixEntry(tag uint16, m [9]int32) ifdEntry {
	buf := new(bytes.Buffer)
	for _, v := range m {
		binary.Write(buf, binary.LittleEndian, v)
		binary.Write(buf, binary.LittleEndian, int32(10000))
	}
	return ifdEntry{tag: tag, typ: typeSRational, count: 9, overflow: buf.Bytes()}
}

func srationalEntry(tag uint16, num, denom int32) ifdEntry {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, num)
	binary.Write(buf, binary.LittleEndian, denom)
	return ifdEntry{tag: tag, typ: typeSRational, count: 1, overflow: buf.Bytes()}
}

func rationalEntry(tag uint16, num uint64, denom uint32) ifdEntry {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(num))
	binary.Write(buf, binary.LittleEndian, denom)
	return ifdEntry{tag: tag, typ: typeRational, count: 1, overflow: buf.Bytes()}
}

func rationalArrayEntry(tag uint16, pairs [][2]uint32) ifdEntry {
	buf := new(bytes.Buffer)
	for _, p := range pairs {
		binary.Write(buf, binary.LittleEndian, p[0])
		binary.Write(buf, binary.LittleEndian, p[1])
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(pairs)), overflow: buf.Bytes()}
}

func serialize(entries []ifdEntry, ifdStart int) []byte {
	// TIFF/EP requires IFD entries sorted ascending by tag; BuildHeader
	// assembles them in a human-readable grouping instead, so reorder here.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	buf := new(bytes.Buffer)
	buf.WriteByte('I')
	buf.WriteByte('I')
	binary.Write(buf, binary.LittleEndian, uint16(42))
	binary.Write(buf, binary.LittleEndian, uint32(ifdStart))

	binary.Write(buf, binary.LittleEndian, uint16(len(entries)))

	dirSize := 2 + len(entries)*12 + 4
	overflowOffset := ifdStart + dirSize

	type placed struct {
		entry  ifdEntry
		offset int
	}
	var placements []placed
	cursor := overflowOffset
	for _, e := range entries {
		p := placed{entry: e, offset: cursor}
		if e.overflow != nil {
			sz := len(e.overflow)
			if sz%2 == 1 {
				sz++
			}
			cursor += sz
		}
		placements = append(placements, p)
	}

	for _, p := range placements {
		binary.Write(buf, binary.LittleEndian, p.entry.tag)
		binary.Write(buf, binary.LittleEndian, p.entry.typ)
		binary.Write(buf, binary.LittleEndian, p.entry.count)
		if p.entry.overflow != nil {
			var off [4]byte
			binary.LittleEndian.PutUint32(off[:], uint32(p.offset))
			buf.Write(off[:])
		} else {
			buf.Write(p.entry.inline[:])
		}
	}
	binary.Write(buf, binary.LittleEndian, uint32(0)) // no next IFD

	for _, p := range placements {
		if p.entry.overflow == nil {
			continue
		}
		buf.Write(p.entry.overflow)
		if len(p.entry.overflow)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	return buf.Bytes()
}
