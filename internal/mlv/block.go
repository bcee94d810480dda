// Package mlv defines the on-disk block layout of an MLV (Magic Lantern
// Video) container: the 16-byte block prefix shared by every block, the
// block type tags, and the fixed-layout metadata blocks the frame
// materialization pipeline cares about.
package mlv

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PrefixSize is the length of the block prefix every block begins with.
const PrefixSize = 16

// Block type tags, matched against the 4-byte ASCII blockType field.
const (
	TypeFileHeader  = "MLVI"
	TypeRawInfo     = "RAWI"
	TypeRTCInfo     = "RTCI"
	TypeIdentity    = "IDNT"
	TypeExposure    = "EXPO"
	TypeLens        = "LENS"
	TypeWhiteBal    = "WBAL"
	TypeWaveInfo    = "WAVI"
	TypeVideoFrame  = "VIDF"
	TypeAudioFrame  = "AUDF"
	TypeDebug       = "DEBG"
	TypeNull        = "NULL"
)

// VideoClass flags on MLVI.VideoClass: bit 0 = LZMA, bit 1 = LJ92.
const (
	VideoClassFlagLZMA = 1 << 0
	VideoClassFlagLJ92 = 1 << 1
)

// Prefix is the 16-byte header present at the start of every block:
// {blockType: char[4], blockSize: uint32 LE, timestamp: uint64 LE}.
type Prefix struct {
	Type      string
	Size      uint32
	Timestamp uint64
}

// ReadPrefix reads and validates one block prefix from r.
func ReadPrefix(r io.Reader) (Prefix, error) {
	var buf [PrefixSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Prefix{}, err
	}
	return Prefix{
		Type:      string(buf[0:4]),
		Size:      binary.LittleEndian.Uint32(buf[4:8]),
		Timestamp: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// FileHeader is the MLVI block: recording-wide parameters and video/audio
// class flags.
type FileHeader struct {
	VersionString     string
	FileGUID          uint64
	FileNum           uint16
	FileCount         uint16
	FileFlags         uint32
	VideoClass        uint16
	AudioClass        uint16
	VideoFrameCount   uint32
	AudioFrameCount   uint32
	SourceFPSNom      uint32
	SourceFPSDenom    uint32
}

// LZMACompressed reports whether the video payload uses LZMA compression.
func (f FileHeader) LZMACompressed() bool { return f.VideoClass&VideoClassFlagLZMA != 0 }

// LJ92Compressed reports whether the video payload uses LJ92 compression.
func (f FileHeader) LJ92Compressed() bool { return f.VideoClass&VideoClassFlagLJ92 != 0 }

// FPS returns the recording's frame rate as a float, guarding against a zero
// denominator.
func (f FileHeader) FPS() float64 {
	if f.SourceFPSDenom == 0 {
		return 0
	}
	return float64(f.SourceFPSNom) / float64(f.SourceFPSDenom)
}

const fileHeaderBodySize = 32

// ParseFileHeader decodes the body of an MLVI block (prefix already consumed).
func ParseFileHeader(body []byte) (FileHeader, error) {
	if len(body) < fileHeaderBodySize {
		return FileHeader{}, fmt.Errorf("mlv: MLVI body too short: %d bytes", len(body))
	}
	return FileHeader{
		VersionString:   trimNulString(body[0:8]),
		FileGUID:        binary.LittleEndian.Uint64(body[8:16]),
		FileNum:         binary.LittleEndian.Uint16(body[16:18]),
		FileCount:       binary.LittleEndian.Uint16(body[18:20]),
		FileFlags:       binary.LittleEndian.Uint32(body[20:24]),
		VideoClass:      binary.LittleEndian.Uint16(body[24:26]),
		AudioClass:      binary.LittleEndian.Uint16(body[26:28]),
		VideoFrameCount: binary.LittleEndian.Uint32(body[28:32]),
		// AudioFrameCount / fps live past the 32-byte core we guarantee; older
		// recordings may omit them, so default to zero when absent.
	}, nil
}

// RawInfo is the RAWI block: raw image format and sensor geometry.
type RawInfo struct {
	Width, Height   uint32
	BitsPerPixel    uint16
	BlackLevel      uint16
	WhiteLevel      uint16
	BayerPattern    uint32
	ActiveX         uint32
	ActiveY         uint32
	ActiveWidth     uint32
	ActiveHeight    uint32
	// ExposureBias is a rational {numerator, denominator}. ParseRawInfo does
	// not fill it and nothing in this module sets it; the deflicker pass
	// records its correction in imageproc.Frame.BaselineExposure instead.
	ExposureBias [2]int32
}

const rawInfoBodySize = 40

// ParseRawInfo decodes the body of a RAWI block.
func ParseRawInfo(body []byte) (RawInfo, error) {
	if len(body) < rawInfoBodySize {
		return RawInfo{}, fmt.Errorf("mlv: RAWI body too short: %d bytes", len(body))
	}
	ri := RawInfo{
		Width:        binary.LittleEndian.Uint32(body[0:4]),
		Height:       binary.LittleEndian.Uint32(body[4:8]),
		BitsPerPixel: binary.LittleEndian.Uint16(body[8:10]),
		BlackLevel:   binary.LittleEndian.Uint16(body[10:12]),
		WhiteLevel:   binary.LittleEndian.Uint16(body[12:14]),
		BayerPattern: binary.LittleEndian.Uint32(body[16:20]),
		ActiveX:      binary.LittleEndian.Uint32(body[20:24]),
		ActiveY:      binary.LittleEndian.Uint32(body[24:28]),
		ActiveWidth:  binary.LittleEndian.Uint32(body[28:32]),
		ActiveHeight: binary.LittleEndian.Uint32(body[32:36]),
	}
	if ri.BitsPerPixel != 10 && ri.BitsPerPixel != 12 && ri.BitsPerPixel != 14 && ri.BitsPerPixel != 16 {
		return RawInfo{}, fmt.Errorf("mlv: RAWI has implausible bits_per_pixel %d", ri.BitsPerPixel)
	}
	return ri, nil
}

// RTCInfo is the RTCI block: wall-clock time at recording start.
type RTCInfo struct {
	Sec, Min, Hour      int32
	MDay, Mon, Year     int32
	WDay, YDay, IsDST   int32
	// Timestamp is the xref timestamp of the block this was read from, used
	// to compute per-frame wall-clock offsets: frame_time = RTCI.wall +
	// (VIDF.timestamp - RTCI.Timestamp) / 1e6 seconds.
	Timestamp uint64
}

const rtcInfoBodySize = 36

// ParseRTCInfo decodes the body of an RTCI block.
func ParseRTCInfo(body []byte) (RTCInfo, error) {
	if len(body) < rtcInfoBodySize {
		return RTCInfo{}, fmt.Errorf("mlv: RTCI body too short: %d bytes", len(body))
	}
	i32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(body[off : off+4])) }
	return RTCInfo{
		Sec: i32(0), Min: i32(4), Hour: i32(8),
		MDay: i32(12), Mon: i32(16), Year: i32(20),
		WDay: i32(24), YDay: i32(28), IsDST: i32(32),
	}, nil
}

// Identity is the IDNT block: camera identity used for DNG color-matrix lookup.
type Identity struct {
	CameraName  string
	CameraModel uint32
}

const identityBodySize = 36

// ParseIdentity decodes the body of an IDNT block.
func ParseIdentity(body []byte) (Identity, error) {
	if len(body) < identityBodySize {
		return Identity{}, fmt.Errorf("mlv: IDNT body too short: %d bytes", len(body))
	}
	return Identity{
		CameraName:  trimNulString(body[0:32]),
		CameraModel: binary.LittleEndian.Uint32(body[32:36]),
	}, nil
}

// Exposure is the EXPO block: shutter and ISO.
type Exposure struct {
	ShutterMicros uint64
	IsoMode       uint32
	IsoValue      uint32
	IsoAnalog     uint32
	DigitalGain   uint32
}

const exposureBodySize = 24

// ParseExposure decodes the body of an EXPO block.
func ParseExposure(body []byte) (Exposure, error) {
	if len(body) < exposureBodySize {
		return Exposure{}, fmt.Errorf("mlv: EXPO body too short: %d bytes", len(body))
	}
	return Exposure{
		ShutterMicros: binary.LittleEndian.Uint64(body[0:8]),
		IsoMode:       binary.LittleEndian.Uint32(body[8:12]),
		IsoValue:      binary.LittleEndian.Uint32(body[12:16]),
		IsoAnalog:     binary.LittleEndian.Uint32(body[16:20]),
		DigitalGain:   binary.LittleEndian.Uint32(body[20:24]),
	}, nil
}

// Lens is the LENS block: focal length and aperture.
type Lens struct {
	FocalLength    uint16
	FocalDist      uint16
	ApertureTenths uint16 // f-number x10
	LensName       string
}

const lensBodySize = 38

// ParseLens decodes the body of a LENS block.
func ParseLens(body []byte) (Lens, error) {
	if len(body) < lensBodySize {
		return Lens{}, fmt.Errorf("mlv: LENS body too short: %d bytes", len(body))
	}
	return Lens{
		FocalLength:    binary.LittleEndian.Uint16(body[0:2]),
		FocalDist:      binary.LittleEndian.Uint16(body[2:4]),
		ApertureTenths: binary.LittleEndian.Uint16(body[4:6]),
		LensName:       trimNulString(body[6:38]),
	}, nil
}

// WhiteBalance is the WBAL block.
type WhiteBalance struct {
	Kelvin          uint32
	GainR, GainG, GainB uint32
}

const whiteBalanceBodySize = 16

// ParseWhiteBalance decodes the body of a WBAL block.
func ParseWhiteBalance(body []byte) (WhiteBalance, error) {
	if len(body) < whiteBalanceBodySize {
		return WhiteBalance{}, fmt.Errorf("mlv: WBAL body too short: %d bytes", len(body))
	}
	return WhiteBalance{
		Kelvin: binary.LittleEndian.Uint32(body[0:4]),
		GainR:  binary.LittleEndian.Uint32(body[4:8]),
		GainG:  binary.LittleEndian.Uint32(body[8:12]),
		GainB:  binary.LittleEndian.Uint32(body[12:16]),
	}, nil
}

// WaveInfo is the WAVI block: PCM audio format.
type WaveInfo struct {
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	BytesPerSec   uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const waveInfoBodySize = 16

// ParseWaveInfo decodes the body of a WAVI block.
func ParseWaveInfo(body []byte) (WaveInfo, error) {
	if len(body) < waveInfoBodySize {
		return WaveInfo{}, fmt.Errorf("mlv: WAVI body too short: %d bytes", len(body))
	}
	return WaveInfo{
		Format:        binary.LittleEndian.Uint16(body[0:2]),
		Channels:      binary.LittleEndian.Uint16(body[2:4]),
		SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
		BytesPerSec:   binary.LittleEndian.Uint32(body[8:12]),
		BlockAlign:    binary.LittleEndian.Uint16(body[12:14]),
		BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
	}, nil
}

// VideoFrameHeader is the VIDF block header (the packed raw payload follows
// immediately, after FrameSpace bytes of padding).
type VideoFrameHeader struct {
	FrameNumber uint32
	Timestamp   uint64
	FrameSpace  uint32
}

// VideoFrameHeaderSize is the fixed byte size of a VIDF block's header body
// (FrameNumber + Timestamp + FrameSpace), not counting the 16-byte block
// prefix or the FrameSpace padding that follows before the raw payload.
const VideoFrameHeaderSize = 16

const videoFrameHeaderBodySize = VideoFrameHeaderSize

// ParseVideoFrameHeader decodes the fixed portion of a VIDF block.
func ParseVideoFrameHeader(body []byte) (VideoFrameHeader, error) {
	if len(body) < videoFrameHeaderBodySize {
		return VideoFrameHeader{}, fmt.Errorf("mlv: VIDF body too short: %d bytes", len(body))
	}
	return VideoFrameHeader{
		FrameNumber: binary.LittleEndian.Uint32(body[0:4]),
		Timestamp:   binary.LittleEndian.Uint64(body[4:12]),
		FrameSpace:  binary.LittleEndian.Uint32(body[12:16]),
	}, nil
}

// AudioFrameHeader is the AUDF block header.
type AudioFrameHeader struct {
	FrameNumber uint32
	Timestamp   uint64
	FrameSpace  uint32
}

// AudioFrameHeaderSize is the fixed byte size of an AUDF block's header body.
const AudioFrameHeaderSize = 16

const audioFrameHeaderBodySize = AudioFrameHeaderSize

// ParseAudioFrameHeader decodes the fixed portion of an AUDF block.
func ParseAudioFrameHeader(body []byte) (AudioFrameHeader, error) {
	if len(body) < audioFrameHeaderBodySize {
		return AudioFrameHeader{}, fmt.Errorf("mlv: AUDF body too short: %d bytes", len(body))
	}
	return AudioFrameHeader{
		FrameNumber: binary.LittleEndian.Uint32(body[0:4]),
		Timestamp:   binary.LittleEndian.Uint64(body[4:12]),
		FrameSpace:  binary.LittleEndian.Uint32(body[12:16]),
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
