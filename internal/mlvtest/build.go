// Package mlvtest builds synthetic MLV block streams for tests: small,
// byte-exact encoders for the block types other packages' tests need to
// fabricate (MLVI, RAWI, IDNT, EXPO, RTCI, WAVI, VIDF, AUDF), mirroring the
// prefix/body layout internal/mlv parses.
package mlvtest

import (
	"bytes"
	"encoding/binary"
)

// Block appends one length-prefixed block (16-byte prefix + body) to buf,
// computing blockSize itself.
func Block(buf *bytes.Buffer, blockType string, timestamp uint64, body []byte) {
	var prefix [16]byte
	copy(prefix[0:4], blockType)
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(16+len(body)))
	binary.LittleEndian.PutUint64(prefix[8:16], timestamp)
	buf.Write(prefix[:])
	buf.Write(body)
}

// FileHeaderBody encodes an MLVI body (32 bytes: the fields
// internal/mlv.ParseFileHeader reads).
func FileHeaderBody(videoClass, audioClass uint16, videoFrameCount uint32) []byte {
	body := make([]byte, 32)
	copy(body[0:8], "MLV")
	binary.LittleEndian.PutUint64(body[8:16], 0xDEADBEEFCAFEF00D) // FileGUID
	binary.LittleEndian.PutUint16(body[16:18], 0)                 // FileNum
	binary.LittleEndian.PutUint16(body[18:20], 1)                 // FileCount
	binary.LittleEndian.PutUint32(body[20:24], 0)                 // FileFlags
	binary.LittleEndian.PutUint16(body[24:26], videoClass)
	binary.LittleEndian.PutUint16(body[26:28], audioClass)
	binary.LittleEndian.PutUint32(body[28:32], videoFrameCount)
	return body
}

// RawInfoBody encodes a RAWI body (40 bytes).
func RawInfoBody(width, height uint32, bpp, black, white uint16, bayerPattern uint32) []byte {
	body := make([]byte, 40)
	binary.LittleEndian.PutUint32(body[0:4], width)
	binary.LittleEndian.PutUint32(body[4:8], height)
	binary.LittleEndian.PutUint16(body[8:10], bpp)
	binary.LittleEndian.PutUint16(body[10:12], black)
	binary.LittleEndian.PutUint16(body[12:14], white)
	binary.LittleEndian.PutUint32(body[16:20], bayerPattern)
	return body
}

// IdentityBody encodes an IDNT body (36 bytes).
func IdentityBody(cameraName string, cameraModel uint32) []byte {
	body := make([]byte, 36)
	copy(body[0:32], cameraName)
	binary.LittleEndian.PutUint32(body[32:36], cameraModel)
	return body
}

// ExposureBody encodes an EXPO body (24 bytes).
func ExposureBody(shutterMicros uint64, isoValue uint32) []byte {
	body := make([]byte, 24)
	binary.LittleEndian.PutUint64(body[0:8], shutterMicros)
	binary.LittleEndian.PutUint32(body[12:16], isoValue)
	return body
}

// RTCInfoBody encodes an RTCI body (36 bytes): year is the full calendar
// year (internal/mlv.RTCInfo stores it as years-since-1900, so this
// subtracts 1900), month is 1-12 (stored 0-11).
func RTCInfoBody(year, month, day, hour, min, sec int32) []byte {
	body := make([]byte, 36)
	vals := []int32{sec, min, hour, day, month - 1, year - 1900, 0, 0, 0}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(body[i*4:i*4+4], uint32(v))
	}
	return body
}

// WaveInfoBody encodes a WAVI body (16 bytes).
func WaveInfoBody(format, channels uint16, sampleRate, bytesPerSec uint32, blockAlign, bitsPerSample uint16) []byte {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint16(body[0:2], format)
	binary.LittleEndian.PutUint16(body[2:4], channels)
	binary.LittleEndian.PutUint32(body[4:8], sampleRate)
	binary.LittleEndian.PutUint32(body[8:12], bytesPerSec)
	binary.LittleEndian.PutUint16(body[12:14], blockAlign)
	binary.LittleEndian.PutUint16(body[14:16], bitsPerSample)
	return body
}

// VideoFrameBody encodes a VIDF body: the fixed 16-byte header (FrameNumber,
// Timestamp, FrameSpace) followed by frameSpace padding bytes and then the
// raw payload.
func VideoFrameBody(frameNumber uint32, vidfTimestamp uint64, frameSpace uint32, payload []byte) []byte {
	body := make([]byte, 16+int(frameSpace)+len(payload))
	binary.LittleEndian.PutUint32(body[0:4], frameNumber)
	binary.LittleEndian.PutUint64(body[4:12], vidfTimestamp)
	binary.LittleEndian.PutUint32(body[12:16], frameSpace)
	copy(body[16+int(frameSpace):], payload)
	return body
}

// AudioFrameBody encodes an AUDF body: fixed 16-byte header then payload.
func AudioFrameBody(frameNumber uint32, audfTimestamp uint64, payload []byte) []byte {
	body := make([]byte, 16+len(payload))
	binary.LittleEndian.PutUint32(body[0:4], frameNumber)
	binary.LittleEndian.PutUint64(body[4:12], audfTimestamp)
	copy(body[16:], payload)
	return body
}

// PackBits packs samples MSB-first at bpp bits per sample, matching the
// layout internal/rawpayload.unpackBits expects (big-endian bitstream, no
// padding between rows).
func PackBits(samples []uint16, bpp int) []byte {
	totalBits := len(samples) * bpp
	out := make([]byte, (totalBits+7)/8)
	var bitPos int
	for _, s := range samples {
		for i := bpp - 1; i >= 0; i-- {
			bit := (s >> uint(i)) & 1
			if bit != 0 {
				byteIdx := bitPos / 8
				bitIdx := 7 - (bitPos % 8)
				out[byteIdx] |= 1 << uint(bitIdx)
			}
			bitPos++
		}
	}
	return out
}
