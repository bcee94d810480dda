// Package rawpayload decodes a VIDF block's raw image payload into a flat
// slice of unsigned 16-bit sensor samples, branching on the recording's
// video class flags: uncompressed bit-packed, LZMA-compressed, or
// LJ92 (lossless JPEG) compressed.
package rawpayload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// Decode reads and decompresses one frame's raw payload. entryOffset is the
// VIDF block's prefix offset within chunk chunkIdx; frameSpace is the VIDF
// header's padding-before-payload field.
func Decode(set *chunkset.Set, chunkIdx int, entryOffset int64, frameSpace uint32, header mlv.FileHeader, rawi mlv.RawInfo, recording string, frameIndex int) ([]uint16, error) {
	payloadOffset := entryOffset + int64(mlv.PrefixSize) + int64(mlv.VideoFrameHeaderSize) + int64(frameSpace)

	blockSize, err := readBlockSize(set, chunkIdx, entryOffset)
	if err != nil {
		return nil, err
	}
	payloadSize := int64(blockSize) - (payloadOffset - entryOffset)
	if payloadSize <= 0 {
		return nil, mlverr.Malformed(recording, frameIndex, "VIDF block has no payload bytes")
	}

	raw := make([]byte, payloadSize)
	if _, err := set.ReadAt(chunkIdx, payloadOffset, raw); err != nil {
		return nil, err
	}

	switch {
	case header.LJ92Compressed():
		return decodeLJ92(raw, rawi, recording, frameIndex)
	case header.LZMACompressed():
		return decodeLZMA(raw, rawi, recording, frameIndex)
	default:
		return unpackBits(raw, rawi, recording, frameIndex)
	}
}

func readBlockSize(set *chunkset.Set, chunkIdx int, offset int64) (uint32, error) {
	var buf [8]byte
	if _, err := set.ReadAt(chunkIdx, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[4:8]), nil
}

// unpackBits unpacks a bit-packed uncompressed payload at rawi.BitsPerPixel
// bits per sample into a flat row-major uint16 sample slice, per the byte
// layout: samples are packed MSB-first across byte boundaries with no
// padding between rows.
func unpackBits(raw []byte, rawi mlv.RawInfo, recording string, frameIndex int) ([]uint16, error) {
	bpp := int(rawi.BitsPerPixel)
	count := int(rawi.Width) * int(rawi.Height)
	needBits := count * bpp
	needBytes := (needBits + 7) / 8
	if len(raw) < needBytes {
		return nil, mlverr.Malformed(recording, frameIndex,
			fmt.Sprintf("uncompressed payload too short: have %d bytes, need %d for %dx%d@%dbpp", len(raw), needBytes, rawi.Width, rawi.Height, bpp))
	}

	out := make([]uint16, count)
	var bitPos int
	for i := 0; i < count; i++ {
		out[i] = readBits(raw, bitPos, bpp)
		bitPos += bpp
	}
	return out, nil
}

// readBits reads bpp bits starting at bitPos from a big-endian bitstream
// (MSB of byte 0 is bit 0), matching Magic Lantern's raw packing.
func readBits(raw []byte, bitPos, bpp int) uint16 {
	var v uint32
	for i := 0; i < bpp; i++ {
		bit := bitPos + i
		byteIdx := bit / 8
		bitIdx := 7 - (bit % 8)
		b := (raw[byteIdx] >> uint(bitIdx)) & 1
		v = (v << 1) | uint32(b)
	}
	return uint16(v)
}

// decodeLZMA decompresses an MLV LZMA video payload: a 4-byte little-endian
// uncompressed size followed by the classic 5-byte LZMA properties header
// and the compressed stream, exactly the shape lzma.NewReader expects once
// the size prefix is stripped and re-framed as a classic header.
func decodeLZMA(raw []byte, rawi mlv.RawInfo, recording string, frameIndex int) ([]uint16, error) {
	if len(raw) < 9 {
		return nil, mlverr.Malformed(recording, frameIndex, "LZMA payload shorter than header")
	}
	uncompressedSize := binary.LittleEndian.Uint32(raw[0:4])
	propsAndStream := raw[4:]

	// lzma.Reader expects the classic header: 5 properties bytes followed by
	// an 8-byte little-endian uncompressed size (or 0xFFFFFFFFFFFFFFFF for
	// "unknown", terminated by an end marker). MLV stores the size separately,
	// so splice it back into the classic position.
	classic := make([]byte, 0, 13+len(propsAndStream)-5)
	classic = append(classic, propsAndStream[:5]...)
	var sizeField [8]byte
	binary.LittleEndian.PutUint64(sizeField[:], uint64(uncompressedSize))
	classic = append(classic, sizeField[:]...)
	classic = append(classic, propsAndStream[5:]...)

	r, err := lzma.NewReader(bytes.NewReader(classic))
	if err != nil {
		return nil, mlverr.Malformed(recording, frameIndex, "LZMA header rejected: "+err.Error())
	}
	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, mlverr.Malformed(recording, frameIndex, "LZMA stream decode failed: "+err.Error())
	}
	if uint32(len(decompressed)) != uncompressedSize {
		return nil, mlverr.Malformed(recording, frameIndex,
			fmt.Sprintf("LZMA decompressed %d bytes, header declared %d", len(decompressed), uncompressedSize))
	}

	return bytesToSamples(decompressed, rawi, recording, frameIndex)
}

func bytesToSamples(raw []byte, rawi mlv.RawInfo, recording string, frameIndex int) ([]uint16, error) {
	bpp := int(rawi.BitsPerPixel)
	count := int(rawi.Width) * int(rawi.Height)
	needBytes := (count*bpp + 7) / 8
	if len(raw) < needBytes {
		return nil, mlverr.Malformed(recording, frameIndex, "decompressed payload shorter than expected sample count")
	}
	out := make([]uint16, count)
	var bitPos int
	for i := 0; i < count; i++ {
		out[i] = readBits(raw, bitPos, bpp)
		bitPos += bpp
	}
	return out, nil
}
