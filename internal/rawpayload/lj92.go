package rawpayload

import (
	"encoding/binary"
	"fmt"

	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// decodeLJ92 decodes a lossless-JPEG (ITU-T.81 predictive, process 14)
// bitstream as emitted by Magic Lantern's raw_rec/mlv_lite LJ92 encoder:
// one scan, Huffman-coded differences from the left neighbor (the sample
// above for the first column of each row), no subsampling. The decoded sample dimensions are checked
// against RAWI before returning, per the mismatch-is-malformed rule.
func decodeLJ92(raw []byte, rawi mlv.RawInfo, recording string, frameIndex int) ([]uint16, error) {
	d := &lj92Decoder{data: raw}
	if err := d.parseMarkers(); err != nil {
		return nil, mlverr.Malformed(recording, frameIndex, "LJ92: "+err.Error())
	}
	if d.width == 0 || d.height == 0 {
		return nil, mlverr.Malformed(recording, frameIndex, "LJ92: missing SOF3 marker")
	}
	if int(d.width) != int(rawi.Width) || int(d.height) != int(rawi.Height) {
		return nil, mlverr.Malformed(recording, frameIndex,
			fmt.Sprintf("LJ92 declares %dx%d, RAWI declares %dx%d", d.width, d.height, rawi.Width, rawi.Height))
	}

	out, err := d.decodeScan()
	if err != nil {
		return nil, mlverr.Malformed(recording, frameIndex, "LJ92: "+err.Error())
	}
	return out, nil
}

type huffTable struct {
	// counts and values are the DHT segment's 16 BITS counts and HUFFVAL
	// list, from which codes is built.
	counts [17]int
	values []byte
	// fast lookup: code -> (length, value), built incrementally bit by bit.
	codes map[uint32]huffEntry
}

type huffEntry struct {
	length int
	value  byte
}

func buildHuffTable(counts [17]int, values []byte) *huffTable {
	t := &huffTable{counts: counts, values: values, codes: make(map[uint32]huffEntry)}
	code := uint32(0)
	k := 0
	for length := 1; length <= 16; length++ {
		for i := 0; i < counts[length]; i++ {
			t.codes[packCode(code, length)] = huffEntry{length: length, value: values[k]}
			k++
			code++
		}
		code <<= 1
	}
	return t
}

func packCode(code uint32, length int) uint32 {
	return code | (uint32(length) << 24)
}

type bitReader struct {
	data []byte
	pos  int
	bit  uint
}

func (b *bitReader) readBit() (uint32, error) {
	if b.pos >= len(b.data) {
		return 0, fmt.Errorf("unexpected end of entropy-coded segment")
	}
	byteVal := b.data[b.pos]
	v := uint32((byteVal >> (7 - b.bit)) & 1)
	b.bit++
	if b.bit == 8 {
		b.bit = 0
		b.pos++
		if b.pos < len(b.data) && b.data[b.pos-1] == 0xFF && b.pos < len(b.data) && b.data[b.pos] == 0x00 {
			b.pos++ // skip stuffed zero byte
		}
	}
	return v, nil
}

func (h *huffTable) decode(br *bitReader) (byte, error) {
	var code uint32
	for length := 1; length <= 16; length++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		code = (code << 1) | bit
		if e, ok := h.codes[packCode(code, length)]; ok {
			return e.value, nil
		}
	}
	return 0, fmt.Errorf("invalid Huffman code in entropy-coded segment")
}

// receiveExtend reads n raw (unsigned) bits and extends them per the JPEG lossless
// DIFF convention (receive+extend).
func receiveExtend(br *bitReader, n int) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	var v int32
	for i := 0; i < n; i++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | int32(bit)
	}
	if v < (1 << uint(n-1)) {
		v -= (1 << uint(n)) - 1
	}
	return v, nil
}

type lj92Decoder struct {
	data         []byte
	width, height int
	bitsPerSample int
	huff         *huffTable
	scanStart    int
}

func (d *lj92Decoder) parseMarkers() error {
	pos := 0
	if len(d.data) < 2 || d.data[0] != 0xFF || d.data[1] != 0xD8 {
		return fmt.Errorf("missing SOI marker")
	}
	pos = 2
	for pos+4 <= len(d.data) {
		if d.data[pos] != 0xFF {
			return fmt.Errorf("expected marker at offset %d", pos)
		}
		marker := d.data[pos+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if marker == 0xDA {
			// SOS: header length, then entropy-coded data starts right after.
			segLen := int(binary.BigEndian.Uint16(d.data[pos+2 : pos+4]))
			d.scanStart = pos + 2 + segLen
			return nil
		}
		segLen := int(binary.BigEndian.Uint16(d.data[pos+2 : pos+4]))
		seg := d.data[pos+4 : pos+2+segLen]
		switch marker {
		case 0xC3: // SOF3: lossless, Huffman
			if len(seg) < 6 {
				return fmt.Errorf("short SOF3 segment")
			}
			d.bitsPerSample = int(seg[0])
			d.height = int(binary.BigEndian.Uint16(seg[1:3]))
			d.width = int(binary.BigEndian.Uint16(seg[3:5]))
		case 0xC4: // DHT
			counts, values := parseDHT(seg)
			d.huff = buildHuffTable(counts, values)
		}
		pos += 2 + segLen
	}
	return fmt.Errorf("ran off end of headers without finding SOS")
}

func parseDHT(seg []byte) ([17]int, []byte) {
	var counts [17]int
	if len(seg) < 17 {
		return counts, nil
	}
	total := 0
	for i := 1; i <= 16; i++ {
		counts[i] = int(seg[i])
		total += counts[i]
	}
	end := 17 + total
	if end > len(seg) {
		end = len(seg)
	}
	return counts, seg[17:end]
}

// decodeScan runs the single-component lossless predictive decode (predictor
// 1: left-neighbor) across the full image, matching the simple single-plane
// layout Magic Lantern's raw recorders emit.
func (d *lj92Decoder) decodeScan() ([]uint16, error) {
	if d.huff == nil {
		return nil, fmt.Errorf("no DHT table found")
	}
	if d.scanStart <= 0 || d.scanStart >= len(d.data) {
		return nil, fmt.Errorf("empty entropy-coded segment")
	}

	br := &bitReader{data: d.data[d.scanStart:]}
	out := make([]uint16, d.width*d.height)

	predictorBase := int32(1) << uint(d.bitsPerSample-1)

	for i := range out {
		n, err := d.huff.decode(br)
		if err != nil {
			return nil, err
		}
		diff, err := receiveExtend(br, int(n))
		if err != nil {
			return nil, err
		}

		var pred int32
		x := i % d.width
		switch {
		case i == 0:
			pred = predictorBase
		case x == 0:
			pred = int32(out[i-d.width])
		default:
			pred = int32(out[i-1])
		}

		v := pred + diff
		if v < 0 {
			v = 0
		}
		out[i] = uint16(v)
	}

	return out, nil
}
