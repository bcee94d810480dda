// Package audiotrack sizes and streams the virtual ".WAV" file: a standard
// RIFF/WAVE header followed by every AUDF block's payload concatenated in
// timestamp order. It does not perform any audio encoding — recordings
// already store linear PCM, so this is purely a sizing/streaming
// transformation, matching the WAV payload encoder being out of scope.
package audiotrack

import (
	"encoding/binary"
	"io"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/xref"
)

const riffHeaderSize = 44

// Size returns the total byte size of the synthesized WAV file for a
// recording's audio entries.
func Size(t *xref.Table, set *chunkset.Set) (int64, error) {
	total, err := payloadSize(t, set)
	if err != nil {
		return 0, err
	}
	return int64(riffHeaderSize) + total, nil
}

func payloadSize(t *xref.Table, set *chunkset.Set) (int64, error) {
	var total int64
	for _, e := range t.Entries {
		if e.Type != xref.EntryAudio {
			continue
		}
		var prefixBuf [mlv.PrefixSize]byte
		if _, err := set.ReadAt(e.ChunkIndex, e.Offset, prefixBuf[:]); err != nil {
			return 0, err
		}
		blockSize := binary.LittleEndian.Uint32(prefixBuf[4:8])
		total += int64(blockSize) - mlv.PrefixSize - mlv.AudioFrameHeaderSize
	}
	return total, nil
}

// WriteHeader writes the 44-byte RIFF/WAVE header describing dataSize bytes
// of PCM audio in the given format.
func WriteHeader(w io.Writer, wavi mlv.WaveInfo, dataSize int64) error {
	var hdr [riffHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavi.Format)
	binary.LittleEndian.PutUint16(hdr[22:24], wavi.Channels)
	binary.LittleEndian.PutUint32(hdr[24:28], wavi.SampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], wavi.BytesPerSec)
	binary.LittleEndian.PutUint16(hdr[32:34], wavi.BlockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], wavi.BitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	_, err := w.Write(hdr[:])
	return err
}

// StreamPayload writes every AUDF block's payload, in xref order, to w.
func StreamPayload(w io.Writer, t *xref.Table, set *chunkset.Set) error {
	for _, e := range t.Entries {
		if e.Type != xref.EntryAudio {
			continue
		}
		var prefixBuf [mlv.PrefixSize]byte
		if _, err := set.ReadAt(e.ChunkIndex, e.Offset, prefixBuf[:]); err != nil {
			return err
		}
		blockSize := binary.LittleEndian.Uint32(prefixBuf[4:8])
		payloadSize := int(blockSize) - mlv.PrefixSize - mlv.AudioFrameHeaderSize
		if payloadSize <= 0 {
			continue
		}
		buf := make([]byte, payloadSize)
		if _, err := set.ReadAt(e.ChunkIndex, e.Offset+mlv.PrefixSize+mlv.AudioFrameHeaderSize, buf); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
