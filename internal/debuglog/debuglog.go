// Package debuglog assembles the virtual ".LOG" file's contents by
// concatenating every DEBG block's text payload across a recording's xref,
// in timestamp order.
package debuglog

import (
	"strings"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
)

// Entry is one DEBG block's location, found while scanning alongside xref
// construction (DEBG blocks aren't part of the frame-bearing xref table
// itself, so callers collect them separately while scanning).
type Entry struct {
	ChunkIndex int
	Offset     int64
	Timestamp  uint64
}

// Build concatenates the text payload of every DEBG block in entries (which
// must already be in timestamp order), reading each block's body from set.
// Any block whose payload doesn't already end in a NUL byte gets one
// appended before the next block's text, so blocks never run together.
func Build(set *chunkset.Set, entries []Entry) (string, error) {
	var sb strings.Builder
	for _, e := range entries {
		text, err := readDebgText(set, e)
		if err != nil {
			continue // a single unreadable DEBG block shouldn't blank the whole log
		}
		sb.WriteString(text)
		if len(text) == 0 || text[len(text)-1] != 0 {
			sb.WriteByte(0)
		}
	}
	return sb.String(), nil
}

func readDebgText(set *chunkset.Set, e Entry) (string, error) {
	var prefixBuf [mlv.PrefixSize]byte
	if _, err := set.ReadAt(e.ChunkIndex, e.Offset, prefixBuf[:]); err != nil {
		return "", err
	}
	blockSize := uint32(prefixBuf[4]) | uint32(prefixBuf[5])<<8 | uint32(prefixBuf[6])<<16 | uint32(prefixBuf[7])<<24
	bodySize := int(blockSize) - mlv.PrefixSize
	if bodySize <= 0 {
		return "", nil
	}
	body := make([]byte, bodySize)
	if _, err := set.ReadAt(e.ChunkIndex, e.Offset+mlv.PrefixSize, body); err != nil {
		return "", err
	}
	// Trim a single trailing NUL if present; Build re-adds the separator NUL
	// uniformly so callers always see one separator per block regardless of
	// whether the block already included one.
	if n := len(body); n > 0 && body[n-1] == 0 {
		body = body[:n-1]
	}
	return string(body), nil
}
