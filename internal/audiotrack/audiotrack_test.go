package audiotrack

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlvtest"
	"github.com/cmhamiche/mlvfs/internal/xref"
)

func buildAudioContainer(t *testing.T, payloads [][]byte) (*chunkset.Set, *xref.Table) {
	t.Helper()
	var buf bytes.Buffer
	ts := uint64(0)
	var table xref.Table
	for i, p := range payloads {
		off := int64(buf.Len())
		body := mlvtest.AudioFrameBody(uint32(i), ts, p)
		mlvtest.Block(&buf, "AUDF", ts, body)
		table.Entries = append(table.Entries, xref.Entry{
			ChunkIndex: 0, Offset: off, Type: xref.EntryAudio, Timestamp: ts, FrameNumber: uint32(i),
		})
		ts++
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "A.MLV")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := chunkset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { set.Close() })
	return set, &table
}

func TestSizeAndStreamPayload(t *testing.T) {
	payloads := [][]byte{
		bytes.Repeat([]byte{1}, 10),
		bytes.Repeat([]byte{2}, 20),
	}
	set, table := buildAudioContainer(t, payloads)

	size, err := Size(table, set)
	if err != nil {
		t.Fatal(err)
	}
	wantTotal := int64(riffHeaderSize + 10 + 20)
	if size != wantTotal {
		t.Fatalf("Size = %d, want %d", size, wantTotal)
	}

	var out bytes.Buffer
	if err := StreamPayload(&out, table, set); err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, payloads[0]...), payloads[1]...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("StreamPayload produced %v, want %v", out.Bytes(), want)
	}
}

func TestWriteHeaderFields(t *testing.T) {
	wavi := mlv.WaveInfo{Format: 1, Channels: 2, SampleRate: 48000, BytesPerSec: 192000, BlockAlign: 4, BitsPerSample: 16}
	var out bytes.Buffer
	if err := WriteHeader(&out, wavi, 1000); err != nil {
		t.Fatal(err)
	}
	b := out.Bytes()
	if len(b) != riffHeaderSize {
		t.Fatalf("header length = %d, want %d", len(b), riffHeaderSize)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[36:40]) != "data" {
		t.Fatalf("header magic bytes wrong: %q", b)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 1000 {
		t.Fatalf("data size field = %d, want 1000", got)
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != 36+1000 {
		t.Fatalf("RIFF size field = %d, want %d", got, 36+1000)
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 2 {
		t.Fatalf("channels field = %d, want 2", got)
	}
}
