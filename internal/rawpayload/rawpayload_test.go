package rawpayload

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlvtest"
)

// TestUnpackBitsRoundTrip is the §8 "round-trip: unpack(pack(samples)) =
// samples for uncompressed frames at every supported bits_per_pixel" property.
func TestUnpackBitsRoundTrip(t *testing.T) {
	for _, bpp := range []int{10, 12, 14, 16} {
		bpp := bpp
		t.Run(fmt.Sprintf("bpp%d", bpp), func(t *testing.T) {
			max := uint16(1<<uint(bpp) - 1)
			samples := make([]uint16, 64)
			for i := range samples {
				samples[i] = uint16(i*37) & max // varied, deterministic values in range
			}
			packed := mlvtest.PackBits(samples, bpp)
			rawi := mlv.RawInfo{Width: 8, Height: 8, BitsPerPixel: uint16(bpp)}
			got, err := unpackBits(packed, rawi, "rec", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(samples) {
				t.Fatalf("got %d samples, want %d", len(got), len(samples))
			}
			for i := range samples {
				if got[i] != samples[i] {
					t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
				}
			}
		})
	}
}

func TestUnpackBitsRejectsShortPayload(t *testing.T) {
	rawi := mlv.RawInfo{Width: 8, Height: 8, BitsPerPixel: 14}
	_, err := unpackBits(make([]byte, 1), rawi, "rec", 0)
	if err == nil {
		t.Fatal("expected error for too-short payload")
	}
}

func buildVidfChunk(t *testing.T, payload []byte) *chunkset.Set {
	t.Helper()
	var buf bytes.Buffer
	mlvtest.Block(&buf, "VIDF", 0, mlvtest.VideoFrameBody(0, 0, 4, payload))

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
	return set
}

func TestDecodeUncompressed(t *testing.T) {
	rawi := mlv.RawInfo{Width: 4, Height: 2, BitsPerPixel: 12}
	samples := make([]uint16, 8)
	for i := range samples {
		samples[i] = uint16(i * 100)
	}
	payload := mlvtest.PackBits(samples, 12)
	set := buildVidfChunk(t, payload)

	got, err := Decode(set, 0, 0, 4, mlv.FileHeader{}, rawi, "rec", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	rawi := mlv.RawInfo{Width: 4, Height: 2, BitsPerPixel: 12}
	set := buildVidfChunk(t, nil)
	if _, err := Decode(set, 0, 0, 4, mlv.FileHeader{}, rawi, "rec", 0); err == nil {
		t.Fatal("expected error for VIDF block with no payload bytes")
	}
}
