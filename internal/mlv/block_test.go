package mlv

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadPrefix(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("VIDF")
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], 123)
	buf.Write(sz[:])
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], 9999)
	buf.Write(ts[:])

	p, err := ReadPrefix(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != "VIDF" || p.Size != 123 || p.Timestamp != 9999 {
		t.Fatalf("got %+v", p)
	}
}

func TestReadPrefixShortRead(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	if _, err := ReadPrefix(buf); err == nil {
		t.Fatal("expected error for short prefix read")
	}
}

func TestParseRawInfoRejectsImplausibleBpp(t *testing.T) {
	body := make([]byte, rawInfoBodySize)
	binary.LittleEndian.PutUint16(body[8:10], 11) // not one of 10/12/14/16
	if _, err := ParseRawInfo(body); err == nil {
		t.Fatal("expected error for implausible bits_per_pixel")
	}
}

func TestParseRawInfoAcceptsSupportedBpp(t *testing.T) {
	for _, bpp := range []uint16{10, 12, 14, 16} {
		body := make([]byte, rawInfoBodySize)
		binary.LittleEndian.PutUint32(body[0:4], 640)
		binary.LittleEndian.PutUint32(body[4:8], 480)
		binary.LittleEndian.PutUint16(body[8:10], bpp)
		ri, err := ParseRawInfo(body)
		if err != nil {
			t.Fatalf("bpp %d: %v", bpp, err)
		}
		if ri.Width != 640 || ri.Height != 480 || ri.BitsPerPixel != bpp {
			t.Fatalf("bpp %d: got %+v", bpp, ri)
		}
	}
}

func TestParseIdentityTrimsNul(t *testing.T) {
	body := make([]byte, identityBodySize)
	copy(body[0:32], "EOS M\x00garbage")
	binary.LittleEndian.PutUint32(body[32:36], 0x80000331)
	id, err := ParseIdentity(body)
	if err != nil {
		t.Fatal(err)
	}
	if id.CameraName != "EOS M" {
		t.Fatalf("CameraName = %q, want %q", id.CameraName, "EOS M")
	}
	if id.CameraModel != 0x80000331 {
		t.Fatalf("CameraModel = %#x", id.CameraModel)
	}
}

func TestFileHeaderLZMAAndLJ92Flags(t *testing.T) {
	fh := FileHeader{VideoClass: VideoClassFlagLZMA}
	if !fh.LZMACompressed() || fh.LJ92Compressed() {
		t.Fatalf("got LZMA=%v LJ92=%v, want true/false", fh.LZMACompressed(), fh.LJ92Compressed())
	}
	fh = FileHeader{VideoClass: VideoClassFlagLJ92}
	if fh.LZMACompressed() || !fh.LJ92Compressed() {
		t.Fatalf("got LZMA=%v LJ92=%v, want false/true", fh.LZMACompressed(), fh.LJ92Compressed())
	}
}

func TestFileHeaderFPSGuardsZeroDenominator(t *testing.T) {
	fh := FileHeader{SourceFPSNom: 25, SourceFPSDenom: 0}
	if fh.FPS() != 0 {
		t.Fatalf("FPS() = %v, want 0 for zero denominator", fh.FPS())
	}
	fh = FileHeader{SourceFPSNom: 24000, SourceFPSDenom: 1001}
	if got := fh.FPS(); got < 23.9 || got > 24.0 {
		t.Fatalf("FPS() = %v, want ~23.976", got)
	}
}

func TestParseVideoFrameHeader(t *testing.T) {
	body := make([]byte, videoFrameHeaderBodySize)
	binary.LittleEndian.PutUint32(body[0:4], 7)
	binary.LittleEndian.PutUint64(body[4:12], 555)
	binary.LittleEndian.PutUint32(body[12:16], 32)
	vh, err := ParseVideoFrameHeader(body)
	if err != nil {
		t.Fatal(err)
	}
	if vh.FrameNumber != 7 || vh.Timestamp != 555 || vh.FrameSpace != 32 {
		t.Fatalf("got %+v", vh)
	}
}

func TestTrimNulString(t *testing.T) {
	if got := trimNulString([]byte("abc\x00def")); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := trimNulString([]byte("abc")); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
