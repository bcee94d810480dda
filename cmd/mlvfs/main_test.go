package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmhamiche/mlvfs"
	"github.com/cmhamiche/mlvfs/internal/mlvtest"
)

// buildRecording writes a small well-formed MLV file under dir and returns its path.
func buildRecording(t *testing.T, dir, stem string, frameCount int) string {
	t.Helper()
	const w, h, bpp = 4, 4, 12

	var buf bytes.Buffer
	mlvtest.Block(&buf, "MLVI", 0, mlvtest.FileHeaderBody(0, 0, uint32(frameCount)))
	mlvtest.Block(&buf, "RAWI", 1, mlvtest.RawInfoBody(w, h, bpp, 0, 4095, 0x02010100))
	mlvtest.Block(&buf, "IDNT", 2, mlvtest.IdentityBody("5D3", 0x80000285))
	mlvtest.Block(&buf, "WAVI", 3, mlvtest.WaveInfoBody(1, 2, 48000, 192000, 4, 16))

	ts := uint64(10)
	for i := 0; i < frameCount; i++ {
		mlvtest.Block(&buf, "EXPO", ts, mlvtest.ExposureBody(1000, uint32(100+i)))
		ts++
		samples := make([]uint16, w*h)
		for s := range samples {
			samples[s] = uint16((s + i*3) % 4096)
		}
		payload := mlvtest.PackBits(samples, bpp)
		mlvtest.Block(&buf, "VIDF", ts, mlvtest.VideoFrameBody(uint32(i), ts, 0, payload))
		ts++
	}
	mlvtest.Block(&buf, "AUDF", ts, mlvtest.AudioFrameBody(0, ts, bytes.Repeat([]byte{3}, 16)))

	path := filepath.Join(dir, stem+".MLV")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteFileAtomicCreatesFileAndNoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, "frame.dng")
	if err := writeFileAtomic(dir, finalPath, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q, want %q", data, "hello")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1 (no leftover temp file)", len(entries))
	}
}

func TestWriteFileAtomicOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, "frame.dng")
	if err := writeFileAtomic(dir, finalPath, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := writeFileAtomic(dir, finalPath, []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("content = %q, want %q", data, "second")
	}
}

func TestMaterializeWAVWritesFileAndReturnsSize(t *testing.T) {
	dir := t.TempDir()
	path := buildRecording(t, dir, "A", 1)

	lib, err := mlvfs.NewLibrary(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	rec, err := lib.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	recDir := t.TempDir()
	n, err := materializeWAV(rec, recDir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 44+16 {
		t.Fatalf("materializeWAV returned %d, want %d", n, 44+16)
	}
	wavPath := filepath.Join(recDir, rec.Stem()+".WAV")
	info, err := os.Stat(wavPath)
	if err != nil {
		t.Fatalf("expected WAV file at %s: %v", wavPath, err)
	}
	if info.Size() != n {
		t.Fatalf("WAV file size = %d, want %d", info.Size(), n)
	}
}

func TestRunMaterializeRequiresInputAndOutput(t *testing.T) {
	if err := runMaterialize(nil); err == nil {
		t.Fatal("expected error when -i/-o are both missing")
	}
	if err := runMaterialize([]string{"-i", "/tmp"}); err == nil {
		t.Fatal("expected error when -o is missing")
	}
}

func TestRunValidateRequiresInput(t *testing.T) {
	if err := runValidate(nil); err == nil {
		t.Fatal("expected error when -i is missing")
	}
}

func TestValidateOneReportsPassingSteps(t *testing.T) {
	dir := t.TempDir()
	path := buildRecording(t, dir, "A", 2)

	lib, err := mlvfs.NewLibrary(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()

	steps := validateOne(lib, path)
	if len(steps) == 0 {
		t.Fatal("expected at least one validation step")
	}
	for _, s := range steps {
		if !s.Passed {
			t.Fatalf("step %q unexpectedly failed: %s", s.Name, s.Details)
		}
	}
}

func TestValidateOneReportsOpenFailureForMissingFile(t *testing.T) {
	dir := t.TempDir()
	lib, err := mlvfs.NewLibrary(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()

	steps := validateOne(lib, filepath.Join(dir, "missing.MLV"))
	if len(steps) != 1 || steps[0].Passed {
		t.Fatalf("expected a single failing step for a missing file, got %+v", steps)
	}
}

func TestExecuteValidateSucceedsOnWellFormedDirectory(t *testing.T) {
	dir := t.TempDir()
	buildRecording(t, dir, "A", 1)
	buildRecording(t, dir, "B", 1)

	if err := executeValidate(validateArgs{inputPath: dir}); err != nil {
		t.Fatalf("executeValidate failed on well-formed recordings: %v", err)
	}
}
