// Package chunkset opens the ordered sequence of sibling files that make up
// one MLV recording (the base ".MLV" plus ".M00", ".M01", ... continuation
// files written when Magic Lantern splits a recording across a FAT32 4GiB
// boundary) and exposes positional reads against a flat chunk index.
package chunkset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// Set holds the open file handles for one recording's chunk files, kept open
// for the lifetime of the process the way the teacher keeps encode workers'
// temp files open for the lifetime of a job.
type Set struct {
	recording string

	mu    sync.Mutex
	files []*os.File
	sizes []int64
}

// Open discovers and opens every chunk belonging to the recording named by
// path (a ".MLV" file). Continuation files are matched by replacing the
// extension with ".M00", ".M01", ... up to ".M99" and are included only if
// present, in numeric order.
func Open(path string) (*Set, error) {
	base, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunkset: open %s: %w", path, err)
	}
	info, err := base.Stat()
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("chunkset: stat %s: %w", path, err)
	}

	s := &Set{
		recording: path,
		files:     []*os.File{base},
		sizes:     []int64{info.Size()},
	}

	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("chunkset: list dir %s: %w", dir, err)
	}

	var continuations []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, stem+".M") {
			continue
		}
		suffix := strings.TrimPrefix(name, stem+".M")
		if n, err := strconv.Atoi(suffix); err == nil && n >= 0 && n <= 99 && len(suffix) == 2 {
			continuations = append(continuations, name)
		}
	}
	sort.Strings(continuations)

	for _, name := range continuations {
		full := filepath.Join(dir, name)
		f, err := os.Open(full)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("chunkset: open continuation %s: %w", full, err)
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			s.Close()
			return nil, fmt.Errorf("chunkset: stat continuation %s: %w", full, err)
		}
		s.files = append(s.files, f)
		s.sizes = append(s.sizes, fi.Size())
	}

	return s, nil
}

// ChunkCount returns the number of chunk files in this set.
func (s *Set) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// ChunkSize returns the byte size of chunk idx.
func (s *Set) ChunkSize(idx int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.sizes) {
		return 0, fmt.Errorf("chunkset: chunk index %d out of range (%d chunks): %w", idx, len(s.sizes), mlverr.ErrNotFound)
	}
	return s.sizes[idx], nil
}

// ReadAt reads exactly len(buf) bytes from chunk idx starting at offset,
// mirroring the io.ReaderAt contract but scoped to a single chunk file.
func (s *Set) ReadAt(idx int, offset int64, buf []byte) (int, error) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.files) {
		s.mu.Unlock()
		return 0, fmt.Errorf("chunkset: chunk index %d out of range: %w", idx, mlverr.ErrNotFound)
	}
	f := s.files[idx]
	s.mu.Unlock()

	n, err := f.ReadAt(buf, offset)
	if err != nil {
		return n, mlverr.Transient(s.recording, idx, err)
	}
	return n, nil
}

// Close releases all open chunk file handles.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recording returns the base ".MLV" path this set was opened from.
func (s *Set) Recording() string { return s.recording }
