// Package sidecar implements the ".MLD" shadow directory mirror: any file a
// caller writes or creates within a recording's virtual directory, that
// isn't one of the synthesized DNG/WAV/GIF/LOG names, is stored on real
// disk in a lazily-created "<stem>.MLD" directory next to the recording,
// and merged back into directory listings.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// Mirror manages the shadow directory for one recording.
type Mirror struct {
	recordingDir string
	stem         string

	mu      sync.Mutex
	created bool
}

// New returns a Mirror for the recording at recordingPath (its shadow
// directory is not created until first needed).
func New(recordingPath string) *Mirror {
	dir := filepath.Dir(recordingPath)
	stem := strings.TrimSuffix(filepath.Base(recordingPath), filepath.Ext(recordingPath))
	return &Mirror{recordingDir: dir, stem: stem}
}

// ShadowPath returns the ".MLD" directory path for this recording, whether
// or not it currently exists.
func (m *Mirror) ShadowPath() string {
	return filepath.Join(m.recordingDir, m.stem+".MLD")
}

// OwningContainer derives the recording stem a ".MLD" directory name
// belongs to, by stripping the suffix, mirroring the original
// implementation's path-resolution behavior for shadow directories.
func OwningContainer(mldDirName string) string {
	return strings.TrimSuffix(mldDirName, ".MLD")
}

// EnsureCreated lazily creates the shadow directory, checking free space on
// its filesystem first so a cramped volume fails fast with a clear error
// instead of a confusing partial write later.
func (m *Mirror) EnsureCreated() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		return nil
	}

	shadow := m.ShadowPath()
	if _, err := os.Stat(shadow); err == nil {
		m.created = true
		return nil
	}

	if avail, err := AvailableSpace(m.recordingDir); err == nil && avail < minFreeBytes {
		return fmt.Errorf("sidecar: insufficient free space to create %s (%d bytes available): %w", shadow, avail, mlverr.ErrOutOfMemory)
	}

	if err := os.MkdirAll(shadow, 0o755); err != nil {
		return fmt.Errorf("sidecar: create shadow dir %s: %w", shadow, err)
	}
	m.created = true
	return nil
}

// minFreeBytes is the free-space floor checked before lazily creating a
// shadow directory; below this, creation is refused rather than risking a
// directory that can't hold its first file.
const minFreeBytes = 1 << 20 // 1 MiB

// AvailableSpace returns the free byte count on the filesystem containing
// dir, using unix.Statfs the same way the teacher's temp-file helper checks
// disk space before staging encode output.
func AvailableSpace(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("sidecar: statfs %s: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// RealPath resolves the real on-disk path of a mirrored (non-virtual) file
// named name within this recording's shadow directory.
func (m *Mirror) RealPath(name string) string {
	return filepath.Join(m.ShadowPath(), name)
}

// ListEntries returns the names currently stored in the shadow directory, or
// nil if it doesn't exist yet. Names ending in ".MLD" or ".IDX" are excluded
// so the virtual filesystem never recurses into its own bookkeeping.
func (m *Mirror) ListEntries() ([]string, error) {
	shadow := m.ShadowPath()
	entries, err := os.ReadDir(shadow)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sidecar: list %s: %w", shadow, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if strings.HasSuffix(n, ".MLD") || strings.HasSuffix(n, ".IDX") {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}
