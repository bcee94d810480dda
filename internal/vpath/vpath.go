// Package vpath resolves virtual filesystem paths under a mounted MLV
// recording directory into tagged operations: a synthesized DNG frame, the
// WAV audio track, a preview GIF, the debug log, or a pass-through to the
// sidecar mirror for any other file.
package vpath

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/cmhamiche/mlvfs/internal/mlv"
)

// NameScheme selects how frame filenames and the recording's virtual
// directory are named.
type NameScheme int

const (
	// SchemeDefault names the directory after the recording file itself
	// (e.g. "M12-1234.MLV") and frames "M12-1234_000123.dng".
	SchemeDefault NameScheme = iota
	// SchemeResolveCompatible names the directory
	// "<stem>_1_<yyyy-mm-dd>_<hhmm>_C0000" (clip index fixed at 1, camera
	// index fixed at 0) to match the naming convention certain downstream
	// tools expect, using the RTCI of frame 0 for the date/time component.
	SchemeResolveCompatible
)

// Kind identifies which virtual file a resolved path refers to.
type Kind int

const (
	KindDng Kind = iota
	KindWav
	KindGif
	KindLog
	KindMirror // any other file: pass through to the sidecar mirror
)

// Resolved is the result of resolving one path under a recording's virtual
// directory.
type Resolved struct {
	Kind       Kind
	FrameIndex int    // valid when Kind == KindDng
	MirrorName string // valid when Kind == KindMirror: the real filename
}

// DirName returns the virtual directory name for a recording, given its
// base filename stem (without ".MLV") and, for resolve-compatible naming,
// the wall-clock time of frame 0.
func DirName(scheme NameScheme, stem string, rtci mlv.RTCInfo) string {
	switch scheme {
	case SchemeResolveCompatible:
		return fmt.Sprintf("%s_1_%04d-%02d-%02d_%02d%02d_C0000",
			stem, rtci.Year+1900, rtci.Mon+1, rtci.MDay, rtci.Hour, rtci.Min)
	default:
		return stem + ".MLV"
	}
}

// FrameFileName returns the filename for the frameIndex-th DNG, given the
// recording's stem.
func FrameFileName(stem string, frameIndex int) string {
	return fmt.Sprintf("%s_%06d.dng", stem, frameIndex)
}

// PreviewName is the fixed filename of the virtual preview animation,
// independent of the recording's stem.
const PreviewName = "_PREVIEW.gif"

// Resolve classifies name (the final path component within a recording's
// virtual directory) into a Kind, extracting the frame index from DNG
// filenames of the form "<stem>_NNNNNN.dng".
func Resolve(stem, name string) (Resolved, error) {
	switch {
	case name == stem+".WAV" || name == stem+".wav":
		return Resolved{Kind: KindWav}, nil
	case strings.EqualFold(name, PreviewName):
		return Resolved{Kind: KindGif}, nil
	case name == stem+".LOG" || name == stem+".log":
		return Resolved{Kind: KindLog}, nil
	}

	if strings.HasSuffix(strings.ToLower(name), ".dng") {
		idx, err := frameIndexFromName(stem, name)
		if err == nil {
			return Resolved{Kind: KindDng, FrameIndex: idx}, nil
		}
	}

	return Resolved{Kind: KindMirror, MirrorName: name}, nil
}

func frameIndexFromName(stem, name string) (int, error) {
	base := strings.TrimSuffix(name, path.Ext(name))
	prefix := stem + "_"
	if !strings.HasPrefix(base, prefix) {
		return 0, fmt.Errorf("vpath: %q does not match frame naming for stem %q", name, stem)
	}
	numPart := strings.TrimPrefix(base, prefix)
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("vpath: %q has non-numeric frame suffix: %w", name, err)
	}
	return n, nil
}

// Stem returns the recording's base name without the ".MLV" extension.
func Stem(recordingPath string) string {
	base := path.Base(recordingPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
