// Package mlvfs materializes Magic Lantern Video (MLV) raw-video container
// files as directories of synthesized DNG frames, a WAV audio track, a
// debug log, and (via the sidecar mirror) any other file a caller stores
// alongside them. It implements the core read path a FUSE host binding
// would serve; mounting and serving the filesystem itself is out of scope
// for this package — see cmd/mlvfs for a CLI harness that exercises the
// same API a host binding would use.
//
// Basic usage:
//
//	lib, err := mlvfs.NewLibrary("/mnt/cf", mlvfs.WithDeflicker(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Close()
//
//	rec, err := lib.Open("/mnt/cf/M12-1234.MLV")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//
//	dng, err := rec.Frame(ctx, 0)
package mlvfs

import (
	"context"
	"fmt"
	"time"

	"github.com/cmhamiche/mlvfs/internal/audiotrack"
	"github.com/cmhamiche/mlvfs/internal/chunkset"
	"github.com/cmhamiche/mlvfs/internal/config"
	"github.com/cmhamiche/mlvfs/internal/debuglog"
	"github.com/cmhamiche/mlvfs/internal/dng"
	"github.com/cmhamiche/mlvfs/internal/framecache"
	"github.com/cmhamiche/mlvfs/internal/frameindex"
	"github.com/cmhamiche/mlvfs/internal/imageproc"
	"github.com/cmhamiche/mlvfs/internal/mlv"
	"github.com/cmhamiche/mlvfs/internal/mlverr"
	"github.com/cmhamiche/mlvfs/internal/rawpayload"
	"github.com/cmhamiche/mlvfs/internal/sidecar"
	"github.com/cmhamiche/mlvfs/internal/vpath"
	"github.com/cmhamiche/mlvfs/internal/xref"
)

// Library holds the process-wide shared state (header cache, stripe-
// correction cache, image buffer cache) across every recording it opens.
// One Library is normally constructed per mount.
type Library struct {
	config      *config.Config
	headerCache *frameindex.Cache
	stripeCache *imageproc.StripeCache
	frameCache  *framecache.Cache
	pipeline    *imageproc.Pipeline
}

// Option configures a Library.
type Option func(*config.Config)

// NewLibrary creates a Library with the given options applied over
// defaults.
func NewLibrary(mlvPath string, opts ...Option) (*Library, error) {
	cfg := config.NewConfig(mlvPath, "")
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	headerCache, err := frameindex.NewCache(cfg.HeaderCacheRecordings)
	if err != nil {
		return nil, err
	}
	stripeCache, err := imageproc.NewStripeCache(cfg.HeaderCacheRecordings)
	if err != nil {
		return nil, err
	}

	procOpts := imageproc.Options{
		Deflicker:             cfg.Deflicker,
		DeflickerTargetMedian: cfg.DeflickerTargetMedian,
		FixPatternNoise:       cfg.FixPatternNoise,
		DualISO:               cfg.DualISO,
		HDRInterpolationHQ:    cfg.HDRInterpolationHQ,
		HDRNoAliasMap:         cfg.HDRNoAliasMap,
		HDRNoFullRes:          cfg.HDRNoFullRes,
		FixBadPixels:          cfg.FixBadPixels,
		ChromaSmooth:          cfg.ChromaSmooth,
		FixStripes:            cfg.FixStripes,
	}

	return &Library{
		config:      cfg,
		headerCache: headerCache,
		stripeCache: stripeCache,
		frameCache:  framecache.NewCache(cfg.CacheBudgetBytes),
		pipeline:    imageproc.NewPipeline(procOpts, stripeCache),
	}, nil
}

// WithNameScheme selects the default or resolve-compatible virtual naming
// scheme.
func WithNameScheme(scheme config.NameScheme) Option {
	return func(c *config.Config) { c.NameScheme = scheme }
}

// WithDeflicker enables or disables the deflicker correction pass.
func WithDeflicker(enabled bool) Option {
	return func(c *config.Config) { c.Deflicker = enabled }
}

// WithFixPatternNoise enables or disables the pattern-noise correction pass.
func WithFixPatternNoise(enabled bool) Option {
	return func(c *config.Config) { c.FixPatternNoise = enabled }
}

// WithDualISO sets the dual-ISO recovery mode: 0 off, 1 fast, 2 HQ.
func WithDualISO(mode int) Option {
	return func(c *config.Config) { c.DualISO = mode }
}

// WithFixBadPixels enables or disables the focus/bad-pixel repair pass.
func WithFixBadPixels(enabled bool) Option {
	return func(c *config.Config) { c.FixBadPixels = enabled }
}

// WithChromaSmooth sets the chroma-smoothing kernel radius (0, 2, 3, or 5).
func WithChromaSmooth(radius int) Option {
	return func(c *config.Config) { c.ChromaSmooth = radius }
}

// WithFixStripes enables or disables the vertical-stripe correction pass.
func WithFixStripes(enabled bool) Option {
	return func(c *config.Config) { c.FixStripes = enabled }
}

// WithCacheBudgetBytes bounds the image buffer cache's total resident size.
func WithCacheBudgetBytes(bytes int64) Option {
	return func(c *config.Config) { c.CacheBudgetBytes = bytes }
}

// WithDeflickerTargetMedian overrides the brightness value deflicker
// normalizes the frame median toward.
func WithDeflickerTargetMedian(target int) Option {
	return func(c *config.Config) { c.DeflickerTargetMedian = target }
}

// WithHDRInterpolationHQ selects the 3-tap (1-2-1) horizontal seam blend for
// dual-ISO HQ recovery when true, the 6-sample mean23 smoothing when false.
// Neither is edge-directed.
func WithHDRInterpolationHQ(enabled bool) Option {
	return func(c *config.Config) { c.HDRInterpolationHQ = enabled }
}

// WithHDRNoAliasMap disables dual-ISO HQ's seam-smoothing pass entirely,
// leaving the raw alternating-row blend untouched.
func WithHDRNoAliasMap(disabled bool) Option {
	return func(c *config.Config) { c.HDRNoAliasMap = disabled }
}

// WithHDRNoFullRes disables dual-ISO's full-resolution recovery, leaving
// the alternate-gain rows at their raw (unblended) values.
func WithHDRNoFullRes(disabled bool) Option {
	return func(c *config.Config) { c.HDRNoFullRes = disabled }
}

// WithFPS overrides the recording's own frame rate for the synthesized
// output when non-zero.
func WithFPS(fps float64) Option {
	return func(c *config.Config) { c.FPS = fps }
}

// WithHeaderCacheRecordings bounds how many recordings' forward-scan resume
// points and stripe-correction tables are memoized at once.
func WithHeaderCacheRecordings(n int) Option {
	return func(c *config.Config) { c.HeaderCacheRecordings = n }
}

// WithVerbose enables verbose diagnostic output.
func WithVerbose(enabled bool) Option {
	return func(c *config.Config) { c.Verbose = enabled }
}

// WithLogDir sets the directory the CLI's run log is written to.
func WithLogDir(dir string) Option {
	return func(c *config.Config) { c.LogDir = dir }
}

// Close releases Library-wide resources. It does not close any still-open
// Recording; callers must close those individually.
func (l *Library) Close() error { return nil }

// Recording is one open MLV container: its chunk files, its cross-reference
// table, and the derived naming/sidecar state needed to serve the virtual
// directory for it.
type Recording struct {
	lib     *Library
	path    string
	stem    string
	set     *chunkset.Set
	xref    *xref.Table
	mirror  *sidecar.Mirror
	dirName string

	debugOnce    bool
	debugText    string
	debugEntries []debuglog.Entry

	indexFromCache bool
}

// Open opens recordingPath (a ".MLV" file), discovering its continuation
// chunks and building (or loading) its cross-reference table.
func (l *Library) Open(recordingPath string) (*Recording, error) {
	set, err := chunkset.Open(recordingPath)
	if err != nil {
		return nil, err
	}

	t, fromCache, err := buildOrLoadIndex(set, recordingPath)
	if err != nil {
		set.Close()
		return nil, err
	}

	stem := vpath.Stem(recordingPath)
	dirName := vpath.DirName(mapScheme(l.config.NameScheme), stem, t.RTCInfo)

	debugEntries := make([]debuglog.Entry, len(t.DebugBlocks))
	for i, d := range t.DebugBlocks {
		debugEntries[i] = debuglog.Entry{ChunkIndex: d.ChunkIndex, Offset: d.Offset, Timestamp: d.Timestamp}
	}

	return &Recording{
		lib:            l,
		path:           recordingPath,
		stem:           stem,
		set:            set,
		xref:           t,
		mirror:         sidecar.New(recordingPath),
		dirName:        dirName,
		debugEntries:   debugEntries,
		indexFromCache: fromCache,
	}, nil
}

func mapScheme(s config.NameScheme) vpath.NameScheme {
	if s == config.NameSchemeResolveCompatible {
		return vpath.SchemeResolveCompatible
	}
	return vpath.SchemeDefault
}

// buildOrLoadIndex loads a persisted .IDX sidecar if present and still
// valid for set's current chunk files, rehydrating a Table from it without
// re-parsing every VIDF/AUDF block. Any failure (missing file, stale
// fingerprint, corrupt format) falls back to a fresh Build, whose result
// is then persisted for next time. The second return reports whether the
// table came from the sidecar, for IndexSummary.FromCache.
func buildOrLoadIndex(set *chunkset.Set, recordingPath string) (*xref.Table, bool, error) {
	if pi, err := xref.LoadIndex(xref.IndexPath(recordingPath)); err == nil {
		if t, err := xref.Rehydrate(set, pi); err == nil {
			return t, true, nil
		}
	}

	t, err := xref.Build(set)
	if err != nil {
		return nil, false, err
	}
	_ = xref.SaveIndex(t, xref.IndexPath(recordingPath))
	return t, false, nil
}

// IndexFromCache reports whether this recording's cross-reference table was
// loaded from its .IDX sidecar rather than freshly scanned.
func (r *Recording) IndexFromCache() bool { return r.indexFromCache }

// Close releases this recording's chunk file handles and forgets its
// memoized header-resolution state.
func (r *Recording) Close() error {
	r.lib.headerCache.Forget(r.path)
	return r.set.Close()
}

// DirName returns the virtual directory name this recording is exposed
// under.
func (r *Recording) DirName() string { return r.dirName }

// Stem returns the recording's base filename stem (without ".MLV"), used to
// name its WAV/LOG/GIF virtual files.
func (r *Recording) Stem() string { return r.stem }

// FrameCount returns the number of DNG frames this recording exposes.
func (r *Recording) FrameCount() int { return r.xref.VideoFrameCount() }

// IndexEntryCount returns the total number of cross-reference entries
// (video, audio, and sticky-metadata blocks) recorded for this recording.
func (r *Recording) IndexEntryCount() int { return len(r.xref.Entries) }

// FrameFileName returns the DNG filename for frameIndex.
func (r *Recording) FrameFileName(frameIndex int) string {
	return vpath.FrameFileName(r.stem, frameIndex)
}

// StatFrame returns the exact byte size of the frameIndex-th DNG without
// materializing it, by combining the RAWI geometry with the DNG header's
// deterministic size contract.
func (r *Recording) StatFrame(frameIndex int) (int64, error) {
	rec, err := r.lib.headerCache.FrameHeaders(r.path, r.xref, frameIndex)
	if err != nil {
		return 0, err
	}
	return dng.Size(rec.RawInfo, len(cameraName(rec.Identity)), len(r.serial())), nil
}

// Frame materializes the frameIndex-th frame as a complete DNG file's bytes,
// serving from the image buffer cache when possible.
func (r *Recording) Frame(ctx context.Context, frameIndex int) ([]byte, error) {
	key := fmt.Sprintf("%s#%d", r.path, frameIndex)

	data, release, err := r.lib.frameCache.Get(key, func() ([]byte, error) {
		return r.buildFrame(frameIndex)
	})
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (r *Recording) buildFrame(frameIndex int) ([]byte, error) {
	hdrs, err := r.lib.headerCache.FrameHeaders(r.path, r.xref, frameIndex)
	if err != nil {
		return nil, err
	}

	samples, err := decodeRawFrame(r, hdrs)
	if err != nil {
		return nil, err
	}

	frame := &imageproc.Frame{
		Samples: samples,
		Width:   int(hdrs.RawInfo.Width),
		Height:  int(hdrs.RawInfo.Height),
		RawInfo: hdrs.RawInfo,
	}
	if err := r.lib.pipeline.Apply(r.path, frame); err != nil {
		return nil, err
	}

	camName := cameraName(hdrs.Identity)
	fps := r.lib.config.FPS
	if fps <= 0 {
		fps = r.xref.FileHeader.FPS()
	}
	header, err := dng.BuildHeader(dng.FrameParams{
		RawInfo:          frame.RawInfo,
		Identity:         hdrs.Identity,
		Exposure:         hdrs.Exposure,
		Lens:             hdrs.Lens,
		WhiteBal:         hdrs.WhiteBal,
		CameraName:       camName,
		Serial:           r.serial(),
		ColorMatrix1:     dng.ColorMatrixFor(hdrs.Identity.CameraModel),
		ColorMatrix2:     dng.ColorMatrixFor(hdrs.Identity.CameraModel),
		ForwardMatrix1:   dng.ForwardMatrixFor(hdrs.Identity.CameraModel),
		ForwardMatrix2:   dng.ForwardMatrixFor(hdrs.Identity.CameraModel),
		BaselineExposure: frame.BaselineExposure,
		FPS:              fps,
		DateTime:         r.frameWallClock(hdrs.Entry.Timestamp),
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, header.Len()+len(frame.Samples)*2)
	out = append(out, header.Bytes()...)
	for _, s := range frame.Samples {
		out = append(out, byte(s), byte(s>>8))
	}
	return out, nil
}

func cameraName(id mlv.Identity) string {
	if id.CameraName == "" {
		return "Unknown"
	}
	return id.CameraName
}

// frameWallClock converts an xref entry timestamp to wall-clock time using
// this recording's RTCI (the clock reading at recording start) plus the
// microsecond offset between the two timestamps. It returns the zero
// time.Time when the recording carries no RTCI block, which dng.BuildHeader
// treats as "unknown".
func (r *Recording) frameWallClock(entryTimestamp uint64) time.Time {
	if !r.xref.HasRTCInfo {
		return time.Time{}
	}
	rtci := r.xref.RTCInfo
	base := time.Date(int(rtci.Year)+1900, time.Month(rtci.Mon+1), int(rtci.MDay),
		int(rtci.Hour), int(rtci.Min), int(rtci.Sec), 0, time.UTC)
	return base.Add(time.Duration(int64(entryTimestamp)-int64(rtci.Timestamp)) * time.Microsecond)
}

func (r *Recording) serial() string {
	return fmt.Sprintf("%08X", r.xref.FileHeader.FileGUID)
}

func decodeRawFrame(r *Recording, hdrs frameindex.FrameRecord) ([]uint16, error) {
	return rawpayload.Decode(r.set, hdrs.Entry.ChunkIndex, hdrs.Entry.Offset, hdrs.Entry.FrameSpace,
		r.xref.FileHeader, hdrs.RawInfo, r.path, hdrs.FrameIndex)
}

// WAVSize returns the total byte size of the synthesized WAV file.
func (r *Recording) WAVSize() (int64, error) {
	return audiotrack.Size(r.xref, r.set)
}

// WriteWAV writes the complete WAV file (header + audio payload) to w.
func (r *Recording) WriteWAV(w interface{ Write([]byte) (int, error) }) error {
	dataSize, err := func() (int64, error) {
		size, err := r.WAVSize()
		if err != nil {
			return 0, err
		}
		return size - 44, nil
	}()
	if err != nil {
		return err
	}
	if err := audiotrack.WriteHeader(w, r.xref.WaveInfo, dataSize); err != nil {
		return err
	}
	return audiotrack.StreamPayload(w, r.xref, r.set)
}

// DebugLog returns the concatenated DEBG-block text for this recording.
func (r *Recording) DebugLog() (string, error) {
	if r.debugOnce {
		return r.debugText, nil
	}
	text, err := debuglog.Build(r.set, r.debugEntries)
	if err != nil {
		return "", err
	}
	r.debugOnce = true
	r.debugText = text
	return text, nil
}

// MirrorEntries returns the names of files stored in this recording's
// sidecar ".MLD" shadow directory.
func (r *Recording) MirrorEntries() ([]string, error) {
	return r.mirror.ListEntries()
}

// ResolvePath classifies a path component within this recording's virtual
// directory (a DNG frame name, WAV/GIF/LOG, or a mirrored sidecar file).
func (r *Recording) ResolvePath(name string) (vpath.Resolved, error) {
	resolved, err := vpath.Resolve(r.stem, name)
	if err != nil {
		return vpath.Resolved{}, err
	}
	if resolved.Kind == vpath.KindDng && resolved.FrameIndex >= r.FrameCount() {
		return vpath.Resolved{}, fmt.Errorf("mlvfs: %s: frame %d: %w", r.path, resolved.FrameIndex, mlverr.ErrNotFound)
	}
	return resolved, nil
}

// ChunkCount returns the number of chunk files (".MLV" plus any ".M00",
// ".M01", ... continuations) this recording is split across.
func (r *Recording) ChunkCount() int { return r.set.ChunkCount() }

// Geometry returns frame 0's pixel dimensions and bit depth, for CLI
// reporting; it does not materialize the frame.
func (r *Recording) Geometry() (width, height, bitDepth int, err error) {
	hdrs, err := r.lib.headerCache.FrameHeaders(r.path, r.xref, 0)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(hdrs.RawInfo.Width), int(hdrs.RawInfo.Height), int(hdrs.RawInfo.BitsPerPixel), nil
}

// AudioDescription returns a short human-readable summary of the
// recording's audio track ("none" if it carries no WAVI block).
func (r *Recording) AudioDescription() string {
	if !r.xref.HasWaveInfo {
		return "none"
	}
	w := r.xref.WaveInfo
	return fmt.Sprintf("%d ch, %d Hz, %d-bit", w.Channels, w.SampleRate, w.BitsPerSample)
}

// Warnings returns any non-fatal anomalies found while scanning this
// recording's cross-reference table.
func (r *Recording) Warnings() []string { return r.xref.Warnings }

// Truncated reports whether this recording's xref scan stopped early due to
// a truncated chunk file.
func (r *Recording) Truncated() bool { return r.xref.Truncated }
