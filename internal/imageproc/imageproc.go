// Package imageproc implements the fixed-order raw image correction passes
// applied after a frame's samples are decoded and before DNG synthesis:
// deflicker, pattern-noise fix, dual-ISO recovery, focus/bad-pixel repair,
// chroma smoothing, and vertical-stripe correction.
package imageproc

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cmhamiche/mlvfs/internal/dng"
	"github.com/cmhamiche/mlvfs/internal/mlv"
)

// Options selects which passes run, mirroring the recording-wide config
// options (chroma_smooth, fix_bad_pixels, fix_pattern_noise, fix_stripes,
// deflicker, dual_iso, hdr_interpolation_method, hdr_no_alias_map,
// hdr_no_fullres).
type Options struct {
	Deflicker            bool
	DeflickerTargetMedian int
	FixPatternNoise      bool
	DualISO              int // 0 = off, 1 = fast, 2 = HQ (fast blend plus seam smoothing)
	HDRInterpolationHQ   bool
	HDRNoAliasMap        bool
	HDRNoFullRes         bool
	FixBadPixels         bool
	ChromaSmooth         int // 0 = off, else smoothing radius in {2,3,5}
	FixStripes           bool
}

// Frame is the mutable in-flight raw image being corrected.
type Frame struct {
	Samples []uint16
	Width   int
	Height  int
	RawInfo mlv.RawInfo

	// BaselineExposure is set by the deflicker pass (zero value = unset, no
	// correction) and is what internal/dng writes into the DNG header.
	BaselineExposure dng.BaselineExposure
}

// StripeCache memoizes the per-recording vertical-stripe-correction table:
// building it requires scanning many frames' column statistics, so it is
// computed once per recording and reused, keyed by recording path.
type StripeCache struct {
	cache *lru.Cache[string, []float64]
}

// NewStripeCache builds a stripe-correction table cache holding tables for
// up to maxRecordings recordings at once.
func NewStripeCache(maxRecordings int) (*StripeCache, error) {
	c, err := lru.New[string, []float64](maxRecordings)
	if err != nil {
		return nil, err
	}
	return &StripeCache{cache: c}, nil
}

// Pipeline runs the fixed-order correction passes over a decoded frame.
type Pipeline struct {
	opts   Options
	stripe *StripeCache
}

// NewPipeline builds a correction pipeline with the given options, sharing
// stripeCache across frames of the same recording.
func NewPipeline(opts Options, stripeCache *StripeCache) *Pipeline {
	return &Pipeline{opts: opts, stripe: stripeCache}
}

// Apply runs every enabled pass over f, in this fixed order: deflicker,
// pattern-noise fix, dual-ISO recovery, focus/bad-pixel repair (skipped when
// dual-ISO ran), chroma smoothing (skipped in dual-ISO HQ mode), vertical-
// stripe correction.
func (p *Pipeline) Apply(recordingPath string, f *Frame) error {
	if p.opts.Deflicker {
		deflicker(f, p.opts.DeflickerTargetMedian)
	}

	if p.opts.FixPatternNoise {
		if err := fixPatternNoise(f); err != nil {
			return err
		}
	}

	dualISOApplied := false
	if p.opts.DualISO != 0 {
		if err := recoverDualISO(f, p.opts); err != nil {
			return err
		}
		dualISOApplied = true
	}

	if p.opts.FixBadPixels && !dualISOApplied {
		fixBadPixels(f)
	}

	if p.opts.ChromaSmooth != 0 && !(dualISOApplied && p.opts.DualISO == 2) {
		chromaSmooth(f, p.opts.ChromaSmooth)
	}

	if p.opts.FixStripes {
		if err := p.fixStripes(recordingPath, f); err != nil {
			return err
		}
	}

	return nil
}

// deflicker computes a histogram median of pixel values in [black+1, white]
// and derives a rational exposure-bias correction that normalizes it toward
// targetMedian, following the stored-as-rational convention (numerator =
// log2(correction)*10000 truncated toward zero, denominator = 10000) rather
// than a raw float tag. The
// pixel buffer itself is never modified, only the header tag.
func deflicker(f *Frame, targetMedian int) {
	if len(f.Samples) == 0 {
		return
	}
	if targetMedian == 0 {
		targetMedian = 8192
	}
	black := int(f.RawInfo.BlackLevel)
	white := int(f.RawInfo.WhiteLevel)

	median := medianInRange(f.Samples, black+1, white)
	if median <= black {
		return
	}
	correction := float64(targetMedian-black) / float64(median-black)
	stops := math.Log2(correction)
	f.BaselineExposure = dng.BaselineExposure{
		Numerator:   int32(stops * 10000),
		Denominator: 10000,
	}
}

// fixPatternNoise estimates and subtracts per-column fixed-pattern noise,
// splitting the column range across goroutines with errgroup since each
// column's statistics are independent.
func fixPatternNoise(f *Frame) error {
	if f.Width == 0 || f.Height == 0 {
		return nil
	}
	colBias := make([]int32, f.Width)

	g := new(errgroup.Group)
	var mu sync.Mutex
	workers := 4
	chunk := (f.Width + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= f.Width {
			break
		}
		if end > f.Width {
			end = f.Width
		}
		g.Go(func() error {
			local := make([]int32, end-start)
			for x := start; x < end; x++ {
				sum := 0
				for y := 0; y < f.Height; y++ {
					sum += int(f.Samples[y*f.Width+x])
				}
				avg := int32(sum / f.Height)
				local[x-start] = avg
			}
			mu.Lock()
			copy(colBias[start:end], local)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	overall := medianOfInt32(colBias)
	for x := 0; x < f.Width; x++ {
		delta := colBias[x] - overall
		if delta == 0 {
			continue
		}
		for y := 0; y < f.Height; y++ {
			idx := y*f.Width + x
			v := int32(f.Samples[idx]) - delta
			if v < 0 {
				v = 0
			}
			f.Samples[idx] = uint16(v)
		}
	}
	return nil
}

// medianInRange returns the median of the samples falling within [lo, hi],
// matching the histogram-based median the deflicker pass needs (clipped
// black/white samples would otherwise skew the result).
func medianInRange(samples []uint16, lo, hi int) int {
	filtered := make([]uint16, 0, len(samples))
	for _, s := range samples {
		v := int(s)
		if v >= lo && v <= hi {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return 0
	}
	sortUint16(filtered)
	return int(filtered[len(filtered)/2])
}

func medianOf(samples []uint16) uint16 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	cp := make([]uint16, n)
	copy(cp, samples)
	sortUint16(cp)
	return cp[n/2]
}

func medianOfInt32(v []int32) int32 {
	n := len(v)
	if n == 0 {
		return 0
	}
	cp := make([]int32, n)
	copy(cp, v)
	sortInt32(cp)
	return cp[n/2]
}
