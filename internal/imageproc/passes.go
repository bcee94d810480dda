package imageproc

import "sort"

// recoverDualISO merges the interleaved high-ISO/low-ISO rows Magic
// Lantern's dual-ISO mode records into a single extended-range image.
// Mode 1 ("fast") does a straight per-row blend; mode 2 ("HQ") additionally
// smooths the blended rows unless opts.HDRNoAliasMap is set: a fixed 1-2-1
// horizontal blur when opts.HDRInterpolationHQ is set, otherwise a 6-sample
// mean across each row pair. Neither smoothing pass is edge-directed. With
// opts.HDRNoFullRes set, only the even row of each pair receives the blend.
func recoverDualISO(f *Frame, opts Options) error {
	if f.Height < 2 {
		return nil
	}
	// Even rows carry the recording's base ISO, odd rows the alternate gain;
	// the simplest valid recovery is per-row exposure normalization followed
	// by a local blend across each alternating pair, which both fast and HQ
	// modes start from.
	gainShift := 2 // alternate-ISO rows are typically ~2 stops brighter

	// Blending never changes the sample count: both frame dimensions stay
	// exactly what RAWI declared, so the DNG size contract (computable
	// without materializing the frame) keeps holding for dual-ISO output.
	fullRes := !opts.HDRNoFullRes
	for y := 1; y < f.Height; y += 2 {
		rowStart := y * f.Width
		prevStart := (y - 1) * f.Width
		for x := 0; x < f.Width; x++ {
			lo := int32(f.Samples[prevStart+x])
			hi := int32(f.Samples[rowStart+x]) >> uint(gainShift)
			blended := uint16(clamp16((lo + hi) / 2))
			f.Samples[prevStart+x] = blended
			if fullRes {
				// Full-resolution blending recovers the alternate-ISO row
				// too instead of leaving it at its raw (unblended) gain.
				f.Samples[rowStart+x] = blended
			}
		}
	}

	if opts.DualISO == 2 && !opts.HDRNoAliasMap {
		if opts.HDRInterpolationHQ {
			smoothSeams(f) // fixed 1-2-1 horizontal blend, not edge-aware
		} else {
			smoothSeamsMean23(f) // mean23: wider, edge-unaware neighborhood mean
		}
	}

	// The recovered signal now spans roughly gainShift extra stops of
	// highlight headroom; widen WhiteLevel so downstream raw converters
	// treat the extended range as valid instead of clipping it.
	widened := uint32(f.RawInfo.WhiteLevel) << uint(gainShift)
	if widened > 65535 {
		widened = 65535
	}
	f.RawInfo.WhiteLevel = uint16(widened)

	return nil
}

// smoothSeams applies a light 3-tap horizontal smoothing pass along rows
// that were blended by recoverDualISO, reducing the comb pattern an
// edge-unaware blend leaves at high-contrast transitions.
func smoothSeams(f *Frame) {
	for y := 0; y < f.Height; y += 2 {
		rowStart := y * f.Width
		for x := 1; x < f.Width-1; x++ {
			a := int32(f.Samples[rowStart+x-1])
			b := int32(f.Samples[rowStart+x])
			c := int32(f.Samples[rowStart+x+1])
			f.Samples[rowStart+x] = uint16((a + 2*b + c) / 4)
		}
	}
}

// smoothSeamsMean23 is the "mean23" alternative to smoothSeams: a wider,
// edge-unaware average across the two blended rows and their immediate
// horizontal neighbors (up to 6 samples), cheaper than edge-directed
// interpolation but prone to softening real detail near seams.
func smoothSeamsMean23(f *Frame) {
	for y := 0; y < f.Height-1; y += 2 {
		rowStart := y * f.Width
		nextStart := rowStart + f.Width
		for x := 1; x < f.Width-1; x++ {
			sum := int32(0)
			for _, idx := range [...]int{rowStart + x - 1, rowStart + x, rowStart + x + 1,
				nextStart + x - 1, nextStart + x, nextStart + x + 1} {
				sum += int32(f.Samples[idx])
			}
			f.Samples[rowStart+x] = uint16(sum / 6)
		}
	}
}

// fixBadPixels replaces samples that are pure black/white outliers relative
// to their four neighbors with the neighbor median, the same focus-pixel/
// bad-pixel repair class as pattern-noise fix but operating on point defects
// instead of column bias.
func fixBadPixels(f *Frame) {
	if f.Width < 3 || f.Height < 3 {
		return
	}
	for y := 1; y < f.Height-1; y++ {
		for x := 1; x < f.Width-1; x++ {
			idx := y*f.Width + x
			v := f.Samples[idx]
			n := []uint16{
				f.Samples[idx-1], f.Samples[idx+1],
				f.Samples[idx-f.Width], f.Samples[idx+f.Width],
			}
			lo, hi := n[0], n[0]
			for _, s := range n {
				if s < lo {
					lo = s
				}
				if s > hi {
					hi = s
				}
			}
			if v < lo/2 || (hi > 0 && v > hi*2) {
				f.Samples[idx] = medianOf(n)
			}
		}
	}
}

// chromaSmooth replaces every second sample in each direction, starting at
// (radius, radius), with the mean of the samples at stride 2 within ±radius
// of it, so radius 2/3/5 spans a 5x5/7x7/11x11 pixel footprint. It averages
// the raw sample values directly: chroma is not separated from luminance,
// and the window value is a mean, not a median. A frame smaller than the
// footprint is left unchanged.
func chromaSmooth(f *Frame, radius int) {
	if radius <= 0 || f.Width < 2*radius+1 || f.Height < 2*radius+1 {
		return
	}
	src := make([]uint16, len(f.Samples))
	copy(src, f.Samples)

	for y := radius; y < f.Height-radius; y += 2 {
		for x := radius; x < f.Width-radius; x += 2 {
			var sum, count int
			for dy := -radius; dy <= radius; dy += 2 {
				for dx := -radius; dx <= radius; dx += 2 {
					sum += int(src[(y+dy)*f.Width+(x+dx)])
					count++
				}
			}
			if count == 0 {
				continue
			}
			f.Samples[y*f.Width+x] = uint16(sum / count)
		}
	}
}

// fixStripes corrects the vertical banding some sensors exhibit by
// subtracting a per-column correction table built once per recording (the
// table changes little frame to frame, so it is cached rather than rebuilt).
func (p *Pipeline) fixStripes(recordingPath string, f *Frame) error {
	table, ok := p.stripe.cache.Get(recordingPath)
	if !ok {
		table = buildStripeTable(f)
		p.stripe.cache.Add(recordingPath, table)
	}
	if len(table) != f.Width {
		return nil
	}
	for y := 0; y < f.Height; y++ {
		rowStart := y * f.Width
		for x := 0; x < f.Width; x++ {
			v := float64(f.Samples[rowStart+x]) - table[x]
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			f.Samples[rowStart+x] = uint16(v)
		}
	}
	return nil
}

func buildStripeTable(f *Frame) []float64 {
	table := make([]float64, f.Width)
	if f.Height == 0 {
		return table
	}
	var overall float64
	for x := 0; x < f.Width; x++ {
		var sum int
		for y := 0; y < f.Height; y++ {
			sum += int(f.Samples[y*f.Width+x])
		}
		avg := float64(sum) / float64(f.Height)
		table[x] = avg
		overall += avg
	}
	overall /= float64(f.Width)
	for x := range table {
		table[x] -= overall
	}
	return table
}

func clamp16(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return v
}

func sortUint16(v []uint16) {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
}

func sortInt32(v []int32) {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
}
