package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cmhamiche/mlvfs/internal/util"
)

// LogReporter writes materialization events to a log file.
type LogReporter struct {
	w                  io.Writer
	mu                 sync.Mutex
	lastProgressBucket int // Track progress in 5% buckets
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{
		w:                  w,
		lastProgressBucket: -1,
	}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Hardware(summary HardwareSummary) {
	r.log("INFO", "=== HOST ===")
	r.log("INFO", "Hostname: %s", summary.Hostname)
}

func (r *LogReporter) Initialization(summary InitializationSummary) {
	r.log("INFO", "=== RECORDING ===")
	r.log("INFO", "Input: %s", summary.InputFile)
	r.log("INFO", "Chunks: %d", summary.ChunkCount)
	r.log("INFO", "Resolution: %s", summary.Resolution)
	r.log("INFO", "Frames: %d", summary.FrameCount)
	r.log("INFO", "Bit depth: %d", summary.BitDepth)
	r.log("INFO", "Audio: %s", summary.AudioDesc)
}

func (r *LogReporter) StageProgress(update StageProgress) {
	r.log("INFO", "[%s] %s", strings.ToUpper(update.Stage), update.Message)
}

func (r *LogReporter) IndexResult(summary IndexSummary) {
	if summary.FromCache {
		r.log("INFO", "Index: %s (loaded from .IDX, %d entries)", summary.Message, summary.Entries)
	} else {
		r.log("INFO", "Index: %s (built, %d entries)", summary.Message, summary.Entries)
	}
	if summary.Truncated {
		r.log("WARN", "recording truncated, partial recovery")
	}
	for _, w := range summary.Warnings {
		r.log("WARN", "%s", w)
	}
}

func (r *LogReporter) CacheConfig(summary CacheConfigSummary) {
	r.log("INFO", "=== CORRECTIONS ===")
	r.log("INFO", "Naming: %s", summary.NameScheme)
	r.log("INFO", "Deflicker: %v", summary.Deflicker)
	r.log("INFO", "Pattern noise: %v", summary.FixPatternNoise)
	r.log("INFO", "Dual ISO: %d", summary.DualISO)
	r.log("INFO", "Bad pixels: %v", summary.FixBadPixels)
	r.log("INFO", "Chroma smooth: %d", summary.ChromaSmooth)
	r.log("INFO", "Stripe fix: %v", summary.FixStripes)
	r.log("INFO", "Cache budget: %s", util.FormatBytesReadable(summary.CacheBudgetBytes))
}

func (r *LogReporter) MaterializationStarted(totalFrames uint64) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.mu.Unlock()
	r.log("INFO", "=== MATERIALIZATION STARTED === (total frames: %d)", totalFrames)
}

func (r *LogReporter) MaterializationProgress(progress ProgressSnapshot) {
	bucket := int(progress.Percent / 5)
	r.mu.Lock()
	if bucket > r.lastProgressBucket && bucket <= 20 {
		r.lastProgressBucket = bucket
		r.mu.Unlock()
		r.log("INFO", "Progress: %.0f%% (%.1f frames/s, eta %s, cache %d/%d)",
			progress.Percent, progress.FramesPerSec,
			util.FormatDurationFromSecs(int64(progress.ETA.Seconds())),
			progress.CacheHits, progress.CacheMisses)
	} else {
		r.mu.Unlock()
	}
}

func (r *LogReporter) ValidationComplete(summary ValidationSummary) {
	r.log("INFO", "=== VALIDATION ===")
	if summary.Passed {
		r.log("INFO", "Result: PASSED")
	} else {
		r.log("WARN", "Result: FAILED")
	}

	for _, step := range summary.Steps {
		status := "ok"
		if !step.Passed {
			status = "FAILED"
		}
		r.log("INFO", "  - %s: %s (%s)", step.Name, status, step.Details)
	}
}

func (r *LogReporter) MaterializationComplete(summary MaterializationOutcome) {
	r.log("INFO", "=== RESULTS ===")
	r.log("INFO", "Output: %s", summary.OutputFile)
	r.log("INFO", "Frames: %d", summary.FrameCount)
	r.log("INFO", "Bytes: %s", util.FormatBytesReadable(summary.TotalBytes))
	r.log("INFO", "Time: %s (%.1f frames/s)",
		util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())),
		summary.FramesPerSec)
	r.log("INFO", "Cache: %d hits, %d misses", summary.CacheHits, summary.CacheMisses)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}

func (r *LogReporter) BatchStarted(info BatchStartInfo) {
	r.log("INFO", "=== BATCH STARTED ===")
	r.log("INFO", "Scanning %d recordings in %s", info.TotalFiles, info.OutputDir)
	for i, name := range info.FileList {
		r.log("INFO", "  %d. %s", i+1, name)
	}
}

func (r *LogReporter) FileProgress(context FileProgressContext) {
	r.log("INFO", "--- Recording %d of %d: %s ---", context.CurrentFile, context.TotalFiles, context.Name)
}

func (r *LogReporter) BatchComplete(summary BatchSummary) {
	r.log("INFO", "=== BATCH COMPLETE ===")
	r.log("INFO", "%d of %d succeeded", summary.SuccessfulCount, summary.TotalFiles)
	r.log("INFO", "Total frames: %d", summary.TotalFrames)
	r.log("INFO", "Time: %s", util.FormatDurationFromSecs(int64(summary.TotalDuration.Seconds())))

	for _, result := range summary.FileResults {
		r.log("INFO", "  - %s (%d frames, success=%v)", result.Filename, result.FrameCount, result.Success)
	}
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
