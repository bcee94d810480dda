package reporter

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/cmhamiche/mlvfs/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	progress   *progressbar.ProgressBar
	maxPercent float32
	lastStage  string
	verbose    bool
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	dim        *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HOST")
	r.printLabel("Hostname:", summary.Hostname)
}

// labelWidth is the global width for all labels to ensure consistent alignment.
const labelWidth = 18

// printLabel prints a bold label with fixed width padding followed by a value.
func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("RECORDING")
	r.printLabel("File:", summary.InputFile)
	r.printLabel("Chunks:", fmt.Sprintf("%d", summary.ChunkCount))
	r.printLabel("Resolution:", summary.Resolution)
	r.printLabel("Frames:", fmt.Sprintf("%d", summary.FrameCount))
	r.printLabel("Bit depth:", fmt.Sprintf("%d", summary.BitDepth))
	r.printLabel("Audio:", summary.AudioDesc)
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	if r.lastStage != update.Stage {
		r.mu.Unlock()
		fmt.Println()
		_, _ = r.cyan.Println(strings.ToUpper(update.Stage))
		r.mu.Lock()
		r.lastStage = update.Stage
	}
	r.mu.Unlock()
	fmt.Printf("  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) IndexResult(summary IndexSummary) {
	var status string
	if summary.FromCache {
		status = color.New(color.Faint).Sprint("loaded from .IDX")
	} else {
		status = r.green.Sprint("built")
	}
	r.printLabel("Index:", fmt.Sprintf("%s (%s, %d entries)", summary.Message, status, summary.Entries))
	if summary.Truncated {
		r.printLabel("", r.yellow.Sprint("recording truncated, partial recovery"))
	}
	for _, w := range summary.Warnings {
		r.printLabel("", r.yellow.Sprint(w))
	}
}

func (r *TerminalReporter) CacheConfig(summary CacheConfigSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("CORRECTIONS")
	r.printLabel("Naming:", summary.NameScheme)
	r.printLabel("Deflicker:", boolLabel(summary.Deflicker))
	r.printLabel("Pattern noise:", boolLabel(summary.FixPatternNoise))
	r.printLabel("Dual ISO:", dualISOLabel(summary.DualISO))
	r.printLabel("Bad pixels:", boolLabel(summary.FixBadPixels))
	r.printLabel("Chroma smooth:", chromaLabel(summary.ChromaSmooth))
	r.printLabel("Stripe fix:", boolLabel(summary.FixStripes))
	r.printLabel("Cache budget:", util.FormatBytesReadable(summary.CacheBudgetBytes))
}

func boolLabel(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func dualISOLabel(mode int) string {
	switch mode {
	case 1:
		return "fast"
	case 2:
		return "HQ"
	default:
		return "off"
	}
}

func chromaLabel(radius int) string {
	if radius == 0 {
		return "off"
	}
	return fmt.Sprintf("radius %d", radius)
}

func (r *TerminalReporter) MaterializationStarted(totalFrames uint64) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Materializing [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) MaterializationProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	clamped := progress.Percent
	if clamped > 100 {
		clamped = 100
	}
	if clamped < 0 {
		clamped = 0
	}

	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}

	desc := fmt.Sprintf("frames %d/%d, %.1f/s, eta %s, cache %d/%d",
		progress.FramesDone, progress.FramesTotal, progress.FramesPerSec,
		util.FormatDurationFromSecs(int64(progress.ETA.Seconds())),
		progress.CacheHits, progress.CacheMisses)
	r.progress.Describe(desc)
}

func (r *TerminalReporter) ValidationComplete(summary ValidationSummary) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("VALIDATION")

	if summary.Passed {
		r.printLabel("Status:", fmt.Sprintf("%s %s", r.green.Sprint("✓"), r.green.Add(color.Bold).Sprint("All checks passed")))
	} else {
		r.printLabel("Status:", fmt.Sprintf("%s %s", r.red.Sprint("✗"), r.red.Sprint("Validation failed")))
	}

	for _, step := range summary.Steps {
		var status string
		if step.Passed {
			status = r.green.Sprint("✓")
		} else {
			status = r.red.Sprint("✗")
		}
		r.printLabel(step.Name+":", fmt.Sprintf("%s %s", status, step.Details))
	}
}

func (r *TerminalReporter) MaterializationComplete(summary MaterializationOutcome) {
	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	r.printLabel("Output:", summary.OutputFile)
	r.printLabel("Frames:", fmt.Sprintf("%d", summary.FrameCount))
	r.printLabel("Bytes:", util.FormatBytesReadable(summary.TotalBytes))
	r.printLabel("Time:", fmt.Sprintf("%s (%.1f frames/s)",
		util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())),
		summary.FramesPerSec))
	r.printLabel("Cache:", fmt.Sprintf("%d hits, %d misses", summary.CacheHits, summary.CacheMisses))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("BATCH")
	fmt.Printf("  Scanning %d recordings in %s\n", info.TotalFiles, r.bold.Sprint(info.OutputDir))
	for i, name := range info.FileList {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
}

func (r *TerminalReporter) FileProgress(context FileProgressContext) {
	fmt.Printf("\nRecording %s of %d: %s\n",
		r.bold.Sprint(context.CurrentFile),
		context.TotalFiles, context.Name)
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("BATCH SUMMARY")
	fmt.Printf("  %s\n", r.bold.Sprintf("%d of %d succeeded", summary.SuccessfulCount, summary.TotalFiles))
	fmt.Printf("  Total frames: %d\n", summary.TotalFrames)
	fmt.Printf("  Time: %s\n", util.FormatDurationFromSecs(int64(summary.TotalDuration.Seconds())))

	for _, result := range summary.FileResults {
		status := r.green.Sprint("✓")
		if !result.Success {
			status = r.red.Sprint("✗")
		}
		fmt.Printf("  %s %s (%d frames)\n", status, result.Filename, result.FrameCount)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
