// Package reporter defines the Reporter interface the mlvfs CLI uses to
// narrate recording discovery, indexing, and frame materialization to a
// terminal, a log file, or both at once.
package reporter

import "time"

// Reporter receives structured events during a CLI run and renders them
// however it likes (colorized terminal output, a plain log file, ...).
type Reporter interface {
	Hardware(summary HardwareSummary)
	Initialization(summary InitializationSummary)
	StageProgress(update StageProgress)
	IndexResult(summary IndexSummary)
	CacheConfig(summary CacheConfigSummary)
	MaterializationStarted(totalFrames uint64)
	MaterializationProgress(progress ProgressSnapshot)
	ValidationComplete(summary ValidationSummary)
	MaterializationComplete(summary MaterializationOutcome)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	BatchStarted(info BatchStartInfo)
	FileProgress(context FileProgressContext)
	BatchComplete(summary BatchSummary)
	Verbose(message string)
}

// HardwareSummary describes the host the CLI is running on.
type HardwareSummary struct {
	Hostname string
}

// InitializationSummary describes one recording as it's opened.
type InitializationSummary struct {
	InputFile   string
	ChunkCount  int
	Resolution  string
	FrameCount  int
	BitDepth    int
	AudioDesc   string
}

// StageProgress narrates progress within a named stage (e.g. "scanning",
// "materializing").
type StageProgress struct {
	Stage   string
	Message string
}

// IndexSummary reports the outcome of building or loading a recording's
// cross-reference table.
type IndexSummary struct {
	Message   string
	FromCache bool
	Entries   int
	Truncated bool
	Warnings  []string
}

// CacheConfigSummary reports the active correction-pass and cache settings
// for a materialization run.
type CacheConfigSummary struct {
	NameScheme       string
	Deflicker        bool
	FixPatternNoise  bool
	DualISO          int
	FixBadPixels     bool
	ChromaSmooth     int
	FixStripes       bool
	CacheBudgetBytes int64
}

// ProgressSnapshot reports materialization progress across many frames.
type ProgressSnapshot struct {
	Percent        float32
	FramesDone     int
	FramesTotal    int
	FramesPerSec   float64
	ETA            time.Duration
	CacheHits      int
	CacheMisses    int
}

// ValidationSummary reports the result of a consistency check (e.g. the
// `validate` subcommand indexing each recording and stat-ing its first and
// last frame).
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// ValidationStep is one named check within a ValidationSummary.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// MaterializationOutcome reports the result of materializing one frame or
// recording.
type MaterializationOutcome struct {
	OutputFile   string
	FrameCount   int
	TotalBytes   int64
	TotalTime    time.Duration
	FramesPerSec float64
	CacheHits    int
	CacheMisses  int
}

// ReporterError carries a structured error for display.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo reports the start of a multi-recording scan.
type BatchStartInfo struct {
	TotalFiles int
	OutputDir  string
	FileList   []string
}

// FileProgressContext reports progress within a multi-recording batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
	Name        string
}

// BatchSummary reports the outcome of a multi-recording batch.
type BatchSummary struct {
	TotalFiles      int
	SuccessfulCount int
	TotalFrames     int
	TotalDuration   time.Duration
	FileResults     []BatchFileResult
}

// BatchFileResult is one recording's outcome within a BatchSummary.
type BatchFileResult struct {
	Filename   string
	FrameCount int
	Success    bool
}

// CompositeReporter fans every event out to multiple Reporters, e.g. a
// TerminalReporter for the user plus a LogReporter for the run's audit
// trail.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter builds a CompositeReporter over the given reporters,
// skipping any nil entries so callers can pass an optional log reporter
// directly.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	var filtered []Reporter
	for _, r := range reporters {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	return &CompositeReporter{reporters: filtered}
}

func (c *CompositeReporter) Hardware(s HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(s)
	}
}

func (c *CompositeReporter) Initialization(s InitializationSummary) {
	for _, r := range c.reporters {
		r.Initialization(s)
	}
}

func (c *CompositeReporter) StageProgress(u StageProgress) {
	for _, r := range c.reporters {
		r.StageProgress(u)
	}
}

func (c *CompositeReporter) IndexResult(s IndexSummary) {
	for _, r := range c.reporters {
		r.IndexResult(s)
	}
}

func (c *CompositeReporter) CacheConfig(s CacheConfigSummary) {
	for _, r := range c.reporters {
		r.CacheConfig(s)
	}
}

func (c *CompositeReporter) MaterializationStarted(total uint64) {
	for _, r := range c.reporters {
		r.MaterializationStarted(total)
	}
}

func (c *CompositeReporter) MaterializationProgress(p ProgressSnapshot) {
	for _, r := range c.reporters {
		r.MaterializationProgress(p)
	}
}

func (c *CompositeReporter) ValidationComplete(s ValidationSummary) {
	for _, r := range c.reporters {
		r.ValidationComplete(s)
	}
}

func (c *CompositeReporter) MaterializationComplete(s MaterializationOutcome) {
	for _, r := range c.reporters {
		r.MaterializationComplete(s)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) BatchStarted(info BatchStartInfo) {
	for _, r := range c.reporters {
		r.BatchStarted(info)
	}
}

func (c *CompositeReporter) FileProgress(ctx FileProgressContext) {
	for _, r := range c.reporters {
		r.FileProgress(ctx)
	}
}

func (c *CompositeReporter) BatchComplete(s BatchSummary) {
	for _, r := range c.reporters {
		r.BatchComplete(s)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}

// NullReporter discards every event; used when a caller disables reporting
// entirely (e.g. library use with no CLI attached).
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)                       {}
func (NullReporter) Initialization(InitializationSummary)           {}
func (NullReporter) StageProgress(StageProgress)                    {}
func (NullReporter) IndexResult(IndexSummary)                       {}
func (NullReporter) CacheConfig(CacheConfigSummary)                 {}
func (NullReporter) MaterializationStarted(uint64)                  {}
func (NullReporter) MaterializationProgress(ProgressSnapshot)        {}
func (NullReporter) ValidationComplete(ValidationSummary)           {}
func (NullReporter) MaterializationComplete(MaterializationOutcome) {}
func (NullReporter) Warning(string)                                 {}
func (NullReporter) Error(ReporterError)                            {}
func (NullReporter) OperationComplete(string)                       {}
func (NullReporter) BatchStarted(BatchStartInfo)                    {}
func (NullReporter) FileProgress(FileProgressContext)               {}
func (NullReporter) BatchComplete(BatchSummary)                     {}
func (NullReporter) Verbose(string)                                 {}
