package reporter

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogReporterHardwareAndInitialization(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)

	r.Hardware(HardwareSummary{Hostname: "host1"})
	r.Initialization(InitializationSummary{InputFile: "A.MLV", ChunkCount: 2, Resolution: "1920x1080", FrameCount: 10, BitDepth: 14})

	out := buf.String()
	if !strings.Contains(out, "Hostname: host1") {
		t.Fatalf("missing hostname line: %q", out)
	}
	if !strings.Contains(out, "Input: A.MLV") || !strings.Contains(out, "Frames: 10") {
		t.Fatalf("missing initialization fields: %q", out)
	}
}

func TestLogReporterProgressSuppressesRepeatedBucket(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)
	r.MaterializationStarted(100)
	buf.Reset()

	r.MaterializationProgress(ProgressSnapshot{Percent: 6})  // bucket 1, logs
	r.MaterializationProgress(ProgressSnapshot{Percent: 8})  // still bucket 1, suppressed
	r.MaterializationProgress(ProgressSnapshot{Percent: 11}) // bucket 2, logs

	lines := strings.Count(buf.String(), "Progress:")
	if lines != 2 {
		t.Fatalf("got %d progress lines, want 2 (same-bucket updates should be suppressed): %q", lines, buf.String())
	}
}

func TestLogReporterValidationCompleteReportsFailures(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)
	r.ValidationComplete(ValidationSummary{
		Passed: false,
		Steps: []ValidationStep{
			{Name: "A.MLV: index", Passed: true, Details: "ok"},
			{Name: "A.MLV: frames", Passed: false, Details: "no video frames"},
		},
	})
	out := buf.String()
	if !strings.Contains(out, "Result: FAILED") {
		t.Fatalf("expected FAILED result line: %q", out)
	}
	if !strings.Contains(out, "FAILED (no video frames)") {
		t.Fatalf("expected failing step detail: %q", out)
	}
}

func TestLogReporterErrorIncludesContextAndSuggestion(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)
	r.Error(ReporterError{Title: "open failed", Message: "missing RAWI", Context: "A.MLV", Suggestion: "re-index"})
	out := buf.String()
	if !strings.Contains(out, "open failed: missing RAWI") {
		t.Fatalf("missing error summary: %q", out)
	}
	if !strings.Contains(out, "Context: A.MLV") || !strings.Contains(out, "Suggestion: re-index") {
		t.Fatalf("missing context/suggestion lines: %q", out)
	}
}

// fakeReporter counts how many times each Reporter method is invoked, so
// CompositeReporter's fan-out can be verified without duplicating every
// concrete reporter's formatting.
type fakeReporter struct {
	hardwareCalls int
}

func (f *fakeReporter) Hardware(HardwareSummary)                       { f.hardwareCalls++ }
func (f *fakeReporter) Initialization(InitializationSummary)           {}
func (f *fakeReporter) StageProgress(StageProgress)                    {}
func (f *fakeReporter) IndexResult(IndexSummary)                       {}
func (f *fakeReporter) CacheConfig(CacheConfigSummary)                 {}
func (f *fakeReporter) MaterializationStarted(uint64)                  {}
func (f *fakeReporter) MaterializationProgress(ProgressSnapshot)       {}
func (f *fakeReporter) ValidationComplete(ValidationSummary)           {}
func (f *fakeReporter) MaterializationComplete(MaterializationOutcome) {}
func (f *fakeReporter) Warning(string)                                 {}
func (f *fakeReporter) Error(ReporterError)                            {}
func (f *fakeReporter) OperationComplete(string)                       {}
func (f *fakeReporter) BatchStarted(BatchStartInfo)                    {}
func (f *fakeReporter) FileProgress(FileProgressContext)               {}
func (f *fakeReporter) BatchComplete(BatchSummary)                     {}
func (f *fakeReporter) Verbose(string)                                 {}

func TestCompositeReporterFansOutAndSkipsNil(t *testing.T) {
	a := &fakeReporter{}
	b := &fakeReporter{}
	c := NewCompositeReporter(a, nil, b)

	c.Hardware(HardwareSummary{Hostname: "h"})

	if a.hardwareCalls != 1 || b.hardwareCalls != 1 {
		t.Fatalf("expected both reporters invoked once, got a=%d b=%d", a.hardwareCalls, b.hardwareCalls)
	}
}
