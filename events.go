// Package mlvfs provides a Go library for materializing Magic Lantern Video
// (MLV) recordings as synthesized DNG frames, WAV audio, and debug logs.
package mlvfs

import "time"

// Event types for host-process integration (e.g. a FUSE binding forwarding
// progress to its own UI).
const (
	EventTypeHardware               = "hardware"
	EventTypeInitialization         = "initialization"
	EventTypeStageProgress          = "stage_progress"
	EventTypeMaterializationStarted = "materialization_started"
	EventTypeIndexResult            = "index_result"
	EventTypeCacheConfig            = "cache_config"
	EventTypeMaterializationProgress = "materialization_progress"
	EventTypeValidationComplete     = "validation_complete"
	EventTypeMaterializationComplete = "materialization_complete"
	EventTypeOperationComplete      = "operation_complete"
	EventTypeBatchStarted           = "batch_started"
	EventTypeFileProgress           = "file_progress"
	EventTypeBatchComplete          = "batch_complete"
	EventTypeWarning                = "warning"
	EventTypeError                  = "error"
)

// Event is the interface for all mlvfs events.
type Event interface {
	Type() string
	Timestamp() int64
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string `json:"type"`
	Time      int64  `json:"timestamp"`
}

func (e BaseEvent) Type() string     { return e.EventType }
func (e BaseEvent) Timestamp() int64 { return e.Time }

// MaterializationProgressEvent represents materialization progress updates.
type MaterializationProgressEvent struct {
	BaseEvent
	Percent      float32 `json:"percent"`
	FramesDone   int     `json:"frames_done"`
	FramesTotal  int     `json:"frames_total"`
	FramesPerSec float64 `json:"frames_per_sec"`
	ETASeconds   int64   `json:"eta_seconds"`
	CacheHits    int     `json:"cache_hits"`
	CacheMisses  int     `json:"cache_misses"`
}

// ValidationCompleteEvent represents validation completion.
type ValidationCompleteEvent struct {
	BaseEvent
	ValidationPassed bool             `json:"validation_passed"`
	ValidationSteps  []ValidationStep `json:"validation_steps"`
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Step    string `json:"step"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// MaterializationCompleteEvent represents successful materialization
// completion for one recording.
type MaterializationCompleteEvent struct {
	BaseEvent
	OutputFile   string  `json:"output_file"`
	FrameCount   int     `json:"frame_count"`
	TotalBytes   int64   `json:"total_bytes"`
	FramesPerSec float64 `json:"frames_per_sec"`
}

// WarningEvent represents a warning message.
type WarningEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// ErrorEvent represents an error.
type ErrorEvent struct {
	BaseEvent
	Title      string `json:"title"`
	Message    string `json:"message"`
	Context    string `json:"context"`
	Suggestion string `json:"suggestion"`
}

// BatchCompleteEvent represents batch completion.
type BatchCompleteEvent struct {
	BaseEvent
	SuccessfulCount int `json:"successful_count"`
	TotalFiles      int `json:"total_files"`
	TotalFrames     int `json:"total_frames"`
}

// EventHandler is called with events during materialization.
type EventHandler func(Event) error

// NewTimestamp returns the current Unix timestamp.
func NewTimestamp() int64 {
	return time.Now().Unix()
}
