// Package mlvfs provides a Go library for materializing Magic Lantern Video
// (MLV) recordings as synthesized DNG frames, WAV audio, and debug logs.
//
// This file re-exports the internal Reporter interface and associated types
// to allow callers to receive all materialization events directly.
package mlvfs

import "github.com/cmhamiche/mlvfs/internal/reporter"

// Reporter defines the interface for progress reporting during
// materialization. Implement this interface to receive detailed events.
type Reporter = reporter.Reporter

// NullReporter is a no-op reporter that discards all updates.
type NullReporter = reporter.NullReporter

// HardwareSummary contains host information.
type HardwareSummary = reporter.HardwareSummary

// InitializationSummary describes a recording before materialization.
type InitializationSummary = reporter.InitializationSummary

// IndexSummary contains cross-reference table build/load results.
type IndexSummary = reporter.IndexSummary

// CacheConfigSummary contains active correction-pass and cache settings.
type CacheConfigSummary = reporter.CacheConfigSummary

// ProgressSnapshot contains materialization progress information.
type ProgressSnapshot = reporter.ProgressSnapshot

// ValidationSummary contains validation results.
type ValidationSummary = reporter.ValidationSummary

// ReporterValidationStep represents a single validation check from the
// reporter. Note: this is distinct from the ValidationStep type in
// events.go, used for JSON serialization.
type ReporterValidationStep = reporter.ValidationStep

// MaterializationOutcome contains final materialization results.
type MaterializationOutcome = reporter.MaterializationOutcome

// ReporterError contains error information.
type ReporterError = reporter.ReporterError

// BatchStartInfo contains batch start metadata.
type BatchStartInfo = reporter.BatchStartInfo

// FileProgressContext contains current file index within a batch.
type FileProgressContext = reporter.FileProgressContext

// BatchSummary contains batch completion information.
type BatchSummary = reporter.BatchSummary

// BatchFileResult contains per-recording materialization result.
type BatchFileResult = reporter.BatchFileResult

// StageProgress represents a generic stage update.
type StageProgress = reporter.StageProgress
