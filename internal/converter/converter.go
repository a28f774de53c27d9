package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// ConversionParams defines parameters for one batch conversion run.
type ConversionParams struct {
	SourceDir  string
	Extensions []string
	MaxWidth   int
	Quality    int
	Method     int
	AutoOrient bool
	DryRun     bool
}

// ConversionResult describes the result of converting a single file.
type ConversionResult struct {
	InputPath       string
	OutputPath      string
	OriginalSize    int64
	ConvertedSize   int64
	PercentageSaved float64
	Width           int
	Height          int
	Resized         bool
	Action          string // "converted", "planned", "error"
	Kind            FailureKind
	Message         string
	Success         bool
	StartedAt       time.Time
	FinishedAt      time.Time
	Error           error
}

// ResultHookFunc is invoked once per file as its result becomes available.
type ResultHookFunc func(ConversionResult)

// Converter defines the interface for batch WebP conversion.
type Converter interface {
	// Convert processes every candidate file in params.SourceDir, one file
	// at a time in listing order, and returns one result per candidate.
	// Per-file failures are recorded in the results, never returned as an
	// error; the returned error is reserved for the fatal directory-access
	// path and for context cancellation.
	Convert(ctx context.Context, params ConversionParams) ([]ConversionResult, error)
}

// ReportLine renders the human-readable per-file line for standard output.
func (r ConversionResult) ReportLine() string {
	name := filepath.Base(r.InputPath)
	switch r.Action {
	case "planned":
		return fmt.Sprintf("Would convert %s (%dx%d)", name, r.Width, r.Height)
	case "error":
		return fmt.Sprintf("Failed to convert %s: %s", name, r.Message)
	default:
		return fmt.Sprintf("Converted %s: %.1fKB -> %.1fKB (%.1f%% saved)",
			name,
			float64(r.OriginalSize)/1024,
			float64(r.ConvertedSize)/1024,
			r.PercentageSaved)
	}
}
