// Package plan describes a simulated ingest as a static transfer plan:
// an ordered file list plus the pacing and failure-injection knobs that
// shape the event stream produced from it.
package plan

import (
	"fmt"
	"time"
)

// ChunkSize is the read-buffer size of the ingest backend being modeled.
// Intra-file event counts derive from it.
const ChunkSize = 8192

// File describes one entry in a transfer plan.
type File struct {
	Name string
	Path string
	Size int64
}

// Plan is the immutable description of a simulated transfer. Processing
// order is the order of Files.
type Plan struct {
	Files []File

	// ProgressInterval is the base delay between emitted events.
	// SpeedMultiplier divides it to compress wall-clock time without
	// changing event count or ordering.
	ProgressInterval time.Duration
	SpeedMultiplier  float64

	// MaxEventsPerFile caps intra-file progress events for a single file.
	MaxEventsPerFile int

	// FailingIndices lists zero-based file indices to skip as failed.
	FailingIndices []int

	// AbortRun injects a run-wide failure: the run aborts immediately
	// with a single error and zero completed files.
	AbortRun     bool
	AbortMessage string

	// WholeFileEvents emits a single event per processed file instead of
	// intra-file progress.
	WholeFileEvents bool
}

// TotalFiles returns the number of files in the plan.
func (p Plan) TotalFiles() int { return len(p.Files) }

// TotalBytes returns the sum of all file sizes.
func (p Plan) TotalBytes() int64 {
	var n int64
	for _, f := range p.Files {
		n += f.Size
	}
	return n
}

// Validate checks the plan for internal consistency.
func (p Plan) Validate() error {
	if len(p.Files) == 0 {
		return fmt.Errorf("plan has no files")
	}
	if p.SpeedMultiplier <= 0 {
		return fmt.Errorf("speed multiplier must be > 0, got %g", p.SpeedMultiplier)
	}
	if p.MaxEventsPerFile < 1 {
		return fmt.Errorf("max events per file must be >= 1, got %d", p.MaxEventsPerFile)
	}
	if p.ProgressInterval < 0 {
		return fmt.Errorf("progress interval must be >= 0, got %s", p.ProgressInterval)
	}
	for i, f := range p.Files {
		if f.Size < 0 {
			return fmt.Errorf("file %d (%s): negative size %d", i, f.Path, f.Size)
		}
	}
	for _, idx := range p.FailingIndices {
		if idx < 0 || idx >= len(p.Files) {
			return fmt.Errorf("failing index %d out of range [0,%d)", idx, len(p.Files))
		}
	}
	return nil
}

// EventsForFile returns the number of intra-file progress events for the
// file at index i: one per chunk, capped at MaxEventsPerFile, floor 1.
func (p Plan) EventsForFile(i int) int {
	chunks := int((p.Files[i].Size + ChunkSize - 1) / ChunkSize)
	if chunks < 1 {
		chunks = 1
	}
	if chunks > p.MaxEventsPerFile {
		return p.MaxEventsPerFile
	}
	return chunks
}

// StepDelay returns the effective pause between emitted events, floored
// at one millisecond so a run always yields between steps.
func (p Plan) StepDelay() time.Duration {
	d := time.Duration(float64(p.ProgressInterval) / p.SpeedMultiplier)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

// IsFailing reports whether the file at index i is injected as failing.
func (p Plan) IsFailing(i int) bool {
	for _, idx := range p.FailingIndices {
		if idx == i {
			return true
		}
	}
	return false
}
