// Package sim produces the event stream of a simulated multi-file ingest.
// It stands in for the native copy backend in tests: same accounting
// formula, same skip-on-failure semantics, same cooperative cancellation,
// with timing compressed by the plan's speed multiplier.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/plan"
	"github.com/bucketapp/ingestsim/internal/stats"
)

// ErrRunActive is returned by Reset while a run is in flight.
var ErrRunActive = errors.New("run active")

// FileError records a failure for a single file. Index -1 marks a
// run-wide failure.
type FileError struct {
	Index int
	Path  string
	Msg   string
}

func (e FileError) Error() string {
	if e.Index < 0 {
		return e.Msg
	}
	return fmt.Sprintf("file %d (%s): %s", e.Index, e.Path, e.Msg)
}

// Result is the outcome of a run. Success is true iff no errors were
// recorded and the run was not cancelled.
type Result struct {
	Success        bool
	Cancelled      bool
	CompletedFiles []string
	Errors         []FileError
	Stats          stats.Snapshot
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithEvents wires a live event channel. Sends block, so the caller
// sizes the buffer and keeps draining while a run is active.
func WithEvents(ch chan<- event.Event) Option {
	return func(s *Simulator) { s.events = ch }
}

// WithStats wires a collector that the run loop updates incrementally.
func WithStats(c *stats.Collector) Option {
	return func(s *Simulator) { s.collector = c }
}

// Simulator runs one transfer plan at a time. A single run loop owns all
// mutation; external callers only cancel or read snapshots.
type Simulator struct {
	plan      plan.Plan
	events    chan<- event.Event
	collector *stats.Collector

	cancelled atomic.Bool
	active    atomic.Bool

	mu        sync.Mutex
	journal   []event.Event
	completed []string
	lastPct   float64
}

// New validates the plan and creates a Simulator for it.
func New(p plan.Plan, opts ...Option) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	s := &Simulator{plan: p}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes the plan, blocking until completion, abort, or
// cancellation. Files are processed strictly sequentially. The journal
// and completed list are updated as the run proceeds, so mid-run
// snapshots observe partial progress.
func (s *Simulator) Run(ctx context.Context) Result {
	if !s.active.CompareAndSwap(false, true) {
		return Result{Errors: []FileError{{Index: -1, Msg: "run already active"}}}
	}
	defer s.active.Store(false)

	start := time.Now()
	total := s.plan.TotalFiles()
	totalBytes := s.plan.TotalBytes()
	if s.collector != nil {
		s.collector.SetTotals(int64(total), totalBytes)
	}

	s.emit(event.Event{
		Type:      event.RunStarted,
		Total:     int64(total),
		TotalSize: totalBytes,
	})

	var res Result

	if s.plan.AbortRun {
		msg := s.plan.AbortMessage
		if msg == "" {
			msg = "backend aborted the run"
		}
		ferr := FileError{Index: -1, Msg: msg}
		res.Errors = append(res.Errors, ferr)
		s.emit(event.Event{
			Type:    event.RunFailed,
			Percent: s.LastPercent(),
			Elapsed: time.Since(start),
			Err:     ferr,
		})
		return s.finish(res)
	}

	for i, f := range s.plan.Files {
		if s.stopRequested(ctx) {
			return s.finishCancelled(start, res)
		}

		if s.plan.IsFailing(i) {
			ferr := FileError{Index: i, Path: f.Path, Msg: "simulated copy failure"}
			res.Errors = append(res.Errors, ferr)
			if s.collector != nil {
				s.collector.AddFilesFailed(1)
			}
			// A failed file contributes nothing to progress; the
			// denominator is unchanged, so the next file's events
			// jump over this file's share.
			s.emit(event.Event{
				Type:      event.FileFailed,
				FileIndex: i,
				Path:      f.Path,
				Size:      f.Size,
				Percent:   s.LastPercent(),
				Elapsed:   time.Since(start),
				Err:       ferr,
			})
			continue
		}

		if s.plan.WholeFileEvents {
			s.emit(event.Event{
				Type:      event.FileCompleted,
				FileIndex: i,
				Path:      f.Path,
				Size:      f.Size,
				Percent:   float64(i+1) / float64(total) * 100,
				Elapsed:   time.Since(start),
			})
		} else {
			s.emit(event.Event{
				Type:      event.FileStarted,
				FileIndex: i,
				Path:      f.Path,
				Size:      f.Size,
				Percent:   float64(i) / float64(total) * 100,
				Elapsed:   time.Since(start),
			})

			steps := s.plan.EventsForFile(i)
			for step := range steps {
				if s.stopRequested(ctx) {
					return s.finishCancelled(start, res)
				}

				fileProgress := float64(step+1) / float64(steps)
				typ := event.FileProgress
				if step == steps-1 {
					typ = event.FileCompleted
				}
				s.emit(event.Event{
					Type:         typ,
					FileIndex:    i,
					Path:         f.Path,
					Size:         f.Size,
					FileProgress: fileProgress,
					Percent:      (float64(i) + fileProgress) / float64(total) * 100,
					Elapsed:      time.Since(start),
				})

				// No pause after a file's final sub-step; the
				// inter-file pause below covers it.
				if step < steps-1 {
					s.pause(ctx)
				}
			}
		}

		s.recordCompleted(f.Path)
		if s.collector != nil {
			s.collector.AddFilesCompleted(1)
			s.collector.AddBytesSimulated(f.Size)
		}

		if i < total-1 {
			s.pause(ctx)
		}
	}

	// Unambiguous completion signal, immune to float rounding drift.
	s.emit(event.Event{
		Type:         event.RunCompleted,
		FileIndex:    total - 1,
		FileProgress: 1,
		Percent:      100,
		Elapsed:      time.Since(start),
	})

	res.Success = len(res.Errors) == 0
	return s.finish(res)
}

// Cancel requests cooperative cancellation. Safe to call concurrently
// and idempotent; already-emitted events and completed files are kept.
func (s *Simulator) Cancel() {
	s.cancelled.Store(true)
}

// Reset clears the journal, the completed list, and the cancellation
// flag so the instance can serve a fresh run. It refuses to reset an
// active run.
func (s *Simulator) Reset() error {
	if s.active.Load() {
		return ErrRunActive
	}
	s.cancelled.Store(false)
	s.mu.Lock()
	s.journal = nil
	s.completed = nil
	s.lastPct = 0
	s.mu.Unlock()
	return nil
}

// IsActive reports whether a run is in flight.
func (s *Simulator) IsActive() bool {
	return s.active.Load()
}

// Events returns a snapshot copy of all events emitted so far.
func (s *Simulator) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.journal))
	copy(out, s.journal)
	return out
}

// Percents returns just the percent values of the journal, in emission
// order.
func (s *Simulator) Percents() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.journal))
	for i, ev := range s.journal {
		out[i] = ev.Percent
	}
	return out
}

// CompletedFiles returns a snapshot copy of the paths completed so far.
func (s *Simulator) CompletedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.completed))
	copy(out, s.completed)
	return out
}

// LastPercent returns the highest percent emitted so far.
func (s *Simulator) LastPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPct
}

func (s *Simulator) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		// Context cancellation funnels into the same flag so the
		// terminal marker is emitted exactly once.
		s.cancelled.Store(true)
	}
	return s.cancelled.Load()
}

func (s *Simulator) finishCancelled(start time.Time, res Result) Result {
	s.emit(event.Event{
		Type:    event.RunCancelled,
		Percent: s.LastPercent(),
		Elapsed: time.Since(start),
	})
	res.Cancelled = true
	return s.finish(res)
}

func (s *Simulator) finish(res Result) Result {
	res.CompletedFiles = s.CompletedFiles()
	if s.collector != nil {
		res.Stats = s.collector.Snapshot()
	}
	return res
}

func (s *Simulator) recordCompleted(path string) {
	s.mu.Lock()
	s.completed = append(s.completed, path)
	s.mu.Unlock()
}

func (s *Simulator) emit(ev event.Event) {
	s.mu.Lock()
	s.journal = append(s.journal, ev)
	if ev.Percent > s.lastPct {
		s.lastPct = ev.Percent
	}
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.AddEventsEmitted(1)
	}
	if s.events != nil {
		s.events <- ev
	}
}

// pause suspends for one step delay, waking early if the context ends.
// The caller re-checks stopRequested after every pause.
func (s *Simulator) pause(ctx context.Context) {
	t := time.NewTimer(s.plan.StepDelay())
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
