package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	RunStarted Type = iota + 1
	FileStarted
	FileProgress
	FileCompleted
	FileFailed
	RunCompleted
	RunCancelled
	RunFailed
)

var typeNames = [...]string{
	RunStarted:    "RunStarted",
	FileStarted:   "FileStarted",
	FileProgress:  "FileProgress",
	FileCompleted: "FileCompleted",
	FileFailed:    "FileFailed",
	RunCompleted:  "RunCompleted",
	RunCancelled:  "RunCancelled",
	RunFailed:     "RunFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Terminal reports whether the event type ends a run.
func (t Type) Terminal() bool {
	switch t {
	case RunCompleted, RunCancelled, RunFailed:
		return true
	}
	return false
}

// Event represents a single progress observation from the simulator.
type Event struct {
	Type         Type
	FileIndex    int     // zero-based index of the file being processed
	Path         string  // relative path of that file
	Size         int64   // file size in bytes
	FileProgress float64 // fraction in [0,1] of the current file
	Percent      float64 // overall completion in [0,100]
	Elapsed      time.Duration
	Total        int64 // total files (RunStarted)
	TotalSize    int64 // total bytes (RunStarted)
	Err          error
}

// ElapsedMs returns elapsed time since run start in whole milliseconds.
func (e Event) ElapsedMs() int64 {
	return e.Elapsed.Milliseconds()
}
