package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks run statistics using lock-free atomic counters.
type Collector struct {
	filesTotal     atomic.Int64
	filesCompleted atomic.Int64
	filesFailed    atomic.Int64
	bytesTotal     atomic.Int64
	bytesSimulated atomic.Int64
	eventsEmitted  atomic.Int64
	startTime      time.Time

	// Ring buffer — written only by the presenter's Tick(), not the run loop.
	mu           sync.Mutex
	eventsPerSec [ringSize]int64 // event delta per second
	ringIdx      int
	ringCount    int // samples written, capped at ringSize
	lastEvents   int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records plan totals (called once at run start).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesCompleted(n int64) { c.filesCompleted.Add(n) }
func (c *Collector) AddFilesFailed(n int64)    { c.filesFailed.Add(n) }
func (c *Collector) AddBytesSimulated(n int64) { c.bytesSimulated.Add(n) }
func (c *Collector) AddEventsEmitted(n int64)  { c.eventsEmitted.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesTotal     int64
	FilesCompleted int64
	FilesFailed    int64
	BytesTotal     int64
	BytesSimulated int64
	EventsEmitted  int64
	Elapsed        time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesTotal:     c.filesTotal.Load(),
		FilesCompleted: c.filesCompleted.Load(),
		FilesFailed:    c.filesFailed.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		BytesSimulated: c.bytesSimulated.Load(),
		EventsEmitted:  c.eventsEmitted.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick snapshots the event delta into the ring buffer. Called 1/sec by
// the presenter.
func (c *Collector) Tick() {
	current := c.eventsEmitted.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	delta := current - c.lastEvents
	c.lastEvents = current

	c.eventsPerSec[c.ringIdx] = delta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingEventsPerSec returns average events/sec over the last n seconds
// of samples.
func (c *Collector) RollingEventsPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.eventsPerSec[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"total=%d completed=%d failed=%d bytes=%d events=%d",
		s.FilesTotal, s.FilesCompleted, s.FilesFailed,
		s.BytesSimulated, s.EventsEmitted,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
