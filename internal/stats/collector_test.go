package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesCompleted(1)
				c.AddFilesFailed(1)
				c.AddBytesSimulated(256)
				c.AddEventsEmitted(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesCompleted)
	assert.Equal(t, expected, s.FilesFailed)
	assert.Equal(t, expected*256, s.BytesSimulated)
	assert.Equal(t, expected, s.EventsEmitted)
}

func TestSetTotals(t *testing.T) {
	c := NewCollector()
	c.SetTotals(100, 1024*1024)
	s := c.Snapshot()
	assert.Equal(t, int64(100), s.FilesTotal)
	assert.Equal(t, int64(1024*1024), s.BytesTotal)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesTotal:     10,
		FilesCompleted: 8,
		FilesFailed:    2,
		BytesSimulated: 4096,
		EventsEmitted:  40,
	}
	expected := "total=10 completed=8 failed=2 bytes=4096 events=40"
	assert.Equal(t, expected, s.String())
}

func TestTickAndRollingRate(t *testing.T) {
	c := NewCollector()

	// Simulate 5 seconds of 20 events/sec.
	for range 5 {
		c.AddEventsEmitted(20)
		c.Tick()
	}

	assert.InDelta(t, 20.0, c.RollingEventsPerSec(5), 0.01)
}

func TestRollingRatePartialWindow(t *testing.T) {
	c := NewCollector()

	c.AddEventsEmitted(10)
	c.Tick()
	c.AddEventsEmitted(10)
	c.Tick()

	// Ask for 10 but only have 2 samples.
	assert.InDelta(t, 10.0, c.RollingEventsPerSec(10), 0.01)
}

func TestRollingRateEmpty(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RollingEventsPerSec(10))
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	require.False(t, c.startTime.IsZero())
	assert.InDelta(t, 0, c.Elapsed().Seconds(), 1)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}
