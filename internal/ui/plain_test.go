package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/stats"
)

func runPlain(t *testing.T, cfg Config, events []event.Event) (*plainPresenter, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg.Writer = &out
	cfg.ErrWriter = &errOut
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	p := newPlainPresenter(cfg)
	ch := make(chan event.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	require.NoError(t, p.Run(ch))
	return p, out.String(), errOut.String()
}

func TestPlainFileLines(t *testing.T) {
	_, out, errOut := runPlain(t, Config{}, []event.Event{
		{Type: event.RunStarted, Total: 2, TotalSize: 2048},
		{Type: event.FileCompleted, Path: "DCIM/a.mov", Size: 1024, Percent: 50},
		{Type: event.FileFailed, Path: "DCIM/b.mov", Size: 1024, Err: assert.AnError, Percent: 50},
		{Type: event.RunCompleted, Percent: 100},
	})

	assert.Contains(t, errOut, "ingest: 2 files (2.0 KiB)")
	assert.Contains(t, out, "DCIM/a.mov  1.0 KiB  done")
	assert.Contains(t, out, "DCIM/b.mov  1.0 KiB  "+assert.AnError.Error())
	assert.Contains(t, errOut, "100.0% complete")
}

func TestPlainVerboseShowsIntraFileProgress(t *testing.T) {
	events := []event.Event{
		{Type: event.FileProgress, Path: "DCIM/a.mov", FileProgress: 0.5, Percent: 25},
	}

	_, out, _ := runPlain(t, Config{Verbose: true}, events)
	assert.Contains(t, out, "DCIM/a.mov")
	assert.Contains(t, out, "50%")

	_, out, _ = runPlain(t, Config{}, events)
	assert.Empty(t, out)
}

func TestPlainCancelledLine(t *testing.T) {
	_, _, errOut := runPlain(t, Config{}, []event.Event{
		{Type: event.FileProgress, Percent: 30},
		{Type: event.RunCancelled, Percent: 30},
	})
	assert.Contains(t, errOut, "30.0% cancelled")
}

func TestPlainRunFailedLine(t *testing.T) {
	_, _, errOut := runPlain(t, Config{}, []event.Event{
		{Type: event.RunFailed, Err: assert.AnError},
	})
	assert.Contains(t, errOut, "failed: "+assert.AnError.Error())
}

func TestPlainSummary(t *testing.T) {
	c := stats.NewCollector()
	c.SetTotals(10, 1<<20)
	c.AddFilesCompleted(9)
	c.AddFilesFailed(1)
	c.AddBytesSimulated(900 << 10)

	p, _, _ := runPlain(t, Config{Stats: c}, nil)
	sum := p.Summary()
	assert.Contains(t, sum, "9/10 files")
	assert.Contains(t, sum, "1 failed")
}

func TestPlainSummaryOK(t *testing.T) {
	c := stats.NewCollector()
	c.SetTotals(3, 3072)
	c.AddFilesCompleted(3)

	p, _, _ := runPlain(t, Config{Stats: c}, nil)
	assert.True(t, strings.HasSuffix(p.Summary(), "(ok)"))
}

func TestQuietPresenterSilent(t *testing.T) {
	p := NewPresenter(Config{Quiet: true, Stats: stats.NewCollector()})
	ch := make(chan event.Event, 1)
	ch <- event.Event{Type: event.RunCompleted, Percent: 100}
	close(ch)
	require.NoError(t, p.Run(ch))
	assert.Empty(t, p.Summary())
}
