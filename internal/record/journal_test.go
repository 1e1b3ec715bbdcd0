package record

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/plan"
)

func testPlan() plan.Plan {
	return plan.Plan{
		Files: []plan.File{
			{Name: "a.mov", Path: "DCIM/a.mov", Size: 100},
			{Name: "b.mov", Path: "DCIM/b.mov", Size: 200},
		},
		SpeedMultiplier:  1,
		MaxEventsPerFile: 5,
	}
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	runID, err := j.BeginRun(testPlan())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	evs := []event.Event{
		{Type: event.RunStarted, Total: 2, TotalSize: 300},
		{Type: event.FileProgress, FileIndex: 0, Path: "DCIM/a.mov", FileProgress: 0.5, Percent: 25, Elapsed: 10 * time.Millisecond},
		{Type: event.FileCompleted, FileIndex: 0, Path: "DCIM/a.mov", FileProgress: 1, Percent: 50, Elapsed: 20 * time.Millisecond},
		{Type: event.RunCompleted, FileIndex: 1, Percent: 100, Elapsed: 40 * time.Millisecond},
	}
	for i, ev := range evs {
		require.NoError(t, j.Append(runID, i, ev))
	}
	require.NoError(t, j.FinishRun(runID, OutcomeCompleted, 100))

	stored, err := j.RunEvents(runID)
	require.NoError(t, err)
	require.Len(t, stored, len(evs))

	assert.Equal(t, "RunStarted", stored[0].Type)
	assert.Equal(t, "FileProgress", stored[1].Type)
	assert.InDelta(t, 0.5, stored[1].FileProgress, 1e-9)
	assert.InDelta(t, 25, stored[1].Percent, 1e-9)
	assert.Equal(t, int64(10), stored[1].ElapsedMs)
	assert.Equal(t, "RunCompleted", stored[3].Type)
	assert.InDelta(t, 100, stored[3].Percent, 1e-9)
}

func TestJournalRuns(t *testing.T) {
	j := openTestJournal(t)

	id1, err := j.BeginRun(testPlan())
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(id1, OutcomeCancelled, 42.5))

	id2, err := j.BeginRun(testPlan())
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(id2, OutcomeCompleted, 100))

	runs, err := j.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunSummary{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	assert.Equal(t, OutcomeCancelled, byID[id1].Outcome)
	assert.InDelta(t, 42.5, byID[id1].FinalPercent, 1e-9)
	assert.Equal(t, OutcomeCompleted, byID[id2].Outcome)
	assert.Equal(t, int64(2), byID[id1].TotalFiles)
	assert.Equal(t, int64(300), byID[id1].TotalBytes)

	// Same plan shape, same fingerprint.
	assert.Equal(t, byID[id1].Fingerprint, byID[id2].Fingerprint)
}

func TestJournalBatchFlush(t *testing.T) {
	j := openTestJournal(t)

	runID, err := j.BeginRun(testPlan())
	require.NoError(t, err)

	// Exceed the batch threshold so at least one implicit flush runs.
	const total = flushThreshold + 10
	for i := range total {
		require.NoError(t, j.Append(runID, i, event.Event{
			Type:    event.FileProgress,
			Percent: float64(i),
		}))
	}
	require.NoError(t, j.Flush())

	stored, err := j.RunEvents(runID)
	require.NoError(t, err)
	assert.Len(t, stored, total)
}

func TestJournalErrorMessage(t *testing.T) {
	j := openTestJournal(t)

	runID, err := j.BeginRun(testPlan())
	require.NoError(t, err)

	require.NoError(t, j.Append(runID, 0, event.Event{
		Type:      event.FileFailed,
		FileIndex: 1,
		Path:      "DCIM/b.mov",
		Err:       assert.AnError,
	}))
	require.NoError(t, j.Flush())

	stored, err := j.RunEvents(runID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, assert.AnError.Error(), stored[0].Error)
}

func TestExportRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	runID, err := j.BeginRun(testPlan())
	require.NoError(t, err)
	for i := range 20 {
		require.NoError(t, j.Append(runID, i, event.Event{
			Type:      event.FileProgress,
			FileIndex: i / 10,
			Percent:   float64(i) * 5,
		}))
	}
	require.NoError(t, j.FinishRun(runID, OutcomeCompleted, 100))

	var buf bytes.Buffer
	require.NoError(t, j.ExportRun(runID, &buf))

	decoded, err := ReadExport(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 20)
	assert.Equal(t, "FileProgress", decoded[0].Type)
	assert.InDelta(t, 95, decoded[19].Percent, 1e-9)
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint(testPlan())
	b := Fingerprint(testPlan())
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	other := testPlan()
	other.Files[1].Size = 999
	assert.NotEqual(t, a, Fingerprint(other))
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/ingestsim/runs.db", DefaultPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Contains(t, DefaultPath(), "ingestsim-runs.db")
}
