// Package record persists simulated runs to a SQLite journal so test
// sessions can inspect and compare event streams after the fact.
package record

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/plan"
)

// Run outcomes stored in the journal.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

const flushThreshold = 100

// Journal is a SQLite-backed record of runs and their event streams.
type Journal struct {
	db   *sql.DB
	path string

	// Batch buffer for Append calls.
	mu    sync.Mutex
	batch []eventRow
}

type eventRow struct {
	runID        string
	seq          int
	typ          string
	fileIndex    int
	path         string
	fileProgress float64
	percent      float64
	elapsedMs    int64
	errMsg       string
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID           string
	Fingerprint  string
	Outcome      string
	TotalFiles   int64
	TotalBytes   int64
	Started      time.Time
	FinalPercent float64
}

// StoredEvent is one journaled event, as written.
type StoredEvent struct {
	Seq          int     `json:"seq"`
	Type         string  `json:"type"`
	FileIndex    int     `json:"fileIndex"`
	Path         string  `json:"path,omitempty"`
	FileProgress float64 `json:"fileProgress"`
	Percent      float64 `json:"percent"`
	ElapsedMs    int64   `json:"elapsedMs"`
	Error        string  `json:"error,omitempty"`
}

// Open opens (or creates) a journal database at the given path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// DefaultPath returns the journal location under the runtime dir.
func DefaultPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "ingestsim", "runs.db")
	}
	return filepath.Join(os.TempDir(), "ingestsim-runs.db")
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			fingerprint   TEXT NOT NULL,
			total_files   INTEGER NOT NULL,
			total_bytes   INTEGER NOT NULL,
			started       INTEGER NOT NULL,
			outcome       TEXT NOT NULL DEFAULT 'active',
			final_percent REAL NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS events (
			run_id        TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			type          TEXT NOT NULL,
			file_index    INTEGER NOT NULL,
			path          TEXT NOT NULL,
			file_progress REAL NOT NULL,
			percent       REAL NOT NULL,
			elapsed_ms    INTEGER NOT NULL,
			error         TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// BeginRun records a new run for the plan and returns its ID.
func (j *Journal) BeginRun(p plan.Plan) (string, error) {
	id := uuid.New().String()
	_, err := j.db.Exec(
		"INSERT INTO runs (id, fingerprint, total_files, total_bytes, started) VALUES (?, ?, ?, ?, ?)",
		id, Fingerprint(p), p.TotalFiles(), p.TotalBytes(), time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Append records one event for a run. Writes are batched and flushed
// when the batch fills or at FinishRun.
func (j *Journal) Append(runID string, seq int, ev event.Event) error {
	var errMsg string
	if ev.Err != nil {
		errMsg = ev.Err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = append(j.batch, eventRow{
		runID:        runID,
		seq:          seq,
		typ:          ev.Type.String(),
		fileIndex:    ev.FileIndex,
		path:         ev.Path,
		fileProgress: ev.FileProgress,
		percent:      ev.Percent,
		elapsedMs:    ev.ElapsedMs(),
		errMsg:       errMsg,
	})

	if len(j.batch) >= flushThreshold {
		return j.flushLocked()
	}
	return nil
}

// FinishRun flushes pending events and stamps the run's outcome.
func (j *Journal) FinishRun(runID, outcome string, finalPercent float64) error {
	if err := j.Flush(); err != nil {
		return err
	}
	_, err := j.db.Exec(
		"UPDATE runs SET outcome = ?, final_percent = ? WHERE id = ?",
		outcome, finalPercent, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Flush writes any pending batch entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO events (run_id, seq, type, file_index, path, file_progress, percent, elapsed_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range j.batch {
		_, err := stmt.Exec(
			r.runID, r.seq, r.typ, r.fileIndex, r.path,
			r.fileProgress, r.percent, r.elapsedMs, r.errMsg,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert event %d of run %s: %w", r.seq, r.runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.batch = j.batch[:0]
	return nil
}

// Runs returns all recorded runs, newest first.
func (j *Journal) Runs() ([]RunSummary, error) {
	rows, err := j.db.Query(
		"SELECT id, fingerprint, total_files, total_bytes, started, outcome, final_percent FROM runs ORDER BY started DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started int64
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.TotalFiles, &r.TotalBytes, &started, &r.Outcome, &r.FinalPercent); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunEvents returns the full event stream of a run in emission order.
func (j *Journal) RunEvents(runID string) ([]StoredEvent, error) {
	rows, err := j.db.Query(
		"SELECT seq, type, file_index, path, file_progress, percent, elapsed_ms, error FROM events WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.Seq, &e.Type, &e.FileIndex, &e.Path, &e.FileProgress, &e.Percent, &e.ElapsedMs, &e.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportRun streams a run's events to w as zstd-compressed JSON lines.
func (j *Journal) ExportRun(runID string, w io.Writer) error {
	events, err := j.RunEvents(runID)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			zw.Close()
			return fmt.Errorf("encode event %d: %w", e.Seq, err)
		}
	}
	return zw.Close()
}

// ReadExport decodes an ExportRun stream back into events.
func ReadExport(r io.Reader) ([]StoredEvent, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var out []StoredEvent
	dec := json.NewDecoder(zr)
	for dec.More() {
		var e StoredEvent
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close flushes pending writes and closes the database.
func (j *Journal) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	return j.db.Close()
}

// Path returns the journal database file path.
func (j *Journal) Path() string { return j.path }

// Fingerprint computes a deterministic ID for a plan's file shape, so
// journaled runs of the same scenario can be grouped.
func Fingerprint(p plan.Plan) string {
	h := blake3.New()
	var buf [8]byte
	for _, f := range p.Files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(f.Size))
		h.Write(buf[:])
	}
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}
