package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/stats"
)

const barWidth = 20

// plainPresenter outputs one line per processed file to stdout and
// periodic progress to stderr.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	verbose bool

	okStyle   lipgloss.Style
	failStyle lipgloss.Style
	barStyle  lipgloss.Style

	lastPercent float64
}

func newPlainPresenter(cfg Config) *plainPresenter {
	p := &plainPresenter{
		w:       cfg.Writer,
		errW:    cfg.ErrWriter,
		stats:   cfg.Stats,
		verbose: cfg.Verbose,
	}
	if cfg.IsTTY {
		p.okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		p.failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		p.barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	}
	return p
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	if ev.Percent > p.lastPercent {
		p.lastPercent = ev.Percent
	}

	switch ev.Type {
	case event.RunStarted:
		fmt.Fprintf(p.errW, "ingest: %d files (%s)\n", ev.Total, FormatBytes(ev.TotalSize))
	case event.FileProgress:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  %3.0f%% of file  %5.1f%% overall\n",
				ev.Path, ev.FileProgress*100, ev.Percent)
		}
	case event.FileCompleted:
		fmt.Fprintf(p.w, "%s  %s  %s\n",
			ev.Path, FormatBytes(ev.Size), p.okStyle.Render("done"))
	case event.FileFailed:
		errMsg := "error"
		if ev.Err != nil {
			errMsg = ev.Err.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n",
			ev.Path, FormatBytes(ev.Size), p.failStyle.Render(errMsg))
	case event.RunCompleted:
		p.printTerminal("complete")
	case event.RunCancelled:
		p.printTerminal("cancelled")
	case event.RunFailed:
		msg := "failed"
		if ev.Err != nil {
			msg = "failed: " + ev.Err.Error()
		}
		p.printTerminal(msg)
	}
}

func (p *plainPresenter) printTerminal(status string) {
	fmt.Fprintf(p.errW, "%s %5.1f%% %s\n",
		p.barStyle.Render(ProgressBar(p.lastPercent/100, barWidth)),
		p.lastPercent, status)
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	rate := p.stats.RollingEventsPerSec(10)
	fmt.Fprintf(p.errW, "progress: %s %5.1f%% %d/%d files %s\n",
		p.barStyle.Render(ProgressBar(p.lastPercent/100, barWidth)),
		p.lastPercent,
		snap.FilesCompleted, snap.FilesTotal,
		FormatEventRate(rate),
	)
}

func (p *plainPresenter) Summary() string {
	snap := p.stats.Snapshot()
	status := p.okStyle.Render("ok")
	if snap.FilesFailed > 0 {
		status = p.failStyle.Render(fmt.Sprintf("%d failed", snap.FilesFailed))
	}
	return fmt.Sprintf("%d/%d files, %s simulated in %s (%s)",
		snap.FilesCompleted, snap.FilesTotal,
		FormatBytes(snap.BytesSimulated),
		FormatDuration(snap.Elapsed),
		status,
	)
}
