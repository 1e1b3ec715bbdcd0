package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bucketapp/ingestsim/internal/config"
	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/plan"
	"github.com/bucketapp/ingestsim/internal/record"
	"github.com/bucketapp/ingestsim/internal/sim"
	"github.com/bucketapp/ingestsim/internal/stats"
	"github.com/bucketapp/ingestsim/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

//nolint:gocyclo // main CLI entry point orchestrates all flag parsing and wiring
func run() int {
	var (
		presetName  string
		fileCount   int
		fileSizeStr string
		intervalMs  int
		speed       float64
		maxEvents   int
		failIdx     []int
		abortRun    bool
		wholeFile   bool
		journalPath string
		noJournal   bool
		cancelAfter time.Duration
		quiet       bool
		verbose     bool
		logFile     string
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "ingestsim [flags]",
		Short: "Simulate the Bucket ingest backend's progress-event stream",
		Long: `ingestsim replays the accounting behavior of the native file-copy
backend without touching any files: deterministic percent-complete
events, skip-on-failure semantics, and cooperative cancellation,
with timing compressed by a speed multiplier.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "ingestsim %s\n", version)
				return nil
			}

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults,
				&presetName, &speed, &intervalMs, &maxEvents, &journalPath, &quiet)

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			p, err := buildPlan(cmd, presetName, fileCount, fileSizeStr)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") || cfg.Defaults.IntervalMs != nil {
				p.ProgressInterval = time.Duration(intervalMs) * time.Millisecond
			}
			p.SpeedMultiplier = speed
			if cmd.Flags().Changed("max-events") || cfg.Defaults.MaxEvents != nil {
				p.MaxEventsPerFile = maxEvents
			}
			p.FailingIndices = failIdx
			p.AbortRun = abortRun
			p.WholeFileEvents = wholeFile

			// Set up context with signal handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)

			simulator, err := sim.New(p, sim.WithEvents(events), sim.WithStats(collector))
			if err != nil {
				return err
			}

			if cancelAfter > 0 {
				timer := time.AfterFunc(cancelAfter, simulator.Cancel)
				defer timer.Stop()
			}

			// When --log is set, tee events through a logging goroutine
			// that writes structured records before forwarding.
			presenterEvents := (<-chan event.Event)(events)
			if logFile != "" {
				presenterEvents = teeEventLog(events)
			}

			// Optional run journal.
			var journal *record.Journal
			var runID string
			if !noJournal {
				if journalPath == "" {
					journalPath = record.DefaultPath()
				}
				journal, err = record.Open(journalPath)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer journal.Close()

				runID, err = journal.BeginRun(p)
				if err != nil {
					return fmt.Errorf("begin journaled run: %w", err)
				}
				presenterEvents = teeJournal(journal, runID, presenterEvents)
			}

			presenter := ui.NewPresenter(ui.Config{
				Writer:    os.Stdout,
				ErrWriter: os.Stderr,
				Stats:     collector,
				IsTTY:     ui.IsTTY(os.Stderr.Fd()),
				Quiet:     quiet,
				Verbose:   verbose,
			})

			slog.Debug("starting simulated ingest",
				"files", p.TotalFiles(),
				"bytes", p.TotalBytes(),
				"interval", p.ProgressInterval,
				"speed", p.SpeedMultiplier,
				"failing", failIdx,
			)

			var presenterErr error
			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				presenterErr = presenter.Run(presenterEvents)
			}()

			result := simulator.Run(ctx)
			stop()
			close(events)
			presenterWg.Wait()
			if presenterErr != nil {
				fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
			}

			if journal != nil {
				if err := journal.FinishRun(runID, outcomeOf(result), simulator.LastPercent()); err != nil {
					slog.Warn("failed to finalize journaled run", "error", err)
				} else {
					slog.Info("run journaled", "id", runID, "journal", journalPath)
				}
			}

			if !quiet {
				if summary := presenter.Summary(); summary != "" {
					fmt.Fprintln(os.Stderr, summary)
				}
			}

			switch {
			case result.Cancelled:
				slog.Info("run cancelled", "completed", len(result.CompletedFiles))
				return &exitError{code: 1}
			case result.Success:
				return nil
			case len(result.CompletedFiles) == 0:
				slog.Error("run failed", "error", result.Errors[0])
				return &exitError{code: 2}
			default:
				slog.Error("run finished with errors", "errors", len(result.Errors))
				return &exitError{code: 1}
			}
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().StringVarP(&presetName, "preset", "p", "", "scenario preset (see 'ingestsim presets')")
	rootCmd.Flags().IntVar(&fileCount, "files", 10, "number of files for an ad-hoc scenario")
	rootCmd.Flags().StringVar(&fileSizeStr, "size", "100M", "per-file size for an ad-hoc scenario (e.g. 4K, 100M, 2G)")
	rootCmd.Flags().IntVar(&intervalMs, "interval", 100, "base delay between events in milliseconds")
	rootCmd.Flags().Float64Var(&speed, "speed", 1, "speed multiplier (divides the event delay)")
	rootCmd.Flags().IntVar(&maxEvents, "max-events", 10, "max intra-file progress events per file")
	rootCmd.Flags().IntSliceVar(&failIdx, "fail", nil, "zero-based file indices to fail (repeatable)")
	rootCmd.Flags().BoolVar(&abortRun, "abort", false, "inject a run-wide failure before any file is processed")
	rootCmd.Flags().BoolVar(&wholeFile, "whole-file", false, "emit one event per file instead of intra-file progress")
	rootCmd.Flags().StringVar(&journalPath, "journal", "", "run journal database path (default: runtime dir)")
	rootCmd.Flags().BoolVar(&noJournal, "no-journal", false, "don't record the run in the journal")
	rootCmd.Flags().DurationVar(&cancelAfter, "cancel-after", 0, "cancel the run after this duration (0 = never)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (per-step progress lines)")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(presetsCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// buildPlan resolves the scenario: a named preset, or an ad-hoc uniform
// plan from --files/--size.
func buildPlan(cmd *cobra.Command, presetName string, fileCount int, fileSizeStr string) (plan.Plan, error) {
	if presetName != "" {
		p, err := plan.Preset(presetName)
		if err != nil {
			return plan.Plan{}, err
		}
		if cmd.Flags().Changed("files") || cmd.Flags().Changed("size") {
			return plan.Plan{}, fmt.Errorf("--files/--size cannot be combined with --preset")
		}
		return p, nil
	}

	size, err := plan.ParseSize(fileSizeStr)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("invalid --size: %w", err)
	}
	if fileCount < 1 {
		return plan.Plan{}, fmt.Errorf("--files must be >= 1, got %d", fileCount)
	}

	files := make([]plan.File, fileCount)
	for i := range files {
		name := fmt.Sprintf("clip_%04d.mov", i+1)
		files[i] = plan.File{Name: name, Path: "DCIM/100MEDIA/" + name, Size: size}
	}
	return plan.Plan{
		Files:            files,
		ProgressInterval: 100 * time.Millisecond,
		SpeedMultiplier:  1,
		MaxEventsPerFile: 10,
	}, nil
}

// teeEventLog logs every event as structured attrs before forwarding.
func teeEventLog(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.Int("fileIndex", ev.FileIndex),
				slog.String("path", ev.Path),
				slog.Float64("percent", ev.Percent),
				slog.Int64("elapsedMs", ev.ElapsedMs()),
			}
			if ev.Err != nil {
				attrs = append(attrs, slog.String("error", ev.Err.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelInfo, "ingestsim.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// teeJournal appends every event to the journal before forwarding.
// Journal write failures are logged, never fatal to the run.
func teeJournal(journal *record.Journal, runID string, events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		seq := 0
		for ev := range events {
			if err := journal.Append(runID, seq, ev); err != nil {
				slog.Warn("journal append failed", "seq", seq, "error", err)
			}
			seq++
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

func outcomeOf(res sim.Result) string {
	switch {
	case res.Cancelled:
		return record.OutcomeCancelled
	case res.Success:
		return record.OutcomeCompleted
	case len(res.CompletedFiles) == 0:
		return record.OutcomeFailed
	default:
		return record.OutcomePartial
	}
}

// applyConfigDefaults applies config file defaults for flags not
// explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	preset *string,
	speed *float64,
	intervalMs *int,
	maxEvents *int,
	journal *string,
	quiet *bool,
) {
	if !cmd.Flags().Changed("preset") && defaults.Preset != nil {
		*preset = *defaults.Preset
	}
	if !cmd.Flags().Changed("speed") && defaults.Speed != nil {
		*speed = *defaults.Speed
	}
	if !cmd.Flags().Changed("interval") && defaults.IntervalMs != nil {
		*intervalMs = *defaults.IntervalMs
	}
	if !cmd.Flags().Changed("max-events") && defaults.MaxEvents != nil {
		*maxEvents = *defaults.MaxEvents
	}
	if !cmd.Flags().Changed("journal") && defaults.Journal != nil {
		*journal = *defaults.Journal
	}
	if !cmd.Flags().Changed("quiet") && defaults.Quiet != nil {
		*quiet = *defaults.Quiet
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
