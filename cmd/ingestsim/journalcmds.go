package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bucketapp/ingestsim/internal/plan"
	"github.com/bucketapp/ingestsim/internal/record"
	"github.com/bucketapp/ingestsim/internal/stats"
)

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available scenario presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFILES\tTOTAL")
			for _, name := range plan.PresetNames() {
				p, err := plan.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n",
					name, p.TotalFiles(), stats.FormatBytes(p.TotalBytes()))
			}
			return tw.Flush()
		},
	}
}

func runsCmd() *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(journalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "no runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tFILES\tTOTAL\tOUTCOME\tPERCENT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%.1f\n",
					r.ID,
					r.Started.Format("2006-01-02 15:04:05"),
					r.TotalFiles,
					stats.FormatBytes(r.TotalBytes),
					r.Outcome,
					r.FinalPercent,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "run journal database path (default: runtime dir)")
	return cmd
}

func exportCmd() *cobra.Command {
	var journalPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a journaled run as zstd-compressed JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(journalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return j.ExportRun(args[0], out)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "run journal database path (default: runtime dir)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func openJournal(path string) (*record.Journal, error) {
	if path == "" {
		path = record.DefaultPath()
	}
	return record.Open(path)
}
