package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reviews-extractor/internal/orchestrator"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var workers int

	cmd := &cobra.Command{
		Use:   "extract <locationId> [locationId...]",
		Short: "Submit locations, wait for their batches and download the spreadsheets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			loopOpts := []orchestrator.LoopOption{
				orchestrator.WithDelays(cfg.Client.InitialDelay.Std(), cfg.Client.PollInterval.Std()),
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return extractOne(cmd.Context(), client, loopOpts, args[0], outDir, out)
			}
			return extractMany(cmd.Context(), ctx, client, loopOpts, args, workers, outDir, out)
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to download spreadsheets into (skip download when empty)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Locations processed concurrently")
	return cmd
}

// statusPrinter prints loop transitions, skipping repeats.
type statusPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
	last     map[string]string
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, colorize: shouldColorize(w), last: map[string]string{}}
}

func (p *statusPrinter) print(s orchestrator.Snapshot) {
	if s.State == orchestrator.StateIdle {
		return
	}
	kind, msg := describeSnapshot(s)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last[s.LocationID] == msg {
		return
	}
	p.last[s.LocationID] = msg
	fmt.Fprintln(p.w, renderStatusLine(s.LocationID, kind, msg, p.colorize))
}

func extractOne(ctx context.Context, client *orchestrator.Client, opts []orchestrator.LoopOption, locationID, outDir string, out io.Writer) error {
	printer := newStatusPrinter(out)
	loop := orchestrator.NewLoop(client, append(opts, orchestrator.WithTransition(printer.print))...)
	art, err := loop.Run(ctx, locationID)
	if err != nil {
		return err
	}
	if outDir == "" {
		fmt.Fprintf(out, "Download with: reviews download %s\n", art.FileName)
		return nil
	}
	path, err := downloadTo(ctx, client, art.FileName, outDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderStatusLine(locationID, statusOK, "saved "+path, printer.colorize))
	return nil
}

func extractMany(ctx context.Context, cc *commandContext, client *orchestrator.Client, opts []orchestrator.LoopOption, locations []string, workers int, outDir string, out io.Writer) error {
	printer := newStatusPrinter(out)
	var mu sync.Mutex
	var outcomes []orchestrator.Outcome

	q := orchestrator.NewQueue(client, cc.log(),
		orchestrator.WithWorkers(workers),
		orchestrator.WithQueueSize(len(locations)),
		orchestrator.WithLoopOptions(append(opts, orchestrator.WithTransition(printer.print))...),
		orchestrator.WithOnDone(func(o orchestrator.Outcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		}),
	)
	for _, loc := range locations {
		if _, err := q.Enqueue(ctx, loc); err != nil {
			q.Shutdown(ctx)
			return err
		}
	}
	q.Shutdown(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		result := o.Artifact.FileName
		count := strconv.Itoa(o.Artifact.ReviewCount)
		if o.Err != nil {
			failed++
			result, count = "error: "+o.Err.Error(), "-"
		} else if outDir != "" {
			if path, err := downloadTo(ctx, client, o.Artifact.FileName, outDir); err != nil {
				result = "download failed: " + err.Error()
			} else {
				result = path
			}
		}
		rows = append(rows, []string{o.Job.LocationID, count, result})
	}
	fmt.Fprintln(out, renderTable([]string{"Location", "Reviews", "Result"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(locations))
	}
	return nil
}

func downloadTo(ctx context.Context, client *orchestrator.Client, fileName, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(fileName))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := client.Download(ctx, fileName, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
