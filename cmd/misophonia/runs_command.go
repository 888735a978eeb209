package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"misophonia/internal/catalog"
	"misophonia/internal/pipeline"
)

type runView struct {
	ID           string   `json:"id"`
	Dataset      string   `json:"dataset"`
	Split        string   `json:"split"`
	Seed         int64    `json:"seed"`
	Requested    int      `json:"requested"`
	Sources      []string `json:"sources"`
	Renderer     string   `json:"renderer"`
	OutputDir    string   `json:"output_dir"`
	Status       string   `json:"status"`
	ItemsTotal   int      `json:"items_total"`
	ItemsWritten int      `json:"items_written"`
	TriggerItems int      `json:"trigger_items"`
	ErrorKind    string   `json:"error_kind,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	StartedAt    string   `json:"started_at"`
	FinishedAt   string   `json:"finished_at,omitempty"`
	Seconds      float64  `json:"seconds"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		filter    catalog.Filter
		status    string
		markStale time.Duration
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List generation runs recorded in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if markStale > 0 {
				n, err := store.MarkStale(cmd.Context(), markStale)
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(out, "Marked %d stale runs as interrupted\n", n)
				}
			}

			if status != "" {
				s, ok := parseStatus(status)
				if !ok {
					return pipeline.Wrap(pipeline.ErrValidation, "cli", "runs", fmt.Sprintf("unknown status %q", status), nil)
				}
				filter.Status = s
			}
			runs, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				return writeJSON(cmd, views)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Dataset + "/" + run.Split,
					strconv.FormatInt(run.Seed, 10),
					string(run.Status),
					fmt.Sprintf("%d/%d", run.ItemsWritten, run.ItemsTotal),
					humanize.Time(run.StartedAt),
					run.Duration().Round(time.Second).String(),
					run.ErrorKind,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Split", "Seed", "Status", "Items", "Started", "Took", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Dataset, "dataset", "", "Only runs of this dataset")
	cmd.Flags().StringVar(&filter.Split, "split", "", "Only runs of this split")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (running, completed, failed, cancelled, interrupted)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to list (0 lists all)")
	cmd.Flags().DurationVar(&markStale, "mark-stale", 0, "Mark runs still running after this long as interrupted")
	return cmd
}

func parseStatus(value string) (catalog.Status, bool) {
	switch s := catalog.Status(value); s {
	case catalog.StatusRunning, catalog.StatusCompleted, catalog.StatusFailed,
		catalog.StatusCancelled, catalog.StatusInterrupted:
		return s, true
	}
	return "", false
}

func newRunView(run *catalog.Run) runView {
	v := runView{
		ID:           run.ID,
		Dataset:      run.Dataset,
		Split:        run.Split,
		Seed:         run.Seed,
		Requested:    run.Requested,
		Sources:      run.Sources,
		Renderer:     run.Renderer,
		OutputDir:    run.OutputDir,
		Status:       string(run.Status),
		ItemsTotal:   run.ItemsTotal,
		ItemsWritten: run.ItemsWritten,
		TriggerItems: run.TriggerItems,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt.Format(time.RFC3339),
		Seconds:      run.Duration().Seconds(),
	}
	if !run.FinishedAt.IsZero() {
		v.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return v
}
