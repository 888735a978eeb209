package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"misophonia/internal/dataset"
)

type inspectItem struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Trigger    bool     `json:"is_trigger"`
	Categories []string `json:"categories"`
	Background string   `json:"background"`
	Foreground int      `json:"foreground"`
	PairID     string   `json:"pair_id,omitempty"`
	PairMask   string   `json:"pair_mask,omitempty"`
}

type inspectReport struct {
	Dataset  string        `json:"dataset"`
	Split    string        `json:"split,omitempty"`
	Seed     int64         `json:"seed,omitempty"`
	Items    int           `json:"items,omitempty"`
	Triggers int           `json:"trigger_items,omitempty"`
	Pairs    int           `json:"pairs,omitempty"`
	Listing  []inspectItem `json:"listing,omitempty"`
	Splits   []string      `json:"splits,omitempty"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <dataset> [split]",
		Short: "Show the items of a saved split",
		Long: `Inspect reads a split saved under save_dir, or the built-in demo-v1
dataset, and lists its items. Without a split it lists the complete splits
of a saved dataset.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			ds, err := dataset.Open(cmd.Context(), args[0], cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				splits, err := listSplits(ds)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, inspectReport{Dataset: ds.Name(), Splits: splits})
				}
				if len(splits) == 0 {
					fmt.Fprintf(out, "%s has no complete splits\n", ds.Name())
					return nil
				}
				fmt.Fprintf(out, "%s splits: %s\n", ds.Name(), strings.Join(splits, ", "))
				return nil
			}

			split, err := ds.GetSplit(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			report := buildInspectReport(split, limit)
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printInspectReport(cmd, report, split.Len())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items to list (0 lists all)")
	return cmd
}

func listSplits(ds dataset.Dataset) ([]string, error) {
	switch d := ds.(type) {
	case *dataset.Premade:
		return d.Splits()
	case *dataset.Demo:
		splits := make([]string, 0, len(d.Recipe().Splits))
		for _, s := range d.Recipe().Splits {
			splits = append(splits, s.Name)
		}
		return splits, nil
	default:
		return nil, nil
	}
}

func buildInspectReport(split *dataset.Split, limit int) inspectReport {
	sum := split.Summary()
	report := inspectReport{
		Dataset:  split.Dataset(),
		Split:    split.Name(),
		Seed:     split.Seed(),
		Items:    sum.Items,
		Triggers: sum.Triggers,
		Pairs:    sum.Pairs,
	}
	for i, item := range split.Items() {
		if limit > 0 && i >= limit {
			break
		}
		spec := item.Spec()
		report.Listing = append(report.Listing, inspectItem{
			Index:      spec.Index,
			ID:         spec.ID,
			Trigger:    spec.IsTrigger,
			Categories: spec.Categories,
			Background: spec.Background.ClipID,
			Foreground: len(spec.Foreground),
			PairID:     spec.PairID,
			PairMask:   spec.PairMask,
		})
	}
	return report
}

func printInspectReport(cmd *cobra.Command, r inspectReport, total int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s/%s · seed %d\n", r.Dataset, r.Split, r.Seed)

	rows := make([][]string, 0, len(r.Listing))
	for _, item := range r.Listing {
		pair := ""
		if item.PairID != "" {
			pair = item.PairMask + " " + shortID(item.PairID)
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			shortID(item.ID),
			yesNo(item.Trigger),
			strings.Join(item.Categories, ", "),
			item.Background,
			strconv.Itoa(item.Foreground),
			pair,
		})
	}
	footer := fmt.Sprintf("%d items (%d trigger, %d pairs)", r.Items, r.Triggers, r.Pairs)
	if len(r.Listing) < total {
		footer += fmt.Sprintf(", showing %d", len(r.Listing))
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Item", "Trigger", "Categories", "Background", "Fgs", "Pair"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		footer,
	))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
