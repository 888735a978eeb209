package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"misophonia/internal/catalog"
	"misophonia/internal/config"
	"misophonia/internal/dataset"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
	"misophonia/internal/preflight"
)

type generateFlags struct {
	samples      int
	seed         int64
	pairs        bool
	replace      bool
	sources      []string
	saveDir      string
	triggerRatio float64
	minFgs       int
	maxFgs       int
	workers      int
}

type generateReport struct {
	RunID        string         `json:"run_id"`
	Dataset      string         `json:"dataset"`
	Split        string         `json:"split"`
	Seed         int64          `json:"seed"`
	OutputDir    string         `json:"output_dir"`
	Items        int            `json:"items"`
	TriggerItems int            `json:"trigger_items"`
	Pairs        int            `json:"pairs"`
	PerCategory  map[string]int `json:"per_category"`
	Renderer     string         `json:"renderer"`
	Elapsed      string         `json:"elapsed"`
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate <dataset_name> <split>",
		Short: "Generate and save one dataset split",
		Long: `Generate samples one split of a dataset from the configured source corpora,
renders and mixes every item, and saves the audio with metadata under
<save_dir>/<dataset_name>/<split>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := checkPathName(name); err != nil {
					return err
				}
			}
			if err := applyGenerateFlags(cmd, cfg, &flags); err != nil {
				return err
			}
			return runGenerate(cmd, ctx, cfg, logger, args[0], args[1], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.samples, "num-samples", "n", 0, "Number of regular items (0 generates until the foreground pools run out)")
	cmd.Flags().Int64VarP(&flags.seed, "seed", "r", 0, "Random seed (defaults to generation.seed)")
	cmd.Flags().BoolVar(&flags.pairs, "add-experimental-pairs", false, "Append matched trigger/control pairs and the shared anchor pair")
	cmd.Flags().BoolVarP(&flags.replace, "replace", "f", false, "Replace an existing complete split")
	cmd.Flags().StringSliceVarP(&flags.sources, "source-dataset", "d", nil, "Source corpora to draw from (defaults to generation.sources)")
	cmd.Flags().StringVarP(&flags.saveDir, "save-dir", "s", "", "Override paths.save_dir")
	cmd.Flags().Float64Var(&flags.triggerRatio, "trig-to-ctrl", 0, "Fraction of items carrying a trigger (defaults to generation.trigger_ratio)")
	cmd.Flags().IntVar(&flags.minFgs, "min-fgs", 0, "Minimum foreground clips per item")
	cmd.Flags().IntVar(&flags.maxFgs, "max-fgs", 0, "Maximum foreground clips per item")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent item writers (defaults to generation.workers)")
	return cmd
}

// applyGenerateFlags folds explicitly set flags into cfg and revalidates it.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config, flags *generateFlags) error {
	changed := cmd.Flags().Changed
	if changed("seed") {
		cfg.Generation.Seed = flags.seed
	}
	if changed("source-dataset") {
		cfg.Generation.Sources = normalizeNames(flags.sources)
	}
	if changed("save-dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(flags.saveDir))
		if err != nil {
			return fmt.Errorf("resolve save dir: %w", err)
		}
		cfg.Paths.SaveDir = dir
	}
	if changed("trig-to-ctrl") {
		cfg.Generation.TriggerRatio = flags.triggerRatio
	}
	if changed("min-fgs") {
		cfg.Generation.MinForegrounds = flags.minFgs
	}
	if changed("max-fgs") {
		cfg.Generation.MaxForegrounds = flags.maxFgs
	}
	if changed("workers") {
		cfg.Generation.Workers = flags.workers
	}
	if flags.samples < 0 {
		return pipeline.Wrap(pipeline.ErrValidation, "cli", "generate", "--num-samples must not be negative", nil)
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Wrap(pipeline.ErrConfiguration, "cli", "generate", "invalid flag overrides", err)
	}
	return cfg.EnsureDirectories()
}

func runGenerate(cmd *cobra.Command, cc *commandContext, cfg *config.Config, logger *slog.Logger, name, split string, flags generateFlags) (err error) {
	runCtx := cmd.Context()
	out := cmd.OutOrStdout()
	seed := cfg.Generation.Seed
	outputDir := filepath.Join(cfg.Paths.SaveDir, name, split)

	for _, result := range preflight.Failed(preflight.RunAll(runCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.StartRun(runCtx, catalog.Run{
		Dataset:   name,
		Split:     split,
		Seed:      seed,
		Requested: flags.samples,
		Sources:   cfg.Generation.Sources,
		Renderer:  cfg.Render.HRIRSource,
		OutputDir: outputDir,
	})
	if err != nil {
		return err
	}
	runCtx = pipeline.WithRunID(runCtx, run.ID)

	var (
		outcome  = catalog.Outcome{Status: catalog.StatusFailed}
		started  = time.Now()
		manifest *dataset.Manifest
	)
	defer func() {
		if err != nil {
			outcome.ErrorKind = pipeline.Kind(err)
			outcome.ErrorMessage = err.Error()
			if errors.Is(err, context.Canceled) {
				outcome.Status = catalog.StatusCancelled
			}
		}
		// The run context may already be cancelled; the catalog write must still land.
		if finishErr := store.FinishRun(context.WithoutCancel(runCtx), run.ID, outcome); finishErr != nil {
			logger.Warn("failed to record run outcome", logging.Error(finishErr))
		}
	}()

	p, err := dataset.Build(cfg, cfg.Generation.Sources, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	opts := []dataset.SplitOption{
		dataset.WithSeed(seed),
		dataset.WithExperimentalPairs(flags.pairs),
	}
	if flags.samples > 0 {
		opts = append(opts, dataset.WithNumSamples(flags.samples))
	}
	s, err := p.Dataset(name, seed).GetSplit(runCtx, split, opts...)
	if err != nil {
		return err
	}
	outcome.ItemsTotal = s.Len()

	var bar *itemProgress
	if cc.interactive(cmd.ErrOrStderr()) {
		bar = newItemProgress(runCtx, cmd.ErrOrStderr(), name+"/"+split, s.Len())
	}
	manifest, err = dataset.WriteSplit(runCtx, outputDir, s, dataset.WriteOptions{
		Replace:  flags.replace,
		Workers:  cfg.Generation.Workers,
		BitDepth: cfg.Audio.BitDepth,
		Renderer: p.Renderer.SetName(),
		OnItem: func(done, total int) {
			outcome.ItemsWritten = done
			bar.set(done)
		},
		Logger: logger,
	})
	bar.finish(err == nil)
	if err != nil {
		return err
	}

	outcome.Status = catalog.StatusCompleted
	outcome.ItemsWritten = manifest.ItemCount
	outcome.TriggerItems = manifest.TriggerCount

	report := generateReport{
		RunID:        run.ID,
		Dataset:      name,
		Split:        split,
		Seed:         seed,
		OutputDir:    outputDir,
		Items:        manifest.ItemCount,
		TriggerItems: manifest.TriggerCount,
		Pairs:        manifest.PairCount,
		PerCategory:  manifest.PerCategory,
		Renderer:     manifest.Renderer,
		Elapsed:      time.Since(started).Round(time.Millisecond).String(),
	}
	if cc.jsonOutput() {
		return writeJSON(cmd, report)
	}
	printGenerateReport(out, report)
	return nil
}

func printGenerateReport(out io.Writer, r generateReport) {
	fmt.Fprintf(out, "Wrote %s/%s to %s\n", r.Dataset, r.Split, r.OutputDir)
	fmt.Fprintf(out, "Run %s · seed %d · renderer %s · %s\n", r.RunID, r.Seed, r.Renderer, r.Elapsed)

	categories := make([]string, 0, len(r.PerCategory))
	for category := range r.PerCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	rows := make([][]string, 0, len(categories))
	for _, category := range categories {
		rows = append(rows, []string{category, strconv.Itoa(r.PerCategory[category])})
	}
	footer := []string{
		fmt.Sprintf("%d items (%d trigger, %d pairs)", r.Items, r.TriggerItems, r.Pairs),
		"",
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Category", "Items"}, rows, []columnAlignment{alignLeft, alignRight}, footer...))
	} else {
		fmt.Fprintln(out, footer[0])
	}
}

// checkPathName rejects dataset and split names that are not a single path segment.
func checkPathName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.TrimSpace(name) != name {
		return pipeline.Wrap(pipeline.ErrValidation, "cli", "generate",
			fmt.Sprintf("invalid name %q: use a single directory name", name), nil)
	}
	return nil
}

func normalizeNames(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
