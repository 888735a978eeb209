package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"misophonia/internal/config"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
	"misophonia/internal/source/download"
)

var defaultDownloads = []string{"foams", "esc50", "fsd50k", "sadie"}

type downloadStatus struct {
	Corpus   string `json:"corpus"`
	Dir      string `json:"dir"`
	Complete bool   `json:"complete"`
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "download [datasets...]",
		Short: "Download and unpack source corpora",
		Long: `Download fetches the named corpora (default: foams esc50 fsd50k sadie)
into data_dir. Archives are verified by MD5 when a checksum is known, and
completed steps are skipped on rerun.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names := normalizeNames(args)
			if len(names) == 0 {
				names = defaultDownloads
			}
			corpora := make([]download.Corpus, 0, len(names))
			for _, name := range names {
				corpus, ok := download.Lookup(name)
				if !ok {
					return pipeline.Wrap(pipeline.ErrNotFound, "cli", "download",
						fmt.Sprintf("unknown corpus %q (available: %s)", name, strings.Join(download.Names(), ", ")), nil)
				}
				corpora = append(corpora, corpus)
			}

			if list {
				return printDownloadStatus(cmd, ctx, cfg, corpora)
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			opts := []download.Option{
				download.WithAttempts(cfg.Download.Attempts),
				download.WithTimeout(time.Duration(cfg.Download.TimeoutSeconds) * time.Second),
				download.WithSevenZip(cfg.SevenZipBinary()),
				download.WithLogger(logger),
			}
			if ctx.interactive(cmd.ErrOrStderr()) {
				opts = append(opts, download.WithProgress(cmd.ErrOrStderr()))
			}
			fetcher := download.New(opts...)
			for _, corpus := range corpora {
				dir := corpusDir(cfg, corpus.Name)
				if err := fetcher.Fetch(cmd.Context(), corpus, dir); err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s ready in %s\n", corpus.Name, dir)
				}
			}
			if ctx.jsonOutput() {
				return printDownloadStatus(cmd, ctx, cfg, corpora)
			}
			logger.Info("downloads complete", logging.Int("corpora", len(corpora)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "Show download status without fetching")
	return cmd
}

// corpusDir places the HRIR set at render.hrir_dir so a custom location is
// downloaded to where the renderer looks for it.
func corpusDir(cfg *config.Config, name string) string {
	if name == "sadie" && cfg.Render.HRIRDir != "" {
		return cfg.Render.HRIRDir
	}
	return cfg.CorpusDir(name)
}

func printDownloadStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, corpora []download.Corpus) error {
	statuses := make([]downloadStatus, 0, len(corpora))
	for _, corpus := range corpora {
		dir := corpusDir(cfg, corpus.Name)
		statuses = append(statuses, downloadStatus{
			Corpus:   corpus.Name,
			Dir:      dir,
			Complete: download.Complete(corpus, dir),
		})
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, statuses)
	}
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{s.Corpus, yesNo(s.Complete), s.Dir})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Corpus", "Complete", "Directory"}, rows, nil))
	return nil
}
