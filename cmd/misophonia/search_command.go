package main

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"misophonia/internal/pipeline"
	"misophonia/internal/source"
)

type clipMatch struct {
	ID          string  `json:"id"`
	Corpus      string  `json:"corpus"`
	Kind        string  `json:"kind"`
	Category    string  `json:"category"`
	SourceLabel string  `json:"source_label"`
	Seconds     float64 `json:"seconds"`
	License     string  `json:"license"`
	Path        string  `json:"path,omitempty"`
}

func newSearchMetadataCommand(ctx *commandContext) *cobra.Command {
	var (
		sources []string
		kinds   []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search-metadata <query>",
		Short: "Search clip labels across source corpora",
		Long: `Search-metadata lists clips whose category, source label or id contains
the query. Queries with * or ? are matched as glob patterns against the
canonical category and source label.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			names := normalizeNames(sources)
			if len(names) == 0 {
				names = cfg.Generation.Sources
			}

			var filter source.Filter
			for _, raw := range normalizeNames(kinds) {
				kind, ok := source.ParseKind(raw)
				if !ok {
					return pipeline.Wrap(pipeline.ErrValidation, "cli", "search metadata",
						fmt.Sprintf("unknown kind %q (want trigger, control or background)", raw), nil)
				}
				filter.Kinds = append(filter.Kinds, kind)
			}

			reg, err := source.ForSources(cfg, names, logger)
			if err != nil {
				return err
			}
			defer reg.Close()

			clips, err := reg.ListClips(cmd.Context(), filter)
			if err != nil {
				return err
			}
			matches, err := searchClips(clips, args[0], limit)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, matches)
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintf(out, "No clips match %q in %s\n", args[0], strings.Join(names, ", "))
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, m := range matches {
				rows = append(rows, []string{
					m.ID,
					m.Corpus,
					m.Kind,
					source.DisplayName(m.Category),
					m.SourceLabel,
					fmt.Sprintf("%.2fs", m.Seconds),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Clip", "Corpus", "Kind", "Category", "Source label", "Length"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				fmt.Sprintf("%d clips", len(matches)),
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "source-dataset", "d", nil, "Corpora to search (defaults to generation.sources)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Restrict to clip kinds (trigger, control, background)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum clips to list (0 lists all)")
	return cmd
}

// searchClips returns the clips matching query in listing order.
func searchClips(clips []source.Clip, query string, limit int) ([]clipMatch, error) {
	query = strings.TrimSpace(query)
	glob := strings.ContainsAny(query, "*?[")
	if glob {
		query = source.Canonical(query)
		if !doublestar.ValidatePattern(query) {
			return nil, pipeline.Wrap(pipeline.ErrValidation, "cli", "search metadata",
				fmt.Sprintf("invalid pattern %q", query), nil)
		}
	} else {
		query = strings.ToLower(query)
	}

	var out []clipMatch
	for _, clip := range clips {
		if !clipMatches(clip, query, glob) {
			continue
		}
		out = append(out, clipMatch{
			ID:          clip.ID,
			Corpus:      clip.Corpus,
			Kind:        string(clip.Kind),
			Category:    clip.Category,
			SourceLabel: clip.SourceLabel,
			Seconds:     clip.Duration.Seconds(),
			License:     clip.License,
			Path:        clip.Path,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func clipMatches(clip source.Clip, query string, glob bool) bool {
	if glob {
		for _, candidate := range []string{clip.Category, source.Canonical(clip.SourceLabel)} {
			if ok, _ := doublestar.Match(query, candidate); ok {
				return true
			}
		}
		return false
	}
	if query == "" {
		return true
	}
	for _, candidate := range []string{clip.Category, clip.SourceLabel, clip.ID} {
		if strings.Contains(strings.ToLower(candidate), query) {
			return true
		}
	}
	return strings.Contains(clip.Category, source.Canonical(query))
}
