package preflight

import (
	"context"

	"misophonia/internal/config"
	"misophonia/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free space a generation run expects under save_dir.
const minFreeBytes = 512 << 20

// RunAll executes every applicable check for cfg. Corpus checks cover
// generation.sources; the HRIR check only runs for hrir_source "sadie".
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Save directory", cfg.Paths.SaveDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckFreeSpace("Save directory space", cfg.Paths.SaveDir, minFreeBytes),
	}
	for _, name := range cfg.Generation.Sources {
		if ctx.Err() != nil {
			break
		}
		results = append(results, CheckCorpus(cfg, name))
	}
	if cfg.Render.HRIRSource == "sadie" {
		results = append(results, CheckHRIR(cfg))
	}
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, binaryResult(status))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckSystemDeps evaluates the external binaries for cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func binaryResult(s deps.Status) Result {
	r := Result{Name: s.Name, Passed: s.Available || s.Optional}
	switch {
	case s.Available:
		r.Detail = s.Command
	case s.Optional:
		r.Detail = s.Detail + " (optional: " + s.Description + ")"
	default:
		r.Detail = s.Detail + " (" + s.Description + ")"
	}
	return r
}
