package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"misophonia/internal/dataset"
	"misophonia/internal/pipeline"
)

func TestGenerateInspectAndRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"generate", "mini", "train", "-n", "6", "-r", "42", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var report generateReport
	decodeJSON(t, out, &report)
	if report.Items != 6 || report.TriggerItems != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := filepath.Join(env.cfg.Paths.SaveDir, "mini", "train")
	if report.OutputDir != want {
		t.Fatalf("output dir = %q, want %q", report.OutputDir, want)
	}
	if !dataset.Complete(want) {
		t.Fatalf("expected complete split at %s", want)
	}

	_, _, err = runCLI(t, []string{"generate", "mini", "train", "-n", "6", "-r", "42"}, env.configPath)
	if err == nil {
		t.Fatal("expected error regenerating a complete split without --replace")
	}
	if kind := pipeline.Kind(err); kind != pipeline.KindValidation {
		t.Fatalf("error kind = %q, want %q", kind, pipeline.KindValidation)
	}

	if _, _, err := runCLI(t, []string{"generate", "mini", "train", "-n", "6", "-r", "42", "-f"}, env.configPath); err != nil {
		t.Fatalf("generate --replace: %v", err)
	}

	out, _, err = runCLI(t, []string{"inspect", "mini", "train", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var inspected inspectReport
	decodeJSON(t, out, &inspected)
	if inspected.Items != 6 || len(inspected.Listing) != 6 || inspected.Seed != 42 {
		t.Fatalf("unexpected inspect report %+v", inspected)
	}

	out, _, err = runCLI(t, []string{"inspect", "mini"}, env.configPath)
	if err != nil {
		t.Fatalf("inspect splits: %v", err)
	}
	requireContains(t, out, "mini splits: train")

	out, _, err = runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []runView
	decodeJSON(t, out, &runs)
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	counts := map[string]int{}
	for _, run := range runs {
		counts[run.Status]++
	}
	if counts["completed"] != 2 || counts["failed"] != 1 {
		t.Fatalf("unexpected run statuses %v", counts)
	}

	out, _, err = runCLI(t, []string{"runs", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --status: %v", err)
	}
	requireContains(t, out, "mini/train")
	requireContains(t, out, pipeline.KindValidation)
}

func TestGenerateRejectsBadOverrides(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "mini", "train", "-n", "4", "--trig-to-ctrl", "1.5"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error for trigger ratio above 1")
	}
	if kind := pipeline.Kind(err); kind != pipeline.KindConfiguration {
		t.Fatalf("error kind = %q, want %q", kind, pipeline.KindConfiguration)
	}
	if _, statErr := os.Stat(filepath.Join(env.cfg.Paths.SaveDir, "mini", "train", dataset.ManifestFile)); !os.IsNotExist(statErr) {
		t.Fatalf("expected no manifest, stat err = %v", statErr)
	}
}

func TestGenerateRejectsPathNames(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{
		{"generate", "../escape", "train", "-n", "2"},
		{"generate", "mini", "a/b", "-n", "2"},
	} {
		_, _, err := runCLI(t, args, env.configPath)
		if kind := pipeline.Kind(err); kind != pipeline.KindValidation {
			t.Fatalf("%v: error kind = %q, want %q", args, kind, pipeline.KindValidation)
		}
	}
}

func TestInspectUnknownDataset(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"inspect", "missing", "train"}, env.configPath)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if kind := pipeline.Kind(err); kind != pipeline.KindNotFound {
		t.Fatalf("error kind = %q, want %q", kind, pipeline.KindNotFound)
	}
}

func TestSearchMetadata(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"search-metadata", "chew", "-d", "synthetic", "--limit", "0", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("search-metadata: %v", err)
	}
	var matches []clipMatch
	decodeJSON(t, out, &matches)
	if len(matches) == 0 {
		t.Fatal("expected chewing clips")
	}
	for _, m := range matches {
		if m.Category != "chewing" || m.Kind != "trigger" {
			t.Fatalf("unexpected match %+v", m)
		}
	}

	out, _, err = runCLI(t, []string{"search-metadata", "*_bed", "--kind", "background", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("search-metadata glob: %v", err)
	}
	matches = nil
	decodeJSON(t, out, &matches)
	if len(matches) == 0 {
		t.Fatal("expected noise bed clips")
	}
	for _, m := range matches {
		if m.Category != "noise_bed" {
			t.Fatalf("unexpected glob match %+v", m)
		}
	}

	if _, _, err := runCLI(t, []string{"search-metadata", "x", "--kind", "music"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDownloadRejectsUnknownCorpus(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"download", "nope"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown corpus")
	}
	requireContains(t, err.Error(), "esc50")

	out, _, err := runCLI(t, []string{"download", "--list", "esc50", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("download --list: %v", err)
	}
	var statuses []downloadStatus
	decodeJSON(t, out, &statuses)
	if len(statuses) != 1 || statuses[0].Corpus != "esc50" || statuses[0].Complete {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestCheckReportsResults(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, _ := runCLI(t, []string{"check", "--json"}, env.configPath)
	var results []checkView
	decodeJSON(t, out, &results)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Save directory", "Cache directory"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
}

func TestPrintErrorIncludesKindAndHint(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, &pipeline.MissingDataError{Corpus: "esc50", Path: "/data/esc50"})
	requireContains(t, buf.String(), "missing_data: ")
	requireContains(t, buf.String(), "hint: ")
}
