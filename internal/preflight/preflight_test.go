package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"misophonia/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("space", dir, 1); !r.Passed {
		t.Fatalf("expected at least one free byte: %s", r.Detail)
	}
	if r := CheckFreeSpace("space", dir, 1<<62); r.Passed {
		t.Fatalf("expected failure for an impossible requirement: %s", r.Detail)
	}
	if r := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); r.Passed {
		t.Fatal("expected failure for a missing path")
	}
}

func TestCheckCorpus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckCorpus(cfg, "synthetic"); !r.Passed {
		t.Fatalf("synthetic corpus should always pass: %s", r.Detail)
	}
	if r := CheckCorpus(cfg, "esc50"); r.Passed {
		t.Fatalf("expected esc50 to be missing: %s", r.Detail)
	}
	testsupport.WriteTone(t, filepath.Join(cfg.CorpusDir("esc50"), "ESC-50-master", "audio", "1-100-A-0.wav"), 8000, 0.1, 440)
	if r := CheckCorpus(cfg, "esc50"); !r.Passed {
		t.Fatalf("expected esc50 with audio to pass: %s", r.Detail)
	}
}

func TestCheckHRIR(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHRIRSource("sadie"))
	if r := CheckHRIR(cfg); r.Passed {
		t.Fatalf("expected missing HRIR dir to fail: %s", r.Detail)
	}
	cfg.Render.HRIRGlob = "**/azi_*_ele_*.wav"
	path := filepath.Join(cfg.Render.HRIRDir, "D2", "azi_0,0_ele_0,0.wav")
	testsupport.WriteFile(t, path, 16)
	if r := CheckHRIR(cfg); !r.Passed {
		t.Fatalf("expected HRIR dir to pass: %s", r.Detail)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range results {
		if r.Name == "Save directory space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("check %s failed: %s", r.Name, r.Detail)
		}
	}

	cfg.Generation.Sources = []string{"synthetic", "foams"}
	failed := Failed(RunAll(context.Background(), cfg))
	found := false
	for _, r := range failed {
		if r.Name == "Corpus foams" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the foams corpus check to fail, got %+v", failed)
	}
}
