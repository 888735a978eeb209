package preflight

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"misophonia/internal/config"
	"misophonia/internal/source/download"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCorpus reports whether a source corpus is available locally. The
// synthetic corpus always is; file corpora pass when the downloader
// finished them or when WAV files are present under the corpus directory.
func CheckCorpus(cfg *config.Config, name string) Result {
	label := "Corpus " + name
	if name == "synthetic" {
		return Result{Name: label, Passed: true, Detail: "generated in memory"}
	}
	dir := cfg.CorpusDir(name)
	if corpus, ok := download.Lookup(name); ok && download.Complete(corpus, dir) {
		return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s (downloaded)", dir)}
	}
	n, err := countWAVs(dir)
	if err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	if n == 0 {
		return Result{Name: label, Detail: fmt.Sprintf("%s (no audio; run `misophonia download %s`)", dir, name)}
	}
	return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s (%d wav files)", dir, n)}
}

// CheckHRIR verifies that the SADIE impulse response directory matches the
// configured glob.
func CheckHRIR(cfg *config.Config) Result {
	const name = "HRIR set"
	dir := cfg.Render.HRIRDir
	if _, err := os.Stat(dir); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (missing; run `misophonia download sadie`)", dir)}
	}
	matches, err := doublestar.Glob(os.DirFS(dir), cfg.Render.HRIRGlob)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	if len(matches) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no files match %s)", dir, cfg.Render.HRIRGlob)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d impulse responses)", dir, len(matches))}
}

func countWAVs(dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.{wav,WAV}")
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}
