package download

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

// splitParts finds the .zip file of a zip group and its .z01… parts.
func splitParts(dir string, group Group) (string, []string, error) {
	var base string
	var parts []string
	for _, f := range group.Files {
		name := f.FileName()
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case ext == ".zip":
			if base != "" {
				return "", nil, fmt.Errorf("zip group has more than one .zip file: %s, %s", filepath.Base(base), name)
			}
			base = filepath.Join(dir, name)
		case strings.HasPrefix(ext, ".z"):
			parts = append(parts, filepath.Join(dir, name))
		}
	}
	if base == "" {
		return "", nil, errNoZip
	}
	stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	for _, p := range parts {
		if strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) != stem {
			return "", nil, fmt.Errorf("archive part %s does not belong to %s", filepath.Base(p), filepath.Base(base))
		}
	}
	return base, parts, nil
}

func (f *Fetcher) extractGroup(ctx context.Context, group Group, dir string, logger *slog.Logger) error {
	base, parts, err := splitParts(dir, group)
	if err != nil {
		return err
	}
	st, err := ReadState(base)
	if err != nil {
		return err
	}
	if st.Unzipped {
		return nil
	}

	stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	extractTo := filepath.Join(dir, stem+"_extracted")
	if err := os.RemoveAll(extractTo); err != nil {
		return err
	}
	logger.Info("extracting archive", logging.String("archive", filepath.Base(base)), logging.Int("parts", len(parts)))
	if len(parts) == 0 {
		err = Unzip(base, extractTo)
	} else {
		err = f.sevenZipExtract(ctx, base, extractTo)
	}
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(extractTo, "__MACOSX")); err != nil {
		return err
	}
	if group.Rename != "" {
		if err := renameSingleRoot(extractTo, filepath.Join(dir, group.Rename), logger); err != nil {
			return err
		}
	}

	for _, p := range append([]string{base}, parts...) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return updateState(base, func(s *State) { s.Unzipped = true })
}

// renameSingleRoot moves the only top-level directory of extractTo to target
// and removes extractTo. Any other layout is left in place with a warning.
func renameSingleRoot(extractTo, target string, logger *slog.Logger) error {
	entries, err := os.ReadDir(extractTo)
	if err != nil {
		return err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 {
		logging.WarnWithContext(logger, "archive does not have a single top-level directory; leaving layout", "download_layout",
			logging.String("dir", extractTo),
			logging.Any("top_level", dirs),
			logging.String(logging.FieldErrorHint, "move the extracted files to "+target+" by hand"),
			logging.String(logging.FieldImpact, "the source adapter may not find the corpus"),
		)
		return nil
	}
	if _, err := os.Stat(target); err == nil {
		return pipeline.Wrap(pipeline.ErrValidation, "download", "rename extracted dir",
			fmt.Sprintf("%s already exists", target), nil)
	}
	if err := os.Rename(filepath.Join(extractTo, dirs[0]), target); err != nil {
		return err
	}
	return os.RemoveAll(extractTo)
}

// Unzip extracts a single-file zip archive into dest, refusing entries that
// would escape it.
func Unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return pipeline.Wrap(pipeline.ErrValidation, "download", "open archive", archive, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return pipeline.Wrap(pipeline.ErrValidation, "download", "extract archive",
				fmt.Sprintf("entry %q escapes the destination", f.Name), nil)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (f *Fetcher) sevenZipExtract(ctx context.Context, base, dest string) error {
	if _, err := exec.LookPath(f.sevenZip); err != nil {
		return pipeline.Wrap(pipeline.ErrExternalTool, "download", "extract multi-part archive",
			f.sevenZip+" not found in PATH; install p7zip to unpack multi-part archives", err)
	}
	cmd := exec.CommandContext(ctx, f.sevenZip, "x", base, "-o"+dest, "-y")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return pipeline.Wrap(pipeline.ErrExternalTool, "download", "extract multi-part archive",
			strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
