package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"misophonia/internal/fileutil"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

const (
	defaultAttempts      = 5
	defaultBackoffBase   = 1.5
	defaultHeaderTimeout = 30 * time.Second
)

// Fetcher downloads corpora with resume, retry, and checksum verification.
type Fetcher struct {
	client      *http.Client
	attempts    int
	backoffBase float64
	sleeper     func(context.Context, time.Duration) error
	sevenZip    string
	progressOut io.Writer
	logger      *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithAttempts overrides the number of download attempts per file (defaults to 5).
func WithAttempts(attempts int) Option {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleeper != nil {
			f.sleeper = sleeper
		}
	}
}

// WithSevenZip sets the 7z executable used for multi-part archives.
func WithSevenZip(bin string) Option {
	return func(f *Fetcher) {
		if bin != "" {
			f.sevenZip = bin
		}
	}
}

// WithProgress renders progress bars to w. Nil disables bars.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) {
		f.progressOut = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "download")
	}
}

// WithTimeout bounds how long a server may take to start responding.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout <= 0 {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		f.client = &http.Client{Transport: transport}
	}
}

// New returns a Fetcher.
func New(opts ...Option) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = defaultHeaderTimeout
	f := &Fetcher{
		client:      &http.Client{Transport: transport},
		attempts:    defaultAttempts,
		backoffBase: defaultBackoffBase,
		sleeper:     sleepContext,
		sevenZip:    "7z",
		logger:      logging.NewComponentLogger(nil, "download"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetch downloads and unpacks every group of corpus into dir. Completed steps
// recorded in state files are skipped.
func (f *Fetcher) Fetch(ctx context.Context, corpus Corpus, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	logger := f.logger.With(logging.String(logging.FieldCorpus, corpus.Name))
	if Complete(corpus, dir) {
		logger.Info("corpus already downloaded", logging.String("dir", dir))
		return nil
	}

	var progress *mpb.Progress
	if f.progressOut != nil {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(f.progressOut), mpb.WithWidth(48))
	}
	for _, group := range corpus.Groups {
		if err := f.fetchGroup(ctx, group, dir, progress, logger); err != nil {
			if progress != nil {
				progress.Shutdown()
			}
			return err
		}
	}
	if progress != nil {
		progress.Wait()
	}
	logger.Info("corpus ready", logging.String("dir", dir))
	return nil
}

func (f *Fetcher) fetchGroup(ctx context.Context, group Group, dir string, progress *mpb.Progress, logger *slog.Logger) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, file := range group.Files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.DownloadFile(ctx, file, dir, progress); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	if !group.Unzip {
		return nil
	}
	return f.extractGroup(ctx, group, dir, logger)
}

// DownloadFile fetches one file into dir, resuming partial downloads and
// retrying with exponential backoff. It returns the local path.
func (f *Fetcher) DownloadFile(ctx context.Context, file File, dir string, progress *mpb.Progress) (string, error) {
	dst := filepath.Join(dir, file.FileName())
	logger := f.logger.With(logging.String("file", file.FileName()))
	st, err := ReadState(dst)
	if err != nil {
		return "", err
	}
	if st.Downloaded {
		logger.Debug("already downloaded")
		return dst, nil
	}

	if u, err := url.Parse(file.URL); err == nil && u.Scheme == "file" {
		if err := fileutil.CopyFileVerified(u.Path, dst); err != nil {
			return "", pipeline.Wrap(pipeline.ErrNotFound, "download", "copy local file", u.Path, err)
		}
	} else {
		if err := f.downloadWithRetry(ctx, file, dst, progress, logger); err != nil {
			return "", err
		}
	}

	if file.MD5 != "" {
		sum, err := md5File(dst)
		if err != nil {
			return "", err
		}
		if sum != file.MD5 {
			_ = os.Remove(dst)
			return "", pipeline.Wrap(pipeline.ErrValidation, "download", "verify checksum",
				fmt.Sprintf("%s: md5 %s, expected %s", file.FileName(), sum, file.MD5), nil)
		}
	}
	if err := updateState(dst, func(s *State) { s.Downloaded = true }); err != nil {
		return "", err
	}
	logger.Info("downloaded", logging.String("path", dst))
	return dst, nil
}

func (f *Fetcher) downloadWithRetry(ctx context.Context, file File, dst string, progress *mpb.Progress, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		lastErr = f.fetchOnce(ctx, file, dst, progress)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == f.attempts {
			break
		}
		delay := time.Duration(math.Pow(f.backoffBase, float64(attempt)) * float64(time.Second))
		logging.WarnWithContext(logger, "download attempt failed; retrying", "download_retry",
			logging.Int("attempt", attempt),
			logging.Int("attempts", f.attempts),
			logging.Duration("retry_in", delay),
			logging.Error(lastErr),
			logging.String(logging.FieldErrorHint, "check network connectivity"),
			logging.String(logging.FieldImpact, "download resumes after the delay"),
		)
		if err := f.sleeper(ctx, delay); err != nil {
			return err
		}
	}
	return pipeline.Wrap(pipeline.ErrTransient, "download", "fetch",
		fmt.Sprintf("%s failed after %d attempts", file.FileName(), f.attempts), lastErr)
}

// fetchOnce appends the missing tail of the remote file to dst.
func (f *Fetcher) fetchOnce(ctx context.Context, file File, dst string, progress *mpb.Progress) error {
	var existing int64
	if info, err := os.Stat(dst); err == nil {
		existing = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return err
	}
	if existing > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(existing, 10)+"-")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && existing > 0:
		return nil
	case resp.StatusCode == http.StatusPartialContent && existing > 0:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		existing = 0
		flags |= os.O_TRUNC
	default:
		return fmt.Errorf("GET %s: unexpected status %s", file.URL, resp.Status)
	}

	out, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	var body io.Reader = resp.Body
	var bar *mpb.Bar
	if progress != nil {
		total := int64(0)
		if resp.ContentLength > 0 {
			total = resp.ContentLength + existing
		}
		bar = progress.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(file.FileName()+" ", decor.WCSyncSpaceR),
				decor.CountersKibiByte("% .1f / % .1f"),
			),
			mpb.AppendDecorators(
				decor.AverageETA(decor.ET_STYLE_GO),
				decor.Name(" "),
				decor.Percentage(),
			),
		)
		bar.SetCurrent(existing)
		proxy := bar.ProxyReader(resp.Body)
		defer proxy.Close()
		body = proxy
	}

	_, err = io.Copy(out, body)
	if bar != nil {
		if err != nil {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
	}
	if err != nil {
		return err
	}
	return out.Sync()
}

func md5File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var errNoZip = errors.New("zip group has no .zip file")
