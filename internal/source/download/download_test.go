package download

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func serve(data []byte, requests *atomic.Int32, ranges *[]string, mu *sync.Mutex) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if ranges != nil {
			mu.Lock()
			*ranges = append(*ranges, r.Header.Get("Range"))
			mu.Unlock()
		}
		http.ServeContent(w, r, "file", time.Unix(0, 0), bytes.NewReader(data))
	}))
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestFetchExtractsAndRenames(t *testing.T) {
	data := buildZip(t, map[string]string{
		"Corpus-abc123/meta/list.csv": "a,b\n",
		"Corpus-abc123/audio/1.wav":   "RIFF",
		"__MACOSX/._list.csv":         "junk",
	})
	var requests atomic.Int32
	srv := serve(data, &requests, nil, nil)
	defer srv.Close()

	corpus := Corpus{Name: "test", Groups: []Group{{
		Files:  []File{{URL: srv.URL + "/files/corpus.zip?download=1", MD5: md5Hex(data)}},
		Unzip:  true,
		Rename: "Corpus",
	}}}
	dir := t.TempDir()
	f := New(WithSleeper(noSleep), WithLogger(logging.NewNop()))
	if err := f.Fetch(context.Background(), corpus, dir); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "Corpus", "meta", "list.csv")); err != nil {
		t.Fatalf("renamed corpus not found: %v", err)
	}
	for _, gone := range []string{"corpus.zip", "corpus_extracted", "Corpus/__MACOSX", "__MACOSX"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist, stat err=%v", gone, err)
		}
	}
	if !Complete(corpus, dir) {
		t.Fatal("corpus should be complete")
	}

	before := requests.Load()
	if err := f.Fetch(context.Background(), corpus, dir); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if requests.Load() != before {
		t.Fatal("completed corpus was downloaded again")
	}
}

func TestDownloadResumesPartialFile(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	var requests atomic.Int32
	var mu sync.Mutex
	var ranges []string
	srv := serve(data, &requests, &ranges, &mu)
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), data[:4000], 0o644); err != nil {
		t.Fatalf("seed partial: %v", err)
	}
	f := New(WithSleeper(noSleep))
	path, err := f.DownloadFile(context.Background(), File{URL: srv.URL + "/blob.bin", MD5: md5Hex(data)}, dir, nil)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("resumed file differs (err=%v, len=%d)", err, len(got))
	}
	if len(ranges) != 1 || ranges[0] != "bytes=4000-" {
		t.Fatalf("expected one ranged request, got %q", ranges)
	}
	st, err := ReadState(path)
	if err != nil || !st.Downloaded {
		t.Fatalf("state not recorded: %+v err=%v", st, err)
	}
}

func TestDownloadRetriesWithBackoff(t *testing.T) {
	data := []byte("payload")
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	var delays []time.Duration
	f := New(WithSleeper(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}), WithLogger(logging.NewNop()))
	if _, err := f.DownloadFile(context.Background(), File{URL: srv.URL + "/p.txt"}, t.TempDir(), nil); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	want := []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}

	f = New(WithSleeper(noSleep), WithAttempts(2), WithLogger(logging.NewNop()))
	calls.Store(-10)
	_, err := f.DownloadFile(context.Background(), File{URL: srv.URL + "/q.txt"}, t.TempDir(), nil)
	if !errors.Is(err, pipeline.ErrTransient) {
		t.Fatalf("expected transient error after attempts, got %v", err)
	}
}

func TestDownloadRejectsChecksumMismatch(t *testing.T) {
	var requests atomic.Int32
	srv := serve([]byte("tampered"), &requests, nil, nil)
	defer srv.Close()

	dir := t.TempDir()
	_, err := New(WithSleeper(noSleep)).DownloadFile(context.Background(), File{URL: srv.URL + "/x.csv", MD5: md5Hex([]byte("original"))}, dir, nil)
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.csv")); !os.IsNotExist(err) {
		t.Fatal("corrupt download should be removed")
	}
}

func TestDownloadLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "segmentation_info.csv")
	content := []byte("id,label\n1,chewing\n")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dir := t.TempDir()
	path, err := New().DownloadFile(context.Background(), File{URL: "file://" + src, MD5: md5Hex(content)}, dir, nil)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if got, _ := os.ReadFile(path); !bytes.Equal(got, content) {
		t.Fatalf("copied content = %q", got)
	}
}

func TestUnzipRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	if err := os.WriteFile(archive, buildZip(t, map[string]string{"../escape.txt": "x"}), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Unzip(archive, filepath.Join(dir, "out")); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("entry escaped the destination")
	}
}

func TestSplitParts(t *testing.T) {
	group := Group{Files: []File{
		{URL: "https://example.org/FSD50K.dev_audio.zip?download=1"},
		{URL: "https://example.org/FSD50K.dev_audio.z01?download=1"},
		{URL: "https://example.org/FSD50K.dev_audio.z02?download=1"},
	}, Unzip: true}
	base, parts, err := splitParts("/data", group)
	if err != nil {
		t.Fatalf("splitParts: %v", err)
	}
	if base != filepath.Join("/data", "FSD50K.dev_audio.zip") || len(parts) != 2 {
		t.Fatalf("base=%s parts=%v", base, parts)
	}
	if _, ok := Lookup("fsd50k"); !ok {
		t.Fatal("fsd50k corpus missing")
	}
}
