// Package download fetches remote tracks to local files before file playback.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// ObjectFetcher reads objects from an object store.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, bucket, key string, w io.Writer, progress func(float64)) error
}

var (
	ErrBadStatus       = errors.New("unexpected download status")
	ErrNoObjectStore   = errors.New("object storage is not configured")
	ErrUnsupportedType = errors.New("unsupported location scheme")
)

// progressStep is the minimum fraction change reported between two callbacks.
const progressStep = 0.01

// Downloader 远程音频下载器
type Downloader struct {
	client    *http.Client
	dir       string
	userAgent string
	objects   ObjectFetcher
}

// New creates a downloader writing into dir. An empty dir uses the OS temp directory.
func New(dir, userAgent string, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Downloader{client: client, dir: dir, userAgent: userAgent}
}

// WithObjects enables minio:// locations.
func (d *Downloader) WithObjects(o ObjectFetcher) *Downloader {
	d.objects = o
	return d
}

// Fetch makes loc available as a local file. progress receives the downloaded fraction in
// [0, 1] from the downloading goroutine. The returned cleanup removes files created by the
// download; it is a no-op for local locations.
func (d *Downloader) Fetch(ctx context.Context, loc model.Location, progress func(float64)) (string, func(), error) {
	if progress == nil {
		progress = func(float64) {}
	}
	switch loc.Scheme {
	case "file":
		return loc.Path, func() {}, nil
	case "http", "https":
		return d.into(ctx, loc, func(f *os.File) error {
			return d.fetchHTTP(ctx, loc.Raw, f, progress)
		})
	case "minio":
		if d.objects == nil {
			return "", nil, ErrNoObjectStore
		}
		return d.into(ctx, loc, func(f *os.File) error {
			return d.objects.FetchObject(ctx, loc.Bucket, loc.Path, f, progress)
		})
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, loc.Scheme)
	}
}

// into runs fill against a fresh file in the download dir and removes it on failure.
func (d *Downloader) into(ctx context.Context, loc model.Location, fill func(*os.File) error) (string, func(), error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create download dir: %w", err)
	}
	name := uuid.New().String() + extension(loc.Path)
	target := filepath.Join(d.dir, name)

	out, err := os.Create(target)
	if err != nil {
		return "", nil, fmt.Errorf("create file: %w", err)
	}

	start := time.Now()
	err = fill(out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("save file: %w", cerr)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(target)
		return "", nil, err
	}

	logger.Info("track downloaded",
		logger.String("url", loc.Raw),
		logger.String("file", target),
		logger.Duration("took", time.Since(start)))
	return target, func() { os.Remove(target) }, nil
}

func (d *Downloader) fetchHTTP(ctx context.Context, url string, w io.Writer, progress func(float64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	pw := NewProgressWriter(w, resp.ContentLength, progress)
	if _, err := io.Copy(pw, resp.Body); err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	pw.Done()
	return nil
}

// ProgressWriter counts bytes written and reports the fraction of total.
type ProgressWriter struct {
	w        io.Writer
	total    int64
	written  int64
	reported float64
	progress func(float64)
}

// NewProgressWriter wraps w. When total is unknown (<= 0) only completion is reported.
func NewProgressWriter(w io.Writer, total int64, progress func(float64)) *ProgressWriter {
	if progress == nil {
		progress = func(float64) {}
	}
	return &ProgressWriter{w: w, total: total, reported: -1, progress: progress}
}

func (p *ProgressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.total > 0 {
		f := float64(p.written) / float64(p.total)
		if f > 1 {
			f = 1
		}
		if f-p.reported >= progressStep || (f == 1 && p.reported < 1) {
			p.reported = f
			p.progress(f)
		}
	}
	return n, err
}

// Done reports completion if it was not reported yet.
func (p *ProgressWriter) Done() {
	if p.reported < 1 {
		p.reported = 1
		p.progress(1)
	}
}

// Written is the byte count so far.
func (p *ProgressWriter) Written() int64 {
	return p.written
}

func extension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 6 {
		return ".mp3"
	}
	return ext
}
