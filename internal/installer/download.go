package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of download retries
	DefaultRetries = 3
	// DefaultBackoff is the delay before the first retry; it doubles per retry.
	DefaultBackoff = time.Second
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "keg/1.0"

	partSuffix = ".part"
)

// Downloader handles HTTP downloads with retry logic
type Downloader struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
	progress  io.Writer
}

// NewDownloader creates a new downloader. A nil client gets a default one
// that follows up to 10 redirects.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	return &Downloader{
		client:    client,
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
		backoff:   DefaultBackoff,
	}
}

// attempt describes the outcome of one GET.
type attempt struct {
	status      int
	acceptRange bool
	retryable   bool
}

// DownloadToFile downloads url to destPath. Bytes are staged in
// destPath+".part" and renamed into place once complete. Transient failures
// are retried with exponential backoff; a retry continues a partial file with
// a Range request when the server advertised byte ranges. Failures are
// reported as *FetchError and leave no staging file behind.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	partPath := destPath + partSuffix

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	var (
		lastErr    error
		lastStatus int
		attempts   int
		resumable  bool
	)

	for n := 0; n <= d.retries; n++ {
		if ctx.Err() != nil {
			os.Remove(partPath)
			return &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: ctx.Err()}
		}

		if n > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := d.backoff << (n - 1)
			logger.WarnKV(ctx, "Retrying download", "url", url, "attempt", n+1, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				os.Remove(partPath)
				return &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: ctx.Err()}
			}
		}

		attempts++
		res, err := d.downloadOnce(ctx, url, partPath, resumable)
		if res.acceptRange {
			resumable = true
		}
		if err == nil {
			if err := os.Rename(partPath, destPath); err != nil {
				os.Remove(partPath)
				return &FetchError{URL: url, Attempts: attempts, Err: fmt.Errorf("rename staging file: %w", err)}
			}
			return nil
		}

		lastErr, lastStatus = err, res.status

		if ctx.Err() != nil {
			os.Remove(partPath)
			return &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: ctx.Err()}
		}
		if !res.retryable {
			break
		}
	}

	os.Remove(partPath)
	return &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

// downloadOnce performs a single download attempt into partPath.
func (d *Downloader) downloadOnce(ctx context.Context, url, partPath string, resume bool) (attempt, error) {
	var offset int64
	if resume {
		if info, err := os.Stat(partPath); err == nil {
			offset = info.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attempt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return attempt{retryable: true}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	res := attempt{
		status:      resp.StatusCode,
		acceptRange: resp.Header.Get("Accept-Ranges") == "bytes",
	}

	flags := os.O_CREATE | os.O_WRONLY
	total := resp.ContentLength
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
		if total >= 0 {
			total += offset
		}
	case resp.StatusCode == http.StatusOK:
		// Full body: any partial data is discarded.
		flags |= os.O_TRUNC
		offset = 0
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		os.Remove(partPath)
		res.retryable = true
		return res, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		res.retryable = isRetryableStatus(resp.StatusCode)
		return res, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return res, fmt.Errorf("create staging file: %w", err)
	}

	var w io.Writer = file
	if d.progress != nil {
		bar := newProgressBar(d.progress, total, path.Base(req.URL.Path))
		if offset > 0 {
			_ = bar.Add64(offset)
		}
		w = io.MultiWriter(file, bar)
	}

	_, copyErr := io.Copy(w, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		// The bytes that did arrive stay in partPath for a resumed attempt.
		res.retryable = true
		return res, fmt.Errorf("copy response body: %w", copyErr)
	}
	if closeErr != nil {
		return res, fmt.Errorf("close staging file: %w", closeErr)
	}

	return res, nil
}

// isRetryableStatus reports whether an HTTP status is worth another attempt.
func isRetryableStatus(code int) bool {
	switch {
	case code >= 500:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func newProgressBar(w io.Writer, size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

// fileExists checks if a file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
