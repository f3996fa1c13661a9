package source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/resilience"
)

const maxArchiveBytes = 256 << 20

// Archive downloads a zip whose entries are laid out as
// [prefix/]<Company>/<window>.csv.
type Archive struct {
	url     string
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewArchive(url string, timeout time.Duration, attempts int) *Archive {
	return &Archive{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		retry:   resilience.RetryConfig{MaxAttempts: attempts, InitialDelay: 500 * time.Millisecond},
		breaker: resilience.NewCircuitBreaker("source-archive", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "source-archive"),
	}
}

// Breaker exposes the circuit breaker guarding downloads.
func (a *Archive) Breaker() *resilience.CircuitBreaker {
	return a.breaker
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) Fetch(ctx context.Context) (Raw, error) {
	var body []byte
	err := resilience.Retry(ctx, "archive-download", a.retry, func() error {
		return a.breaker.Execute(func() error {
			b, err := a.download(ctx)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %v: %w", a.url, err, apperrors.ErrSourceUnavailable)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %v: %w", err, apperrors.ErrSourceUnavailable)
	}
	raw := make(Raw)
	for _, f := range zr.File {
		company, ok := companyOf(f.Name)
		if !ok || f.FileInfo().IsDir() || !isTable(f.Name) {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			a.logger.Warn("skipping unreadable archive entry", "entry", f.Name, "error", err)
			continue
		}
		raw.add(company, recency.LabelForFile(stem(f.Name)), content)
	}
	a.logger.Debug("archive read", "bytes", len(body), "companies", len(raw), "files", raw.Files())
	return nonEmpty(a.Name(), raw)
}

func (a *Archive) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxArchiveBytes {
		return nil, resilience.Permanent(fmt.Errorf("archive exceeds %d bytes", maxArchiveBytes))
	}
	return body, nil
}

// companyOf returns the directory directly containing name.
func companyOf(name string) (string, bool) {
	if strings.HasPrefix(name, "__MACOSX/") {
		return "", false
	}
	dir := path.Dir(strings.TrimPrefix(name, "/"))
	if dir == "." || dir == "/" {
		return "", false
	}
	company := path.Base(dir)
	if strings.HasPrefix(company, ".") {
		return "", false
	}
	return company, true
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxArchiveBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
