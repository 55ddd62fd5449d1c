// Package pdf downloads filing attachments and extracts their text with the
// pdftotext utility (poppler-utils). Extraction is best-effort: malformed or
// image-only documents yield an empty string, never an error that stops a
// job.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"filingscout/internal/ports"
)

const (
	extractTimeout = 60 * time.Second
	// maxDownload caps attachment size; filings past this are truncated
	// before extraction.
	maxDownload = 32 << 20
)

// Downloader fetches attachment bytes over HTTP.
type Downloader struct {
	client    *http.Client
	userAgent string
}

var _ ports.Downloader = (*Downloader)(nil)

// NewDownloader wires an HTTP client; a nil client gets sane timeouts.
func NewDownloader(client *http.Client, userAgent string) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{client: client, userAgent: userAgent}
}

// Download returns the attachment body.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return data, nil
}

// Extractor shells out to pdftotext.
type Extractor struct {
	logger *slog.Logger
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor builds the extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractText writes the bytes to a temp file and runs pdftotext over it.
// Any failure (missing binary, protected file, image-only scan) returns "".
func (e *Extractor) ExtractText(ctx context.Context, data []byte) string {
	if len(data) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "filing_*.pdf")
	if err != nil {
		e.debug("create temp file", "error", err)
		return ""
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		e.debug("write temp file", "error", err)
		return ""
	}
	if err := tmp.Close(); err != nil {
		e.debug("close temp file", "error", err)
		return ""
	}

	cmd := exec.CommandContext(ctx, "pdftotext", "-raw", tmpName, "-")

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.debug("pdftotext failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return ""
	}

	return strings.TrimSpace(out.String())
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
