// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/article-harvester/internal/httputil"
)

// PDFMagic is the signature every PDF starts with.
var PDFMagic = []byte("%PDF-")

// errorBodyLimit bounds how much of an error response is kept for
// rate-limit detection.
const errorBodyLimit = 64 << 10

// FetchError is a network-side download failure: a transport error or a
// non-2xx response. Body holds the start of an error response.
type FetchError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *FetchError) Error() string { return e.Message }

// Fetcher downloads a URL to a file through the shared throttled client.
type Fetcher struct {
	Client *httputil.Client
}

// Fetch streams rawURL into dest through a temp file in dest's directory and
// renames it on success. Network failures return *FetchError; filesystem
// failures wrap ErrLocalIO. Nothing is left at dest on failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string, headers map[string]string) error {
	resp, err := f.Client.Get(ctx, rawURL, headers)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &FetchError{StatusCode: resp.StatusCode, Message: statusMessage(resp.StatusCode), Body: body}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory: %v", ErrLocalIO, err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrLocalIO, err)
	}
	tmpPath := tmpFile.Name()

	fw := &fileWriter{f: tmpFile}
	_, copyErr := io.Copy(fw, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		if fw.err != nil {
			return fmt.Errorf("%w: writing download: %v", ErrLocalIO, fw.err)
		}
		return &FetchError{Message: fmt.Sprintf("reading response: %v", copyErr)}
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", ErrLocalIO, closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming temp file: %v", ErrLocalIO, err)
	}
	return nil
}

// fileWriter records write errors so a failed copy can be attributed to
// the disk rather than the network.
type fileWriter struct {
	f   *os.File
	err error
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

// statusMessage renders "HTTP <code> <reason>".
func statusMessage(code int) string {
	return strings.TrimSpace(fmt.Sprintf("HTTP %d %s", code, http.StatusText(code)))
}

// ValidateSignature reports whether the file at path starts with magic. A
// file shorter than magic is invalid.
func ValidateSignature(path string, magic []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, magic), nil
}

// ValidateXML reports whether the file at path is non-empty and its first
// non-space character, after an optional byte order mark, is '<'.
func ValidateXML(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		c, _, err := r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		switch c {
		case '\uFEFF', ' ', '\t', '\r', '\n':
			continue
		case '<':
			return true, nil
		default:
			return false, nil
		}
	}
}

// readHead returns up to n bytes from the start of the file at path.
func readHead(path string, n int64) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	data, _ := io.ReadAll(io.LimitReader(f, n))
	return data
}

// ElsevierHeaders returns the Accept and X-ELS-APIKey headers when rawURL
// points at an Elsevier content host, and nil otherwise.
func ElsevierHeaders(rawURL, accept, apiKey string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	if !hostWithin(host, "elsevier.com") && !hostWithin(host, "sciencedirect.com") {
		return nil
	}
	headers := map[string]string{"Accept": accept}
	if apiKey != "" {
		headers["X-ELS-APIKey"] = apiKey
	}
	return headers
}

func hostWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// removeArtifact deletes path, ignoring a missing file.
func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing %s: %v", ErrLocalIO, path, err)
	}
	return nil
}
