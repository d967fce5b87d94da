// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/pkg/types"
)

func testClient() *httputil.Client {
	return httputil.NewClient(types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"})
}

func testFetcher() *Fetcher {
	return &Fetcher{Client: testClient()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFetch_WritesFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.7 body"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "pdfs", "a.pdf")
	require.NoError(t, testFetcher().Fetch(context.Background(), ts.URL, dest, nil))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be gone")
}

func TestFetch_HTTPErrorIsNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "a.pdf")
	err := testFetcher().Fetch(context.Background(), ts.URL, dest, nil)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "HTTP 404 Not Found", fe.Message)
	assert.Contains(t, string(fe.Body), "gone")
	assert.False(t, errors.Is(err, ErrLocalIO))
	assert.NoFileExists(t, dest)
}

func TestFetch_ConnectionRefusedIsNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := testFetcher().Fetch(context.Background(), url, filepath.Join(t.TempDir(), "a.pdf"), nil)
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
	assert.False(t, errors.Is(err, ErrLocalIO))
}

func TestFetch_UnwritableDestIsLocalIO(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	blocker := writeFile(t, dir, "blocker", "not a directory")
	err := testFetcher().Fetch(context.Background(), ts.URL, filepath.Join(blocker, "a.pdf"), nil)
	assert.ErrorIs(t, err, ErrLocalIO)
}

func TestFetch_SendsHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("<xml/>"))
	}))
	defer ts.Close()

	err := testFetcher().Fetch(context.Background(), ts.URL, filepath.Join(t.TempDir(), "a.xml"),
		map[string]string{"Accept": "application/xml"})
	require.NoError(t, err)
	assert.Equal(t, "application/xml", got.Get("Accept"))
	assert.Equal(t, "test/0.1", got.Get("User-Agent"))
}

func TestValidateSignature(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"pdf", "%PDF-1.4\n...", true},
		{"html", "<html>blocked</html>", false},
		{"short", "%PD", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ValidateSignature(writeFile(t, dir, tt.name, tt.content), PDFMagic)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := ValidateSignature(filepath.Join(dir, "missing"), PDFMagic)
	assert.Error(t, err)
}

func TestValidateXML(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"declaration", `<?xml version="1.0"?><article/>`, true},
		{"leading space", "\n  <article/>", true},
		{"bom", "\uFEFF<article/>", true},
		{"json", `{"error":"forbidden"}`, false},
		{"blank", "  \n", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ValidateXML(writeFile(t, dir, tt.name, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestElsevierHeaders(t *testing.T) {
	h := ElsevierHeaders("https://api.elsevier.com/content/article/doi/10.1/x", "application/pdf", "KEY")
	assert.Equal(t, map[string]string{"Accept": "application/pdf", "X-ELS-APIKey": "KEY"}, h)

	h = ElsevierHeaders("https://www.sciencedirect.com/science/article/pii/S1", "text/xml", "")
	assert.Equal(t, map[string]string{"Accept": "text/xml"}, h)

	assert.Nil(t, ElsevierHeaders("https://europepmc.org/articles/PMC1?pdf=render", "application/pdf", "KEY"))
	assert.Nil(t, ElsevierHeaders("https://notelsevier.com.evil.org/x", "application/pdf", "KEY"))
	assert.Nil(t, ElsevierHeaders("::bad", "application/pdf", "KEY"))
}
