package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/export"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(*testing.T, *options)
	}{
		{
			name: "defaults",
			args: []string{"-url", "https://example.com", "-class", "post"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, export.FormatJSON, o.format)
				assert.Equal(t, 500, o.maxPages)
				assert.Equal(t, 30*time.Minute, o.maxDuration)
				assert.False(t, o.quiet)
			},
		},
		{
			name: "overrides",
			args: []string{"-url", "https://example.com", "-class", "post", "-max-pages", "3", "-max-duration", "1m", "-format", "xlsx", "-out", "x.xlsx", "-region-only", "-quiet"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.regionOnly)
				assert.Equal(t, export.FormatXLSX, o.format)
				assert.Equal(t, 3, o.maxPages)
				assert.Equal(t, time.Minute, o.maxDuration)
				assert.True(t, o.quiet)
			},
		},
		{name: "missing url", args: []string{"-class", "post"}, wantErr: "required"},
		{name: "missing class", args: []string{"-url", "https://example.com"}, wantErr: "required"},
		{name: "bad format", args: []string{"-url", "u", "-class", "c", "-format", "csv"}, wantErr: "unsupported format"},
		{name: "xlsx to stdout", args: []string{"-url", "u", "-class", "c", "-format", "xlsx"}, wantErr: "-out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":  `<html><head><title>Home</title></head><body><h1>Home</h1><div class="entry"><a href="/a">A</a></div></body></html>`,
		"/a": `<html><head><title>A</title></head><body><div class="entry"><a href="/">home</a></div></body></html>`,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunJSON(t *testing.T) {
	ts := testSite(t)

	var stdout, stderr bytes.Buffer
	opts := &options{url: ts.URL, class: "entry", format: export.FormatJSON, concurrency: 4, quiet: true}
	require.NoError(t, run(context.Background(), opts, &stdout, &stderr))

	var pages []struct {
		ArticleURL    string `json:"articleUrl"`
		MetaTitle     string `json:"metaTitle"`
		InternalLinks []struct {
			Status struct {
				Code int `json:"code"`
			} `json:"status"`
		} `json:"internalLinks"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, ts.URL+"/", pages[0].ArticleURL)
	assert.Equal(t, "A", pages[1].MetaTitle)
	assert.Equal(t, 200, pages[0].InternalLinks[0].Status.Code)
	assert.Empty(t, stderr.String())
}

func TestRunXLSX(t *testing.T) {
	ts := testSite(t)
	out := filepath.Join(t.TempDir(), "crawl.xlsx")

	var stderr bytes.Buffer
	opts := &options{url: ts.URL, class: "entry", format: export.FormatXLSX, out: out, concurrency: 4}
	require.NoError(t, run(context.Background(), opts, io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "2 pages, 0 failed")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetPages)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunInvalidURL(t *testing.T) {
	opts := &options{url: "mailto:someone@example.com", class: "entry", format: export.FormatJSON, quiet: true}
	assert.Error(t, run(context.Background(), opts, io.Discard, io.Discard))
}

type closeFailWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *closeFailWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestWriteAndClose(t *testing.T) {
	ok := &closeFailWriter{}
	require.NoError(t, writeAndClose(ok, models.CrawlResult{}, export.FormatJSON))
	assert.True(t, ok.closed)
	assert.Equal(t, "[]\n", ok.String())

	failing := &closeFailWriter{closeErr: errors.New("disk full")}
	err := writeAndClose(failing, models.CrawlResult{}, export.FormatJSON)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "failed to close output file")

	badFormat := &closeFailWriter{}
	assert.Error(t, writeAndClose(badFormat, models.CrawlResult{}, export.Format("csv")))
	assert.True(t, badFormat.closed)
}
