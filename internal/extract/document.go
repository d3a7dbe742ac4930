package extract

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Document is a fetched HTML page ready for extraction.
type Document struct {
	// URL is the address the page was requested under.
	URL *url.URL
	// FinalURL is where the response came from after any redirects. Relative links resolve against it.
	FinalURL   *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
	DOM        *goquery.Document
}

// NewDocument parses body into a Document.
func NewDocument(requested *url.URL, final *url.URL, statusCode int, header http.Header, body []byte) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", requested, err)
	}

	if final == nil {
		final = requested
	}
	dom.Url = final

	if header == nil {
		header = http.Header{}
	}

	return &Document{
		URL:        requested,
		FinalURL:   final,
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		DOM:        dom,
	}, nil
}

// Base returns the URL relative links on the page resolve against.
func (d *Document) Base() *url.URL {
	if d.FinalURL != nil {
		return d.FinalURL
	}
	return d.URL
}
