package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/extract"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotHTML is returned when a fetched page is not an HTML document.
var ErrNotHTML = errors.New("response is not html")

// FetchError reports a page that could not be fetched. The crawl skips the page and continues.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves a page as a parsed document.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*extract.Document, error)
}

// Crawler fetches pages and runs single-site crawls.
type Crawler struct {
	config  *Config
	colly   *colly.Collector
	fetcher Fetcher
	prober  Prober
}

// Option customises a Crawler.
type Option func(*Crawler)

// WithFetcher replaces the default colly fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithProber replaces the default HEAD prober.
func WithProber(p Prober) Option {
	return func(c *Crawler) { c.prober = p }
}

// New creates a new Crawler instance with the given configuration.
// If config is nil, default configuration is used
func New(config *Config, opts ...Option) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.withDefaults()

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxDepth(1),
		colly.Async(true),
		colly.AllowURLRevisit(),
	)

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c.SetClient(&http.Client{
		Timeout:   config.FetchTimeout,
		Transport: otelhttp.NewTransport(baseTransport),
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")

		log.Debug().
			Str("url", r.URL.String()).
			Msg("Crawler sending request")
	})

	cr := &Crawler{
		config: config,
		colly:  c,
	}
	cr.fetcher = cr
	cr.prober = NewHTTPProber(config)

	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

type fetchResult struct {
	status int
	header http.Header
	body   []byte
	final  *url.URL
	err    error
}

// Fetch GETs u and parses it into a Document. Redirects are followed; the
// document keeps u as its URL and the landing address as FinalURL.
func (c *Crawler) Fetch(ctx context.Context, u *url.URL) (*extract.Document, error) {
	target := u.String()
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	start := time.Now()
	res := &fetchResult{}

	collyClone := c.colly.Clone()
	collyClone.Context = ctx

	collyClone.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		if r.Headers != nil {
			res.header = r.Headers.Clone()
		}
		res.body = r.Body
		res.final = r.Request.URL
	})

	collyClone.OnError(func(r *colly.Response, err error) {
		res.err = err
		if r != nil {
			res.status = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		if visitErr := collyClone.Visit(target); visitErr != nil {
			done <- visitErr
			return
		}
		collyClone.Wait()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, &FetchError{URL: target, Err: err}
		}
	case <-ctx.Done():
		log.Debug().
			Str("url", target).
			Msg("Fetch cancelled due to context")
		return nil, &FetchError{URL: target, Err: ctx.Err()}
	}

	if res.err != nil {
		log.Warn().
			Err(res.err).
			Int("status", res.status).
			Str("url", target).
			Dur("duration", time.Since(start)).
			Msg("Page fetch failed")
		return nil, &FetchError{URL: target, StatusCode: res.status, Err: res.err}
	}

	if res.status < 200 || res.status >= 300 {
		return nil, &FetchError{URL: target, StatusCode: res.status, Err: fmt.Errorf("non-success status code: %d", res.status)}
	}

	if ct := http.Header(res.header).Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, &FetchError{URL: target, StatusCode: res.status, Err: fmt.Errorf("%w: %s", ErrNotHTML, ct)}
	}

	doc, err := extract.NewDocument(u, res.final, res.status, res.header, res.body)
	if err != nil {
		return nil, &FetchError{URL: target, StatusCode: res.status, Err: err}
	}

	log.Debug().
		Int("status", res.status).
		Str("url", target).
		Int("bytes", len(res.body)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return doc, nil
}
