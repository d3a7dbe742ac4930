package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/cache"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/observability"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Prober issues a single status request for a link without following redirects.
type Prober interface {
	Probe(ctx context.Context, u *url.URL) (statusCode int, location string, err error)
}

// HTTPProber probes links with HEAD requests.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProber returns a prober whose client never follows redirects.
// Timeouts come from the request context.
func NewHTTPProber(config *Config) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 25,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     120 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: config.UserAgent,
	}
}

// Probe sends one HEAD request and returns the status code and raw Location header.
func (p *HTTPProber) Probe(ctx context.Context, u *url.URL) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	return resp.StatusCode, resp.Header.Get("Location"), nil
}

// Resolver determines link statuses for one crawl. Each URL is probed at most once;
// concurrent requests for the same URL share a single probe.
type Resolver struct {
	prober  Prober
	timeout time.Duration
	sem     *semaphore.Weighted
	memo    *cache.InMemoryCache[models.LinkStatus]
	group   singleflight.Group
	jobID   string
}

// NewResolver creates a resolver with a fresh probe memo.
func NewResolver(prober Prober, config *Config, jobID string) *Resolver {
	config = config.withDefaults()
	return &Resolver{
		prober:  prober,
		timeout: config.ProbeTimeout,
		sem:     semaphore.NewWeighted(int64(config.ProbeConcurrency)),
		memo:    cache.New[models.LinkStatus](),
		jobID:   jobID,
	}
}

// Resolve returns the status of u. Out-of-scope links are never probed.
func (r *Resolver) Resolve(ctx context.Context, u *url.URL, inScope bool) models.LinkStatus {
	if !inScope {
		return models.NotChecked()
	}

	key := u.String()
	if status, ok := r.memo.Get(key); ok {
		return status
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		if status, ok := r.memo.Get(key); ok {
			return status, nil
		}
		status, _ := r.memo.SetIfAbsent(key, r.probe(ctx, u))
		return status, nil
	})
	return v.(models.LinkStatus)
}

// probe runs detached from crawl cancellation so in-flight pages can finish;
// the probe timeout still bounds it.
func (r *Resolver) probe(ctx context.Context, u *url.URL) models.LinkStatus {
	ctx = context.WithoutCancel(ctx)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return models.Unreachable()
	}
	defer r.sem.Release(1)

	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	code, location, err := r.prober.Probe(probeCtx, u)
	if err != nil {
		log.Debug().
			Err(err).
			Str("url", u.String()).
			Dur("duration", time.Since(start)).
			Msg("Link probe failed")
		observability.RecordProbe(ctx, observability.ProbeMetrics{JobID: r.jobID, Outcome: "unreachable", Duration: time.Since(start)})
		return models.Unreachable()
	}

	status := models.NewLinkStatus(code, "")
	if models.IsRedirect(code) {
		status = models.NewLinkStatus(code, ResolveLocation(u, location))
	}

	observability.RecordProbe(ctx, observability.ProbeMetrics{JobID: r.jobID, Outcome: probeOutcome(code), Duration: time.Since(start)})
	return status
}

func probeOutcome(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "ok"
	case models.IsRedirect(code):
		return "redirect"
	case code >= 400 && code < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

// ResolveLocation turns a Location header into an absolute URL.
// Absolute values are kept, "/path" is joined to the probed URL's scheme and host
// verbatim, and anything else resolves against the probed URL's directory.
func ResolveLocation(probed *url.URL, location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(location, "//"):
		return probed.Scheme + ":" + location
	case strings.HasPrefix(location, "/"):
		return probed.Scheme + "://" + probed.Host + location
	}

	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	if ref.IsAbs() {
		return location
	}
	return probed.ResolveReference(ref).String()
}
