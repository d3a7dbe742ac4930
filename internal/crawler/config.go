package crawler

import (
	"time"
)

// Config holds the configuration for a crawler instance
type Config struct {
	FetchTimeout     time.Duration // Timeout for a page fetch
	ProbeTimeout     time.Duration // Timeout for a single link status probe
	ProbeConcurrency int           // Maximum link probes in flight across a crawl
	PipelineDepth    int           // Pages whose links may be resolving while the next page is fetched
	RateLimit        float64       // Page fetches per second, 0 disables pacing
	UserAgent        string        // User agent string for requests
	MaxPages         int           // Page budget per crawl, 0 means unlimited
	MaxDuration      time.Duration // Wall-clock budget per crawl, 0 means unlimited
	RegionLinksOnly  bool          // Follow only links inside the content region instead of every in-scope link
	FollowPagination bool          // Also follow "next page" anchors anywhere on the page
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout:     30 * time.Second,
		ProbeTimeout:     10 * time.Second,
		ProbeConcurrency: 12,
		PipelineDepth:    2,
		RateLimit:        5,
		UserAgent:        "OutlineCrawler/1.0 (+https://github.com/Harvey-AU/outline-crawler)",
		MaxPages:         500,
		MaxDuration:      30 * time.Minute,
		FollowPagination: true,
	}
}

func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	out := *c
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = def.FetchTimeout
	}
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = def.ProbeTimeout
	}
	if out.ProbeConcurrency <= 0 {
		out.ProbeConcurrency = def.ProbeConcurrency
	}
	if out.PipelineDepth <= 0 {
		out.PipelineDepth = 1
	}
	if out.UserAgent == "" {
		out.UserAgent = def.UserAgent
	}
	return &out
}
