package crawler

import (
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/models"
)

// StopReason records why a crawl stopped dequeuing pages.
type StopReason string

const (
	StopExhausted  StopReason = "exhausted"
	StopPageBudget StopReason = "page_budget"
	StopDeadline   StopReason = "deadline"
	StopCancelled  StopReason = "cancelled"
)

// CrawlOptions overrides the crawler's config for a single crawl.
type CrawlOptions struct {
	MaxPages    int           // Overrides Config.MaxPages when > 0
	MaxDuration time.Duration // Overrides Config.MaxDuration when > 0

	// OnPage is called once per finished record, serialised and in dequeue order.
	// A page whose links are still resolving holds back the pages after it.
	OnPage func(rec models.PageRecord)
	// OnSeed receives the seed page document, e.g. for technology detection.
	OnSeed func(doc SeedPage)
}

// SeedPage is the raw response of the first page of a crawl.
type SeedPage struct {
	URL    string
	Header map[string][]string
	Body   []byte
}

// Summary is the outcome of one crawl.
type Summary struct {
	Result       models.CrawlResult
	PagesFetched int
	PagesFailed  int
	StopReason   StopReason
	Duration     time.Duration
}
