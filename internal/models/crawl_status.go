package models

import "time"

// CrawlState is the lifecycle state of a crawl job.
type CrawlState string

const (
	CrawlStatePending   CrawlState = "pending"
	CrawlStateRunning   CrawlState = "running"
	CrawlStateCompleted CrawlState = "completed"
	CrawlStateFailed    CrawlState = "failed"
	CrawlStateCancelled CrawlState = "cancelled"
)

// CrawlStatus tracks the progress of a crawl job for status lookups.
type CrawlStatus struct {
	JobID        string     `json:"job_id"`
	SeedURL      string     `json:"start_url"`
	TargetClass  string     `json:"target_class"`
	State        CrawlState `json:"state"`
	PagesCrawled int        `json:"pages_crawled"`
	PagesFailed  int        `json:"pages_failed"`
	StopReason   string     `json:"stop_reason,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the crawl has stopped.
func (s CrawlStatus) Terminal() bool {
	switch s.State {
	case CrawlStateCompleted, CrawlStateFailed, CrawlStateCancelled:
		return true
	default:
		return false
	}
}
