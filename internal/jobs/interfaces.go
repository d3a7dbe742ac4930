package jobs

import (
	"context"
	"net/http"

	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
)

// CrawlerInterface defines the methods we need from the crawler
type CrawlerInterface interface {
	Crawl(ctx context.Context, job models.CrawlJob, opts crawler.CrawlOptions) (*crawler.Summary, error)
}

// TechDetector fingerprints the seed page of a crawl
type TechDetector interface {
	Detect(url string, header http.Header, body []byte) techdetect.Technologies
}

// JobRecorder persists job rows alongside the status store, e.g. db.PageStore
type JobRecorder interface {
	SaveJob(ctx context.Context, job models.CrawlJob, status models.CrawlStatus) error
}
