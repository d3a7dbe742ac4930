package jobs

import (
	"errors"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
)

// ErrJobNotRunning is returned when cancelling a job that is unknown or already finished.
var ErrJobNotRunning = errors.New("crawl job is not running")

// CrawlRequest holds the caller's input for one crawl
type CrawlRequest struct {
	StartURL    string
	TargetClass string
	MaxPages    int           // 0 uses the crawler default
	MaxDuration time.Duration // 0 uses the crawler default
}

// Outcome is the result of a finished crawl
type Outcome struct {
	Job          models.CrawlJob
	Status       models.CrawlStatus
	Summary      *crawler.Summary
	Technologies techdetect.Technologies
}
