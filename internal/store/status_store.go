package store

import (
	"context"
	"errors"

	"github.com/Harvey-AU/outline-crawler/internal/models"
)

// ErrStatusNotFound is returned when no status exists for a job ID.
var ErrStatusNotFound = errors.New("crawl status not found")

// StatusStore persists crawl job status.
type StatusStore interface {
	Set(ctx context.Context, status models.CrawlStatus) error
	Get(ctx context.Context, jobID string) (*models.CrawlStatus, error)
}
