package store

import (
	"context"

	"github.com/Harvey-AU/outline-crawler/internal/cache"
	"github.com/Harvey-AU/outline-crawler/internal/models"
)

// MemoryStatusStore keeps crawl status in process. Used when Redis is not configured.
type MemoryStatusStore struct {
	cache *cache.InMemoryCache[models.CrawlStatus]
}

// NewMemoryStatusStore creates an empty in-memory store.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{cache: cache.New[models.CrawlStatus]()}
}

// Set stores a copy of status.
func (s *MemoryStatusStore) Set(_ context.Context, status models.CrawlStatus) error {
	s.cache.Set(status.JobID, status)
	return nil
}

// Get returns a copy of the stored status.
func (s *MemoryStatusStore) Get(_ context.Context, jobID string) (*models.CrawlStatus, error) {
	status, ok := s.cache.Get(jobID)
	if !ok {
		return nil, ErrStatusNotFound
	}
	return &status, nil
}
