package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Harvey-AU/outline-crawler/internal/util"
	"github.com/google/uuid"
)

// ErrInvalidJob is returned when a crawl cannot start because its input is unusable.
var ErrInvalidJob = errors.New("invalid crawl job")

// CrawlJob describes one crawl session. It is immutable once built.
type CrawlJob struct {
	ID            string `json:"job_id"`
	SeedURL       string `json:"start_url"`
	TargetClass   string `json:"target_class"`
	AllowedDomain string `json:"allowed_domain"`
}

// NewCrawlJob validates the seed and selector and derives the allowed domain from the seed host.
func NewCrawlJob(seedURL, targetClass string) (CrawlJob, error) {
	targetClass = strings.TrimSpace(targetClass)
	if targetClass == "" {
		return CrawlJob{}, fmt.Errorf("%w: target class is required", ErrInvalidJob)
	}

	if strings.TrimSpace(seedURL) == "" {
		return CrawlJob{}, fmt.Errorf("%w: start url is required", ErrInvalidJob)
	}

	seed, err := util.ParseSeed(seedURL)
	if err != nil {
		return CrawlJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return CrawlJob{
		ID:            uuid.New().String(),
		SeedURL:       seed.String(),
		TargetClass:   targetClass,
		AllowedDomain: util.Host(seed),
	}, nil
}
