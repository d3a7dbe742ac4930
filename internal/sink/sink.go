// Package sink delivers extracted page records to downstream stores as a crawl runs.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harvey-AU/outline-crawler/internal/models"
)

// Sink receives each page record once, as soon as its link statuses are resolved.
type Sink interface {
	WritePage(ctx context.Context, jobID string, rec models.PageRecord) error
	Close() error
}

// Multi fans a record out to every sink. Every sink is tried even when an earlier one fails.
type Multi []Sink

// WritePage writes rec to all sinks and joins their errors.
func (m Multi) WritePage(ctx context.Context, jobID string, rec models.PageRecord) error {
	var errs []error
	for i, s := range m {
		if err := s.WritePage(ctx, jobID, rec); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
