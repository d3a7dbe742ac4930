package mocks

import (
	"context"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockStatusStore is a mock implementation of store.StatusStore
type MockStatusStore struct {
	mock.Mock
}

// Set mocks the Set method
func (m *MockStatusStore) Set(ctx context.Context, status models.CrawlStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

// Get mocks the Get method
func (m *MockStatusStore) Get(ctx context.Context, jobID string) (*models.CrawlStatus, error) {
	args := m.Called(ctx, jobID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CrawlStatus), args.Error(1)
}

// MockSink is a mock implementation of sink.Sink
type MockSink struct {
	mock.Mock
}

// WritePage mocks the WritePage method
func (m *MockSink) WritePage(ctx context.Context, jobID string, rec models.PageRecord) error {
	args := m.Called(ctx, jobID, rec)
	return args.Error(0)
}

// Close mocks the Close method
func (m *MockSink) Close() error {
	args := m.Called()
	return args.Error(0)
}
