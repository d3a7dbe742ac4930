package mocks

import (
	"context"
	"net/url"

	"github.com/Harvey-AU/outline-crawler/internal/extract"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of crawler.Fetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, u *url.URL) (*extract.Document, error) {
	args := m.Called(ctx, u.String())

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*extract.Document), args.Error(1)
}

// MockProber is a mock implementation of crawler.Prober
type MockProber struct {
	mock.Mock
}

// Probe mocks the Probe method
func (m *MockProber) Probe(ctx context.Context, u *url.URL) (int, string, error) {
	args := m.Called(ctx, u.String())
	return args.Int(0), args.String(1), args.Error(2)
}
