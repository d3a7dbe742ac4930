package jobs

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/mocks"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/store"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeCrawler struct {
	pages   []models.PageRecord
	failed  int
	err     error
	started chan struct{}
	block   bool

	mu   sync.Mutex
	opts crawler.CrawlOptions
}

func (f *fakeCrawler) Crawl(ctx context.Context, job models.CrawlJob, opts crawler.CrawlOptions) (*crawler.Summary, error) {
	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if opts.OnSeed != nil {
		opts.OnSeed(crawler.SeedPage{URL: job.SeedURL, Header: map[string][]string{"Server": {"nginx"}}})
	}
	if f.started != nil {
		close(f.started)
	}

	reason := crawler.StopExhausted
	if f.block {
		<-ctx.Done()
		reason = crawler.StopCancelled
	}

	for _, rec := range f.pages {
		if opts.OnPage != nil {
			opts.OnPage(rec)
		}
	}
	return &crawler.Summary{
		Result:       models.CrawlResult{Pages: f.pages},
		PagesFetched: len(f.pages),
		PagesFailed:  f.failed,
		StopReason:   reason,
	}, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(url string, header http.Header, body []byte) techdetect.Technologies {
	return techdetect.Technologies{header.Get("Server"): {"Web servers"}}
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) SaveJob(ctx context.Context, job models.CrawlJob, status models.CrawlStatus) error {
	return m.Called(ctx, job, status).Error(0)
}

func twoPages() []models.PageRecord {
	return []models.PageRecord{
		{ArticleURL: "https://example.com/", InternalLinks: []models.InternalLink{}},
		{ArticleURL: "https://example.com/a", InternalLinks: []models.InternalLink{}},
	}
}

func TestRunDeliversPagesAndDetectsTechnologies(t *testing.T) {
	pages := twoPages()
	sink := new(mocks.MockSink)
	sink.On("WritePage", mock.Anything, mock.AnythingOfType("string"), pages[0]).Return(nil).Once()
	sink.On("WritePage", mock.Anything, mock.AnythingOfType("string"), pages[1]).Return(errors.New("sink down")).Once()

	statuses := store.NewMemoryStatusStore()
	m := NewCrawlManager(&fakeCrawler{pages: pages, failed: 1}, statuses, WithSink(sink), WithDetector(fakeDetector{}))

	out, err := m.Run(context.Background(), CrawlRequest{StartURL: "example.com", TargetClass: "post"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", out.Job.SeedURL)
	assert.Equal(t, []string{"nginx"}, out.Technologies.Names())
	assert.Len(t, out.Summary.Result.Pages, 2)
	sink.AssertExpectations(t)

	status, err := statuses.Get(context.Background(), out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CrawlStateCompleted, status.State)
	assert.Equal(t, 2, status.PagesCrawled)
	assert.Equal(t, 1, status.PagesFailed)
	assert.Equal(t, "exhausted", status.StopReason)
	assert.NotNil(t, status.StartedAt)
	assert.NotNil(t, status.FinishedAt)
}

func TestRunPassesBudgets(t *testing.T) {
	fc := &fakeCrawler{}
	m := NewCrawlManager(fc, store.NewMemoryStatusStore())

	out, err := m.Run(context.Background(), CrawlRequest{
		StartURL:    "https://example.com",
		TargetClass: "post",
		MaxPages:    7,
		MaxDuration: time.Minute,
	})
	require.NoError(t, err)
	assert.NotNil(t, out.Technologies)

	assert.Equal(t, 7, fc.opts.MaxPages)
	assert.Equal(t, time.Minute, fc.opts.MaxDuration)
}

func TestRunInvalidRequest(t *testing.T) {
	fc := &fakeCrawler{}
	m := NewCrawlManager(fc, store.NewMemoryStatusStore())

	tests := []struct {
		name string
		req  CrawlRequest
	}{
		{"missing url", CrawlRequest{TargetClass: "post"}},
		{"missing class", CrawlRequest{StartURL: "https://example.com"}},
		{"bad scheme", CrawlRequest{StartURL: "ftp://example.com", TargetClass: "post"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidJob)
		})
	}
}

func TestRunRecordsFailure(t *testing.T) {
	statuses := new(mocks.MockStatusStore)
	recorder := new(mockRecorder)

	var states []models.CrawlState
	statuses.On("Set", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		states = append(states, args.Get(1).(models.CrawlStatus).State)
	}).Return(nil)
	recorder.On("SaveJob", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	boom := errors.New("boom")
	m := NewCrawlManager(&fakeCrawler{err: boom}, statuses, WithJobRecorder(recorder))

	_, err := m.Run(context.Background(), CrawlRequest{StartURL: "https://example.com", TargetClass: "post"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []models.CrawlState{models.CrawlStatePending, models.CrawlStateRunning, models.CrawlStateFailed}, states)
	recorder.AssertNumberOfCalls(t, "SaveJob", 3)
}

func TestStartRunsInBackground(t *testing.T) {
	statuses := store.NewMemoryStatusStore()
	m := NewCrawlManager(&fakeCrawler{pages: twoPages()}, statuses)

	job, err := m.Start(context.Background(), CrawlRequest{StartURL: "https://example.com", TargetClass: "post"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	assert.Eventually(t, func() bool {
		status, err := m.Status(context.Background(), job.ID)
		return err == nil && status.State == models.CrawlStateCompleted && status.PagesCrawled == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStartFailsWhenStatusCannotBeRecorded(t *testing.T) {
	statuses := new(mocks.MockStatusStore)
	statuses.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	m := NewCrawlManager(&fakeCrawler{}, statuses)
	_, err := m.Start(context.Background(), CrawlRequest{StartURL: "https://example.com", TargetClass: "post"})
	assert.ErrorContains(t, err, "redis down")
}

func TestCancel(t *testing.T) {
	fc := &fakeCrawler{pages: twoPages()[:1], started: make(chan struct{}), block: true}
	m := NewCrawlManager(fc, store.NewMemoryStatusStore())

	job, err := m.Start(context.Background(), CrawlRequest{StartURL: "https://example.com", TargetClass: "post"})
	require.NoError(t, err)

	select {
	case <-fc.started:
	case <-time.After(time.Second):
		t.Fatal("crawl did not start")
	}

	require.NoError(t, m.Cancel(job.ID))

	assert.Eventually(t, func() bool {
		status, err := m.Status(context.Background(), job.ID)
		return err == nil && status.State == models.CrawlStateCancelled && status.PagesCrawled == 1
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return errors.Is(m.Cancel(job.ID), ErrJobNotRunning)
	}, time.Second, 10*time.Millisecond)
}

func TestStatusUnknownJob(t *testing.T) {
	m := NewCrawlManager(&fakeCrawler{}, store.NewMemoryStatusStore())
	_, err := m.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrStatusNotFound)
}

func TestShutdownStopsBackgroundCrawlsAndClosesSink(t *testing.T) {
	sink := new(mocks.MockSink)
	sink.On("Close").Return(nil)

	fc := &fakeCrawler{started: make(chan struct{}), block: true}
	m := NewCrawlManager(fc, store.NewMemoryStatusStore(), WithSink(sink))

	_, err := m.Start(context.Background(), CrawlRequest{StartURL: "https://example.com", TargetClass: "post"})
	require.NoError(t, err)
	<-fc.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	sink.AssertCalled(t, "Close")
}
