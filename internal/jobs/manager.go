package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/sink"
	"github.com/Harvey-AU/outline-crawler/internal/store"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// CrawlManager runs crawls, tracks their status and hands records to sinks
type CrawlManager struct {
	crawler  CrawlerInterface
	statuses store.StatusStore
	sink     sink.Sink
	detector TechDetector
	recorder JobRecorder

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// ManagerOption configures a CrawlManager
type ManagerOption func(*CrawlManager)

// WithSink delivers every finished page record to s
func WithSink(s sink.Sink) ManagerOption {
	return func(m *CrawlManager) { m.sink = s }
}

// WithDetector fingerprints the seed page of each crawl
func WithDetector(d TechDetector) ManagerOption {
	return func(m *CrawlManager) { m.detector = d }
}

// WithJobRecorder persists each status transition as a job row
func WithJobRecorder(r JobRecorder) ManagerOption {
	return func(m *CrawlManager) { m.recorder = r }
}

// NewCrawlManager creates a new crawl manager
func NewCrawlManager(c CrawlerInterface, statuses store.StatusStore, opts ...ManagerOption) *CrawlManager {
	ctx, stop := context.WithCancel(context.Background())
	m := &CrawlManager{
		crawler:  c,
		statuses: statuses,
		baseCtx:  ctx,
		stop:     stop,
		running:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run crawls synchronously and returns once every page has been resolved
func (m *CrawlManager) Run(ctx context.Context, req CrawlRequest) (*Outcome, error) {
	job, err := models.NewCrawlJob(req.StartURL, req.TargetClass)
	if err != nil {
		return nil, err
	}

	status := newStatus(job)
	m.saveStatus(ctx, job, status)

	return m.execute(ctx, job, req, status)
}

// Start creates a job and crawls it in the background. The returned job ID can be
// used with Status while the crawl runs.
func (m *CrawlManager) Start(ctx context.Context, req CrawlRequest) (models.CrawlJob, error) {
	span := sentry.StartSpan(ctx, "manager.start_crawl")
	defer span.Finish()

	job, err := models.NewCrawlJob(req.StartURL, req.TargetClass)
	if err != nil {
		return models.CrawlJob{}, err
	}
	span.SetTag("job_id", job.ID)

	status := newStatus(job)
	if err := m.statuses.Set(ctx, status); err != nil {
		sentry.CaptureException(err)
		return models.CrawlJob{}, fmt.Errorf("failed to record crawl status: %w", err)
	}
	m.recordJob(ctx, job, status)

	runCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.running[job.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.running, job.ID)
			m.mu.Unlock()
			cancel()
		}()

		if _, err := m.execute(runCtx, job, req, status); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Background crawl failed")
		}
	}()

	log.Info().
		Str("job_id", job.ID).
		Str("start_url", job.SeedURL).
		Str("target_class", job.TargetClass).
		Msg("Started background crawl")

	return job, nil
}

// Status returns the latest recorded status for a job
func (m *CrawlManager) Status(ctx context.Context, jobID string) (*models.CrawlStatus, error) {
	return m.statuses.Get(ctx, jobID)
}

// Cancel stops a background crawl. Pages already fetched still finish resolving.
func (m *CrawlManager) Cancel(jobID string) error {
	m.mu.Lock()
	cancel, ok := m.running[jobID]
	m.mu.Unlock()
	if !ok {
		return ErrJobNotRunning
	}
	cancel()
	log.Info().Str("job_id", jobID).Msg("Cancelling crawl")
	return nil
}

// Shutdown cancels background crawls and waits for them to finish or ctx to expire
func (m *CrawlManager) Shutdown(ctx context.Context) error {
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for crawls to stop: %w", ctx.Err())
	}

	if m.sink != nil {
		return m.sink.Close()
	}
	return nil
}

func (m *CrawlManager) execute(ctx context.Context, job models.CrawlJob, req CrawlRequest, status models.CrawlStatus) (*Outcome, error) {
	span := sentry.StartSpan(ctx, "manager.run_crawl")
	defer span.Finish()
	span.SetTag("job_id", job.ID)
	span.SetTag("domain", job.AllowedDomain)

	started := time.Now().UTC()
	status.State = models.CrawlStateRunning
	status.StartedAt = &started
	m.saveStatus(ctx, job, status)

	// Sinks and status writes outlive cancellation so drained pages are still recorded.
	writeCtx := context.WithoutCancel(ctx)

	var techs techdetect.Technologies
	opts := crawler.CrawlOptions{
		MaxPages:    req.MaxPages,
		MaxDuration: req.MaxDuration,
		OnPage: func(rec models.PageRecord) {
			m.deliver(writeCtx, job.ID, rec)
			status.PagesCrawled++
			m.saveStatus(writeCtx, job, status)
		},
		OnSeed: func(page crawler.SeedPage) {
			if m.detector != nil {
				techs = m.detector.Detect(page.URL, http.Header(page.Header), page.Body)
			}
		},
	}

	summary, err := m.crawler.Crawl(ctx, job, opts)

	finished := time.Now().UTC()
	status.FinishedAt = &finished

	if err != nil {
		status.State = models.CrawlStateFailed
		status.Error = err.Error()
		m.saveStatus(writeCtx, job, status)
		if !errors.Is(err, models.ErrInvalidJob) {
			sentry.CaptureException(err)
		}
		return nil, err
	}

	status.PagesCrawled = len(summary.Result.Pages)
	status.PagesFailed = summary.PagesFailed
	status.StopReason = string(summary.StopReason)
	status.State = models.CrawlStateCompleted
	if summary.StopReason == crawler.StopCancelled {
		status.State = models.CrawlStateCancelled
	}
	m.saveStatus(writeCtx, job, status)

	if techs == nil {
		techs = techdetect.Technologies{}
	}

	return &Outcome{Job: job, Status: status, Summary: summary, Technologies: techs}, nil
}

func (m *CrawlManager) deliver(ctx context.Context, jobID string, rec models.PageRecord) {
	if m.sink == nil {
		return
	}
	if err := m.sink.WritePage(ctx, jobID, rec); err != nil {
		log.Warn().
			Err(err).
			Str("job_id", jobID).
			Str("url", rec.ArticleURL).
			Msg("Failed to deliver page record")
	}
}

func (m *CrawlManager) saveStatus(ctx context.Context, job models.CrawlJob, status models.CrawlStatus) {
	if err := m.statuses.Set(ctx, status); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Str("state", string(status.State)).Msg("Failed to record crawl status")
	}
	m.recordJob(ctx, job, status)
}

func (m *CrawlManager) recordJob(ctx context.Context, job models.CrawlJob, status models.CrawlStatus) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.SaveJob(ctx, job, status); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist crawl job")
	}
}

func newStatus(job models.CrawlJob) models.CrawlStatus {
	return models.CrawlStatus{
		JobID:       job.ID,
		SeedURL:     job.SeedURL,
		TargetClass: job.TargetClass,
		State:       models.CrawlStatePending,
		CreatedAt:   time.Now().UTC(),
	}
}
