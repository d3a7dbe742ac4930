package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/extract"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/observability"
	"github.com/Harvey-AU/outline-crawler/internal/util"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Crawl visits every page reachable from the job's seed within its domain and
// returns one record per successfully fetched page, in dequeue order.
//
// The only error returned is for an unusable job. Page fetch failures are
// counted and skipped; cancellation stops dequeuing and returns what finished.
func (c *Crawler) Crawl(ctx context.Context, job models.CrawlJob, opts CrawlOptions) (*Summary, error) {
	seed, err := util.ParseSeed(job.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidJob, err)
	}
	if job.AllowedDomain == "" || job.TargetClass == "" {
		return nil, fmt.Errorf("%w: allowed domain and target class are required", models.ErrInvalidJob)
	}

	maxPages := c.config.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	maxDuration := c.config.MaxDuration
	if opts.MaxDuration > 0 {
		maxDuration = opts.MaxDuration
	}

	start := time.Now()
	resolver := NewResolver(c.prober, c.config, job.ID)
	extractor := extract.NewExtractor(extract.ClassContains(job.TargetClass), resolver, FollowRules(c.config))

	frontier := NewFrontier()
	frontier.Push(seed)

	var limiter *rate.Limiter
	if c.config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.config.RateLimit), 1)
	}

	pipeline := new(errgroup.Group)
	pipeline.SetLimit(c.config.PipelineDepth)

	var (
		slots    []*pageSlot
		slotsMu  sync.Mutex
		nextEmit int
		summary  = &Summary{StopReason: StopExhausted}
	)

	// complete marks a slot resolved and hands every leading resolved slot to
	// OnPage, so callbacks see pages in dequeue order.
	complete := func(slot *pageSlot, rec models.PageRecord) {
		slotsMu.Lock()
		defer slotsMu.Unlock()
		slot.rec = rec
		slot.done = true
		for nextEmit < len(slots) && slots[nextEmit].done {
			if opts.OnPage != nil {
				opts.OnPage(slots[nextEmit].rec)
			}
			nextEmit++
		}
	}

	log.Info().
		Str("job_id", job.ID).
		Str("seed", seed.String()).
		Str("target_class", job.TargetClass).
		Int("max_pages", maxPages).
		Dur("max_duration", maxDuration).
		Msg("Starting crawl")

	for {
		if ctx.Err() != nil {
			summary.StopReason = StopCancelled
			break
		}
		if maxPages > 0 && summary.PagesFetched+summary.PagesFailed >= maxPages {
			summary.StopReason = StopPageBudget
			break
		}
		if maxDuration > 0 && time.Since(start) >= maxDuration {
			summary.StopReason = StopDeadline
			break
		}

		u, ok := frontier.Pop()
		if !ok {
			break
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				summary.StopReason = StopCancelled
				break
			}
		}

		pageStart := time.Now()
		spanCtx, span := observability.StartPageSpan(ctx, observability.PageSpanInfo{
			JobID: job.ID,
			URL:   u.String(),
		})

		doc, err := c.fetcher.Fetch(spanCtx, u)
		if err != nil {
			span.RecordError(err)
			span.End()

			if ctx.Err() != nil {
				summary.StopReason = StopCancelled
				break
			}

			summary.PagesFailed++
			observability.RecordPage(ctx, observability.PageMetrics{JobID: job.ID, Outcome: "failed", Duration: time.Since(pageStart)})
			log.Warn().
				Err(err).
				Str("job_id", job.ID).
				Str("url", u.String()).
				Msg("Skipping page")
			continue
		}

		if summary.PagesFetched == 0 && opts.OnSeed != nil {
			opts.OnSeed(SeedPage{URL: u.String(), Header: doc.Header, Body: doc.Body})
		}
		summary.PagesFetched++

		page, candidates := extractor.Parse(doc, job)
		added := 0
		for _, cand := range candidates {
			if frontier.Push(cand) {
				added++
			}
		}
		span.End()

		log.Debug().
			Str("job_id", job.ID).
			Str("url", u.String()).
			Int("enqueued", added).
			Int("queued", frontier.Len()).
			Msg("Page parsed")

		slot := &pageSlot{}
		slotsMu.Lock()
		slots = append(slots, slot)
		slotsMu.Unlock()

		pipeline.Go(func() error {
			rec := extractor.ResolveLinks(ctx, page)
			observability.RecordPage(ctx, observability.PageMetrics{JobID: job.ID, Outcome: "extracted", Duration: time.Since(pageStart)})
			complete(slot, rec)
			return nil
		})
	}

	_ = pipeline.Wait()

	summary.Result.Pages = make([]models.PageRecord, 0, len(slots))
	for _, slot := range slots {
		summary.Result.Pages = append(summary.Result.Pages, slot.rec)
	}
	summary.Duration = time.Since(start)

	log.Info().
		Str("job_id", job.ID).
		Int("pages", len(summary.Result.Pages)).
		Int("failed", summary.PagesFailed).
		Int("discovered", frontier.Seen()).
		Str("stop_reason", string(summary.StopReason)).
		Dur("duration", summary.Duration).
		Msg("Crawl finished")

	return summary, nil
}

// pageSlot holds a page's record at its dequeue position until its links resolve.
type pageSlot struct {
	rec  models.PageRecord
	done bool
}
