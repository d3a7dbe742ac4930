package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrJobNotFound is returned when a crawl job has no row in crawl_jobs.
var ErrJobNotFound = errors.New("crawl job not found")

// PageStore persists crawl jobs and their page records in PostgreSQL.
type PageStore struct {
	db *DB
}

// NewPageStore creates a PageStore on db.
func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

// SaveJob inserts or updates the crawl_jobs row for status.
func (s *PageStore) SaveJob(ctx context.Context, job models.CrawlJob, status models.CrawlStatus) error {
	_, err := s.db.client.ExecContext(ctx, `
		INSERT INTO crawl_jobs (id, start_url, target_class, allowed_domain, state, pages_crawled, pages_failed,
			stop_reason, error_message, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			pages_crawled = EXCLUDED.pages_crawled,
			pages_failed = EXCLUDED.pages_failed,
			stop_reason = EXCLUDED.stop_reason,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`, job.ID, job.SeedURL, job.TargetClass, job.AllowedDomain, string(status.State), status.PagesCrawled,
		status.PagesFailed, status.StopReason, status.Error, status.CreatedAt, status.StartedAt, status.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save crawl job %s: %w", job.ID, err)
	}
	return nil
}

// WritePage stores one page record. A page written twice for the same job is replaced.
func (s *PageStore) WritePage(ctx context.Context, jobID string, rec models.PageRecord) error {
	links, err := json.Marshal(rec.InternalLinks)
	if err != nil {
		return fmt.Errorf("failed to marshal internal links: %w", err)
	}
	headings, err := json.Marshal(rec.Headings)
	if err != nil {
		return fmt.Errorf("failed to marshal headings: %w", err)
	}
	jsonLD, err := json.Marshal(rec.JSONLD)
	if err != nil {
		return fmt.Errorf("failed to marshal json-ld: %w", err)
	}

	err = s.db.Execute(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO crawl_pages (job_id, article_url, meta_title, meta_description, is_indexable,
			internal_links, headings, json_ld, link_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id, article_url) DO UPDATE SET
			meta_title = EXCLUDED.meta_title,
			meta_description = EXCLUDED.meta_description,
			is_indexable = EXCLUDED.is_indexable,
			internal_links = EXCLUDED.internal_links,
			headings = EXCLUDED.headings,
			json_ld = EXCLUDED.json_ld,
			link_urls = EXCLUDED.link_urls
		`, jobID, rec.ArticleURL, rec.MetaTitle, rec.MetaDescription, rec.IsIndexable,
			string(links), string(headings), string(jsonLD), pq.Array(rec.LinkURLs()))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write page %s: %w", rec.ArticleURL, err)
	}

	log.Debug().
		Str("job_id", jobID).
		Str("url", rec.ArticleURL).
		Msg("Stored page record")
	return nil
}

// GetPages returns every stored record for a job in insertion order.
func (s *PageStore) GetPages(ctx context.Context, jobID string) (models.CrawlResult, error) {
	var exists bool
	if err := s.db.client.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM crawl_jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return models.CrawlResult{}, fmt.Errorf("failed to look up crawl job: %w", err)
	}
	if !exists {
		return models.CrawlResult{}, ErrJobNotFound
	}

	rows, err := s.db.client.QueryContext(ctx, `
		SELECT article_url, meta_title, meta_description, is_indexable, internal_links, headings, json_ld
		FROM crawl_pages
		WHERE job_id = $1
		ORDER BY id
	`, jobID)
	if err != nil {
		return models.CrawlResult{}, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	result := models.CrawlResult{Pages: []models.PageRecord{}}
	for rows.Next() {
		rec, err := scanPage(rows)
		if err != nil {
			return models.CrawlResult{}, err
		}
		result.Pages = append(result.Pages, rec)
	}
	if err := rows.Err(); err != nil {
		return models.CrawlResult{}, fmt.Errorf("failed to iterate pages: %w", err)
	}
	return result, nil
}

// LinkingPages returns the URLs of pages in a job whose content region links to target.
func (s *PageStore) LinkingPages(ctx context.Context, jobID, target string) ([]string, error) {
	rows, err := s.db.client.QueryContext(ctx, `
		SELECT article_url FROM crawl_pages
		WHERE job_id = $1 AND $2 = ANY(link_urls)
		ORDER BY id
	`, jobID, target)
	if err != nil {
		return nil, fmt.Errorf("failed to query linking pages: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan linking page: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Close is a no-op; the connection is owned by DB.
func (s *PageStore) Close() error {
	return nil
}

func scanPage(rows *sql.Rows) (models.PageRecord, error) {
	var (
		rec                     models.PageRecord
		links, headings, jsonLD []byte
	)
	if err := rows.Scan(&rec.ArticleURL, &rec.MetaTitle, &rec.MetaDescription, &rec.IsIndexable, &links, &headings, &jsonLD); err != nil {
		return rec, fmt.Errorf("failed to scan page: %w", err)
	}
	if err := json.Unmarshal(links, &rec.InternalLinks); err != nil {
		return rec, fmt.Errorf("failed to decode internal links for %s: %w", rec.ArticleURL, err)
	}
	if err := json.Unmarshal(headings, &rec.Headings); err != nil {
		return rec, fmt.Errorf("failed to decode headings for %s: %w", rec.ArticleURL, err)
	}
	if err := json.Unmarshal(jsonLD, &rec.JSONLD); err != nil {
		return rec, fmt.Errorf("failed to decode json-ld for %s: %w", rec.ArticleURL, err)
	}
	return rec, nil
}
