package sink

import (
	"context"
	"fmt"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// GraphSink writes the internal link graph of a crawl to Neo4j.
type GraphSink struct {
	driver DriverSessioner
}

// NewGraphSink connects to Neo4j and verifies connectivity.
func NewGraphSink(ctx context.Context, uri, user, password string) (*GraphSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", uri, err)
	}
	return &GraphSink{driver: &neo4jDriver{driver: driver}}, nil
}

// NewGraphSinkWithDriver builds a sink on a custom driver (tests).
func NewGraphSinkWithDriver(driver DriverSessioner) *GraphSink {
	return &GraphSink{driver: driver}
}

// WritePage merges the page node and one LINKS_TO edge per content-region link.
func (s *GraphSink) WritePage(ctx context.Context, jobID string, rec models.PageRecord) error {
	query, params := buildPageQuery(jobID, rec)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("neo4j session close error")
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write link graph for %s: %w", rec.ArticleURL, err)
	}
	return nil
}

// Close closes the driver.
func (s *GraphSink) Close() error {
	return s.driver.Close(context.Background())
}

func buildPageQuery(jobID string, rec models.PageRecord) (string, map[string]any) {
	query := "MERGE (p:Page {url: $url}) " +
		"SET p.title = $title, p.indexable = $indexable, p.job_id = $job_id " +
		"WITH p UNWIND $links AS link " +
		"MERGE (q:Page {url: link.url}) " +
		"MERGE (p)-[r:LINKS_TO {job_id: $job_id, anchor: link.anchor}]->(q) " +
		"SET r.status = link.status, r.redirect_url = link.redirect_url"

	links := make([]any, 0, len(rec.InternalLinks))
	for _, l := range rec.InternalLinks {
		links = append(links, map[string]any{
			"url":          l.LinkURL,
			"anchor":       l.AnchorText,
			"status":       int64(l.Status.Code),
			"redirect_url": l.Status.RedirectURL,
		})
	}

	params := map[string]any{
		"url":       rec.ArticleURL,
		"title":     rec.MetaTitle,
		"indexable": rec.IsIndexable,
		"job_id":    jobID,
		"links":     links,
	}
	return query, params
}
