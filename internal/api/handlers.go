package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/Harvey-AU/outline-crawler/internal/jobs"
	"github.com/Harvey-AU/outline-crawler/internal/models"
)

// Version is the current API version (can be set via ldflags at build time)
var Version = "0.1.0"

const serviceName = "outline-crawler"

// CrawlService runs and tracks crawls, e.g. jobs.CrawlManager
type CrawlService interface {
	Run(ctx context.Context, req jobs.CrawlRequest) (*jobs.Outcome, error)
	Start(ctx context.Context, req jobs.CrawlRequest) (models.CrawlJob, error)
	Status(ctx context.Context, jobID string) (*models.CrawlStatus, error)
	Cancel(jobID string) error
}

// PageReader serves stored page records, e.g. db.PageStore
type PageReader interface {
	GetPages(ctx context.Context, jobID string) (models.CrawlResult, error)
	LinkingPages(ctx context.Context, jobID, target string) ([]string, error)
}

// DBClient is an interface for database health checks
type DBClient interface {
	GetDB() *sql.DB
}

// Handler holds dependencies for API handlers
type Handler struct {
	Crawls CrawlService
	Pages  PageReader // nil when no database is configured
	DB     DBClient   // nil when no database is configured
}

// NewHandler creates a new API handler with dependencies
func NewHandler(crawls CrawlService, pages PageReader, pgDB DBClient) *Handler {
	return &Handler{
		Crawls: crawls,
		Pages:  pages,
		DB:     pgDB,
	}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/health/db", h.DatabaseHealthCheck)

	mux.HandleFunc("/crawl", h.CrawlHandler)
	mux.HandleFunc("/crawl/", h.CrawlHandler)
}

// HealthCheck handles basic health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	WriteHealthy(w, r, serviceName, Version)
}

// DatabaseHealthCheck handles database health check requests
func (h *Handler) DatabaseHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	if h.DB == nil {
		WriteUnhealthy(w, r, "postgresql", fmt.Errorf("database connection not configured"))
		return
	}

	if err := h.DB.GetDB().PingContext(r.Context()); err != nil {
		WriteUnhealthy(w, r, "postgresql", err)
		return
	}

	WriteHealthy(w, r, "postgresql", "")
}
