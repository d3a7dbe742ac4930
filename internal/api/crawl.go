package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/db"
	"github.com/Harvey-AU/outline-crawler/internal/jobs"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/store"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
)

const maxRequestBody = 1 << 20

// CrawlRequest represents the request body for starting a crawl
type CrawlRequest struct {
	StartURL    string `json:"start_url"`
	TargetClass string `json:"target_class"`
	MaxPages    *int   `json:"max_pages,omitempty"`
	MaxDuration string `json:"max_duration,omitempty"` // Go duration, e.g. "5m"
	Async       bool   `json:"async,omitempty"`
}

// CrawlResponse is the body of a completed synchronous crawl
type CrawlResponse struct {
	ScrapedData  models.CrawlResult      `json:"scraped_data"`
	Technologies techdetect.Technologies `json:"technologies"`
}

// CrawlStartedResponse is the body of an accepted background crawl
type CrawlStartedResponse struct {
	JobID  string            `json:"job_id"`
	Status models.CrawlState `json:"status"`
}

// CrawlHandler routes /crawl/ and /crawl/{id}[/pages]
func (h *Handler) CrawlHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/crawl"), "/")

	if path == "" {
		if r.Method != http.MethodPost {
			MethodNotAllowed(w, r)
			return
		}
		h.createCrawl(w, r)
		return
	}

	parts := strings.Split(path, "/")
	jobID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getCrawl(w, r, jobID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.cancelCrawl(w, r, jobID)
	case len(parts) == 2 && parts[1] == "pages" && r.Method == http.MethodGet:
		h.getCrawlPages(w, r, jobID)
	case len(parts) <= 2:
		MethodNotAllowed(w, r)
	default:
		NotFound(w, r, "Not found")
	}
}

func (h *Handler) createCrawl(w http.ResponseWriter, r *http.Request) {
	logger := loggerWithRequest(r)

	var body CrawlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		BadRequest(w, r, "Invalid JSON request body")
		return
	}

	req, err := body.toJobRequest()
	if err != nil {
		ValidationError(w, r, err.Error())
		return
	}

	if body.Async {
		job, err := h.Crawls.Start(r.Context(), req)
		if err != nil {
			h.writeCrawlError(w, r, err)
			return
		}
		WriteJSON(w, r, CrawlStartedResponse{JobID: job.ID, Status: models.CrawlStatePending}, http.StatusAccepted)
		return
	}

	out, err := h.Crawls.Run(r.Context(), req)
	if err != nil {
		h.writeCrawlError(w, r, err)
		return
	}

	logger.Info().
		Str("job_id", out.Job.ID).
		Int("pages", out.Summary.Result.Len()).
		Str("stop_reason", string(out.Summary.StopReason)).
		Msg("Crawl completed")

	WriteJSON(w, r, CrawlResponse{
		ScrapedData:  out.Summary.Result,
		Technologies: out.Technologies,
	}, http.StatusOK)
}

func (h *Handler) getCrawl(w http.ResponseWriter, r *http.Request, jobID string) {
	status, err := h.Crawls.Status(r.Context(), jobID)
	if errors.Is(err, store.ErrStatusNotFound) {
		NotFound(w, r, "Crawl not found")
		return
	}
	if err != nil {
		InternalError(w, r, err)
		return
	}

	WriteSuccess(w, r, status, "")
}

func (h *Handler) cancelCrawl(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.Crawls.Cancel(jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotRunning) {
			Conflict(w, r, "Crawl is not running")
			return
		}
		InternalError(w, r, err)
		return
	}

	WriteSuccess(w, r, map[string]string{"job_id": jobID}, "Crawl cancelling")
}

func (h *Handler) getCrawlPages(w http.ResponseWriter, r *http.Request, jobID string) {
	if h.Pages == nil {
		ServiceUnavailable(w, r, "Page storage is not configured")
		return
	}

	if target := r.URL.Query().Get("links_to"); target != "" {
		urls, err := h.Pages.LinkingPages(r.Context(), jobID, target)
		if err != nil {
			DatabaseError(w, r, err)
			return
		}
		WriteJSON(w, r, urls, http.StatusOK)
		return
	}

	result, err := h.Pages.GetPages(r.Context(), jobID)
	if errors.Is(err, db.ErrJobNotFound) {
		NotFound(w, r, "Crawl not found")
		return
	}
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	WriteJSON(w, r, result, http.StatusOK)
}

func (h *Handler) writeCrawlError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrInvalidJob) {
		ValidationError(w, r, err.Error())
		return
	}
	InternalError(w, r, err)
}

func (c CrawlRequest) toJobRequest() (jobs.CrawlRequest, error) {
	req := jobs.CrawlRequest{
		StartURL:    strings.TrimSpace(c.StartURL),
		TargetClass: strings.TrimSpace(c.TargetClass),
	}

	if req.StartURL == "" {
		return req, fmt.Errorf("start_url is required")
	}
	if req.TargetClass == "" {
		return req, fmt.Errorf("target_class is required")
	}

	if c.MaxPages != nil {
		if *c.MaxPages < 0 {
			return req, fmt.Errorf("max_pages must be zero or positive")
		}
		req.MaxPages = *c.MaxPages
	}

	if c.MaxDuration != "" {
		d, err := time.ParseDuration(c.MaxDuration)
		if err != nil || d < 0 {
			return req, fmt.Errorf("max_duration must be a positive duration such as \"5m\"")
		}
		req.MaxDuration = d
	}

	return req, nil
}
