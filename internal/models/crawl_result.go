package models

import "encoding/json"

// CrawlResult holds one record per extracted page in the order pages were dequeued.
type CrawlResult struct {
	Pages []PageRecord
}

// Len returns the number of pages in the result.
func (r *CrawlResult) Len() int {
	return len(r.Pages)
}

// URLs returns the article URL of every page in order.
func (r *CrawlResult) URLs() []string {
	urls := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		urls = append(urls, p.ArticleURL)
	}
	return urls
}

// MarshalJSON renders the result as a bare array of page objects.
func (r CrawlResult) MarshalJSON() ([]byte, error) {
	pages := r.Pages
	if pages == nil {
		pages = []PageRecord{}
	}
	return json.Marshal(pages)
}

// UnmarshalJSON reads a bare array of page objects.
func (r *CrawlResult) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Pages)
}
