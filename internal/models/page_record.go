package models

import (
	"encoding/json"
	"fmt"
)

// StatusNotChecked marks a link that was deliberately not probed because it is out of scope.
const StatusNotChecked = -1

// StatusUnreachable is recorded when a probe timed out or failed at the transport level.
const StatusUnreachable = 0

// LinkStatus is the outcome of probing one link.
type LinkStatus struct {
	Code        int    `json:"code"`
	RedirectURL string `json:"redirectUrl"`
}

// NewLinkStatus builds a status, dropping the redirect target unless the code is a 3xx.
func NewLinkStatus(code int, redirectURL string) LinkStatus {
	if !IsRedirect(code) {
		redirectURL = ""
	}
	return LinkStatus{Code: code, RedirectURL: redirectURL}
}

// NotChecked returns the sentinel status used for out-of-scope links.
func NotChecked() LinkStatus {
	return LinkStatus{Code: StatusNotChecked}
}

// Unreachable returns the status used for timed out or failed probes.
func Unreachable() LinkStatus {
	return LinkStatus{Code: StatusUnreachable}
}

// Checked reports whether a probe was attempted for this link.
func (s LinkStatus) Checked() bool {
	return s.Code != StatusNotChecked
}

// IsRedirect reports whether code is in the 3xx range.
func IsRedirect(code int) bool {
	return code >= 300 && code <= 399
}

// InternalLink is one anchor found in a page's content region.
type InternalLink struct {
	LinkURL    string     `json:"linkUrl"`
	AnchorText string     `json:"anchorText"`
	Status     LinkStatus `json:"status"`
}

// HeadingNode is one heading in a page outline. Children are always deeper than their parent.
type HeadingNode struct {
	Level    int           `json:"-"`
	Text     string        `json:"text"`
	Children []HeadingNode `json:"children"`
}

// Tag returns the element name for the heading level, e.g. "h2".
func (h HeadingNode) Tag() string {
	return fmt.Sprintf("h%d", h.Level)
}

type headingJSON struct {
	Tag      string        `json:"tag"`
	Text     string        `json:"text"`
	Children []HeadingNode `json:"children"`
}

// MarshalJSON renders the node as {tag, text, children}.
func (h HeadingNode) MarshalJSON() ([]byte, error) {
	children := h.Children
	if children == nil {
		children = []HeadingNode{}
	}
	return json.Marshal(headingJSON{Tag: h.Tag(), Text: h.Text, Children: children})
}

// UnmarshalJSON restores Level from the tag name.
func (h *HeadingNode) UnmarshalJSON(data []byte) error {
	var raw headingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var level int
	if _, err := fmt.Sscanf(raw.Tag, "h%d", &level); err != nil {
		return fmt.Errorf("invalid heading tag %q: %w", raw.Tag, err)
	}
	h.Level = level
	h.Text = raw.Text
	h.Children = raw.Children
	return nil
}

// PageRecord is the extraction result for one crawled page.
type PageRecord struct {
	ArticleURL      string         `json:"articleUrl"`
	MetaTitle       string         `json:"metaTitle"`
	MetaDescription string         `json:"metaDescription"`
	IsIndexable     bool           `json:"isIndexable"`
	InternalLinks   []InternalLink `json:"internalLinks"`
	Headings        []HeadingNode  `json:"headings"`
	JSONLD          []any          `json:"jsonLd"`
}

// LinkURLs returns the URLs of every internal link in document order.
func (p PageRecord) LinkURLs() []string {
	urls := make([]string, 0, len(p.InternalLinks))
	for _, l := range p.InternalLinks {
		urls = append(urls, l.LinkURL)
	}
	return urls
}
