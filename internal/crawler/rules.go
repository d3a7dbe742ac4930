package crawler

import (
	"regexp"

	"github.com/Harvey-AU/outline-crawler/internal/extract"
)

var (
	paginationText = regexp.MustCompile(`次へ|Next|次のページ|›|»`)
	paginationPath = regexp.MustCompile(`/page/\d+`)
)

// InScopeRule follows every in-scope link on the page, inside the content region or not.
type InScopeRule struct{}

// Follow implements extract.LinkFilter.
func (InScopeRule) Follow(a extract.Anchor) bool {
	return a.InScope
}

// RegionRule follows only in-scope links inside the content region.
type RegionRule struct{}

// Follow implements extract.LinkFilter.
func (RegionRule) Follow(a extract.Anchor) bool {
	return a.InScope && a.InRegion
}

// PaginationRule follows in-scope "next page" anchors anywhere on the page,
// matched on anchor text or a /page/N path.
type PaginationRule struct {
	Text *regexp.Regexp
	Path *regexp.Regexp
}

// DefaultPaginationRule matches common English and Japanese pagination links.
func DefaultPaginationRule() PaginationRule {
	return PaginationRule{Text: paginationText, Path: paginationPath}
}

// Follow implements extract.LinkFilter.
func (p PaginationRule) Follow(a extract.Anchor) bool {
	if !a.InScope {
		return false
	}
	if p.Text != nil && p.Text.MatchString(a.Text) {
		return true
	}
	return p.Path != nil && p.Path.MatchString(a.URL.Path)
}

// AnyRule follows a link when any of its rules does.
type AnyRule []extract.LinkFilter

// Follow implements extract.LinkFilter.
func (r AnyRule) Follow(a extract.Anchor) bool {
	for _, rule := range r {
		if rule.Follow(a) {
			return true
		}
	}
	return false
}

// FollowRules builds the rule set for a crawl from config.
func FollowRules(config *Config) extract.LinkFilter {
	var base extract.LinkFilter = InScopeRule{}
	if config.RegionLinksOnly {
		base = RegionRule{}
	}
	if !config.FollowPagination {
		return base
	}
	return AnyRule{base, DefaultPaginationRule()}
}
