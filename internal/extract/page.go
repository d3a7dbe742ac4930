package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/Harvey-AU/outline-crawler/internal/util"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Field is a value read from the page, with Present distinguishing an absent
// element from an empty one.
type Field struct {
	Value   string
	Present bool
}

// Metadata is the head-level information read from a page.
type Metadata struct {
	Title       Field
	Description Field
	Robots      Field
}

// Indexable reports whether the robots meta allows indexing. A missing tag means indexable.
func (m Metadata) Indexable() bool {
	return !strings.Contains(strings.ToLower(m.Robots.Value), "noindex")
}

// ReadMetadata reads the title, meta description and meta robots.
func ReadMetadata(doc *goquery.Document) Metadata {
	var md Metadata

	if title := doc.Find("title").First(); title.Length() > 0 {
		md.Title = Field{Value: strings.TrimSpace(title.Text()), Present: true}
	}

	md.Description = metaContent(doc, "description")
	md.Robots = metaContent(doc, "robots")
	return md
}

func metaContent(doc *goquery.Document, name string) Field {
	sel := doc.Find("meta[name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name)
	}).First()

	content, ok := sel.Attr("content")
	if !ok {
		return Field{}
	}
	return Field{Value: strings.TrimSpace(content), Present: true}
}

// RegionMatcher selects the elements that make up a page's content region.
type RegionMatcher func(s *goquery.Selection) bool

// ClassContains matches div elements whose class attribute contains substr.
// The match is on the raw attribute, so "post" also matches "post_content".
func ClassContains(substr string) RegionMatcher {
	return func(s *goquery.Selection) bool {
		if goquery.NodeName(s) != "div" {
			return false
		}
		class, ok := s.Attr("class")
		return ok && strings.Contains(class, substr)
	}
}

// StatusResolver produces the status of one link.
type StatusResolver interface {
	Resolve(ctx context.Context, u *url.URL, inScope bool) models.LinkStatus
}

// Anchor is a normalised link found anywhere on the page.
type Anchor struct {
	URL      *url.URL
	Text     string
	InRegion bool
	InScope  bool
}

// LinkFilter decides whether an anchor should be followed by the crawl.
type LinkFilter interface {
	Follow(a Anchor) bool
}

// LinkFilterFunc adapts a function to LinkFilter.
type LinkFilterFunc func(a Anchor) bool

// Follow calls f(a).
func (f LinkFilterFunc) Follow(a Anchor) bool { return f(a) }

// inScopeLinks is the default filter: every in-scope link on the page.
var inScopeLinks = LinkFilterFunc(func(a Anchor) bool { return a.InScope })

// ParsedPage is a page with everything extracted except link statuses.
type ParsedPage struct {
	Record  models.PageRecord
	links   []*url.URL
	inScope []bool
}

// Extractor turns fetched documents into page records.
type Extractor struct {
	region   RegionMatcher
	resolver StatusResolver
	follow   LinkFilter
}

// NewExtractor creates an Extractor. A nil follow filter follows every in-scope link.
func NewExtractor(region RegionMatcher, resolver StatusResolver, follow LinkFilter) *Extractor {
	if follow == nil {
		follow = inScopeLinks
	}
	return &Extractor{region: region, resolver: resolver, follow: follow}
}

// Extract parses doc and resolves the status of every content link.
// It returns the record and the URLs the crawl should follow.
func (e *Extractor) Extract(ctx context.Context, doc *Document, job models.CrawlJob) (models.PageRecord, []*url.URL) {
	page, follow := e.Parse(doc, job)
	return e.ResolveLinks(ctx, page), follow
}

// Parse extracts metadata, headings, structured data and links without probing anything.
func (e *Extractor) Parse(doc *Document, job models.CrawlJob) (*ParsedPage, []*url.URL) {
	pageURL := doc.URL.String()
	md := ReadMetadata(doc.DOM)

	jsonLD, errs := ParseStructuredData(CollectStructuredData(doc.DOM))
	for _, err := range errs {
		log.Debug().
			Err(err).
			Str("url", pageURL).
			Msg("Dropping malformed JSON-LD block")
	}

	page := &ParsedPage{
		Record: models.PageRecord{
			ArticleURL:      pageURL,
			MetaTitle:       md.Title.Value,
			MetaDescription: md.Description.Value,
			IsIndexable:     md.Indexable(),
			InternalLinks:   []models.InternalLink{},
			Headings:        BuildHeadingTree(CollectHeadings(doc.DOM)),
			JSONLD:          jsonLD,
		},
	}

	region := e.contentRegion(doc.DOM)
	if region.Length() == 0 {
		log.Debug().
			Str("url", pageURL).
			Msg("Content region not found, emitting record without links")
	}

	inRegion := make(map[*html.Node]bool)
	region.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		inRegion[s.Get(0)] = true
	})

	var candidates []*url.URL
	seen := make(map[string]bool)

	doc.DOM.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := util.Normalise(doc.Base(), href)
		if err != nil {
			log.Trace().
				Str("url", pageURL).
				Str("href", href).
				Err(err).
				Msg("Skipping link")
			return
		}

		a := Anchor{
			URL:      u,
			Text:     collapseSpace(s.Text()),
			InRegion: inRegion[s.Get(0)],
			InScope:  util.SameDomain(u, job.AllowedDomain),
		}

		if a.InRegion {
			page.Record.InternalLinks = append(page.Record.InternalLinks, models.InternalLink{
				LinkURL:    u.String(),
				AnchorText: a.Text,
			})
			page.links = append(page.links, u)
			page.inScope = append(page.inScope, a.InScope)
		}

		if a.InScope && e.follow.Follow(a) && !seen[u.String()] {
			seen[u.String()] = true
			candidates = append(candidates, u)
		}
	})

	log.Debug().
		Str("url", pageURL).
		Int("content_links", len(page.links)).
		Int("follow_candidates", len(candidates)).
		Int("headings", len(page.Record.Headings)).
		Int("json_ld_blocks", len(jsonLD)).
		Msg("Parsed page")

	return page, candidates
}

// ResolveLinks fills in every link status and returns the finished record.
// In-scope links are resolved concurrently; the call returns once all are done.
func (e *Extractor) ResolveLinks(ctx context.Context, page *ParsedPage) models.PageRecord {
	rec := page.Record
	links := make([]models.InternalLink, len(rec.InternalLinks))
	copy(links, rec.InternalLinks)

	var g errgroup.Group
	for i, u := range page.links {
		if !page.inScope[i] {
			links[i].Status = e.resolver.Resolve(ctx, u, false)
			continue
		}
		g.Go(func() error {
			links[i].Status = e.resolver.Resolve(ctx, u, true)
			return nil
		})
	}
	_ = g.Wait()

	rec.InternalLinks = links
	return rec
}

func (e *Extractor) contentRegion(doc *goquery.Document) *goquery.Selection {
	if e.region == nil {
		return doc.Selection.Slice(0, 0)
	}
	return doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return e.region(s)
	})
}
