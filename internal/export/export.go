// Package export writes crawl results as JSON or as an XLSX workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/xuri/excelize/v2"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "json" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or xlsx)", s)
	}
}

// Sheet names in the workbook.
const (
	SheetPages    = "Pages"
	SheetLinks    = "Links"
	SheetHeadings = "Headings"
)

var (
	pagesHeader    = []any{"Article URL", "Title", "Description", "Indexable", "Links", "Headings", "JSON-LD blocks"}
	linksHeader    = []any{"Article URL", "Link URL", "Anchor text", "Status", "Redirect URL"}
	headingsHeader = []any{"Article URL", "Tag", "Depth", "Text"}
)

// Write encodes result to w in the given format.
func Write(w io.Writer, result models.CrawlResult, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatXLSX:
		return WriteXLSX(w, result)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// WriteJSON writes the result as an indented JSON array of pages.
func WriteJSON(w io.Writer, result models.CrawlResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// WriteXLSX writes one row per page, one per internal link and one per heading,
// each on its own sheet.
func WriteXLSX(w io.Writer, result models.CrawlResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPages); err != nil {
		return fmt.Errorf("failed to name pages sheet: %w", err)
	}
	for _, name := range []string{SheetLinks, SheetHeadings} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", name, err)
		}
	}

	pages := &sheetWriter{f: f, sheet: SheetPages}
	links := &sheetWriter{f: f, sheet: SheetLinks}
	headings := &sheetWriter{f: f, sheet: SheetHeadings}

	pages.row(pagesHeader...)
	links.row(linksHeader...)
	headings.row(headingsHeader...)

	for _, p := range result.Pages {
		pages.row(p.ArticleURL, p.MetaTitle, p.MetaDescription, p.IsIndexable,
			len(p.InternalLinks), countHeadings(p.Headings), len(p.JSONLD))

		for _, l := range p.InternalLinks {
			links.row(p.ArticleURL, l.LinkURL, l.AnchorText, l.Status.Code, l.Status.RedirectURL)
		}

		walkHeadings(p.Headings, 0, func(h models.HeadingNode, depth int) {
			headings.row(p.ArticleURL, h.Tag(), depth, h.Text)
		})
	}

	for _, sw := range []*sheetWriter{pages, links, headings} {
		if sw.err != nil {
			return sw.err
		}
		if err := f.AutoFilter(sw.sheet, fmt.Sprintf("A1:%s", sw.lastCell()), nil); err != nil {
			return fmt.Errorf("failed to add filter to %s: %w", sw.sheet, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	cols  int
	err   error
}

func (s *sheetWriter) row(values ...any) {
	if s.err != nil {
		return
	}
	s.next++
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err == nil {
		err = s.f.SetSheetRow(s.sheet, cell, &values)
	}
	if err != nil {
		s.err = fmt.Errorf("failed to write %s row %d: %w", s.sheet, s.next, err)
		return
	}
	if len(values) > s.cols {
		s.cols = len(values)
	}
}

func (s *sheetWriter) lastCell() string {
	cell, _ := excelize.CoordinatesToCellName(s.cols, s.next)
	return cell
}

func walkHeadings(nodes []models.HeadingNode, depth int, fn func(models.HeadingNode, int)) {
	for _, n := range nodes {
		fn(n, depth)
		walkHeadings(n.Children, depth+1, fn)
	}
}

func countHeadings(nodes []models.HeadingNode) int {
	n := 0
	walkHeadings(nodes, 0, func(models.HeadingNode, int) { n++ })
	return n
}
