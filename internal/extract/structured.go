package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// CollectStructuredData returns the raw text of every JSON-LD script block in the document.
func CollectStructuredData(doc *goquery.Document) []string {
	var raw []string
	doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
		raw = append(raw, s.Text())
	})
	return raw
}

// ParseStructuredData decodes each block independently. Blocks that fail to
// parse are left out of the result and reported in the error slice.
func ParseStructuredData(raw []string) ([]any, []error) {
	values := make([]any, 0, len(raw))
	var errs []error

	for i, block := range raw {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(block), &v); err != nil {
			errs = append(errs, fmt.Errorf("json-ld block %d: %w", i, err))
			continue
		}
		values = append(values, v)
	}

	return values, errs
}
