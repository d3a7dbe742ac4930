// Package techdetect fingerprints the technologies behind a crawled site with wappalyzergo.
package techdetect

import (
	"net/http"
	"sort"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/rs/zerolog/log"
)

// Technologies maps a technology name to its categories, e.g. {"WordPress": ["CMS", "Blogs"]}.
type Technologies map[string][]string

// Names returns the detected technology names in sorted order.
func (t Technologies) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detector wraps a loaded wappalyzer fingerprint database.
type Detector struct {
	client *wappalyzer.Wappalyze
}

var (
	categoryNames     map[int]string
	categoryNamesOnce sync.Once
)

// New loads the fingerprint database.
func New() (*Detector, error) {
	client, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}

	categoryNamesOnce.Do(func() {
		categoryNames = make(map[int]string)
		for id, cat := range wappalyzer.GetCategoriesMapping() {
			categoryNames[id] = cat.Name
		}
	})

	return &Detector{client: client}, nil
}

// Detect fingerprints a page from its response headers and body. It never returns nil.
func (d *Detector) Detect(url string, header http.Header, body []byte) Technologies {
	techs := make(Technologies)
	if d == nil || d.client == nil {
		return techs
	}

	for tech, info := range d.client.FingerprintWithCats(header, body) {
		categories := make([]string, 0, len(info.Cats))
		for _, id := range info.Cats {
			if name, ok := categoryNames[id]; ok {
				categories = append(categories, name)
			}
		}
		sort.Strings(categories)
		techs[tech] = categories
	}

	log.Debug().
		Str("url", url).
		Int("tech_count", len(techs)).
		Strs("technologies", techs.Names()).
		Msg("Technology detection completed")

	return techs
}
