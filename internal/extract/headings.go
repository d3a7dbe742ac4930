package extract

import (
	"strings"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// MaxHeadingLevel is the deepest heading level included in page outlines.
const MaxHeadingLevel = 4

const headingSelector = "h1, h2, h3, h4"

// FlatHeading is a heading as it appears in document order, before nesting.
type FlatHeading struct {
	Level int
	Text  string
}

type arenaNode struct {
	level    int
	text     string
	children []int
}

// BuildHeadingTree nests headings by level in one left-to-right pass.
// A heading becomes a child of the nearest preceding heading with a strictly
// lower level, or a new root when there is none.
func BuildHeadingTree(flat []FlatHeading) []models.HeadingNode {
	arena := make([]arenaNode, 0, len(flat))
	roots := make([]int, 0)
	stack := make([]int, 0, MaxHeadingLevel)

	for _, h := range flat {
		if h.Level < 1 || h.Level > MaxHeadingLevel {
			continue
		}

		for len(stack) > 0 && arena[stack[len(stack)-1]].level >= h.Level {
			stack = stack[:len(stack)-1]
		}

		idx := len(arena)
		arena = append(arena, arenaNode{level: h.Level, text: h.Text})

		if len(stack) == 0 {
			roots = append(roots, idx)
		} else {
			parent := stack[len(stack)-1]
			arena[parent].children = append(arena[parent].children, idx)
		}
		stack = append(stack, idx)
	}

	out := make([]models.HeadingNode, 0, len(roots))
	for _, idx := range roots {
		out = append(out, freeze(arena, idx))
	}
	return out
}

func freeze(arena []arenaNode, idx int) models.HeadingNode {
	n := arena[idx]
	children := make([]models.HeadingNode, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, freeze(arena, c))
	}
	return models.HeadingNode{Level: n.level, Text: n.text, Children: children}
}

// CollectHeadings returns every H1-H4 in the document, in document order.
func CollectHeadings(doc *goquery.Document) []FlatHeading {
	var flat []FlatHeading
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if len(name) != 2 || name[0] != 'h' {
			return
		}
		flat = append(flat, FlatHeading{
			Level: int(name[1] - '0'),
			Text:  collapseSpace(s.Text()),
		})
	})
	return flat
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
