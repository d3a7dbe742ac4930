package extract

import (
	"strings"
	"testing"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(levels ...int) []FlatHeading {
	out := make([]FlatHeading, 0, len(levels))
	for i, l := range levels {
		out = append(out, FlatHeading{Level: l, Text: string(rune('A' + i))})
	}
	return out
}

// assertNested walks the tree checking every child is strictly deeper than its parent.
func assertNested(t *testing.T, nodes []models.HeadingNode, parentLevel int) int {
	t.Helper()
	count := 0
	for _, n := range nodes {
		assert.Greater(t, n.Level, parentLevel, "heading %q sits under a level %d parent", n.Text, parentLevel)
		count += 1 + assertNested(t, n.Children, n.Level)
	}
	return count
}

func preorder(nodes []models.HeadingNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Text)
		out = append(out, preorder(n.Children)...)
	}
	return out
}

func TestBuildHeadingTree(t *testing.T) {
	tests := []struct {
		name      string
		input     []FlatHeading
		wantRoots []string
	}{
		{"empty", nil, []string{}},
		{"single", flat(1), []string{"A"}},
		{"siblings", flat(2, 2, 2), []string{"A", "B", "C"}},
		{"skipped_level_then_root", flat(1, 3, 1), []string{"A", "C"}},
		{"starts_deep", flat(3, 1, 2), []string{"A", "B"}},
		{"descending", flat(4, 3, 2, 1), []string{"A", "B", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := BuildHeadingTree(tt.input)
			require.NotNil(t, tree)

			roots := make([]string, 0, len(tree))
			for _, r := range tree {
				roots = append(roots, r.Text)
			}
			assert.Equal(t, tt.wantRoots, roots)

			total := assertNested(t, tree, 0)
			assert.Equal(t, len(tt.input), total, "every heading appears exactly once")

			if len(tt.input) > 0 {
				want := make([]string, 0, len(tt.input))
				for _, h := range tt.input {
					want = append(want, h.Text)
				}
				assert.Equal(t, want, preorder(tree), "pre-order traversal matches document order")
			}
		})
	}
}

func TestBuildHeadingTreeH1H3H1(t *testing.T) {
	tree := BuildHeadingTree([]FlatHeading{
		{Level: 1, Text: "Intro"},
		{Level: 3, Text: "Detail"},
		{Level: 1, Text: "Outro"},
	})

	require.Len(t, tree, 2)
	assert.Equal(t, "h1", tree[0].Tag())
	assert.Equal(t, "Intro", tree[0].Text)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "h3", tree[0].Children[0].Tag())
	assert.Equal(t, "Detail", tree[0].Children[0].Text)
	assert.Empty(t, tree[0].Children[0].Children)
	assert.Equal(t, "Outro", tree[1].Text)
	assert.Empty(t, tree[1].Children)
}

func TestBuildHeadingTreeNesting(t *testing.T) {
	tree := BuildHeadingTree(flat(1, 2, 3, 2, 4, 1))

	require.Len(t, tree, 2)
	a := tree[0]
	require.Len(t, a.Children, 2)
	assert.Equal(t, "B", a.Children[0].Text)
	require.Len(t, a.Children[0].Children, 1)
	assert.Equal(t, "C", a.Children[0].Children[0].Text)
	assert.Equal(t, "D", a.Children[1].Text)
	require.Len(t, a.Children[1].Children, 1)
	assert.Equal(t, "E", a.Children[1].Children[0].Text)
	assert.Equal(t, "F", tree[1].Text)
}

func TestBuildHeadingTreeIgnoresOutOfRangeLevels(t *testing.T) {
	tree := BuildHeadingTree([]FlatHeading{{Level: 0, Text: "x"}, {Level: 5, Text: "y"}, {Level: 2, Text: "z"}})
	require.Len(t, tree, 1)
	assert.Equal(t, "z", tree[0].Text)
}

func TestCollectHeadings(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
		<h1>  Main
		  title </h1>
		<h5>too deep</h5>
		<div><h2>Section</h2><h4>Minor</h4></div>
		<h3></h3>
		</body></html>`))
	require.NoError(t, err)

	got := CollectHeadings(doc)
	assert.Equal(t, []FlatHeading{
		{Level: 1, Text: "Main title"},
		{Level: 2, Text: "Section"},
		{Level: 4, Text: "Minor"},
		{Level: 3, Text: ""},
	}, got)
}
