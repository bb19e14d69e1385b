package document

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.TaskList))

// Doc is a parsed markdown text. Node positions map back to source lines
// through Line.
type Doc struct {
	Source []byte
	Root   ast.Node

	starts []int
}

// ParseMarkdown parses s as CommonMark with GFM tables and task lists.
// CRLF line endings are normalized first.
func ParseMarkdown(s string) *Doc {
	src := []byte(strings.ReplaceAll(s, "\r\n", "\n"))
	d := &Doc{Source: src, Root: markdown.Parser().Parse(text.NewReader(src)), starts: []int{0}}
	for i, b := range src {
		if b == '\n' {
			d.starts = append(d.starts, i+1)
		}
	}
	return d
}

// Line returns the 0-based line holding byte offset.
func (d *Doc) Line(offset int) int {
	return sort.Search(len(d.starts), func(i int) bool { return d.starts[i] > offset }) - 1
}

func (d *Doc) lines() []string {
	return strings.Split(string(d.Source), "\n")
}

// Text joins the trimmed source lines of a block node with single spaces.
func (d *Doc) Text(n ast.Node) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if v := strings.TrimSpace(string(seg.Value(d.Source))); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// TextLines returns the trimmed, non-empty source lines of a block node.
func (d *Doc) TextLines(n ast.Node) []string {
	lines := n.Lines()
	var out []string
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if v := strings.TrimSpace(string(seg.Value(d.Source))); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// span returns the first and last source lines covered by n and its
// descendant blocks. ok is false for nodes without source lines, such as
// thematic breaks.
func (d *Doc) span(n ast.Node) (first, last int, ok bool) {
	lo, hi := -1, -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if lo < 0 || seg.Start < lo {
				lo = seg.Start
			}
			if seg.Stop > hi {
				hi = seg.Stop
			}
		}
		return ast.WalkContinue, nil
	})
	if lo < 0 {
		return 0, 0, false
	}
	if hi-1 > lo {
		hi--
	} else {
		hi = lo
	}
	return d.Line(lo), d.Line(hi), true
}

// Paragraphs returns the text blocks of d in document order, skipping code,
// HTML and tables.
func (d *Doc) Paragraphs() []ast.Node {
	var out []ast.Node
	_ = ast.Walk(d.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindTextBlock:
			out = append(out, n)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// ListItems returns the first text block of every list item, nested items
// included, in document order.
func (d *Doc) ListItems() []ast.Node {
	var out []ast.Node
	_ = ast.Walk(d.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		if first := n.FirstChild(); first != nil && first.Lines().Len() > 0 {
			out = append(out, first)
		}
		return ast.WalkContinue, nil
	})
	return out
}
