package review

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/joescharf/kanban/internal/document"
)

type table struct {
	header []string
	rows   [][]string
}

// firstTable reads the first GFM table in body. ok is false when body has
// none.
func firstTable(body string) (t table, ok bool) {
	d := document.ParseMarkdown(body)
	_ = ast.Walk(d.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		tbl, isTable := n.(*extast.Table)
		if !isTable {
			return ast.WalkContinue, nil
		}
		for r := tbl.FirstChild(); r != nil; r = r.NextSibling() {
			cells := rowCells(d, r)
			if _, isHeader := r.(*extast.TableHeader); isHeader {
				t.header = cells
				continue
			}
			t.rows = append(t.rows, cells)
		}
		ok = true
		return ast.WalkStop, nil
	})
	return t, ok
}

func rowCells(d *document.Doc, row ast.Node) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, strings.ReplaceAll(d.Text(c), `\|`, "|"))
	}
	return cells
}

// column returns the index of the first header containing any of names,
// or fallback when no header matches. A fallback past the header width
// yields -1.
func (t table) column(fallback int, names ...string) int {
	for i, h := range t.header {
		lh := strings.ToLower(h)
		for _, n := range names {
			if strings.Contains(lh, n) {
				return i
			}
		}
	}
	if len(t.header) > 0 && fallback >= len(t.header) {
		return -1
	}
	return fallback
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
