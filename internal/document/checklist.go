package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/joescharf/kanban/internal/models"
)

type taskItem struct {
	models.ChecklistItem
	mark     int // byte offset of the character between the brackets
	lastLine int
}

// taskItems returns every GFM task list item in d, in document order.
func (d *Doc) taskItems() []taskItem {
	var items []taskItem
	_ = ast.Walk(d.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		box, ok := n.(*extast.TaskCheckBox)
		if !ok {
			return ast.WalkContinue, nil
		}
		block := box.Parent()
		if block == nil || block.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := block.Lines().At(0)
		open := bytes.IndexByte(d.Source[seg.Start:seg.Stop], '[')
		if open < 0 {
			return ast.WalkContinue, nil
		}
		first := d.Source[seg.Start+open : seg.Stop]
		label := ""
		if i := bytes.IndexByte(first, ']'); i >= 0 {
			label = strings.TrimSpace(string(first[i+1:]))
		}
		_, last, _ := d.span(block.Parent())
		items = append(items, taskItem{
			ChecklistItem: models.ChecklistItem{Text: label, Checked: box.IsChecked},
			mark:          seg.Start + open + 1,
			lastLine:      last,
		})
		return ast.WalkContinue, nil
	})
	return items
}

// ParseChecklist extracts "- [ ]" / "- [x]" items from text in order.
func ParseChecklist(text string) []models.ChecklistItem {
	var items []models.ChecklistItem
	for _, it := range ParseMarkdown(text).taskItems() {
		items = append(items, it.ChecklistItem)
	}
	return items
}

// SetChecklistItem marks the n-th (0-based) checkbox in text.
func SetChecklistItem(text string, n int, checked bool) (string, error) {
	d := ParseMarkdown(text)
	items := d.taskItems()
	if n < 0 || n >= len(items) {
		return "", fmt.Errorf("checklist item %d out of range (%d items)", n+1, len(items))
	}
	src := append([]byte(nil), d.Source...)
	src[items[n].mark] = ' '
	if checked {
		src[items[n].mark] = 'x'
	}
	return string(src), nil
}

// AppendChecklistItem adds an unchecked item after the last existing one.
func AppendChecklistItem(text, item string) string {
	trimmed := strings.TrimRight(text, "\n")
	entry := "- [ ] " + strings.TrimSpace(item)
	d := ParseMarkdown(trimmed)
	items := d.taskItems()
	if len(items) == 0 {
		if strings.TrimSpace(trimmed) == "" {
			return entry
		}
		return trimmed + "\n" + entry
	}
	lines := d.lines()
	at := items[len(items)-1].lastLine + 1
	out := append([]string{}, lines[:at]...)
	out = append(out, entry)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}
