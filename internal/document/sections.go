package document

import (
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Section is a markdown heading together with the lines that follow it up
// to the next heading of the same or a higher level.
type Section struct {
	Level int
	Title string
	Body  string

	// Line indexes into the text the section was found in. Start is the
	// heading line, BodyStart the first line after it, End is exclusive.
	Start     int
	BodyStart int
	End       int
}

type heading struct {
	level     int
	title     string
	line      int
	bodyStart int
}

// headings returns the top-level headings of d. Headings inside code
// blocks, lists or block quotes do not delimit sections.
func (d *Doc) headings() []heading {
	lines := d.lines()
	var out []heading
	prevEnd := -1
	for c := d.Root.FirstChild(); c != nil; c = c.NextSibling() {
		first, last, ok := d.span(c)
		h, isHeading := c.(*ast.Heading)
		if !isHeading {
			if ok {
				prevEnd = last
			}
			continue
		}
		hd := heading{level: h.Level, title: headingTitle(d.Text(h))}
		switch {
		case !ok:
			// "##" with no text carries no source segment.
			hd.line = findATX(lines, prevEnd+1)
			hd.bodyStart = hd.line + 1
		case strings.HasPrefix(strings.TrimSpace(lines[first]), "#"):
			hd.line = first
			hd.bodyStart = first + 1
		default:
			// Setext: the underline follows the text.
			hd.line = first
			hd.bodyStart = last + 2
		}
		out = append(out, hd)
		prevEnd = hd.bodyStart - 1
	}
	return out
}

func findATX(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimLeft(lines[i], " "), "#") {
			return i
		}
	}
	return from
}

func headingTitle(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "#"))
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Sections returns every section at the given heading level in order.
func Sections(text string, level int) []Section {
	d := ParseMarkdown(text)
	lines := d.lines()
	hs := d.headings()
	var out []Section
	for i, h := range hs {
		if h.level != level {
			continue
		}
		end := len(lines)
		for _, next := range hs[i+1:] {
			if next.level <= level {
				end = next.line
				break
			}
		}
		start := min(h.bodyStart, end)
		out = append(out, Section{
			Level:     level,
			Title:     h.title,
			Body:      strings.Trim(strings.Join(lines[start:end], "\n"), "\n"),
			Start:     h.line,
			BodyStart: start,
			End:       end,
		})
	}
	return out
}

// FindSection returns the first section at level whose title equals title
// (case-insensitive).
func FindSection(text string, level int, title string) (Section, bool) {
	for _, s := range Sections(text, level) {
		if strings.EqualFold(s.Title, title) {
			return s, true
		}
	}
	return Section{}, false
}

// FindLastSection is FindSection but returns the final match.
func FindLastSection(text string, level int, title string) (Section, bool) {
	var found Section
	ok := false
	for _, s := range Sections(text, level) {
		if strings.EqualFold(s.Title, title) {
			found, ok = s, true
		}
	}
	return found, ok
}

// FindSectionContaining returns the first section at level whose title
// contains substr (case-insensitive).
func FindSectionContaining(text string, level int, substr string) (Section, bool) {
	needle := strings.ToLower(substr)
	for _, s := range Sections(text, level) {
		if strings.Contains(strings.ToLower(s.Title), needle) {
			return s, true
		}
	}
	return Section{}, false
}

// ReplaceSectionBody swaps the body of the first level/title section. When
// the section does not exist it is appended to the end of text.
func ReplaceSectionBody(text string, level int, title, body string) string {
	body = strings.Trim(body, "\n")
	s, ok := FindSection(text, level, title)
	if !ok {
		var b strings.Builder
		b.WriteString(strings.TrimRight(text, "\n"))
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Repeat("#", level) + " " + title + "\n\n")
		b.WriteString(body)
		b.WriteString("\n")
		return b.String()
	}

	lines := splitLines(text)
	var out []string
	out = append(out, lines[:s.BodyStart]...)
	out = append(out, "")
	if body != "" {
		out = append(out, body)
	}
	if s.End < len(lines) {
		out = append(out, "")
		out = append(out, lines[s.End:]...)
	}
	result := strings.Join(out, "\n")
	if !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result
}
