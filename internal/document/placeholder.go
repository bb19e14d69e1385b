package document

import (
	"regexp"
	"strings"
)

var (
	bracketToken = regexp.MustCompile(`\[([^\[\]\n]+)\]`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	gwtLine      = regexp.MustCompile(`(?i)^[\s>*\-+]*(?:\*\*|__)?(given|when|then)\b(?:\*\*|__)?[:\s]*(.*)$`)
)

// Placeholders returns the unresolved template markers in text, e.g.
// "[Describe the problem]". Checkboxes, markdown links and HTML comments are
// not placeholders.
func Placeholders(text string) []string {
	text = htmlComment.ReplaceAllString(text, "")
	var out []string
	for _, idx := range bracketToken.FindAllStringSubmatchIndex(text, -1) {
		inner := text[idx[2]:idx[3]]
		switch strings.TrimSpace(inner) {
		case "", "x", "X":
			continue
		}
		if idx[1] < len(text) && (text[idx[1]] == '(' || text[idx[1]] == '[') {
			continue
		}
		if idx[0] > 0 && text[idx[0]-1] == ']' {
			continue
		}
		out = append(out, text[idx[0]:idx[1]])
	}
	return out
}

// IsPlaceholder reports whether s is empty or consists only of template
// markers.
func IsPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return strings.TrimSpace(bracketToken.ReplaceAllString(s, "")) == ""
}

// StripComments removes HTML comments, which templates use for authoring
// hints.
func StripComments(text string) string {
	return strings.TrimSpace(htmlComment.ReplaceAllString(text, ""))
}

// CountScenarios counts complete Given/When/Then triples in text. A clause
// whose text is only a placeholder does not count.
func CountScenarios(text string) int {
	text = htmlComment.ReplaceAllString(text, "")
	count := 0
	want := "given"
	for _, line := range splitLines(text) {
		m := gwtLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kw := strings.ToLower(m[1])
		if IsPlaceholder(m[2]) {
			continue
		}
		switch {
		case kw == "given":
			want = "when"
		case kw == want && kw == "when":
			want = "then"
		case kw == want && kw == "then":
			count++
			want = "given"
		}
	}
	return count
}
