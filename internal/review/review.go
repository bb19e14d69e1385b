// Package review extracts structured review outcomes from the "## Review"
// section appended to spec documents.
package review

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/joescharf/kanban/internal/document"
	"github.com/joescharf/kanban/internal/models"
)

// FailedCriterion is an acceptance criterion whose status is not PASS.
type FailedCriterion struct {
	Criterion string `json:"criterion"`
	Status    string `json:"status"`
	Evidence  string `json:"evidence"`
}

// String renders the criterion with its evidence for review history.
func (f FailedCriterion) String() string {
	if f.Evidence == "" {
		return f.Criterion
	}
	return f.Criterion + ": " + f.Evidence
}

// MissingTest is a test-coverage row marked MISSING.
type MissingTest struct {
	Test     string `json:"test"`
	Location string `json:"location"`
}

// Parsed is the structured content of the latest review section.
type Parsed struct {
	Verdict        models.Verdict    `json:"verdict"`
	ReviewedDate   string            `json:"reviewed_date"`
	FailedCriteria []FailedCriterion `json:"failed_criteria"`
	MissingTests   []MissingTest     `json:"missing_tests"`
	Concerns       []string          `json:"concerns"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Record converts the parse into a history entry for the given round. The
// reviewed date is used when present, otherwise fallbackDate.
func (p *Parsed) Record(round int, fallbackDate string) models.ReviewRecord {
	date := p.ReviewedDate
	if date == "" {
		date = fallbackDate
	}
	rec := models.ReviewRecord{
		Round:          round,
		Date:           date,
		Verdict:        p.Verdict,
		FailedCriteria: []string{},
		Concerns:       append([]string{}, p.Concerns...),
	}
	for _, fc := range p.FailedCriteria {
		rec.FailedCriteria = append(rec.FailedCriteria, fc.String())
	}
	return rec
}

// Parser parses review sections and reports table rows it cannot classify
// to its logger.
type Parser struct {
	Logger *slog.Logger
}

// NewParser returns a Parser logging to logger (slog.Default when nil).
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{Logger: logger}
}

// Parse is shorthand for NewParser(nil).Parse.
func Parse(content string) (*Parsed, error) {
	return NewParser(nil).Parse(content)
}

const reviewHeading = "Review"

var dateLine = regexp.MustCompile(`(?i)^[\s\-*]*(?:reviewed(?:\s+(?:on|date))?|review\s+date|date)[\s*_]*:[\s*_]*(.+?)[\s*_]*$`)

// Parse returns nil with no error when content has no "## Review" section.
// When several exist, only the last one is read. A missing or ambiguous
// verdict is a MalformedReviewError.
func (p *Parser) Parse(content string) (*Parsed, error) {
	sec, ok := document.FindLastSection(content, 2, reviewHeading)
	if !ok {
		return nil, nil
	}

	verdict, err := parseVerdict(sec.Body)
	if err != nil {
		return nil, err
	}

	out := &Parsed{
		Verdict:        verdict,
		ReviewedDate:   parseReviewedDate(sec.Body),
		FailedCriteria: []FailedCriterion{},
		MissingTests:   []MissingTest{},
		Concerns:       []string{},
	}

	if ac, ok := document.FindSectionContaining(sec.Body, 3, "Acceptance Criteria Verification"); ok {
		p.collectCriteria(out, ac.Body)
	}
	if tc, ok := document.FindSectionContaining(sec.Body, 3, "Test Coverage Audit"); ok {
		p.collectTests(out, tc.Body)
	}
	if cs, ok := document.FindSectionContaining(sec.Body, 3, "Concerns"); ok {
		out.Concerns = parseConcerns(cs.Body)
	}

	for _, w := range out.Warnings {
		p.Logger.Warn("review parser", "warning", w)
	}
	return out, nil
}

func parseVerdict(body string) (models.Verdict, error) {
	var sec document.Section
	found := false
	for _, s := range document.Sections(body, 3) {
		if strings.HasPrefix(strings.ToLower(s.Title), "verdict") {
			sec, found = s, true
			break
		}
	}
	if !found {
		return "", &models.MalformedReviewError{Reason: "no ### Verdict heading in review section"}
	}

	line := strings.TrimSpace(strings.TrimLeft(sec.Title[len("verdict"):], ":- "))
	if line == "" {
		d := document.ParseMarkdown(sec.Body)
		if paras := d.Paragraphs(); len(paras) > 0 {
			if lines := d.TextLines(paras[0]); len(lines) > 0 {
				line = lines[0]
			}
		}
	}

	approved := strings.Contains(line, string(models.VerdictApproved))
	needsWork := strings.Contains(line, string(models.VerdictNeedsWork))
	switch {
	case approved && needsWork:
		return "", &models.MalformedReviewError{Reason: fmt.Sprintf("ambiguous verdict %q", line)}
	case approved:
		return models.VerdictApproved, nil
	case needsWork:
		return models.VerdictNeedsWork, nil
	case line == "":
		return "", &models.MalformedReviewError{Reason: "empty verdict"}
	default:
		return "", &models.MalformedReviewError{Reason: fmt.Sprintf("verdict %q is neither APPROVED nor NEEDS_WORK", line)}
	}
}

// parseReviewedDate reads the first "Reviewed: <date>" line outside code
// blocks and tables.
func parseReviewedDate(body string) string {
	d := document.ParseMarkdown(body)
	for _, p := range d.Paragraphs() {
		for _, line := range d.TextLines(p) {
			if m := dateLine.FindStringSubmatch(line); m != nil {
				return strings.Trim(strings.TrimSpace(m[1]), "*_`")
			}
		}
	}
	return ""
}

func (p *Parser) collectCriteria(out *Parsed, body string) {
	t, ok := firstTable(body)
	if !ok {
		out.Warnings = append(out.Warnings, "acceptance criteria verification has no table")
		return
	}
	status := t.column(1, "status")
	name := 0
	if status == 0 {
		name = 1
	}
	evidence := t.column(status+1, "evidence", "notes", "details")
	for i, row := range t.rows {
		tok, ok := statusToken(cell(row, status))
		if !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("acceptance criteria row %d: unrecognized status %q", i+1, cell(row, status)))
			continue
		}
		if tok == "PASS" {
			continue
		}
		out.FailedCriteria = append(out.FailedCriteria, FailedCriterion{
			Criterion: cell(row, name),
			Status:    tok,
			Evidence:  cell(row, evidence),
		})
	}
}

func (p *Parser) collectTests(out *Parsed, body string) {
	t, ok := firstTable(body)
	if !ok {
		out.Warnings = append(out.Warnings, "test coverage audit has no table")
		return
	}
	status := t.column(1, "status")
	name := 0
	if status == 0 {
		name = 1
	}
	location := t.column(status+1, "location", "expected", "file")
	for i, row := range t.rows {
		tok, ok := statusToken(cell(row, status))
		if !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("test coverage row %d: unrecognized status %q", i+1, cell(row, status)))
			continue
		}
		if tok != "MISSING" {
			continue
		}
		out.MissingTests = append(out.MissingTests, MissingTest{
			Test:     cell(row, name),
			Location: cell(row, location),
		})
	}
}

func parseConcerns(body string) []string {
	concerns := []string{}
	d := document.ParseMarkdown(body)
	for _, item := range d.ListItems() {
		text := d.Text(item)
		norm := strings.TrimRight(strings.Trim(text, "*_ "), ".")
		if strings.EqualFold(norm, "None identified") {
			continue
		}
		concerns = append(concerns, text)
	}
	return concerns
}

// statusToken reads a status cell as exactly one of PASS, FAIL or MISSING.
// Emoji, emphasis markers and surrounding space are ignored; any other
// words make the cell unrecognized.
func statusToken(s string) (string, bool) {
	words := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) != 1 {
		return "", false
	}
	switch words[0] {
	case "PASS", "FAIL", "MISSING":
		return words[0], true
	}
	return "", false
}
