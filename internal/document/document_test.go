package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/models"
)

type testMeta struct {
	Type  string `yaml:"type"`
	Owner string `yaml:"owner"`
}

func TestDecodeEncode(t *testing.T) {
	src := []byte("---\ntype: feature\nowner: Alice\n---\n\n## Description\n\nHello\n")

	var meta testMeta
	body, err := Decode(src, &meta)
	require.NoError(t, err)
	assert.Equal(t, "feature", meta.Type)
	assert.Equal(t, "Alice", meta.Owner)
	assert.Equal(t, "## Description\n\nHello\n", body)

	out, err := Encode(meta, body)
	require.NoError(t, err)
	assert.Equal(t, string(src), string(out))
}

func TestSplit_Errors(t *testing.T) {
	_, _, err := Split([]byte("## no frontmatter"))
	assert.ErrorIs(t, err, ErrMissingFrontMatter)

	_, _, err = Split([]byte("---\ntype: bug\n"))
	assert.ErrorIs(t, err, ErrMalformedFrontMatter)
}

func TestSplit_CRLFAndFrontmatterOnly(t *testing.T) {
	meta, body, err := Split([]byte("---\r\ntype: bug\r\n---"))
	require.NoError(t, err)
	assert.Equal(t, "type: bug", string(meta))
	assert.Empty(t, body)
}

const sample = `# Title

## Description

Some text.

### Detail

nested

## Definition of Done

- [x] Tests pass
- [ ] Docs updated

` + "```" + `
## Not a heading
` + "```" + `

## Review

first

## Review

second
`

func TestSections(t *testing.T) {
	secs := Sections(sample, 2)
	require.Len(t, secs, 4)
	assert.Equal(t, "Description", secs[0].Title)
	assert.Contains(t, secs[0].Body, "### Detail")
	assert.Contains(t, secs[0].Body, "nested")
	assert.Equal(t, "Definition of Done", secs[1].Title)
	assert.Contains(t, secs[1].Body, "## Not a heading", "fenced headings stay in the body")
}

func TestFindLastSection(t *testing.T) {
	s, ok := FindLastSection(sample, 2, "review")
	require.True(t, ok)
	assert.Equal(t, "second", s.Body)

	s, ok = FindSection(sample, 2, "Review")
	require.True(t, ok)
	assert.Equal(t, "first", s.Body)

	_, ok = FindSection(sample, 2, "BDD Scenarios")
	assert.False(t, ok)
}

func TestFindSectionContaining(t *testing.T) {
	s, ok := FindSectionContaining(sample, 3, "deta")
	require.True(t, ok)
	assert.Equal(t, "nested", s.Body)
}

func TestReplaceSectionBody(t *testing.T) {
	out := ReplaceSectionBody(sample, 2, "Description", "New description.")
	s, ok := FindSection(out, 2, "Description")
	require.True(t, ok)
	assert.Equal(t, "New description.", s.Body)

	dod, ok := FindSection(out, 2, "Definition of Done")
	require.True(t, ok)
	assert.Contains(t, dod.Body, "- [x] Tests pass")

	appended := ReplaceSectionBody("## A\n\ntext\n", 2, "B", "more")
	assert.Equal(t, "## A\n\ntext\n\n## B\n\nmore\n", appended)
}

func TestChecklist(t *testing.T) {
	text := "- [x] Tests pass\n- [ ] Docs updated\n* [X] Reviewed\nnot an item"
	items := ParseChecklist(text)
	assert.Equal(t, []models.ChecklistItem{
		{Text: "Tests pass", Checked: true},
		{Text: "Docs updated", Checked: false},
		{Text: "Reviewed", Checked: true},
	}, items)

	out, err := SetChecklistItem(text, 1, true)
	require.NoError(t, err)
	assert.Contains(t, out, "- [x] Docs updated")

	out, err = SetChecklistItem(out, 0, false)
	require.NoError(t, err)
	assert.Contains(t, out, "- [ ] Tests pass")

	_, err = SetChecklistItem(text, 5, true)
	assert.Error(t, err)

	added := AppendChecklistItem("- [x] one\n\ntrailing", "two")
	assert.Equal(t, "- [x] one\n- [ ] two\n\ntrailing", added)
	assert.Equal(t, "- [ ] first", AppendChecklistItem("", "first"))
}

func TestPlaceholders(t *testing.T) {
	text := "Users need [describe the need]. See [docs](http://x) and [ref][1].\n- [ ] item\n- [x] done\n<!-- [hint] -->"
	assert.Equal(t, []string{"[describe the need]"}, Placeholders(text))
	assert.Empty(t, Placeholders("Fully written description."))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("  [owner] "))
	assert.False(t, IsPlaceholder("Alice"))
}

func TestCountScenarios(t *testing.T) {
	text := `### Scenario: login
- **Given** a registered user
- **When** they submit valid credentials
- **Then** they see the dashboard

Given [precondition]
When [action]
Then [outcome]

Given another user
Then nothing
`
	assert.Equal(t, 1, CountScenarios(text))
	assert.Equal(t, 0, CountScenarios("Given [x]\nWhen [y]\nThen [z]"))
}

func TestApplyIssueBody(t *testing.T) {
	issue := &models.Issue{Body: `## Description

Sign in with email.

## BDD Scenarios

Given a user
When they sign in
Then it works

## Definition of Done

- [x] Tests pass
- [ ] Docs updated
`}
	ApplyIssueBody(issue)
	assert.Equal(t, "Sign in with email.", issue.Description)
	assert.True(t, issue.HasBDD)
	assert.Equal(t, 1, CountScenarios(issue.BDDScenarios))
	require.Len(t, issue.DoD, 2)
	assert.Equal(t, 1, issue.DoDChecked())

	SetDescription(issue, "Sign in with SSO.")
	assert.Equal(t, "Sign in with SSO.", issue.Description)
	require.Len(t, issue.DoD, 2, "other sections survive")

	require.NoError(t, SetDoDItem(issue, 1, true))
	assert.Equal(t, 2, issue.DoDChecked())

	AddDoDItem(issue, "Changelog entry")
	require.Len(t, issue.DoD, 3)
	assert.Equal(t, "Changelog entry", issue.DoD[2].Text)
	assert.False(t, issue.DoD[2].Checked)
}

func TestSetDoDItem_NoSection(t *testing.T) {
	issue := &models.Issue{Body: "## Description\n\nx\n"}
	err := SetDoDItem(issue, 0, true)
	assert.ErrorIs(t, err, models.ErrNotFound)

	AddDoDItem(issue, "First item")
	require.Len(t, issue.DoD, 1)
	assert.Equal(t, "x", issue.Description)
}

func TestSections_FenceWithShorterInnerFence(t *testing.T) {
	text := "## Test Cases\n\n````md\n```\n## Review\n````\n\n## Review\n\nreal\n"
	secs := Sections(text, 2)
	require.Len(t, secs, 2)
	assert.Equal(t, "Test Cases", secs[0].Title)
	assert.Contains(t, secs[0].Body, "## Review")

	s, ok := FindLastSection(text, 2, "Review")
	require.True(t, ok)
	assert.Equal(t, "real", s.Body)
	assert.Equal(t, 7, s.Start)

	unclosed := "## Notes\n\n```\n## Review\n"
	_, ok = FindSection(unclosed, 2, "Review")
	assert.False(t, ok)
}

func TestSections_SetextAndClosedATX(t *testing.T) {
	text := "Overview\n--------\n\nbody one\n\n## Closed ##\n\nbody two\n"
	secs := Sections(text, 2)
	require.Len(t, secs, 2)
	assert.Equal(t, "Overview", secs[0].Title)
	assert.Equal(t, "body one", secs[0].Body)
	assert.Equal(t, "Closed", secs[1].Title)
	assert.Equal(t, "body two", secs[1].Body)

	out := ReplaceSectionBody(text, 2, "Overview", "replaced")
	assert.Equal(t, "Overview\n--------\n\nreplaced\n\n## Closed ##\n\nbody two\n", out)
}

func TestSections_IndentedHeadingIsNotASection(t *testing.T) {
	text := "## A\n\n- item\n\n  ## inside list\n\n> ## quoted\n\n## B\n"
	secs := Sections(text, 2)
	require.Len(t, secs, 2)
	assert.Equal(t, "A", secs[0].Title)
	assert.Equal(t, "B", secs[1].Title)
}

func TestChecklist_IgnoresCodeAndLinks(t *testing.T) {
	text := "- [ ] real\n\n```\n- [x] example\n```\n\n- [link](http://x)\n- [x] done\n  continued"
	items := ParseChecklist(text)
	assert.Equal(t, []models.ChecklistItem{
		{Text: "real", Checked: false},
		{Text: "done", Checked: true},
	}, items)

	out, err := SetChecklistItem(text, 1, false)
	require.NoError(t, err)
	assert.Contains(t, out, "- [ ] done\n  continued")
	assert.Contains(t, out, "- [x] example", "fenced items are left alone")

	added := AppendChecklistItem(text, "next")
	assert.True(t, len(added) > len(text))
	assert.Contains(t, added, "  continued\n- [ ] next")
}

func TestChecklist_CRLF(t *testing.T) {
	out, err := SetChecklistItem("- [ ] a\r\n- [ ] b\r\n", 1, true)
	require.NoError(t, err)
	assert.Equal(t, "- [ ] a\n- [x] b\n", out)
}
