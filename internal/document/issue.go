package document

import (
	"strings"

	"github.com/joescharf/kanban/internal/models"
)

// Section titles the workflow reads from issue documents.
const (
	SectionDescription = "Description"
	SectionBDD         = "BDD Scenarios"
	SectionAcceptance  = "Acceptance Criteria"
	SectionDoD         = "Definition of Done"
)

// ApplyIssueBody recomputes the fields of issue that are derived from its
// markdown body.
func ApplyIssueBody(issue *models.Issue) {
	issue.Description = ""
	issue.HasBDD = false
	issue.BDDScenarios = ""
	issue.DoD = nil

	if s, ok := FindSection(issue.Body, 2, SectionDescription); ok {
		issue.Description = strings.TrimSpace(s.Body)
	}
	if s, ok := FindSection(issue.Body, 2, SectionBDD); ok {
		issue.HasBDD = true
		issue.BDDScenarios = s.Body
	}
	if s, ok := FindSection(issue.Body, 2, SectionDoD); ok {
		issue.DoD = ParseChecklist(s.Body)
	}
}

// SetDescription replaces the Description section of issue.
func SetDescription(issue *models.Issue, text string) {
	issue.Body = ReplaceSectionBody(issue.Body, 2, SectionDescription, text)
	ApplyIssueBody(issue)
}

// SetDoDItem checks or unchecks the n-th (0-based) Definition of Done item.
func SetDoDItem(issue *models.Issue, n int, checked bool) error {
	s, ok := FindSection(issue.Body, 2, SectionDoD)
	if !ok {
		return &models.NotFoundError{Kind: "section", Name: SectionDoD}
	}
	body, err := SetChecklistItem(s.Body, n, checked)
	if err != nil {
		return err
	}
	issue.Body = ReplaceSectionBody(issue.Body, 2, SectionDoD, body)
	ApplyIssueBody(issue)
	return nil
}

// AddDoDItem appends an unchecked Definition of Done item, creating the
// section when needed.
func AddDoDItem(issue *models.Issue, text string) {
	var current string
	if s, ok := FindSection(issue.Body, 2, SectionDoD); ok {
		current = s.Body
	}
	issue.Body = ReplaceSectionBody(issue.Body, 2, SectionDoD, AppendChecklistItem(current, text))
	ApplyIssueBody(issue)
}
