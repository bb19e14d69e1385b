package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// IssueType represents the kind of work an issue tracks.
type IssueType string

const (
	IssueTypeFeature IssueType = "feature"
	IssueTypeBug     IssueType = "bug"
	IssueTypeTask    IssueType = "task"
)

// ParseIssueType validates a user supplied issue type.
func ParseIssueType(s string) (IssueType, error) {
	switch t := IssueType(strings.ToLower(strings.TrimSpace(s))); t {
	case IssueTypeFeature, IssueTypeBug, IssueTypeTask:
		return t, nil
	}
	return "", fmt.Errorf("unknown issue type %q (valid: feature, bug, task)", s)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a kebab-case identifier.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// ChecklistItem is one line of a markdown checkbox list.
type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Issue represents a unit of work tracked through the board.
type Issue struct {
	Slug    string    `json:"slug"`
	Type    IssueType `json:"type"`
	Stage   Stage     `json:"stage"`
	Title   string    `json:"title"`
	Owner   string    `json:"owner,omitempty"`
	Created time.Time `json:"created"`

	// Derived from the document body on load.
	Description  string          `json:"description,omitempty"`
	HasBDD       bool            `json:"has_bdd"`
	BDDScenarios string          `json:"-"`
	DoD          []ChecklistItem `json:"definition_of_done,omitempty"`

	// Body is the markdown after the frontmatter; it is the source of truth
	// for the derived fields above.
	Body string `json:"-"`
	// Dir is the issue's storage directory, set by the store.
	Dir string `json:"dir,omitempty"`
}

// DoDChecked returns how many Definition-of-Done items are checked.
func (i *Issue) DoDChecked() int {
	n := 0
	for _, item := range i.DoD {
		if item.Checked {
			n++
		}
	}
	return n
}

// GuidanceStatus is the lifecycle state of a technical guidance document.
type GuidanceStatus string

const (
	GuidanceStatusDraft     GuidanceStatus = "draft"
	GuidanceStatusActive    GuidanceStatus = "active"
	GuidanceStatusFinalized GuidanceStatus = "finalized"
)

// ParseGuidanceStatus validates a guidance status.
func ParseGuidanceStatus(s string) (GuidanceStatus, error) {
	switch g := GuidanceStatus(strings.ToLower(strings.TrimSpace(s))); g {
	case GuidanceStatusDraft, GuidanceStatusActive, GuidanceStatusFinalized:
		return g, nil
	}
	return "", fmt.Errorf("unknown guidance status %q (valid: draft, active, finalized)", s)
}

// Guidance is the technical guidance document owned by an issue.
type Guidance struct {
	Status      GuidanceStatus `json:"status"`
	LastUpdated time.Time      `json:"last_updated"`
	Body        string         `json:"-"`
}

// DateLayout is the format of every date stored in board documents.
const DateLayout = "2006-01-02"
