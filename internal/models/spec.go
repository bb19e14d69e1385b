package models

import (
	"fmt"
	"strings"
	"time"
)

// SpecStatus is the state of a spec in the status machine.
type SpecStatus string

const (
	SpecStatusPending    SpecStatus = "pending"
	SpecStatusInProgress SpecStatus = "in-progress"
	SpecStatusInReview   SpecStatus = "in-review"
	SpecStatusCompleted  SpecStatus = "completed"
)

// SpecStatuses lists all spec statuses in lifecycle order.
var SpecStatuses = []SpecStatus{SpecStatusPending, SpecStatusInProgress, SpecStatusInReview, SpecStatusCompleted}

// ParseSpecStatus converts user input into a SpecStatus.
func ParseSpecStatus(s string) (SpecStatus, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, st := range SpecStatuses {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown spec status %q (valid: pending, in-progress, in-review, completed)", s)
}

// Verdict is the outcome of a review round.
type Verdict string

const (
	VerdictApproved  Verdict = "APPROVED"
	VerdictNeedsWork Verdict = "NEEDS_WORK"
)

// ReviewRecord is an immutable entry in a spec's review history.
type ReviewRecord struct {
	Round          int      `yaml:"round" json:"round"`
	Date           string   `yaml:"date" json:"date"`
	Verdict        Verdict  `yaml:"verdict" json:"verdict"`
	FailedCriteria []string `yaml:"failedCriteria" json:"failed_criteria"`
	Concerns       []string `yaml:"concerns" json:"concerns"`
}

// Spec is a deliverable owned by a single issue.
type Spec struct {
	Name          string         `json:"name"`
	IssueSlug     string         `json:"issue"`
	Status        SpecStatus     `json:"status"`
	Created       time.Time      `json:"created"`
	Completed     *time.Time     `json:"completed,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	ReviewRound   int            `json:"review_round"`
	ReviewHistory []ReviewRecord `json:"review_history,omitempty"`

	// Body is the markdown after the frontmatter.
	Body string `json:"-"`
	// Path and ModTime are set by the store.
	Path    string    `json:"path,omitempty"`
	ModTime time.Time `json:"-"`
}

// Clone returns a deep copy so state machine results never alias the input.
func (s *Spec) Clone() *Spec {
	c := *s
	if s.Completed != nil {
		t := *s.Completed
		c.Completed = &t
	}
	c.Dependencies = append([]string(nil), s.Dependencies...)
	c.ReviewHistory = make([]ReviewRecord, len(s.ReviewHistory))
	for i, r := range s.ReviewHistory {
		r.FailedCriteria = append([]string(nil), r.FailedCriteria...)
		r.Concerns = append([]string(nil), r.Concerns...)
		c.ReviewHistory[i] = r
	}
	return &c
}
