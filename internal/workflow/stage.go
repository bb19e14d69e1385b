// Package workflow holds the board's transition rules: which stage moves an
// issue may make, which status changes a spec may make, and what each move
// requires. Everything here is pure; callers load state and commit results.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/kanban/internal/document"
	"github.com/joescharf/kanban/internal/models"
)

// SpecSnapshot is the part of a spec the stage guards look at.
type SpecSnapshot struct {
	Name      string
	Status    models.SpecStatus
	Completed *time.Time
}

// GuidanceSnapshot is the part of a guidance document the stage guards
// look at.
type GuidanceSnapshot struct {
	Status      models.GuidanceStatus
	LastUpdated time.Time
}

// Snapshot is everything the stage validator needs to know about an issue.
type Snapshot struct {
	Slug          string
	Type          models.IssueType
	Description   string
	HasBDDSection bool
	BDDScenarios  string
	Owner         string
	Guidance      *GuidanceSnapshot
	Specs         []SpecSnapshot
	DoD           []models.ChecklistItem
}

// NewSnapshot captures an issue and its owned documents. guidance may be nil.
func NewSnapshot(issue *models.Issue, specs []*models.Spec, guidance *models.Guidance) Snapshot {
	s := Snapshot{
		Slug:          issue.Slug,
		Type:          issue.Type,
		Description:   issue.Description,
		HasBDDSection: issue.HasBDD,
		BDDScenarios:  issue.BDDScenarios,
		Owner:         issue.Owner,
		DoD:           append([]models.ChecklistItem(nil), issue.DoD...),
	}
	if guidance != nil {
		s.Guidance = &GuidanceSnapshot{Status: guidance.Status, LastUpdated: guidance.LastUpdated}
	}
	for _, sp := range specs {
		s.Specs = append(s.Specs, SpecSnapshot{Name: sp.Name, Status: sp.Status, Completed: sp.Completed})
	}
	return s
}

// CanTransition applies the structural rule only: both stages must be
// known and exactly one step apart.
func CanTransition(from, to models.Stage) error {
	if !from.Valid() || !to.Valid() {
		return &models.IllegalTransitionError{Kind: "stage", From: string(from), To: string(to)}
	}
	diff := to.Index() - from.Index()
	if diff != 1 && diff != -1 {
		return &models.NonSequentialTransitionError{From: from, To: to, Allowed: from.Adjacent()}
	}
	return nil
}

type guard func(Snapshot) []string

// forwardGuards maps a target stage to the checks a forward move into it
// must pass. Backward moves are never guarded.
var forwardGuards = map[models.Stage][]guard{
	models.StageTodo:       {descriptionComplete, bddScenariosPresent},
	models.StageInProgress: {ownerAssigned, guidanceExists},
	models.StageReview:     {specsCompleted, guidanceFresh, dodStarted},
	models.StageDone:       {dodComplete},
}

// Validate checks the structural rule and, for forward moves, every content
// guard. A rejected forward move returns an UnmetGuardError listing all
// failures, not just the first.
func Validate(s Snapshot, from, to models.Stage) error {
	if err := CanTransition(from, to); err != nil {
		return err
	}
	if to.Index() < from.Index() {
		return nil
	}
	var unmet []string
	for _, g := range forwardGuards[to] {
		unmet = append(unmet, g(s)...)
	}
	if len(unmet) > 0 {
		return &models.UnmetGuardError{From: from, To: to, Guards: unmet}
	}
	return nil
}

func descriptionComplete(s Snapshot) []string {
	desc := document.StripComments(s.Description)
	if desc == "" {
		return []string{"description is empty"}
	}
	if ph := document.Placeholders(desc); len(ph) > 0 {
		return []string{fmt.Sprintf("description has unresolved placeholders: %s", strings.Join(ph, ", "))}
	}
	return nil
}

func bddScenariosPresent(s Snapshot) []string {
	if s.Type != models.IssueTypeFeature {
		return nil
	}
	if !s.HasBDDSection {
		return []string{"feature is missing a ## BDD Scenarios section"}
	}
	if document.CountScenarios(s.BDDScenarios) == 0 {
		return []string{"BDD Scenarios section has no complete Given/When/Then scenario"}
	}
	return nil
}

func ownerAssigned(s Snapshot) []string {
	if document.IsPlaceholder(s.Owner) {
		return []string{"owner is not set"}
	}
	return nil
}

func guidanceExists(s Snapshot) []string {
	if s.Guidance == nil {
		return []string{"technical guidance document is missing"}
	}
	return nil
}

func specsCompleted(s Snapshot) []string {
	var open []string
	for _, sp := range s.Specs {
		if sp.Status != models.SpecStatusCompleted {
			open = append(open, fmt.Sprintf("%s (%s)", sp.Name, sp.Status))
		}
	}
	if len(open) > 0 {
		return []string{fmt.Sprintf("specs not completed: %s", strings.Join(open, ", "))}
	}
	return nil
}

// guidanceFresh compares at day granularity, the resolution documents are
// stored at.
func guidanceFresh(s Snapshot) []string {
	if s.Guidance == nil {
		return []string{"technical guidance document is missing"}
	}
	var latest time.Time
	for _, sp := range s.Specs {
		if sp.Completed != nil && sp.Completed.After(latest) {
			latest = *sp.Completed
		}
	}
	if latest.IsZero() {
		return nil
	}
	if day(s.Guidance.LastUpdated).Before(day(latest)) {
		return []string{fmt.Sprintf("technical guidance is stale: last updated %s, latest spec completed %s",
			s.Guidance.LastUpdated.Format(models.DateLayout), latest.Format(models.DateLayout))}
	}
	return nil
}

func dodStarted(s Snapshot) []string {
	for _, item := range s.DoD {
		if item.Checked {
			return nil
		}
	}
	return []string{"no Definition of Done item is checked"}
}

func dodComplete(s Snapshot) []string {
	if len(s.DoD) == 0 {
		return []string{"Definition of Done checklist is empty"}
	}
	var open []string
	for _, item := range s.DoD {
		if !item.Checked {
			open = append(open, item.Text)
		}
	}
	if len(open) > 0 {
		return []string{fmt.Sprintf("Definition of Done items unchecked: %s", strings.Join(open, "; "))}
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
