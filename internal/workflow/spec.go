package workflow

import (
	"time"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/review"
)

// specTransitions lists the legal status changes. Same-status requests are
// handled separately as no-ops.
var specTransitions = map[models.SpecStatus][]models.SpecStatus{
	models.SpecStatusPending:    {models.SpecStatusInProgress},
	models.SpecStatusInProgress: {models.SpecStatusInReview},
	models.SpecStatusInReview:   {models.SpecStatusCompleted, models.SpecStatusInProgress},
	models.SpecStatusCompleted:  {models.SpecStatusInReview},
}

// AllowedSpecTargets returns the statuses a spec may move to from status.
func AllowedSpecTargets(status models.SpecStatus) []models.SpecStatus {
	return append([]models.SpecStatus(nil), specTransitions[status]...)
}

// SpecResult is the outcome of a spec status transition.
type SpecResult struct {
	// Spec is the updated copy; the input spec is never modified.
	Spec *models.Spec
	From models.SpecStatus
	To   models.SpecStatus
	// NoOp is set when the requested status equals the current one.
	NoOp bool
	// Review is the parsed review section when the spec left in-review.
	Review *review.Parsed
	// Appended is the history entry added by this transition, if any.
	Appended *models.ReviewRecord
}

// SpecMachine decides spec status changes and computes their side effects.
type SpecMachine struct {
	parser *review.Parser
	now    func() time.Time
}

// SpecMachineOption customizes a SpecMachine.
type SpecMachineOption func(*SpecMachine)

// WithClock overrides the clock used for completion and review dates.
func WithClock(clock func() time.Time) SpecMachineOption {
	return func(m *SpecMachine) { m.now = clock }
}

// WithParser overrides the review parser.
func WithParser(p *review.Parser) SpecMachineOption {
	return func(m *SpecMachine) { m.parser = p }
}

// NewSpecMachine builds a machine with the default parser and wall clock.
func NewSpecMachine(opts ...SpecMachineOption) *SpecMachine {
	m := &SpecMachine{parser: review.NewParser(nil), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition validates moving spec to status to. Leaving in-review reads the
// last "## Review" section of spec.Body: completion needs APPROVED, sending
// the spec back needs NEEDS_WORK. Either exit appends a ReviewRecord for the
// current round; the NEEDS_WORK exit then bumps the round.
func (m *SpecMachine) Transition(spec *models.Spec, to models.SpecStatus) (*SpecResult, error) {
	from := spec.Status
	res := &SpecResult{From: from, To: to}

	if from == to {
		res.Spec = spec.Clone()
		res.NoOp = true
		return res, nil
	}
	if !allowed(from, to) {
		return nil, &models.IllegalTransitionError{Kind: "spec", From: string(from), To: string(to)}
	}

	next := spec.Clone()
	today := day(m.now()).Format(models.DateLayout)

	switch {
	case from == models.SpecStatusInReview:
		want := models.VerdictApproved
		if to == models.SpecStatusInProgress {
			want = models.VerdictNeedsWork
		}
		parsed, err := m.parser.Parse(spec.Body)
		if err != nil {
			return nil, err
		}
		if parsed == nil || parsed.Verdict != want {
			rr := &models.ReviewRequiredError{Spec: spec.Name, Want: want, Target: to}
			if parsed != nil {
				rr.Got = parsed.Verdict
			}
			return nil, rr
		}
		rec := parsed.Record(spec.ReviewRound, today)
		next.ReviewHistory = append(next.ReviewHistory, rec)
		res.Review = parsed
		res.Appended = &rec

		if to == models.SpecStatusCompleted {
			done := day(m.now())
			next.Completed = &done
		} else {
			next.ReviewRound++
		}

	case from == models.SpecStatusCompleted:
		// Re-opening for review invalidates the completion date.
		next.Completed = nil
	}

	if next.ReviewRound < 1 {
		next.ReviewRound = 1
	}
	next.Status = to
	res.Spec = next
	return res, nil
}

func allowed(from, to models.SpecStatus) bool {
	for _, s := range specTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
