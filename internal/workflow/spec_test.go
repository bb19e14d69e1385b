package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/models"
)

const needsWorkReview = `
## Review

### Verdict

NEEDS_WORK

### Acceptance Criteria Verification

| Criterion | Status | Evidence |
|---|---|---|
| Login works | FAIL | 500 on submit |

### Concerns

- Password stored in plain text
`

const approvedReview = `
## Review

### Verdict

APPROVED
`

func fixedMachine() *SpecMachine {
	clock := func() time.Time { return time.Date(2026, 10, 16, 15, 4, 5, 0, time.UTC) }
	return NewSpecMachine(WithClock(clock))
}

func TestSpecTransition_Table(t *testing.T) {
	m := fixedMachine()
	for _, from := range models.SpecStatuses {
		for _, to := range models.SpecStatuses {
			if from == to || from == models.SpecStatusInReview {
				continue
			}
			spec := &models.Spec{Name: "s", Status: from, ReviewRound: 1}
			_, err := m.Transition(spec, to)
			if allowed(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				var it *models.IllegalTransitionError
				require.True(t, errors.As(err, &it), "%s -> %s: %v", from, to, err)
				assert.Equal(t, string(from), it.From)
				assert.Equal(t, string(to), it.To)
			}
		}
	}
}

func TestSpecTransition_NoOp(t *testing.T) {
	m := fixedMachine()
	spec := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 2,
		ReviewHistory: []models.ReviewRecord{{Round: 1, Verdict: models.VerdictNeedsWork}}}
	res, err := m.Transition(spec, models.SpecStatusInReview)
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, 2, res.Spec.ReviewRound)
	assert.Len(t, res.Spec.ReviewHistory, 1)
	assert.Nil(t, res.Appended)
}

func TestSpecTransition_FixLoop(t *testing.T) {
	m := fixedMachine()
	spec := &models.Spec{Name: "login-flow", Status: models.SpecStatusInProgress, ReviewRound: 1}

	res, err := m.Transition(spec, models.SpecStatusInReview)
	require.NoError(t, err)
	spec = res.Spec
	spec.Body = "## Acceptance Criteria\n" + needsWorkReview

	res, err = m.Transition(spec, models.SpecStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.SpecStatusInProgress, res.Spec.Status)
	assert.Equal(t, 2, res.Spec.ReviewRound)
	require.Len(t, res.Spec.ReviewHistory, 1)
	rec := res.Spec.ReviewHistory[0]
	assert.Equal(t, 1, rec.Round)
	assert.Equal(t, models.VerdictNeedsWork, rec.Verdict)
	assert.Equal(t, "2026-10-16", rec.Date)
	assert.Equal(t, []string{"Login works: 500 on submit"}, rec.FailedCriteria)
	assert.Equal(t, []string{"Password stored in plain text"}, rec.Concerns)
	assert.Nil(t, res.Spec.Completed)

	// Input is untouched.
	assert.Equal(t, models.SpecStatusInReview, spec.Status)
	assert.Equal(t, 1, spec.ReviewRound)
	assert.Empty(t, spec.ReviewHistory)
}

func TestSpecTransition_RoundTrip(t *testing.T) {
	m := fixedMachine()
	spec := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 4, Body: needsWorkReview}

	res, err := m.Transition(spec, models.SpecStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Spec.ReviewRound)

	res, err = m.Transition(res.Spec, models.SpecStatusInReview)
	require.NoError(t, err)
	next := res.Spec
	next.Body = needsWorkReview + approvedReview

	res, err = m.Transition(next, models.SpecStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Spec.ReviewRound)
	require.NotNil(t, res.Spec.Completed)
	assert.Equal(t, "2026-10-16", res.Spec.Completed.Format(models.DateLayout))
	require.Len(t, res.Spec.ReviewHistory, 2)
	assert.Equal(t, models.VerdictApproved, res.Spec.ReviewHistory[1].Verdict)
	assert.Equal(t, 5, res.Spec.ReviewHistory[1].Round)
}

func TestSpecTransition_CompleteRequiresApproval(t *testing.T) {
	m := fixedMachine()

	noReview := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 1, Body: "## Test Cases\n"}
	_, err := m.Transition(noReview, models.SpecStatusCompleted)
	var rr *models.ReviewRequiredError
	require.True(t, errors.As(err, &rr))
	assert.Empty(t, rr.Got)
	assert.Equal(t, models.SpecStatusInReview, noReview.Status)
	assert.Nil(t, noReview.Completed)

	needsWork := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 1, Body: needsWorkReview}
	_, err = m.Transition(needsWork, models.SpecStatusCompleted)
	require.True(t, errors.As(err, &rr))
	assert.Equal(t, models.VerdictNeedsWork, rr.Got)

	approved := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 1, Body: approvedReview}
	_, err = m.Transition(approved, models.SpecStatusInProgress)
	assert.True(t, errors.Is(err, models.ErrReviewRequired))
}

func TestSpecTransition_MalformedReviewSurfaced(t *testing.T) {
	m := fixedMachine()
	spec := &models.Spec{Name: "s", Status: models.SpecStatusInReview, ReviewRound: 1,
		Body: "## Review\n\n### Verdict\n\nLGTM\n"}
	_, err := m.Transition(spec, models.SpecStatusCompleted)
	assert.True(t, errors.Is(err, models.ErrMalformedReview))
}

func TestSpecTransition_ReopenClearsCompleted(t *testing.T) {
	m := fixedMachine()
	done := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	spec := &models.Spec{Name: "s", Status: models.SpecStatusCompleted, ReviewRound: 2, Completed: &done}
	res, err := m.Transition(spec, models.SpecStatusInReview)
	require.NoError(t, err)
	assert.Nil(t, res.Spec.Completed)
	assert.Equal(t, 2, res.Spec.ReviewRound)
	assert.NotNil(t, spec.Completed)
}

func TestAllowedSpecTargets(t *testing.T) {
	assert.Equal(t, []models.SpecStatus{models.SpecStatusCompleted, models.SpecStatusInProgress},
		AllowedSpecTargets(models.SpecStatusInReview))
	assert.Empty(t, AllowedSpecTargets("bogus"))
}
