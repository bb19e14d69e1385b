package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"backlog", StageBacklog, false},
		{"In-Progress", StageInProgress, false},
		{"in_progress", StageInProgress, false},
		{" done ", StageDone, false},
		{"archived", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageOrdering(t *testing.T) {
	assert.Equal(t, 1, StageBacklog.Index())
	assert.Equal(t, 5, StageDone.Index())
	assert.Equal(t, 0, Stage("nope").Index())

	next, ok := StageTodo.Next()
	assert.True(t, ok)
	assert.Equal(t, StageInProgress, next)

	_, ok = StageDone.Next()
	assert.False(t, ok)
	_, ok = StageBacklog.Prev()
	assert.False(t, ok)

	assert.Equal(t, []Stage{StageTodo}, StageBacklog.Adjacent())
	assert.Equal(t, []Stage{StageBacklog, StageInProgress}, StageTodo.Adjacent())
	assert.Equal(t, []Stage{StageReview}, StageDone.Adjacent())
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("user-auth"))
	assert.True(t, ValidSlug("v2"))
	assert.False(t, ValidSlug("User-Auth"))
	assert.False(t, ValidSlug("user--auth"))
	assert.False(t, ValidSlug("-user"))
	assert.False(t, ValidSlug(""))
}

func TestParseSpecStatus(t *testing.T) {
	s, err := ParseSpecStatus("IN_REVIEW")
	require.NoError(t, err)
	assert.Equal(t, SpecStatusInReview, s)

	_, err = ParseSpecStatus("blocked")
	assert.Error(t, err)
}

func TestSpecClone_DoesNotAlias(t *testing.T) {
	done := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	orig := &Spec{
		Name:         "login-flow",
		Completed:    &done,
		Dependencies: []string{"a"},
		ReviewHistory: []ReviewRecord{
			{Round: 1, Verdict: VerdictNeedsWork, Concerns: []string{"x"}},
		},
	}
	c := orig.Clone()
	c.Dependencies[0] = "b"
	c.ReviewHistory[0].Concerns[0] = "y"
	*c.Completed = done.AddDate(0, 0, 1)

	assert.Equal(t, "a", orig.Dependencies[0])
	assert.Equal(t, "x", orig.ReviewHistory[0].Concerns[0])
	assert.Equal(t, done, *orig.Completed)
}

func TestErrorTaxonomy_Is(t *testing.T) {
	wrapped := fmt.Errorf("move issue: %w", &UnmetGuardError{From: StageReview, To: StageDone, Guards: []string{"a", "b"}})
	assert.True(t, errors.Is(wrapped, ErrUnmetGuard))
	assert.False(t, errors.Is(wrapped, ErrIllegalTransition))

	var ug *UnmetGuardError
	require.True(t, errors.As(wrapped, &ug))
	assert.Len(t, ug.Guards, 2)
	assert.Contains(t, ug.Error(), "2 unmet condition(s)")

	io := &IOFailureError{Op: "rename", Path: "/x", Err: errors.New("boom")}
	assert.True(t, errors.Is(io, ErrIOFailure))
	assert.EqualError(t, errors.Unwrap(io), "boom")

	ns := &NonSequentialTransitionError{From: StageBacklog, To: StageInProgress, Allowed: []Stage{StageTodo}}
	assert.True(t, errors.Is(ns, ErrNonSequentialTransition))
	assert.Contains(t, ns.Error(), "allowed: todo")

	assert.True(t, errors.Is(&NotFoundError{Kind: "issue", Name: "x"}, ErrNotFound))
	assert.True(t, errors.Is(&MalformedReviewError{Reason: "r"}, ErrMalformedReview))
	assert.True(t, errors.Is(&ReviewRequiredError{Spec: "s"}, ErrReviewRequired))
	assert.True(t, errors.Is(&AmbiguousError{What: "w"}, ErrAmbiguous))
}
