package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure taxonomy. Concrete error types below
// match these via errors.Is so callers can branch without type switches.
var (
	ErrIllegalTransition       = errors.New("illegal transition")
	ErrNonSequentialTransition = errors.New("non-sequential transition")
	ErrUnmetGuard              = errors.New("unmet guard")
	ErrReviewRequired          = errors.New("review required")
	ErrMalformedReview         = errors.New("malformed review")
	ErrNotFound                = errors.New("not found")
	ErrAmbiguous               = errors.New("ambiguous")
	ErrIOFailure               = errors.New("io failure")
)

// IllegalTransitionError reports a move that is not in the transition table.
type IllegalTransitionError struct {
	Kind string // "spec" or "stage"
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Kind, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// NonSequentialTransitionError reports a stage move that skips a level.
type NonSequentialTransitionError struct {
	From    Stage
	To      Stage
	Allowed []Stage
}

func (e *NonSequentialTransitionError) Error() string {
	return fmt.Sprintf("non-sequential transition: %s -> %s (allowed: %s)", e.From, e.To, JoinStages(e.Allowed))
}

func (e *NonSequentialTransitionError) Is(target error) bool {
	return target == ErrNonSequentialTransition
}

// UnmetGuardError carries every unsatisfied precondition of a forward move.
type UnmetGuardError struct {
	From   Stage
	To     Stage
	Guards []string
}

func (e *UnmetGuardError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot move %s -> %s: %d unmet condition(s)", e.From, e.To, len(e.Guards))
	for _, g := range e.Guards {
		b.WriteString("\n  - ")
		b.WriteString(g)
	}
	return b.String()
}

func (e *UnmetGuardError) Is(target error) bool { return target == ErrUnmetGuard }

// ReviewRequiredError reports a spec leaving in-review without the verdict
// the target status needs.
type ReviewRequiredError struct {
	Spec   string
	Want   Verdict
	Got    Verdict // empty when the document has no review section
	Target SpecStatus
}

func (e *ReviewRequiredError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("review required: spec %s has no review section; moving to %s needs a %s verdict", e.Spec, e.Target, e.Want)
	}
	return fmt.Sprintf("review required: spec %s has verdict %s; moving to %s needs %s", e.Spec, e.Got, e.Target, e.Want)
}

func (e *ReviewRequiredError) Is(target error) bool { return target == ErrReviewRequired }

// MalformedReviewError reports a review section whose verdict is missing or
// ambiguous.
type MalformedReviewError struct {
	Reason string
}

func (e *MalformedReviewError) Error() string {
	return "malformed review: " + e.Reason
}

func (e *MalformedReviewError) Is(target error) bool { return target == ErrMalformedReview }

// NotFoundError reports an issue or spec that does not resolve.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousError reports a lookup with zero-or-many candidates where exactly
// one was required.
type AmbiguousError struct {
	What       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no %s found", e.What)
	}
	return fmt.Sprintf("ambiguous %s: %d candidates (%s)", e.What, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// IOFailureError wraps an underlying storage failure.
type IOFailureError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOFailureError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOFailureError) Unwrap() error { return e.Err }

func (e *IOFailureError) Is(target error) bool { return target == ErrIOFailure }
