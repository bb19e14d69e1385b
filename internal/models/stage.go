package models

import (
	"fmt"
	"strings"
)

// Stage is the workflow column an issue occupies.
type Stage string

const (
	StageBacklog    Stage = "backlog"
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in-progress"
	StageReview     Stage = "review"
	StageDone       Stage = "done"
)

// Stages lists every stage in workflow order.
var Stages = []Stage{StageBacklog, StageTodo, StageInProgress, StageReview, StageDone}

// ParseStage converts user input into a Stage. Underscores are accepted in
// place of dashes so "in_progress" resolves too.
func ParseStage(s string) (Stage, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, st := range Stages {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (valid: %s)", s, JoinStages(Stages))
}

// Index returns the 1-based position of the stage, or 0 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is one of the five stages.
func (s Stage) Valid() bool { return s.Index() > 0 }

// Next returns the following stage, if any.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i == 0 || i == len(Stages) {
		return "", false
	}
	return Stages[i], true
}

// Prev returns the preceding stage, if any.
func (s Stage) Prev() (Stage, bool) {
	i := s.Index()
	if i <= 1 {
		return "", false
	}
	return Stages[i-2], true
}

// Adjacent returns the stages reachable from s in a single move.
func (s Stage) Adjacent() []Stage {
	var out []Stage
	if p, ok := s.Prev(); ok {
		out = append(out, p)
	}
	if n, ok := s.Next(); ok {
		out = append(out, n)
	}
	return out
}

// JoinStages renders stages as a comma separated list.
func JoinStages(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
