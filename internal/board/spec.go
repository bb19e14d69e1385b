package board

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/review"
	"github.com/joescharf/kanban/internal/templates"
	"github.com/joescharf/kanban/internal/workflow"
)

// SpecView is a spec plus the advisory dependency check.
type SpecView struct {
	Spec *models.Spec `json:"spec"`
	// UnmetDependencies names dependencies that are missing or not completed.
	UnmetDependencies []string `json:"unmet_dependencies,omitempty"`
}

// ReviewView is the parsed review section of a spec. Review is nil when the
// spec has no review section.
type ReviewView struct {
	Spec   *models.Spec   `json:"spec"`
	Review *review.Parsed `json:"review"`
}

// CreateSpec adds a pending spec to an issue.
func (s *Service) CreateSpec(ctx context.Context, issueSlug, name string, deps []string) (*models.Spec, error) {
	if err := checkSpecName(name); err != nil {
		return nil, err
	}
	if _, err := s.store.GetIssue(ctx, issueSlug); err != nil {
		return nil, err
	}
	body, err := s.templates.SpecBody(templates.SpecData{Name: name, Issue: issueSlug})
	if err != nil {
		return nil, &models.IOFailureError{Op: "render spec template", Path: name, Err: err}
	}
	spec := &models.Spec{
		Name:         name,
		IssueSlug:    issueSlug,
		Status:       models.SpecStatusPending,
		Created:      s.now(),
		Dependencies: cleanNames(deps),
		ReviewRound:  1,
		Body:         body,
	}
	if s.dryRun {
		return spec, nil
	}
	if err := s.store.CreateSpec(ctx, spec); err != nil {
		return nil, err
	}
	s.record(ctx, journal.Event{Kind: journal.KindSpecCreated, Issue: issueSlug, Spec: name, To: string(spec.Status)})
	return spec, nil
}

// ListSpecs lists the specs of an issue.
func (s *Service) ListSpecs(ctx context.Context, issueSlug string) ([]*models.Spec, error) {
	return s.store.ListSpecs(ctx, issueSlug)
}

// ShowSpec loads a spec and checks its dependencies against its siblings.
func (s *Service) ShowSpec(ctx context.Context, issueSlug, name string) (*SpecView, error) {
	if err := checkSpecName(name); err != nil {
		return nil, err
	}
	specs, err := s.store.ListSpecs(ctx, issueSlug)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.Spec, len(specs))
	for _, sp := range specs {
		byName[sp.Name] = sp
	}
	spec, ok := byName[name]
	if !ok {
		return nil, &models.NotFoundError{Kind: "spec", Name: issueSlug + "/" + name}
	}
	view := &SpecView{Spec: spec}
	for _, dep := range spec.Dependencies {
		other, ok := byName[dep]
		switch {
		case !ok:
			view.UnmetDependencies = append(view.UnmetDependencies, dep+" (missing)")
		case other.Status != models.SpecStatusCompleted:
			view.UnmetDependencies = append(view.UnmetDependencies, fmt.Sprintf("%s (%s)", dep, other.Status))
		}
	}
	return view, nil
}

// SetSpecStatus runs the spec status machine and commits the result. A
// same-status request succeeds without writing.
func (s *Service) SetSpecStatus(ctx context.Context, issueSlug, name string, to models.SpecStatus) (*workflow.SpecResult, error) {
	spec, err := s.getSpec(ctx, issueSlug, name)
	if err != nil {
		return nil, err
	}
	return s.transitionSpec(ctx, spec, to)
}

func (s *Service) transitionSpec(ctx context.Context, spec *models.Spec, to models.SpecStatus) (*workflow.SpecResult, error) {
	res, err := s.specs.Transition(spec, to)
	if err != nil {
		return nil, err
	}
	if res.NoOp || s.dryRun {
		return res, nil
	}
	if err := s.store.SaveSpec(ctx, res.Spec); err != nil {
		return nil, err
	}
	e := journal.Event{
		Kind:  journal.KindSpecStatus,
		Issue: spec.IssueSlug,
		Spec:  spec.Name,
		From:  string(res.From),
		To:    string(res.To),
	}
	if res.Appended != nil {
		e.Detail = fmt.Sprintf("round %d %s", res.Appended.Round, res.Appended.Verdict)
	}
	s.record(ctx, e)
	return res, nil
}

// ReviewSpec parses the review section of a spec. An empty name picks the
// spec awaiting review (see PickReviewSpec).
func (s *Service) ReviewSpec(ctx context.Context, issueSlug, name string) (*ReviewView, error) {
	spec, err := s.resolveReviewSpec(ctx, issueSlug, name)
	if err != nil {
		return nil, err
	}
	parsed, err := s.parser.Parse(spec.Body)
	if err != nil {
		return nil, err
	}
	return &ReviewView{Spec: spec, Review: parsed}, nil
}

// FixSpec sends a reviewed spec back to in-progress. It needs a NEEDS_WORK
// verdict.
func (s *Service) FixSpec(ctx context.Context, issueSlug, name string) (*workflow.SpecResult, error) {
	spec, err := s.resolveReviewSpec(ctx, issueSlug, name)
	if err != nil {
		return nil, err
	}
	return s.transitionSpec(ctx, spec, models.SpecStatusInProgress)
}

// CompleteSpec completes a reviewed spec. It needs an APPROVED verdict.
func (s *Service) CompleteSpec(ctx context.Context, issueSlug, name string) (*workflow.SpecResult, error) {
	spec, err := s.resolveReviewSpec(ctx, issueSlug, name)
	if err != nil {
		return nil, err
	}
	return s.transitionSpec(ctx, spec, models.SpecStatusCompleted)
}

func (s *Service) resolveReviewSpec(ctx context.Context, issueSlug, name string) (*models.Spec, error) {
	if name != "" {
		return s.getSpec(ctx, issueSlug, name)
	}
	return s.PickReviewSpec(ctx, issueSlug)
}

// PickReviewSpec returns the issue's in-review spec. With several, the most
// recently modified wins: git last-commit time when git is enabled and the
// file is committed, file mtime otherwise. Ties go to the first name.
func (s *Service) PickReviewSpec(ctx context.Context, issueSlug string) (*models.Spec, error) {
	specs, err := s.store.ListSpecs(ctx, issueSlug)
	if err != nil {
		return nil, err
	}
	var candidates []*models.Spec
	for _, sp := range specs {
		if sp.Status == models.SpecStatusInReview {
			candidates = append(candidates, sp)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, &models.AmbiguousError{What: "spec in " + string(models.SpecStatusInReview) + " for issue " + issueSlug}
	case 1:
		return candidates[0], nil
	}

	times := make(map[string]time.Time, len(candidates))
	for _, sp := range candidates {
		times[sp.Name] = s.lastModified(sp)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return times[candidates[i].Name].After(times[candidates[j].Name])
	})
	s.logger.Debug("picked most recent in-review spec", "issue", issueSlug, "spec", candidates[0].Name, "candidates", len(candidates))
	return candidates[0], nil
}

// boardInRepo reports whether the board directory sits inside a git work
// tree. The answer is cached for the life of the Service.
func (s *Service) boardInRepo() bool {
	s.repoOnce.Do(func() {
		if s.git == nil {
			return
		}
		root, err := s.git.RepoRoot(s.store.Root())
		if err != nil {
			s.logger.Debug("board is not in a git work tree, using mtime", "board", s.store.Root(), "error", err)
			return
		}
		s.logger.Debug("git recency enabled", "repo", root)
		s.inRepo = true
	})
	return s.inRepo
}

func (s *Service) lastModified(spec *models.Spec) time.Time {
	if spec.Path != "" && s.boardInRepo() {
		t, err := s.git.LastCommitTime(spec.Path)
		if err == nil {
			return t
		}
		s.logger.Debug("git recency unavailable, using mtime", "spec", spec.Path, "error", err)
	}
	return spec.ModTime
}

// DeleteSpec removes a spec file.
func (s *Service) DeleteSpec(ctx context.Context, issueSlug, name string) error {
	spec, err := s.getSpec(ctx, issueSlug, name)
	if err != nil {
		return err
	}
	if s.dryRun {
		return nil
	}
	if err := s.store.DeleteSpec(ctx, spec); err != nil {
		return err
	}
	s.record(ctx, journal.Event{Kind: journal.KindSpecDeleted, Issue: issueSlug, Spec: name, From: string(spec.Status)})
	return nil
}

// getSpec loads a spec by name. Names are kebab-case so they cannot
// address files outside the issue directory.
func (s *Service) getSpec(ctx context.Context, issueSlug, name string) (*models.Spec, error) {
	if err := checkSpecName(name); err != nil {
		return nil, err
	}
	return s.store.GetSpec(ctx, issueSlug, name)
}

func checkSpecName(name string) error {
	if !models.ValidSlug(name) {
		return fmt.Errorf("invalid spec name %q: use lowercase kebab-case", name)
	}
	return nil
}

func cleanNames(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
