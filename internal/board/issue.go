package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/kanban/internal/document"
	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/templates"
	"github.com/joescharf/kanban/internal/workflow"
)

// CreateIssueInput describes a new issue.
type CreateIssueInput struct {
	Slug  string
	Type  models.IssueType
	Title string
	Stage models.Stage
}

// Move is the outcome of a stage move or a move check.
type Move struct {
	Issue     *models.Issue
	From      models.Stage
	To        models.Stage
	Committed bool
}

// IssueView is an issue with its owned documents.
type IssueView struct {
	Issue    *models.Issue    `json:"issue"`
	Specs    []*models.Spec   `json:"specs"`
	Guidance *models.Guidance `json:"guidance,omitempty"`
}

// CreateIssue renders the issue template and stores the new issue.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput) (*models.Issue, error) {
	if !models.ValidSlug(in.Slug) {
		return nil, fmt.Errorf("invalid slug %q: use lowercase kebab-case", in.Slug)
	}
	if in.Type == "" {
		in.Type = models.IssueTypeFeature
	}
	if in.Stage == "" {
		in.Stage = models.StageBacklog
	}
	if !in.Stage.Valid() {
		return nil, fmt.Errorf("invalid stage %q (valid: %s)", in.Stage, models.JoinStages(models.Stages))
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Slug
	}

	body, err := s.templates.IssueBody(templates.IssueData{Title: title, Type: string(in.Type), Slug: in.Slug})
	if err != nil {
		return nil, &models.IOFailureError{Op: "render issue template", Path: in.Slug, Err: err}
	}
	issue := &models.Issue{
		Slug:    in.Slug,
		Type:    in.Type,
		Stage:   in.Stage,
		Title:   title,
		Created: s.now(),
		Body:    body,
	}
	document.ApplyIssueBody(issue)
	if s.dryRun {
		return issue, nil
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	s.record(ctx, journal.Event{Kind: journal.KindIssueCreated, Issue: issue.Slug, To: string(issue.Stage), Detail: string(issue.Type)})
	return issue, nil
}

// ListIssues lists issues in stage order.
func (s *Service) ListIssues(ctx context.Context, filter store.IssueListFilter) ([]*models.Issue, error) {
	return s.store.ListIssues(ctx, filter)
}

// ShowIssue loads an issue with its specs and guidance.
func (s *Service) ShowIssue(ctx context.Context, slug string) (*IssueView, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return nil, err
	}
	specs, err := s.store.ListSpecs(ctx, slug)
	if err != nil {
		return nil, err
	}
	guidance, err := s.optionalGuidance(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &IssueView{Issue: issue, Specs: specs, Guidance: guidance}, nil
}

// CheckMove runs the structural rule and, for forward moves, every content
// guard. It never writes.
func (s *Service) CheckMove(ctx context.Context, slug string, to models.Stage) (*Move, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.validateMove(ctx, issue, to); err != nil {
		return nil, err
	}
	return &Move{Issue: issue, From: issue.Stage, To: to}, nil
}

// MoveIssue validates and commits a stage move.
func (s *Service) MoveIssue(ctx context.Context, slug string, to models.Stage) (*Move, error) {
	m, err := s.CheckMove(ctx, slug, to)
	if err != nil {
		return nil, err
	}
	if s.dryRun {
		return m, nil
	}
	if err := s.store.MoveIssue(ctx, m.Issue, to); err != nil {
		return nil, err
	}
	m.Committed = true
	s.record(ctx, journal.Event{Kind: journal.KindIssueMoved, Issue: slug, From: string(m.From), To: string(m.To)})
	return m, nil
}

// AdvanceIssue moves an issue to the next stage.
func (s *Service) AdvanceIssue(ctx context.Context, slug string) (*Move, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return nil, err
	}
	next, ok := issue.Stage.Next()
	if !ok {
		return nil, fmt.Errorf("issue %s is already in %s, the last stage", slug, issue.Stage)
	}
	return s.MoveIssue(ctx, slug, next)
}

// RetreatIssue moves an issue back one stage.
func (s *Service) RetreatIssue(ctx context.Context, slug string) (*Move, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return nil, err
	}
	prev, ok := issue.Stage.Prev()
	if !ok {
		return nil, fmt.Errorf("issue %s is already in %s, the first stage", slug, issue.Stage)
	}
	return s.MoveIssue(ctx, slug, prev)
}

func (s *Service) validateMove(ctx context.Context, issue *models.Issue, to models.Stage) error {
	if err := workflow.CanTransition(issue.Stage, to); err != nil {
		return err
	}
	if to.Index() < issue.Stage.Index() {
		return nil
	}
	snap, err := s.snapshot(ctx, issue)
	if err != nil {
		return err
	}
	return workflow.Validate(snap, issue.Stage, to)
}

// SetOwner assigns the issue owner.
func (s *Service) SetOwner(ctx context.Context, slug, owner string) (*models.Issue, error) {
	owner = strings.TrimSpace(owner)
	return s.updateIssue(ctx, slug, "owner", func(issue *models.Issue) error {
		issue.Owner = owner
		return nil
	})
}

// Describe replaces the Description section.
func (s *Service) Describe(ctx context.Context, slug, text string) (*models.Issue, error) {
	return s.updateIssue(ctx, slug, "description", func(issue *models.Issue) error {
		document.SetDescription(issue, strings.TrimSpace(text))
		return nil
	})
}

// SetDoD checks or unchecks Definition of Done item n, counted from 1.
func (s *Service) SetDoD(ctx context.Context, slug string, n int, checked bool) (*models.Issue, error) {
	return s.updateIssue(ctx, slug, fmt.Sprintf("dod %d", n), func(issue *models.Issue) error {
		if n < 1 || n > len(issue.DoD) {
			return fmt.Errorf("definition of done item %d out of range (1-%d)", n, len(issue.DoD))
		}
		return document.SetDoDItem(issue, n-1, checked)
	})
}

// AddDoD appends an unchecked Definition of Done item.
func (s *Service) AddDoD(ctx context.Context, slug, text string) (*models.Issue, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("definition of done item text is required")
	}
	return s.updateIssue(ctx, slug, "dod added", func(issue *models.Issue) error {
		document.AddDoDItem(issue, text)
		return nil
	})
}

func (s *Service) updateIssue(ctx context.Context, slug, detail string, mutate func(*models.Issue) error) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := mutate(issue); err != nil {
		return nil, err
	}
	if s.dryRun {
		return issue, nil
	}
	if err := s.store.SaveIssue(ctx, issue); err != nil {
		return nil, err
	}
	s.record(ctx, journal.Event{Kind: journal.KindIssueUpdated, Issue: slug, Detail: detail})
	return issue, nil
}

// ArchiveIssue moves an issue into the archive and returns its new location.
func (s *Service) ArchiveIssue(ctx context.Context, slug string) (string, error) {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return "", err
	}
	if s.dryRun {
		return "", nil
	}
	dst, err := s.store.ArchiveIssue(ctx, issue)
	if err != nil {
		return "", err
	}
	s.record(ctx, journal.Event{Kind: journal.KindIssueArchived, Issue: slug, From: string(issue.Stage), Detail: dst})
	return dst, nil
}

// DeleteIssue removes an issue and everything it owns.
func (s *Service) DeleteIssue(ctx context.Context, slug string) error {
	issue, err := s.store.GetIssue(ctx, slug)
	if err != nil {
		return err
	}
	if s.dryRun {
		return nil
	}
	if err := s.store.DeleteIssue(ctx, issue); err != nil {
		return err
	}
	s.record(ctx, journal.Event{Kind: journal.KindIssueDeleted, Issue: slug, From: string(issue.Stage)})
	return nil
}

// ActiveIssue returns the single issue in in-progress.
func (s *Service) ActiveIssue(ctx context.Context) (*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{Stage: models.StageInProgress})
	if err != nil {
		return nil, err
	}
	return workflow.SingleActiveIssue(issues)
}
