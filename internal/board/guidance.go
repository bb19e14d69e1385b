package board

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/templates"
)

// InitGuidance creates a draft guidance document dated today.
func (s *Service) InitGuidance(ctx context.Context, issueSlug string) (*models.Guidance, error) {
	issue, err := s.store.GetIssue(ctx, issueSlug)
	if err != nil {
		return nil, err
	}
	existing, err := s.optionalGuidance(ctx, issueSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("guidance already exists for issue %s (use 'guidance touch' to refresh it)", issueSlug)
	}
	body, err := s.templates.GuidanceBody(templates.GuidanceData{Title: issue.Title, Issue: issueSlug})
	if err != nil {
		return nil, &models.IOFailureError{Op: "render guidance template", Path: issueSlug, Err: err}
	}
	g := &models.Guidance{Status: models.GuidanceStatusDraft, LastUpdated: s.today(), Body: body}
	if s.dryRun {
		return g, nil
	}
	if err := s.store.SaveGuidance(ctx, issueSlug, g); err != nil {
		return nil, err
	}
	s.record(ctx, journal.Event{Kind: journal.KindGuidance, Issue: issueSlug, To: string(g.Status), Detail: "created"})
	return g, nil
}

// TouchGuidance refreshes last-updated to today and optionally sets status.
func (s *Service) TouchGuidance(ctx context.Context, issueSlug string, status models.GuidanceStatus) (*models.Guidance, error) {
	g, err := s.store.GetGuidance(ctx, issueSlug)
	if err != nil {
		return nil, err
	}
	from := g.Status
	if status != "" {
		g.Status = status
	}
	g.LastUpdated = s.today()
	if s.dryRun {
		return g, nil
	}
	if err := s.store.SaveGuidance(ctx, issueSlug, g); err != nil {
		return nil, err
	}
	s.record(ctx, journal.Event{Kind: journal.KindGuidance, Issue: issueSlug, From: string(from), To: string(g.Status), Detail: "touched"})
	return g, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
