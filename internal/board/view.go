package board

import (
	"context"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/store"
)

// Card is one issue on the board.
type Card struct {
	Issue          *models.Issue `json:"issue"`
	SpecsCompleted int           `json:"specs_completed"`
	SpecsTotal     int           `json:"specs_total"`
	HasGuidance    bool          `json:"has_guidance"`
}

// Column is one stage with its cards.
type Column struct {
	Stage models.Stage `json:"stage"`
	Cards []Card       `json:"cards"`
}

// Board returns every stage in order, including empty ones.
func (s *Service) Board(ctx context.Context) ([]Column, error) {
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(models.Stages))
	for i, st := range models.Stages {
		cols[i].Stage = st
	}
	for _, issue := range issues {
		specs, err := s.store.ListSpecs(ctx, issue.Slug)
		if err != nil {
			return nil, err
		}
		g, err := s.optionalGuidance(ctx, issue.Slug)
		if err != nil {
			return nil, err
		}
		card := Card{Issue: issue, SpecsTotal: len(specs), HasGuidance: g != nil}
		for _, sp := range specs {
			if sp.Status == models.SpecStatusCompleted {
				card.SpecsCompleted++
			}
		}
		idx := issue.Stage.Index() - 1
		cols[idx].Cards = append(cols[idx].Cards, card)
	}
	return cols, nil
}
