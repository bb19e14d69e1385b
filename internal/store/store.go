package store

import (
	"context"

	"github.com/joescharf/kanban/internal/models"
)

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	Stage models.Stage
	Type  models.IssueType
}

// Store defines the persistence interface for the board.
type Store interface {
	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, slug string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	SaveIssue(ctx context.Context, issue *models.Issue) error
	MoveIssue(ctx context.Context, issue *models.Issue, to models.Stage) error
	ArchiveIssue(ctx context.Context, issue *models.Issue) (string, error)
	DeleteIssue(ctx context.Context, issue *models.Issue) error

	// Specs
	CreateSpec(ctx context.Context, spec *models.Spec) error
	GetSpec(ctx context.Context, issueSlug, name string) (*models.Spec, error)
	ListSpecs(ctx context.Context, issueSlug string) ([]*models.Spec, error)
	SaveSpec(ctx context.Context, spec *models.Spec) error
	DeleteSpec(ctx context.Context, spec *models.Spec) error

	// Guidance
	GetGuidance(ctx context.Context, issueSlug string) (*models.Guidance, error)
	SaveGuidance(ctx context.Context, issueSlug string, g *models.Guidance) error

	// Root returns the board directory.
	Root() string
}
