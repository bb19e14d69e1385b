// Package board is the command boundary of the workflow. Every mutating
// operation resolves state through the store, asks the workflow rules
// whether the change is legal, commits it, then journals it. A rejected
// change is never partially applied.
package board

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/review"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/templates"
	"github.com/joescharf/kanban/internal/workflow"
)

// Service runs board operations against a Store.
type Service struct {
	store     store.Store
	journal   journal.Recorder
	git       git.Client
	templates templates.Renderer
	parser    *review.Parser
	specs     *workflow.SpecMachine
	logger    *slog.Logger
	now       func() time.Time
	dryRun    bool

	repoOnce sync.Once
	inRepo   bool
}

// Option customizes a Service.
type Option func(*Service)

// WithJournal records committed changes to j.
func WithJournal(j journal.Recorder) Option {
	return func(s *Service) { s.journal = j }
}

// WithGit enables git-based recency when several specs await review.
func WithGit(c git.Client) Option {
	return func(s *Service) { s.git = c }
}

// WithTemplates overrides the document templates.
func WithTemplates(r templates.Renderer) Option {
	return func(s *Service) { s.templates = r }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.now = clock }
}

// WithDryRun makes every mutating operation validate only.
func WithDryRun(dryRun bool) Option {
	return func(s *Service) { s.dryRun = dryRun }
}

// New builds a Service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		journal:   journal.Nop{},
		templates: templates.New(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = review.NewParser(s.logger)
	s.specs = workflow.NewSpecMachine(workflow.WithClock(s.now), workflow.WithParser(s.parser))
	return s
}

// DryRun reports whether mutations are suppressed.
func (s *Service) DryRun() bool { return s.dryRun }

// Store exposes the underlying store for read-only callers.
func (s *Service) Store() store.Store { return s.store }

// record appends to the journal. Failures are logged and swallowed: the
// board files are already committed and remain the source of truth.
func (s *Service) record(ctx context.Context, e journal.Event) {
	if s.dryRun {
		return
	}
	if err := s.journal.Record(ctx, &e); err != nil {
		s.logger.Warn("journal record failed", "kind", e.Kind, "issue", e.Issue, "error", err)
	}
}

// snapshot loads everything the stage validator looks at.
func (s *Service) snapshot(ctx context.Context, issue *models.Issue) (workflow.Snapshot, error) {
	specs, err := s.store.ListSpecs(ctx, issue.Slug)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	guidance, err := s.optionalGuidance(ctx, issue.Slug)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return workflow.NewSnapshot(issue, specs, guidance), nil
}

func (s *Service) optionalGuidance(ctx context.Context, slug string) (*models.Guidance, error) {
	g, err := s.store.GetGuidance(ctx, slug)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return g, err
}
