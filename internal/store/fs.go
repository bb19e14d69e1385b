package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/kanban/internal/document"
	"github.com/joescharf/kanban/internal/models"
)

const (
	// ArchiveDir holds archived issues, each renamed with a timestamp suffix.
	ArchiveDir = "archive"

	issueFile    = "issue.md"
	guidanceFile = "guidance.md"
	specSuffix   = ".spec.md"

	archiveStampLayout = "20060102-150405"
)

var archiveStamp = regexp.MustCompile(`-\d{8}-\d{6}$`)

// FSStore implements Store on a directory-per-stage, file-per-item layout:
//
//	<root>/<stage>/<slug>/issue.md
//	<root>/<stage>/<slug>/<name>.spec.md
//	<root>/<stage>/<slug>/guidance.md
//	<root>/archive/<slug>-<YYYYMMDD-HHMMSS>/
type FSStore struct {
	root   string
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// Option customizes an FSStore.
type Option func(*FSStore)

// WithClock overrides the clock used for created dates and archive names.
func WithClock(clock func() time.Time) Option {
	return func(s *FSStore) { s.now = clock }
}

// withRename swaps the rename primitive so tests can simulate failures.
func withRename(fn func(oldpath, newpath string) error) Option {
	return func(s *FSStore) { s.rename = fn }
}

// NewFSStore opens a board rooted at dir. The directory is created lazily on
// first write.
func NewFSStore(dir string, opts ...Option) *FSStore {
	s := &FSStore{root: dir, now: time.Now, rename: os.Rename}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the board directory.
func (s *FSStore) Root() string { return s.root }

// Init creates the stage and archive directories.
func (s *FSStore) Init() error {
	for _, st := range models.Stages {
		if err := os.MkdirAll(s.stageDir(st), 0o755); err != nil {
			return ioFailure("create stage dir", s.stageDir(st), err)
		}
	}
	if err := os.MkdirAll(filepath.Join(s.root, ArchiveDir), 0o755); err != nil {
		return ioFailure("create archive dir", filepath.Join(s.root, ArchiveDir), err)
	}
	return nil
}

func (s *FSStore) stageDir(st models.Stage) string {
	return filepath.Join(s.root, string(st))
}

func ioFailure(op, path string, err error) error {
	return &models.IOFailureError{Op: op, Path: path, Err: err}
}

// --- Resolver ---

// locate finds the stage holding slug. An issue present in more than one
// stage violates the layout and is reported rather than guessed.
func (s *FSStore) locate(slug string) (models.Stage, string, error) {
	if !models.ValidSlug(slug) {
		return "", "", &models.NotFoundError{Kind: "issue", Name: slug}
	}
	var found []models.Stage
	for _, st := range models.Stages {
		dir := filepath.Join(s.stageDir(st), slug)
		if info, err := os.Stat(filepath.Join(dir, issueFile)); err == nil && !info.IsDir() {
			found = append(found, st)
		}
	}
	switch len(found) {
	case 0:
		return "", "", &models.NotFoundError{Kind: "issue", Name: slug}
	case 1:
		return found[0], filepath.Join(s.stageDir(found[0]), slug), nil
	default:
		names := make([]string, len(found))
		for i, st := range found {
			names[i] = string(st) + "/" + slug
		}
		return "", "", &models.AmbiguousError{What: "location for issue " + slug, Candidates: names}
	}
}

// slugTaken reports whether slug exists in any stage or in the archive.
func (s *FSStore) slugTaken(slug string) (bool, error) {
	for _, st := range models.Stages {
		if _, err := os.Stat(filepath.Join(s.stageDir(st), slug)); err == nil {
			return true, nil
		}
	}
	entries, err := os.ReadDir(filepath.Join(s.root, ArchiveDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioFailure("read archive", filepath.Join(s.root, ArchiveDir), err)
	}
	for _, e := range entries {
		name := e.Name()
		if name == slug || (archiveStamp.MatchString(name) && archiveStamp.ReplaceAllString(name, "") == slug) {
			return true, nil
		}
	}
	return false, nil
}

// --- Issues ---

type issueFrontmatter struct {
	Type    models.IssueType `yaml:"type"`
	Title   string           `yaml:"title"`
	Owner   string           `yaml:"owner"`
	Created string           `yaml:"created"`
}

// CreateIssue writes a new issue into issue.Stage (backlog when empty).
func (s *FSStore) CreateIssue(_ context.Context, issue *models.Issue) error {
	if !models.ValidSlug(issue.Slug) {
		return fmt.Errorf("invalid slug %q: use lowercase kebab-case", issue.Slug)
	}
	if issue.Stage == "" {
		issue.Stage = models.StageBacklog
	}
	if !issue.Stage.Valid() {
		return fmt.Errorf("invalid stage %q", issue.Stage)
	}
	taken, err := s.slugTaken(issue.Slug)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("issue %s already exists", issue.Slug)
	}
	if issue.Created.IsZero() {
		issue.Created = s.now()
	}

	stageDir := s.stageDir(issue.Stage)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return ioFailure("create stage dir", stageDir, err)
	}
	dir := filepath.Join(stageDir, issue.Slug)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return ioFailure("create issue dir", dir, err)
	}
	issue.Dir = dir
	if err := s.writeIssue(issue); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	document.ApplyIssueBody(issue)
	return nil
}

// GetIssue resolves slug across all stages.
func (s *FSStore) GetIssue(_ context.Context, slug string) (*models.Issue, error) {
	st, dir, err := s.locate(slug)
	if err != nil {
		return nil, err
	}
	return s.readIssue(st, dir)
}

// ListIssues returns issues in stage order, then by slug.
func (s *FSStore) ListIssues(_ context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	var out []*models.Issue
	for _, st := range models.Stages {
		if filter.Stage != "" && filter.Stage != st {
			continue
		}
		entries, err := os.ReadDir(s.stageDir(st))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, ioFailure("read stage", s.stageDir(st), err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(s.stageDir(st), e.Name())
			if _, err := os.Stat(filepath.Join(dir, issueFile)); err != nil {
				continue
			}
			issue, err := s.readIssue(st, dir)
			if err != nil {
				return nil, err
			}
			if filter.Type != "" && issue.Type != filter.Type {
				continue
			}
			out = append(out, issue)
		}
	}
	return out, nil
}

// SaveIssue rewrites the issue document in place.
func (s *FSStore) SaveIssue(_ context.Context, issue *models.Issue) error {
	st, dir, err := s.locate(issue.Slug)
	if err != nil {
		return err
	}
	if st != issue.Stage {
		return fmt.Errorf("issue %s is in %s on disk, not %s", issue.Slug, st, issue.Stage)
	}
	issue.Dir = dir
	if err := s.writeIssue(issue); err != nil {
		return err
	}
	document.ApplyIssueBody(issue)
	return nil
}

// MoveIssue renames the issue directory into the target stage. The
// destination root is created first; the move itself is a single rename, so
// a failure leaves the source untouched.
func (s *FSStore) MoveIssue(_ context.Context, issue *models.Issue, to models.Stage) error {
	from, src, err := s.locate(issue.Slug)
	if err != nil {
		return err
	}
	if from != issue.Stage {
		return fmt.Errorf("issue %s is in %s on disk, not %s", issue.Slug, from, issue.Stage)
	}
	dstRoot := s.stageDir(to)
	if err := os.MkdirAll(dstRoot, 0o755); err != nil {
		return ioFailure("create stage dir", dstRoot, err)
	}
	dst := filepath.Join(dstRoot, issue.Slug)
	if _, err := os.Stat(dst); err == nil {
		return ioFailure("move issue", dst, fs.ErrExist)
	}
	if err := s.rename(src, dst); err != nil {
		return ioFailure("move issue", src, err)
	}
	issue.Stage = to
	issue.Dir = dst
	return nil
}

// ArchiveIssue moves the issue into the archive under a timestamped name and
// returns the new directory. An existing target is never overwritten.
func (s *FSStore) ArchiveIssue(_ context.Context, issue *models.Issue) (string, error) {
	_, src, err := s.locate(issue.Slug)
	if err != nil {
		return "", err
	}
	archiveRoot := filepath.Join(s.root, ArchiveDir)
	if err := os.MkdirAll(archiveRoot, 0o755); err != nil {
		return "", ioFailure("create archive dir", archiveRoot, err)
	}
	dst := filepath.Join(archiveRoot, issue.Slug+"-"+s.now().UTC().Format(archiveStampLayout))
	if _, err := os.Stat(dst); err == nil {
		return "", ioFailure("archive issue", dst, fmt.Errorf("archive target exists: %w", fs.ErrExist))
	}
	if err := s.rename(src, dst); err != nil {
		return "", ioFailure("archive issue", src, err)
	}
	issue.Dir = dst
	return dst, nil
}

// DeleteIssue removes the issue directory and everything in it.
func (s *FSStore) DeleteIssue(_ context.Context, issue *models.Issue) error {
	_, dir, err := s.locate(issue.Slug)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return ioFailure("delete issue", dir, err)
	}
	return nil
}

func (s *FSStore) readIssue(st models.Stage, dir string) (*models.Issue, error) {
	path := filepath.Join(dir, issueFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioFailure("read issue", path, err)
	}
	var fm issueFrontmatter
	body, err := document.Decode(data, &fm)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	issue := &models.Issue{
		Slug:    filepath.Base(dir),
		Type:    fm.Type,
		Stage:   st,
		Title:   fm.Title,
		Owner:   fm.Owner,
		Created: parseDate(fm.Created),
		Body:    body,
		Dir:     dir,
	}
	document.ApplyIssueBody(issue)
	return issue, nil
}

func (s *FSStore) writeIssue(issue *models.Issue) error {
	fm := issueFrontmatter{
		Type:    issue.Type,
		Title:   issue.Title,
		Owner:   issue.Owner,
		Created: formatDate(issue.Created),
	}
	data, err := document.Encode(fm, issue.Body)
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(issue.Dir, issueFile), data)
}

// --- Guidance ---

type guidanceFrontmatter struct {
	Status      models.GuidanceStatus `yaml:"status"`
	LastUpdated string                `yaml:"last-updated"`
}

// GetGuidance returns the issue's guidance document or a NotFoundError.
func (s *FSStore) GetGuidance(_ context.Context, issueSlug string) (*models.Guidance, error) {
	_, dir, err := s.locate(issueSlug)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, guidanceFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &models.NotFoundError{Kind: "guidance", Name: issueSlug}
		}
		return nil, ioFailure("read guidance", path, err)
	}
	var fm guidanceFrontmatter
	body, err := document.Decode(data, &fm)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &models.Guidance{Status: fm.Status, LastUpdated: parseDate(fm.LastUpdated), Body: body}, nil
}

// SaveGuidance writes the guidance document atomically.
func (s *FSStore) SaveGuidance(_ context.Context, issueSlug string, g *models.Guidance) error {
	_, dir, err := s.locate(issueSlug)
	if err != nil {
		return err
	}
	data, err := document.Encode(guidanceFrontmatter{Status: g.Status, LastUpdated: formatDate(g.LastUpdated)}, g.Body)
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, guidanceFile), data)
}

// --- helpers ---

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(models.DateLayout)
}

// parseDate accepts plain dates and RFC3339 timestamps; anything else is the
// zero time.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
