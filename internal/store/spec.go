package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joescharf/kanban/internal/document"
	"github.com/joescharf/kanban/internal/models"
)

type specFrontmatter struct {
	Status        models.SpecStatus     `yaml:"status"`
	Created       string                `yaml:"created"`
	Completed     string                `yaml:"completed"`
	Dependencies  []string              `yaml:"dependencies"`
	ReviewRound   int                   `yaml:"review_round"`
	ReviewHistory []models.ReviewRecord `yaml:"review_history"`
}

func specPath(dir, name string) string {
	return filepath.Join(dir, name+specSuffix)
}

// CreateSpec writes a new pending spec under its issue.
func (s *FSStore) CreateSpec(_ context.Context, spec *models.Spec) error {
	if !models.ValidSlug(spec.Name) {
		return fmt.Errorf("invalid spec name %q: use lowercase kebab-case", spec.Name)
	}
	_, dir, err := s.locate(spec.IssueSlug)
	if err != nil {
		return err
	}
	path := specPath(dir, spec.Name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("spec %s already exists in issue %s", spec.Name, spec.IssueSlug)
	}
	if spec.Status == "" {
		spec.Status = models.SpecStatusPending
	}
	if spec.ReviewRound < 1 {
		spec.ReviewRound = 1
	}
	if spec.Created.IsZero() {
		spec.Created = s.now()
	}
	spec.Path = path
	return s.writeSpec(spec)
}

// GetSpec loads one spec of an issue.
func (s *FSStore) GetSpec(_ context.Context, issueSlug, name string) (*models.Spec, error) {
	if !models.ValidSlug(name) {
		return nil, &models.NotFoundError{Kind: "spec", Name: issueSlug + "/" + name}
	}
	_, dir, err := s.locate(issueSlug)
	if err != nil {
		return nil, err
	}
	spec, err := readSpec(issueSlug, specPath(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &models.NotFoundError{Kind: "spec", Name: issueSlug + "/" + name}
	}
	return spec, err
}

// ListSpecs returns the specs of an issue sorted by name.
func (s *FSStore) ListSpecs(_ context.Context, issueSlug string) ([]*models.Spec, error) {
	_, dir, err := s.locate(issueSlug)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ioFailure("read issue dir", dir, err)
	}
	var out []*models.Spec
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), specSuffix) {
			continue
		}
		spec, err := readSpec(issueSlug, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveSpec persists status, review state and body with a single atomic
// write of the whole document.
func (s *FSStore) SaveSpec(_ context.Context, spec *models.Spec) error {
	_, dir, err := s.locate(spec.IssueSlug)
	if err != nil {
		return err
	}
	path := specPath(dir, spec.Name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.NotFoundError{Kind: "spec", Name: spec.IssueSlug + "/" + spec.Name}
		}
		return ioFailure("stat spec", path, err)
	}
	spec.Path = path
	return s.writeSpec(spec)
}

// DeleteSpec removes the spec file.
func (s *FSStore) DeleteSpec(_ context.Context, spec *models.Spec) error {
	_, dir, err := s.locate(spec.IssueSlug)
	if err != nil {
		return err
	}
	path := specPath(dir, spec.Name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.NotFoundError{Kind: "spec", Name: spec.IssueSlug + "/" + spec.Name}
		}
		return ioFailure("delete spec", path, err)
	}
	return nil
}

func (s *FSStore) writeSpec(spec *models.Spec) error {
	fm := specFrontmatter{
		Status:        spec.Status,
		Created:       formatDate(spec.Created),
		Dependencies:  spec.Dependencies,
		ReviewRound:   spec.ReviewRound,
		ReviewHistory: spec.ReviewHistory,
	}
	if fm.Dependencies == nil {
		fm.Dependencies = []string{}
	}
	if fm.ReviewHistory == nil {
		fm.ReviewHistory = []models.ReviewRecord{}
	}
	if spec.Completed != nil {
		fm.Completed = formatDate(*spec.Completed)
	}
	data, err := document.Encode(fm, spec.Body)
	if err != nil {
		return err
	}
	if err := atomicWrite(spec.Path, data); err != nil {
		return err
	}
	if info, err := os.Stat(spec.Path); err == nil {
		spec.ModTime = info.ModTime()
	}
	return nil
}

func readSpec(issueSlug, path string) (*models.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, ioFailure("read spec", path, err)
	}
	var fm specFrontmatter
	body, err := document.Decode(data, &fm)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	spec := &models.Spec{
		Name:          strings.TrimSuffix(filepath.Base(path), specSuffix),
		IssueSlug:     issueSlug,
		Status:        fm.Status,
		Created:       parseDate(fm.Created),
		Dependencies:  fm.Dependencies,
		ReviewRound:   fm.ReviewRound,
		ReviewHistory: fm.ReviewHistory,
		Body:          body,
		Path:          path,
	}
	if spec.Status == "" {
		spec.Status = models.SpecStatusPending
	}
	if spec.ReviewRound < 1 {
		spec.ReviewRound = 1
	}
	if c := parseDate(fm.Completed); !c.IsZero() {
		spec.Completed = &c
	}
	if info, err := os.Stat(path); err == nil {
		spec.ModTime = info.ModTime()
	}
	return spec, nil
}
