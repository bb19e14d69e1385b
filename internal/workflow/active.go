package workflow

import "github.com/joescharf/kanban/internal/models"

// SingleActiveIssue returns the one issue in in-progress. Zero or several
// candidates is an AmbiguousError rather than a silent pick.
func SingleActiveIssue(issues []*models.Issue) (*models.Issue, error) {
	var active []*models.Issue
	for _, i := range issues {
		if i.Stage == models.StageInProgress {
			active = append(active, i)
		}
	}
	if len(active) == 1 {
		return active[0], nil
	}
	names := make([]string, len(active))
	for i, a := range active {
		names[i] = a.Slug
	}
	return nil, &models.AmbiguousError{What: "active issue in " + string(models.StageInProgress), Candidates: names}
}
