package review

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/models"
)

const needsWorkDoc = `---
status: in-review
---

## Acceptance Criteria

- [ ] Users can log in

## Review

**Reviewed**: 2026-10-14

### Verdict

NEEDS_WORK

### Acceptance Criteria Verification

| Criterion | Status | Evidence |
|-----------|--------|----------|
| Users can log in | PASS | login_test.go |
| Lockout after 5 attempts | FAIL | no lockout logic |
| Remember me | MISSING | |
| Session expiry | SKIPPED | n/a |

### Test Coverage Audit

| Test Case | Status | Expected Location |
|-----------|--------|-------------------|
| login happy path | ✅ PASS | auth/login_test.go |
| lockout | MISSING | auth/lockout_test.go |

### Quality Concerns

- Error messages leak user existence
* **None identified**
`

func TestParse_NoReviewSection(t *testing.T) {
	got, err := Parse("## Acceptance Criteria\n\n- [ ] something\n")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParse_NeedsWork(t *testing.T) {
	var logs bytes.Buffer
	p := NewParser(slog.New(slog.NewTextHandler(&logs, nil)))

	got, err := p.Parse(needsWorkDoc)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, models.VerdictNeedsWork, got.Verdict)
	assert.Equal(t, "2026-10-14", got.ReviewedDate)
	assert.Equal(t, []FailedCriterion{
		{Criterion: "Lockout after 5 attempts", Status: "FAIL", Evidence: "no lockout logic"},
		{Criterion: "Remember me", Status: "MISSING", Evidence: ""},
	}, got.FailedCriteria)
	assert.Equal(t, []MissingTest{{Test: "lockout", Location: "auth/lockout_test.go"}}, got.MissingTests)
	assert.Equal(t, []string{"Error messages leak user existence"}, got.Concerns)

	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "SKIPPED")
	assert.Contains(t, logs.String(), "SKIPPED")
}

func TestParse_TakesLastReviewSection(t *testing.T) {
	doc := needsWorkDoc + `
## Review

### Verdict: APPROVED

### Concerns

- None identified
`
	got, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.VerdictApproved, got.Verdict)
	assert.Empty(t, got.FailedCriteria)
	assert.Empty(t, got.Concerns)
	assert.Empty(t, got.ReviewedDate)
}

func TestParse_Deterministic(t *testing.T) {
	a, err := Parse(needsWorkDoc)
	require.NoError(t, err)
	b, err := Parse(needsWorkDoc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParse_MalformedVerdict(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing heading", "## Review\n\nLooks good.\n"},
		{"ambiguous", "## Review\n\n### Verdict\n\nAPPROVED or NEEDS_WORK\n"},
		{"lowercase token", "## Review\n\n### Verdict\n\napproved\n"},
		{"empty", "## Review\n\n### Verdict\n\n### Concerns\n\n- x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.doc)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedReview), "got %v", err)
		})
	}
}

func TestParse_HeaderlessTable(t *testing.T) {
	doc := `## Review

### Verdict
NEEDS_WORK

### Acceptance Criteria Verification
| Criterion A | FAIL |
`
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Empty(t, got.FailedCriteria)
	assert.Equal(t, []string{"acceptance criteria verification has no table"}, got.Warnings)
}

func TestParse_FencedReviewIsIgnored(t *testing.T) {
	doc := "## Test Cases\n\n````md\n```\n## Review\n\n### Verdict\n\nAPPROVED\n````\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Nil(t, got)

	doc = "## Example\n\n````md\n```go\nx := 1\n```\n````\n\n## Review\n\n### Verdict\n\nNEEDS_WORK\n"
	got, err = Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.VerdictNeedsWork, got.Verdict)

	doc = "## Review\n\n### Verdict\n\n```\nAPPROVED\n```\n\nNEEDS_WORK\n"
	got, err = Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNeedsWork, got.Verdict)
}

func TestParse_EscapedPipeInCell(t *testing.T) {
	doc := "## Review\n\n### Verdict\n\nNEEDS_WORK\n\n### Acceptance Criteria Verification\n\n" +
		"| Criterion | Status | Evidence |\n|---|---|---|\n" +
		"| Split rows | FAIL | `a \\| b` is split wrong |\n" +
		"| Or \\| and | MISSING | none |\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []FailedCriterion{
		{Criterion: "Split rows", Status: "FAIL", Evidence: "`a | b` is split wrong"},
		{Criterion: "Or | and", Status: "MISSING", Evidence: "none"},
	}, got.FailedCriteria)
	assert.Empty(t, got.Warnings)
}

func TestParse_StatusCellMustBeOneToken(t *testing.T) {
	doc := `## Review

### Verdict

NEEDS_WORK

### Acceptance Criteria Verification

| Criterion | Status | Evidence |
|-----------|--------|----------|
| Lockout | PARTIAL PASS | only 3 of 5 |
| Expiry | NOT PASS | none |
| Reset | **FAIL** | no email |
| Audit | ❌ MISSING | |

### Test Coverage Audit

| Test Case | Status | Expected Location |
|-----------|--------|-------------------|
| lockout | MISSING TEST | auth/lockout_test.go |
`
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []FailedCriterion{
		{Criterion: "Reset", Status: "FAIL", Evidence: "no email"},
		{Criterion: "Audit", Status: "MISSING", Evidence: ""},
	}, got.FailedCriteria)
	assert.Empty(t, got.MissingTests)
	require.Len(t, got.Warnings, 3)
	assert.Contains(t, got.Warnings[0], "PARTIAL PASS")
	assert.Contains(t, got.Warnings[1], "NOT PASS")
	assert.Contains(t, got.Warnings[2], "MISSING TEST")
}

func TestStatusToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"PASS", "PASS", true},
		{"✅ pass", "PASS", true},
		{"**FAIL**", "FAIL", true},
		{" _Missing_ ", "MISSING", true},
		{"PARTIAL PASS", "", false},
		{"PASS (flaky)", "", false},
		{"SKIPPED", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := statusToken(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsed_Record(t *testing.T) {
	got, err := Parse(needsWorkDoc)
	require.NoError(t, err)

	rec := got.Record(3, "2026-10-16")
	assert.Equal(t, 3, rec.Round)
	assert.Equal(t, "2026-10-14", rec.Date)
	assert.Equal(t, models.VerdictNeedsWork, rec.Verdict)
	assert.Equal(t, []string{"Lockout after 5 attempts: no lockout logic", "Remember me"}, rec.FailedCriteria)
	assert.Equal(t, []string{"Error messages leak user existence"}, rec.Concerns)

	got.ReviewedDate = ""
	assert.Equal(t, "2026-10-16", got.Record(1, "2026-10-16").Date)
}
