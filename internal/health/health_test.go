package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/store"
)

// sliceLister pages over a fixed slice the way the store does.
type sliceLister struct {
	issues []*models.Issue
	calls  int
	err    error
}

func (l *sliceLister) ListIssues(_ context.Context, f store.IssueListFilter) (*store.IssuePage, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	p := &store.IssuePage{Issues: []*models.Issue{}, Total: len(l.issues), Page: f.Page, PageSize: f.PageSize}
	start := (f.Page - 1) * f.PageSize
	if start >= len(l.issues) {
		return p, nil
	}
	end := min(start+f.PageSize, len(l.issues))
	p.Issues = l.issues[start:end]
	return p, nil
}

func issue(status models.IssueStatus, assigned bool, age time.Duration) *models.Issue {
	ts := time.Now().Add(-age)
	i := &models.Issue{Status: status, CreatedAt: ts, UpdatedAt: ts}
	if assigned {
		u := "user-1"
		i.AssignedToUserID = &u
	}
	return i
}

func TestSummarize_Empty(t *testing.T) {
	sum, err := Summarize(context.Background(), &sliceLister{})
	require.NoError(t, err)

	assert.Zero(t, sum.Total)
	assert.True(t, sum.OldestOpen.IsZero())
	assert.Equal(t, 100, sum.Score.Total, "an empty tracker is healthy")
}

func TestSummarize_Counts(t *testing.T) {
	src := &sliceLister{issues: []*models.Issue{
		issue(models.IssueStatusOpen, false, 48*time.Hour),
		issue(models.IssueStatusOpen, true, time.Hour),
		issue(models.IssueStatusInProgress, true, 2*time.Hour),
		issue(models.IssueStatusClosed, false, 72*time.Hour),
	}}

	sum, err := Summarize(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Open)
	assert.Equal(t, 1, sum.InProgress)
	assert.Equal(t, 1, sum.Closed)
	assert.Equal(t, 1, sum.Unassigned, "closed issues don't count as unassigned")
	assert.True(t, sum.OldestOpen.Equal(src.issues[0].CreatedAt))
	assert.True(t, sum.LastActivity.Equal(src.issues[1].UpdatedAt))

	// 3 of 4 unfinished: 40 * (1 - 0.75*0.8) = 16; 2 of 3 assigned: 20; active today: 30
	assert.Equal(t, 16, sum.Score.Backlog)
	assert.Equal(t, 20, sum.Score.Triage)
	assert.Equal(t, 30, sum.Score.Activity)
	assert.Equal(t, 66, sum.Score.Total)
}

func TestSummarize_WalksAllPages(t *testing.T) {
	src := &sliceLister{}
	for i := 0; i < 250; i++ {
		src.issues = append(src.issues, issue(models.IssueStatusClosed, false, time.Hour))
	}

	sum, err := Summarize(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 250, sum.Closed)
	assert.Equal(t, 3, src.calls)
}

func TestSummarize_Error(t *testing.T) {
	_, err := Summarize(context.Background(), &sliceLister{err: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestScoreRecency(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		ago      time.Duration
		expected int
	}{
		{"today", time.Hour, 30},
		{"2 days", 2 * 24 * time.Hour, 27},
		{"5 days", 5 * 24 * time.Hour, 22},
		{"10 days", 10 * 24 * time.Hour, 18},
		{"20 days", 20 * 24 * time.Hour, 12},
		{"60 days", 60 * 24 * time.Hour, 6},
		{"200 days", 200 * 24 * time.Hour, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoreRecency(now.Add(-tt.ago), now, 30))
		})
	}

	assert.Equal(t, 0, scoreRecency(time.Time{}, now, 30))
}

func TestScoreTriage(t *testing.T) {
	assert.Equal(t, 30, scoreTriage(&Summary{}, 30))
	assert.Equal(t, 0, scoreTriage(&Summary{Open: 2, Unassigned: 2}, 30))
	assert.Equal(t, 15, scoreTriage(&Summary{Open: 1, InProgress: 1, Unassigned: 1}, 30))
}
