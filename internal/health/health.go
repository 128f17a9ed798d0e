// Package health summarises the issue backlog and scores how well it is
// being looked after.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/store"
)

// scanPageSize is the page size used when walking every issue.
const scanPageSize = 100

// Lister is the part of the store the summary reads from.
type Lister interface {
	ListIssues(ctx context.Context, filter store.IssueListFilter) (*store.IssuePage, error)
}

// Summary counts issues by state. Unassigned only counts issues that are
// not closed.
type Summary struct {
	Total        int       `json:"total"`
	Open         int       `json:"open"`
	InProgress   int       `json:"inProgress"`
	Closed       int       `json:"closed"`
	Unassigned   int       `json:"unassigned"`
	OldestOpen   time.Time `json:"oldestOpen,omitzero"`
	LastActivity time.Time `json:"lastActivity,omitzero"`
	Score        *Score    `json:"score"`
}

// Score is the backlog health, 0-100.
type Score struct {
	Total    int `json:"total"`
	Backlog  int `json:"backlog"`  // 0-40
	Triage   int `json:"triage"`   // 0-30
	Activity int `json:"activity"` // 0-30
}

// Summarize walks every issue and scores the result.
func Summarize(ctx context.Context, src Lister) (*Summary, error) {
	sum := &Summary{}
	for page := 1; ; page++ {
		p, err := src.ListIssues(ctx, store.IssueListFilter{Page: page, PageSize: scanPageSize})
		if err != nil {
			return nil, fmt.Errorf("summarize issues: %w", err)
		}
		for _, issue := range p.Issues {
			sum.add(issue)
		}
		if page >= p.PageCount() {
			break
		}
	}
	sum.Score = score(sum, time.Now())
	return sum, nil
}

func (s *Summary) add(issue *models.Issue) {
	s.Total++
	switch issue.Status {
	case models.IssueStatusOpen:
		s.Open++
	case models.IssueStatusInProgress:
		s.InProgress++
	case models.IssueStatusClosed:
		s.Closed++
	}
	if issue.Status != models.IssueStatusClosed {
		if issue.AssignedToUserID == nil {
			s.Unassigned++
		}
		if s.OldestOpen.IsZero() || issue.CreatedAt.Before(s.OldestOpen) {
			s.OldestOpen = issue.CreatedAt
		}
	}
	if issue.UpdatedAt.After(s.LastActivity) {
		s.LastActivity = issue.UpdatedAt
	}
}

func score(s *Summary, now time.Time) *Score {
	h := &Score{
		Backlog:  scoreBacklog(s, 40),
		Triage:   scoreTriage(s, 30),
		Activity: scoreRecency(s.LastActivity, now, 30),
	}
	if s.Total == 0 {
		h.Activity = 30 // nothing to do
	}
	h.Total = h.Backlog + h.Triage + h.Activity
	return h
}

// scoreBacklog rewards a low share of unfinished issues. A backlog that is
// entirely unfinished keeps a fifth of the points.
func scoreBacklog(s *Summary, maxPoints int) int {
	if s.Total == 0 {
		return maxPoints
	}
	unfinished := s.Open + s.InProgress
	return maxPoints - maxPoints*unfinished*4/(s.Total*5)
}

// scoreTriage rewards unfinished issues that have an owner.
func scoreTriage(s *Summary, maxPoints int) int {
	active := s.Open + s.InProgress
	if active == 0 {
		return maxPoints
	}
	assigned := active - s.Unassigned
	return maxPoints * assigned / active
}

// scoreRecency converts time since last activity to points.
func scoreRecency(t, now time.Time, maxPoints int) int {
	if t.IsZero() {
		return 0
	}
	days := int(now.Sub(t).Hours() / 24)
	pct := 10
	switch {
	case days <= 1:
		pct = 100
	case days <= 3:
		pct = 90
	case days <= 7:
		pct = 75
	case days <= 14:
		pct = 60
	case days <= 30:
		pct = 40
	case days <= 90:
		pct = 20
	}
	return maxPoints * pct / 100
}
