package store

import (
	"context"

	"github.com/joescharf/issues/internal/models"
)

// IssueListFilter specifies filters and paging for listing issues.
// Page and PageSize are 1-based and must be positive.
type IssueListFilter struct {
	Status   models.IssueStatus
	Page     int
	PageSize int
}

// IssuePage is one page of issues plus the total count matching the filter.
type IssuePage struct {
	Issues   []*models.Issue
	Total    int
	Page     int
	PageSize int
}

// PageCount is the number of pages needed to show Total issues.
func (p *IssuePage) PageCount() int {
	if p.PageSize < 1 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// IssueUpdate carries the fields to merge into an existing issue.
// Nil fields are left untouched. When SetAssignee is true AssignedToUserID
// replaces the current assignment, and nil means unassigned.
type IssueUpdate struct {
	Title            *string
	Description      *string
	Status           *models.IssueStatus
	SetAssignee      bool
	AssignedToUserID *string
}

// Empty reports whether the update would change nothing but UpdatedAt.
func (u IssueUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && !u.SetAssignee
}

// UserStore is the subset of Store used to look up users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Store defines the persistence interface for issues and users.
type Store interface {
	UserStore

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id int64, upd IssueUpdate) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id int64) error
	ListIssues(ctx context.Context, filter IssueListFilter) (*IssuePage, error)

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
