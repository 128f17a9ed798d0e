// Package issues implements the mutation and query operations on issues.
//
// Every mutating call runs the same pipeline: resolve the session, validate
// the body, check the assignee reference when one is supplied, then write.
// A rejection at any stage returns before the next stage runs, so a failed
// request never touches the store.
package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joescharf/issues/internal/auth"
	"github.com/joescharf/issues/internal/health"
	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/store"
	"github.com/joescharf/issues/internal/validate"
)

const (
	// DefaultPageSize is used when a list request omits or garbles pageSize.
	DefaultPageSize = 10
	// MaxPageSize caps pageSize.
	MaxPageSize = 100

	// maxPage keeps the row offset from overflowing; anything this far out is
	// past the last page anyway.
	maxPage = 1 << 30
)

// ListParams holds raw, client-supplied list parameters.
type ListParams struct {
	Status   string
	Page     string
	PageSize string
}

// Service orchestrates authorization, validation, reference checks and
// persistence for issues.
type Service struct {
	store    store.Store
	auth     auth.Resolver
	log      *slog.Logger
	pageSize int
}

// NewService creates a Service. A nil logger falls back to slog.Default().
func NewService(s store.Store, r auth.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, auth: r, log: logger, pageSize: DefaultPageSize}
}

// SetDefaultPageSize changes the page size used when a request omits one.
func (s *Service) SetDefaultPageSize(n int) {
	if n > 0 && n <= MaxPageSize {
		s.pageSize = n
	}
}

// ParseID parses a path id. ok is false for anything that cannot name an issue.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Service) authorize(ctx context.Context, token string) (*models.Session, error) {
	sess, err := s.auth.Resolve(ctx, token)
	if errors.Is(err, auth.ErrNoSession) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	return sess, nil
}

func (s *Service) lookup(ctx context.Context, id int64) (*models.Issue, error) {
	if id < 1 {
		return nil, ErrNotFound
	}
	issue, err := s.store.GetIssue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", id, err)
	}
	return issue, nil
}

// Create validates body against the create schema and stores a new OPEN,
// unassigned issue.
func (s *Service) Create(ctx context.Context, token string, body []byte) (*models.Issue, error) {
	sess, err := s.authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	in, err := validate.CreateIssue(body)
	if err != nil {
		return nil, err
	}

	issue := &models.Issue{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.IssueStatusOpen,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	s.log.Info("issue created", "id", issue.ID, "user", sess.UserID)
	return issue, nil
}

// Edit applies a partial update to issue id. Assigning is an edit carrying
// only assignedToUserId. An empty patch returns the issue unchanged.
func (s *Service) Edit(ctx context.Context, token string, id int64, body []byte) (*models.Issue, error) {
	sess, err := s.authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	existing, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	in, err := validate.PatchIssue(body)
	if err != nil {
		return nil, err
	}

	if in.AssigneeSet {
		if err := checkAssignee(ctx, s.store, in.AssignedToUserID); err != nil {
			return nil, err
		}
	}

	if in.Empty() {
		return existing, nil
	}

	updated, err := s.store.UpdateIssue(ctx, id, store.IssueUpdate{
		Title:            in.Title,
		Description:      in.Description,
		Status:           in.Status,
		SetAssignee:      in.AssigneeSet,
		AssignedToUserID: in.AssignedToUserID,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update issue %d: %w", id, err)
	}

	s.log.Info("issue updated", "id", id, "user", sess.UserID)
	return updated, nil
}

// Delete removes issue id permanently.
func (s *Service) Delete(ctx context.Context, token string, id int64) error {
	sess, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}

	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}

	err = s.store.DeleteIssue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete issue %d: %w", id, err)
	}

	s.log.Info("issue deleted", "id", id, "user", sess.UserID)
	return nil
}

// Get returns a single issue. It requires no session.
func (s *Service) Get(ctx context.Context, id int64) (*models.Issue, error) {
	return s.lookup(ctx, id)
}

// List returns one page of issues. Malformed paging falls back to defaults
// and an unrecognised status means no filter.
func (s *Service) List(ctx context.Context, p ListParams) (*store.IssuePage, error) {
	filter := store.IssueListFilter{
		Page:     parsePositive(p.Page, 1),
		PageSize: parsePositive(p.PageSize, s.pageSize),
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	if filter.Page > maxPage {
		filter.Page = maxPage
	}
	if st, ok := models.ParseIssueStatus(p.Status); ok {
		filter.Status = st
	}

	page, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return page, nil
}

// ListUsers returns every user, for assignee pickers.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Summary counts issues by state and scores the backlog. It requires no
// session.
func (s *Service) Summary(ctx context.Context) (*health.Summary, error) {
	return health.Summarize(ctx, s.store)
}

func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
