package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issues/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, email string) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedIssues(t *testing.T, s *SQLiteStore, n int) []*models.Issue {
	t.Helper()
	var out []*models.Issue
	for i := 0; i < n; i++ {
		issue := &models.Issue{Title: "issue", Description: "desc"}
		require.NoError(t, s.CreateIssue(context.Background(), issue))
		out = append(out, issue)
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

// --- Issue CRUD ---

func TestIssueCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Create
	issue := &models.Issue{Title: "Bug A", Description: "Crashes on load"}
	require.NoError(t, s.CreateIssue(ctx, issue))
	assert.NotZero(t, issue.ID)
	assert.Equal(t, models.IssueStatusOpen, issue.Status)
	assert.Nil(t, issue.AssignedToUserID)
	assert.False(t, issue.CreatedAt.IsZero())
	assert.Equal(t, issue.CreatedAt, issue.UpdatedAt)

	// Get
	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bug A", got.Title)
	assert.Equal(t, "Crashes on load", got.Description)
	assert.Equal(t, models.IssueStatusOpen, got.Status)
	assert.Nil(t, got.AssignedToUserID)

	// Update merges only supplied fields
	closed := models.IssueStatusClosed
	updated, err := s.UpdateIssue(ctx, issue.ID, IssueUpdate{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusClosed, updated.Status)
	assert.Equal(t, "Bug A", updated.Title)
	assert.Equal(t, "Crashes on load", updated.Description)
	assert.False(t, updated.UpdatedAt.Before(issue.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(issue.CreatedAt))

	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusClosed, got.Status)

	// Delete
	require.NoError(t, s.DeleteIssue(ctx, issue.ID))

	_, err = s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateIssue_IDsNotReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issues := seedIssues(t, s, 2)
	require.NoError(t, s.DeleteIssue(ctx, issues[1].ID))

	next := &models.Issue{Title: "t", Description: "d"}
	require.NoError(t, s.CreateIssue(ctx, next))
	assert.Greater(t, next.ID, issues[1].ID)
}

func TestGetIssue_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetIssue(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	existing := seedIssues(t, s, 1)[0]

	_, err := s.UpdateIssue(ctx, existing.ID+100, IssueUpdate{Title: strPtr("changed")})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetIssue(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "issue", got.Title)
}

func TestDeleteIssue_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteIssue(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIssue_AssignAndUnassign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ann@example.com")
	issue := seedIssues(t, s, 1)[0]

	got, err := s.UpdateIssue(ctx, issue.ID, IssueUpdate{SetAssignee: true, AssignedToUserID: &u.ID})
	require.NoError(t, err)
	require.NotNil(t, got.AssignedToUserID)
	assert.Equal(t, u.ID, *got.AssignedToUserID)

	// Title-only update leaves the assignment alone
	got, err = s.UpdateIssue(ctx, issue.ID, IssueUpdate{Title: strPtr("renamed")})
	require.NoError(t, err)
	require.NotNil(t, got.AssignedToUserID)

	got, err = s.UpdateIssue(ctx, issue.ID, IssueUpdate{SetAssignee: true})
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToUserID)
}

func TestUpdateIssue_RejectsDanglingAssignee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := seedIssues(t, s, 1)[0]

	_, err := s.UpdateIssue(ctx, issue.ID, IssueUpdate{SetAssignee: true, AssignedToUserID: strPtr("ghost")})
	assert.Error(t, err, "foreign key should reject unknown user")

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToUserID)
}

func TestDeleteUser_UnassignsIssues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "bob@example.com")
	issue := seedIssues(t, s, 1)[0]

	_, err := s.UpdateIssue(ctx, issue.ID, IssueUpdate{SetAssignee: true, AssignedToUserID: &u.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToUserID)
}

// --- Listing ---

func TestListIssues_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedIssues(t, s, 5)

	page, err := s.ListIssues(ctx, IssueListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Issues, 2)
	assert.Equal(t, created[0].ID, page.Issues[0].ID)
	assert.Equal(t, created[1].ID, page.Issues[1].ID)

	page, err = s.ListIssues(ctx, IssueListFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, created[4].ID, page.Issues[0].ID)

	// Past the last page
	page, err = s.ListIssues(ctx, IssueListFilter{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Issues)
	assert.NotNil(t, page.Issues)
	assert.Equal(t, 5, page.Total)
}

func TestListIssues_StatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedIssues(t, s, 3)

	inProgress := models.IssueStatusInProgress
	_, err := s.UpdateIssue(ctx, created[1].ID, IssueUpdate{Status: &inProgress})
	require.NoError(t, err)

	page, err := s.ListIssues(ctx, IssueListFilter{Status: models.IssueStatusInProgress, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, created[1].ID, page.Issues[0].ID)

	page, err = s.ListIssues(ctx, IssueListFilter{Status: models.IssueStatusOpen, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = s.ListIssues(ctx, IssueListFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestListIssues_RejectsNonPositivePaging(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ListIssues(context.Background(), IssueListFilter{Page: 0, PageSize: 10})
	assert.Error(t, err)
}

// --- Users ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Ann", Email: "ann@example.com", Image: "https://example.com/a.png"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "https://example.com/a.png", got.Image)

	got, err = s.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), ErrNotFound)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "dup@example.com")

	err := s.CreateUser(context.Background(), &models.User{Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

// --- Atomicity ---

func TestConcurrentUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		issue := seedIssues(t, s, 1)[0]
		title := "changed"

		var wg sync.WaitGroup
		var updErr, delErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, updErr = s.UpdateIssue(ctx, issue.ID, IssueUpdate{Title: &title})
		}()
		go func() {
			defer wg.Done()
			delErr = s.DeleteIssue(ctx, issue.ID)
		}()
		wg.Wait()

		// The delete always finds the row; the update either ran first or saw nothing.
		require.NoError(t, delErr)
		if updErr != nil {
			assert.ErrorIs(t, updErr, ErrNotFound)
		}
		_, err := s.GetIssue(ctx, issue.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}
