package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/issues/internal/issues"
	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/output"
	"github.com/joescharf/issues/internal/store"
)

var (
	issueTitle    string
	issueDesc     string
	issueStatus   string
	issuePage     int
	issuePageSize int
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, list, edit, assign, and delete issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    "List issues in creation order, one page at a time.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueCreateCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"add"},
	Short:   "Create a new issue",
	Long:    "Create a new OPEN, unassigned issue. Requires a session token.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCreateRun()
	},
}

var issueEditCmd = &cobra.Command{
	Use:     "edit <issue-id>",
	Aliases: []string{"update"},
	Short:   "Edit an issue",
	Long:    "Change the title, description, or status of an issue. Only the flags you pass are changed.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueEditRun(cmd, args[0])
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <issue-id> <user-id|email|none>",
	Short: "Assign an issue to a user",
	Long:  "Assign an issue to a user by id or email. Use \"none\" to unassign.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAssignRun(args[0], args[1])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

func init() {
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: OPEN, IN_PROGRESS, CLOSED")
	issueListCmd.Flags().IntVar(&issuePage, "page", 1, "Page number")
	issueListCmd.Flags().IntVar(&issuePageSize, "page-size", 0, "Issues per page (default: list.page_size)")

	issueCreateCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueCreateCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")

	issueEditCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueEditCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueEditCmd.Flags().StringVar(&issueStatus, "status", "", "New status: OPEN, IN_PROGRESS, CLOSED")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueCreateCmd)
	issueCmd.AddCommand(issueEditCmd)
	issueCmd.AddCommand(issueAssignCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	params := issues.ListParams{Status: issueStatus, Page: fmt.Sprint(issuePage)}
	if issuePageSize > 0 {
		params.PageSize = fmt.Sprint(issuePageSize)
	}

	page, err := svc.List(context.Background(), params)
	if err != nil {
		return describeErr(err)
	}

	if len(page.Issues) == 0 {
		ui.Info("No issues found.")
		fmt.Fprintln(ui.Out, output.PageSummary(page.Page, page.PageCount(), page.Total))
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Assignee", "Created"})
	for _, issue := range page.Issues {
		_ = table.Append([]string{
			fmt.Sprint(issue.ID),
			issue.Title,
			output.StatusColor(string(issue.Status)),
			assigneeLabel(issue),
			issue.CreatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out, output.PageSummary(page.Page, page.PageCount(), page.Total))
	return nil
}

func issueShowRun(rawID string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	id, _ := issues.ParseID(rawID)
	issue, err := svc.Get(context.Background(), id)
	if err != nil {
		return describeErr(err)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(fmt.Sprintf("#%d", issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Assignee:   %s\n", assigneeLabel(issue))
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", issue.Description)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	return nil
}

func issueCreateRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"title": issueTitle, "description": issueDesc})
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create issue: %s", issueTitle)
		return nil
	}

	issue, err := svc.Create(context.Background(), sessionToken(), body)
	if err != nil {
		return describeErr(err)
	}

	ui.Success("Created issue %s: %s", output.Cyan(fmt.Sprintf("#%d", issue.ID)), issue.Title)
	return nil
}

func issueEditRun(cmd *cobra.Command, rawID string) error {
	patch := map[string]any{}
	if cmd.Flags().Changed("title") {
		patch["title"] = issueTitle
	}
	if cmd.Flags().Changed("desc") {
		patch["description"] = issueDesc
	}
	if cmd.Flags().Changed("status") {
		patch["status"] = strings.ToUpper(issueStatus)
	}
	if len(patch) == 0 {
		return fmt.Errorf("no updates specified (use --title, --desc, or --status)")
	}

	issue, err := patchIssue(rawID, patch)
	if err != nil || issue == nil {
		return err
	}

	ui.Success("Updated issue %s", output.Cyan(fmt.Sprintf("#%d", issue.ID)))
	return nil
}

func issueAssignRun(rawID, who string) error {
	patch := map[string]any{"assignedToUserId": nil}
	if !strings.EqualFold(who, "none") {
		userID, err := resolveUserRef(who)
		if err != nil {
			return err
		}
		patch["assignedToUserId"] = userID
	}

	issue, err := patchIssue(rawID, patch)
	if err != nil || issue == nil {
		return err
	}

	ui.Success("Issue %s assigned to %s", output.Cyan(fmt.Sprintf("#%d", issue.ID)), assigneeLabel(issue))
	return nil
}

func issueDeleteRun(rawID string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	id, _ := issues.ParseID(rawID)
	if dryRun {
		ui.DryRunMsg("Would delete issue #%s", rawID)
		return nil
	}

	if err := svc.Delete(context.Background(), sessionToken(), id); err != nil {
		return describeErr(err)
	}

	ui.Success("Deleted issue %s", output.Cyan("#"+rawID))
	return nil
}

// patchIssue sends patch through the service. It returns a nil issue in
// dry-run mode.
func patchIssue(rawID string, patch map[string]any) (*models.Issue, error) {
	svc, err := getService()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	if dryRun {
		ui.DryRunMsg("Would update issue #%s with %s", rawID, body)
		return nil, nil
	}

	id, _ := issues.ParseID(rawID)
	issue, err := svc.Edit(context.Background(), sessionToken(), id, body)
	if err != nil {
		return nil, describeErr(err)
	}
	return issue, nil
}

// resolveUserRef maps an email to a user id. Anything without an @ is
// treated as a user id and checked by the service.
func resolveUserRef(ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	s, err := getStore()
	if err != nil {
		return "", err
	}
	u, err := s.GetUserByEmail(context.Background(), ref)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("no user with email %s", ref)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func assigneeLabel(issue *models.Issue) string {
	if issue.AssignedToUserID == nil {
		return "-"
	}
	if s, err := getStore(); err == nil {
		if u, err := s.GetUser(context.Background(), *issue.AssignedToUserID); err == nil {
			return u.Email
		}
	}
	return *issue.AssignedToUserID
}

// describeErr adds a hint to errors the user can act on.
func describeErr(err error) error {
	switch {
	case errors.Is(err, issues.ErrUnauthorized):
		return fmt.Errorf("%w: pass --token or set session.token (see `issues user token`)", err)
	case errors.Is(err, issues.ErrInvalidReference):
		return fmt.Errorf("%w: no such user (see `issues user list`)", err)
	}
	return err
}
