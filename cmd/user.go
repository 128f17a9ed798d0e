package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/output"
	"github.com/joescharf/issues/internal/store"
)

var (
	userName  string
	userImage string
	userTTL   string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and session tokens",
	Long:  "Add, list, and delete users, and mint session tokens for them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <user-id|email>",
	Aliases: []string{"rm"},
	Short:   "Delete a user",
	Long:    "Delete a user. Issues assigned to the user become unassigned.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userDeleteRun(args[0])
	},
}

var userTokenCmd = &cobra.Command{
	Use:   "token <user-id|email>",
	Short: "Mint a session token for a user",
	Long: `Mint a signed session token for a user. Pass it to the API as
"Authorization: Bearer <token>" or a session_token cookie, or store it
as session.token for the CLI and MCP server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userTokenRun(args[0])
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userImage, "image", "", "Avatar image URL")

	userTokenCmd.Flags().StringVar(&userTTL, "ttl", "", "Token lifetime (default: auth.token_ttl)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userTokenCmd)
	rootCmd.AddCommand(userCmd)
}

func userAddRun(email string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email: %q", email)
	}

	u := &models.User{Name: userName, Email: email, Image: userImage}
	if u.Name == "" {
		u.Name = strings.SplitN(email, "@", 2)[0]
	}

	if dryRun {
		ui.DryRunMsg("Would add user: %s <%s>", u.Name, u.Email)
		return nil
	}

	if err := s.CreateUser(context.Background(), u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("user %s already exists", email)
		}
		return fmt.Errorf("create user: %w", err)
	}

	ui.Success("Added user %s: %s <%s>", output.Cyan(u.ID), u.Name, u.Email)
	return nil
}

func userListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(context.Background())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users. Add one with: issues user add <email>")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Email", "Created"})
	for _, u := range users {
		_ = table.Append([]string{u.ID, u.Name, u.Email, u.CreatedAt.Format("2006-01-02")})
	}
	return table.Render()
}

func userDeleteRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	u, err := findUser(ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete user %s <%s>", u.ID, u.Email)
		return nil
	}

	if err := s.DeleteUser(context.Background(), u.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	ui.Success("Deleted user %s <%s>", output.Cyan(u.ID), u.Email)
	return nil
}

func userTokenRun(ref string) error {
	u, err := findUser(ref)
	if err != nil {
		return err
	}

	raw := userTTL
	if raw == "" {
		raw = viper.GetString("auth.token_ttl")
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("invalid token ttl %q", raw)
	}

	resolver, err := getResolver()
	if err != nil {
		return err
	}
	token, err := resolver.Issue(u, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w (run `issues config init` to generate auth.secret)", err)
	}

	ui.VerboseLog("Token for %s expires %s", u.Email, time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Fprintln(ui.Out, token)
	return nil
}

// findUser looks a user up by id, or by email when ref contains an @.
func findUser(ref string) (*models.User, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	ctx := context.Background()

	var u *models.User
	if strings.Contains(ref, "@") {
		u, err = s.GetUserByEmail(ctx, ref)
	} else {
		u, err = s.GetUser(ctx, ref)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %s", ref)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
