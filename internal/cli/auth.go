package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/identity"
	"ecocivic/api/internal/rbac"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/style"
)

func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var password, location string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in as it.

The first account ever registered becomes an admin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				user, err := rt.accounts.Register(ctx, identity.RegisterInput{
					Username: args[0],
					Password: password,
					Location: location,
				})
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"user": user}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Registered %s\n", style.SuccessPrefix, style.Bold.Render(user.Username))
					if user.Role == store.RoleAdmin {
						fmt.Fprintf(w, "  %s first account, you are an admin\n", style.ArrowPrefix)
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (required)")
	cmd.Flags().StringVar(&location, "location", "", "home location shown on the leaderboard")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				user, err := rt.accounts.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"user": user}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Signed in as %s\n", style.SuccessPrefix, style.Bold.Render(user.Username))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if err := rt.accounts.Logout(ctx); err != nil {
					return err
				}
				return out.Success(map[string]any{"ok": true}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Signed out\n", style.SuccessPrefix)
				})
			})
		},
	}
}

func NewWhoAmICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				user := rt.sessions.Current()
				return out.Success(map[string]any{"authenticated": user != nil, "user": user}, func(w io.Writer) {
					if user == nil {
						fmt.Fprintln(w, style.Dim.Render("Not signed in."))
						return
					}
					renderProfile(w, *user)
				})
			})
		},
	}
}

func renderProfile(w io.Writer, user store.User) {
	fmt.Fprintf(w, "%s %s\n", style.Bold.Render("User:"), user.Username)
	fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("ID:"), user.ID)
	fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Role:"), user.Role)
	fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Points:"), style.Points.Render(fmt.Sprint(user.Points)))
	if user.Location != "" {
		fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Location:"), user.Location)
	}
	if len(user.Badges) == 0 {
		fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Badges:"), style.Dim.Render("none yet"))
		return
	}
	names := make([]string, 0, len(user.Badges))
	for _, b := range user.Badges {
		names = append(names, style.Badge(b))
	}
	fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Badges:"), strings.Join(names, ", "))
}

// authorize returns the signed-in user when their role allows action.
func authorize(ctx context.Context, rt *runtime, action rbac.Action) (store.User, error) {
	user, err := rt.accounts.RequireUser(ctx)
	if err != nil {
		return store.User{}, err
	}
	if !rbac.Can(rbac.Normalize(string(user.Role)), action) {
		return store.User{}, apperr.Forbidden(fmt.Sprintf("role %q may not %s", user.Role, action))
	}
	return user, nil
}
