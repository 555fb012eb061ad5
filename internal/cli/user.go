package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/rbac"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/style"
)

func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts (admin only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if _, err := authorize(ctx, rt, rbac.ActionManageUsers); err != nil {
					return err
				}
				users, err := rt.accounts.ListUsers(ctx)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"users": users}, func(w io.Writer) {
					for _, u := range users {
						fmt.Fprintf(w, "%s  %-16s %-5s %s\n", style.Dim.Render(u.ID), u.Username, u.Role,
							style.Points.Render(fmt.Sprintf("%d pts", u.Points)))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "role <user-id> <user|admin>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if _, err := authorize(ctx, rt, rbac.ActionManageUsers); err != nil {
					return err
				}
				if err := rt.accounts.SetRole(ctx, args[0], store.Role(args[1])); err != nil {
					return err
				}
				user, err := rt.accounts.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"user": user}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s is now %s\n", style.SuccessPrefix, user.Username, user.Role)
				})
			})
		},
	})

	return cmd
}

func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all stored data and reseed the default challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return WrapExitError(ExitCommandError, "refusing to erase data", fmt.Errorf("pass --yes to confirm"))
			}
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if err := rt.store.ClearAll(ctx); err != nil {
					return err
				}
				if err := rt.service.Bootstrap(ctx); err != nil {
					return err
				}
				return out.Success(map[string]any{"ok": true}, func(w io.Writer) {
					fmt.Fprintf(w, "%s All data erased\n", style.WarningPrefix)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm erasing every record")

	return cmd
}
