package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/app"
	"ecocivic/api/internal/apperr"
	"ecocivic/api/internal/rbac"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/style"
)

const timeLayout = "2006-01-02 15:04"

func NewTreeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Plant trees and record how they grow",
	}

	cmd.AddCommand(newTreeAddCommand(opts))
	cmd.AddCommand(newTreeListCommand(opts))
	cmd.AddCommand(newTreeShowCommand(opts))
	cmd.AddCommand(newTreeStatusCommand(opts))
	cmd.AddCommand(newTreeUpdateCommand(opts))
	cmd.AddCommand(newTreeUpdatesCommand(opts))

	return cmd
}

func newTreeAddCommand(opts *RootOptions) *cobra.Command {
	var treeType, location, photo, photoFile string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Plant a tree (+10 points)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				ref, err := photoReference(photo, photoFile)
				if err != nil {
					return err
				}
				tree, err := rt.service.AddTree(ctx, app.AddTreeInput{
					Type:     store.TreeType(treeType),
					Location: location,
					PhotoURL: ref,
				})
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"tree": tree}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Planted a %s tree %s\n", style.SuccessPrefix, tree.Type, style.Dim.Render(tree.ID))
					fmt.Fprintf(w, "  %s %s\n", style.ArrowPrefix, style.Points.Render("+10 points"))
				})
			})
		},
	}

	cmd.Flags().StringVar(&treeType, "type", string(store.TreeOther), "tree species (mango|neem|banyan|peepal|teak|bamboo|coconut|other)")
	cmd.Flags().StringVar(&location, "location", "", "where the tree was planted")
	cmd.Flags().StringVar(&photo, "photo", "", "photo URL")
	cmd.Flags().StringVar(&photoFile, "photo-file", "", "local photo to upload")

	return cmd
}

func newTreeListCommand(opts *RootOptions) *cobra.Command {
	var mine bool
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if mine {
					user, err := rt.accounts.RequireUser(ctx)
					if err != nil {
						return err
					}
					owner = user.ID
				}
				trees, err := rt.service.GetTrees(ctx, owner)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"trees": trees}, func(w io.Writer) {
					if len(trees) == 0 {
						fmt.Fprintln(w, style.Dim.Render("No trees yet."))
						return
					}
					for _, tree := range trees {
						fmt.Fprintf(w, "%s  %-8s %-8s %s %s\n",
							style.Dim.Render(tree.ID), tree.Type, treeStatus(tree.Status),
							tree.Location, style.Dim.Render("by "+tree.Username))
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "only trees planted by the signed-in user")
	cmd.Flags().StringVar(&owner, "user", "", "only trees planted by this user id")

	return cmd
}

func newTreeShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <tree-id>",
		Short: "Show a tree and its update log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				tree, err := rt.service.GetTree(ctx, args[0])
				if err != nil {
					return err
				}
				updates, err := rt.service.GetTreeUpdates(ctx, tree.ID)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"tree": tree, "updates": updates}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s %s\n", style.Bold.Render(label(string(tree.Type))), style.Dim.Render(tree.ID), treeStatus(tree.Status))
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Owner:"), tree.Username)
					if tree.Location != "" {
						fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Location:"), tree.Location)
					}
					if tree.PhotoURL != "" {
						fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Photo:"), tree.PhotoURL)
					}
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Planted:"), tree.PlantedDate.Format(timeLayout))
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Updated:"), tree.LastUpdateDate.Format(timeLayout))
					renderUpdates(w, updates)
				})
			})
		},
	}
}

func newTreeStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <tree-id> <planted|growing|healthy>",
		Short: "Move a tree to a later growth stage",
		Long: `Move a tree to a later growth stage.

Only the tree's owner or an admin may change it, and a tree never moves back
to an earlier stage.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				user, err := authorize(ctx, rt, rbac.ActionContribute)
				if err != nil {
					return err
				}
				tree, err := rt.service.GetTree(ctx, args[0])
				if err != nil {
					return err
				}
				if tree.UserID != user.ID && !rbac.Can(rbac.Normalize(string(user.Role)), rbac.ActionModerate) {
					return apperr.Forbidden("only the owner can change this tree")
				}
				if err := rt.service.UpdateTreeStatus(ctx, tree.ID, store.TreeStatus(args[1])); err != nil {
					return err
				}
				tree, err = rt.service.GetTree(ctx, tree.ID)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"tree": tree}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s is now %s\n", style.SuccessPrefix, style.Dim.Render(tree.ID), treeStatus(tree.Status))
				})
			})
		},
	}
}

func newTreeUpdateCommand(opts *RootOptions) *cobra.Command {
	var notes, photo, photoFile string

	cmd := &cobra.Command{
		Use:   "update <tree-id>",
		Short: "Log a growth update for one of your trees (+5 points)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				ref, err := photoReference(photo, photoFile)
				if err != nil {
					return err
				}
				update, err := rt.service.AddTreeUpdate(ctx, app.AddTreeUpdateInput{
					TreeID:   args[0],
					PhotoURL: ref,
					Notes:    notes,
				})
				if err != nil {
					return err
				}
				tree, err := rt.service.GetTree(ctx, update.TreeID)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"update": update, "tree": tree}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Logged update %s\n", style.SuccessPrefix, style.Dim.Render(update.ID))
					fmt.Fprintf(w, "  %s tree is %s\n", style.ArrowPrefix, treeStatus(tree.Status))
				})
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "what changed since the last update")
	cmd.Flags().StringVar(&photo, "photo", "", "photo URL")
	cmd.Flags().StringVar(&photoFile, "photo-file", "", "local photo to upload")

	return cmd
}

func newTreeUpdatesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "updates <tree-id>",
		Short: "List a tree's updates, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				updates, err := rt.service.GetTreeUpdates(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"updates": updates}, func(w io.Writer) {
					renderUpdates(w, updates)
				})
			})
		},
	}
}

func renderUpdates(w io.Writer, updates []store.TreeUpdate) {
	if len(updates) == 0 {
		fmt.Fprintln(w, style.Dim.Render("No updates yet."))
		return
	}
	for _, update := range updates {
		fmt.Fprintf(w, "%s %s %s\n", style.Dim.Render(update.CreatedAt.Format(timeLayout)), update.ID, update.Notes)
	}
}

func treeStatus(status store.TreeStatus) string {
	switch status {
	case store.TreeHealthy:
		return style.Success.Render(string(status))
	case store.TreeGrowing:
		return style.Info.Render(string(status))
	}
	return string(status)
}
