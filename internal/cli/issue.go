package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/app"
	"ecocivic/api/internal/rbac"
	"ecocivic/api/internal/store"
	"ecocivic/api/internal/style"
)

func NewIssueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Report and track civic issues",
	}

	cmd.AddCommand(newIssueReportCommand(opts))
	cmd.AddCommand(newIssueListCommand(opts))
	cmd.AddCommand(newIssueShowCommand(opts))
	cmd.AddCommand(newIssueStatusCommand(opts))

	return cmd
}

func newIssueReportCommand(opts *RootOptions) *cobra.Command {
	var category, description, location, photo, photoFile string
	var emergency bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report a civic issue (+5 points)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				ref, err := photoReference(photo, photoFile)
				if err != nil {
					return err
				}
				issue, err := rt.service.ReportIssue(ctx, app.ReportIssueInput{
					Category:    store.IssueCategory(category),
					Description: description,
					Location:    location,
					PhotoURL:    ref,
					IsEmergency: emergency,
				})
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"issue": issue}, func(w io.Writer) {
					prefix := style.SuccessPrefix
					if issue.IsEmergency {
						prefix = style.WarningPrefix
					}
					fmt.Fprintf(w, "%s Reported %s %s\n", prefix, label(string(issue.Category)), style.Dim.Render(issue.ID))
					fmt.Fprintf(w, "  %s %s\n", style.ArrowPrefix, style.Points.Render("+5 points"))
				})
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", string(store.IssueOther), "fallenTree|openManhole|floodedRoad|garbageOverflow|other")
	cmd.Flags().StringVar(&description, "description", "", "what is wrong")
	cmd.Flags().StringVar(&location, "location", "", "where it is")
	cmd.Flags().StringVar(&photo, "photo", "", "photo URL")
	cmd.Flags().StringVar(&photoFile, "photo-file", "", "local photo to upload")
	cmd.Flags().BoolVar(&emergency, "emergency", false, "flag the issue as an emergency")

	return cmd
}

func newIssueListCommand(opts *RootOptions) *cobra.Command {
	var mine bool
	var reporter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if mine {
					user, err := rt.accounts.RequireUser(ctx)
					if err != nil {
						return err
					}
					reporter = user.ID
				}
				issues, err := rt.service.GetIssues(ctx, reporter)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"issues": issues}, func(w io.Writer) {
					if len(issues) == 0 {
						fmt.Fprintln(w, style.Dim.Render("No issues reported."))
						return
					}
					for _, issue := range issues {
						marker := " "
						if issue.IsEmergency {
							marker = style.WarningPrefix
						}
						fmt.Fprintf(w, "%s %s  %-16s %-9s %s\n", marker, style.Dim.Render(issue.ID),
							label(string(issue.Category)), issue.Status, issue.Location)
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "only issues reported by the signed-in user")
	cmd.Flags().StringVar(&reporter, "user", "", "only issues reported by this user id")

	return cmd
}

func newIssueShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <issue-id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				issue, err := rt.service.GetIssue(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"issue": issue}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", style.Bold.Render(label(string(issue.Category))), style.Dim.Render(issue.ID))
					if issue.IsEmergency {
						fmt.Fprintf(w, "  %s %s\n", style.WarningPrefix, style.Warning.Render("emergency"))
					}
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Status:"), issue.Status)
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Reporter:"), issue.Username)
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Location:"), issue.Location)
					fmt.Fprintf(w, "  %s %s\n", style.Dim.Render("Reported:"), issue.CreatedAt.Format(timeLayout))
					if issue.Description != "" {
						fmt.Fprintf(w, "\n%s\n", issue.Description)
					}
				})
			})
		},
	}
}

func newIssueStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <issue-id> <reported|inReview|resolved>",
		Short: "Change an issue's status (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if _, err := authorize(ctx, rt, rbac.ActionModerate); err != nil {
					return err
				}
				if err := rt.service.UpdateIssueStatus(ctx, args[0], store.IssueStatus(args[1])); err != nil {
					return err
				}
				issue, err := rt.service.GetIssue(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"issue": issue}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s is now %s\n", style.SuccessPrefix, style.Dim.Render(issue.ID), issue.Status)
				})
			})
		},
	}
}
