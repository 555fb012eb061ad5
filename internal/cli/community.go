package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/style"
)

func NewChallengeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Browse and join community challenges",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				challenges, err := rt.service.GetChallenges(ctx)
				if err != nil {
					return err
				}
				current := rt.sessions.Current()
				return out.Success(map[string]any{"challenges": challenges}, func(w io.Writer) {
					for _, c := range challenges {
						state := style.Dim.Render("closed")
						if c.IsActive {
							state = style.Success.Render("active")
						}
						joined := ""
						if current != nil && c.HasParticipant(current.ID) {
							joined = style.SuccessPrefix + " joined"
						}
						fmt.Fprintf(w, "%s %s %s %s %s\n", style.Dim.Render(c.ID), style.Bold.Render(c.Title),
							style.Points.Render(fmt.Sprintf("%d pts", c.Points)), state, joined)
						fmt.Fprintf(w, "  %s\n", c.Description)
						fmt.Fprintf(w, "  %s %s to %s, %d participant(s)\n", style.Dim.Render("Runs"),
							c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"), len(c.Participants))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "join <challenge-id>",
		Short: "Join a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				if err := rt.service.JoinChallenge(ctx, args[0]); err != nil {
					return err
				}
				return out.Success(map[string]any{"ok": true}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Joined %s\n", style.SuccessPrefix, args[0])
				})
			})
		},
	})

	return cmd
}

func NewLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				entries, err := rt.service.GetLeaderboard(ctx)
				if err != nil {
					return err
				}
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
				return out.Success(map[string]any{"leaderboard": entries}, func(w io.Writer) {
					fmt.Fprintln(w, style.Header.Render("Leaderboard"))
					for _, e := range entries {
						fmt.Fprintf(w, "%-4s %-16s %s  %s\n", style.Rank(e.Rank), e.Username,
							style.Points.Render(fmt.Sprintf("%5d", e.Points)),
							style.Dim.Render(fmt.Sprintf("%d trees, %d issues", e.TreesPlanted, e.IssuesReported)))
					}
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the top n entries")

	return cmd
}

func NewBadgesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "List the badges you can earn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime, out *OutputFormatter) error {
				current := rt.sessions.Current()
				catalog := make([]map[string]any, 0, len(badge.All()))
				for _, b := range badge.All() {
					info := b.Info()
					entry := map[string]any{"id": b, "icon": info.Icon, "name": info.Name}
					if current != nil {
						entry["earned"] = current.HasBadge(b)
					}
					catalog = append(catalog, entry)
				}
				return out.Success(map[string]any{"badges": catalog}, func(w io.Writer) {
					for _, b := range badge.All() {
						mark := style.Dim.Render("·")
						if current != nil && current.HasBadge(b) {
							mark = style.SuccessPrefix
						}
						fmt.Fprintf(w, "%s %s %s\n", mark, style.Badge(b), style.Dim.Render(string(b)))
					}
				})
			})
		},
	}
}
