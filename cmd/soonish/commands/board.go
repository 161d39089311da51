package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/planner"
)

// boardRedrawDelay collects bursts of changes into one redraw
const boardRedrawDelay = 500 * time.Millisecond

func newBoardCmd(debug *bool) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the ranked board of active plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				if err := printBoard(ctx, out, s); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				changes, err := s.plans.Watch(ctx)
				if err != nil {
					return err
				}
				return followBoard(ctx, out, s, changes)
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Redraw whenever a plan changes")
	return cmd
}

func printBoard(ctx context.Context, out io.Writer, s *session) error {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderBoard(planner.BuildBoard(plans, s.cfg.Now())))
	return nil
}

func followBoard(ctx context.Context, out io.Writer, s *session, changes <-chan database.PlanChange) error {
	var redraw <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if redraw == nil {
				redraw = time.After(boardRedrawDelay)
			}
		case <-redraw:
			redraw = nil
			fmt.Fprintln(out)
			if err := printBoard(ctx, out, s); err != nil {
				return err
			}
		}
	}
}
