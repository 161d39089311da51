package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/database"
)

func newMigrateCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(use, short string, args cobra.PositionalArgs, fn func(m *database.Migrator, args []string) (bool, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
					m, err := database.NewMigrator(s.db)
					if err != nil {
						return err
					}
					changed, err := fn(m, args)
					if err != nil {
						return err
					}
					if !changed {
						fmt.Fprintln(cmd.OutOrStdout(), "No change.")
					}
					return printVersion(cmd, m)
				})
			},
		}
	}

	cmd.AddCommand(
		run("up", "Apply all pending migrations", cobra.NoArgs, func(m *database.Migrator, _ []string) (bool, error) {
			return m.Up()
		}),
		run("down", "Roll back every migration", cobra.NoArgs, func(m *database.Migrator, _ []string) (bool, error) {
			return m.Down()
		}),
		run("steps N", "Apply N migrations, or roll back with a negative N", cobra.ExactArgs(1), func(m *database.Migrator, args []string) (bool, error) {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return false, fmt.Errorf("invalid step count %q: %w", args[0], err)
			}
			return m.Steps(n)
		}),
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
					m, err := database.NewMigrator(s.db)
					if err != nil {
						return err
					}
					return printVersion(cmd, m)
				})
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, m *database.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	state := ""
	if dirty {
		state = warnStyle.Render(" (dirty)")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d%s\n", version, state)
	return nil
}
