// Package commands implements the soonish command line: plan management,
// the board, conversations and operator tasks.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/config"
	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/logger"
)

// NewRootCmd builds the soonish command tree
func NewRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "soonish",
		Short:         "Someday/maybe planner",
		Long:          "Manage plans with coarse time intentions, view the board and talk plans into existence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")

	root.AddCommand(newMigrateCmd(&debug))
	root.AddCommand(newPlansCmd(&debug))
	root.AddCommand(newBoardCmd(&debug))
	root.AddCommand(newChatCmd(&debug))
	root.AddCommand(newTokenCmd())
	root.AddCommand(newConfigCmd(&debug))
	root.AddCommand(newCheckCmd(&debug))
	return root
}

// session holds what most commands need: configuration, a logger and an
// open database
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *database.DB
	plans  *database.PlanRepository
	closer func()
}

func openSession(debug bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewDevelopmentLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &session{
		cfg:   cfg,
		log:   log,
		db:    db,
		plans: database.NewPlanRepository(db, log),
		closer: func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			_ = logger.Sync(log)
		},
	}, nil
}

func (s *session) Close() {
	s.closer()
}

// withSession opens a session for the duration of fn
func withSession(cmd *cobra.Command, debug bool, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(debug)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
