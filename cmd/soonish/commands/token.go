package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/config"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/services/token"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(), newTokenVerifyCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := tokenService()
			if err != nil {
				return err
			}
			tok, err := svc.Issue(subject, models.TokenScope(scope), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is for (required)")
	cmd.Flags().StringVar(&scope, "scope", string(models.TokenScopeFull), "Token scope: full or read")
	cmd.Flags().DurationVar(&ttl, "ttl", token.DefaultTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := tokenService()
			if err != nil {
				return err
			}
			claims, err := svc.Verify(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "subject:    %s\n", claims.Subject)
			fmt.Fprintf(out, "scope:      %s\n", claims.Scope)
			fmt.Fprintf(out, "issued at:  %s\n", claims.IssuedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "expires at: %s\n", claims.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

// tokenService needs only the signing secret, not a database
func tokenService() (*token.Service, error) {
	cfg, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.AuthEnabled() {
		return nil, fmt.Errorf("API_TOKEN_SECRET is not set")
	}
	return token.NewService(cfg.APITokenSecret)
}
