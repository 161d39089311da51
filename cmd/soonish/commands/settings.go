package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/models"
)

func newConfigCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage server settings stored in the database",
		Long:  "Running servers pick up changes within a minute.",
	}
	cmd.AddCommand(newCorsCmd(debug), newRateLimitCmd(debug))
	return cmd
}

func newCorsCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the stored CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				c, err := database.NewSettingsRepository(s.db).GetCORS(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c == nil {
					fmt.Fprintf(out, "No CORS configuration stored; FRONTEND_URL (%s) is used.\n", s.cfg.FrontendURL)
					return nil
				}
				fmt.Fprintln(out, headingStyle.Render("CORS configuration"))
				fmt.Fprintf(out, "  Allowed origins:   %s\n", strings.Join(c.AllowedOrigins, ", "))
				fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
				fmt.Fprintf(out, "  Max-Age:           %d\n", c.MaxAge)
				return nil
			})
		},
	})

	var (
		origins    string
		allowCreds bool
		maxAge     int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			allowed := database.AllowedOriginsSlice(origins)
			if len(allowed) == 0 {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				err := database.NewSettingsRepository(s.db).SetCORS(ctx, &models.CorsSettings{
					AllowedOrigins:   allowed,
					AllowCredentials: allowCreds,
					MaxAge:           maxAge,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
				return nil
			})
		},
	}
	set.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	set.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	set.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	cmd.AddCommand(set)
	return cmd
}

func newRateLimitCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the conversation rate limit",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the stored chat rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				rl, err := database.NewSettingsRepository(s.db).GetChatRateLimit(ctx)
				if err != nil {
					return err
				}
				if rl == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No rate limit stored; CHAT_RATE_LIMIT (%s) is used.\n", s.cfg.ChatRateLimit)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chat rate limit: %s (updated %s)\n", rl.Rate, rl.UpdatedAt.Format("2006-01-02 15:04"))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "set RATE",
		Short:   "Set the chat rate limit",
		Example: "  soonish config ratelimit set 10-M",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				if err := database.NewSettingsRepository(s.db).SetChatRateLimit(ctx, &models.ChatRateLimitSettings{Rate: args[0]}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Chat rate limit updated.")
				return nil
			})
		},
	})
	return cmd
}
