package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/cache"
	"github.com/benvon/soonish/internal/queue"
)

const checkTimeout = 10 * time.Second

func newCheckCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the database, Redis and RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				ctx, cancel := context.WithTimeout(ctx, checkTimeout)
				defer cancel()

				out := cmd.OutOrStdout()
				failed := 0
				report := func(name string, err error) {
					switch {
					case err == nil:
						fmt.Fprintf(out, "%-10s %s\n", name, doneStyle.UnsetStrikethrough().Render("ok"))
					default:
						failed++
						fmt.Fprintf(out, "%-10s %s\n", name, warnStyle.Render(err.Error()))
					}
				}

				report("database", s.db.HealthCheck(ctx))

				if s.cfg.RedisURL == "" {
					fmt.Fprintf(out, "%-10s %s\n", "redis", subtleStyle.Render("not configured"))
				} else {
					client, err := cache.NewRedisClient(s.cfg.RedisURL)
					if err == nil {
						_ = client.Close()
					}
					report("redis", err)
				}

				if s.cfg.RabbitMQURL == "" {
					fmt.Fprintf(out, "%-10s %s\n", "rabbitmq", subtleStyle.Render("not configured"))
				} else {
					q, err := queue.NewRabbitMQQueue(s.cfg.RabbitMQURL, s.log)
					if err == nil {
						err = q.HealthCheck(ctx)
						_ = q.Close()
					}
					report("rabbitmq", err)
				}

				if failed > 0 {
					return fmt.Errorf("%d check(s) failed", failed)
				}
				return nil
			})
		},
	}
}
