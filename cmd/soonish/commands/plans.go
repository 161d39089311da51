package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

var errAmbiguousID = errors.New("plan id prefix matches more than one plan")

func newPlansCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plans",
		Aliases: []string{"plan", "p"},
		Short:   "Manage plans",
	}
	cmd.AddCommand(
		newPlansAddCmd(debug),
		newPlansListCmd(debug),
		newPlansGetCmd(debug),
		newPlansRenameCmd(debug),
		newPlansMemoCmd(debug),
		newPlansModeCmd(debug),
		newPlansMutationCmd(debug, "complete", "Toggle completion", "plan_completion_toggled", func(p *models.Plan, now time.Time) error {
			p.ToggleCompleted(now)
			return nil
		}),
		newPlansMutationCmd(debug, "archive", "Toggle archival", "plan_archive_toggled", func(p *models.Plan, now time.Time) error {
			p.ToggleArchived(now)
			return nil
		}),
		newPlansMutationCmd(debug, "rederive", "Recompute period dates against today", "plan_rederived", func(p *models.Plan, now time.Time) error {
			return p.Rederive(now)
		}),
		newPlansDeleteCmd(debug),
		newPlansExportCmd(debug),
	)
	return cmd
}

// timeModeFlags are shared by add and mode
type timeModeFlags struct {
	mode   string
	preset string
	date   string
}

func (f *timeModeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", string(models.TimeModeAnytime), "Time mode: anytime, period or deadline")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Period preset (thisWeek, thisMonth, nextMonth, thisYear, nextYear, spring, summer, autumn, winter) or deadline preset (oneMonth, threeMonths, sixMonths, oneYear, custom)")
	cmd.Flags().StringVar(&f.date, "date", "", "Custom deadline as YYYY-MM-DD")
}

func (f *timeModeFlags) toMode(loc *time.Location) (models.TimeMode, error) {
	var custom *time.Time
	if f.date != "" {
		d, err := time.ParseInLocation(time.DateOnly, f.date, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q: %w", f.date, err)
		}
		custom = &d
	}
	return models.ParseTimeMode(f.mode, f.preset, custom)
}

func newPlansAddCmd(debug *bool) *cobra.Command {
	var (
		modeFlags timeModeFlags
		memo      string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				mode, err := modeFlags.toMode(s.cfg.Location)
				if err != nil {
					return err
				}
				var memoPtr *string
				if cmd.Flags().Changed("memo") {
					memoPtr = &memo
				}
				now := s.cfg.Now()
				plan, err := models.NewPlan(strings.Join(args, " "), mode, memoPtr, now)
				if err != nil {
					return err
				}
				if err := s.plans.Insert(ctx, plan); err != nil {
					return fmt.Errorf("failed to save plan: %w", err)
				}
				s.log.Debug("plan_created", zap.String("plan_id", plan.ID.String()))
				fmt.Fprintln(cmd.OutOrStdout(), renderPlanLine(plan, now))
				return nil
			})
		},
	}
	modeFlags.register(cmd)
	cmd.Flags().StringVar(&memo, "memo", "", "Free-text memo")
	return cmd
}

func newPlansListCmd(debug *bool) *cobra.Command {
	var (
		all    bool
		bucket string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				var (
					plans []*models.Plan
					err   error
				)
				if all {
					plans, err = s.plans.ListAll(ctx)
				} else {
					plans, err = s.plans.ListActive(ctx)
				}
				if err != nil {
					return err
				}

				now := s.cfg.Now()
				if bucket != "" {
					b, ok := planner.ParseBucket(bucket)
					if !ok {
						return fmt.Errorf("unknown bucket %q", bucket)
					}
					plans = planner.SortByDefault(planner.Filter(plans, b, now), now)
				}
				out := cmd.OutOrStdout()
				if len(plans) == 0 {
					fmt.Fprintln(out, subtleStyle.Render("No plans"))
					return nil
				}
				for _, p := range plans {
					fmt.Fprintln(out, renderPlanLine(p, now))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include completed and archived plans")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Only plans in this bucket (thisMonth, nextMonth, thisYear, nextYearOnwards)")
	return cmd
}

func newPlansGetCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				plan, err := resolvePlan(ctx, s, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPlanDetail(plan, s.cfg.Now()))
				return nil
			})
		},
	}
}

func newPlansRenameCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE",
		Short: "Rename a plan",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			return mutatePlan(cmd, *debug, args[0], "plan_renamed", func(p *models.Plan, now time.Time) error {
				return p.Rename(title, now)
			})
		},
	}
}

func newPlansMemoCmd(debug *bool) *cobra.Command {
	var clearMemo bool
	cmd := &cobra.Command{
		Use:   "memo ID [TEXT]",
		Short: "Set or clear a plan memo",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var memo *string
			switch {
			case clearMemo:
			case len(args) == 2:
				memo = &args[1]
			default:
				return errors.New("provide the memo text or --clear")
			}
			return mutatePlan(cmd, *debug, args[0], "plan_memo_set", func(p *models.Plan, now time.Time) error {
				p.SetMemo(memo, now)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearMemo, "clear", false, "Remove the memo")
	return cmd
}

func newPlansModeCmd(debug *bool) *cobra.Command {
	var modeFlags timeModeFlags
	cmd := &cobra.Command{
		Use:   "mode ID",
		Short: "Change the time mode of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mode, err := modeFlags.toMode(cfg.Location)
			if err != nil {
				return err
			}
			return mutatePlan(cmd, *debug, args[0], "plan_time_mode_set", func(p *models.Plan, now time.Time) error {
				return p.SetTimeMode(mode, now)
			})
		},
	}
	modeFlags.register(cmd)
	return cmd
}

func newPlansMutationCmd(debug *bool, use, short, event string, fn func(*models.Plan, time.Time) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutatePlan(cmd, *debug, args[0], event, fn)
		},
	}
}

func newPlansDeleteCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a plan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				plan, err := resolvePlan(ctx, s, args[0])
				if err != nil {
					return err
				}
				if err := s.plans.Delete(ctx, plan.ID); err != nil {
					return err
				}
				s.log.Debug("plan_deleted", zap.String("plan_id", plan.ID.String()))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", plan.Title, shortID(plan))
				return nil
			})
		},
	}
}

func newPlansExportCmd(debug *bool) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all plans as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				plans, err := s.plans.ListAll(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", output, err)
					}
					defer func() { _ = f.Close() }()
					out = f
				}
				return exportPlans(out, plans, format)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}

// exportPlans writes the persisted form of plans
func exportPlans(w io.Writer, plans []*models.Plan, format string) error {
	records := make([]models.PlanRecord, 0, len(plans))
	for _, p := range plans {
		records = append(records, p.Record())
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}

func mutatePlan(cmd *cobra.Command, debug bool, idArg, event string, fn func(*models.Plan, time.Time) error) error {
	return withSession(cmd, debug, func(ctx context.Context, s *session) error {
		target, err := resolvePlan(ctx, s, idArg)
		if err != nil {
			return err
		}
		now := s.cfg.Now()
		plan, err := s.plans.Update(ctx, target.ID, func(p *models.Plan) error {
			return fn(p, now)
		})
		if err != nil {
			return err
		}
		s.log.Debug(event, zap.String("plan_id", plan.ID.String()))
		fmt.Fprintln(cmd.OutOrStdout(), renderPlanLine(plan, now))
		return nil
	})
}

// resolvePlan accepts a full plan id or an unambiguous prefix of one
func resolvePlan(ctx context.Context, s *session, arg string) (*models.Plan, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return s.plans.GetByID(ctx, id)
	}
	plans, err := s.plans.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return matchPrefix(plans, arg)
}

func matchPrefix(plans []*models.Plan, prefix string) (*models.Plan, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, errors.New("plan id is required")
	}
	var found *models.Plan
	for _, p := range plans {
		if strings.HasPrefix(p.ID.String(), prefix) {
			if found != nil {
				return nil, fmt.Errorf("%w: %s", errAmbiguousID, prefix)
			}
			found = p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no plan with id %s", prefix)
	}
	return found, nil
}
