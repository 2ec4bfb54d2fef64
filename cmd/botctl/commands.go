package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"botic-pipeline/internal/models"
	"botic-pipeline/internal/pipeline/bot"
	"botic-pipeline/internal/pipeline/service"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// --- migrate ---

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			applied, err := p.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if applied == nil {
				applied = []int{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"applied": applied})
		},
	}
}

// --- run ---

func newRunCmd(open opener) *cobra.Command {
	var (
		dryRun      bool
		batchSize   int
		triggeredBy string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bot batch and print the job result",
		Long: `Run one bot batch and print the job result.

Examples:
  botctl run                       # default batch size
  botctl run --dry-run             # report what would advance, change nothing
  botctl run --batch-size 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if !cmd.Flags().Changed("batch-size") {
				batchSize = p.Config.Bot.DefaultBatchSize
			}
			res, err := p.Service.RunBot(cmd.Context(), bot.RunRequest{
				DryRun:      dryRun,
				BatchSize:   batchSize,
				TriggeredBy: triggeredBy,
			})
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if res.Status == models.BotJobFailed {
				return fmt.Errorf("bot job %d failed: %s", res.JobID, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate candidates without changing them")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "maximum applications to select (default: bot.default_batch_size)")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "botctl", "identity recorded on the job")
	return cmd
}

// --- job / jobs ---

func newJobCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one bot job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			job, err := p.Service.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func newJobsCmd(open opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent bot jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			jobs, err := p.Service.ListRecentJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of jobs to list (1-100)")
	return cmd
}

// --- unlock ---

func newUnlockCmd(open opener) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "unlock <application-id>",
		Short: "Clear a stuck application lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Service.ReleaseLock(cmd.Context(), id, actor); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"ok": true, "applicationId": id})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "botctl", "operator recorded in the log line")
	return cmd
}

// --- transition ---

func newTransitionCmd(open opener) *cobra.Command {
	var actor, role, comment string
	cmd := &cobra.Command{
		Use:   "transition <application-id> <status>",
		Short: "Move an application to a new status",
		Long: `Move an application to a new status under the application lock.

Examples:
  botctl transition 42 Reviewed --actor ops@botic.io
  botctl transition 42 Rejected --actor ops@botic.io --comment "withdrawn"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if actor == "" {
				return fmt.Errorf("--actor is required")
			}
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Service.SubmitTransition(cmd.Context(), service.TransitionCommand{
				ApplicationID: id,
				NewStatus:     args[1],
				Actor:         actor,
				ActorRole:     role,
				Comment:       comment,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"applicationId": res.ApplicationID,
				"oldStatus":     res.OldStatus,
				"newStatus":     res.NewStatus,
				"message":       fmt.Sprintf("Status updated from %s to %s", res.OldStatus, res.NewStatus),
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "email recorded on the activity log")
	cmd.Flags().StringVar(&role, "role", models.ActorRoleAdmin, "actor role (Admin or Bot)")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	return cmd
}

// --- history ---

func newHistoryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <application-id>",
		Short: "Show an application's activity log, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			logs, err := p.Service.ListActivityLog(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), logs)
		},
	}
}
