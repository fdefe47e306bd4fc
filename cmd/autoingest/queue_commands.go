package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"autoingest/internal/api"
	"autoingest/internal/queue"
	"autoingest/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), workflowID, statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Workflow", "File", "Status", "Retries", "Document", "Updated"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.OriginalFileName
		if name == "" {
			name = filepath.Base(item.FilePath)
		}
		document := "-"
		if item.DocumentID > 0 {
			document = strconv.FormatInt(item.DocumentID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.WorkflowID, 10),
			name,
			item.Status,
			fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
			document,
			item.UpdatedAt,
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "queue item")
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, item)
			})
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				counts, err := access.Stats(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"Status", "Count"},
					buildQueueStatusRows(counts),
					[]columnAlignment{alignLeft, alignRight},
				)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	return cmd
}

// buildQueueStatusRows lists every status in lifecycle order, including zeros.
func buildQueueStatusRows(counts map[string]int) [][]string {
	statuses := queue.AllStatuses()
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{string(status), strconv.Itoa(counts[string(status)])})
	}
	return rows
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				health, err := access.Health(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				db, err := access.DatabaseHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if access.Direct() {
					fmt.Fprintln(out, "Daemon not running; reading the database directly")
				}
				for _, line := range renderQueueHealth(health, db, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	return cmd
}

func renderQueueHealth(health api.QueueHealth, db queue.DatabaseHealth, colorize bool) []string {
	lines := renderSectionHeader("Queue", colorize)
	lines = append(lines,
		renderStatusLine("Total", statusInfo, strconv.Itoa(health.Total), colorize),
		renderStatusLine("Pending", statusInfo, strconv.Itoa(health.Pending), colorize),
		renderStatusLine("Processing", processingKind(health.Processing), strconv.Itoa(health.Processing), colorize),
		renderStatusLine("Completed", statusOK, strconv.Itoa(health.Completed), colorize),
		renderStatusLine("Failed", failedKind(health.Failed), strconv.Itoa(health.Failed), colorize),
	)
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Database", colorize)...)
	lines = append(lines,
		renderStatusLine("Path", statusInfo, db.DBPath, colorize),
		renderStatusLine("Exists", boolKind(db.DatabaseExists), yesNo(db.DatabaseExists), colorize),
		renderStatusLine("Readable", boolKind(db.DatabaseReadable), yesNo(db.DatabaseReadable), colorize),
		renderStatusLine("Integrity", boolKind(db.IntegrityCheck), yesNo(db.IntegrityCheck), colorize),
		renderStatusLine("Workflows", statusInfo, strconv.Itoa(db.Workflows), colorize),
		renderStatusLine("Items", statusInfo, strconv.Itoa(db.TotalItems), colorize),
	)
	if db.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, db.Error, colorize))
	}
	return lines
}

func processingKind(n int) statusKind {
	if n > 0 {
		return statusWarn
	}
	return statusInfo
}

func failedKind(n int) statusKind {
	if n > 0 {
		return statusError
	}
	return statusOK
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64

	cmd := &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return items stuck in processing to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				updated, err := access.ResetStuck(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items to pending\n", updated)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64

	cmd := &cobra.Command{
		Use:   "retry [item-id...]",
		Short: "Retry failed items (all failed items when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "queue item")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				updated, err := access.Retry(cmd.Context(), workflowID, ids)
				if err != nil {
					return err
				}
				if updated == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed items to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d items\n", updated)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64
	var statuses []string
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(statuses) > 0) {
				return errors.New("specify exactly one of --status or --all")
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				removed, err := access.Clear(cmd.Context(), workflowID, statuses)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Limit to one workflow")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Statuses to remove (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Remove items in every status")
	return cmd
}
