package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autoingest/internal/api"
	"autoingest/internal/ipc"
	"autoingest/internal/queueaccess"
)

const logsPollInterval = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var itemID int64
	var levels []string
	var limit int
	var follow bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "logs <workflow-id>",
		Short: "Show workflow activity logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			req := ipc.LogsRequest{
				WorkflowID: workflowID,
				ItemID:     itemID,
				Levels:     levels,
				Limit:      limit,
			}
			return ctx.withQueueAccess(func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				next, err := printLogPage(cmd, access, req, asJSON, colorize)
				if err != nil || !follow {
					return err
				}

				base := cmd.Context()
				if base == nil {
					base = context.Background()
				}
				signalCtx, cancel := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
				defer cancel()
				ticker := time.NewTicker(logsPollInterval)
				defer ticker.Stop()
				for {
					select {
					case <-signalCtx.Done():
						return nil
					case <-ticker.C:
					}
					req.AfterID = next
					next, err = printLogPage(cmd, access, req, asJSON, colorize)
					if err != nil {
						return err
					}
				}
			})
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Limit to one queue item")
	cmd.Flags().StringSliceVarP(&levels, "level", "l", nil, "Filter by level (debug, info, success, warning, error)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum entries per page")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output entries as JSON lines")
	return cmd
}

// printLogPage prints one page of entries and returns the cursor for the next.
func printLogPage(cmd *cobra.Command, access queueaccess.Access, req ipc.LogsRequest, asJSON, colorize bool) (int64, error) {
	entries, next, err := access.Logs(cmd.Context(), req)
	if err != nil {
		return req.AfterID, err
	}
	out := cmd.OutOrStdout()
	for _, entry := range entries {
		if asJSON {
			if err := writeJSON(cmd, entry); err != nil {
				return next, err
			}
			continue
		}
		writeLogLine(out, entry, colorize)
	}
	return next, nil
}

func writeLogLine(w io.Writer, entry api.LogEntry, colorize bool) {
	level := fmt.Sprintf("%-7s", entry.Level)
	if colorize {
		if color := statusKindColor(logLevelKind(entry.Level)); color != "" {
			level = color + level + ansiReset
		}
	}
	line := fmt.Sprintf("%s %s %s", entry.CreatedAt, level, entry.Message)
	if entry.FilePath != "" {
		line += " (" + entry.FilePath + ")"
	}
	fmt.Fprintln(w, line)
}
