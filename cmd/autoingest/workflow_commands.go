package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autoingest/internal/config"
	"autoingest/internal/ipc"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage folder-watch workflows",
	}

	workflowCmd.AddCommand(newWorkflowAddCommand(ctx))
	workflowCmd.AddCommand(newWorkflowListCommand(ctx))
	workflowCmd.AddCommand(newWorkflowShowCommand(ctx))
	workflowCmd.AddCommand(newWorkflowStartCommand(ctx))
	workflowCmd.AddCommand(newWorkflowStopCommand(ctx))
	workflowCmd.AddCommand(newWorkflowRemoveCommand(ctx))

	return workflowCmd
}

func newWorkflowAddCommand(ctx *commandContext) *cobra.Command {
	var userID int64
	var interval int

	cmd := &cobra.Command{
		Use:   "add <name> <source-dir>",
		Short: "Register a workflow watching a source directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(args[1])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowAdd(ipc.WorkflowAddRequest{
					Name:            args[0],
					UserID:          userID,
					SourcePath:      source,
					IntervalSeconds: interval,
				})
				if err != nil {
					return err
				}
				wf := resp.Workflow
				fmt.Fprintf(cmd.OutOrStdout(), "Created workflow %d (%s) watching %s every %ds\n",
					wf.ID, wf.Name, wf.SourcePath, wf.IntervalSeconds)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 1, "Owner user id")
	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "Scan interval in seconds (0 uses the configured default)")
	return cmd
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Workflows)
				}
				if len(resp.Workflows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workflows configured")
					return nil
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Name", "Status", "Active", "Interval", "Success", "Failed", "Last Scan", "Source"},
					buildWorkflowRows(resp.Workflows),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildWorkflowRows(workflows []ipc.Workflow) [][]string {
	rows := make([][]string, 0, len(workflows))
	for _, wf := range workflows {
		rows = append(rows, []string{
			strconv.FormatInt(wf.ID, 10),
			wf.Name,
			wf.Status,
			yesNo(wf.Active),
			fmt.Sprintf("%ds", wf.IntervalSeconds),
			strconv.FormatInt(wf.SuccessCount, 10),
			strconv.FormatInt(wf.FailureCount, 10),
			fallback(wf.LastScanAt, "never"),
			wf.SourcePath,
		})
	}
	return rows
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowShow(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Workflow)
				}
				stats, err := client.QueueStats(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderWorkflowDetail(resp.Workflow, stats.Counts, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderWorkflowDetail(wf ipc.Workflow, counts map[string]int, colorize bool) []string {
	lines := renderSectionHeader(fmt.Sprintf("Workflow %d: %s", wf.ID, wf.Name), colorize)
	status := wf.Status
	if wf.ErrorMessage != "" {
		status = fmt.Sprintf("%s (%s)", status, wf.ErrorMessage)
	}
	lines = append(lines,
		renderStatusLine("Status", workflowStatusKind(wf.Status), status, colorize),
		renderStatusLine("Active loop", statusInfo, activeDetail(wf), colorize),
		renderStatusLine("Source", statusInfo, wf.SourcePath, colorize),
		renderStatusLine("Owner", statusInfo, strconv.FormatInt(wf.UserID, 10), colorize),
		renderStatusLine("Interval", statusInfo, fmt.Sprintf("%ds", wf.IntervalSeconds), colorize),
		renderStatusLine("Last scan", statusInfo, fallback(wf.LastScanAt, "never"), colorize),
		renderStatusLine("Processed", statusInfo, fmt.Sprintf("%d ok, %d failed", wf.SuccessCount, wf.FailureCount), colorize),
	)
	for _, row := range buildQueueStatusRows(counts) {
		lines = append(lines, renderStatusLine("Queue "+row[0], statusInfo, row[1], colorize))
	}
	return lines
}

func activeDetail(wf ipc.Workflow) string {
	if !wf.Active {
		return "no"
	}
	if wf.StartedAt == "" {
		return "yes"
	}
	return "yes, since " + wf.StartedAt
}

func newWorkflowStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start the scan loop for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowStart(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %d: %s\n", id, resp.Message)
				return nil
			})
		},
	}
}

func newWorkflowStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop the scan loop for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowStop(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %d: %s\n", id, resp.Message)
				return nil
			})
		},
	}
}

func newWorkflowRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stopped workflow with its queue and logs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowRemove(id)
				if err != nil {
					return err
				}
				if !resp.Changed {
					return fmt.Errorf("%s", resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %d removed\n", id)
				return nil
			})
		},
	}
}

func parseID(value, kind string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, value)
	}
	return id, nil
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
