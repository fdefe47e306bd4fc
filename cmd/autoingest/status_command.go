package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autoingest/internal/ipc"
	"autoingest/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, workflow, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			client, err := ctx.dialClient()
			if err != nil {
				for _, line := range renderSectionHeader("System Status", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
				fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))
				if !skipChecks {
					printDependencies(cmd, ctx, colorize)
				}
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			for _, line := range renderStatus(status, colorize) {
				fmt.Fprintln(out, line)
			}
			if !skipChecks {
				printDependencies(cmd, ctx, colorize)
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(out, line)
			}
			writeTable(out, []string{"Status", "Count"}, buildQueueStatusRows(status.QueueStats), []columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip dependency checks")
	return cmd
}

func printDependencies(cmd *cobra.Command, ctx *commandContext, colorize bool) {
	cfg := ctx.configValue()
	if cfg == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, line := range dependencyLines(preflight.RunAll(cmd.Context(), cfg, nil), colorize) {
		fmt.Fprintln(out, line)
	}
}

func dependencyLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Dependencies", colorize)
	for _, r := range results {
		kind := statusOK
		switch {
		case !r.Passed && r.Optional:
			kind = statusWarn
		case !r.Passed:
			kind = statusError
		case r.Optional:
			kind = statusInfo
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d failing: %s", len(failed), strings.Join(failed, ", ")), colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusOK, "All dependencies ready", colorize))
	}
	return lines
}

func renderStatus(status *ipc.StatusResponse, colorize bool) []string {
	lines := renderSectionHeader("System Status", colorize)
	daemonKind, daemonDetail := statusError, "Not running"
	if status.Running {
		daemonKind, daemonDetail = statusOK, fmt.Sprintf("Running (pid %d)", status.PID)
	}
	capKind := statusInfo
	if status.MaxConcurrent > 0 && status.ActiveWorkflows >= status.MaxConcurrent {
		capKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Daemon", daemonKind, daemonDetail, colorize),
		renderStatusLine("Active workflows", capKind, fmt.Sprintf("%d of %d", status.ActiveWorkflows, status.MaxConcurrent), colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Socket", statusInfo, status.SocketPath, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Workflows", colorize)...)
	if len(status.Workflows) == 0 {
		lines = append(lines, statusIndent+"No workflows configured")
		return lines
	}
	for _, wf := range status.Workflows {
		detail := wf.Status
		if wf.ErrorMessage != "" {
			detail += ": " + wf.ErrorMessage
		}
		label := "#" + strconv.FormatInt(wf.ID, 10) + " " + wf.Name
		lines = append(lines, renderStatusLine(label, workflowStatusKind(wf.Status), detail, colorize))
	}
	return lines
}
