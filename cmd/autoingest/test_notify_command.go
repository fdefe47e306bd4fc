package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"autoingest/internal/ipc"
)

const ntfyTopicHint = "set notifications.ntfy_topic in config.toml or AUTOINGEST_NTFY_TOPIC in the env file, then restart the daemon"

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test ntfy notification through the daemon",
		Long: "Send a test ntfy notification through the daemon.\n\n" +
			"Workflow halt and fault alerts use the same topic, so a successful test\n" +
			"means operators will hear about workflows that stop on their own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if resp == nil && err == nil {
					return errors.New("daemon returned no notification result")
				}
				fmt.Fprint(cmd.OutOrStdout(), renderNotifyResult(resp, err, shouldColorize(cmd.OutOrStdout())))
				if err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				return nil
			})
		},
	}
}

// renderNotifyResult formats the daemon's answer. An unconfigured topic is a
// warning with a fix, not a failure.
func renderNotifyResult(resp *ipc.TestNotificationResponse, err error, colorize bool) string {
	var b strings.Builder
	switch {
	case err != nil:
		detail := "failed to send notification"
		if resp != nil && resp.Message != "" {
			detail = resp.Message
		}
		b.WriteString(renderStatusLine("ntfy", statusError, detail, colorize) + "\n")
		b.WriteString("  Check the ntfy server and topic URL; the daemon log has the response.\n")
	case resp.Sent:
		b.WriteString(renderStatusLine("ntfy", statusOK, "Test notification sent", colorize) + "\n")
	default:
		detail := resp.Message
		if detail == "" {
			detail = "notification not sent"
		}
		b.WriteString(renderStatusLine("ntfy", statusWarn, detail, colorize) + "\n")
		b.WriteString("  Hint: " + ntfyTopicHint + "\n")
	}
	return b.String()
}
