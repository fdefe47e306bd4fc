package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autoingest/internal/config"
)

const userAgent = "AutoIngest-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyWorkflowHalted(ctx context.Context, workflowName, fileName, reason string) error
	NotifyWorkflowFault(ctx context.Context, workflowName string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		halts:    cfg.Notifications.WorkflowHalts,
		faults:   cfg.Notifications.WorkflowErrors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	halts    bool
	faults   bool
}

func (n *ntfyService) NotifyWorkflowHalted(ctx context.Context, workflowName, fileName, reason string) error {
	if !n.halts {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "⏹ Workflow %q stopped", strings.TrimSpace(workflowName))
	if fileName = strings.TrimSpace(fileName); fileName != "" {
		fmt.Fprintf(&builder, " on %s", fileName)
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString("\n")
		builder.WriteString(reason)
	}
	builder.WriteString("\nManual review required before restarting")
	return n.send(ctx, payload{
		title:    "AutoIngest - Workflow Stopped",
		message:  builder.String(),
		tags:     []string{"autoingest", "workflow", "stopped"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyWorkflowFault(ctx context.Context, workflowName string, err error) error {
	if !n.faults {
		return nil
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "AutoIngest - Workflow Error",
		message:  fmt.Sprintf("❌ Workflow %q failed: %s", strings.TrimSpace(workflowName), detail),
		tags:     []string{"autoingest", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "AutoIngest - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"autoingest", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyWorkflowHalted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyWorkflowFault(context.Context, string, error) error           { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
