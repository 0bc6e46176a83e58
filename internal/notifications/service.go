package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"permitflow/internal/config"
)

const userAgent = "PermitFlow-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifySessionStarted(ctx context.Context, userID string) error
	NotifyFetchCompleted(ctx context.Context, userID string, records int) error
	NotifyProcessingCompleted(ctx context.Context, userID string, eligible, total int) error
	NotifyGenerationCompleted(ctx context.Context, userID string, documents, requested int, duration time.Duration) error
	NotifySessionDestroyed(ctx context.Context, userID string) error
	NotifyError(ctx context.Context, err error, context string) error
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
		gates: gates{
			fetch:      cfg.Notifications.Fetch,
			processing: cfg.Notifications.Processing,
			generation: cfg.Notifications.Generation,
			errors:     cfg.Notifications.Errors,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type gates struct {
	fetch      bool
	processing bool
	generation bool
	errors     bool
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	gates    gates
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, userID string) error {
	if !n.gates.fetch {
		return nil
	}
	data := payload{
		title:   "PermitFlow - Session Started",
		message: fmt.Sprintf("Session started for %s", strings.TrimSpace(userID)),
		tags:    []string{"permitflow", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFetchCompleted(ctx context.Context, userID string, records int) error {
	if !n.gates.fetch {
		return nil
	}
	data := payload{
		title:   "PermitFlow - Fetch Complete",
		message: fmt.Sprintf("Fetched %d permit records for %s", records, strings.TrimSpace(userID)),
		tags:    []string{"permitflow", "fetch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, userID string, eligible, total int) error {
	if !n.gates.processing {
		return nil
	}
	data := payload{
		title:   "PermitFlow - Processing Complete",
		message: fmt.Sprintf("%d of %d transit passes eligible for %s", eligible, total, strings.TrimSpace(userID)),
		tags:    []string{"permitflow", "processing", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, userID string, documents, requested int, duration time.Duration) error {
	if !n.gates.generation {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if documents == requested {
		title = "PermitFlow - Certificates Ready"
		message = fmt.Sprintf("%d certificates generated for %s in %s", documents, strings.TrimSpace(userID), duration)
	} else {
		title = "PermitFlow - Certificates Ready (with errors)"
		message = fmt.Sprintf("%d of %d certificates generated for %s in %s", documents, requested, strings.TrimSpace(userID), duration)
	}

	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"permitflow", "generation", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionDestroyed(ctx context.Context, userID string) error {
	if !n.gates.fetch {
		return nil
	}
	data := payload{
		title:   "PermitFlow - Session Closed",
		message: fmt.Sprintf("Session destroyed for %s", strings.TrimSpace(userID)),
		tags:    []string{"permitflow", "session", "destroyed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.gates.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "PermitFlow - Error",
		message:  builder.String(),
		tags:     []string{"permitflow", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "PermitFlow - Test",
		message:  "Notification system test",
		tags:     []string{"permitflow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifySessionStarted(context.Context, string) error                { return nil }
func (noopService) NotifyFetchCompleted(context.Context, string, int) error           { return nil }
func (noopService) NotifyProcessingCompleted(context.Context, string, int, int) error { return nil }
func (noopService) NotifyGenerationCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifySessionDestroyed(context.Context, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
