package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"otc-signal-bot/internal/database"
)

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Enabled    bool   `json:"enabled"`
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func embedColor(n *Notification) int {
	const (
		green = 0x00FF00
		red   = 0xFF0000
		grey  = 0x95A5A6
	)
	if n.Type == NotifyError {
		return red
	}
	if n.Signal == nil {
		return green
	}
	switch {
	case n.Type == NotifyOutcome && n.Signal.Status == database.StatusLoss:
		return red
	case n.Type == NotifyOutcome && n.Signal.Status == database.StatusDraw:
		return grey
	case n.Type == NotifySignal && n.Signal.Direction == database.DirectionPut:
		return red
	}
	return green
}

func (d *DiscordNotifier) Send(ctx context.Context, notification *Notification) error {
	if !d.enabled {
		return nil
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       embedColor(notification),
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if s := notification.Signal; s != nil {
		fields := []map[string]interface{}{
			{"name": "Pair", "value": PairLabel(s.Pair), "inline": true},
			{"name": "Direction", "value": s.Direction, "inline": true},
			{"name": "Expiry", "value": fmt.Sprintf("%d min", s.DurationMinutes), "inline": true},
			{"name": "Probability", "value": fmt.Sprintf("%.1f%%", s.Probability), "inline": true},
		}
		if s.Grade != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Grade", "value": s.Grade, "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
