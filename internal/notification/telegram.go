package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTelegramBaseURL is the Bot API endpoint
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken      string   `json:"bot_token"`
	ChatIDs       []string `json:"chat_ids"`
	Enabled       bool     `json:"enabled"`
	RatePerSecond float64  `json:"rate_per_second"`
	BaseURL       string   `json:"base_url"`
}

// TelegramNotifier sends notifications via the Telegram Bot API
type TelegramNotifier struct {
	botToken string
	chatIDs  []string
	baseURL  string
	enabled  bool
	client   *http.Client
	limiter  *rate.Limiter
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 1
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultTelegramBaseURL
	}

	chatIDs := make([]string, 0, len(config.ChatIDs))
	for _, id := range config.ChatIDs {
		if id = strings.TrimSpace(id); id != "" {
			chatIDs = append(chatIDs, id)
		}
	}

	return &TelegramNotifier{
		botToken: config.BotToken,
		chatIDs:  chatIDs,
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		enabled:  config.Enabled && config.BotToken != "" && len(chatIDs) > 0,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers the message to every configured chat
func (t *TelegramNotifier) Send(ctx context.Context, notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := notification.Markdown
	if message == "" {
		message = fmt.Sprintf("*%s*\n\n%s", EscapeMarkdown(notification.Title), EscapeMarkdown(notification.Message))
	}

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limiter: %w", err)
		}
		if err := t.sendMessage(ctx, chatID, message); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var result telegramResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, result.Description)
		}
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
