// Package telegram sends bias-change alerts through the Telegram Bot API
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/notifier"
)

// DefaultAPIURL is the public Bot API endpoint
const DefaultAPIURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

var _ notifier.Notifier = (*Telegram)(nil)

// New creates a new Telegram notifier. An empty apiURL uses DefaultAPIURL.
func New(botToken, chatID, apiURL string) (*Telegram, error) {
	if botToken == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram: bot_token is required"))
	}
	if chatID == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram: chat_id is required"))
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   strings.TrimSuffix(apiURL, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, alert notifier.Alert) error {
	return t.sendMessage(ctx, formatAlert(alert))
}

func formatAlert(a notifier.Alert) string {
	var sb strings.Builder

	emoji := "⏸️"
	switch a.Current {
	case core.BiasLong:
		emoji = "📈"
	case core.BiasShort:
		emoji = "📉"
	}

	fmt.Fprintf(&sb, "%s %s %s: %s -> %s\n", emoji, a.Symbol, a.Interval, a.Previous, a.Current)
	fmt.Fprintf(&sb, "📊 Score: %+.0f, confidence %.0f%%, quality %s\n", a.Score, a.Confidence, a.EntryQuality)
	if a.Profile != "" {
		fmt.Fprintf(&sb, "🎯 Profile: %s\n", a.Profile)
	}
	if a.Price > 0 {
		fmt.Fprintf(&sb, "💰 Price: %.4f\n", a.Price)
	}
	if a.Plan != nil {
		fmt.Fprintf(&sb, "🛑 Stop: %.4f  🏁 Target: %.4f\n", a.Plan.StopLoss, a.Plan.FinalTarget())
	} else if a.Reason != "" {
		fmt.Fprintf(&sb, "💡 No trade: %s\n", a.Reason)
	}
	fmt.Fprintf(&sb, "⏰ %s", a.At.UTC().Format("2006-01-02 15:04:05 UTC"))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	// plain text: profile names and reasons contain underscores
	body, err := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the bot token
		return core.WrapError(core.ErrNotifierFailed, fmt.Errorf("telegram: request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&result)
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("telegram: API error (status %d): %s", resp.StatusCode, result.Description))
	}
	return nil
}
