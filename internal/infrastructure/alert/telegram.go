package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender sends alerts to a Telegram chat via bot API.
type TelegramSender struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.AlertSender = (*TelegramSender)(nil)

// NewTelegramSender registers bot token and chat identifier.
func NewTelegramSender(cfg config.TelegramConfig) (*TelegramSender, error) {
	if !cfg.Enabled() {
		return nil, apperr.New(apperr.ErrConfiguration, "telegram sender", "bot token and chat id are required")
	}
	return &TelegramSender{
		apiURL:   telegramAPI,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Send posts a plain-text message to the chat.
func (n *TelegramSender) Send(ctx context.Context, a domain.Alert) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Subject(a)+"\n\n"+Body(a))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransientNetwork, "send telegram alert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}
