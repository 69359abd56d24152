package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/notifier"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram sends digests through the Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	client   *resty.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   newClient(),
	}
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(30 * time.Second)
}

// SetBaseURL points the client at another Bot API host
func (t *Telegram) SetBaseURL(url string) *Telegram {
	t.client.SetBaseURL(url)
	return t
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.client == nil {
		t.client = newClient()
	}

	return nil
}

func (t *Telegram) Send(ctx context.Context, d notifier.Digest) error {
	return t.sendMessage(ctx, formatDigest(d))
}

func formatDigest(d notifier.Digest) string {
	var sb strings.Builder

	emoji := "📊"
	if d.FinalPick != nil {
		switch d.FinalPick.Recommendation {
		case core.ActionBuy:
			emoji = "📈"
		case core.ActionSell:
			emoji = "📉"
		default:
			emoji = "⏸️"
		}
	} else if d.Halted {
		emoji = "⛔"
	}

	sb.WriteString(emoji)
	sb.WriteString(" ")
	sb.WriteString(notifier.Text(d))
	return sb.String()
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.botToken).
		SetBody(map[string]any{
			"chat_id": t.chatID,
			"text":    text,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram: API error (status %d): %s", resp.StatusCode(), result.Description)
	}
	return nil
}
