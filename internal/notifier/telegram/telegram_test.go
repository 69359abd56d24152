package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/notifier"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg := New("token", "chatid")
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_Init(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token": "test-token",
			"chat_id":   "test-chat",
		},
	}

	if err := tg.Init(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tg.botToken != "test-token" {
		t.Errorf("expected bot_token 'test-token', got '%s'", tg.botToken)
	}
	if tg.chatID != "test-chat" {
		t.Errorf("expected chat_id 'test-chat', got '%s'", tg.chatID)
	}
	if tg.client == nil {
		t.Error("Init should create a client")
	}
}

func TestTelegram_Init_MissingToken(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"chat_id": "test-chat"}})
	if err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_Init_MissingChatID(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"bot_token": "test-token"}})
	if err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func TestTelegram_Send(t *testing.T) {
	var (
		path     string
		received map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	tg := New("test-token", "test-chat").SetBaseURL(server.URL)

	pick := core.Pick{Symbol: "AAPL", Recommendation: core.ActionBuy, Confidence: 0.85}
	err := tg.Send(context.Background(), notifier.Digest{
		RunID:     "run-1",
		Date:      "2024-05-01",
		Picks:     []core.Pick{pick},
		FinalPick: &pick,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if received["chat_id"] != "test-chat" {
		t.Errorf("expected chat_id test-chat, got %v", received["chat_id"])
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "AAPL BUY") {
		t.Errorf("message should contain the pick, got %q", text)
	}
}

func TestTelegram_Send_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	tg := New("test-token", "test-chat").SetBaseURL(server.URL)

	err := tg.Send(context.Background(), notifier.Digest{RunID: "run-1"})
	if err == nil {
		t.Fatal("expected error for API failure")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error should carry the API description, got %v", err)
	}
}

func TestFormatDigest_Emoji(t *testing.T) {
	sell := core.Pick{Symbol: "TSLA", Recommendation: core.ActionSell, Confidence: 0.7}
	hold := core.Pick{Symbol: "GOOG", Recommendation: core.ActionHold, Confidence: 0.6}

	tests := []struct {
		name   string
		digest notifier.Digest
		want   string
	}{
		{"sell", notifier.Digest{FinalPick: &sell}, "📉"},
		{"hold", notifier.Digest{FinalPick: &hold}, "⏸️"},
		{"halted", notifier.Digest{Halted: true, HaltReason: "step cap"}, "⛔"},
		{"empty", notifier.Digest{}, "📊"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatDigest(tt.digest)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("formatDigest() = %q, want prefix %s", got, tt.want)
			}
		})
	}
}
