package claude

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/llm"
)

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "model")
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected CONFIG_MISSING, got %v", err)
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("key", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != defaultModel {
		t.Errorf("expected default model, got %s", p.Model())
	}
}

func TestChat_JSONModeAddsInstruction(t *testing.T) {
	var system string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			System []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		_ = json.Unmarshal(body, &req)
		if len(req.System) > 0 {
			system = req.System[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "test",
			"content": [{"type": "text", "text": "{\"steps\": []}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	p, err := New("key", "test", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		SystemPrompt: "plan tools",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "go"}},
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != `{"steps": []}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if !strings.HasPrefix(system, "plan tools") || !strings.Contains(system, llm.JSONInstruction) {
		t.Errorf("system prompt missing JSON instruction: %q", system)
	}
}
