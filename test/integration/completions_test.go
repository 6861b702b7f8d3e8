package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/models"
	"github.com/rhuss/chatrelay/pkg/provider/huggingchat/mockupstream"
)

func TestAggregateCompletion(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions", chatRequest("", "Please count from 1 to 5", false))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)

	if completion.Object != api.ObjectChatCompletion {
		t.Errorf("object = %q, want %q", completion.Object, api.ObjectChatCompletion)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", completion.ID)
	}
	if completion.Model != models.DefaultConfig().Default {
		t.Errorf("model = %q, want default model", completion.Model)
	}
	if len(completion.Choices) != 1 {
		t.Fatalf("got %d choices, want 1", len(completion.Choices))
	}
	choice := completion.Choices[0]
	if choice.Message.Role != api.RoleAssistant {
		t.Errorf("role = %q, want assistant", choice.Message.Role)
	}
	if choice.Message.Content != "1, 2, 3, 4, 5" {
		t.Errorf("content = %q, want %q", choice.Message.Content, "1, 2, 3, 4, 5")
	}
	if choice.FinishReason != api.FinishReasonStop {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
}

func TestAliasResolvesUpstreamModel(t *testing.T) {
	env := newTestEnvironment(t, mockupstream.Config{})

	resp := postJSON(t, env.BaseURL()+"/v1/chat/completions", chatRequest("qwq-32b", "hi", false))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)
	if completion.Model != "Qwen/QwQ-32B" {
		t.Errorf("model = %q, want resolved canonical id", completion.Model)
	}

	subs := env.Mock.Submissions()
	if len(subs) != 1 {
		t.Fatalf("upstream saw %d submissions, want 1", len(subs))
	}
	if subs[0].Model != "Qwen/QwQ-32B" {
		t.Errorf("upstream model = %q, want Qwen/QwQ-32B", subs[0].Model)
	}
}

func TestLastUserMessageIsRelayed(t *testing.T) {
	env := newTestEnvironment(t, mockupstream.Config{})

	body := map[string]any{
		"messages": []map[string]any{
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "first answer"},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "second "},
				{"type": "text", "text": "question"},
			}},
		},
	}
	resp := postJSON(t, env.BaseURL()+"/v1/chat/completions", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	readBody(t, resp)

	subs := env.Mock.Submissions()
	if len(subs) != 1 {
		t.Fatalf("upstream saw %d submissions, want 1", len(subs))
	}
	if got := subs[0].Payload["inputs"]; got != "second question" {
		t.Errorf("upstream inputs = %v, want %q", got, "second question")
	}
}

func TestEachRequestUsesFreshConversation(t *testing.T) {
	env := newTestEnvironment(t, mockupstream.Config{})

	for i := 0; i < 3; i++ {
		readBody(t, postJSON(t, env.BaseURL()+"/v1/chat/completions", chatRequest("", "hi", false)))
	}

	if n := env.Mock.Conversations(); n != 3 {
		t.Errorf("conversations = %d, want 3", n)
	}
	seen := map[string]bool{}
	for _, s := range env.Mock.Submissions() {
		if seen[s.Cookie] {
			t.Errorf("session cookie %q reused across requests", s.Cookie)
		}
		seen[s.Cookie] = true
	}
}

func TestNoisyUpstreamRelaysOnlyTokens(t *testing.T) {
	env := newTestEnvironment(t, mockupstream.Config{Noise: true, TrailingAfterFinal: true, ChunkSize: 3})

	resp := postJSON(t, env.BaseURL()+"/v1/chat/completions", chatRequest("", "hi", false))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)
	want := strings.Join(mockupstream.Reply("hi"), "")
	if got := completion.Choices[0].Message.Content; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}
