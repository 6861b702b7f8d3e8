package api

import (
	"strings"
	"testing"
)

func userMsg(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: TextContent(text)}
}

func TestValidateRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name       string
		messages   []ChatMessage
		wantPrompt string
		wantErr    bool
	}{
		{
			name:       "single user message",
			messages:   []ChatMessage{userMsg("Hi")},
			wantPrompt: "Hi",
		},
		{
			name: "last user message wins",
			messages: []ChatMessage{
				{Role: RoleSystem, Content: TextContent("be brief")},
				userMsg("first"),
				{Role: RoleAssistant, Content: TextContent("ok")},
				userMsg("second"),
			},
			wantPrompt: "second",
		},
		{
			name: "trailing assistant message is skipped",
			messages: []ChatMessage{
				userMsg("question"),
				{Role: RoleAssistant, Content: TextContent("partial")},
			},
			wantPrompt: "question",
		},
		{
			name: "parts are concatenated",
			messages: []ChatMessage{{Role: RoleUser, Content: PartsContent(
				ContentPart{Type: "text", Text: "Hello, "},
				ContentPart{Type: "text", Text: "world"},
			)}},
			wantPrompt: "Hello, world",
		},
		{
			name:     "no messages",
			messages: nil,
			wantErr:  true,
		},
		{
			name:     "no user message",
			messages: []ChatMessage{{Role: RoleSystem, Content: TextContent("sys")}},
			wantErr:  true,
		},
		{
			name:     "empty user text",
			messages: []ChatMessage{userMsg("   ")},
			wantErr:  true,
		},
		{
			name:     "null content",
			messages: []ChatMessage{{Role: RoleUser}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, apiErr := ValidateRequest(&ChatCompletionRequest{Messages: tt.messages}, cfg)
			if tt.wantErr {
				if apiErr == nil {
					t.Fatalf("expected error, got prompt %q", prompt)
				}
				if !IsInvalidInput(apiErr) {
					t.Errorf("error code = %q, want %q", apiErr.Code, CodeInvalidInput)
				}
				return
			}
			if apiErr != nil {
				t.Fatalf("unexpected error: %v", apiErr)
			}
			if prompt != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", prompt, tt.wantPrompt)
			}
		})
	}
}

func TestValidateRequestLimits(t *testing.T) {
	cfg := ValidationConfig{MaxMessages: 2, MaxContentSize: 8}

	_, apiErr := ValidateRequest(&ChatCompletionRequest{
		Messages: []ChatMessage{userMsg("a"), userMsg("b"), userMsg("c")},
	}, cfg)
	if apiErr == nil || !strings.Contains(apiErr.Message, "maximum of 2") {
		t.Errorf("expected message count error, got %v", apiErr)
	}

	_, apiErr = ValidateRequest(&ChatCompletionRequest{
		Messages: []ChatMessage{userMsg("this prompt is too long")},
	}, cfg)
	if apiErr == nil || !strings.Contains(apiErr.Message, "maximum size") {
		t.Errorf("expected size error, got %v", apiErr)
	}
}
