package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages    int
	MaxContentSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages:    1000,
		MaxContentSize: 1 << 20, // 1MB of prompt text
	}
}

// ValidateRequest checks a ChatCompletionRequest and returns the prompt the
// relay will submit upstream. The prompt is the text of the last message with
// role "user"; earlier turns are ignored because every relayed conversation
// is single-turn.
func ValidateRequest(req *ChatCompletionRequest, cfg ValidationConfig) (string, *APIError) {
	if len(req.Messages) == 0 {
		return "", NewInvalidInputError("messages", "messages must contain at least one message")
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return "", NewInvalidInputError("messages",
			fmt.Sprintf("messages exceeds maximum of %d entries", cfg.MaxMessages))
	}

	prompt, ok := LastUserText(req.Messages)
	if !ok {
		return "", NewInvalidInputError("messages", "messages must contain a message with role \"user\"")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", NewInvalidInputError("messages", "the last user message has no text content")
	}

	if cfg.MaxContentSize > 0 && len(prompt) > cfg.MaxContentSize {
		return "", NewInvalidInputError("messages",
			fmt.Sprintf("user message exceeds maximum size of %d bytes", cfg.MaxContentSize))
	}

	return prompt, nil
}

// LastUserText returns the concatenated text of the last user message.
// ok is false when no message has role "user".
func LastUserText(messages []ChatMessage) (text string, ok bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content.Text(), true
		}
	}
	return "", false
}
