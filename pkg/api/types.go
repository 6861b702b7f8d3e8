package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Object type names used in responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// FinishReasonStop is the only terminal status the relay produces.
const FinishReasonStop = "stop"

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

// ChatCompletionRequest is the body of POST /v1/chat/completions. Fields the
// relay does not act on (temperature, max_tokens, ...) are accepted and
// ignored by the JSON decoder.
type ChatCompletionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// ChatMessage is one entry of the messages array.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ContentPart is one element of an array-valued message content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageContent holds message content, which on the wire is either a plain
// string or an array of content parts.
type MessageContent struct {
	Parts []ContentPart
	// isString records that the content arrived as a plain string, so that
	// marshaling reproduces the original shape.
	isString bool
}

// TextContent builds string-valued content.
func TextContent(s string) MessageContent {
	return MessageContent{Parts: []ContentPart{{Type: "text", Text: s}}, isString: true}
}

// PartsContent builds array-valued content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// Text concatenates the text of all parts in order.
func (c MessageContent) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// MarshalJSON writes string content as a JSON string and part content as an array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isString {
		return json.Marshal(c.Text())
	}
	if c.Parts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON accepts a string, an array of content parts, or null.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = MessageContent{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = MessageContent{Parts: parts}
		return nil
	default:
		return fmt.Errorf("message content must be a string or an array of parts")
	}
}

// ---------------------------------------------------------------------------
// Aggregate response
// ---------------------------------------------------------------------------

// ChatCompletion is the non-streaming response object.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion choice. The relay always produces exactly one.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the message carried by an aggregate choice.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ---------------------------------------------------------------------------
// Incremental response
// ---------------------------------------------------------------------------

// ChatCompletionChunk is the payload of one SSE event in incremental mode.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the incremental delta. FinishReason is null on every
// chunk except the terminal one.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of a chunk. The terminal chunk carries an
// empty delta, serialized as {}.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// IsTerminal reports whether the chunk carries a finish reason.
func (c *ChatCompletionChunk) IsTerminal() bool {
	for _, ch := range c.Choices {
		if ch.FinishReason != nil {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

// Model describes one entry of GET /v1/models.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models payload.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
