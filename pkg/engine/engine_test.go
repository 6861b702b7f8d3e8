package engine

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/models"
	"github.com/rhuss/chatrelay/pkg/provider"
	"github.com/rhuss/chatrelay/pkg/transport"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	tokens  []string
	failAt  int // index at which the stream yields its error; -1 for never
	stream  error
	openErr error

	opened  []*provider.Request
	streams []*mockStream
}

func newMockProvider(tokens ...string) *mockProvider {
	return &mockProvider{tokens: tokens, failAt: -1}
}

func (m *mockProvider) Name() string { return "mock" }
func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) Open(_ context.Context, req *provider.Request) (provider.TokenStream, error) {
	m.opened = append(m.opened, req)
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &mockStream{tokens: m.tokens, failAt: m.failAt, err: m.stream}
	m.streams = append(m.streams, s)
	return s, nil
}

type mockStream struct {
	tokens []string
	failAt int
	err    error
	closed int
}

func (s *mockStream) Tokens() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for i, tok := range s.tokens {
			if i == s.failAt {
				yield("", s.err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
		if s.failAt == len(s.tokens) {
			yield("", s.err)
		}
	}
}

func (s *mockStream) Close() error {
	s.closed++
	return nil
}

// mockResponseWriter captures writer calls for testing.
type mockResponseWriter struct {
	completion      *api.ChatCompletion
	chunks          []*api.ChatCompletionChunk
	writeCompCalls  int
	writeChunkCalls int
}

func (w *mockResponseWriter) WriteCompletion(_ context.Context, c *api.ChatCompletion) error {
	w.completion = c
	w.writeCompCalls++
	return nil
}

func (w *mockResponseWriter) WriteChunk(_ context.Context, c *api.ChatCompletionChunk) error {
	w.chunks = append(w.chunks, c)
	w.writeChunkCalls++
	return nil
}

func (w *mockResponseWriter) Flush() error { return nil }

var _ transport.ResponseWriter = (*mockResponseWriter)(nil)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, p provider.Provider) *Engine {
	t.Helper()
	reg, err := models.New(models.DefaultConfig())
	if err != nil {
		t.Fatalf("models.New: %v", err)
	}
	eng, err := New(p, reg, Config{Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func userRequest(model, text string, stream bool) *api.ChatCompletionRequest {
	return &api.ChatCompletionRequest{
		Model:    model,
		Stream:   stream,
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: api.TextContent(text)}},
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	reg, _ := models.New(models.DefaultConfig())
	if _, err := New(nil, reg, Config{}); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := New(newMockProvider(), nil, Config{}); err == nil {
		t.Error("expected error for nil registry")
	}
}

func TestEngine_CreateCompletion_Aggregate(t *testing.T) {
	mp := newMockProvider("Hello", ", ", "world", "!")
	eng := newTestEngine(t, mp)
	w := &mockResponseWriter{}

	if err := eng.CreateCompletion(context.Background(), userRequest("llama-3.3-70b", "Say hi", false), w); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if w.writeCompCalls != 1 || w.writeChunkCalls != 0 {
		t.Fatalf("writer calls = %d completions, %d chunks; want 1, 0", w.writeCompCalls, w.writeChunkCalls)
	}

	c := w.completion
	if !api.ValidateCompletionID(c.ID) {
		t.Errorf("invalid completion id %q", c.ID)
	}
	if c.Object != api.ObjectChatCompletion {
		t.Errorf("object = %q", c.Object)
	}
	if c.Created != fixedNow.Unix() {
		t.Errorf("created = %d, want %d", c.Created, fixedNow.Unix())
	}
	if c.Model != "meta-llama/Llama-3.3-70B-Instruct" {
		t.Errorf("model = %q, want resolved id", c.Model)
	}
	if len(c.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(c.Choices))
	}
	ch := c.Choices[0]
	if ch.Message.Role != api.RoleAssistant || ch.Message.Content != "Hello, world!" {
		t.Errorf("message = %+v", ch.Message)
	}
	if ch.FinishReason != api.FinishReasonStop {
		t.Errorf("finish_reason = %q", ch.FinishReason)
	}

	if len(mp.opened) != 1 {
		t.Fatalf("provider opened %d times, want 1", len(mp.opened))
	}
	if mp.opened[0].Model != "meta-llama/Llama-3.3-70B-Instruct" || mp.opened[0].Prompt != "Say hi" {
		t.Errorf("provider request = %+v", mp.opened[0])
	}
	if mp.streams[0].closed == 0 {
		t.Error("stream was not closed")
	}
}

func TestEngine_CreateCompletion_Incremental(t *testing.T) {
	mp := newMockProvider("1", "2", "3", "4", "5")
	eng := newTestEngine(t, mp)
	w := &mockResponseWriter{}

	if err := eng.CreateCompletion(context.Background(), userRequest("", "count", true), w); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if w.writeCompCalls != 0 {
		t.Errorf("WriteCompletion called %d times in incremental mode", w.writeCompCalls)
	}
	if len(w.chunks) != 6 {
		t.Fatalf("chunks = %d, want 5 content + 1 terminal", len(w.chunks))
	}

	first := w.chunks[0]
	var sb strings.Builder
	for i, c := range w.chunks {
		if c.ID != first.ID || c.Created != first.Created || c.Model != first.Model {
			t.Errorf("chunk %d envelope differs: %+v vs %+v", i, c, first)
		}
		if c.Object != api.ObjectChatCompletionChunk {
			t.Errorf("chunk %d object = %q", i, c.Object)
		}
		if len(c.Choices) != 1 {
			t.Fatalf("chunk %d has %d choices", i, len(c.Choices))
		}
		sb.WriteString(c.Choices[0].Delta.Content)
	}
	if sb.String() != "12345" {
		t.Errorf("concatenated deltas = %q", sb.String())
	}

	for i, c := range w.chunks[:5] {
		if c.IsTerminal() {
			t.Errorf("chunk %d unexpectedly terminal", i)
		}
		if c.Choices[0].Delta.Role != "" {
			t.Errorf("chunk %d carries a role", i)
		}
	}

	last := w.chunks[5]
	if !last.IsTerminal() || *last.Choices[0].FinishReason != api.FinishReasonStop {
		t.Errorf("last chunk is not a stop chunk: %+v", last.Choices[0])
	}
	if last.Choices[0].Delta != (api.Delta{}) {
		t.Errorf("terminal delta = %+v, want empty", last.Choices[0].Delta)
	}
	if first.Model != "meta-llama/Llama-3.3-70B-Instruct" {
		t.Errorf("empty model should resolve to default, got %q", first.Model)
	}
}

func TestEngine_AggregateEqualsConcatenatedDeltas(t *testing.T) {
	tokens := []string{"héllo", " ", "wörld", " ✓", "{}", "\"quoted\""}

	aggW := &mockResponseWriter{}
	if err := newTestEngine(t, newMockProvider(tokens...)).CreateCompletion(
		context.Background(), userRequest("", "x", false), aggW); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	incW := &mockResponseWriter{}
	if err := newTestEngine(t, newMockProvider(tokens...)).CreateCompletion(
		context.Background(), userRequest("", "x", true), incW); err != nil {
		t.Fatalf("incremental: %v", err)
	}

	var sb strings.Builder
	for _, c := range incW.chunks {
		sb.WriteString(c.Choices[0].Delta.Content)
	}
	if got := aggW.completion.Choices[0].Message.Content; got != sb.String() {
		t.Errorf("aggregate %q != concatenated deltas %q", got, sb.String())
	}
}

func TestEngine_EmptyStream(t *testing.T) {
	t.Run("aggregate", func(t *testing.T) {
		w := &mockResponseWriter{}
		if err := newTestEngine(t, newMockProvider()).CreateCompletion(context.Background(), userRequest("", "x", false), w); err != nil {
			t.Fatalf("CreateCompletion: %v", err)
		}
		if w.completion.Choices[0].Message.Content != "" {
			t.Errorf("content = %q, want empty", w.completion.Choices[0].Message.Content)
		}
	})
	t.Run("incremental", func(t *testing.T) {
		w := &mockResponseWriter{}
		if err := newTestEngine(t, newMockProvider()).CreateCompletion(context.Background(), userRequest("", "x", true), w); err != nil {
			t.Fatalf("CreateCompletion: %v", err)
		}
		if len(w.chunks) != 1 || !w.chunks[0].IsTerminal() {
			t.Errorf("want exactly the terminal chunk, got %d chunks", len(w.chunks))
		}
	})
}

func TestEngine_ClientErrorsSkipProvider(t *testing.T) {
	tests := []struct {
		name  string
		req   *api.ChatCompletionRequest
		check func(error) bool
	}{
		{"unknown model", userRequest("gpt-4", "hi", false), api.IsUnknownModel},
		{"no messages", &api.ChatCompletionRequest{}, api.IsInvalidInput},
		{"no user message", &api.ChatCompletionRequest{Messages: []api.ChatMessage{
			{Role: api.RoleSystem, Content: api.TextContent("be nice")},
		}}, api.IsInvalidInput},
		{"whitespace prompt", userRequest("", "   \n", true), api.IsInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := newMockProvider("unused")
			w := &mockResponseWriter{}
			err := newTestEngine(t, mp).CreateCompletion(context.Background(), tt.req, w)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(mp.opened) != 0 {
				t.Errorf("provider opened %d times for a client error", len(mp.opened))
			}
			if w.writeCompCalls+w.writeChunkCalls != 0 {
				t.Error("writer was used for a client error")
			}
		})
	}
}

func TestEngine_OpenErrorPropagates(t *testing.T) {
	mp := newMockProvider()
	mp.openErr = api.NewProtocolMismatchError("conversation id missing")

	err := newTestEngine(t, mp).CreateCompletion(context.Background(), userRequest("", "hi", true), &mockResponseWriter{})
	if !api.IsProtocolMismatch(err) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
}

func TestEngine_MidStreamError(t *testing.T) {
	streamErr := api.NewUpstreamUnavailableError("upstream stream interrupted", "")

	t.Run("incremental stops without terminal chunk", func(t *testing.T) {
		mp := newMockProvider("a", "b", "c")
		mp.failAt, mp.stream = 2, streamErr
		w := &mockResponseWriter{}

		err := newTestEngine(t, mp).CreateCompletion(context.Background(), userRequest("", "hi", true), w)
		if !errors.Is(err, streamErr) {
			t.Fatalf("err = %v, want stream error", err)
		}
		if len(w.chunks) != 2 {
			t.Errorf("chunks = %d, want the 2 emitted before the failure", len(w.chunks))
		}
		for _, c := range w.chunks {
			if c.IsTerminal() {
				t.Error("terminal chunk written after a stream failure")
			}
		}
		if mp.streams[0].closed == 0 {
			t.Error("stream was not closed")
		}
	})

	t.Run("aggregate writes nothing", func(t *testing.T) {
		mp := newMockProvider("a", "b")
		mp.failAt, mp.stream = 2, streamErr
		w := &mockResponseWriter{}

		err := newTestEngine(t, mp).CreateCompletion(context.Background(), userRequest("", "hi", false), w)
		if !api.IsUpstreamUnavailable(err) {
			t.Fatalf("err = %v", err)
		}
		if w.writeCompCalls != 0 {
			t.Error("partial completion written after a stream failure")
		}
	})
}

func TestEngine_UsesLastUserMessage(t *testing.T) {
	mp := newMockProvider("ok")
	req := &api.ChatCompletionRequest{Messages: []api.ChatMessage{
		{Role: api.RoleSystem, Content: api.TextContent("sys")},
		{Role: api.RoleUser, Content: api.TextContent("first")},
		{Role: api.RoleAssistant, Content: api.TextContent("reply")},
		{Role: api.RoleUser, Content: api.PartsContent(
			api.ContentPart{Type: "text", Text: "second "},
			api.ContentPart{Type: "text", Text: "question"},
		)},
	}}

	if err := newTestEngine(t, mp).CreateCompletion(context.Background(), req, &mockResponseWriter{}); err != nil {
		t.Fatalf("CreateCompletion: %v", err)
	}
	if mp.opened[0].Prompt != "second question" {
		t.Errorf("prompt = %q", mp.opened[0].Prompt)
	}
}

func TestEngine_Models(t *testing.T) {
	eng := newTestEngine(t, newMockProvider())
	list := eng.Models()
	if len(list) == 0 {
		t.Fatal("no models listed")
	}
	if list[0].ID != "meta-llama/Llama-3.3-70B-Instruct" {
		t.Errorf("first model = %q", list[0].ID)
	}
}

func TestEngine_DistinctIDsPerRequest(t *testing.T) {
	eng := newTestEngine(t, newMockProvider("x"))
	ids := make(map[string]bool)
	for i := 0; i < 20; i++ {
		w := &mockResponseWriter{}
		if err := eng.CreateCompletion(context.Background(), userRequest("", "hi", false), w); err != nil {
			t.Fatal(err)
		}
		ids[w.completion.ID] = true
	}
	if len(ids) != 20 {
		t.Errorf("got %d distinct ids, want 20", len(ids))
	}
}
