package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/provider"
	"github.com/rhuss/chatrelay/pkg/transport"
)

// renderer turns one token stream into completion envelopes. Every
// envelope it produces shares the same id, created timestamp and model.
type renderer struct {
	id      string
	created int64
	model   string
}

func newRenderer(model string, now time.Time) *renderer {
	return &renderer{
		id:      api.NewCompletionID(),
		created: now.Unix(),
		model:   model,
	}
}

// aggregate drains the stream and writes a single completion. A stream
// failure discards the partial text.
func (r *renderer) aggregate(ctx context.Context, stream provider.TokenStream, w transport.ResponseWriter) error {
	var sb strings.Builder
	for token, err := range stream.Tokens() {
		if err != nil {
			return err
		}
		sb.WriteString(token)
	}

	debug.Log(debug.Engine, "aggregate completion ready", "id", r.id, "chars", sb.Len())

	return w.WriteCompletion(ctx, &api.ChatCompletion{
		ID:      r.id,
		Object:  api.ObjectChatCompletion,
		Created: r.created,
		Model:   r.model,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.AssistantMessage{
				Role:    api.RoleAssistant,
				Content: sb.String(),
			},
			FinishReason: api.FinishReasonStop,
		}},
	})
}

// incremental writes one chunk per token followed by the terminal chunk.
// An error after the first chunk is returned to the writer's owner, which
// signals it on the open stream.
func (r *renderer) incremental(ctx context.Context, stream provider.TokenStream, w transport.ResponseWriter) error {
	n := 0
	for token, err := range stream.Tokens() {
		if err != nil {
			return err
		}
		if err := w.WriteChunk(ctx, r.chunk(api.Delta{Content: token}, nil)); err != nil {
			return err
		}
		n++
	}

	debug.Log(debug.Engine, "incremental completion finished", "id", r.id, "chunks", n)

	stop := api.FinishReasonStop
	return w.WriteChunk(ctx, r.chunk(api.Delta{}, &stop))
}

func (r *renderer) chunk(delta api.Delta, finish *string) *api.ChatCompletionChunk {
	return &api.ChatCompletionChunk{
		ID:      r.id,
		Object:  api.ObjectChatCompletionChunk,
		Created: r.created,
		Model:   r.model,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}
