// Package engine implements the core orchestration logic for chatrelay.
// The Engine struct implements transport.CompletionCreator, bridging
// incoming chat-completions requests to a provider. It resolves the
// requested model, validates the message list, opens an upstream token
// stream and renders that stream as either one aggregate completion or a
// sequence of incremental chunks.
package engine
