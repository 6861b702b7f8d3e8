// Package api defines the OpenAI-compatible chat-completions protocol types
// served by chatrelay.
//
// The package provides the inbound request shape, the aggregate completion
// object, the incremental chunk object, the model list, the structured error
// type used across the relay, and ID generation. It performs no I/O. All
// types produce JSON compatible with the OpenAI Chat Completions wire format,
// enabling client library compatibility.
//
// Core types:
//   - [ChatCompletionRequest]: client request ({model, messages, stream})
//   - [ChatCompletion]: aggregate response
//   - [ChatCompletionChunk]: one incremental SSE event payload
//   - [ModelList]: GET /v1/models payload
//   - [APIError]: structured error with type, code, param, and message
package api
