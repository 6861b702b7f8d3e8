// Package transport defines the handler interfaces and middleware chain for
// the chatrelay HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the relay engine. It
// deserializes incoming requests into the protocol types defined in pkg/api,
// dispatches them for processing, and serializes responses back to the
// client in either aggregate (JSON) or incremental (SSE) format.
//
// # Handler Interfaces
//
//   - CompletionCreator handles POST /v1/chat/completions.
//   - ModelLister serves GET /v1/models.
//
// The ResponseWriter interface abstracts streaming and non-streaming output,
// allowing the handler to emit SSE chunks or a complete JSON object without
// knowing the underlying transport protocol.
//
// # Middleware
//
// The middleware chain wraps CompletionCreator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. HTTP-level concerns
// (routing, CORS, authentication, metrics) live in the http subpackage.
package transport
