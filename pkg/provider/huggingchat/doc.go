// Package huggingchat drives the HuggingChat web backend through its private
// conversation flow and exposes the generated reply as a token stream.
//
// A request runs through three blocking round trips before any token flows
// (see [Client.Bootstrap]): create a conversation for the model, read the
// conversation's page data to find the seed message id, then submit the user
// turn as multipart form data. The response to the submission is a stream of
// concatenated JSON objects with no delimiter, which [Stream] splits with a
// frame scanner, classifies with [Classify] and yields as text tokens.
//
// Each request gets its own session token, conversation and scanner. Nothing
// is shared between requests except the HTTP transport.
package huggingchat
