// Package provider defines the contract between the engine and an upstream
// conversational backend. An adapter (e.g., huggingchat) performs whatever
// session setup its backend needs and hands back a [TokenStream]: an ordered,
// single-use sequence of text tokens. Backend protocol details stay inside
// the adapter.
package provider
