// Package models resolves the model names clients send into the canonical
// upstream model identifiers.
//
// A [Registry] is built once at startup from configuration and never
// mutated afterwards. It knows three things: the canonical ids the upstream
// serves, a table of short aliases, and the default used when a request
// names no model. An alias may map to several candidates, in which case each
// resolution picks one uniformly at random.
package models
