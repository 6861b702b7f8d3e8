// Package apikey provides an API key authenticator that validates keys
// presented as a bearer token or in the X-API-Key header against a static
// key store using SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"maps"
	"net/http"
	"strings"

	"github.com/rhuss/chatrelay/pkg/auth"
)

// HeaderName is the alternative header checked when no bearer token is sent.
const HeaderName = "X-API-Key"

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored. Entries with an
// empty key are skipped.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Len returns the number of registered keys.
func (a *Authenticator) Len() int { return len(a.keys) }

// Authenticate extracts the presented key and validates it.
// It accepts a known key, rejects a present but unknown one, and abstains if
// the request carries neither a Bearer token nor an X-API-Key header.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key, present := presentedKey(r)
	if !present {
		return auth.Abstained()
	}
	if key == "" {
		return auth.Rejected(nil)
	}

	keyHash := sha256.Sum256([]byte(key))

	// Every entry is compared so timing does not reveal the match position.
	var match *keyEntry
	for i := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], a.keys[i].hash[:]) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return auth.Rejected(nil)
	}

	id := match.identity
	id.Metadata = maps.Clone(match.identity.Metadata)
	return auth.Accepted(&id)
}

// presentedKey returns the key from the Authorization header when it uses
// the Bearer scheme, otherwise from X-API-Key.
func presentedKey(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), true
	}
	if values, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0]), true
	}
	return "", false
}
