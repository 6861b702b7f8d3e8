package engine

import (
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
)

// Config holds configuration for the core engine.
type Config struct {
	// Validation bounds the inbound message list.
	Validation api.ValidationConfig

	// Now returns the creation timestamp stamped on completions. Nil
	// means time.Now.
	Now func() time.Time
}

// now returns the effective clock.
func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
