// Package debug adds opt-in diagnostic logging to the relay, switched on per
// pipeline stage with the debug setting (or CHATRELAY_DEBUG), for example
// "upstream,frames". The log level comes from log_level; TRACE additionally
// dumps bootstrap bodies and every decoded frame.
package debug

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Category names one stage of the relay.
type Category string

const (
	Upstream  Category = "upstream"  // HTTP exchanges with the chat backend
	Bootstrap Category = "bootstrap" // conversation and seed message setup
	Frames    Category = "frames"    // decoded stream frames
	Engine    Category = "engine"    // model resolution and rendering
	Streaming Category = "streaming" // SSE delivery to the client
	Auth      Category = "auth"
	Config    Category = "config"

	// All enables every category.
	All Category = "all"
)

// Known lists every category in pipeline order.
var Known = []Category{Upstream, Bootstrap, Frames, Engine, Streaming, Auth, Config}

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// maxFrameLog bounds frame text in non-trace output.
const maxFrameLog = 200

var enabled atomic.Pointer[map[Category]bool]

func init() {
	enabled.Store(&map[Category]bool{})
}

// Setup installs a text slog handler on w at the given level and enables the
// comma-separated categories. It returns names it did not recognise; those
// are ignored.
func Setup(categories, level string, w io.Writer) (unknown []string) {
	set, unknown := parse(categories)
	enabled.Store(&set)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})))
	return unknown
}

// Enabled reports whether output for c is on.
func Enabled(c Category) bool {
	set := *enabled.Load()
	return set[All] || set[c]
}

// Log writes a DEBUG record tagged with c.
func Log(c Category, msg string, args ...any) {
	if Enabled(c) {
		slog.Debug(msg, append([]any{"debug", string(c)}, args...)...)
	}
}

// Trace writes a TRACE record tagged with c.
func Trace(c Category, msg string, args ...any) {
	if Enabled(c) {
		slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", string(c)}, args...)...)
	}
}

// Body traces a bootstrap response body for the named step.
func Body(step string, data []byte) {
	if !Enabled(Bootstrap) {
		return
	}
	Trace(Bootstrap, "response body", "step", step, "bytes", len(data), "body", string(data))
}

// Frame traces one decoded stream frame under the given kind. It is called
// for every frame, so the disabled path does no conversion.
func Frame(kind string, obj []byte) {
	if !Enabled(Frames) {
		return
	}
	Trace(Frames, "frame", "kind", kind, "frame", string(obj))
}

// SkippedFrame records a frame the decoder could not classify.
func SkippedFrame(obj []byte) {
	Log(Frames, "skipping malformed frame", "frame", Truncate(string(obj), maxFrameLog))
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	set := *enabled.Load()
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, string(c))
	}
	slices.Sort(out)
	return out
}

var levels = map[string]slog.Level{
	"TRACE":   LevelTrace,
	"DEBUG":   slog.LevelDebug,
	"INFO":    slog.LevelInfo,
	"WARN":    slog.LevelWarn,
	"WARNING": slog.LevelWarn,
	"ERROR":   slog.LevelError,
}

// ParseLevel maps a level name to a slog.Level. Unknown names give INFO.
func ParseLevel(s string) slog.Level {
	if l, ok := levels[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return l
	}
	return slog.LevelInfo
}

// Redact keeps the first four characters of a secret.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence
// and marks the cut with "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func parse(s string) (map[Category]bool, []string) {
	set := make(map[Category]bool)
	var unknown []string
	for _, name := range strings.Split(s, ",") {
		c := Category(strings.ToLower(strings.TrimSpace(name)))
		switch {
		case c == "":
		case c == All || slices.Contains(Known, c):
			set[c] = true
		default:
			unknown = append(unknown, string(c))
		}
	}
	return set, unknown
}
