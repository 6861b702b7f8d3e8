package huggingchat

import (
	"strings"

	"github.com/tidwall/gjson"
)

// EventKind is the kind of one upstream stream object.
type EventKind int

const (
	// EventUnknown covers unrecognized types and malformed objects.
	EventUnknown EventKind = iota
	EventToken
	EventKeepalive
	EventTitle
	EventReasoning
	EventFinalAnswer
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventKeepalive:
		return "keepalive"
	case EventTitle:
		return "title"
	case EventReasoning:
		return "reasoning"
	case EventFinalAnswer:
		return "final_answer"
	default:
		return "unknown"
	}
}

// Event is the classified form of one upstream object.
type Event struct {
	Kind EventKind

	// Text is the token text with NUL characters removed. Set only for
	// EventToken; may be empty, in which case nothing is emitted.
	Text string

	// Malformed is set when the object was not valid JSON.
	Malformed bool
}

// Classify maps one extracted object to an Event. It reads only the fields
// the relay consumes and never fails: anything it does not understand is
// EventUnknown.
func Classify(obj []byte) Event {
	if !gjson.ValidBytes(obj) {
		return Event{Kind: EventUnknown, Malformed: true}
	}

	switch gjson.GetBytes(obj, "type").String() {
	case "stream":
		token := gjson.GetBytes(obj, "token")
		if token.Type != gjson.String {
			return Event{Kind: EventUnknown}
		}
		return Event{Kind: EventToken, Text: strings.ReplaceAll(token.String(), "\x00", "")}
	case "status":
		if gjson.GetBytes(obj, "status").String() == "keepAlive" {
			return Event{Kind: EventKeepalive}
		}
		return Event{Kind: EventUnknown}
	case "title":
		return Event{Kind: EventTitle}
	case "reasoning":
		return Event{Kind: EventReasoning}
	case "finalAnswer":
		return Event{Kind: EventFinalAnswer}
	default:
		return Event{Kind: EventUnknown}
	}
}
