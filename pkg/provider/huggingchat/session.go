package huggingchat

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rhuss/chatrelay/pkg/debug"
)

// State is the bootstrap progress of a Session.
type State int

const (
	StateCreated State = iota
	StateConversationOpened
	StateMessageIDResolved
	StateMessageSubmitted
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConversationOpened:
		return "conversation_opened"
	case StateMessageIDResolved:
		return "message_id_resolved"
	case StateMessageSubmitted:
		return "message_submitted"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the upstream state of one relayed request. It is created per
// request and never shared or persisted.
type Session struct {
	Token          string
	ConversationID string
	SeedMessageID  string
	State          State
}

// NewSession starts a session in StateCreated. An empty token is replaced
// by a random one.
func NewSession(token string) *Session {
	if token == "" {
		token = uuid.NewString()
	}
	return &Session{Token: token, State: StateCreated}
}

// advance moves the session one step forward. States are strictly ordered
// and never revisited; StateStreaming is terminal.
func (s *Session) advance(to State) error {
	if to != s.State+1 || to > StateStreaming {
		return fmt.Errorf("huggingchat: illegal session transition %s -> %s", s.State, to)
	}
	debug.Log(debug.Bootstrap, "session state", "from", s.State.String(), "to", to.String(), "conversation", s.ConversationID)
	s.State = to
	return nil
}
