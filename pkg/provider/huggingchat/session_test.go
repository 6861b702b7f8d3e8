package huggingchat

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewSessionGeneratesToken(t *testing.T) {
	a := NewSession("")
	b := NewSession("")
	if _, err := uuid.Parse(a.Token); err != nil {
		t.Errorf("generated token %q is not a UUID: %v", a.Token, err)
	}
	if a.Token == b.Token {
		t.Error("two sessions share a generated token")
	}
	if a.State != StateCreated {
		t.Errorf("State = %v, want created", a.State)
	}

	if got := NewSession("fixed").Token; got != "fixed" {
		t.Errorf("Token = %q, want fixed", got)
	}
}

func TestSessionAdvance(t *testing.T) {
	s := NewSession("tok")
	for _, to := range []State{StateConversationOpened, StateMessageIDResolved, StateMessageSubmitted, StateStreaming} {
		if err := s.advance(to); err != nil {
			t.Fatalf("advance(%v) error: %v", to, err)
		}
		if s.State != to {
			t.Fatalf("State = %v, want %v", s.State, to)
		}
	}
}

func TestSessionAdvanceRejectsSkipsAndRepeats(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"skip", StateCreated, StateMessageIDResolved},
		{"repeat", StateConversationOpened, StateConversationOpened},
		{"backwards", StateMessageSubmitted, StateConversationOpened},
		{"past streaming", StateStreaming, StateStreaming + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{State: tt.from}
			if err := s.advance(tt.to); err == nil {
				t.Errorf("advance(%v -> %v) succeeded, want error", tt.from, tt.to)
			}
			if s.State != tt.from {
				t.Errorf("State changed to %v on failed advance", s.State)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateMessageIDResolved.String() != "message_id_resolved" {
		t.Errorf("String() = %q", StateMessageIDResolved.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("String() = %q", State(42).String())
	}
}
