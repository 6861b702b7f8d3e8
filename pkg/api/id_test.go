package api

import (
	"testing"
)

func TestNewCompletionID(t *testing.T) {
	id := NewCompletionID()
	if !ValidateCompletionID(id) {
		t.Errorf("NewCompletionID() = %q, want valid completion ID", id)
	}
	if other := NewCompletionID(); other == id {
		t.Errorf("two generated IDs are equal: %q", id)
	}
}

func TestValidateCompletionID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "chatcmpl-abcdefghijklmnopqrstuvwx", true},
		{"valid mixed case", "chatcmpl-AbCdEfGhIjKlMnOpQrStUvWx", true},
		{"valid digits", "chatcmpl-123456789012345678901234", true},
		{"wrong prefix", "resp_abcdefghijklmnopqrstuvwx", false},
		{"too short", "chatcmpl-abc", false},
		{"too long", "chatcmpl-abcdefghijklmnopqrstuvwxy", false},
		{"special chars", "chatcmpl-abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
		{"prefix only", "chatcmpl-", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCompletionID(tt.id); got != tt.want {
				t.Errorf("ValidateCompletionID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
