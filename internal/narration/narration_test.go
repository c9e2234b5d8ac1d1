package narration

import (
	"errors"
	"testing"
)

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{ID: "en-1", Name: "Amy"},
		{ID: "en-2", Name: "Ben"},
	}

	tests := []struct {
		description string
		voices      []Voice
		id          string
		want        string
	}{
		{"known voice", voices, "en-2", "en-2"},
		{"unknown voice falls back to first", voices, "fr-1", "en-1"},
		{"empty id falls back to first", voices, "", "en-1"},
		{"no voices uses backend default", nil, "en-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := SelectVoice(tt.voices, tt.id); got != tt.want {
				t.Errorf("SelectVoice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("device busy")
	err := NewError("speak", "utterance failed", cause)

	if got, want := err.Error(), "narration speak: utterance failed: device busy"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}

	var nerr *Error
	if !errors.As(error(err), &nerr) || nerr.Op != "speak" {
		t.Errorf("errors.As() = %v", nerr)
	}
}

func TestEventKindString(t *testing.T) {
	if EventEnd.String() != "end" {
		t.Errorf("EventEnd.String() = %q", EventEnd.String())
	}
	if got := EventKind(9).String(); got != "EventKind(9)" {
		t.Errorf("unknown kind = %q", got)
	}
}
