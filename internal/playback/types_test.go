package playback

import (
	"encoding/json"
	"testing"
)

func TestState_Text(t *testing.T) {
	for _, s := range []State{Idle, Speaking, Paused} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", s, err)
		}
		var got State
		if err := json.Unmarshal(data, &got); err != nil || got != s {
			t.Errorf("round trip of %s = %v, %v", data, got, err)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("rewinding")); err == nil {
		t.Error("UnmarshalText(rewinding) should fail")
	}
	if got := State(7).String(); got != "State(7)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStatus_Label(t *testing.T) {
	tests := []struct {
		description string
		state       State
		want        string
	}{
		{"idle", Idle, LabelPlay},
		{"speaking", Speaking, LabelPause},
		{"paused", Paused, LabelPlay},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			s := Status{State: tt.state}
			if got := s.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
			if s.IsPlaying() != (tt.state == Speaking) {
				t.Errorf("IsPlaying() = %v", s.IsPlaying())
			}
		})
	}
}
