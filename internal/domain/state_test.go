package domain

import (
	"encoding/json"
	"testing"
)

func TestSessionEventCarriesStateByName(t *testing.T) {
	raw, err := json.Marshal(SessionEvent{Type: EventState, State: StateErrored, Retryable: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	if decoded["state"] != "errored" {
		t.Fatalf("expected state by name, got %s", raw)
	}

	var back SessionEvent
	if err := json.Unmarshal(raw, &back); err != nil || back.State != StateErrored {
		t.Fatalf("expected errored back, got %+v %v", back, err)
	}
	var bogus AttemptState
	if err := bogus.UnmarshalText([]byte("paused")); err == nil {
		t.Fatalf("expected unknown state rejected")
	}
}

func TestQuestionHasOption(t *testing.T) {
	q := Question{ID: "q1", Options: []string{"3", "4"}}
	if !q.HasOption("4") || q.HasOption("5") || q.HasOption("") {
		t.Fatalf("unexpected option membership")
	}
	if ResultPath("91") != "/student/quiz/result/91" {
		t.Fatalf("unexpected result path %q", ResultPath("91"))
	}
}
