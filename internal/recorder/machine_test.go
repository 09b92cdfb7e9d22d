package recorder

import (
	"testing"

	"github.com/yoockh/scribe/internal/models"
)

func TestMachine_Transitions(t *testing.T) {
	tests := []struct {
		from models.Status
		ev   Event
		want models.Status
		ok   bool
	}{
		{models.StatusIdle, EventStart, models.StatusRecording, true},
		{models.StatusIdle, EventPause, models.StatusIdle, false},
		{models.StatusIdle, EventProcess, models.StatusIdle, false},
		{models.StatusRecording, EventPause, models.StatusPaused, true},
		{models.StatusRecording, EventProcess, models.StatusProcessing, true},
		{models.StatusRecording, EventComplete, models.StatusCompleted, true},
		{models.StatusRecording, EventStart, models.StatusRecording, false},
		{models.StatusPaused, EventResume, models.StatusRecording, true},
		{models.StatusPaused, EventProcess, models.StatusProcessing, true},
		{models.StatusPaused, EventComplete, models.StatusPaused, false},
		{models.StatusProcessing, EventComplete, models.StatusCompleted, true},
		{models.StatusProcessing, EventStart, models.StatusProcessing, false},
		{models.StatusProcessing, EventPause, models.StatusProcessing, false},
		{models.StatusCompleted, EventStart, models.StatusRecording, true},
		{models.StatusCompleted, EventPause, models.StatusCompleted, false},
	}
	for _, tt := range tests {
		m := &Machine{state: tt.from}
		if got := m.Fire(tt.ev); got != tt.ok {
			t.Errorf("%s + %s accepted = %v, want %v", tt.from, tt.ev, got, tt.ok)
		}
		if m.State() != tt.want {
			t.Errorf("%s + %s = %s, want %s", tt.from, tt.ev, m.State(), tt.want)
		}
	}
}

func TestMachine_ResetFromEveryState(t *testing.T) {
	for _, s := range []models.Status{
		models.StatusIdle, models.StatusRecording, models.StatusPaused,
		models.StatusProcessing, models.StatusCompleted,
	} {
		m := &Machine{state: s}
		if !m.Fire(EventReset) || m.State() != models.StatusIdle {
			t.Errorf("reset from %s = %s", s, m.State())
		}
	}
}

func TestMachine_Sync(t *testing.T) {
	m := NewMachine()
	if got := m.Sync("PROCESSING"); got != models.StatusProcessing {
		t.Fatalf("sync = %s", got)
	}
	if got := m.Sync("recording"); got != models.StatusRecording {
		t.Fatalf("sync lower-case = %s", got)
	}
	if got := m.Sync("bogus"); got != models.StatusIdle {
		t.Fatalf("sync unknown = %s, want IDLE", got)
	}
}
