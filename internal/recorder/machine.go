// Package recorder drives a capture device through the recording lifecycle
// and keeps the client-side view of a session in step with the server.
package recorder

import "github.com/yoockh/scribe/internal/models"

type Event string

const (
	EventStart    Event = "START"
	EventPause    Event = "PAUSE"
	EventResume   Event = "RESUME"
	EventProcess  Event = "PROCESS"
	EventComplete Event = "COMPLETE"
	EventReset    Event = "RESET"
)

var transitions = map[models.Status]map[Event]models.Status{
	models.StatusIdle: {
		EventStart: models.StatusRecording,
	},
	models.StatusRecording: {
		EventPause:    models.StatusPaused,
		EventProcess:  models.StatusProcessing,
		EventComplete: models.StatusCompleted,
	},
	models.StatusPaused: {
		EventResume:  models.StatusRecording,
		EventProcess: models.StatusProcessing,
	},
	models.StatusProcessing: {
		EventComplete: models.StatusCompleted,
	},
	models.StatusCompleted: {
		EventStart: models.StatusRecording,
	},
}

// Machine is the pure lifecycle state. It is not safe for concurrent use.
type Machine struct {
	state models.Status
}

func NewMachine() *Machine {
	return &Machine{state: models.StatusIdle}
}

func (m *Machine) State() models.Status { return m.state }

// Fire applies ev and reports whether it was legal. Illegal events leave the
// state unchanged. Reset is legal from every state.
func (m *Machine) Fire(ev Event) bool {
	if ev == EventReset {
		m.state = models.StatusIdle
		return true
	}
	next, ok := transitions[m.state][ev]
	if !ok {
		return false
	}
	m.state = next
	return true
}

// Sync forces the state to a remembered or server-reported status. Unknown
// values reset to IDLE.
func (m *Machine) Sync(status string) models.Status {
	m.state, _ = models.ParseStatus(status)
	return m.state
}

// Can reports whether ev would be accepted.
func (m *Machine) Can(ev Event) bool {
	if ev == EventReset {
		return true
	}
	_, ok := transitions[m.state][ev]
	return ok
}
