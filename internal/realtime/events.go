// Package realtime implements the session-scoped broadcast groups behind the
// WebSocket endpoint and the JSON envelopes exchanged over it.
package realtime

import (
	"encoding/json"

	"github.com/yoockh/scribe/internal/models"
)

// Client to server.
const (
	EventJoinSession = "join-session"
	EventAudioStream = "audio-stream"
	EventStopSession = "stop-session"
)

// Server to client.
const (
	EventJoined             = "joined"
	EventTranscriptionToken = "transcription-token"
	EventTranscriptionChunk = "transcription-chunk"
	EventBufferOverflow     = "buffer-overflow"
	EventProcessing         = "processing"
	EventCompleted          = "completed"
	EventTranscriptionError = "transcription-error"
	EventJoinError          = "join-error"
	EventSessionError       = "session-error"
)

// Envelope is one WebSocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinSessionPayload struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	UserID    string `json:"userId" validate:"required,max=128"`
}

type AudioStreamPayload struct {
	SessionID string  `json:"sessionId" validate:"required,max=128"`
	UserID    string  `json:"userId" validate:"required,max=128"`
	Chunk     []byte  `json:"chunk" validate:"required,min=1"`
	Start     float64 `json:"start" validate:"gte=0"`
	End       float64 `json:"end" validate:"gte=0"`
	MimeType  string  `json:"mimeType,omitempty"`
}

type StopSessionPayload struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	UserID    string `json:"userId" validate:"required,max=128"`
	AudioURL  string `json:"audioUrl,omitempty" validate:"omitempty,url"`
}

type JoinedPayload struct {
	SessionID string        `json:"sessionId"`
	State     models.Status `json:"state"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type ChunkPayload struct {
	Text string `json:"text"`
}

type OverflowPayload struct {
	Size int `json:"size"`
}

type ProcessingPayload struct {
	SessionID string `json:"sessionId"`
}

type CompletedPayload struct {
	SessionID  string `json:"sessionId"`
	Summary    string `json:"summary"`
	Transcript string `json:"transcript"`
}

type ErrorPayload struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Encode builds the wire frame for an event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Broadcaster delivers an event to every connection joined to a session.
type Broadcaster interface {
	Broadcast(sessionID, event string, data any)
}
