package models

import (
	"strings"
	"time"
)

// Status is the recorder lifecycle state, shared by client and server.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusRecording  Status = "RECORDING"
	StatusPaused     Status = "PAUSED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

// ParseStatus maps a remembered status to a known one. Unknown or empty values
// report ok=false.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusIdle, StatusRecording, StatusPaused, StatusProcessing, StatusCompleted:
		return st, true
	default:
		return StatusIdle, false
	}
}

const DefaultSessionTitle = "Untitled Session"

type Session struct {
	SessionID string `bson:"session_id" json:"session_id"`
	UserID    string `bson:"user_id" json:"user_id"`
	Title     string `bson:"title" json:"title"`
	Status    Status `bson:"status" json:"status"`

	Summary  string `bson:"summary,omitempty" json:"summary,omitempty"`
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	// SegmentCount is the number of segments the stored summary was built from.
	SegmentCount int `bson:"segment_count" json:"segment_count"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	EndedAt     *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
