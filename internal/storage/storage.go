// Package storage archives finished transcripts to object storage.
package storage

import "context"

// Transcript is a rendered session export ready for archiving.
type Transcript struct {
	SessionID string
	UserID    string
	Body      []byte
}

type Archive interface {
	// Put stores t, replacing an earlier archive of the same session, and
	// returns where it was written.
	Put(ctx context.Context, t Transcript) (storedPath string, err error)
}

// TranscriptObject names the archived transcript of a session.
func TranscriptObject(sessionID string) string {
	return "transcripts/" + TranscriptFilename(sessionID)
}

// TranscriptFilename is the download name of a session transcript.
func TranscriptFilename(sessionID string) string {
	return "transcript-" + sessionID + ".txt"
}
