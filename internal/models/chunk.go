package models

// Chunk is one time slice of captured audio in transit. It lives only in the
// ingestion queue and is consumed exactly once.
type Chunk struct {
	SessionID string
	UserID    string
	Seq       int64
	Data      []byte
	MimeType  string
	Start     float64
	End       float64
}

const DefaultMimeType = "audio/webm"
