package stt

import "context"

// TokenFunc receives incremental text as the provider produces it.
type TokenFunc func(token string)

type Provider interface {
	// StreamTranscribe transcribes one audio chunk. onToken may be called any
	// number of times before it returns; the returned text is the full chunk text.
	StreamTranscribe(ctx context.Context, audio []byte, mimeType string, onToken TokenFunc) (string, error)
	Close() error
}
