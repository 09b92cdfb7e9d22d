package llm

import "context"

type Provider interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Close() error
}

// EmptyTranscriptSummary is returned instead of calling a model when there is
// nothing to summarize.
const EmptyTranscriptSummary = "No transcript available to summarize."

const transcriptionPrompt = "Transcribe the following audio chunk with speaker change hints if possible."

func summaryPrompt(transcript string) string {
	return "You are an expert meeting assistant. Given the transcript below, summarize the meeting focusing on " +
		"key points, decisions, owners, and action items with due dates if mentioned. Use bullet points.\n" +
		"Transcript:\n" + transcript
}
