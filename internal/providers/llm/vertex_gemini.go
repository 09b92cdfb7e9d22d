package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/yoockh/scribe/internal/providers/stt"
)

// VertexGemini serves both the transcription and summarization capabilities
// through Vertex AI.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(0.1)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamTranscribe(ctx context.Context, audio []byte, mimeType string, onToken stt.TokenFunc) (string, error) {
	it := v.model.GenerateContentStream(ctx,
		vertexgenai.Text(transcriptionPrompt),
		vertexgenai.Blob{MIMEType: mimeType, Data: audio},
	)

	var full strings.Builder
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", err
		}
		if t := vertexText(resp); t != "" {
			full.WriteString(t)
			if onToken != nil {
				onToken(t)
			}
		}
	}
	return strings.TrimSpace(full.String()), nil
}

func (v *VertexGemini) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, vertexgenai.Text(summaryPrompt(transcript)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(vertexText(resp)), nil
}

func vertexText(resp *vertexgenai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
