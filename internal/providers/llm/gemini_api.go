package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yoockh/scribe/internal/providers/stt"
)

// GeminiAPI talks to the public Gemini API with an API key.
type GeminiAPI struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiAPI(ctx context.Context, apiKey, modelName string) (*GeminiAPI, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(0.1)
	return &GeminiAPI{client: c, model: m}, nil
}

func (g *GeminiAPI) Close() error { return g.client.Close() }

func (g *GeminiAPI) StreamTranscribe(ctx context.Context, audio []byte, mimeType string, onToken stt.TokenFunc) (string, error) {
	it := g.model.GenerateContentStream(ctx,
		genai.Text(transcriptionPrompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
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
		if t := geminiText(resp); t != "" {
			full.WriteString(t)
			if onToken != nil {
				onToken(t)
			}
		}
	}
	return strings.TrimSpace(full.String()), nil
}

func (g *GeminiAPI) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(summaryPrompt(transcript)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(geminiText(resp)), nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
