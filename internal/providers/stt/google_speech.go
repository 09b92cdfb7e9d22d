package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech uses synchronous Recognize; the whole chunk text is reported as
// a single token.
type GoogleSpeech struct {
	c        *speech.Client
	language string
}

func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{c: c, language: language}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) StreamTranscribe(ctx context.Context, audio []byte, mimeType string, onToken TokenFunc) (string, error) {
	encoding, rate := encodingFor(mimeType)
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            rate,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	if text != "" && onToken != nil {
		onToken(text)
	}
	return text, nil
}

func encodingFor(mimeType string) (speechpb.RecognitionConfig_AudioEncoding, int32) {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "audio/webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS, 48000
	case strings.HasPrefix(mt, "audio/ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS, 48000
	case strings.HasPrefix(mt, "audio/flac"):
		return speechpb.RecognitionConfig_FLAC, 0
	case strings.HasPrefix(mt, "audio/wav"), strings.HasPrefix(mt, "audio/l16"):
		return speechpb.RecognitionConfig_LINEAR16, 16000
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0
	}
}
