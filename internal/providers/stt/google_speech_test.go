package stt

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestEncodingFor(t *testing.T) {
	cases := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"audio/webm;codecs=opus": speechpb.RecognitionConfig_WEBM_OPUS,
		"audio/ogg":              speechpb.RecognitionConfig_OGG_OPUS,
		"audio/flac":             speechpb.RecognitionConfig_FLAC,
		"audio/wav":              speechpb.RecognitionConfig_LINEAR16,
		"video/mp4":              speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
	}
	for mime, want := range cases {
		if got, _ := encodingFor(mime); got != want {
			t.Fatalf("encodingFor(%q) = %v, want %v", mime, got, want)
		}
	}
}
