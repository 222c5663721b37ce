package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicecast/internal/audio"
	"voicecast/internal/providers"
	"voicecast/internal/services"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := providers.NewOpenAI("", "tts-1"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	fakeAudio := []byte("mp3-bytes-here")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["model"] != "tts-1" || payload["voice"] != "nova" || payload["input"] != "Hello." {
			t.Errorf("unexpected payload: %v", payload)
		}
		if payload["speed"] != 1.5 {
			t.Errorf("speed = %v", payload["speed"])
		}
		if payload["response_format"] != "mp3" {
			t.Errorf("response_format = %v", payload["response_format"])
		}
		if payload["instructions"] != "whisper like a librarian" {
			t.Errorf("instructions = %v", payload["instructions"])
		}
		w.Write(fakeAudio)
	}))
	defer server.Close()

	provider, err := providers.NewOpenAI("secret", "tts-1",
		providers.WithOpenAIBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	chunk, err := provider.Synthesize(context.Background(), providers.SynthesisRequest{
		Text:          "Hello.",
		VoiceID:       "nova",
		Speed:         1.5,
		SpeakingStyle: "whisper like a librarian",
		Format:        audio.FormatMP3,
	})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(chunk.Data) != string(fakeAudio) {
		t.Fatalf("chunk data mismatch")
	}
	if chunk.MIMEType != "audio/mpeg" {
		t.Fatalf("mime = %s", chunk.MIMEType)
	}
	if chunk.DurationMS != audio.EstimateDurationMS(int64(len(fakeAudio))) {
		t.Fatalf("duration estimate mismatch")
	}
}

func TestOpenAIDefaultSpeedOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		if _, present := payload["speed"]; present {
			t.Errorf("default speed should be omitted, got %v", payload["speed"])
		}
		if _, present := payload["instructions"]; present {
			t.Errorf("empty speaking style should be omitted, got %v", payload["instructions"])
		}
		if payload["voice"] != "alloy" {
			t.Errorf("empty voice should default to alloy, got %v", payload["voice"])
		}
		w.Write([]byte("x"))
	}))
	defer server.Close()

	provider, _ := providers.NewOpenAI("secret", "", providers.WithOpenAIBaseURL(server.URL))
	if _, err := provider.Synthesize(context.Background(), providers.SynthesisRequest{
		Text:   "Hi",
		Speed:  1.0,
		Format: audio.FormatMP3,
	}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
}

func TestOpenAISurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, _ := providers.NewOpenAI("secret", "tts-1", providers.WithOpenAIBaseURL(server.URL))
	_, err := provider.Synthesize(context.Background(), providers.SynthesisRequest{
		Text:   "Hi",
		Format: audio.FormatMP3,
	})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestOpenAIVoicesCatalog(t *testing.T) {
	provider, _ := providers.NewOpenAI("secret", "tts-1")
	voices := provider.Voices()
	if len(voices) != 6 {
		t.Fatalf("expected 6 voices, got %d", len(voices))
	}
	for _, voice := range voices {
		if voice.Provider != "openai" {
			t.Fatalf("voice %s has provider %s", voice.ID, voice.Provider)
		}
	}
}
