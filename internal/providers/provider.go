// Package providers contains text-to-speech backends. Each provider turns
// one segment of text into an encoded audio chunk.
package providers

import (
	"context"

	"voicecast/internal/audio"
)

// SynthesisRequest carries everything a backend needs for one segment.
type SynthesisRequest struct {
	Text          string
	VoiceID       string
	Speed         float64
	SpeakingStyle string
	Format        audio.Format
}

// Chunk is the synthesized audio for one segment.
type Chunk struct {
	Data       []byte
	MIMEType   string
	DurationMS int64
}

// Voice describes a selectable synthesis voice.
type Voice struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Gender   string `json:"gender,omitempty"`
	Provider string `json:"provider"`
}

// Capabilities advertises what a backend can do so callers can reject
// unsupported requests before spending an API call.
type Capabilities struct {
	MaxCharsPerRequest    int
	SupportedFormats      []audio.Format
	SupportsSSML          bool
	SupportsSpeakingStyle bool
}

// Provider is a text-to-speech backend.
type Provider interface {
	// Slug returns the stable identifier stored in manuscripts.
	Slug() string

	// Name returns the human-readable backend name.
	Name() string

	// Synthesize renders one segment of text to audio.
	Synthesize(ctx context.Context, req SynthesisRequest) (*Chunk, error)

	// Capabilities reports the backend's limits and feature set.
	Capabilities() Capabilities

	// Voices lists the voices this backend offers.
	Voices() []Voice
}
