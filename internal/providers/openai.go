package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicecast/internal/audio"
	"voicecast/internal/services"
)

const (
	openAISlug        = "openai"
	openAIDefaultBase = "https://api.openai.com/v1"
	openAIMaxBody     = 64 << 20
)

var openAIVoices = []Voice{
	{ID: "alloy", Label: "Alloy", Gender: "neutral", Provider: openAISlug},
	{ID: "echo", Label: "Echo", Gender: "male", Provider: openAISlug},
	{ID: "fable", Label: "Fable", Gender: "neutral", Provider: openAISlug},
	{ID: "onyx", Label: "Onyx", Gender: "male", Provider: openAISlug},
	{ID: "nova", Label: "Nova", Gender: "female", Provider: openAISlug},
	{ID: "shimmer", Label: "Shimmer", Gender: "female", Provider: openAISlug},
}

// OpenAI synthesizes speech through the OpenAI audio API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// OpenAIOption customizes construction, mainly for tests.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL points the provider at an alternate endpoint.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAI) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithOpenAIHTTPClient swaps the HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAI) {
		p.client = client
	}
}

// NewOpenAI constructs an OpenAI provider. The API key is required.
func NewOpenAI(apiKey, model string, opts ...OpenAIOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, openAISlug, "init", "API key not configured", nil)
	}
	if strings.TrimSpace(model) == "" {
		model = "tts-1"
	}
	provider := &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIDefaultBase,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

// Slug returns the provider identifier.
func (p *OpenAI) Slug() string {
	return openAISlug
}

// Name returns the human-readable backend name.
func (p *OpenAI) Name() string {
	return "OpenAI"
}

// Capabilities reports the speech endpoint's limits.
func (p *OpenAI) Capabilities() Capabilities {
	return Capabilities{
		MaxCharsPerRequest: 4096,
		SupportedFormats:   []audio.Format{audio.FormatMP3, audio.FormatAAC, audio.FormatWAV},
	}
}

// Voices lists the built-in OpenAI voices.
func (p *OpenAI) Voices() []Voice {
	cp := make([]Voice, len(openAIVoices))
	copy(cp, openAIVoices)
	return cp
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Instructions   string  `json:"instructions,omitempty"`
}

// Synthesize renders one segment through POST /audio/speech.
func (p *OpenAI) Synthesize(ctx context.Context, req SynthesisRequest) (*Chunk, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = "alloy"
	}

	payload := speechRequest{
		Model:          p.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: string(req.Format),
		Instructions:   req.SpeakingStyle,
	}
	if req.Speed != 0 && req.Speed != 1.0 {
		payload.Speed = req.Speed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize", "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize", "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize", "perform request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, openAIMaxBody))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize", "read response", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrProvider, openAISlug, "synthesize", "empty audio response", nil)
	}

	return &Chunk{
		Data:       data,
		MIMEType:   req.Format.MIMEType(),
		DurationMS: audio.EstimateDurationMS(int64(len(data))),
	}, nil
}
