package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicecast/internal/audio"
	"voicecast/internal/services"
)

const azureSlug = "azure_openai"

// AzureOpenAI synthesizes speech through an Azure OpenAI deployment.
type AzureOpenAI struct {
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	client     *http.Client
}

// AzureOption customizes construction, mainly for tests.
type AzureOption func(*AzureOpenAI)

// WithAzureHTTPClient swaps the HTTP client.
func WithAzureHTTPClient(client *http.Client) AzureOption {
	return func(p *AzureOpenAI) {
		p.client = client
	}
}

// NewAzureOpenAI constructs an Azure provider. Key, endpoint, and
// deployment are all required.
func NewAzureOpenAI(apiKey, endpoint, deployment, apiVersion string, opts ...AzureOption) (*AzureOpenAI, error) {
	var missing []string
	if strings.TrimSpace(apiKey) == "" {
		missing = append(missing, "API key")
	}
	if strings.TrimSpace(endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(deployment) == "" {
		missing = append(missing, "deployment")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, azureSlug, "init",
			"missing "+strings.Join(missing, ", "), nil)
	}
	if strings.TrimSpace(apiVersion) == "" {
		apiVersion = "2024-05-01-preview"
	}
	provider := &AzureOpenAI{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

// Slug returns the provider identifier.
func (p *AzureOpenAI) Slug() string {
	return azureSlug
}

// Name returns the human-readable backend name.
func (p *AzureOpenAI) Name() string {
	return "Azure OpenAI"
}

// Capabilities reports the deployment's limits.
func (p *AzureOpenAI) Capabilities() Capabilities {
	return Capabilities{
		MaxCharsPerRequest:    4096,
		SupportedFormats:      []audio.Format{audio.FormatMP3, audio.FormatAAC, audio.FormatWAV},
		SupportsSpeakingStyle: true,
	}
}

// Voices lists the voices available through the deployment. Azure exposes
// the same voice set as the upstream model.
func (p *AzureOpenAI) Voices() []Voice {
	voices := make([]Voice, len(openAIVoices))
	for i, voice := range openAIVoices {
		voice.Provider = azureSlug
		voices[i] = voice
	}
	return voices
}

// Synthesize renders one segment through the deployment's speech route.
func (p *AzureOpenAI) Synthesize(ctx context.Context, req SynthesisRequest) (*Chunk, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = "alloy"
	}

	payload := speechRequest{
		Model:          p.deployment,
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
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize", "marshal request", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/audio/speech?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize", "build request", err)
	}
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize", "perform request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, openAIMaxBody))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize", "read response", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrProvider, azureSlug, "synthesize", "empty audio response", nil)
	}

	return &Chunk{
		Data:       data,
		MIMEType:   req.Format.MIMEType(),
		DurationMS: audio.EstimateDurationMS(int64(len(data))),
	}, nil
}
