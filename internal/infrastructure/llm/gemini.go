package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/ports"
)

// GeminiClient implements ports.Completer on the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ ports.Completer = (*GeminiClient)(nil)

// NewGeminiClient creates the genai client; the API key is required.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Complete sends user with system as the system instruction.
func (g *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(safePrompt(system), genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyGenAIError(g.model, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// classifyGenAIError maps a genai failure onto the fetch error kinds by
// its HTTP status code. Errors without a status come from the transport
// and are transient.
func classifyGenAIError(model string, err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}
	if code == 0 {
		return &domain.FetchError{URL: "gemini:" + model, Kind: domain.ErrTransientNetwork, Err: err}
	}
	return &domain.FetchError{URL: "gemini:" + model, StatusCode: code, Kind: fetch.ClassifyStatus(code), Err: err}
}
