package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiLLM is a thin wrapper around the official genai client.
type GeminiLLM struct {
	cli   *genai.Client
	model string
}

func NewGeminiLLM(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiLLM{cli: cli, model: cfg.Model}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, msg Message) (string, error) {
	parts := make([]*genai.Part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		if p.Type != PartImage {
			parts = append(parts, &genai.Part{Text: p.Text})
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return "", err
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: p.MediaType, Data: raw}})
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		nil,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
