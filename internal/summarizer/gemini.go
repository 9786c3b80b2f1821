package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider talks to the Gemini API. It is the default provider.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Models.GenerateContent(
		ctx,
		p.model,
		genai.Text(req.Prompt),
		p.generationConfig(req),
	)
	if err != nil {
		return "", p.classify(ctx, err)
	}

	if apiErr := geminiBlocked(resp); apiErr != nil {
		return "", apiErr
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &APIError{Kind: TransientServer, Message: "empty response"}
	}

	return text, nil
}

func (p *GeminiProvider) GenerateStream(
	ctx context.Context,
	req Request,
	fn func(fragment string) error,
) (string, error) {
	var b strings.Builder

	for resp, err := range p.client.Models.GenerateContentStream(
		ctx,
		p.model,
		genai.Text(req.Prompt),
		p.generationConfig(req),
	) {
		if err != nil {
			return "", p.classify(ctx, err)
		}

		if apiErr := geminiBlocked(resp); apiErr != nil {
			return "", apiErr
		}

		fragment := resp.Text()
		if fragment == "" {
			continue
		}

		b.WriteString(fragment)
		if fn != nil {
			if err := fn(fragment); err != nil {
				return "", fmt.Errorf("deliver fragment: %w", err)
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &APIError{Kind: TransientServer, Message: "empty streamed response"}
	}

	return text, nil
}

// CountTokens uses the native token counting endpoint.
func (p *GeminiProvider) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	result, err := p.client.Models.CountTokens(ctx, p.model, genai.Text(text), nil)
	if err != nil {
		return 0, p.classify(ctx, err)
	}

	return int(result.TotalTokens), nil
}

func (p *GeminiProvider) generationConfig(req Request) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		TopP:            genai.Ptr(float32(req.TopP)),
		TopK:            genai.Ptr(float32(req.TopK)),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
}

func (p *GeminiProvider) classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: TransientTimeout, Message: err.Error()}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return classifyTransport(err)
}

// geminiBlocked reports safety blocks as ContentFiltered.
func geminiBlocked(resp *genai.GenerateContentResponse) *APIError {
	if resp == nil {
		return nil
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return &APIError{
			Kind:    ContentFiltered,
			Message: fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}

	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
			return &APIError{
				Kind:    ContentFiltered,
				Message: fmt.Sprintf("candidate blocked: %s", resp.Candidates[0].FinishReason),
			}
		}
	}

	return nil
}
