package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAIProvider calls OpenAI's Responses API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai API key is empty")
	}

	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Responses.New(ctx, p.params(req))
	if err != nil {
		return "", p.classify(ctx, err)
	}

	if resp.Status == "incomplete" {
		return "", &APIError{
			Kind: PermanentRequest,
			Message: fmt.Sprintf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				req.MaxOutputTokens,
			),
		}
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", &APIError{
			Kind:    TransientServer,
			Message: fmt.Sprintf("output text is missing (status = %s)", resp.Status),
		}
	}

	return text, nil
}

func (p *OpenAIProvider) GenerateStream(
	ctx context.Context,
	req Request,
	fn func(fragment string) error,
) (string, error) {
	stream := p.client.Responses.NewStreaming(ctx, p.params(req))
	defer func() { _ = stream.Close() }()

	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type != "response.output_text.delta" || event.Delta == "" {
			continue
		}

		b.WriteString(event.Delta)
		if fn != nil {
			if err := fn(event.Delta); err != nil {
				return "", fmt.Errorf("deliver fragment: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", p.classify(ctx, err)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &APIError{Kind: TransientServer, Message: "empty streamed response"}
	}

	return text, nil
}

// CountTokens has no free endpoint on this API, so the local estimate
// stands in for it.
func (p *OpenAIProvider) CountTokens(_ context.Context, text string) (int, error) {
	return EstimateTokens(text), nil
}

func (p *OpenAIProvider) params(req Request) responses.ResponseNewParams {
	// top_k is not a Responses API parameter and is ignored here.
	return responses.ResponseNewParams{
		Model:           p.model,
		MaxOutputTokens: openai.Int(int64(req.MaxOutputTokens)),
		Temperature:     openai.Float(req.Temperature),
		TopP:            openai.Float(req.TopP),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
	}
}

func (p *OpenAIProvider) classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: TransientTimeout, Message: err.Error()}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return classifyTransport(err)
}
