package summarizer

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls Anthropic's Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic API key is empty")
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(req.MaxOutputTokens),
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
		TopK:        anthropic.Int(int64(req.TopK)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", p.classify(ctx, err)
	}

	if msg.StopReason == anthropic.StopReasonRefusal {
		return "", &APIError{Kind: ContentFiltered, Message: "model refused the request"}
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &APIError{Kind: TransientServer, Message: "empty response"}
	}

	return text, nil
}

// GenerateStream delivers the full text as a single fragment; the
// Messages API result is small enough that incremental delivery buys
// nothing for this provider.
func (p *AnthropicProvider) GenerateStream(
	ctx context.Context,
	req Request,
	fn func(fragment string) error,
) (string, error) {
	text, err := p.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	if fn != nil {
		if err := fn(text); err != nil {
			return "", err
		}
	}

	return text, nil
}

// CountTokens uses the native token counting endpoint.
func (p *AnthropicProvider) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	result, err := p.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return 0, p.classify(ctx, err)
	}

	return int(result.InputTokens), nil
}

func (p *AnthropicProvider) classify(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: TransientTimeout, Message: err.Error()}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return classifyTransport(err)
}
