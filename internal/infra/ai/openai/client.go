package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"

	domai "github.com/andriansyh/safesight/internal/domain/ai"
	domain "github.com/andriansyh/safesight/internal/domain/inspections"
	"github.com/andriansyh/safesight/internal/infra/ai/prompt"
)

const maxTokens = 2048

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// AnalyzeImage sends the hosted image to the vision model and returns the raw
// text plus the provider's token counters. Sampling is pinned near zero so
// repeated runs over the same photo stay reproducible.
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string) (string, domai.TokenUsage, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		// Temperature is omitempty in the request struct; a literal zero
		// would be dropped from the payload and fall back to the default.
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt()},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domai.TokenUsage{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", domai.TokenUsage{}, fmt.Errorf("%w: empty choices", domain.ErrUpstreamUnavailable)
	}

	usage := domai.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// classify maps provider failures onto the pipeline taxonomy. Credential
// problems must surface distinctly from generic provider errors.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamAuthFailure, err)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
