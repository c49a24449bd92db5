package ai

import "context"

// TokenUsage mirrors the provider's reported counters
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is the vision-model port. Implementations return the raw text
// response; parsing and validation happen at the caller's boundary.
type Client interface {
	AnalyzeImage(ctx context.Context, imageURL string) (string, TokenUsage, error)
}
