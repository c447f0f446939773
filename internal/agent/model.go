package agent

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type ModelOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewModel connects to an OpenAI-compatible chat endpoint. It returns a nil
// model when no API key is set.
func NewModel(opts ModelOptions) (llms.Model, error) {
	if opts.APIKey == "" {
		return nil, nil
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithModel(opts.Model),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("assistant model: %w", err)
	}
	return client, nil
}
