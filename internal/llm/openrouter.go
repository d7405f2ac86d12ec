package llm

import (
	"context"

	"github.com/imran59059/company-analytics/internal/openrouter"
)

// OpenRouter generates text through the OpenRouter API.
type OpenRouter struct {
	client *openrouter.Client
}

// NewOpenRouter wraps an OpenRouter client. A nil client yields a generator
// whose Stream always fails with a ConfigError.
func NewOpenRouter(client *openrouter.Client) *OpenRouter {
	return &OpenRouter{client: client}
}

func (o *OpenRouter) Name() string { return "openrouter" }

// Configured reports whether a client was supplied.
func (o *OpenRouter) Configured() bool { return o.client != nil }

// Models lists the model ids OpenRouter currently serves.
func (o *OpenRouter) Models(ctx context.Context) ([]string, error) {
	if o.client == nil {
		return nil, &ConfigError{Provider: "OpenRouter"}
	}
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, m := range list {
		ids[i] = m.ID
	}
	return ids, nil
}

func (o *OpenRouter) Stream(ctx context.Context, req Request) (Stream, error) {
	if o.client == nil {
		return nil, &ConfigError{Provider: "OpenRouter"}
	}

	var msgs []openrouter.Message
	if req.System != "" {
		msgs = append(msgs, openrouter.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, openrouter.Message{Role: "user", Content: req.Prompt})

	cr := openrouter.ChatRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cr.Temperature = &t
	}
	s, err := o.client.ChatStream(ctx, cr)
	if err != nil {
		return nil, err
	}
	return s, nil
}
