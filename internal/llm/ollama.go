package llm

import (
	"context"

	"github.com/imran59059/company-analytics/internal/ollama"
)

// Ollama generates text with a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama generator targeting baseURL. model is the
// default model that must be pulled for the provider to count as ready.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{client: ollama.New(baseURL), model: model}
}

func (o *Ollama) Name() string { return "ollama" }

// Ready reports whether the Ollama server is reachable and has the default
// model available locally.
func (o *Ollama) Ready(ctx context.Context) bool {
	if o.model == "" {
		return o.client.IsRunning(ctx)
	}
	return o.client.HasModel(ctx, o.model)
}

// Models lists the locally pulled models.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	return o.client.ListModels(ctx)
}

func (o *Ollama) Stream(ctx context.Context, req Request) (Stream, error) {
	var msgs []ollama.Message
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: req.Prompt})

	s, err := o.client.ChatStream(ctx, req.Model, msgs, &ollama.Options{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
