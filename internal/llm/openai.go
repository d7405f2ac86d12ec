package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI generates text with the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI generator. An empty apiKey yields a generator
// whose Stream always fails with a ConfigError. baseURL overrides the API
// endpoint when non-empty.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	if apiKey == "" {
		return &OpenAI{}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) Name() string { return "openai" }

// Configured reports whether an API key was supplied.
func (o *OpenAI) Configured() bool { return o.client != nil }

func (o *OpenAI) Stream(ctx context.Context, req Request) (Stream, error) {
	if o.client == nil {
		return nil, &ConfigError{Provider: "OpenAI"}
	}

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	cr := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		Stream:      true,
	}
	// Reasoning models reject max_tokens and custom temperature.
	if isReasoningModel(req.Model) {
		cr.MaxCompletionTokens = req.MaxTokens
		cr.Temperature = 0
	} else {
		cr.MaxTokens = req.MaxTokens
	}

	s, err := o.client.CreateChatCompletionStream(ctx, cr)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	return &openAIStream{s: s}, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

type openAIStream struct {
	s *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.s.Recv()
		if err != nil {
			return "", err
		}
		var text strings.Builder
		for _, c := range resp.Choices {
			text.WriteString(c.Delta.Content)
		}
		if text.Len() > 0 {
			return text.String(), nil
		}
	}
}

func (s *openAIStream) Close() error {
	s.s.Close()
	return nil
}
