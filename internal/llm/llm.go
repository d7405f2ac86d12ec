// Package llm abstracts streaming text generation over several providers.
package llm

import (
	"context"
	"fmt"
)

// Generator streams completion text for a prompt.
type Generator interface {
	// Name is the provider selector, e.g. "openai".
	Name() string

	// Stream starts a generation call. The returned Stream must be closed.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Request is one single-turn generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Stream yields text fragments in order. Recv returns io.EOF after the last
// fragment.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// ConfigError reports a provider that was selected but has no credentials.
type ConfigError struct {
	Provider string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s client not initialized", e.Provider)
}
