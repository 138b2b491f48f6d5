package llm

import (
	"context"
	"errors"
)

// Params controls a single generation.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopK        int
	TopP        float64
	Threads     int
	StopWords   []string
}

// Engine abstracts the inference backend. Implementations are not safe for
// concurrent Generate calls; callers serialize.
type Engine interface {
	// Load reads the model file into memory. Called once.
	Load(ctx context.Context, modelPath string) error
	// Generate produces a completion for prompt. The context cancels an
	// in-progress generation at the next token boundary.
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	// Close releases model memory.
	Close() error
}

// ErrEngineUnavailable reports a binary built without inference support.
var ErrEngineUnavailable = errors.New("llm: inference engine not built (missing 'llama' build tag)")

// IsEngineUnavailable reports whether err stems from a build without the
// inference backend.
func IsEngineUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable)
}

// Options configures engine construction.
type Options struct {
	ContextSize int
}

func (o Options) contextSize() int {
	if o.ContextSize > 0 {
		return o.ContextSize
	}
	return 2048
}
