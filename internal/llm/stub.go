//go:build !llama

package llm

// Compiled when the 'llama' build tag is not set, keeping default builds and
// CI CGO-free. The real engine lives in llama.go.

import "context"

type stubEngine struct{}

// NewEngine constructs the engine for this build. Without the 'llama' tag it
// fails fast rather than mock inference.
func NewEngine(Options) Engine {
	return stubEngine{}
}

func (stubEngine) Load(context.Context, string) error {
	return ErrEngineUnavailable
}

func (stubEngine) Generate(ctx context.Context, _ string, _ Params) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return "", ErrEngineUnavailable
}

func (stubEngine) Close() error { return nil }
