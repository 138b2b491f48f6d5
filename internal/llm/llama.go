//go:build llama

package llm

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaEngine runs inference in-process via llama.cpp bindings.
type llamaEngine struct {
	ctxSize int
	model   *llama.LLama
}

// NewEngine constructs the llama.cpp-backed engine.
func NewEngine(opts Options) Engine {
	return &llamaEngine{ctxSize: opts.contextSize()}
}

func (e *llamaEngine) Load(_ context.Context, modelPath string) error {
	if strings.TrimSpace(modelPath) == "" {
		return errors.New("model path is empty")
	}
	if e.model != nil {
		return errors.New("model already loaded")
	}
	model, err := llama.New(modelPath, llama.SetContext(e.ctxSize))
	if err != nil {
		return fmt.Errorf("load model %s: %w", modelPath, err)
	}
	e.model = model
	return nil
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if e.model == nil {
		return "", errors.New("model not loaded")
	}

	// Stop at the next token boundary once the context is cancelled.
	e.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})

	text, err := e.model.Predict(prompt, predictOptions(params)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("predict: %w", err)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return text, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func predictOptions(params Params) []llama.PredictOption {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1
	}
	threads := params.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	opts := []llama.PredictOption{
		llama.SetTokens(maxTokens),
		llama.SetThreads(threads),
	}
	if params.Temperature > 0 {
		opts = append(opts, llama.SetTemperature(float32(params.Temperature)))
	}
	if params.TopK > 0 {
		opts = append(opts, llama.SetTopK(params.TopK))
	}
	if params.TopP > 0 {
		opts = append(opts, llama.SetTopP(float32(params.TopP)))
	}
	if len(params.StopWords) > 0 {
		opts = append(opts, llama.SetStopWords(params.StopWords...))
	}
	return opts
}
