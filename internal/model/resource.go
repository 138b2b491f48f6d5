package model

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alfred/internal/llm"
	"alfred/internal/logging"
)

// State describes where the model is in its load lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resource owns the single loaded model. Loading happens at most once:
// concurrent callers of EnsureLoaded wait on the in-flight load, and a
// failed load is sticky until the process restarts. Inference is strictly
// serialized; callers queue on a single token.
type Resource struct {
	engine    llm.Engine
	modelPath string
	defaults  llm.Params
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	loadErr  error
	loadDone chan struct{}

	genCh chan struct{}
}

// NewResource wraps engine around modelPath. defaults supplies generation
// parameters for calls that do not override them.
func NewResource(engine llm.Engine, modelPath string, defaults llm.Params, logger *slog.Logger) *Resource {
	genCh := make(chan struct{}, 1)
	genCh <- struct{}{}
	return &Resource{
		engine:    engine,
		modelPath: modelPath,
		defaults:  defaults,
		logger:    logging.NewComponentLogger(logger, "model"),
		genCh:     genCh,
	}
}

// State returns the current lifecycle state.
func (r *Resource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// EnsureLoaded loads the model if it is not loaded yet. The first caller
// performs the load; every other concurrent caller blocks until that load
// finishes and shares its outcome. After a failed load every call returns
// the same LoadError without retrying.
func (r *Resource) EnsureLoaded(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateReady:
		r.mu.Unlock()
		return nil
	case StateFailed:
		err := r.loadErr
		r.mu.Unlock()
		return err
	case StateLoading:
		done := r.loadDone
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		err := r.loadErr
		r.mu.Unlock()
		return err
	}

	// Unloaded: this caller owns the load.
	r.state = StateLoading
	done := make(chan struct{})
	r.loadDone = done
	r.mu.Unlock()

	r.logger.Info("loading model", logging.String(logging.FieldModelPath, r.modelPath))
	start := time.Now()
	err := r.engine.Load(ctx, r.modelPath)

	r.mu.Lock()
	if err != nil {
		r.state = StateFailed
		r.loadErr = &LoadError{Path: r.modelPath, Err: err}
		r.logger.Error("model load failed",
			logging.String(logging.FieldModelPath, r.modelPath),
			logging.Error(err))
	} else {
		r.state = StateReady
		r.logger.Info("model ready",
			logging.String(logging.FieldModelPath, r.modelPath),
			logging.Duration(logging.FieldDuration, time.Since(start)))
	}
	loadErr := r.loadErr
	r.mu.Unlock()
	close(done)
	return loadErr
}

// Infer runs one generation. The model is loaded on first use. Generations
// are serialized; a failed generation leaves the model Ready.
func (r *Resource) Infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := r.EnsureLoaded(ctx); err != nil {
		return "", err
	}

	select {
	case <-r.genCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { r.genCh <- struct{}{} }()

	params := r.defaults
	if maxTokens > 0 {
		params.MaxTokens = maxTokens
	}

	start := time.Now()
	text, err := r.engine.Generate(ctx, prompt, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &InferenceError{Err: err}
	}
	r.logger.Debug("generation complete",
		logging.Int("max_tokens", params.MaxTokens),
		logging.Duration(logging.FieldDuration, time.Since(start)))
	return text, nil
}

// Close releases model memory if a load succeeded.
func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReady {
		return nil
	}
	r.state = StateUnloaded
	return r.engine.Close()
}
