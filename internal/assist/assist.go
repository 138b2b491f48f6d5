// Package assist is the generation façade the CLI commands call. Every
// request tries the daemon first; when no daemon answers, the model is
// loaded in-process for a one-shot generation so AI commands keep working.
package assist

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"alfred/internal/config"
	"alfred/internal/daemonctl"
	"alfred/internal/llm"
	"alfred/internal/logging"
	"alfred/internal/model"
	"alfred/internal/prompt"
)

// Caller is the daemon surface assist needs.
type Caller interface {
	Generate(prompt string, maxTokens int) (string, error)
	GenerateCommitMessage(diff string) (string, error)
	SuggestBranchName(description string) (string, error)
	SuggestConflictResolution(file, ours, theirs, base string) (string, error)
	SuggestRebaseStrategy(commits []string, onto string) (string, error)
	Close() error
}

// Option customizes Service construction, mainly for tests.
type Option func(*Service)

// WithConnector replaces the daemon connector.
func WithConnector(connect func() (Caller, error)) Option {
	return func(s *Service) { s.connect = connect }
}

// WithEngine replaces the fallback inference engine.
func WithEngine(engine llm.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// Service routes generation requests to the daemon or the in-process model.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	connect func() (Caller, error)
	engine  llm.Engine

	localOnce sync.Once
	local     *model.Resource
}

// New builds the production service: daemon with optional auto-start, local
// llama engine as fallback.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "assist"),
		engine: llm.NewEngine(llm.Options{ContextSize: cfg.Generation.ContextSize}),
	}
	s.connect = s.defaultConnect
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) defaultConnect() (Caller, error) {
	client, err := daemonctl.Connect(s.cfg)
	if err == nil {
		return client, nil
	}
	if !s.cfg.Daemon.AutoStart {
		return nil, err
	}

	s.logger.Debug("daemon unreachable, auto-starting", logging.Error(err))
	if _, startErr := daemonctl.EnsureStarted(s.cfg, "", 15*time.Second); startErr != nil {
		return nil, startErr
	}
	return daemonctl.Connect(s.cfg)
}

// resource returns the lazily built in-process model.
func (s *Service) resource() *model.Resource {
	s.localOnce.Do(func() {
		gen := s.cfg.Generation
		s.local = model.NewResource(s.engine, s.cfg.ModelPath, llm.Params{
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
			TopK:        gen.TopK,
			TopP:        gen.TopP,
			Threads:     gen.Threads,
		}, s.logger)
	})
	return s.local
}

// viaDaemon runs call against a fresh daemon connection. ok is false when no
// daemon could be reached; a reachable daemon's answer, error included, is
// final.
func (s *Service) viaDaemon(call func(Caller) (string, error)) (string, bool, error) {
	client, err := s.connect()
	if err != nil {
		return "", false, err
	}
	defer client.Close()
	result, err := call(client)
	return result, true, err
}

// Generate runs a raw prompt.
func (s *Service) Generate(ctx context.Context, rawPrompt string, maxTokens int) (string, error) {
	if result, ok, err := s.viaDaemon(func(c Caller) (string, error) {
		return c.Generate(rawPrompt, maxTokens)
	}); ok {
		return result, err
	}
	if maxTokens <= 0 {
		maxTokens = s.cfg.Generation.MaxTokens
	}
	return s.resource().Infer(ctx, rawPrompt, maxTokens)
}

// CommitMessage produces a one-line commit message for a staged diff.
func (s *Service) CommitMessage(ctx context.Context, diff string) (string, error) {
	if result, ok, err := s.viaDaemon(func(c Caller) (string, error) {
		return c.GenerateCommitMessage(diff)
	}); ok {
		return result, err
	}
	text, err := s.resource().Infer(ctx, prompt.CommitMessage(diff), prompt.CommitMessageTokens)
	if err != nil {
		return "", err
	}
	return prompt.FirstLine(text), nil
}

// BranchName produces a kebab-case branch name for a description.
func (s *Service) BranchName(ctx context.Context, description string) (string, error) {
	if result, ok, err := s.viaDaemon(func(c Caller) (string, error) {
		return c.SuggestBranchName(description)
	}); ok {
		return result, err
	}
	text, err := s.resource().Infer(ctx, prompt.BranchName(description), prompt.BranchNameTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanBranchName(text), nil
}

// ConflictResolution proposes a merged result for one conflicted file.
func (s *Service) ConflictResolution(ctx context.Context, file, ours, theirs, base string) (string, error) {
	if result, ok, err := s.viaDaemon(func(c Caller) (string, error) {
		return c.SuggestConflictResolution(file, ours, theirs, base)
	}); ok {
		return result, err
	}
	p := prompt.ConflictResolution(file, ours, theirs, base)
	text, err := s.resource().Infer(ctx, p, prompt.ConflictResolutionTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// RebaseStrategy proposes a plan for rebasing commits onto a base.
func (s *Service) RebaseStrategy(ctx context.Context, commits []string, onto string) (string, error) {
	if result, ok, err := s.viaDaemon(func(c Caller) (string, error) {
		return c.SuggestRebaseStrategy(commits, onto)
	}); ok {
		return result, err
	}
	p := prompt.RebaseStrategy(commits, onto)
	text, err := s.resource().Infer(ctx, p, prompt.RebaseStrategyTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Close releases the in-process model if the fallback path loaded one.
func (s *Service) Close() error {
	if s.local != nil {
		return s.local.Close()
	}
	return nil
}
