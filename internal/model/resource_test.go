package model_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alfred/internal/llm"
	"alfred/internal/logging"
	"alfred/internal/model"
)

// fakeEngine implements llm.Engine with controllable behavior.
type fakeEngine struct {
	loadErr     error
	loadDelay   time.Duration
	generateErr error
	response    string

	loads     atomic.Int32
	inflight  atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeEngine) Load(ctx context.Context, _ string) error {
	f.loads.Add(1)
	if f.loadDelay > 0 {
		select {
		case <-time.After(f.loadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.loadErr
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, _ llm.Params) (string, error) {
	active := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		observed := f.maxActive.Load()
		if active <= observed || f.maxActive.CompareAndSwap(observed, active) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.response != "" {
		return f.response, nil
	}
	return "echo: " + prompt, nil
}

func (f *fakeEngine) Close() error { return nil }

func newResource(engine llm.Engine) *model.Resource {
	return model.NewResource(engine, "/models/test.gguf", llm.Params{MaxTokens: 32}, logging.NewNop())
}

func TestEnsureLoadedLoadsOnce(t *testing.T) {
	engine := &fakeEngine{loadDelay: 10 * time.Millisecond}
	resource := newResource(engine)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = resource.EnsureLoaded(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("waiter %d: %v", i, err)
		}
	}
	if loads := engine.loads.Load(); loads != 1 {
		t.Fatalf("engine loaded %d times, want 1", loads)
	}
	if state := resource.State(); state != model.StateReady {
		t.Fatalf("state = %v, want ready", state)
	}
}

func TestFailedLoadIsSticky(t *testing.T) {
	engine := &fakeEngine{loadErr: errors.New("file truncated")}
	resource := newResource(engine)

	first := resource.EnsureLoaded(context.Background())
	if !model.IsLoadError(first) {
		t.Fatalf("first error = %v, want LoadError", first)
	}

	second := resource.EnsureLoaded(context.Background())
	if !errors.Is(second, first) && second.Error() != first.Error() {
		t.Fatalf("second error %v does not match first %v", second, first)
	}
	if loads := engine.loads.Load(); loads != 1 {
		t.Fatalf("engine loaded %d times after failure, want 1 (no retry)", loads)
	}
	if state := resource.State(); state != model.StateFailed {
		t.Fatalf("state = %v, want failed", state)
	}
}

func TestInferSerializes(t *testing.T) {
	engine := &fakeEngine{}
	resource := newResource(engine)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resource.Infer(context.Background(), "p", 16); err != nil {
				t.Errorf("Infer: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive := engine.maxActive.Load(); maxActive != 1 {
		t.Fatalf("observed %d concurrent generations, want 1", maxActive)
	}
}

func TestInferFailureLeavesModelReady(t *testing.T) {
	engine := &fakeEngine{generateErr: errors.New("out of context")}
	resource := newResource(engine)

	_, err := resource.Infer(context.Background(), "p", 16)
	if !model.IsInferenceError(err) {
		t.Fatalf("err = %v, want InferenceError", err)
	}
	if state := resource.State(); state != model.StateReady {
		t.Fatalf("state = %v, want ready after inference failure", state)
	}

	engine.generateErr = nil
	if _, err := resource.Infer(context.Background(), "p", 16); err != nil {
		t.Fatalf("Infer after recovery: %v", err)
	}
}

func TestEnsureLoadedWaiterHonorsContext(t *testing.T) {
	engine := &fakeEngine{loadDelay: 200 * time.Millisecond}
	resource := newResource(engine)

	go resource.EnsureLoaded(context.Background()) //nolint:errcheck

	// Give the first caller time to claim the load.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := resource.EnsureLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
