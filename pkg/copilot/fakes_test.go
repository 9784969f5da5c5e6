package copilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/transcribe"
)

// fakeInfer implements infer.Client with pluggable behavior.
type fakeInfer struct {
	mu sync.Mutex

	completeFn func(req infer.Request) (string, error)
	invokeFn   func(call infer.Call, out any) error

	invoked []string
}

func (f *fakeInfer) Complete(_ context.Context, req infer.Request) (string, error) {
	f.mu.Lock()
	fn := f.completeFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("complete not configured")
	}
	return fn(req)
}

func (f *fakeInfer) Invoke(_ context.Context, call infer.Call, out any) error {
	f.mu.Lock()
	f.invoked = append(f.invoked, call.Name)
	fn := f.invokeFn
	f.mu.Unlock()
	if fn == nil {
		return errors.New("invoke not configured")
	}
	return fn(call, out)
}

func (f *fakeInfer) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invoked...)
}

// echoTranscriber resolves immediately with the audio bytes as text.
func echoTranscriber() transcribe.Transcriber {
	return transcribe.Func(func(_ context.Context, audio []byte, _ string) (*transcribe.Result, error) {
		return &transcribe.Result{Text: string(audio), Language: "en"}, nil
	})
}

// fakeArchiver records saved records.
type fakeArchiver struct {
	mu    sync.Mutex
	saved []*Record
	err   error
}

func (a *fakeArchiver) Save(_ context.Context, rec *Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, rec)
	return nil
}

func (a *fakeArchiver) records() []*Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Record(nil), a.saved...)
}

// quietInfer returns a fakeInfer whose calls all succeed with empty
// output, so background inference never emits events.
func quietInfer() *fakeInfer {
	return &fakeInfer{
		completeFn: func(infer.Request) (string, error) { return "", nil },
		invokeFn:   func(infer.Call, any) error { return errors.New("no output") },
	}
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.Transcriber == nil {
		opts.Transcriber = echoTranscriber()
	}
	if opts.Inference == nil {
		opts.Inference = quietInfer()
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

// nextEvent waits for the next event matching the filter, skipping
// others. It fails the test on timeout.
func nextEvent[T Event](t *testing.T, c <-chan Event, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-c:
			if !ok {
				t.Fatalf("event channel closed while waiting for %T", *new(T))
			}
			if m, ok := ev.(T); ok {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

// expectNoEvent asserts no event matching the type arrives within d.
func expectNoEvent[T Event](t *testing.T, c <-chan Event, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-c:
			if !ok {
				return
			}
			if _, bad := ev.(T); bad {
				t.Fatalf("unexpected %T: %+v", ev, ev)
			}
		case <-deadline:
			return
		}
	}
}
