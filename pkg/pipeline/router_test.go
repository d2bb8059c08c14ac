package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM scripts one response per call, in order.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
	out   []string
	errs  []error
}

func (f *fakeLLM) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.out) {
		return f.out[i], nil
	}
	return "", io.EOF
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterKeywordClassification(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		hasHistory bool
		want       Track
	}{
		{
			name:  "greeting routes to general",
			query: "hello there",
			want:  TrackGeneral,
		},
		{
			name:  "two data phrases route to data",
			query: "show me transactions by bank",
			want:  TrackData,
		},
		{
			name:  "single data phrase with question mark routes to data",
			query: "how many yesterday?",
			want:  TrackData,
		},
		{
			name:       "follow-up referent with data history routes to data",
			query:      "what about them",
			hasHistory: true,
			want:       TrackData,
		},
		{
			name:       "short general question with data history overrides to data",
			query:      "hello?",
			hasHistory: true,
			want:       TrackData,
		},
		{
			name:  "follow-up referent without history stays ambiguous, defaults to data",
			query: "what about them",
			want:  TrackData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(RouterConfig{Logger: testLogger()})
			got := r.Classify(context.Background(), tt.query, tt.hasHistory)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouterIsIdempotent(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: testLogger()})
	for range 5 {
		assert.Equal(t, TrackGeneral, r.Classify(context.Background(), "hello there", false))
		assert.Equal(t, TrackData, r.Classify(context.Background(), "total failed transactions", false))
	}
}

func TestRouterKeywordDecisionSkipsLLM(t *testing.T) {
	llm := &fakeLLM{out: []string{"GENERAL"}}
	r := NewRouter(RouterConfig{Logger: testLogger(), LLM: llm})

	got := r.Classify(context.Background(), "what is the failure rate by bank?", false)

	require.Equal(t, TrackData, got)
	assert.Zero(t, llm.callCount())
}

func TestRouterLLMFallback(t *testing.T) {
	llm := &fakeLLM{out: []string{"GENERAL"}}
	r := NewRouter(RouterConfig{Logger: testLogger(), LLM: llm})

	got := r.Classify(context.Background(), "ok then proceed", false)

	require.Equal(t, TrackGeneral, got)
	assert.Equal(t, 1, llm.callCount())
}

func TestRouterLLMVerdictIsMemoized(t *testing.T) {
	llm := &fakeLLM{out: []string{"GENERAL", "DATA"}}
	r := NewRouter(RouterConfig{Logger: testLogger(), LLM: llm})

	first := r.Classify(context.Background(), "ok then proceed", false)
	second := r.Classify(context.Background(), "ok then proceed", false)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, llm.callCount())
}

func TestRouterLLMFailureDefaultsToData(t *testing.T) {
	llm := &fakeLLM{errs: []error{io.ErrUnexpectedEOF}}
	r := NewRouter(RouterConfig{Logger: testLogger(), LLM: llm})

	got := r.Classify(context.Background(), "ok then proceed", false)

	assert.Equal(t, TrackData, got)
}
