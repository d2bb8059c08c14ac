package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(llm LLMClient) *Translator {
	return NewTranslator(TranslatorConfig{Logger: testLogger(), LLM: llm})
}

func TestTranslatorCleansModelOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips sql code fences",
			raw:  "```sql\nSELECT sender_bank FROM transactions\n```",
			want: "SELECT sender_bank FROM transactions\nLIMIT 10000",
		},
		{
			name: "cuts preamble before first select",
			raw:  "Here is the query you asked for: SELECT sender_bank FROM transactions LIMIT 5",
			want: "SELECT sender_bank FROM transactions LIMIT 5",
		},
		{
			name: "strips trailing semicolon",
			raw:  "SELECT sender_bank FROM transactions LIMIT 5;",
			want: "SELECT sender_bank FROM transactions LIMIT 5",
		},
		{
			name: "keeps cte intact",
			raw:  "WITH failed AS (SELECT sender_bank FROM transactions) SELECT sender_bank FROM failed LIMIT 5",
			want: "WITH failed AS (SELECT sender_bank FROM transactions) SELECT sender_bank FROM failed LIMIT 5",
		},
		{
			name: "appends row cap when limit missing",
			raw:  "SELECT sender_bank FROM transactions",
			want: "SELECT sender_bank FROM transactions\nLIMIT 10000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator(&fakeLLM{out: []string{tt.raw}})
			got, err := tr.Translate(context.Background(), "which bank sends the most?", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslatorRejectsUnsafeOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty response", raw: ""},
		{name: "destructive statement", raw: "SELECT 1; DROP TABLE transactions"},
		{name: "lowercase destructive statement", raw: "select transaction_id from transactions; delete from transactions"},
		{name: "mixed-case drop", raw: "select 1 from transactions; Drop Table transactions"},
		{name: "no table reference", raw: "SELECT 1"},
		{name: "prose only", raw: "I cannot answer that."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator(&fakeLLM{out: []string{tt.raw}})
			_, err := tr.Translate(context.Background(), "anything", nil)

			var terr *TranslationError
			require.ErrorAs(t, err, &terr)
		})
	}
}

func TestTranslatorInjectsHistoryWindow(t *testing.T) {
	var captured CompletionRequest
	llm := llmFunc(func(_ context.Context, req CompletionRequest) (string, error) {
		captured = req
		return "SELECT sender_bank FROM transactions LIMIT 5", nil
	})
	tr := newTestTranslator(llm)

	history := make([]QueryTurn, 60)
	for i := range history {
		history[i] = QueryTurn{Query: "q", SQL: "s"}
	}
	_, err := tr.Translate(context.Background(), "and now by state?", history)
	require.NoError(t, err)

	// 50 retained turns as user/assistant pairs plus the new question.
	assert.Len(t, captured.Messages, 2*historyWindow+1)
	assert.Equal(t, RoleUser, captured.Messages[len(captured.Messages)-1].Role)
}

func TestTranslateWithRetryRecoversFromTransientFailure(t *testing.T) {
	llm := &fakeLLM{
		errs: []error{errors.New("rate limited"), nil},
		out:  []string{"", "SELECT sender_bank FROM transactions LIMIT 5"},
	}
	tr := newTestTranslator(llm)

	sql, err := tr.TranslateWithRetry(context.Background(), "top banks", nil)

	require.NoError(t, err)
	assert.Equal(t, "SELECT sender_bank FROM transactions LIMIT 5", sql)
	assert.Equal(t, 2, llm.callCount())
}

func TestTranslateWithRetryExhaustsBudget(t *testing.T) {
	llm := &fakeLLM{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	tr := newTestTranslator(llm)

	_, err := tr.TranslateWithRetry(context.Background(), "top banks", nil)

	var terr *TranslationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 3, llm.callCount())
}

// llmFunc adapts a function to the LLMClient interface.
type llmFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f llmFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
