package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
)

const (
	// maxResultRows caps generated queries that carry no explicit LIMIT.
	maxResultRows = 10000

	// historyWindow bounds how many prior exchanges are replayed to the
	// model for follow-up context.
	historyWindow = 50
)

// TranslationError reports that natural language could not be turned into
// safe, executable SQL.
type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed: %v", e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

var (
	fenceOpen  = regexp.MustCompile("```sql\\s*")
	fenceClose = regexp.MustCompile("```\\s*")
	sqlStart   = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
)

// TranslatorConfig configures a Translator.
type TranslatorConfig struct {
	Logger *slog.Logger
	LLM    LLMClient
	Prompt string

	// MaxRetries is the number of additional attempts after a failed
	// translation. Defaults to 2.
	MaxRetries int
}

// Translator converts natural language questions into executable DuckDB SQL.
type Translator struct {
	log        *slog.Logger
	llm        LLMClient
	prompt     string
	maxRetries int
}

// NewTranslator builds a Translator from cfg.
func NewTranslator(cfg TranslatorConfig) *Translator {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &Translator{
		log:        cfg.Logger,
		llm:        cfg.LLM,
		prompt:     cfg.Prompt,
		maxRetries: retries,
	}
}

// Translate produces SQL for query, replaying prior exchanges so the model
// can resolve follow-up references.
func (t *Translator) Translate(ctx context.Context, query string, history []QueryTurn) (string, error) {
	t.log.Debug("translating query", "query", truncate(query, 100))

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages, UserMessage(turn.Query), AssistantMessage(turn.SQL))
	}
	messages = append(messages, UserMessage(query))

	raw, err := t.llm.Complete(ctx, CompletionRequest{
		System:    t.prompt,
		Messages:  messages,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", &TranslationError{Err: fmt.Errorf("failed to generate SQL: %w", err)}
	}

	sql := cleanSQL(raw)
	if !duck.ValidateQuery(sql) {
		return "", &TranslationError{Err: fmt.Errorf("generated SQL rejected: %s", truncate(sql, 200))}
	}
	if !strings.Contains(strings.ToLower(sql), duck.TableName) {
		return "", &TranslationError{Err: fmt.Errorf("generated SQL does not reference %s", duck.TableName)}
	}
	sql = ensureLimit(sql, maxResultRows)

	t.log.Debug("generated SQL", "sql", truncate(sql, 200))
	return sql, nil
}

// TranslateWithRetry retries transient translation failures before giving up.
func (t *Translator) TranslateWithRetry(ctx context.Context, query string, history []QueryTurn) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &TranslationError{Err: err}
		}
		sql, err := t.Translate(ctx, query, history)
		if err == nil {
			return sql, nil
		}
		lastErr = err
		t.log.Warn("translation attempt failed", "attempt", attempt+1, "error", err)
	}
	return "", &TranslationError{
		Err: fmt.Errorf("exhausted %d attempts: %w", t.maxRetries+1, lastErr),
	}
}

// cleanSQL strips markdown fences and leading prose from a model response,
// leaving only the query text.
func cleanSQL(raw string) string {
	s := fenceOpen.ReplaceAllString(raw, "")
	s = fenceClose.ReplaceAllString(s, "")
	if loc := sqlStart.FindStringIndex(s); loc != nil {
		s = s[loc[0]:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

func ensureLimit(sql string, maxRows int) string {
	if !strings.Contains(strings.ToUpper(sql), "LIMIT") {
		return fmt.Sprintf("%s\nLIMIT %d", sql, maxRows)
	}
	return sql
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
