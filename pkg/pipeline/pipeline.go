// Package pipeline turns natural-language payment questions into narrated,
// hypothesis-backed answers. A router picks the track, a translator produces
// safe SQL, the executor runs it, and detected signals are scored against a
// hypothesis library before the narrator composes the final insight.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/executor"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/insight"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/metrics"
)

// State is the terminal state of one processed query.
type State string

const (
	StateSuccess           State = "SUCCESS"
	StateTranslationFailed State = "TRANSLATION_FAILED"
	StateValidationBlocked State = "VALIDATION_BLOCKED"
	StateExecutionFailed   State = "EXECUTION_FAILED"
	StateGeneralAnswered   State = "GENERAL_ANSWERED"
)

// User-facing copy for each failure track.
const (
	msgTranslationFailed = "I couldn't understand that query. Could you try rephrasing it? " +
		"For example: 'What's the failure rate for bill payments?'"
	msgValidationBlocked = "The generated query was blocked by safety filters."
	msgExecutionFailed   = "The data query encountered an error. Try breaking it into simpler parts."
	msgGeneralFallback   = "Hey! I'm your UPI payments analytics assistant. " +
		"I can help you explore transaction data. Try asking something like " +
		"'What's the failure rate by bank?' or 'Show top merchants by volume'."
)

// maxRankedHypotheses bounds the ranking returned to callers.
const maxRankedHypotheses = 5

// HypothesisRank is one entry of the caller-facing hypothesis ranking.
type HypothesisRank struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Response is the caller-facing record for one processed query. Error is
// a pointer so the key serializes as null when the query succeeded.
type Response struct {
	Query           string           `json:"query"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	State           State            `json:"state"`
	SQL             string           `json:"sql,omitempty"`
	Data            []map[string]any `json:"data"`
	Signals         []string         `json:"signals"`
	Hypotheses      []HypothesisRank `json:"hypotheses"`
	Insight         string           `json:"insight"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	RowsReturned    int              `json:"rows_returned"`
	Error           *string          `json:"error"`
}

func errString(msg string) *string { return &msg }

// Classifier routes a query to a track.
type Classifier interface {
	Classify(ctx context.Context, query string, hasDataHistory bool) Track
}

// SQLGenerator turns natural language into validated SQL.
type SQLGenerator interface {
	TranslateWithRetry(ctx context.Context, query string, history []QueryTurn) (string, error)
}

// InsightNarrator composes the final narrative for both tracks.
type InsightNarrator interface {
	Narrate(ctx context.Context, query string, result duck.Result, scored []insight.ScoredHypothesis) (string, error)
	Fallback(result duck.Result) string
	Respond(ctx context.Context, query string, history []ChatTurn) (string, error)
}

// QueryExecutor runs validated SQL and reports execution statistics.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string, useCache bool) (duck.Result, error)
	Stats() executor.Stats
}

// TableInspector reports row and column counts of the backing table.
type TableInspector interface {
	TableStats(ctx context.Context) (rows, cols int, err error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Logger     *slog.Logger
	Router     Classifier
	Translator SQLGenerator
	Narrator   InsightNarrator
	Executor   QueryExecutor
	DB         TableInspector
	Hypotheses []insight.Hypothesis
	Store      *ConversationStore

	// Validator is the safety gate applied to generated SQL, independent
	// of the translator's own check. Defaults to duck.ValidateQuery.
	Validator func(string) bool

	// ExposeBlockedSQL includes the rejected statement in the response
	// when the safety gate fires. Off by default so unsafe statements
	// are not leaked to callers.
	ExposeBlockedSQL bool
}

// Validate checks that all required collaborators are present.
func (c *EngineConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Router == nil {
		return fmt.Errorf("router is required")
	}
	if c.Translator == nil {
		return fmt.Errorf("translator is required")
	}
	if c.Narrator == nil {
		return fmt.Errorf("narrator is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	return nil
}

// Engine sequences the stages for each incoming query and owns the
// per-conversation history.
type Engine struct {
	log              *slog.Logger
	router           Classifier
	translator       SQLGenerator
	narrator         InsightNarrator
	executor         QueryExecutor
	db               TableInspector
	hypotheses       []insight.Hypothesis
	store            *ConversationStore
	validate         func(string) bool
	exposeBlockedSQL bool
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	store := cfg.Store
	if store == nil {
		store = NewConversationStore()
	}
	validate := cfg.Validator
	if validate == nil {
		validate = duck.ValidateQuery
	}
	return &Engine{
		log:              cfg.Logger,
		router:           cfg.Router,
		translator:       cfg.Translator,
		narrator:         cfg.Narrator,
		executor:         cfg.Executor,
		db:               cfg.DB,
		hypotheses:       cfg.Hypotheses,
		store:            store,
		validate:         validate,
		exposeBlockedSQL: cfg.ExposeBlockedSQL,
	}, nil
}

// ProcessQuery runs one query through the pipeline. conversationID may be
// empty, in which case no history is read or written.
func (e *Engine) ProcessQuery(ctx context.Context, query, conversationID string) Response {
	start := time.Now()
	resp := Response{
		Query:          query,
		ConversationID: conversationID,
		Data:           []map[string]any{},
		Signals:        []string{},
		Hypotheses:     []HypothesisRank{},
	}

	hasDataHistory := e.store.HasDataHistory(conversationID)
	track := e.router.Classify(ctx, query, hasDataHistory)
	if track == TrackGeneral {
		return e.finish(e.handleGeneral(ctx, query, conversationID, resp), start)
	}

	sql, err := e.translator.TranslateWithRetry(ctx, query, e.store.DataHistory(conversationID))
	if err != nil {
		e.log.Warn("translation failed", "query", truncate(query, 100), "error", err)
		resp.State = StateTranslationFailed
		resp.Error = errString(err.Error())
		resp.Insight = msgTranslationFailed
		return e.finish(resp, start)
	}
	resp.SQL = sql

	if !e.validate(sql) {
		e.log.Warn("generated SQL blocked", "sql", truncate(sql, 150))
		resp.State = StateValidationBlocked
		resp.Error = errString("SQL failed safety validation.")
		resp.Insight = msgValidationBlocked
		if !e.exposeBlockedSQL {
			resp.SQL = ""
		}
		return e.finish(resp, start)
	}

	result, err := e.executor.Execute(ctx, sql, true)
	if err != nil {
		resp.State = StateExecutionFailed
		resp.Error = errString(err.Error())
		resp.Insight = msgExecutionFailed
		return e.finish(resp, start)
	}
	resp.Data = result.Rows
	resp.RowsReturned = result.Count()

	signals := e.detectSignals(result, query)
	resp.Signals = signalNames(signals)

	scored := e.scoreHypotheses(signals)
	for _, s := range scored {
		if len(resp.Hypotheses) == maxRankedHypotheses {
			break
		}
		resp.Hypotheses = append(resp.Hypotheses, HypothesisRank{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Score:       s.Confidence,
		})
	}

	narrative, err := e.narrator.Narrate(ctx, query, result, scored)
	if err != nil {
		e.log.Warn("narrative generation failed, using fallback", "error", err)
		narrative = e.narrator.Fallback(result)
	}
	resp.Insight = narrative
	resp.State = StateSuccess

	e.store.AppendData(conversationID, QueryTurn{Query: query, SQL: sql})
	return e.finish(resp, start)
}

func (e *Engine) handleGeneral(ctx context.Context, query, conversationID string, resp Response) Response {
	resp.State = StateGeneralAnswered

	answer, err := e.narrator.Respond(ctx, query, e.store.GeneralHistory(conversationID))
	if err != nil {
		e.log.Warn("general response failed, using canned reply", "error", err)
		resp.Insight = msgGeneralFallback
		return resp
	}
	resp.Insight = answer
	e.store.AppendGeneral(conversationID, ChatTurn{User: query, Assistant: answer})
	return resp
}

// detectSignals never aborts the pipeline: an internal fault degrades to an
// empty signal set.
func (e *Engine) detectSignals(result duck.Result, query string) (set insight.Set) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("signal detection fault", "panic", r)
			set = insight.Set{}
		}
	}()
	return insight.DetectSet(result, query)
}

// scoreHypotheses degrades to an empty ranking on an internal fault.
func (e *Engine) scoreHypotheses(signals insight.Set) (scored []insight.ScoredHypothesis) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("hypothesis scoring fault", "panic", r)
			scored = nil
		}
	}()
	return insight.Score(signals, e.hypotheses)
}

func (e *Engine) finish(resp Response, start time.Time) Response {
	elapsed := time.Since(start)
	resp.ExecutionTimeMs = math.Round(elapsed.Seconds()*1000*100) / 100
	metrics.QueriesTotal.WithLabelValues(string(resp.State)).Inc()
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	e.log.Info("query processed",
		"state", resp.State,
		"rows", resp.RowsReturned,
		"elapsed_ms", resp.ExecutionTimeMs,
	)
	return resp
}

func signalNames(set insight.Set) []string {
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// ClearConversation drops history for one conversation, or all history when
// id is empty.
func (e *Engine) ClearConversation(id string) {
	if id == "" {
		e.store.ClearAll()
		e.log.Info("cleared all conversation histories")
		return
	}
	e.store.Clear(id)
	e.log.Info("cleared conversation history", "conversation_id", id)
}

// DatabaseStats describes the backing table.
type DatabaseStats struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// SystemStats is the operational snapshot returned to callers.
type SystemStats struct {
	Database            DatabaseStats  `json:"database"`
	Executor            executor.Stats `json:"executor"`
	HistoryLength       int            `json:"history_length"`
	ActiveConversations int            `json:"active_conversations"`
	HypothesesLoaded    int            `json:"hypotheses_loaded"`
}

// SystemStats reports table, executor, history, and library counts.
func (e *Engine) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		Executor:            e.executor.Stats(),
		HistoryLength:       e.store.TotalDataTurns(),
		ActiveConversations: e.store.Conversations(),
		HypothesesLoaded:    len(e.hypotheses),
	}
	if e.db != nil {
		rows, cols, err := e.db.TableStats(ctx)
		if err != nil {
			return stats, fmt.Errorf("table stats: %w", err)
		}
		stats.Database = DatabaseStats{Rows: rows, Columns: cols}
	}
	return stats, nil
}
