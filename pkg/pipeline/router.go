package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Track is the pipeline a query is routed to.
type Track string

const (
	TrackData    Track = "data"
	TrackGeneral Track = "general"
)

// Phrases that strongly suggest a data/analytics query.
var dataPhrases = []string{
	"how many", "count", "total", "average", "mean", "median",
	"sum", "max", "min", "highest", "lowest", "top", "bottom",
	"rate", "percentage", "percent", "ratio", "trend", "growth",
	"compare", "comparison", "breakdown", "distribution",
	"transaction", "transactions", "payment", "payments",
	"fraud", "failure", "success", "failed", "upi",
	"merchant", "bank", "state", "device", "network",
	"p2p", "p2m", "bill", "recharge", "amount",
	"revenue", "volume", "frequency", "monthly", "weekly",
	"daily", "hourly", "weekend", "weekday",
	"sender", "receiver", "age group", "age_group",
	"android", "ios", "wifi", "3g", "4g", "5g",
	"show me", "list", "find", "fetch", "get",
	"which", "what is the", "what are the", "what's the",
	"calculate", "analyse", "analyze", "query",
	"chart", "graph", "plot", "visualize",
	"group by", "sort by", "order by", "filter",
}

// Phrases that strongly suggest a conversational query.
var generalPhrases = []string{
	"hello", "hi", "hey", "thanks", "thank you", "bye",
	"good morning", "good evening", "good night",
	"who are you", "what are you", "your name",
	"help me", "what can you do", "how do you work",
	"explain", "tell me about yourself", "introduce",
}

// Phrases that suggest the query refers to an earlier exchange.
var followupPhrases = []string{
	"both", "either", "which one", "out of", "between them",
	"the first", "the second", "the same", "those", "these",
	"that", "them", "it", "its", "their", "they",
	"more", "less", "better", "worse", "higher", "lower",
	"instead", "also", "as well", "too", "again",
	"now show", "now compare", "now filter", "what about",
	"and what", "and how", "but what", "but how",
	"same thing", "same query", "same data",
	"break it down", "drill down", "go deeper",
	"previous", "last question", "earlier",
}

func compilePhrases(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

var (
	dataPatterns     = compilePhrases(dataPhrases)
	generalPatterns  = compilePhrases(generalPhrases)
	followupPatterns = compilePhrases(followupPhrases)
)

// RouterConfig configures a Router.
type RouterConfig struct {
	Logger *slog.Logger
	LLM    LLMClient
	Prompt string

	// VerdictTTL bounds how long an LLM fallback verdict is memoized.
	VerdictTTL time.Duration
}

// Router classifies incoming queries as data or general. Keyword matching
// decides most queries; ambiguous ones fall back to a small LLM call whose
// verdict is memoized.
type Router struct {
	log      *slog.Logger
	llm      LLMClient
	prompt   string
	verdicts *ttlcache.Cache[string, Track]
}

// NewRouter builds a Router. LLM may be nil, in which case ambiguous
// queries default to the data track.
func NewRouter(cfg RouterConfig) *Router {
	ttl := cfg.VerdictTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Router{
		log:      cfg.Logger,
		llm:      cfg.LLM,
		prompt:   cfg.Prompt,
		verdicts: ttlcache.New(ttlcache.WithTTL[string, Track](ttl)),
	}
}

// Classify routes a query to a track. hasDataHistory reports whether the
// conversation already holds successful data exchanges.
func (r *Router) Classify(ctx context.Context, query string, hasDataHistory bool) Track {
	lower := strings.ToLower(strings.TrimSpace(query))

	if hasDataHistory && matchesAny(lower, followupPatterns) {
		r.log.Debug("router follow-up match", "query", truncate(query, 60))
		return TrackData
	}

	if track, decided := keywordClassify(lower); decided {
		if track == TrackGeneral && hasDataHistory &&
			len(strings.Fields(lower)) <= 10 && strings.Contains(lower, "?") {
			r.log.Debug("router general-to-data override", "query", truncate(query, 60))
			return TrackData
		}
		r.log.Debug("router keyword match", "query", truncate(query, 60), "track", track)
		return track
	}

	return r.llmClassify(ctx, query, lower, hasDataHistory)
}

func matchesAny(lower string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// keywordClassify resolves unambiguous queries without an LLM round trip.
// The second return is false when the query stays ambiguous.
func keywordClassify(lower string) (Track, bool) {
	for _, p := range generalPatterns {
		if p.MatchString(lower) {
			return TrackGeneral, true
		}
	}

	hits := 0
	for _, p := range dataPatterns {
		if p.MatchString(lower) {
			hits++
		}
	}
	if hits >= 2 {
		return TrackData, true
	}
	if hits == 1 && strings.Contains(lower, "?") {
		return TrackData, true
	}

	return "", false
}

func (r *Router) llmClassify(ctx context.Context, query, lower string, hasDataHistory bool) Track {
	key := fmt.Sprintf("%t|%s", hasDataHistory, lower)
	if item := r.verdicts.Get(key); item != nil {
		r.log.Debug("router verdict cache hit", "query", truncate(query, 60), "track", item.Value())
		return item.Value()
	}

	if r.llm == nil {
		return TrackData
	}

	system := r.prompt
	if hasDataHistory {
		system += "\n\nIMPORTANT: The user has previously asked data analysis questions " +
			"in this conversation. If the message seems like a follow-up or " +
			"continuation of data analysis (even if vague), classify as DATA."
	}

	raw, err := r.llm.Complete(ctx, CompletionRequest{
		System:    system,
		Messages:  []Message{UserMessage(query)},
		MaxTokens: 10,
	})
	if err != nil {
		r.log.Warn("router LLM classification failed, defaulting to data", "error", err)
		return TrackData
	}

	verdict := strings.ToUpper(strings.TrimSpace(raw))
	track := TrackData
	if !strings.Contains(verdict, "DATA") && strings.Contains(verdict, "GENERAL") {
		track = TrackGeneral
	}

	r.verdicts.Set(key, track, ttlcache.DefaultTTL)
	r.log.Debug("router LLM verdict", "query", truncate(query, 60), "track", track)
	return track
}
