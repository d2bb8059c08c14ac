package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/insight"
)

// hypothesisContextThreshold is the minimum confidence for a hypothesis to
// be offered to the model as an explanation.
const hypothesisContextThreshold = 0.3

// NarratorConfig configures a Narrator.
type NarratorConfig struct {
	Logger        *slog.Logger
	LLM           LLMClient
	NarratePrompt string
	RespondPrompt string
}

// Narrator turns query results and scored hypotheses into executive-facing
// prose, and handles conversational queries on the general track.
type Narrator struct {
	log     *slog.Logger
	llm     LLMClient
	narrate string
	respond string
}

// NewNarrator builds a Narrator from cfg.
func NewNarrator(cfg NarratorConfig) *Narrator {
	return &Narrator{
		log:     cfg.Logger,
		llm:     cfg.LLM,
		narrate: cfg.NarratePrompt,
		respond: cfg.RespondPrompt,
	}
}

// Narrate produces a narrative insight for a data query result.
func (n *Narrator) Narrate(ctx context.Context, query string, result duck.Result, scored []insight.ScoredHypothesis) (string, error) {
	summary := summarizeResult(result)
	hypCtx := hypothesisContext(scored)

	prompt := fmt.Sprintf(
		"USER QUERY: %q\n\nDATA EVIDENCE:\n%s\n\nHYPOTHESIS ANALYSIS:\n%s",
		query, summary, hypCtx,
	)

	text, err := n.llm.Complete(ctx, CompletionRequest{
		System:      n.narrate,
		Messages:    []Message{UserMessage(prompt)},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate insight: %w", err)
	}

	text = strings.TrimSpace(text)
	n.log.Debug("insight generated", "chars", len(text))
	return text, nil
}

// Fallback renders a plain summary when the narrative model is unavailable.
func (n *Narrator) Fallback(result duck.Result) string {
	if result.Empty() {
		return "The query returned no results. Please try rephrasing."
	}
	return "Based on the data:\n\n" + summarizeResult(result)
}

// Respond answers a conversational query, replaying prior general-track
// exchanges for continuity.
func (n *Narrator) Respond(ctx context.Context, query string, history []ChatTurn) (string, error) {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages, UserMessage(turn.User), AssistantMessage(turn.Assistant))
	}
	messages = append(messages, UserMessage(query))

	text, err := n.llm.Complete(ctx, CompletionRequest{
		System:      n.respond,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("general response failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func hypothesisContext(scored []insight.ScoredHypothesis) string {
	if len(scored) == 0 || scored[0].Confidence < hypothesisContextThreshold {
		return "No strong hypothesis match. Provide factual summary without speculating."
	}

	best := scored[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Top Hypothesis: %s (Confidence: %.2f)\n", best.Name, best.Confidence)
	fmt.Fprintf(&b, "Description: %s\n", best.Description)
	fmt.Fprintf(&b, "Business Implication: %s", best.BusinessImplication)

	if len(scored) > 1 && scored[1].Confidence >= hypothesisContextThreshold {
		alt := scored[1]
		fmt.Fprintf(&b, "\n\nAlternative: %s (Confidence: %.2f)\n", alt.Name, alt.Confidence)
		fmt.Fprintf(&b, "Description: %s", alt.Description)
	}
	return b.String()
}

// summarizeResult renders a compact textual view of a result set. Small
// results are shown in full; larger ones are truncated to the first ten
// rows with per-column numeric ranges.
func summarizeResult(res duck.Result) string {
	if res.Empty() {
		return "No data returned from query."
	}

	lines := []string{
		fmt.Sprintf("Result: %d rows x %d columns", res.Count(), len(res.Columns)),
		fmt.Sprintf("Columns: %s", strings.Join(res.Columns, ", ")),
	}

	if res.Count() <= 20 {
		lines = append(lines, "\nFull Data:", renderRows(res.Columns, res.Rows))
	} else {
		lines = append(lines,
			fmt.Sprintf("\nFirst 10 rows (of %d):", res.Count()),
			renderRows(res.Columns, res.Rows[:10]),
		)
		if numeric := numericSummary(res); numeric != "" {
			lines = append(lines, "\nNumeric Summary:", numeric)
		}
	}
	return strings.Join(lines, "\n")
}

func renderRows(columns []string, rows []map[string]any) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		table.Append(cells)
	}
	table.Render()
	return strings.TrimRight(buf.String(), "\n")
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func numericSummary(res duck.Result) string {
	var lines []string
	for _, col := range res.Columns {
		vals := make([]float64, 0, len(res.Rows))
		for _, row := range res.Rows {
			if f, ok := toFloat(row[col]); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			continue
		}
		minV, maxV, sum := vals[0], vals[0], 0.0
		for _, v := range vals {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			sum += v
		}
		lines = append(lines, fmt.Sprintf("  %s: min=%.2f, max=%.2f, mean=%.2f",
			col, minV, maxV, sum/float64(len(vals))))
	}
	return strings.Join(lines, "\n")
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	default:
		return 0, false
	}
}
