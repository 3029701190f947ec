package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"mailrag/internal/contextutil"
	"mailrag/internal/llm"
	"mailrag/internal/timerange"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks mailrag/internal/intent Completer

const (
	// DefaultLLMThreshold is the pattern confidence below which the LLM is consulted.
	DefaultLLMThreshold = 0.6

	// fallbackConfidence is assigned when no pattern matches at all.
	fallbackConfidence = 0.3
	// secondaryThreshold is the score another intent needs to be reported as a secondary signal.
	secondaryThreshold = 0.3
)

// Completer is the LLM completion port used by the fallback classifier.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config controls the classifier.
type Config struct {
	// LLMEnabled turns on the LLM fallback. It also requires a non-nil Completer.
	LLMEnabled bool
	// LLMThreshold is the pattern confidence below which the LLM is consulted.
	// Zero means DefaultLLMThreshold.
	LLMThreshold float64
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Classifier maps queries to intents using regex pattern groups with an optional LLM fallback.
type Classifier struct {
	completer Completer
	cfg       Config
	logger    *slog.Logger
}

// NewClassifier creates a classifier. completer may be nil when the LLM fallback is disabled.
func NewClassifier(completer Completer, cfg Config, logger *slog.Logger) *Classifier {
	if cfg.LLMThreshold <= 0 {
		cfg.LLMThreshold = DefaultLLMThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{completer: completer, cfg: cfg, logger: logger}
}

// Detect classifies the query. It never fails: LLM problems degrade to the pattern result.
func (c *Classifier) Detect(ctx context.Context, query string) Intent {
	logger := contextutil.LoggerFromContextOr(ctx, c.logger)

	result, scores := c.detectPatterns(query)
	logger.DebugContext(ctx, "pattern classification",
		"intent", result.Primary,
		"confidence", result.Confidence,
		"secondary", result.SecondarySignals,
	)

	if !c.cfg.LLMEnabled || c.completer == nil || result.Confidence >= c.cfg.LLMThreshold {
		return result
	}

	llmResult, err := c.classifyWithLLM(ctx, query)
	if err != nil {
		logger.WarnContext(ctx, "LLM intent fallback failed, keeping pattern result",
			"error", err,
			"pattern_intent", result.Primary,
		)
		result.DetectionMethod = MethodPatternLLMFailed
		return result
	}

	if llmResult.Confidence <= result.Confidence {
		logger.DebugContext(ctx, "LLM intent not more confident than patterns",
			"llm_intent", llmResult.Intent,
			"llm_confidence", llmResult.Confidence,
		)
		result.DetectionMethod = MethodPatternWithLLMCheck
		return result
	}

	patternConfidence := result.Confidence
	merged := Intent{
		Primary:           llmResult.Intent,
		Confidence:        llmResult.Confidence,
		Metadata:          c.mergeMetadata(result.Metadata, llmResult.Metadata),
		DetectionMethod:   MethodLLM,
		PatternConfidence: &patternConfidence,
	}
	merged.SecondarySignals = secondarySignals(merged.Primary, scores, merged.Metadata)

	logger.InfoContext(ctx, "LLM intent replaced pattern result",
		"intent", merged.Primary,
		"confidence", merged.Confidence,
		"pattern_intent", result.Primary,
		"pattern_confidence", patternConfidence,
	)
	return merged
}

// detectPatterns runs the regex battery and metadata extraction.
func (c *Classifier) detectPatterns(query string) (Intent, map[Kind]float64) {
	scores := make(map[Kind]float64, len(kinds))
	for kind, group := range patternGroups {
		matched := 0
		for _, p := range group {
			if p.matches(query) {
				matched++
			}
		}
		if matched > 0 {
			scores[kind] = math.Min(0.6+0.2*float64(matched), 1.0)
		}
	}

	primary, confidence := FactualLookup, fallbackConfidence
	best := 0.0
	for _, kind := range kinds {
		// kinds is in tie-break order, so a strictly greater score is needed to win.
		if scores[kind] > best {
			best = scores[kind]
			primary = kind
		}
	}
	if best > 0 {
		confidence = best
	}

	var meta Metadata
	meta.Sender = extractSender(query)
	extractTime(query, c.cfg.Now(), &meta)
	meta.TopicKeywords = extractTopics(query, meta.Sender)

	return Intent{
		Primary:          primary,
		Confidence:       confidence,
		Metadata:         meta,
		SecondarySignals: secondarySignals(primary, scores, meta),
		DetectionMethod:  MethodPattern,
	}, scores
}

// secondarySignals lists every other intent scoring above the threshold, plus the sender and
// temporal intents when their metadata was extracted but they are not primary.
func secondarySignals(primary Kind, scores map[Kind]float64, meta Metadata) []Kind {
	signals := make([]Kind, 0, 2)
	add := func(k Kind) {
		if k == primary {
			return
		}
		for _, s := range signals {
			if s == k {
				return
			}
		}
		signals = append(signals, k)
	}
	for _, kind := range kinds {
		if scores[kind] > secondaryThreshold {
			add(kind)
		}
	}
	if meta.Sender != "" {
		add(SenderQuery)
	}
	if meta.TimeRange != "" {
		add(TemporalQuery)
	}
	return signals
}

type llmClassification struct {
	Intent     Kind        `json:"intent"`
	Confidence float64     `json:"confidence"`
	Metadata   llmMetadata `json:"metadata"`
}

type llmMetadata struct {
	Sender             string   `json:"sender"`
	TimeRange          string   `json:"time_range"`
	TemporalConstraint string   `json:"temporal_constraint"`
	TopicKeywords      []string `json:"topic_keywords"`
}

func (c *Classifier) classifyWithLLM(ctx context.Context, query string) (llmClassification, error) {
	reply, err := c.completer.Complete(ctx, buildPrompt(query))
	if err != nil {
		return llmClassification{}, fmt.Errorf("failed to complete classification prompt: %w", err)
	}

	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return llmClassification{}, fmt.Errorf("failed to extract classification: %w", err)
	}

	var parsed llmClassification
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llmClassification{}, fmt.Errorf("failed to decode classification: %w", err)
	}
	parsed.Intent = Kind(strings.ToLower(strings.TrimSpace(string(parsed.Intent))))
	if !parsed.Intent.Valid() {
		return llmClassification{}, fmt.Errorf("unknown intent %q", parsed.Intent)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 || math.IsNaN(parsed.Confidence) {
		return llmClassification{}, fmt.Errorf("confidence %v out of range", parsed.Confidence)
	}
	return parsed, nil
}

// mergeMetadata overlays non-empty LLM fields on the pattern-extracted metadata.
func (c *Classifier) mergeMetadata(base Metadata, fromLLM llmMetadata) Metadata {
	out := base.Clone()
	if s := strings.TrimSpace(fromLLM.Sender); s != "" {
		out.Sender = capitalize(s)
	}
	if tr := strings.ToLower(strings.TrimSpace(fromLLM.TimeRange)); tr != "" && tr != out.TimeRange {
		if days := timerange.DaysBack(tr, c.cfg.Now()); days > 0 {
			out.TimeRange = tr
			out.DaysBack = days
		}
	}
	if tc := strings.TrimSpace(fromLLM.TemporalConstraint); tc != "" {
		out.TemporalConstraint = tc
	}
	if len(fromLLM.TopicKeywords) > 0 {
		out.TopicKeywords = append([]string(nil), fromLLM.TopicKeywords...)
	}
	return out
}

func buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Classify the intent of this query over an email archive.\n\n")
	b.WriteString("Intents:\n")
	b.WriteString("- thread_summary: summarize a conversation or thread\n")
	b.WriteString("- sender_query: what a specific person wrote\n")
	b.WriteString("- temporal_query: messages from a time period\n")
	b.WriteString("- action_items: tasks, todos, follow-ups\n")
	b.WriteString("- decision_tracking: decisions, approvals, outcomes\n")
	b.WriteString("- aggregation_query: lists, counts or overviews across many messages\n")
	b.WriteString("- factual_lookup: a specific fact\n\n")
	b.WriteString("Time ranges: yesterday, today, last_week, last_month, this_week, this_month, recent, last_<N>_days.\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"intent": "<intent>", "confidence": <0.0-1.0>, "metadata": {"sender": "", "time_range": "", "topic_keywords": []}}`)
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	return b.String()
}
