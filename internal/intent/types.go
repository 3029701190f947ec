// Package intent classifies free-text queries over an email archive into a fixed
// taxonomy of intents and extracts the sender, time window and topics they mention.
package intent

// Kind is one of the fixed query intents.
type Kind string

const (
	ThreadSummary    Kind = "thread_summary"
	SenderQuery      Kind = "sender_query"
	TemporalQuery    Kind = "temporal_query"
	ActionItems      Kind = "action_items"
	DecisionTracking Kind = "decision_tracking"
	AggregationQuery Kind = "aggregation_query"
	FactualLookup    Kind = "factual_lookup"
)

// kinds lists the taxonomy from most to least specific. Ties in pattern score
// resolve to the earlier entry.
var kinds = []Kind{
	AggregationQuery,
	ActionItems,
	DecisionTracking,
	ThreadSummary,
	SenderQuery,
	TemporalQuery,
	FactualLookup,
}

var priority = map[Kind]int{
	AggregationQuery: 3,
	ActionItems:      3,
	DecisionTracking: 3,
	ThreadSummary:    3,
	SenderQuery:      2,
	TemporalQuery:    1,
	FactualLookup:    0,
}

// Kinds returns the taxonomy in tie-break order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k belongs to the taxonomy.
func (k Kind) Valid() bool {
	_, ok := priority[k]
	return ok
}

// Detection methods.
const (
	MethodPattern             = "pattern"
	MethodLLM                 = "llm"
	MethodPatternWithLLMCheck = "pattern_with_llm_check"
	MethodPatternLLMFailed    = "pattern_llm_failed"
)

// Metadata holds the structured facts extracted from a query.
type Metadata struct {
	Sender             string   `json:"sender,omitempty"`
	TimeRange          string   `json:"time_range,omitempty"`
	DaysBack           int      `json:"days_back,omitempty"`
	TemporalConstraint string   `json:"temporal_constraint,omitempty"`
	TopicKeywords      []string `json:"topic_keywords,omitempty"`
}

// AspectCount counts how many of sender, time range and topic keywords are present.
func (m Metadata) AspectCount() int {
	n := 0
	if m.Sender != "" {
		n++
	}
	if m.TimeRange != "" {
		n++
	}
	if len(m.TopicKeywords) > 0 {
		n++
	}
	return n
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := m
	if m.TopicKeywords != nil {
		out.TopicKeywords = append([]string(nil), m.TopicKeywords...)
	}
	return out
}

// Intent is the classified purpose of a query. It is built once per query and not modified afterwards.
type Intent struct {
	Primary           Kind     `json:"primary_intent"`
	Confidence        float64  `json:"confidence"`
	Metadata          Metadata `json:"metadata"`
	SecondarySignals  []Kind   `json:"secondary_signals"`
	DetectionMethod   string   `json:"detection_method"`
	PatternConfidence *float64 `json:"pattern_confidence,omitempty"`
}

// HasSignal reports whether k is the primary intent or one of the secondary signals.
func (i Intent) HasSignal(k Kind) bool {
	if i.Primary == k {
		return true
	}
	for _, s := range i.SecondarySignals {
		if s == k {
			return true
		}
	}
	return false
}

// HasTemporalSignal reports whether the query asks for time-ordered results.
func (i Intent) HasTemporalSignal() bool {
	return i.HasSignal(TemporalQuery) || i.Metadata.TimeRange != ""
}
