// Package strategy maps a classified intent to one of the four retrieval strategies.
package strategy

import (
	"mailrag/internal/intent"
)

// Name identifies a retriever. The set is closed: Thread, Sender, Temporal and MultiAspect.
type Name string

const (
	Thread      Name = "thread"
	Sender      Name = "sender"
	Temporal    Name = "temporal"
	MultiAspect Name = "multi_aspect"
)

// Valid reports whether n is one of the known retrievers.
func (n Name) Valid() bool {
	switch n {
	case Thread, Sender, Temporal, MultiAspect:
		return true
	}
	return false
}

// Reasons recorded on a Strategy.
const (
	ReasonLowConfidence     = "low_confidence"
	ReasonMultiAspectIntent = "multi_aspect_intent"
	ReasonSecondarySignals  = "secondary_signals"
	ReasonMultipleAspects   = "multiple_aspects"
	ReasonDirect            = "direct"
	ReasonUnknownIntent     = "unknown_intent"
)

// Defaults for the selection thresholds.
const (
	DefaultLowConfidence = 0.5
	DefaultMinAspects    = 2
)

// Strategy is the selected retrieval plan for one query.
type Strategy struct {
	Primary Name            `json:"primary"`
	Filters map[string]any  `json:"filters"`
	Params  intent.Metadata `json:"params"`
	Reason  string          `json:"reason"`
}

// Selector picks a Strategy for an Intent.
type Selector struct {
	lowConfidence float64
	minAspects    int
}

// NewSelector creates a selector. Non-positive values fall back to the defaults.
func NewSelector(lowConfidence float64, minAspects int) *Selector {
	if lowConfidence <= 0 {
		lowConfidence = DefaultLowConfidence
	}
	if minAspects <= 0 {
		minAspects = DefaultMinAspects
	}
	return &Selector{lowConfidence: lowConfidence, minAspects: minAspects}
}

var direct = map[intent.Kind]Name{
	intent.ThreadSummary: Thread,
	intent.SenderQuery:   Sender,
	intent.TemporalQuery: Temporal,
}

// Select maps the intent to a strategy. It always returns a known retriever name.
func (s *Selector) Select(in intent.Intent) Strategy {
	st := Strategy{
		Primary: MultiAspect,
		Filters: map[string]any{},
		Params:  in.Metadata.Clone(),
	}

	if in.Confidence < s.lowConfidence {
		st.Reason = ReasonLowConfidence
		return st
	}
	if reason, ok := s.multiAspectReason(in); ok {
		st.Reason = reason
		return st
	}
	if name, ok := direct[in.Primary]; ok {
		st.Primary = name
		st.Reason = ReasonDirect
		return st
	}
	st.Reason = ReasonUnknownIntent
	return st
}

// IsMultiAspect reports whether the intent needs combined filtering.
func (s *Selector) IsMultiAspect(in intent.Intent) bool {
	_, ok := s.multiAspectReason(in)
	return ok
}

func (s *Selector) multiAspectReason(in intent.Intent) (string, bool) {
	switch in.Primary {
	case intent.AggregationQuery, intent.ActionItems, intent.DecisionTracking:
		return ReasonMultiAspectIntent, true
	}
	if len(in.SecondarySignals) > 0 {
		return ReasonSecondarySignals, true
	}
	if in.Metadata.AspectCount() >= s.minAspects {
		return ReasonMultipleAspects, true
	}
	return "", false
}
