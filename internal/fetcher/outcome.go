package fetcher

import (
	"Sentinel6G/internal/domain"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeBlocked
	OutcomeMalformed
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch attempt or of a whole orchestrated fetch.
// Payload is set only for Success, StatusCode only for Blocked and Reason only
// for Malformed.
type Outcome struct {
	Kind       OutcomeKind
	Strategy   domain.StrategyKind
	Payload    []byte
	StatusCode int
	Reason     string
	// Attempts counts strategy invocations, retries included.
	Attempts int
	// Escalated is set when the orchestrator fell back to the heavy strategy.
	Escalated bool
}

// Success wraps a usable payload.
func Success(strategy domain.StrategyKind, payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Strategy: strategy, Payload: payload}
}

// Blocked reports a refusal, typically a 403/429 or a challenge page.
func Blocked(strategy domain.StrategyKind, status int) Outcome {
	return Outcome{Kind: OutcomeBlocked, Strategy: strategy, StatusCode: status}
}

// Malformed reports a response that is not a usable feed.
func Malformed(strategy domain.StrategyKind, reason string) Outcome {
	return Outcome{Kind: OutcomeMalformed, Strategy: strategy, Reason: reason}
}

// TimedOut reports a deadline hit before a response arrived.
func TimedOut(strategy domain.StrategyKind) Outcome {
	return Outcome{Kind: OutcomeTimedOut, Strategy: strategy}
}

// OK reports whether the outcome carries a payload.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Err converts a failed outcome into a FetchError; nil on success.
func (o Outcome) Err(source string) error {
	if o.OK() {
		return nil
	}
	fe := &domain.FetchError{
		Source:     source,
		Strategy:   o.Strategy,
		StatusCode: o.StatusCode,
		Reason:     o.Reason,
	}
	switch o.Kind {
	case OutcomeBlocked:
		fe.Kind = domain.FetchBlocked
	case OutcomeTimedOut:
		fe.Kind = domain.FetchTimedOut
	default:
		fe.Kind = domain.FetchMalformed
	}
	return fe
}
