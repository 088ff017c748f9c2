package domain

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies terminal acquisition failures.
type FetchErrorKind string

const (
	FetchBlocked   FetchErrorKind = "blocked"
	FetchTimedOut  FetchErrorKind = "timed_out"
	FetchMalformed FetchErrorKind = "malformed"
)

// FetchError reports why a source could not be acquired in this run.
type FetchError struct {
	Kind       FetchErrorKind
	Source     string
	Strategy   StrategyKind
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s via %s: %s", e.Source, e.Strategy, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ParseError marks a single feed entry that could not be turned into an Article.
type ParseError struct {
	Source string
	Index  int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s entry %d: %s", e.Source, e.Index, e.Reason)
}

// OracleErrorKind distinguishes an unreachable oracle from a bad answer.
type OracleErrorKind string

const (
	OracleUnavailable     OracleErrorKind = "unavailable"
	OracleSchemaViolation OracleErrorKind = "schema_violation"
)

// OracleError is always recovered by substituting a degraded profile.
type OracleError struct {
	Kind OracleErrorKind
	Err  error
}

func (e *OracleError) Error() string {
	if e.Err == nil {
		return "oracle " + string(e.Kind)
	}
	return fmt.Sprintf("oracle %s: %v", e.Kind, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// AggregationError excludes one profile from aggregation.
type AggregationError struct {
	ArticleID Fingerprint
	Reason    string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate profile %s: %s", e.ArticleID, e.Reason)
}

// ErrRunLocked is returned when another run holds the data directory lock.
var ErrRunLocked = errors.New("another run holds the lock")
