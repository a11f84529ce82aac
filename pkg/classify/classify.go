// Package classify holds the pure classification rules applied during
// rollups: deriving a single outcome for a test run from its results,
// and mapping test case priorities into reporting buckets.
package classify

import (
	"strings"

	"github.com/testforge/rollup/pkg/source"
)

// Outcome is the derived result of a whole test run.
type Outcome int

const (
	// OutcomeNoResult marks a run with zero results; it is excluded
	// from every summary bucket.
	OutcomeNoResult Outcome = iota
	OutcomePassed
	OutcomeFailed
	OutcomeSkipped
	OutcomeBlocked
	// OutcomeMixed covers non-failing, non-blocking combinations that
	// are neither all-skipped nor all-passed (e.g. some results still
	// in progress). Such runs count toward automation and duration
	// tallies but not toward the outcome counters.
	OutcomeMixed
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoResult:
		return "no-result"
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// RunOutcome derives the single outcome of a run from its results.
// The rules are a strict priority order, first match wins:
//
//  1. no results        -> OutcomeNoResult
//  2. any failed        -> OutcomeFailed
//  3. any blocked       -> OutcomeBlocked
//  4. all skipped       -> OutcomeSkipped
//  5. all passed        -> OutcomePassed
//  6. anything else     -> OutcomeMixed
//
// Every input maps to exactly one outcome.
func RunOutcome(results []source.TestResult) Outcome {
	if len(results) == 0 {
		return OutcomeNoResult
	}

	allSkipped := true
	allPassed := true

	for _, res := range results {
		switch res.Status {
		case source.StatusFailed:
			return OutcomeFailed
		case source.StatusSkipped:
			allPassed = false
		case source.StatusPassed:
			allSkipped = false
		default:
			allPassed = false
			allSkipped = false
		}
	}

	for _, res := range results {
		if res.Status == source.StatusBlocked {
			return OutcomeBlocked
		}
	}

	switch {
	case allSkipped:
		return OutcomeSkipped
	case allPassed:
		return OutcomePassed
	default:
		return OutcomeMixed
	}
}

// Bucket is a merged priority bucket for catalog reporting.
type Bucket int

const (
	// BucketNone is returned for priorities outside the known set;
	// such cases count toward totals but never toward a bucket.
	BucketNone Bucket = iota
	BucketHigh
	BucketMedium
	BucketLow
)

// PriorityBucket maps a test case priority label to its reporting
// bucket. Matching is case-insensitive and "critical" merges into the
// high bucket. This is intentionally looser than the bug analytics
// breakdown, which matches priority labels literally.
func PriorityBucket(priority string) Bucket {
	switch strings.ToLower(priority) {
	case source.PriorityHigh, source.PriorityCritical:
		return BucketHigh
	case source.PriorityMedium:
		return BucketMedium
	case source.PriorityLow:
		return BucketLow
	default:
		return BucketNone
	}
}
