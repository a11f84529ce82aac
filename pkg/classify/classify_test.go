package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/testforge/rollup/pkg/source"
)

func results(statuses ...string) []source.TestResult {
	out := make([]source.TestResult, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, source.TestResult{Status: s})
	}

	return out
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     Outcome
	}{
		{"no results", nil, OutcomeNoResult},
		{"all passed", []string{"passed", "passed"}, OutcomePassed},
		{"single passed", []string{"passed"}, OutcomePassed},
		{"all skipped", []string{"skipped", "skipped"}, OutcomeSkipped},
		{"any failed wins", []string{"passed", "failed", "passed"}, OutcomeFailed},
		{"failed beats blocked", []string{"blocked", "failed"}, OutcomeFailed},
		{"blocked beats skipped", []string{"skipped", "blocked"}, OutcomeBlocked},
		{"blocked beats passed", []string{"passed", "blocked"}, OutcomeBlocked},
		{"passed plus skipped is mixed", []string{"passed", "skipped"}, OutcomeMixed},
		{"in progress is mixed", []string{"passed", "inProgress"}, OutcomeMixed},
		{"all in progress is mixed", []string{"inProgress"}, OutcomeMixed},
		{"unknown status is mixed", []string{"wat"}, OutcomeMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunOutcome(results(tt.statuses...)))
		})
	}
}

// Every combination of recognized statuses must land in exactly one
// outcome; the rule list is a partition, not independent counters.
func TestRunOutcome_ExhaustivePairs(t *testing.T) {
	statuses := []string{
		source.StatusPassed,
		source.StatusFailed,
		source.StatusSkipped,
		source.StatusBlocked,
		source.StatusInProgress,
	}

	valid := map[Outcome]bool{
		OutcomePassed:  true,
		OutcomeFailed:  true,
		OutcomeSkipped: true,
		OutcomeBlocked: true,
		OutcomeMixed:   true,
	}

	for _, a := range statuses {
		for _, b := range statuses {
			got := RunOutcome(results(a, b))
			assert.True(t, valid[got],
				"pair (%s,%s) produced %s", a, b, got)
		}
	}
}

func TestPriorityBucket(t *testing.T) {
	tests := []struct {
		priority string
		want     Bucket
	}{
		{"high", BucketHigh},
		{"critical", BucketHigh},
		{"Critical", BucketHigh},
		{"HIGH", BucketHigh},
		{"medium", BucketMedium},
		{"Medium", BucketMedium},
		{"low", BucketLow},
		{"", BucketNone},
		{"urgent", BucketNone},
		{"p1", BucketNone},
	}

	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityBucket(tt.priority))
		})
	}
}
