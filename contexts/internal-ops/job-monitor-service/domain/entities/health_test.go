package entities

import (
	"testing"
	"time"
)

var evalNow = time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)

func TestEvaluateHealthClassifiesSnapshots(t *testing.T) {
	policy := DefaultPolicy("media")
	cases := []struct {
		name     string
		snapshot QueueSnapshot
		want     HealthStatus
		issues   int
	}{
		{
			name:     "healthy",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 10, Completed: 100, Failed: 1, OldestWaitingSeconds: 5, Workers: 2},
			want:     HealthHealthy,
		},
		{
			name:     "deep backlog degrades",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 600, Completed: 100, Workers: 2},
			want:     HealthDegraded,
			issues:   1,
		},
		{
			name:     "failure rate is critical",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 1, Completed: 70, Failed: 30, Workers: 2},
			want:     HealthCritical,
			issues:   1,
		},
		{
			name:     "small backlog without workers stays healthy",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 5, Workers: 0},
			want:     HealthHealthy,
		},
		{
			name:     "stale backlog is critical",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 5, OldestWaitingSeconds: 200, Workers: 1},
			want:     HealthCritical,
			issues:   1,
		},
		{
			name:     "slow backlog degrades",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 5, OldestWaitingSeconds: 90, Workers: 1},
			want:     HealthDegraded,
			issues:   1,
		},
		{
			name:     "paused",
			snapshot: QueueSnapshot{Queue: "media", Waiting: 5000, Paused: true},
			want:     HealthPaused,
			issues:   1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			health := EvaluateHealth(tc.snapshot, policy, evalNow)
			if health.Status != tc.want {
				t.Fatalf("expected %s, got %s (issues=%v)", tc.want, health.Status, health.Issues)
			}
			if len(health.Issues) != tc.issues {
				t.Fatalf("expected %d issues, got %v", tc.issues, health.Issues)
			}
		})
	}
}

func TestFailureRateWithoutProcessedJobsIsZero(t *testing.T) {
	if rate := (QueueSnapshot{Queue: "q"}).FailureRate(); rate != 0 {
		t.Fatalf("expected zero failure rate, got %f", rate)
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := (QueueSnapshot{Queue: "q", Waiting: -1}).Validate(); err == nil {
		t.Fatalf("expected negative waiting to be rejected")
	}
	if err := (QueueSnapshot{Queue: " "}).Validate(); err == nil {
		t.Fatalf("expected blank queue to be rejected")
	}
	if err := (QueueSnapshot{Queue: "q", Waiting: 3}).Validate(); err != nil {
		t.Fatalf("expected valid snapshot, got %v", err)
	}
}
