package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotAndHealthRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.LatestSnapshot(ctx, "media"); err != domainerrors.ErrQueueNotFound {
		t.Fatalf("expected queue not found, got %v", err)
	}
	snapshot := entities.QueueSnapshot{Queue: "media", Waiting: 12, Workers: 2, Paused: true, CapturedAt: now}
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snapshot.Waiting = 20
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}
	loaded, err := store.LatestSnapshot(ctx, "media")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded.Waiting != 20 || !loaded.Paused || !loaded.CapturedAt.Equal(now) {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	health := entities.QueueHealth{Queue: "media", Status: entities.HealthDegraded, Issues: []string{"slow"}, EvaluatedAt: now}
	if err := store.SaveHealth(ctx, health); err != nil {
		t.Fatalf("save health: %v", err)
	}
	got, found, err := store.GetHealth(ctx, "media")
	if err != nil || !found {
		t.Fatalf("load health: found=%v err=%v", found, err)
	}
	if got.Status != entities.HealthDegraded || len(got.Issues) != 1 || got.Issues[0] != "slow" {
		t.Fatalf("unexpected health: %+v", got)
	}
}

func TestLatencySamplesAreTrimmed(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	for i := 1; i <= 5; i++ {
		if err := store.AppendLatencySample(ctx, "email", time.Duration(i)*time.Second, 3); err != nil {
			t.Fatalf("append sample: %v", err)
		}
	}
	samples, err := store.ListLatencySamples(ctx, "email")
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(samples) != 3 || samples[0] != 3*time.Second || samples[2] != 5*time.Second {
		t.Fatalf("unexpected samples: %v", samples)
	}
}

func TestRunsFilteredNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	runs := []entities.JobRun{
		{RunID: "r1", Queue: "email", JobName: "deliver", Status: entities.RunSucceeded, Attempt: 1, Duration: time.Second, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{RunID: "r2", Queue: "email", JobName: "deliver", Status: entities.RunFailed, Attempt: 1, Error: "smtp down", StartedAt: base, FinishedAt: base.Add(2 * time.Second)},
		{RunID: "r3", Queue: "payouts", JobName: "process", Status: entities.RunSucceeded, Attempt: 1, StartedAt: base, FinishedAt: base.Add(3 * time.Second)},
	}
	for _, run := range runs {
		if err := store.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	items, err := store.ListRuns(ctx, ports.RunFilter{Queue: "email", Limit: 10})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(items) != 2 || items[0].RunID != "r2" || items[0].Error != "smtp down" {
		t.Fatalf("unexpected runs: %+v", items)
	}
	failed, err := store.ListRuns(ctx, ports.RunFilter{Status: entities.RunFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].RunID != "r2" {
		t.Fatalf("unexpected failed runs: %+v", failed)
	}
}

func TestPolicyFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	policy, err := store.GetPolicy(ctx, "media")
	if err != nil {
		t.Fatalf("get default policy: %v", err)
	}
	if policy != entities.DefaultPolicy("media") {
		t.Fatalf("expected default policy, got %+v", policy)
	}

	policy.MaxWorkers = 25
	policy.TargetWait = 90 * time.Second
	if err := store.UpsertPolicy(ctx, policy); err != nil {
		t.Fatalf("upsert policy: %v", err)
	}
	stored, err := store.GetPolicy(ctx, "media")
	if err != nil {
		t.Fatalf("get stored policy: %v", err)
	}
	if stored != policy {
		t.Fatalf("expected %+v, got %+v", policy, stored)
	}

	policy.MaxWorkers = 0
	if err := store.UpsertPolicy(ctx, policy); err != domainerrors.ErrInvalidPolicy {
		t.Fatalf("expected invalid policy, got %v", err)
	}
}

func TestScalingStateAndHeartbeats(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	decision := entities.ScalingDecision{Queue: "email", CurrentWorkers: 1, DesiredWorkers: 2, Action: entities.ScaleUp, Reason: "backlog", DecidedAt: now}
	if err := store.SaveScalingDecision(ctx, decision, entities.ScalingState{LastScaleUpAt: now}); err != nil {
		t.Fatalf("save decision: %v", err)
	}
	state, err := store.GetScalingState(ctx, "email")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !state.LastScaleUpAt.Equal(now) || !state.LastScaleDownAt.IsZero() {
		t.Fatalf("unexpected state: %+v", state)
	}

	heartbeat := entities.WorkerHeartbeat{WorkerID: "w1", Queue: "email", RSSMB: 120, StartedAt: now, LastSeenAt: now}
	if err := store.SaveHeartbeat(ctx, heartbeat); err != nil {
		t.Fatalf("save heartbeat: %v", err)
	}
	if err := store.DeleteHeartbeat(ctx, "w1"); err != nil {
		t.Fatalf("delete heartbeat: %v", err)
	}
	items, err := store.ListHeartbeats(ctx)
	if err != nil {
		t.Fatalf("list heartbeats: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no heartbeats, got %+v", items)
	}
}
