package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/adapters/memory"
	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	n int
}

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

type recordingOutbox struct {
	events []ports.EventEnvelope
}

func (o *recordingOutbox) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	o.events = append(o.events, envelope)
	return nil
}

func newTestService() (Service, *memory.Store, *recordingOutbox, *fixedClock) {
	store := memory.NewStore()
	outbox := &recordingOutbox{}
	clock := &fixedClock{now: time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)}
	return Service{
		Repo:     store,
		History:  store,
		Policies: store,
		Outbox:   outbox,
		Clock:    clock,
		IDGen:    &sequenceIDs{},
	}, store, outbox, clock
}

func TestRecordSnapshotEmitsCriticalOncePerTransition(t *testing.T) {
	service, _, outbox, clock := newTestService()
	ctx := context.Background()
	critical := entities.QueueSnapshot{Queue: "media", Waiting: 3000, Workers: 2}

	health, err := service.RecordSnapshot(ctx, critical)
	if err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	if health.Status != entities.HealthCritical {
		t.Fatalf("expected critical, got %s", health.Status)
	}
	clock.now = clock.now.Add(time.Minute)
	if _, err := service.RecordSnapshot(ctx, critical); err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	if len(outbox.events) != 1 {
		t.Fatalf("expected one alert while staying critical, got %d", len(outbox.events))
	}
	if outbox.events[0].EventType != contractsv1.EventQueueCritical || outbox.events[0].PartitionKey != "media" {
		t.Fatalf("unexpected alert envelope: %+v", outbox.events[0])
	}

	if _, err := service.RecordSnapshot(ctx, entities.QueueSnapshot{Queue: "media", Waiting: 1, Workers: 2}); err != nil {
		t.Fatalf("record healthy snapshot: %v", err)
	}
	if _, err := service.RecordSnapshot(ctx, critical); err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	if len(outbox.events) != 2 {
		t.Fatalf("expected a second alert after recovery, got %d", len(outbox.events))
	}
}

func TestRecordSnapshotRejectsInvalidInput(t *testing.T) {
	service, _, _, _ := newTestService()
	_, err := service.RecordSnapshot(context.Background(), entities.QueueSnapshot{Queue: "media", Waiting: -1})
	if err != domainerrors.ErrInvalidSnapshot {
		t.Fatalf("expected invalid snapshot, got %v", err)
	}
}

func TestRecommendScalingAppliesCooldown(t *testing.T) {
	service, _, _, clock := newTestService()
	ctx := context.Background()

	if _, err := service.RecommendScaling(ctx, "media"); err != domainerrors.ErrQueueNotFound {
		t.Fatalf("expected queue not found before any snapshot, got %v", err)
	}
	if _, err := service.RecordSnapshot(ctx, entities.QueueSnapshot{Queue: "media", Waiting: 400, Workers: 2}); err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	first, err := service.RecommendScaling(ctx, "media")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if first.Action != entities.ScaleUp || first.DesiredWorkers != 4 {
		t.Fatalf("expected scale up to 4, got %+v", first)
	}

	clock.now = clock.now.Add(10 * time.Second)
	second, err := service.RecommendScaling(ctx, "media")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if second.Action != entities.ScaleHold || second.Reason != "cooldown" {
		t.Fatalf("expected cooldown hold, got %+v", second)
	}

	overview, err := service.GetQueue(ctx, "media")
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if overview.Decision == nil || overview.Decision.Action != entities.ScaleHold {
		t.Fatalf("expected last decision in overview, got %+v", overview.Decision)
	}
}

func TestRecordJobRunFeedsAdaptiveTimeout(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := service.RecordJobRun(ctx, entities.JobRun{
			Queue:    "email",
			JobName:  "deliver",
			Status:   entities.RunSucceeded,
			Duration: 2 * time.Second,
		}); err != nil {
			t.Fatalf("record run: %v", err)
		}
	}
	if _, err := service.RecordJobRun(ctx, entities.JobRun{
		Queue:    "email",
		JobName:  "deliver",
		Status:   entities.RunFailed,
		Duration: time.Hour,
		Error:    "smtp timeout",
	}); err != nil {
		t.Fatalf("record failed run: %v", err)
	}

	rec, err := service.GetTimeout(ctx, "email")
	if err != nil {
		t.Fatalf("get timeout: %v", err)
	}
	if rec.Source != entities.TimeoutFromP95 || rec.SampleCount != 25 || rec.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout recommendation: %+v", rec)
	}

	failed, err := service.ListJobRuns(ctx, ports.RunFilter{Queue: "email", Status: entities.RunFailed})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(failed) != 1 || failed[0].Attempt != 1 || failed[0].RunID == "" {
		t.Fatalf("unexpected failed runs: %+v", failed)
	}
	if _, err := service.ListJobRuns(ctx, ports.RunFilter{Status: "unknown"}); err != domainerrors.ErrInvalidJobRun {
		t.Fatalf("expected invalid status filter, got %v", err)
	}
}

func TestHeartbeatRecyclesOverMemoryLimit(t *testing.T) {
	service, store, _, _ := newTestService()
	ctx := context.Background()

	ok, err := service.Heartbeat(ctx, entities.WorkerHeartbeat{WorkerID: "w1", Queue: "email", RSSMB: 100})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if ok.Recycle {
		t.Fatalf("expected healthy worker to keep running")
	}

	decision, err := service.Heartbeat(ctx, entities.WorkerHeartbeat{WorkerID: "w1", Queue: "email", RSSMB: 900})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !decision.Recycle || decision.Reason != entities.RecycleMemory {
		t.Fatalf("expected memory recycle, got %+v", decision)
	}
	heartbeats, _ := store.ListHeartbeats(ctx)
	if len(heartbeats) != 0 {
		t.Fatalf("expected recycled worker to be removed, got %+v", heartbeats)
	}
}

func TestListWorkersFlagsStaleHeartbeats(t *testing.T) {
	service, _, _, clock := newTestService()
	ctx := context.Background()

	if _, err := service.Heartbeat(ctx, entities.WorkerHeartbeat{WorkerID: "w1", Queue: "email"}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	clock.now = clock.now.Add(5 * time.Minute)
	workers, err := service.ListWorkers(ctx)
	if err != nil {
		t.Fatalf("list workers: %v", err)
	}
	if len(workers) != 1 || workers[0].Decision.Reason != entities.RecycleStale {
		t.Fatalf("expected stale worker, got %+v", workers)
	}
}

func TestUpsertPolicyValidates(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	policy := entities.DefaultPolicy("media")
	policy.MaxWorkers = 3
	if _, err := service.UpsertPolicy(ctx, policy); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := service.GetPolicy(ctx, "media")
	if err != nil || stored.MaxWorkers != 3 {
		t.Fatalf("expected stored policy, got %+v err=%v", stored, err)
	}

	policy.MinWorkers = 5
	if _, err := service.UpsertPolicy(ctx, policy); err != domainerrors.ErrInvalidPolicy {
		t.Fatalf("expected invalid policy, got %v", err)
	}
	items, err := service.ListPolicies(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one policy, got %d err=%v", len(items), err)
	}
}
