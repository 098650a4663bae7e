package runner

import (
	"context"
	"testing"
	"time"

	jobmonitor "ygbackend/contexts/internal-ops/job-monitor-service"
	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
	"ygbackend/internal/platform/jobs"
)

func TestMonitorTranslatesRunnerTelemetry(t *testing.T) {
	ctx := context.Background()
	module := jobmonitor.NewInMemoryModule(nil, nil)
	monitor := Monitor{Service: module.Service}

	timeout, err := monitor.Timeout(ctx, "email")
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if timeout != entities.DefaultPolicy("email").BaseTimeout {
		t.Fatalf("expected base timeout, got %s", timeout)
	}

	if err := monitor.RecordRun(ctx, jobs.RunRecord{Queue: "email", JobName: "deliver", Succeeded: false, Error: "boom", Attempt: 1, Duration: time.Second}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	runs, _ := module.Store.ListRuns(ctx, ports.RunFilter{Queue: "email"})
	if len(runs) != 1 || runs[0].Status != entities.RunFailed {
		t.Fatalf("expected failed run recorded, got %+v", runs)
	}

	if err := monitor.ReportSnapshot(ctx, jobs.Snapshot{Queue: "email", Waiting: 4, Workers: 1}); err != nil {
		t.Fatalf("report snapshot: %v", err)
	}
	if _, found, _ := module.Store.GetHealth(ctx, "email"); !found {
		t.Fatalf("expected health evaluated for reported snapshot")
	}

	recycle, err := monitor.Heartbeat(ctx, jobs.Heartbeat{WorkerID: "w/deliver#1", Queue: "email", RSSMB: 4096})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !recycle.Recycle || recycle.Reason != jobs.RecycleReasonMemory {
		t.Fatalf("expected memory recycle, got %+v", recycle)
	}
}
