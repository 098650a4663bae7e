package jobs

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMonitor struct {
	mu         sync.Mutex
	timeout    time.Duration
	runs       []RunRecord
	snapshots  []Snapshot
	heartbeats []Heartbeat
	recycleAt  int
	// overLimit answers every heartbeat with a memory recycle.
	overLimit bool
}

func (m *fakeMonitor) Timeout(context.Context, string) (time.Duration, error) {
	return m.timeout, nil
}

func (m *fakeMonitor) RecordRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *fakeMonitor) ReportSnapshot(_ context.Context, snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *fakeMonitor) Heartbeat(_ context.Context, heartbeat Heartbeat) (Recycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats = append(m.heartbeats, heartbeat)
	if m.overLimit || (m.recycleAt > 0 && len(m.heartbeats) == m.recycleAt) {
		return Recycle{Recycle: true, Reason: RecycleReasonMemory}, nil
	}
	return Recycle{}, nil
}

func (m *fakeMonitor) snapshot() ([]RunRecord, []Snapshot, []Heartbeat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRecord(nil), m.runs...), append([]Snapshot(nil), m.snapshots...), append([]Heartbeat(nil), m.heartbeats...)
}

func TestRunnerReportsRunsAndRecyclesLoop(t *testing.T) {
	monitor := &fakeMonitor{timeout: time.Second, recycleAt: 2}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	runner := Runner{
		WorkerID: "test",
		Monitor:  monitor,
		MemoryMB: func() float64 { return 64 },
		Jobs: []Job{{
			Name:     "deliver",
			Queue:    "email",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) (Result, error) {
				mu.Lock()
				defer mu.Unlock()
				calls++
				if calls == 1 {
					return Result{}, errors.New("smtp down")
				}
				return Result{Processed: 2, Pending: 3}, nil
			},
		}},
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, _, heartbeats := monitor.snapshot()
		return len(heartbeats) >= 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runs, snapshots, heartbeats := monitor.snapshot()
	require.False(t, runs[0].Succeeded)
	require.Equal(t, "smtp down", runs[0].Error)
	require.True(t, runs[1].Succeeded)
	require.Equal(t, "email", snapshots[1].Queue)
	require.Equal(t, 3, snapshots[1].Waiting)
	require.Equal(t, 1, snapshots[1].Failed)

	require.Equal(t, "test/deliver#1", heartbeats[0].WorkerID)
	require.Equal(t, "test/deliver#1", heartbeats[1].WorkerID)
	require.Equal(t, "test/deliver#2", heartbeats[2].WorkerID)
	require.Equal(t, 64.0, heartbeats[0].RSSMB)
}

func TestRunnerMemoryRecycleIsNotRepeatedEveryTick(t *testing.T) {
	monitor := &fakeMonitor{timeout: time.Second, overLimit: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noop := func(context.Context) (Result, error) { return Result{}, nil }
	runner := Runner{
		WorkerID:              "test",
		Monitor:               monitor,
		MemoryMB:              func() float64 { return 900 },
		MemoryRecycleCooldown: time.Hour,
		Jobs: []Job{
			{Name: "deliver", Queue: "email", Interval: 2 * time.Millisecond, Run: noop},
			{Name: "sweep", Queue: "expiry", Interval: 2 * time.Millisecond, Run: noop},
		},
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, _, heartbeats := monitor.snapshot()
		return len(heartbeats) >= 20
	}, 2*time.Second, 2*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, _, heartbeats := monitor.snapshot()
	recycled := map[string]bool{}
	for _, heartbeat := range heartbeats {
		require.Equal(t, 900.0, heartbeat.RSSMB)
		require.NotContains(t, heartbeat.WorkerID, "#3")
		if strings.HasSuffix(heartbeat.WorkerID, "#2") {
			recycled[heartbeat.Queue] = true
		}
	}
	require.LessOrEqual(t, len(recycled), 1, "memory recycle must be taken once per cooldown across loops")
}

func TestDefaultMemoryReadingIsHeapInUse(t *testing.T) {
	reading := Runner{}.memoryMB()
	require.Greater(t, reading, 0.0)
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	require.Less(t, reading, float64(stats.Sys)/(1024*1024)+1)
}

func TestRunnerAppliesMonitorTimeout(t *testing.T) {
	monitor := &fakeMonitor{timeout: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := Runner{
		Monitor:  monitor,
		MemoryMB: func() float64 { return 1 },
		Jobs: []Job{{
			Name:     "slow",
			Interval: time.Hour,
			Run: func(ctx context.Context) (Result, error) {
				<-ctx.Done()
				return Result{}, ctx.Err()
			},
		}},
	}
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	require.Eventually(t, func() bool {
		runs, _, _ := monitor.snapshot()
		return len(runs) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runs, _, _ := monitor.snapshot()
	require.Equal(t, context.DeadlineExceeded.Error(), runs[0].Error)
	require.Equal(t, "slow", runs[0].Queue)
}

func TestRunnerRecoversPanics(t *testing.T) {
	result, err := runSafely(context.Background(), Job{Name: "boom", Run: func(context.Context) (Result, error) {
		panic("bad state")
	}})
	require.Error(t, err)
	require.Zero(t, result.Processed)
}

func TestRunnerRejectsInvalidJobs(t *testing.T) {
	require.Error(t, Runner{}.Run(context.Background()))
	require.Error(t, Runner{Jobs: []Job{{Name: "x"}}}.Run(context.Background()))
}
