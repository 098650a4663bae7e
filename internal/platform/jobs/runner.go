package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one periodic unit of background work. Run reports how many items it
// handled and how many remain queued so the monitor can size the pool.
type Job struct {
	Name     string
	Queue    string
	Interval time.Duration
	Run      func(ctx context.Context) (Result, error)
}

type Result struct {
	Processed     int
	Pending       int
	OldestPending time.Duration
}

type RunRecord struct {
	Queue      string
	JobName    string
	WorkerID   string
	Succeeded  bool
	Attempt    int
	Duration   time.Duration
	Processed  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Snapshot struct {
	Queue                string
	Waiting              int
	Active               int
	Completed            int
	Failed               int
	OldestWaitingSeconds float64
	Workers              int
}

type Heartbeat struct {
	WorkerID      string
	Queue         string
	RSSMB         float64
	JobsProcessed int
}

type Recycle struct {
	Recycle bool
	Reason  string
}

// RecycleReasonMemory marks a recycle asked for because of process memory.
// Memory is process wide, so the runner honours it once per cooldown rather
// than once per loop.
const RecycleReasonMemory = "memory_limit"

const defaultMemoryRecycleCooldown = 5 * time.Minute

// Monitor receives runner telemetry and supplies per-queue timeouts.
type Monitor interface {
	Timeout(ctx context.Context, queue string) (time.Duration, error)
	RecordRun(ctx context.Context, run RunRecord) error
	ReportSnapshot(ctx context.Context, snapshot Snapshot) error
	Heartbeat(ctx context.Context, heartbeat Heartbeat) (Recycle, error)
}

type Runner struct {
	Jobs           []Job
	Monitor        Monitor
	WorkerID       string
	DefaultTimeout time.Duration
	Logger         *slog.Logger
	// MemoryMB reports process memory; defaults to runtime.MemStats.HeapInuse,
	// which drops once the heap is collected.
	MemoryMB func() float64
	// MemoryRecycleCooldown is the minimum gap between two memory recycles
	// across all loops.
	MemoryRecycleCooldown time.Duration
	Now                   func() time.Time
}

// memoryGate lets one loop at a time act on a memory recycle.
type memoryGate struct {
	mu   sync.Mutex
	last time.Time
}

func (g *memoryGate) allow(now time.Time, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.last.IsZero() && now.Sub(g.last) < cooldown {
		return false
	}
	g.last = now
	return true
}

// Run starts one loop per job and blocks until ctx is cancelled.
func (r Runner) Run(ctx context.Context) error {
	if len(r.Jobs) == 0 {
		return errors.New("jobs: no jobs registered")
	}
	for _, job := range r.Jobs {
		if strings.TrimSpace(job.Name) == "" || job.Run == nil || job.Interval <= 0 {
			return fmt.Errorf("jobs: invalid job %q", job.Name)
		}
	}
	gate := &memoryGate{}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range r.Jobs {
		if job.Queue == "" {
			job.Queue = job.Name
		}
		group.Go(func() error {
			r.loop(groupCtx, job, gate)
			return nil
		})
	}
	return group.Wait()
}

type loopState struct {
	generation int
	workerID   string
	processed  int
	completed  int
	failed     int
}

func (r Runner) loop(ctx context.Context, job Job, gate *memoryGate) {
	logger := r.logger()
	state := r.newState(job, 1)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		r.tick(ctx, job, &state)
		if ctx.Err() != nil {
			return
		}
		if recycle := r.heartbeat(ctx, job, state); recycle.Recycle {
			if recycle.Reason == RecycleReasonMemory && !gate.allow(r.now(), r.memoryCooldown()) {
				logger.Debug("memory recycle already handled",
					"event", "jobs_memory_recycle_skipped",
					"module", "platform/jobs",
					"layer", "platform",
					"job", job.Name,
					"worker_id", state.workerID,
				)
			} else {
				logger.Info("job loop recycled",
					"event", "jobs_loop_recycled",
					"module", "platform/jobs",
					"layer", "platform",
					"job", job.Name,
					"worker_id", state.workerID,
					"reason", recycle.Reason,
				)
				if recycle.Reason == RecycleReasonMemory {
					debug.FreeOSMemory()
				}
				state = r.newState(job, state.generation+1)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r Runner) tick(ctx context.Context, job Job, state *loopState) {
	logger := r.logger()
	timeout := r.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if r.Monitor != nil {
		if recommended, err := r.Monitor.Timeout(ctx, job.Queue); err == nil && recommended > 0 {
			timeout = recommended
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	started := r.now()
	result, err := runSafely(runCtx, job)
	cancel()
	finished := r.now()
	if ctx.Err() != nil {
		return
	}

	record := RunRecord{
		Queue:      job.Queue,
		JobName:    job.Name,
		WorkerID:   state.workerID,
		Succeeded:  err == nil,
		Attempt:    1,
		Duration:   finished.Sub(started),
		Processed:  result.Processed,
		StartedAt:  started,
		FinishedAt: finished,
	}
	state.processed += result.Processed
	if err != nil {
		state.failed++
		record.Error = err.Error()
		logger.Warn("job run failed",
			"event", "jobs_run_failed",
			"module", "platform/jobs",
			"layer", "platform",
			"job", job.Name,
			"timeout", timeout.String(),
			"error", err.Error(),
		)
	} else {
		state.completed++
	}
	if r.Monitor == nil {
		return
	}
	if err := r.Monitor.RecordRun(ctx, record); err != nil {
		r.reportFailure("record run", job, err)
	}
	if err := r.Monitor.ReportSnapshot(ctx, Snapshot{
		Queue:                job.Queue,
		Waiting:              result.Pending,
		Completed:            state.completed,
		Failed:               state.failed,
		OldestWaitingSeconds: result.OldestPending.Seconds(),
		Workers:              1,
	}); err != nil {
		r.reportFailure("report snapshot", job, err)
	}
}

func (r Runner) heartbeat(ctx context.Context, job Job, state loopState) Recycle {
	if r.Monitor == nil {
		return Recycle{}
	}
	recycle, err := r.Monitor.Heartbeat(ctx, Heartbeat{
		WorkerID:      state.workerID,
		Queue:         job.Queue,
		RSSMB:         r.memoryMB(),
		JobsProcessed: state.processed,
	})
	if err != nil {
		r.reportFailure("heartbeat", job, err)
		return Recycle{}
	}
	return recycle
}

func (r Runner) newState(job Job, generation int) loopState {
	base := strings.TrimSpace(r.WorkerID)
	if base == "" {
		base = "worker"
	}
	return loopState{
		generation: generation,
		workerID:   fmt.Sprintf("%s/%s#%d", base, job.Name, generation),
	}
}

func (r Runner) reportFailure(step string, job Job, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	r.logger().Warn("job monitor call failed",
		"event", "jobs_monitor_failed",
		"module", "platform/jobs",
		"layer", "platform",
		"job", job.Name,
		"step", step,
		"error", err.Error(),
	)
}

func (r Runner) memoryMB() float64 {
	if r.MemoryMB != nil {
		return r.MemoryMB()
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapInuse) / (1024 * 1024)
}

func (r Runner) memoryCooldown() time.Duration {
	if r.MemoryRecycleCooldown > 0 {
		return r.MemoryRecycleCooldown
	}
	return defaultMemoryRecycleCooldown
}

func (r Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func runSafely(ctx context.Context, job Job) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, recovered)
		}
	}()
	return job.Run(ctx)
}
