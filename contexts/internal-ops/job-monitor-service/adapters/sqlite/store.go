package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store persists monitor state in a SQLite file so the API and worker
// processes observe the same queues, runs and heartbeats.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use "file::memory:?cache=shared" style paths only in tests.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("job history path is required")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply job monitor schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot entities.QueueSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO queue_snapshots (queue, waiting, active, completed, failed, delayed, paused, oldest_waiting_seconds, workers, captured_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(queue) DO UPDATE SET
	waiting = excluded.waiting,
	active = excluded.active,
	completed = excluded.completed,
	failed = excluded.failed,
	delayed = excluded.delayed,
	paused = excluded.paused,
	oldest_waiting_seconds = excluded.oldest_waiting_seconds,
	workers = excluded.workers,
	captured_at = excluded.captured_at
`,
		snapshot.Queue,
		snapshot.Waiting,
		snapshot.Active,
		snapshot.Completed,
		snapshot.Failed,
		snapshot.Delayed,
		snapshot.Paused,
		snapshot.OldestWaitingSeconds,
		snapshot.Workers,
		toMillis(snapshot.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, queue string) (entities.QueueSnapshot, error) {
	var (
		snapshot   entities.QueueSnapshot
		capturedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT queue, waiting, active, completed, failed, delayed, paused, oldest_waiting_seconds, workers, captured_at
FROM queue_snapshots WHERE queue = ?
`, strings.TrimSpace(queue)).Scan(
		&snapshot.Queue,
		&snapshot.Waiting,
		&snapshot.Active,
		&snapshot.Completed,
		&snapshot.Failed,
		&snapshot.Delayed,
		&snapshot.Paused,
		&snapshot.OldestWaitingSeconds,
		&snapshot.Workers,
		&capturedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.QueueSnapshot{}, domainerrors.ErrQueueNotFound
	}
	if err != nil {
		return entities.QueueSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	snapshot.CapturedAt = fromMillis(capturedAt)
	return snapshot, nil
}

func (s *Store) ListQueues(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue FROM queue_snapshots ORDER BY queue`)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()
	queues := make([]string, 0)
	for rows.Next() {
		var queue string
		if err := rows.Scan(&queue); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, queue)
	}
	return queues, rows.Err()
}

func (s *Store) SaveHealth(ctx context.Context, health entities.QueueHealth) error {
	issues, err := json.Marshal(health.Issues)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO queue_health (queue, status, waiting, active, workers, failure_rate, oldest_waiting_seconds, issues, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(queue) DO UPDATE SET
	status = excluded.status,
	waiting = excluded.waiting,
	active = excluded.active,
	workers = excluded.workers,
	failure_rate = excluded.failure_rate,
	oldest_waiting_seconds = excluded.oldest_waiting_seconds,
	issues = excluded.issues,
	evaluated_at = excluded.evaluated_at
`,
		health.Queue,
		string(health.Status),
		health.Waiting,
		health.Active,
		health.Workers,
		health.FailureRate,
		health.OldestWaitingSeconds,
		string(issues),
		toMillis(health.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("save health: %w", err)
	}
	return nil
}

func (s *Store) GetHealth(ctx context.Context, queue string) (entities.QueueHealth, bool, error) {
	var (
		health      entities.QueueHealth
		status      string
		issues      string
		evaluatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT queue, status, waiting, active, workers, failure_rate, oldest_waiting_seconds, issues, evaluated_at
FROM queue_health WHERE queue = ?
`, strings.TrimSpace(queue)).Scan(
		&health.Queue,
		&status,
		&health.Waiting,
		&health.Active,
		&health.Workers,
		&health.FailureRate,
		&health.OldestWaitingSeconds,
		&issues,
		&evaluatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.QueueHealth{}, false, nil
	}
	if err != nil {
		return entities.QueueHealth{}, false, fmt.Errorf("load health: %w", err)
	}
	health.Status = entities.HealthStatus(status)
	health.EvaluatedAt = fromMillis(evaluatedAt)
	if err := json.Unmarshal([]byte(issues), &health.Issues); err != nil {
		return entities.QueueHealth{}, false, fmt.Errorf("decode health issues: %w", err)
	}
	return health, true, nil
}

func (s *Store) GetScalingState(ctx context.Context, queue string) (entities.ScalingState, error) {
	var up, down int64
	err := s.db.QueryRowContext(ctx, `
SELECT last_scale_up_at, last_scale_down_at FROM scaling_decisions WHERE queue = ?
`, strings.TrimSpace(queue)).Scan(&up, &down)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ScalingState{}, nil
	}
	if err != nil {
		return entities.ScalingState{}, fmt.Errorf("load scaling state: %w", err)
	}
	return entities.ScalingState{LastScaleUpAt: fromMillis(up), LastScaleDownAt: fromMillis(down)}, nil
}

func (s *Store) SaveScalingDecision(ctx context.Context, decision entities.ScalingDecision, state entities.ScalingState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scaling_decisions (queue, current_workers, desired_workers, action, reason, decided_at, last_scale_up_at, last_scale_down_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(queue) DO UPDATE SET
	current_workers = excluded.current_workers,
	desired_workers = excluded.desired_workers,
	action = excluded.action,
	reason = excluded.reason,
	decided_at = excluded.decided_at,
	last_scale_up_at = excluded.last_scale_up_at,
	last_scale_down_at = excluded.last_scale_down_at
`,
		decision.Queue,
		decision.CurrentWorkers,
		decision.DesiredWorkers,
		string(decision.Action),
		decision.Reason,
		toMillis(decision.DecidedAt),
		toMillis(state.LastScaleUpAt),
		toMillis(state.LastScaleDownAt),
	)
	if err != nil {
		return fmt.Errorf("save scaling decision: %w", err)
	}
	return nil
}

func (s *Store) LastScalingDecision(ctx context.Context, queue string) (entities.ScalingDecision, bool, error) {
	var (
		decision  entities.ScalingDecision
		action    string
		decidedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT queue, current_workers, desired_workers, action, reason, decided_at
FROM scaling_decisions WHERE queue = ?
`, strings.TrimSpace(queue)).Scan(
		&decision.Queue,
		&decision.CurrentWorkers,
		&decision.DesiredWorkers,
		&action,
		&decision.Reason,
		&decidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ScalingDecision{}, false, nil
	}
	if err != nil {
		return entities.ScalingDecision{}, false, fmt.Errorf("load scaling decision: %w", err)
	}
	decision.Action = entities.ScalingAction(action)
	decision.DecidedAt = fromMillis(decidedAt)
	return decision, true, nil
}

func (s *Store) AppendLatencySample(ctx context.Context, queue string, duration time.Duration, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin latency tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO latency_samples (queue, duration_ms) VALUES (?, ?)`,
		queue, duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert latency sample: %w", err)
	}
	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM latency_samples
WHERE queue = ? AND id NOT IN (
	SELECT id FROM latency_samples WHERE queue = ? ORDER BY id DESC LIMIT ?
)
`, queue, queue, keep); err != nil {
			return fmt.Errorf("trim latency samples: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListLatencySamples(ctx context.Context, queue string) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT duration_ms FROM latency_samples WHERE queue = ? ORDER BY id`,
		strings.TrimSpace(queue),
	)
	if err != nil {
		return nil, fmt.Errorf("list latency samples: %w", err)
	}
	defer rows.Close()
	samples := make([]time.Duration, 0)
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan latency sample: %w", err)
		}
		samples = append(samples, time.Duration(ms)*time.Millisecond)
	}
	return samples, rows.Err()
}

func (s *Store) SaveHeartbeat(ctx context.Context, heartbeat entities.WorkerHeartbeat) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO worker_heartbeats (worker_id, queue, rss_mb, jobs_processed, started_at, last_seen_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(worker_id) DO UPDATE SET
	queue = excluded.queue,
	rss_mb = excluded.rss_mb,
	jobs_processed = excluded.jobs_processed,
	last_seen_at = excluded.last_seen_at
`,
		heartbeat.WorkerID,
		heartbeat.Queue,
		heartbeat.RSSMB,
		heartbeat.JobsProcessed,
		toMillis(heartbeat.StartedAt),
		toMillis(heartbeat.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("save heartbeat: %w", err)
	}
	return nil
}

func (s *Store) ListHeartbeats(ctx context.Context) ([]entities.WorkerHeartbeat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT worker_id, queue, rss_mb, jobs_processed, started_at, last_seen_at
FROM worker_heartbeats ORDER BY worker_id
`)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()
	items := make([]entities.WorkerHeartbeat, 0)
	for rows.Next() {
		var (
			heartbeat         entities.WorkerHeartbeat
			startedAt, seenAt int64
		)
		if err := rows.Scan(
			&heartbeat.WorkerID,
			&heartbeat.Queue,
			&heartbeat.RSSMB,
			&heartbeat.JobsProcessed,
			&startedAt,
			&seenAt,
		); err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		heartbeat.StartedAt = fromMillis(startedAt)
		heartbeat.LastSeenAt = fromMillis(seenAt)
		items = append(items, heartbeat)
	}
	return items, rows.Err()
}

func (s *Store) DeleteHeartbeat(ctx context.Context, workerID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM worker_heartbeats WHERE worker_id = ?`,
		strings.TrimSpace(workerID),
	); err != nil {
		return fmt.Errorf("delete heartbeat: %w", err)
	}
	return nil
}

func (s *Store) InsertRun(ctx context.Context, run entities.JobRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_runs (run_id, queue, job_name, worker_id, status, attempt, duration_ms, processed, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.RunID,
		run.Queue,
		run.JobName,
		run.WorkerID,
		string(run.Status),
		run.Attempt,
		run.Duration.Milliseconds(),
		run.Processed,
		run.Error,
		toMillis(run.StartedAt),
		toMillis(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, filter ports.RunFilter) ([]entities.JobRun, error) {
	query := `
SELECT run_id, queue, job_name, worker_id, status, attempt, duration_ms, processed, error, started_at, finished_at
FROM job_runs WHERE 1 = 1`
	args := make([]any, 0, 3)
	if filter.Queue != "" {
		query += ` AND queue = ?`
		args = append(args, filter.Queue)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY finished_at DESC, run_id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()
	items := make([]entities.JobRun, 0)
	for rows.Next() {
		var (
			run                   entities.JobRun
			status                string
			durationMS            int64
			startedAt, finishedAt int64
		)
		if err := rows.Scan(
			&run.RunID,
			&run.Queue,
			&run.JobName,
			&run.WorkerID,
			&status,
			&run.Attempt,
			&durationMS,
			&run.Processed,
			&run.Error,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		run.Status = entities.RunStatus(status)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.StartedAt = fromMillis(startedAt)
		run.FinishedAt = fromMillis(finishedAt)
		items = append(items, run)
	}
	return items, rows.Err()
}

func (s *Store) GetPolicy(ctx context.Context, queue string) (entities.QueuePolicy, error) {
	queue = strings.TrimSpace(queue)
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT policy FROM queue_policies WHERE queue = ?`, queue).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DefaultPolicy(queue), nil
	}
	if err != nil {
		return entities.QueuePolicy{}, fmt.Errorf("load policy: %w", err)
	}
	var row policyRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return entities.QueuePolicy{}, fmt.Errorf("decode policy: %w", err)
	}
	return row.toEntity(queue), nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]entities.QueuePolicy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue, policy FROM queue_policies ORDER BY queue`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	items := make([]entities.QueuePolicy, 0)
	for rows.Next() {
		var queue, raw string
		if err := rows.Scan(&queue, &raw); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		var row policyRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("decode policy %s: %w", queue, err)
		}
		items = append(items, row.toEntity(queue))
	}
	return items, rows.Err()
}

func (s *Store) UpsertPolicy(ctx context.Context, policy entities.QueuePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(policyRowFromEntity(policy))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO queue_policies (queue, policy, updated_at) VALUES (?, ?, ?)
ON CONFLICT(queue) DO UPDATE SET policy = excluded.policy, updated_at = excluded.updated_at
`, policy.Queue, string(raw), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}
	return nil
}

// policyRow is the stored JSON form; durations are kept in milliseconds.
type policyRow struct {
	MinWorkers          int     `json:"min_workers"`
	MaxWorkers          int     `json:"max_workers"`
	JobsPerWorker       int     `json:"jobs_per_worker"`
	TargetWaitMS        int64   `json:"target_wait_ms"`
	ScaleDownIdleRatio  float64 `json:"scale_down_idle_ratio"`
	ScaleUpCooldownMS   int64   `json:"scale_up_cooldown_ms"`
	ScaleDownCooldownMS int64   `json:"scale_down_cooldown_ms"`
	BaseTimeoutMS       int64   `json:"base_timeout_ms"`
	MinTimeoutMS        int64   `json:"min_timeout_ms"`
	MaxTimeoutMS        int64   `json:"max_timeout_ms"`
	TimeoutMultiplier   float64 `json:"timeout_multiplier"`
	WarnDepth           int     `json:"warn_depth"`
	CriticalDepth       int     `json:"critical_depth"`
	WarnFailureRate     float64 `json:"warn_failure_rate"`
	CriticalFailureRate float64 `json:"critical_failure_rate"`
	MaxMemoryMB         float64 `json:"max_memory_mb"`
	MaxJobsPerWorker    int     `json:"max_jobs_per_worker"`
	HeartbeatTTLMS      int64   `json:"heartbeat_ttl_ms"`
}

func policyRowFromEntity(p entities.QueuePolicy) policyRow {
	return policyRow{
		MinWorkers:          p.MinWorkers,
		MaxWorkers:          p.MaxWorkers,
		JobsPerWorker:       p.JobsPerWorker,
		TargetWaitMS:        p.TargetWait.Milliseconds(),
		ScaleDownIdleRatio:  p.ScaleDownIdleRatio,
		ScaleUpCooldownMS:   p.ScaleUpCooldown.Milliseconds(),
		ScaleDownCooldownMS: p.ScaleDownCooldown.Milliseconds(),
		BaseTimeoutMS:       p.BaseTimeout.Milliseconds(),
		MinTimeoutMS:        p.MinTimeout.Milliseconds(),
		MaxTimeoutMS:        p.MaxTimeout.Milliseconds(),
		TimeoutMultiplier:   p.TimeoutMultiplier,
		WarnDepth:           p.WarnDepth,
		CriticalDepth:       p.CriticalDepth,
		WarnFailureRate:     p.WarnFailureRate,
		CriticalFailureRate: p.CriticalFailureRate,
		MaxMemoryMB:         p.MaxMemoryMB,
		MaxJobsPerWorker:    p.MaxJobsPerWorker,
		HeartbeatTTLMS:      p.HeartbeatTTL.Milliseconds(),
	}
}

func (r policyRow) toEntity(queue string) entities.QueuePolicy {
	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return entities.QueuePolicy{
		Queue:               queue,
		MinWorkers:          r.MinWorkers,
		MaxWorkers:          r.MaxWorkers,
		JobsPerWorker:       r.JobsPerWorker,
		TargetWait:          ms(r.TargetWaitMS),
		ScaleDownIdleRatio:  r.ScaleDownIdleRatio,
		ScaleUpCooldown:     ms(r.ScaleUpCooldownMS),
		ScaleDownCooldown:   ms(r.ScaleDownCooldownMS),
		BaseTimeout:         ms(r.BaseTimeoutMS),
		MinTimeout:          ms(r.MinTimeoutMS),
		MaxTimeout:          ms(r.MaxTimeoutMS),
		TimeoutMultiplier:   r.TimeoutMultiplier,
		WarnDepth:           r.WarnDepth,
		CriticalDepth:       r.CriticalDepth,
		WarnFailureRate:     r.WarnFailureRate,
		CriticalFailureRate: r.CriticalFailureRate,
		MaxMemoryMB:         r.MaxMemoryMB,
		MaxJobsPerWorker:    r.MaxJobsPerWorker,
		HeartbeatTTL:        ms(r.HeartbeatTTLMS),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var (
	_ ports.Repository  = (*Store)(nil)
	_ ports.RunHistory  = (*Store)(nil)
	_ ports.PolicyStore = (*Store)(nil)
)
