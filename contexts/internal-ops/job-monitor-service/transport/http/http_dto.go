package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RecordSnapshotRequest struct {
	Queue                string  `json:"queue"`
	Waiting              int     `json:"waiting"`
	Active               int     `json:"active"`
	Completed            int     `json:"completed"`
	Failed               int     `json:"failed"`
	Delayed              int     `json:"delayed"`
	Paused               bool    `json:"paused"`
	OldestWaitingSeconds float64 `json:"oldest_waiting_seconds"`
	Workers              int     `json:"workers"`
}

type QueueHealthDTO struct {
	Queue                string   `json:"queue"`
	Status               string   `json:"status"`
	Waiting              int      `json:"waiting"`
	Active               int      `json:"active"`
	Workers              int      `json:"workers"`
	FailureRate          float64  `json:"failure_rate"`
	OldestWaitingSeconds float64  `json:"oldest_waiting_seconds"`
	Issues               []string `json:"issues"`
	EvaluatedAt          string   `json:"evaluated_at"`
}

type QueueHealthResponse struct {
	Status string         `json:"status"`
	Data   QueueHealthDTO `json:"data"`
}

type QueueHealthListResponse struct {
	Status string           `json:"status"`
	Data   []QueueHealthDTO `json:"data"`
}

type SnapshotDTO struct {
	Queue                string  `json:"queue"`
	Waiting              int     `json:"waiting"`
	Active               int     `json:"active"`
	Completed            int     `json:"completed"`
	Failed               int     `json:"failed"`
	Delayed              int     `json:"delayed"`
	Paused               bool    `json:"paused"`
	OldestWaitingSeconds float64 `json:"oldest_waiting_seconds"`
	Workers              int     `json:"workers"`
	CapturedAt           string  `json:"captured_at"`
}

type ScalingDecisionDTO struct {
	Queue          string `json:"queue"`
	CurrentWorkers int    `json:"current_workers"`
	DesiredWorkers int    `json:"desired_workers"`
	Action         string `json:"action"`
	Reason         string `json:"reason"`
	DecidedAt      string `json:"decided_at"`
}

type ScalingDecisionResponse struct {
	Status string             `json:"status"`
	Data   ScalingDecisionDTO `json:"data"`
}

type TimeoutDTO struct {
	Queue          string `json:"queue"`
	TimeoutSeconds int64  `json:"timeout_seconds"`
	P95Millis      int64  `json:"p95_millis"`
	SampleCount    int    `json:"sample_count"`
	Source         string `json:"source"`
}

type TimeoutResponse struct {
	Status string     `json:"status"`
	Data   TimeoutDTO `json:"data"`
}

type QueueOverviewResponse struct {
	Status string `json:"status"`
	Data   struct {
		Snapshot SnapshotDTO         `json:"snapshot"`
		Health   QueueHealthDTO      `json:"health"`
		Decision *ScalingDecisionDTO `json:"decision,omitempty"`
		Timeout  TimeoutDTO          `json:"timeout"`
		Policy   QueuePolicyDTO      `json:"policy"`
	} `json:"data"`
}

type RecordJobRunRequest struct {
	RunID          string `json:"run_id,omitempty"`
	Queue          string `json:"queue"`
	JobName        string `json:"job_name"`
	WorkerID       string `json:"worker_id,omitempty"`
	Status         string `json:"status"`
	Attempt        int    `json:"attempt"`
	DurationMillis int64  `json:"duration_millis"`
	Processed      int    `json:"processed"`
	Error          string `json:"error,omitempty"`
}

type JobRunDTO struct {
	RunID          string `json:"run_id"`
	Queue          string `json:"queue"`
	JobName        string `json:"job_name"`
	WorkerID       string `json:"worker_id,omitempty"`
	Status         string `json:"status"`
	Attempt        int    `json:"attempt"`
	DurationMillis int64  `json:"duration_millis"`
	Processed      int    `json:"processed"`
	Error          string `json:"error,omitempty"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at"`
}

type JobRunResponse struct {
	Status string    `json:"status"`
	Data   JobRunDTO `json:"data"`
}

type ListJobRunsRequest struct {
	Queue  string
	Status string
	Limit  int
}

type JobRunListResponse struct {
	Status string      `json:"status"`
	Data   []JobRunDTO `json:"data"`
}

type HeartbeatRequest struct {
	WorkerID      string  `json:"worker_id"`
	Queue         string  `json:"queue"`
	RSSMB         float64 `json:"rss_mb"`
	JobsProcessed int     `json:"jobs_processed"`
}

type RecycleDecisionDTO struct {
	WorkerID string `json:"worker_id"`
	Queue    string `json:"queue"`
	Recycle  bool   `json:"recycle"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type HeartbeatResponse struct {
	Status string             `json:"status"`
	Data   RecycleDecisionDTO `json:"data"`
}

type WorkerDTO struct {
	WorkerID      string             `json:"worker_id"`
	Queue         string             `json:"queue"`
	RSSMB         float64            `json:"rss_mb"`
	JobsProcessed int                `json:"jobs_processed"`
	StartedAt     string             `json:"started_at"`
	LastSeenAt    string             `json:"last_seen_at"`
	Recycle       RecycleDecisionDTO `json:"recycle"`
}

type WorkerListResponse struct {
	Status string      `json:"status"`
	Data   []WorkerDTO `json:"data"`
}

// QueuePolicyDTO carries durations as Go duration strings ("90s", "5m").
type QueuePolicyDTO struct {
	Queue               string  `json:"queue"`
	MinWorkers          int     `json:"min_workers"`
	MaxWorkers          int     `json:"max_workers"`
	JobsPerWorker       int     `json:"jobs_per_worker"`
	TargetWait          string  `json:"target_wait"`
	ScaleDownIdleRatio  float64 `json:"scale_down_idle_ratio"`
	ScaleUpCooldown     string  `json:"scale_up_cooldown"`
	ScaleDownCooldown   string  `json:"scale_down_cooldown"`
	BaseTimeout         string  `json:"base_timeout"`
	MinTimeout          string  `json:"min_timeout"`
	MaxTimeout          string  `json:"max_timeout"`
	TimeoutMultiplier   float64 `json:"timeout_multiplier"`
	WarnDepth           int     `json:"warn_depth"`
	CriticalDepth       int     `json:"critical_depth"`
	WarnFailureRate     float64 `json:"warn_failure_rate"`
	CriticalFailureRate float64 `json:"critical_failure_rate"`
	MaxMemoryMB         float64 `json:"max_memory_mb"`
	MaxJobsPerWorker    int     `json:"max_jobs_per_worker"`
	HeartbeatTTL        string  `json:"heartbeat_ttl"`
}

type QueuePolicyResponse struct {
	Status string         `json:"status"`
	Data   QueuePolicyDTO `json:"data"`
}

type QueuePolicyListResponse struct {
	Status string           `json:"status"`
	Data   []QueuePolicyDTO `json:"data"`
}
