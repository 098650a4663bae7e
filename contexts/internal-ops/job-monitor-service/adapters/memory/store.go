package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"

	"github.com/google/uuid"
)

// Store keeps monitor state for a single process. Tests and the memory
// storage driver use it; shared deployments use the sqlite store.
type Store struct {
	mu sync.RWMutex

	snapshots  map[string]entities.QueueSnapshot
	health     map[string]entities.QueueHealth
	scaling    map[string]entities.ScalingState
	decisions  map[string]entities.ScalingDecision
	latency    map[string][]time.Duration
	heartbeats map[string]entities.WorkerHeartbeat
	runs       []entities.JobRun
	policies   map[string]entities.QueuePolicy
}

func NewStore() *Store {
	return &Store{
		snapshots:  make(map[string]entities.QueueSnapshot),
		health:     make(map[string]entities.QueueHealth),
		scaling:    make(map[string]entities.ScalingState),
		decisions:  make(map[string]entities.ScalingDecision),
		latency:    make(map[string][]time.Duration),
		heartbeats: make(map[string]entities.WorkerHeartbeat),
		policies:   make(map[string]entities.QueuePolicy),
	}
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot entities.QueueSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Queue] = snapshot
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, queue string) (entities.QueueSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[strings.TrimSpace(queue)]
	if !ok {
		return entities.QueueSnapshot{}, domainerrors.ErrQueueNotFound
	}
	return snapshot, nil
}

func (s *Store) ListQueues(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queues := make([]string, 0, len(s.snapshots))
	for queue := range s.snapshots {
		queues = append(queues, queue)
	}
	sort.Strings(queues)
	return queues, nil
}

func (s *Store) SaveHealth(_ context.Context, health entities.QueueHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	health.Issues = append([]string(nil), health.Issues...)
	s.health[health.Queue] = health
	return nil
}

func (s *Store) GetHealth(_ context.Context, queue string) (entities.QueueHealth, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	health, ok := s.health[strings.TrimSpace(queue)]
	return health, ok, nil
}

func (s *Store) GetScalingState(_ context.Context, queue string) (entities.ScalingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scaling[strings.TrimSpace(queue)], nil
}

func (s *Store) SaveScalingDecision(_ context.Context, decision entities.ScalingDecision, state entities.ScalingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.Queue] = decision
	s.scaling[decision.Queue] = state
	return nil
}

func (s *Store) LastScalingDecision(_ context.Context, queue string) (entities.ScalingDecision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decision, ok := s.decisions[strings.TrimSpace(queue)]
	return decision, ok, nil
}

func (s *Store) AppendLatencySample(_ context.Context, queue string, duration time.Duration, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples := append(s.latency[queue], duration)
	if keep > 0 && len(samples) > keep {
		samples = append([]time.Duration(nil), samples[len(samples)-keep:]...)
	}
	s.latency[queue] = samples
	return nil
}

func (s *Store) ListLatencySamples(_ context.Context, queue string) ([]time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]time.Duration(nil), s.latency[strings.TrimSpace(queue)]...), nil
}

func (s *Store) SaveHeartbeat(_ context.Context, heartbeat entities.WorkerHeartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[heartbeat.WorkerID] = heartbeat
	return nil
}

func (s *Store) ListHeartbeats(_ context.Context) ([]entities.WorkerHeartbeat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.WorkerHeartbeat, 0, len(s.heartbeats))
	for _, heartbeat := range s.heartbeats {
		items = append(items, heartbeat)
	}
	return items, nil
}

func (s *Store) DeleteHeartbeat(_ context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.heartbeats, strings.TrimSpace(workerID))
	return nil
}

func (s *Store) InsertRun(_ context.Context, run entities.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *Store) ListRuns(_ context.Context, filter ports.RunFilter) ([]entities.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.JobRun, 0)
	for i := len(s.runs) - 1; i >= 0; i-- {
		run := s.runs[i]
		if filter.Queue != "" && run.Queue != filter.Queue {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		items = append(items, run)
		if filter.Limit > 0 && len(items) == filter.Limit {
			break
		}
	}
	return items, nil
}

func (s *Store) GetPolicy(_ context.Context, queue string) (entities.QueuePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queue = strings.TrimSpace(queue)
	if policy, ok := s.policies[queue]; ok {
		return policy, nil
	}
	return entities.DefaultPolicy(queue), nil
}

func (s *Store) ListPolicies(_ context.Context) ([]entities.QueuePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.QueuePolicy, 0, len(s.policies))
	for _, policy := range s.policies {
		items = append(items, policy)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Queue < items[j].Queue })
	return items, nil
}

func (s *Store) UpsertPolicy(_ context.Context, policy entities.QueuePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.Queue] = policy
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
