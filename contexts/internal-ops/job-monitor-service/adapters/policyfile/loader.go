package policyfile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"

	"gopkg.in/yaml.v3"
)

// document is the on-disk layout:
//
//	defaults:
//	  max_workers: 8
//	queues:
//	  media:
//	    target_wait: 2m
//
// Every queue starts from the built-in default, then defaults, then its own block.
type document struct {
	Defaults policyBlock            `yaml:"defaults"`
	Queues   map[string]policyBlock `yaml:"queues"`
}

type policyBlock struct {
	MinWorkers         *int     `yaml:"min_workers"`
	MaxWorkers         *int     `yaml:"max_workers"`
	JobsPerWorker      *int     `yaml:"jobs_per_worker"`
	TargetWait         string   `yaml:"target_wait"`
	ScaleDownIdleRatio *float64 `yaml:"scale_down_idle_ratio"`
	ScaleUpCooldown    string   `yaml:"scale_up_cooldown"`
	ScaleDownCooldown  string   `yaml:"scale_down_cooldown"`

	BaseTimeout       string   `yaml:"base_timeout"`
	MinTimeout        string   `yaml:"min_timeout"`
	MaxTimeout        string   `yaml:"max_timeout"`
	TimeoutMultiplier *float64 `yaml:"timeout_multiplier"`

	WarnDepth           *int     `yaml:"warn_depth"`
	CriticalDepth       *int     `yaml:"critical_depth"`
	WarnFailureRate     *float64 `yaml:"warn_failure_rate"`
	CriticalFailureRate *float64 `yaml:"critical_failure_rate"`

	MaxMemoryMB      *float64 `yaml:"max_memory_mb"`
	MaxJobsPerWorker *int     `yaml:"max_jobs_per_worker"`
	HeartbeatTTL     string   `yaml:"heartbeat_ttl"`
}

// Parse decodes a policy document. All queues are validated; one bad
// queue rejects the whole document.
func Parse(raw []byte) ([]entities.QueuePolicy, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode job policy yaml: %w", err)
	}

	names := make([]string, 0, len(doc.Queues))
	for name := range doc.Queues {
		names = append(names, name)
	}
	sort.Strings(names)

	policies := make([]entities.QueuePolicy, 0, len(names))
	for _, name := range names {
		queue := strings.TrimSpace(name)
		policy := entities.DefaultPolicy(queue)
		if err := doc.Defaults.apply(&policy); err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		if err := doc.Queues[name].apply(&policy); err != nil {
			return nil, fmt.Errorf("queue %s: %w", queue, err)
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("queue %s: %w", queue, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func LoadFile(path string) ([]entities.QueuePolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job policy file: %w", err)
	}
	return Parse(raw)
}

// Apply loads path and upserts every queue policy it declares.
func Apply(ctx context.Context, path string, store ports.PolicyStore) (int, error) {
	policies, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, policy := range policies {
		if err := store.UpsertPolicy(ctx, policy); err != nil {
			return 0, fmt.Errorf("store policy %s: %w", policy.Queue, err)
		}
	}
	return len(policies), nil
}

func (b policyBlock) apply(p *entities.QueuePolicy) error {
	setInt(&p.MinWorkers, b.MinWorkers)
	setInt(&p.MaxWorkers, b.MaxWorkers)
	setInt(&p.JobsPerWorker, b.JobsPerWorker)
	setFloat(&p.ScaleDownIdleRatio, b.ScaleDownIdleRatio)
	setFloat(&p.TimeoutMultiplier, b.TimeoutMultiplier)
	setInt(&p.WarnDepth, b.WarnDepth)
	setInt(&p.CriticalDepth, b.CriticalDepth)
	setFloat(&p.WarnFailureRate, b.WarnFailureRate)
	setFloat(&p.CriticalFailureRate, b.CriticalFailureRate)
	setFloat(&p.MaxMemoryMB, b.MaxMemoryMB)
	setInt(&p.MaxJobsPerWorker, b.MaxJobsPerWorker)

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"target_wait", b.TargetWait, &p.TargetWait},
		{"scale_up_cooldown", b.ScaleUpCooldown, &p.ScaleUpCooldown},
		{"scale_down_cooldown", b.ScaleDownCooldown, &p.ScaleDownCooldown},
		{"base_timeout", b.BaseTimeout, &p.BaseTimeout},
		{"min_timeout", b.MinTimeout, &p.MinTimeout},
		{"max_timeout", b.MaxTimeout, &p.MaxTimeout},
		{"heartbeat_ttl", b.HeartbeatTTL, &p.HeartbeatTTL},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.field = parsed
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
