package policyfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/adapters/memory"
	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
)

const sampleDocument = `
defaults:
  max_workers: 8
  heartbeat_ttl: 90s
queues:
  media:
    min_workers: 2
    target_wait: 2m
    max_memory_mb: 1024
  email: {}
`

func TestParseLayersDefaultsAndQueueBlocks(t *testing.T) {
	policies, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected two policies, got %d", len(policies))
	}
	email, media := policies[0], policies[1]
	if email.Queue != "email" || email.MaxWorkers != 8 || email.MinWorkers != 1 {
		t.Fatalf("unexpected email policy: %+v", email)
	}
	if media.MinWorkers != 2 || media.TargetWait != 2*time.Minute || media.MaxMemoryMB != 1024 {
		t.Fatalf("unexpected media policy: %+v", media)
	}
	if media.HeartbeatTTL != 90*time.Second {
		t.Fatalf("expected defaults to apply, got %s", media.HeartbeatTTL)
	}
	if media.CriticalDepth != entities.DefaultPolicy("media").CriticalDepth {
		t.Fatalf("expected untouched fields to keep defaults")
	}
}

func TestParseRejectsInvalidQueue(t *testing.T) {
	cases := map[string]string{
		"bad duration":  "queues:\n  media:\n    target_wait: soon\n",
		"min over max":  "queues:\n  media:\n    min_workers: 5\n    max_workers: 2\n",
		"malformed doc": "queues: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestApplyUpsertsPolicies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(sampleDocument), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store := memory.NewStore()
	count, err := Apply(context.Background(), path, store)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two policies applied, got %d", count)
	}
	policy, err := store.GetPolicy(context.Background(), "media")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if policy.MinWorkers != 2 {
		t.Fatalf("expected stored media policy, got %+v", policy)
	}
}
