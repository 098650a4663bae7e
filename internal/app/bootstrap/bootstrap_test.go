package bootstrap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payoutports "ygbackend/contexts/finance-core/payout-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
	"ygbackend/internal/platform/config"
)

func memoryConfig() config.Config {
	return config.Config{
		ServiceName:         "ygbackend-test",
		Environment:         "test",
		LogLevel:            "error",
		StorageDriver:       config.StorageMemory,
		KafkaBrokers:        []string{"localhost:9092"},
		PlatformFeeBps:      1000,
		MinPayoutCents:      1000,
		LicenseExpiryNotice: 7 * 24 * time.Hour,
		MessageRateLimit:    30,
		WorkerPoll:          time.Second,
		IdempotencyTTL:      time.Hour,
		EnableLicenseSweeps: true,
		EnableEmailDelivery: true,
	}
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", normalizeAddr(""))
	assert.Equal(t, ":9000", normalizeAddr("9000"))
	assert.Equal(t, ":9000", normalizeAddr(" :9000 "))
}

func TestMemoryRuntimeWiresBusAndModules(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, memoryConfig(), "test", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	require.NotNil(t, rt.Bus, "memory mode always runs an in-process bus")
	require.NotNil(t, rt.Outbox)
	assert.NotNil(t, rt.Modules.IPAsset.Store)
	assert.NotNil(t, rt.Modules.Payout.Store)
	assert.NotNil(t, rt.Modules.JobMonitor.Store)
	assert.NotNil(t, rt.policyStore())
}

func TestBuildJobsHonoursFeatureFlags(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	rt, err := NewRuntime(ctx, cfg, "test", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	names := func(rt *Runtime) map[string]string {
		out := map[string]string{}
		for _, job := range buildJobs(rt) {
			out[job.Name] = job.Queue
		}
		return out
	}

	got := names(rt)
	assert.Equal(t, QueueOutbox, got["outbox_relay"])
	assert.Equal(t, QueueLicenseExpiry, got["license_expiry_sweep"])
	assert.Equal(t, QueueLicenseNotice, got["license_expiry_notice"])
	assert.Equal(t, QueueNotificationEmail, got["notification_email_delivery"])
	assert.Equal(t, QueueMediaStaleUploads, got["media_stale_upload_sweep"])
	assert.Equal(t, QueueJobMonitorScaling, got["job_monitor_scaling_advisor"])
	assert.NotContains(t, got, "payout_processing")

	rt.Config.EnableLicenseSweeps = false
	rt.Config.EnablePayoutProcessor = true
	got = names(rt)
	assert.NotContains(t, got, "license_expiry_sweep")
	assert.Equal(t, QueuePayoutProcessing, got["payout_processing"])
}

func TestOutboxRelayJobReportsPending(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, memoryConfig(), "test", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	for _, job := range buildJobs(rt) {
		if job.Name != "outbox_relay" {
			continue
		}
		result, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 0, result.Pending)
		return
	}
	t.Fatal("outbox relay job not registered")
}

func TestStatementIssuedReachesPayoutLedger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := NewRuntime(ctx, memoryConfig(), "test", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	data, err := json.Marshal(contractsv1.RoyaltyStatementIssuedData{
		StatementID:     "st-1",
		RunID:           "run-1",
		CreatorID:       "creator-1",
		NetPayableCents: 2500,
		Currency:        "usd",
	})
	require.NoError(t, err)
	require.NoError(t, rt.Outbox.AppendOutbox(ctx, contractsv1.Envelope{
		EventID:       "evt-statement-1",
		EventType:     contractsv1.EventRoyaltyStatementIssued,
		OccurredAt:    time.Now().UTC(),
		SourceService: "royalty-service",
		SchemaVersion: 1,
		Data:          data,
	}))

	done := make(chan error, 1)
	go func() { done <- NewBackground(rt).Run(ctx) }()

	require.Eventually(t, func() bool {
		entries, err := rt.Modules.Payout.Store.ListLedgerEntries(ctx, payoutports.LedgerFilter{UserID: "creator-1"})
		return err == nil && len(entries) == 1 && entries[0].AmountCents == 2500
	}, 5*time.Second, 20*time.Millisecond)

	pending, err := rt.Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	cancel()
	require.NoError(t, <-done)
}
