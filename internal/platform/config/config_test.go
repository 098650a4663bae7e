package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.StorageDriver)
	require.Equal(t, 1000, cfg.PlatformFeeBps)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.NotEmpty(t, cfg.KafkaBrokers)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsFeeOutOfRange(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PLATFORM_FEE_BPS", "10001")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PLATFORM_FEE_BPS", "250")
	t.Setenv("ADMIN_USER_IDS", "admin-1,admin-2")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"admin-1", "admin-2"}, cfg.AdminUserIDs)
	require.Equal(t, "30s", cfg.RateLimitWindow.String())
	require.Equal(t, 250, cfg.PlatformFeeBps)
}
