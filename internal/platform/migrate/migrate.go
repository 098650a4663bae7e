package migrate

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Runner applies the embedded schema migrations against Postgres.
type Runner struct {
	DSN    string
	Logger *slog.Logger
}

func (r Runner) Up() error {
	m, err := r.open()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	r.logVersion(m, "migrations_applied")
	return nil
}

func (r Runner) Down(steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	m, err := r.open()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}
	r.logVersion(m, "migrations_reverted")
	return nil
}

func (r Runner) Version() (uint, bool, error) {
	m, err := r.open()
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (r Runner) open() (*migrate.Migrate, error) {
	if strings.TrimSpace(r.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, pgxURL(r.DSN))
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	return m, nil
}

func (r Runner) logVersion(m *migrate.Migrate, event string) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version, dirty, _ := m.Version()
	logger.Info("schema migrations finished",
		"event", event,
		"module", "internal/platform/migrate",
		"layer", "platform",
		"version", version,
		"dirty", dirty,
	)
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}

// pgxURL rewrites postgres:// DSNs to the scheme the pgx/v5 driver registers.
func pgxURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
