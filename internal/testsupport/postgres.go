//go:build integration

// Package testsupport starts throwaway Postgres databases for integration tests.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/migrate"
)

// StartPostgres runs a Postgres container, applies the goose migrations and returns a
// client bound to it. The container is removed when the test ends.
func StartPostgres(t *testing.T) *db.Client {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("zipshift"),
		postgres.WithUsername("zipshift"),
		postgres.WithPassword("zipshift"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := db.New(ctx, config.DBConfig{DSN: dsn, Driver: config.DriverPostgres, MaxOpenConns: 20, MaxIdleConns: 5}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, migrate.DefaultDir, "up"))
	return client
}
