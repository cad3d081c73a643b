package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// postgresDSN starts one Postgres container for the package and returns its
// DSN. Tests are skipped in -short mode or when Docker is unavailable.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "leaderboard",
				"POSTGRES_PASSWORD": "leaderboard",
				"POSTGRES_DB":       "leaderboard",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			pgErr = err
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			pgErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://leaderboard:leaderboard@%s:%s/leaderboard?sslmode=disable", host, port.Port())
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return pgDSN
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := postgresDSN(t)
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewPostgresStore(ctx, dsn, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE agent_metrics CASCADE`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore_UpsertAndLoad(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMetrics(ctx, sampleCohort()))

	cohort, err := s.LoadCohort(ctx)
	require.NoError(t, err)
	require.Len(t, cohort, 2)

	byID := map[string]domain.AgentMetric{}
	for _, m := range cohort {
		byID[m.AgentID] = m
	}
	assert.Equal(t, sampleCohort()[0], byID["agt_a"])
	assert.Equal(t, []string{}, byID["agt_b"].Roles)

	// Re-running the migration is idempotent.
	require.NoError(t, s.Migrate(ctx))
}

func TestPostgresStore_NotifiesOnChange(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Listen(ctx))
	require.NoError(t, s.UpsertMetrics(ctx, []domain.AgentMetric{{AgentID: "agt_n", Roles: []string{}}}))

	payload, err := s.WaitForChange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "agt_n", payload)
}

func TestPostgresStore_WithoutNotifyConnection(t *testing.T) {
	s := &PostgresStore{logger: slog.Default()}

	assert.ErrorIs(t, s.Listen(context.Background()), ports.ErrNotifierClosed)
	_, err := s.WaitForChange(context.Background())
	assert.ErrorIs(t, err, ports.ErrNotifierClosed)
}

func TestNewPostgresStore_BadDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "postgres://%zz", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse pool DSN")
}
