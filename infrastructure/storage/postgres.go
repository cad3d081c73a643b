package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// ChannelMetricsChanged is the LISTEN/NOTIFY channel a trigger on the
// agent tables publishes to. The payload is the affected agent ID.
const ChannelMetricsChanged = "agent_metrics_changed"

// PostgresStore reads agent metrics through a pgxpool.Pool and listens for
// change notifications on a dedicated connection.
//
// Schema: agent_metrics holds one row per agent, agent_roles one row per
// (agent, role) pair.
type PostgresStore struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// NewPostgresStore connects to poolDSN and, when notifyDSN is non-empty,
// opens a dedicated connection for LISTEN/NOTIFY. notifyDSN should point
// directly at Postgres rather than through a transaction pooler.
func NewPostgresStore(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}

	return &PostgresStore{pool: pool, notifyConn: notifyConn, logger: logger}, nil
}

// Close shuts down the pool and the notify connection.
func (s *PostgresStore) Close(ctx context.Context) {
	s.pool.Close()
	if s.notifyConn != nil {
		if err := s.notifyConn.Close(ctx); err != nil {
			s.logger.Warn("storage: close notify connection", "error", err)
		}
	}
}

// Ping checks connectivity to the database.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate creates the tables and the change-notification trigger.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS agent_metrics (
    agent_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_response_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_quality_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    uptime_consistency DOUBLE PRECISION NOT NULL DEFAULT 0,
    tasks_completed BIGINT NOT NULL DEFAULT 0,
    tasks_failed BIGINT NOT NULL DEFAULT 0,
    knowledge_packages_approved BIGINT NOT NULL DEFAULT 0,
    completed_trades BIGINT NOT NULL DEFAULT 0,
    total_earned_credits DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agent_roles (
    agent_id TEXT NOT NULL REFERENCES agent_metrics(agent_id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    PRIMARY KEY (agent_id, role)
);

CREATE OR REPLACE FUNCTION notify_agent_metrics_changed() RETURNS trigger AS $$
BEGIN
    IF TG_OP = 'DELETE' THEN
        PERFORM pg_notify('agent_metrics_changed', OLD.agent_id);
    ELSE
        PERFORM pg_notify('agent_metrics_changed', NEW.agent_id);
    END IF;
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS agent_metrics_changed ON agent_metrics;
CREATE TRIGGER agent_metrics_changed
    AFTER INSERT OR UPDATE OR DELETE ON agent_metrics
    FOR EACH ROW EXECUTE FUNCTION notify_agent_metrics_changed();

DROP TRIGGER IF EXISTS agent_roles_changed ON agent_roles;
CREATE TRIGGER agent_roles_changed
    AFTER INSERT OR UPDATE OR DELETE ON agent_roles
    FOR EACH ROW EXECUTE FUNCTION notify_agent_metrics_changed();
`)
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Name implements ports.SnapshotLoader.
func (s *PostgresStore) Name() string { return "postgres" }

// LoadCohort implements ports.SnapshotLoader. Metrics and roles are read
// concurrently and joined in memory.
func (s *PostgresStore) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	var (
		cohort []domain.AgentMetric
		roles  map[string][]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cohort, err = s.loadMetrics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.loadRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, ports.NewLoaderError(s.Name(), "query", classifyPgError(err))
	}

	for i := range cohort {
		if r, ok := roles[cohort[i].AgentID]; ok {
			cohort[i].Roles = r
		} else {
			cohort[i].Roles = []string{}
		}
	}
	return cohort, nil
}

func (s *PostgresStore) loadMetrics(ctx context.Context) ([]domain.AgentMetric, error) {
	rows, err := s.pool.Query(ctx, `
SELECT agent_id, name, status,
       success_rate, avg_response_time_seconds, avg_quality_rating, uptime_consistency,
       tasks_completed, tasks_failed, knowledge_packages_approved, completed_trades,
       total_earned_credits
FROM agent_metrics`)
	if err != nil {
		return nil, fmt.Errorf("storage: query agent metrics: %w", err)
	}

	cohort, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AgentMetric, error) {
		var (
			m      domain.AgentMetric
			status string
		)
		err := row.Scan(
			&m.AgentID, &m.Name, &status,
			&m.SuccessRate, &m.AvgResponseTimeSeconds, &m.AvgQualityRating, &m.UptimeConsistency,
			&m.TasksCompleted, &m.TasksFailed, &m.KnowledgePackagesApproved, &m.CompletedTrades,
			&m.TotalEarnedCredits,
		)
		m.Status = domain.AgentStatus(status)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan agent metrics: %w", err)
	}
	return cohort, nil
}

func (s *PostgresStore) loadRoles(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT agent_id, role FROM agent_roles ORDER BY agent_id, role`)
	if err != nil {
		return nil, fmt.Errorf("storage: query agent roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[string][]string)
	for rows.Next() {
		var agentID, role string
		if err := rows.Scan(&agentID, &role); err != nil {
			return nil, fmt.Errorf("storage: scan agent role: %w", err)
		}
		roles[agentID] = append(roles[agentID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate agent roles: %w", err)
	}
	return roles, nil
}

// UpsertMetrics writes metrics and replaces their role sets in one
// transaction. The trigger publishes one notification per changed row.
func (s *PostgresStore) UpsertMetrics(ctx context.Context, metrics []domain.AgentMetric) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
INSERT INTO agent_metrics (
    agent_id, name, status,
    success_rate, avg_response_time_seconds, avg_quality_rating, uptime_consistency,
    tasks_completed, tasks_failed, knowledge_packages_approved, completed_trades,
    total_earned_credits
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (agent_id) DO UPDATE SET
    name = EXCLUDED.name,
    status = EXCLUDED.status,
    success_rate = EXCLUDED.success_rate,
    avg_response_time_seconds = EXCLUDED.avg_response_time_seconds,
    avg_quality_rating = EXCLUDED.avg_quality_rating,
    uptime_consistency = EXCLUDED.uptime_consistency,
    tasks_completed = EXCLUDED.tasks_completed,
    tasks_failed = EXCLUDED.tasks_failed,
    knowledge_packages_approved = EXCLUDED.knowledge_packages_approved,
    completed_trades = EXCLUDED.completed_trades,
    total_earned_credits = EXCLUDED.total_earned_credits`,
			m.AgentID, m.Name, string(m.Status),
			m.SuccessRate, m.AvgResponseTimeSeconds, m.AvgQualityRating, m.UptimeConsistency,
			m.TasksCompleted, m.TasksFailed, m.KnowledgePackagesApproved, m.CompletedTrades,
			m.TotalEarnedCredits,
		)
		batch.Queue(`DELETE FROM agent_roles WHERE agent_id = $1`, m.AgentID)
		for _, role := range m.Roles {
			batch.Queue(`INSERT INTO agent_roles (agent_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, m.AgentID, role)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage: upsert agent metrics: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit upsert: %w", err)
	}
	return nil
}

// Listen subscribes the notify connection to ChannelMetricsChanged.
func (s *PostgresStore) Listen(ctx context.Context) error {
	if s.notifyConn == nil {
		return fmt.Errorf("storage: %w", ports.ErrNotifierClosed)
	}
	if _, err := s.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{ChannelMetricsChanged}.Sanitize()); err != nil {
		return fmt.Errorf("storage: listen %s: %w", ChannelMetricsChanged, err)
	}
	return nil
}

// WaitForChange implements ports.ChangeNotifier. Listen must be called
// first. The returned payload is the changed agent ID.
func (s *PostgresStore) WaitForChange(ctx context.Context) (string, error) {
	if s.notifyConn == nil {
		return "", fmt.Errorf("storage: %w", ports.ErrNotifierClosed)
	}
	n, err := s.notifyConn.WaitForNotification(ctx)
	if err != nil {
		return "", fmt.Errorf("storage: wait for notification: %w", err)
	}
	return n.Payload, nil
}

// classifyPgError maps connection-level failures to ports.ErrServiceUnavailable
// so callers can tell retryable errors apart.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 57P: operator intervention.
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P03" {
			return fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
		}
		return err
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
	}
	return err
}

var (
	_ ports.SnapshotLoader = (*PostgresStore)(nil)
	_ ports.ChangeNotifier = (*PostgresStore)(nil)
)
